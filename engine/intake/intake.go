// Package intake provides the design intake pipeline that processes submitted
// netlists through parsing, deduplication, registry import, and graph mirror
// stages.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/BoardsightAI/boardsight/engine/board"
	"github.com/BoardsightAI/boardsight/engine/graph"
	"github.com/BoardsightAI/boardsight/engine/netlist"
	"github.com/BoardsightAI/boardsight/engine/profile"
	"github.com/BoardsightAI/boardsight/pkg/fn"
)

const (
	// DesignSubject is the NATS subject for incoming design submissions.
	DesignSubject = "engine.design"
	// DLQSubject is the dead letter queue subject for failed submissions.
	DLQSubject = "engine.design.dlq"
	// MaxRetries before sending to DLQ.
	MaxRetries = 3
)

// ErrDuplicate marks a submission whose fingerprint was already loaded.
// Duplicates are acknowledged, never retried.
var ErrDuplicate = errors.New("intake: duplicate design")

// Deps holds the external dependencies for the intake pipeline.
type Deps struct {
	Registry *board.Registry
	Profiles *profile.Library
	Graph    *graph.GraphStore
	// SeenF reports whether a fingerprint was already ingested. Nil disables
	// deduplication.
	SeenF  func(ctx context.Context, fingerprint string) (bool, error)
	Logger *slog.Logger
}

// --- Pipeline Stages ---

// Parse converts raw submission bytes into a structured netlist document.
var Parse fn.Stage[DesignSubmission, LoadedDesign] = func(_ context.Context, sub DesignSubmission) fn.Result[LoadedDesign] {
	doc, err := netlist.Parse(sub.Filename, sub.Payload)
	if err != nil {
		return fn.Err[LoadedDesign](fmt.Errorf("parse %s: %w", sub.Filename, err))
	}
	return fn.Ok(LoadedDesign{
		DesignSubmission: sub,
		Document:         doc,
		Fingerprint:      doc.Fingerprint(),
	})
}

// NewDedup creates a stage that rejects designs whose fingerprint was seen
// before. Dedup lookup failures log and pass through rather than dropping
// the submission.
func NewDedup(seen func(ctx context.Context, fingerprint string) (bool, error), log *slog.Logger) fn.Stage[LoadedDesign, LoadedDesign] {
	return func(ctx context.Context, d LoadedDesign) fn.Result[LoadedDesign] {
		if seen == nil {
			return fn.Ok(d)
		}
		exists, err := seen(ctx, d.Fingerprint)
		if err != nil {
			log.Warn("intake: dedup check failed", "error", err, "fingerprint", d.Fingerprint)
			return fn.Ok(d)
		}
		if exists {
			return fn.Err[LoadedDesign](fmt.Errorf("%w: %s", ErrDuplicate, d.Fingerprint))
		}
		return fn.Ok(d)
	}
}

// NewLoad creates a stage that replaces the registry contents with the
// parsed design.
func NewLoad(reg *board.Registry, lib *profile.Library) fn.Stage[LoadedDesign, ImportedDesign] {
	return func(_ context.Context, d LoadedDesign) fn.Result[ImportedDesign] {
		reg.Clear()
		report := reg.ImportDocument(d.Document, lib)
		return fn.Ok(ImportedDesign{LoadedDesign: d, Report: report})
	}
}

// NewMirror creates a stage that exports the registry into the knowledge
// graph. Nil stores skip the mirror so the registry still loads without
// Neo4j.
func NewMirror(reg *board.Registry, gs *graph.GraphStore) fn.Stage[ImportedDesign, string] {
	return func(ctx context.Context, d ImportedDesign) fn.Result[string] {
		if gs != nil {
			if err := gs.MirrorRegistry(ctx, reg, d.boardName()); err != nil {
				return fn.Err[string](err)
			}
		}
		return fn.Ok(d.Fingerprint)
	}
}

// LoggedTap returns a pass-through stage that logs the value reaching it.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return fn.TapStage(func(_ context.Context, _ T) {
		log.Info("stage.enter", "stage", name)
	})
}

// NewPipeline constructs the full intake pipeline with all stages wired.
// The mirror stage retries; transient graph outages should not lose a
// design that already imported cleanly.
func NewPipeline(deps Deps) fn.Stage[DesignSubmission, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	parsed := fn.Then(LoggedTap[DesignSubmission]("parse", log), Parse)
	deduped := fn.Then(parsed, NewDedup(deps.SeenF, log))
	loaded := fn.Then(deduped, fn.Then(LoggedTap[LoadedDesign]("load", log), NewLoad(deps.Registry, deps.Profiles)))
	mirrored := fn.Then(loaded, fn.Then(LoggedTap[ImportedDesign]("mirror", log),
		fn.RetryStage(fn.DefaultRetry, NewMirror(deps.Registry, deps.Graph))))

	return fn.TracedStage("intake.pipeline", mirrored)
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Submission DesignSubmission `json:"submission"`
	Error      string           `json:"error"`
	Retries    int              `json:"retries"`
}

// StartConsumer starts a NATS consumer that runs design submissions through
// the intake pipeline with retry and DLQ support.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(DesignSubject, func(msg *nats.Msg) {
		var sub DesignSubmission
		if err := json.Unmarshal(msg.Data, &sub); err != nil {
			log.Error("intake: unmarshal failed", "error", err)
			return
		}

		ctx := context.Background()

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		result := pipeline(ctx, sub)
		if result.IsErr() {
			_, pipeErr := result.Unwrap()

			if errors.Is(pipeErr, ErrDuplicate) {
				log.Info("intake: skipping duplicate", "board", sub.boardName())
				if msg.Reply != "" {
					_ = msg.Ack()
				}
				return
			}

			retries++
			log.Error("intake: pipeline failed",
				"error", pipeErr,
				"board", sub.boardName(),
				"retry", retries,
			)

			if retries >= MaxRetries {
				dlq := dlqMessage{
					Submission: sub,
					Error:      pipeErr.Error(),
					Retries:    retries,
				}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					log.Error("intake: DLQ publish failed", "error", err)
				}
			} else {
				retryMsg := nats.NewMsg(DesignSubject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
				if err := nc.PublishMsg(retryMsg); err != nil {
					log.Error("intake: retry publish failed", "error", err)
				}
			}
		} else {
			fp, _ := result.Unwrap()
			log.Info("intake: success", "board", sub.boardName(), "fingerprint", fp)
		}

		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
}

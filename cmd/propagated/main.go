// Command propagated loads a design and serves wavefront propagation over
// NATS: stimulus messages update component outputs and trigger a run, and
// request/reply lets callers run propagation on demand. Every run's steps
// are published for assistant-layer consumers.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"

	"github.com/BoardsightAI/boardsight/engine/board"
	"github.com/BoardsightAI/boardsight/engine/netlist"
	"github.com/BoardsightAI/boardsight/engine/profile"
	"github.com/BoardsightAI/boardsight/engine/propagate"
	"github.com/BoardsightAI/boardsight/pkg/natsutil"
)

const (
	// StimulusSubject carries output overrides that trigger a run.
	StimulusSubject = "engine.stimulus"
	// RunSubject is the request/reply subject for on-demand runs.
	RunSubject = "engine.propagate.run"
	// StepsSubject is where finished runs are published.
	StepsSubject = "engine.propagation"
)

// stimulus sets a component's outputs and propagates from there.
type stimulus struct {
	Component string            `json:"component"`
	Outputs   map[string]string `json:"outputs"`
	Note      string            `json:"note,omitempty"`
}

// runRequest marks components dirty and runs propagation.
type runRequest struct {
	Components []string `json:"components"`
	Note       string   `json:"note,omitempty"`
}

type runReply struct {
	Steps []propagate.Step `json:"steps"`
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	var (
		natsURL  = flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS server URL")
		design   = flag.String("design", "", "netlist file to load at startup")
		profiles = flag.String("profiles", envOr("BOARDSIGHT_PROFILES", ""), "extra component profiles YAML")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(*natsURL, *design, *profiles, logger); err != nil {
		logger.Error("propagated exited with error", "err", err)
		os.Exit(1)
	}
}

func run(natsURL, design, profiles string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := board.NewRegistry()
	if design != "" {
		lib := profile.NewLibrary()
		if profiles != "" {
			if err := lib.Load(profiles); err != nil {
				return err
			}
		}
		doc, err := netlist.ParseFile(design)
		if err != nil {
			return fmt.Errorf("load design: %w", err)
		}
		report := reg.ImportDocument(doc, lib)
		logger.Info("design loaded",
			"file", design,
			"components", report.Components,
			"connections", report.Connections,
		)
	}

	nc, err := nats.Connect(natsURL, nats.Name("propagated"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	sched := propagate.NewScheduler(reg, logger)
	var mu sync.Mutex // scheduler and reasoner map are single-writer

	runAndPublish := func(ctx context.Context, note string) []propagate.Step {
		steps := sched.Run(propagate.ForwardAll(reg), note)
		if len(steps) > 0 {
			if err := natsutil.Publish(ctx, nc, StepsSubject, steps); err != nil {
				logger.Error("publish steps failed", "err", err)
			}
		}
		return steps
	}

	stimSub, err := natsutil.Subscribe(nc, StimulusSubject, func(ctx context.Context, s stimulus) {
		if s.Component == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()

		if len(s.Outputs) > 0 {
			reg.UpdateOutputs(s.Component, s.Outputs)
		}
		sched.MarkDirty(s.Component)
		for port := range s.Outputs {
			for _, dest := range reg.OutputDestinations(s.Component, port) {
				if i := strings.IndexByte(dest, '.'); i > 0 {
					sched.MarkDirty(dest[:i])
				}
			}
		}
		steps := runAndPublish(ctx, s.Note)
		logger.Info("stimulus processed", "component", s.Component, "steps", len(steps))
	})
	if err != nil {
		return fmt.Errorf("subscribe stimulus: %w", err)
	}
	defer stimSub.Unsubscribe()

	runSub, err := nc.Subscribe(RunSubject, func(msg *nats.Msg) {
		mu.Lock()
		defer mu.Unlock()

		var req runRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			logger.Warn("bad run request", "err", err)
			return
		}
		sched.MarkDirty(req.Components...)
		steps := runAndPublish(ctx, req.Note)
		if err := natsutil.Respond(msg, runReply{Steps: steps}); err != nil {
			logger.Error("respond failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe run: %w", err)
	}
	defer runSub.Unsubscribe()

	logger.Info("propagated ready",
		"stimulus", StimulusSubject,
		"run", RunSubject,
		"steps", StepsSubject,
	)
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// Package propagate drives wavefront propagation over the design graph: a
// queue of dirty component ids is drained breadth-first, a caller-supplied
// reasoning capability is invoked once per affected component, and any
// downstream ids it names are folded into the same run. A per-run visited
// set makes cycles and diamonds safe — each component is evaluated at most
// once per run.
package propagate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/BoardsightAI/boardsight/engine/board"
)

// Result is what a reasoning capability returns. Both fields are optional:
// OutputChanges are applied to the registry via UpdateOutputs, Downstream
// ids are enqueued into the current run.
type Result struct {
	OutputChanges map[string]string `json:"output_changes,omitempty"`
	Downstream    []string          `json:"downstream_components,omitempty"`
}

// Reasoner is the boundary to the excluded assistant layer: one synchronous
// reasoning call over an already-fetched component state. Implementations
// that fail internally own their failure policy; the scheduler only invokes
// and applies well-formed results.
type Reasoner interface {
	ReasonAboutState(state board.State, reg *board.Registry) Result
}

// ReasonerFunc adapts a function to the Reasoner interface.
type ReasonerFunc func(state board.State, reg *board.Registry) Result

func (f ReasonerFunc) ReasonAboutState(state board.State, reg *board.Registry) Result {
	return f(state, reg)
}

// Step is one processed component in a run, recorded in processing order
// whether or not the reasoner produced changes.
type Step struct {
	Component string      `json:"component"`
	Result    Result      `json:"result"`
	State     board.State `json:"state"`
	Note      string      `json:"note,omitempty"`
}

var meter = otel.Meter("engine/propagate")

var (
	runCounter  metric.Int64Counter
	stepCounter metric.Int64Counter
	runSeconds  metric.Float64Histogram
)

func init() {
	runCounter, _ = meter.Int64Counter("boardsight_propagation_runs_total",
		metric.WithDescription("Propagation runs started"))
	stepCounter, _ = meter.Int64Counter("boardsight_propagation_steps_total",
		metric.WithDescription("Components evaluated across all runs"))
	runSeconds, _ = meter.Float64Histogram("boardsight_propagation_run_seconds",
		metric.WithDescription("Wall time per propagation run"))
}

// Scheduler holds the dirty set between runs. Marks made while a run drains
// land in a fresh dirty set for the next run; the running snapshot grows
// only through explicit downstream propagation.
type Scheduler struct {
	reg    *board.Registry
	logger *slog.Logger

	dirty map[string]struct{}
	order []string // insertion order of the dirty set
}

// NewScheduler creates a scheduler bound to a registry.
func NewScheduler(reg *board.Registry, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		reg:    reg,
		logger: logger,
		dirty:  make(map[string]struct{}),
	}
}

// MarkDirty queues component ids for the next run, deduplicated.
func (s *Scheduler) MarkDirty(ids ...string) {
	for _, id := range ids {
		if _, ok := s.dirty[id]; ok {
			continue
		}
		s.dirty[id] = struct{}{}
		s.order = append(s.order, id)
	}
}

// PendingDirty returns the number of ids waiting for the next run.
func (s *Scheduler) PendingDirty() int { return len(s.dirty) }

// Run drains a snapshot of the dirty set. For each id, in FIFO order: skip
// if already visited this run; look up the reasoner and the registry state,
// skipping softly if either is missing; invoke the reasoner; apply its
// output changes through the registry; enqueue its downstream ids. Returns
// the steps in processing order. One component's absence never blocks the
// rest, and no reasoner is invoked twice in one run.
func (s *Scheduler) Run(reasoners map[string]Reasoner, note string) []Step {
	queue := s.order
	s.dirty = make(map[string]struct{})
	s.order = nil
	if len(queue) == 0 {
		return nil
	}

	runID := uuid.NewString()
	start := time.Now()
	runCounter.Add(context.Background(), 1)
	s.logger.Debug("propagate: run start", "run_id", runID, "dirty", len(queue), "note", note)

	visited := make(map[string]struct{})
	var steps []Step

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if _, done := visited[id]; done {
			continue
		}
		visited[id] = struct{}{}

		reasoner, ok := reasoners[id]
		if !ok {
			continue // nothing to do yet for this component
		}
		state, ok := s.reg.State(id)
		if !ok {
			continue // not imported yet
		}

		result := reasoner.ReasonAboutState(state, s.reg)
		steps = append(steps, Step{Component: id, Result: result, State: state, Note: note})
		stepCounter.Add(context.Background(), 1)

		if len(result.OutputChanges) > 0 {
			s.reg.UpdateOutputs(id, result.OutputChanges)
		}
		// Duplicates and already-visited ids are filtered at pop time.
		queue = append(queue, result.Downstream...)
	}

	runSeconds.Record(context.Background(), time.Since(start).Seconds())
	s.logger.Info("propagate: run complete",
		"run_id", runID,
		"steps", len(steps),
		"duration", time.Since(start),
	)
	return steps
}

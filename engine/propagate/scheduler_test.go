package propagate

import (
	"io"
	"log/slog"
	"testing"

	"github.com/BoardsightAI/boardsight/engine/board"
	"github.com/BoardsightAI/boardsight/engine/netlist"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func addPart(reg *board.Registry, id string, inputs, outputs []string) {
	reg.AddComponent(id, netlist.ComponentRecord{
		Name: id, Type: "part", Inputs: inputs, Outputs: outputs,
	})
}

// chainReasoner records its invocation and names fixed downstream ids.
type chainReasoner struct {
	calls      *[]string
	downstream []string
	changes    map[string]string
}

func (c chainReasoner) ReasonAboutState(state board.State, reg *board.Registry) Result {
	*c.calls = append(*c.calls, state.ID)
	return Result{OutputChanges: c.changes, Downstream: c.downstream}
}

func TestMarkDirtyDedups(t *testing.T) {
	reg := board.NewRegistry()
	s := NewScheduler(reg, testLogger())

	s.MarkDirty("A", "B", "A", "C", "B")
	if s.PendingDirty() != 3 {
		t.Fatalf("pending = %d, want 3", s.PendingDirty())
	}
}

func TestRunEmptyDirtySet(t *testing.T) {
	reg := board.NewRegistry()
	addPart(reg, "A", nil, []string{"o"})
	s := NewScheduler(reg, testLogger())

	var calls []string
	reasoners := map[string]Reasoner{"A": chainReasoner{calls: &calls}}

	if steps := s.Run(reasoners, "noop"); steps != nil {
		t.Fatalf("steps = %v, want nil", steps)
	}
	if len(calls) != 0 {
		t.Fatalf("reasoner invoked with empty dirty set")
	}
	if n := len(reg.RecentChanges(0)); n != 0 {
		t.Fatalf("empty run logged %d changes", n)
	}
}

func TestRunCycleTerminates(t *testing.T) {
	reg := board.NewRegistry()
	for _, id := range []string{"A", "B", "C"} {
		addPart(reg, id, []string{"in"}, []string{"out"})
	}

	var calls []string
	reasoners := map[string]Reasoner{
		"A": chainReasoner{calls: &calls, downstream: []string{"B"}},
		"B": chainReasoner{calls: &calls, downstream: []string{"C"}},
		"C": chainReasoner{calls: &calls, downstream: []string{"A"}}, // closes the cycle
	}

	s := NewScheduler(reg, testLogger())
	s.MarkDirty("A")
	steps := s.Run(reasoners, "cycle")

	if len(steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(steps))
	}
	want := []string{"A", "B", "C"}
	for i, step := range steps {
		if step.Component != want[i] {
			t.Errorf("step %d = %s, want %s", i, step.Component, want[i])
		}
	}
	if len(calls) != 3 {
		t.Fatalf("reasoner calls = %v, component evaluated twice", calls)
	}
}

func TestRunDiamondEvaluatesOnce(t *testing.T) {
	// A fans out to B and C, both converge on D.
	reg := board.NewRegistry()
	for _, id := range []string{"A", "B", "C", "D"} {
		addPart(reg, id, []string{"in"}, []string{"out"})
	}

	var calls []string
	reasoners := map[string]Reasoner{
		"A": chainReasoner{calls: &calls, downstream: []string{"B", "C"}},
		"B": chainReasoner{calls: &calls, downstream: []string{"D"}},
		"C": chainReasoner{calls: &calls, downstream: []string{"D"}},
		"D": chainReasoner{calls: &calls},
	}

	s := NewScheduler(reg, testLogger())
	s.MarkDirty("A")
	steps := s.Run(reasoners, "diamond")

	if len(steps) != 4 {
		t.Fatalf("steps = %d, want 4", len(steps))
	}
	dCount := 0
	for _, c := range calls {
		if c == "D" {
			dCount++
		}
	}
	if dCount != 1 {
		t.Fatalf("D evaluated %d times", dCount)
	}
}

func TestRunSoftSkips(t *testing.T) {
	reg := board.NewRegistry()
	addPart(reg, "A", nil, []string{"o"})
	// "B" has a reasoner but no registry state; "C" has state but no
	// reasoner; neither may block A.
	addPart(reg, "C", nil, nil)

	var calls []string
	reasoners := map[string]Reasoner{
		"A": chainReasoner{calls: &calls},
		"B": chainReasoner{calls: &calls},
	}

	s := NewScheduler(reg, testLogger())
	s.MarkDirty("B", "C", "A")
	steps := s.Run(reasoners, "skips")

	if len(steps) != 1 || steps[0].Component != "A" {
		t.Fatalf("steps = %+v", steps)
	}
}

func TestRunAppliesOutputChanges(t *testing.T) {
	reg := board.NewRegistry()
	addPart(reg, "A", nil, []string{"out"})

	var calls []string
	reasoners := map[string]Reasoner{
		"A": chainReasoner{calls: &calls, changes: map[string]string{"out": "5V"}},
	}

	s := NewScheduler(reg, testLogger())
	s.MarkDirty("A")
	steps := s.Run(reasoners, "apply")

	st, _ := reg.State("A")
	if st.Outputs["out"] != "5V" {
		t.Errorf("output = %q, change not applied", st.Outputs["out"])
	}
	if steps[0].Note != "apply" {
		t.Errorf("note = %q", steps[0].Note)
	}
	// The step records the state as seen by the reasoner, before its own
	// changes landed.
	if steps[0].State.Outputs["out"] != "" {
		t.Errorf("step state = %v, want pre-change view", steps[0].State.Outputs)
	}
}

func TestRunResetsDirtySet(t *testing.T) {
	reg := board.NewRegistry()
	addPart(reg, "A", nil, nil)

	var calls []string
	reasoners := map[string]Reasoner{"A": chainReasoner{calls: &calls}}

	s := NewScheduler(reg, testLogger())
	s.MarkDirty("A")
	s.Run(reasoners, "first")

	if s.PendingDirty() != 0 {
		t.Fatalf("dirty set survived the run")
	}
	if steps := s.Run(reasoners, "second"); steps != nil {
		t.Fatalf("second run processed %d steps", len(steps))
	}
}

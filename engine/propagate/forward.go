package propagate

import (
	"sort"
	"strings"

	"github.com/BoardsightAI/boardsight/engine/board"
)

// Forward returns a Reasoner that treats a component as a wire: each input
// takes its producer's current output value, and every output carries the
// first connected input's value onward. Components whose reasoning needs
// the assistant layer get a different Reasoner; Forward is the default
// electrical behavior.
func Forward() Reasoner {
	return ReasonerFunc(func(state board.State, reg *board.Registry) Result {
		derived := deriveInputs(state, reg)
		if len(derived) > 0 {
			reg.UpdateInputs(state.ID, derived)
		}

		signal := firstSignal(state, derived)
		if signal == "" {
			return Result{}
		}

		changes := make(map[string]string)
		var downstream []string
		for _, port := range sortedKeys(state.Outputs) {
			if state.Outputs[port] == signal {
				continue
			}
			changes[port] = signal
			for _, dest := range reg.OutputDestinations(state.ID, port) {
				if i := strings.IndexByte(dest, '.'); i > 0 {
					downstream = append(downstream, dest[:i])
				}
			}
		}
		if len(changes) == 0 {
			return Result{}
		}
		return Result{OutputChanges: changes, Downstream: dedup(downstream)}
	})
}

// ForwardAll builds a Forward reasoner for every component currently in the
// registry.
func ForwardAll(reg *board.Registry) map[string]Reasoner {
	snap := reg.Snapshot()
	reasoners := make(map[string]Reasoner, len(snap.Components))
	for _, st := range snap.Components {
		reasoners[st.ID] = Forward()
	}
	return reasoners
}

// deriveInputs resolves each connected input to its producer's output value,
// returning only the ports whose value differs from the recorded state.
func deriveInputs(state board.State, reg *board.Registry) map[string]string {
	changed := make(map[string]string)
	for _, port := range sortedKeys(state.Inputs) {
		src, ok := reg.InputSource(state.ID, port)
		if !ok {
			continue
		}
		i := strings.IndexByte(src, '.')
		if i <= 0 {
			continue
		}
		producer, ok := reg.State(src[:i])
		if !ok {
			continue
		}
		if v := producer.Outputs[src[i+1:]]; v != "" && v != state.Inputs[port] {
			changed[port] = v
		}
	}
	if len(changed) == 0 {
		return nil
	}
	return changed
}

// firstSignal picks the value to forward: the first non-empty input in
// sorted port order, freshly derived values winning over recorded ones.
func firstSignal(state board.State, derived map[string]string) string {
	for _, port := range sortedKeys(state.Inputs) {
		if v, ok := derived[port]; ok && v != "" {
			return v
		}
		if v := state.Inputs[port]; v != "" {
			return v
		}
	}
	return ""
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

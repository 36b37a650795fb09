// Package board owns the live design graph: component nodes with typed port
// state, the directed connections between them, and a bounded change log.
// The registry is the single shared mutable resource of the engine; one
// import or one propagation run at a time is the contract, the internal lock
// only lets observers read between runs.
package board

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BoardsightAI/boardsight/engine/netlist"
)

const (
	gridColumns  = 3
	gridXSpacing = 200.0
	gridYSpacing = 150.0

	// maxChanges bounds the change log; the oldest entries are dropped.
	maxChanges = 1024
)

// Registry is the in-memory authoritative store of the design graph.
type Registry struct {
	mu          sync.Mutex
	components  map[string]*ComponentNode
	order       []string // insertion order, drives grid placement
	connections []Connection
	changes     []Change
	seq         uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{components: make(map[string]*ComponentNode)}
}

// AddComponent inserts a node from a parsed record, overwriting silently if
// the id already exists (last-write-wins import semantics). A record without
// a position is placed on a fixed grid: column = index mod 3, row = index
// div 3.
func (r *Registry) AddComponent(id string, rec netlist.ComponentRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node := &ComponentNode{
		ID:          id,
		Type:        rec.Type,
		Description: rec.Description,
		Inputs:      make(map[string]string, len(rec.Inputs)),
		Outputs:     make(map[string]string, len(rec.Outputs)),
	}
	// Declared ports start present but unset.
	for _, p := range rec.Inputs {
		node.Inputs[p] = ""
	}
	for _, p := range rec.Outputs {
		node.Outputs[p] = ""
	}

	if rec.Position != nil {
		node.Position = Position{X: rec.Position.X, Y: rec.Position.Y}
	} else {
		idx := len(r.order)
		if _, exists := r.components[id]; exists {
			idx = r.indexOf(id)
		}
		node.Position = Position{
			X: float64(idx%gridColumns) * gridXSpacing,
			Y: float64(idx/gridColumns) * gridYSpacing,
		}
	}

	if _, exists := r.components[id]; !exists {
		r.order = append(r.order, id)
	}
	r.components[id] = node
}

// RemoveComponent deletes a node and every connection touching it. No-op if
// the id is absent.
func (r *Registry) RemoveComponent(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.components[id]; !ok {
		return
	}
	delete(r.components, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	kept := r.connections[:0]
	for _, c := range r.connections {
		if c.SrcID != id && c.DstID != id {
			kept = append(kept, c)
		}
	}
	r.connections = kept
}

// AddConnection appends a directed connection. It does not deduplicate and
// does not check that either endpoint exists; the import step orders
// components before connections.
func (r *Registry) AddConnection(srcID, srcPort, dstID, dstPort string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections = append(r.connections, Connection{
		SrcID: srcID, SrcPort: srcPort, DstID: dstID, DstPort: dstPort,
	})
}

// UpdateInputs merges port values into a component's input map and appends
// one change-log entry. No-op if the id is absent.
func (r *Registry) UpdateInputs(id string, values map[string]string) {
	r.update(id, values, "update_inputs")
}

// UpdateOutputs merges port values into a component's output map and appends
// one change-log entry. No-op if the id is absent.
func (r *Registry) UpdateOutputs(id string, values map[string]string) {
	r.update(id, values, "update_outputs")
}

func (r *Registry) update(id string, values map[string]string, kind string) {
	if len(values) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.components[id]
	if !ok {
		return
	}
	ports := make(map[string]string, len(values))
	for k, v := range values {
		if kind == "update_inputs" {
			node.Inputs[k] = v
		} else {
			node.Outputs[k] = v
		}
		ports[k] = v
	}
	r.seq++
	r.changes = append(r.changes, Change{
		Seq:       r.seq,
		Kind:      kind,
		Component: id,
		Ports:     ports,
		At:        time.Now(),
	})
	if len(r.changes) > maxChanges {
		r.changes = r.changes[len(r.changes)-maxChanges:]
	}
	changeCounter.Add(context.Background(), 1)
}

// State returns a read-only snapshot of a component. A miss is soft: the
// second return is false and the snapshot is zero.
func (r *Registry) State(id string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.components[id]
	if !ok {
		return State{}, false
	}
	return snapshotNode(node), true
}

// ConnectionsFor returns the ids electrically connected to id, in either
// direction, sorted for deterministic iteration. Destinations fed by the
// same source port count as connected to each other: imports turn a net into
// a star around its driver, and the non-driver endpoints of that net are
// still tied together.
func (r *Registry) ConnectionsFor(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool)
	for _, c := range r.connections {
		if c.SrcID == id {
			seen[c.DstID] = true
		}
		if c.DstID == id {
			seen[c.SrcID] = true
			for _, sib := range r.connections {
				if sib.SrcID == c.SrcID && sib.SrcPort == c.SrcPort && sib.DstID != id {
					seen[sib.DstID] = true
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// InputSource returns the "producer.port" feeding the given input, or false
// if the input is unconnected.
func (r *Registry) InputSource(id, inputPort string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.connections {
		if c.DstID == id && c.DstPort == inputPort {
			return c.SrcID + "." + c.SrcPort, true
		}
	}
	return "", false
}

// OutputDestinations returns every "consumer.port" fed by the given output.
func (r *Registry) OutputDestinations(id, outputPort string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, c := range r.connections {
		if c.SrcID == id && c.SrcPort == outputPort {
			out = append(out, c.DstID+"."+c.DstPort)
		}
	}
	return out
}

// ConnectionCount returns the number of directed connections.
func (r *Registry) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connections)
}

// ComponentCount returns the number of components.
func (r *Registry) ComponentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.components)
}

// RecentChanges returns the last limit change-log entries in chronological
// order.
func (r *Registry) RecentChanges(limit int) []Change {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > len(r.changes) {
		limit = len(r.changes)
	}
	out := make([]Change, limit)
	copy(out, r.changes[len(r.changes)-limit:])
	return out
}

// ChangesSince returns entries with Seq greater than the cursor, in order.
func (r *Registry) ChangesSince(seq uint64) []Change {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := sort.Search(len(r.changes), func(i int) bool { return r.changes[i].Seq > seq })
	out := make([]Change, len(r.changes)-i)
	copy(out, r.changes[i:])
	return out
}

// Snapshot returns the full registry contents in insertion order.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Components:  make([]State, 0, len(r.components)),
		Connections: make([]Connection, len(r.connections)),
		Changes:     make([]Change, len(r.changes)),
	}
	for _, id := range r.order {
		snap.Components = append(snap.Components, snapshotNode(r.components[id]))
	}
	copy(snap.Connections, r.connections)
	copy(snap.Changes, r.changes)
	return snap
}

// Clear empties components, connections, and the change log together. There
// is no partial reset.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components = make(map[string]*ComponentNode)
	r.order = nil
	r.connections = nil
	r.changes = nil
	r.seq = 0
}

func (r *Registry) indexOf(id string) int {
	for i, oid := range r.order {
		if oid == id {
			return i
		}
	}
	return len(r.order)
}

func snapshotNode(node *ComponentNode) State {
	s := State{
		ID:          node.ID,
		Type:        node.Type,
		Description: node.Description,
		Position:    node.Position,
		Inputs:      make(map[string]string, len(node.Inputs)),
		Outputs:     make(map[string]string, len(node.Outputs)),
	}
	for k, v := range node.Inputs {
		s.Inputs[k] = v
	}
	for k, v := range node.Outputs {
		s.Outputs[k] = v
	}
	return s
}

package board

import "time"

// Position is a component's 2D board location.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ComponentNode is a live graph node. Port maps hold the current value per
// declared port; a port absent from the map is unset. Nodes are mutated only
// through Registry operations.
type ComponentNode struct {
	ID          string
	Type        string
	Description string
	Position    Position
	Inputs      map[string]string
	Outputs     map[string]string
}

// Connection is a directed point-to-point link: the source output port
// drives the destination input port. Fan-out is multiple connections sharing
// a source endpoint; duplicates are legal and represent redundant wiring.
type Connection struct {
	SrcID   string `json:"src_id"`
	SrcPort string `json:"src_port"`
	DstID   string `json:"dst_id"`
	DstPort string `json:"dst_port"`
}

// State is a read-only snapshot of one component.
type State struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Position    Position          `json:"position"`
	Inputs      map[string]string `json:"inputs"`
	Outputs     map[string]string `json:"outputs"`
}

// Change is one change-log entry. Seq increases monotonically within a
// session; Clear is the only reset.
type Change struct {
	Seq       uint64            `json:"seq"`
	Kind      string            `json:"kind"` // update_inputs or update_outputs
	Component string            `json:"component"`
	Ports     map[string]string `json:"ports"`
	At        time.Time         `json:"at"`
}

// Snapshot is the full serializable registry contents.
type Snapshot struct {
	Components  []State      `json:"components"`
	Connections []Connection `json:"connections"`
	Changes     []Change     `json:"changes"`
}

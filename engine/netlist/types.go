package netlist

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// Position is a 2D board location in document units.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ComponentRecord is one parsed component declaration. Records are immutable
// after parsing; port layout may still be empty here and is filled from the
// profile library at import time.
type ComponentRecord struct {
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Inputs      []string          `json:"inputs,omitempty"`
	Outputs     []string          `json:"outputs,omitempty"`
	Position    *Position         `json:"position,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Endpoint is one (component, pin) attachment on a net.
type Endpoint struct {
	Component string `json:"component"`
	Pin       string `json:"pin"`
}

// NetRecord is a named electrical net tying two or more endpoints together.
// All endpoints are electrically equivalent; direction is decided at import.
type NetRecord struct {
	Name      string     `json:"name"`
	Endpoints []Endpoint `json:"connections"`
}

// Document is the normalized output of a parse: the design as a flat list of
// component records plus the nets connecting them.
type Document struct {
	Filename   string            `json:"filename"`
	Components []ComponentRecord `json:"components"`
	Nets       []NetRecord       `json:"nets"`
}

// Summary is the reporting surface consumed by external collaborators.
type Summary struct {
	Components int            `json:"components"`
	Nets       int            `json:"nets"`
	Types      map[string]int `json:"types"`
	Filename   string         `json:"filename"`
}

// Summary returns component/net counts and a per-type breakdown.
func (d *Document) Summary() Summary {
	types := make(map[string]int)
	for _, c := range d.Components {
		t := c.Type
		if t == "" {
			t = "unknown"
		}
		types[t]++
	}
	return Summary{
		Components: len(d.Components),
		Nets:       len(d.Nets),
		Types:      types,
		Filename:   d.Filename,
	}
}

// Fingerprint returns a content hash over the sorted component names and
// sorted net names. It is order-independent and name-only: positions,
// metadata, and port wiring do not contribute, so two designs with the same
// names but different wiring hash identically. External caches use it to
// detect an already-processed design.
func (d *Document) Fingerprint() string {
	comps := make([]string, len(d.Components))
	for i, c := range d.Components {
		comps[i] = c.Name
	}
	nets := make([]string, len(d.Nets))
	for i, n := range d.Nets {
		nets[i] = n.Name
	}
	sort.Strings(comps)
	sort.Strings(nets)

	h := sha256.New()
	h.Write([]byte(strings.Join(comps, "\n")))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(nets, "\n")))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// dropThinNets removes nets with fewer than two endpoints; they carry no
// information and must not reach the import step.
func dropThinNets(nets []NetRecord) []NetRecord {
	out := nets[:0]
	for _, n := range nets {
		if len(n.Endpoints) >= 2 {
			out = append(out, n)
		}
	}
	return out
}

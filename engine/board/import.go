package board

import (
	"context"
	"log/slog"

	"github.com/BoardsightAI/boardsight/engine/netlist"
	"github.com/BoardsightAI/boardsight/engine/profile"
)

// Report summarizes one document import.
type Report struct {
	Components  int    `json:"components"`
	Connections int    `json:"connections"`
	Fingerprint string `json:"fingerprint"`
}

// ImportDocument loads a parsed document into the registry: components first
// (port layouts filled from the profile library when the record declares
// none), then each net converted to directed point-to-point connections.
//
// Driver tie-break, in endpoint order: the first endpoint whose pin is a
// declared output of its component wins; failing that, the first endpoint
// whose pin is not a declared input; failing that, the first endpoint. The
// policy depends only on the document's endpoint order, never on map
// iteration, so repeated imports pick the same driver.
func (r *Registry) ImportDocument(doc *netlist.Document, lib *profile.Library) Report {
	for _, rec := range doc.Components {
		if len(rec.Inputs) == 0 && len(rec.Outputs) == 0 {
			label := rec.Metadata["value"]
			if rec.Type != "" && rec.Type != "COMPONENT" {
				label = rec.Type + " " + label
			}
			p := lib.Match(label, rec.Metadata["footprint"])
			rec.Inputs = p.Inputs
			rec.Outputs = p.Outputs
			if rec.Type == "" || rec.Type == "COMPONENT" {
				rec.Type = p.Type
			}
		}
		r.AddComponent(rec.Name, rec)
	}

	added := 0
	for _, net := range doc.Nets {
		if len(net.Endpoints) < 2 {
			continue // thin nets are dropped before import, but stay safe
		}
		driver := r.selectDriver(net.Endpoints)
		src := net.Endpoints[driver]
		for i, ep := range net.Endpoints {
			if i == driver {
				continue
			}
			r.AddConnection(src.Component, src.Pin, ep.Component, ep.Pin)
			added++
		}
	}

	componentsImported.Add(context.Background(), int64(len(doc.Components)))
	connectionsImported.Add(context.Background(), int64(added))
	slog.Debug("board: document imported",
		"filename", doc.Filename,
		"components", len(doc.Components),
		"connections", added,
	)
	return Report{
		Components:  len(doc.Components),
		Connections: added,
		Fingerprint: doc.Fingerprint(),
	}
}

// selectDriver returns the index of the endpoint treated as the net's signal
// source.
func (r *Registry) selectDriver(eps []netlist.Endpoint) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, ep := range eps {
		if node, ok := r.components[ep.Component]; ok {
			if _, out := node.Outputs[ep.Pin]; out {
				return i
			}
		}
	}
	for i, ep := range eps {
		node, ok := r.components[ep.Component]
		if !ok {
			continue
		}
		if _, in := node.Inputs[ep.Pin]; !in {
			return i
		}
	}
	return 0
}

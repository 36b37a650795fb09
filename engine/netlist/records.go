package netlist

import (
	"encoding/json"
	"fmt"
)

// The flat record format: components and nets are already structured, so
// parsing reduces to validation and default-filling. Port layouts left empty
// here are resolved against the profile library at import time.

type flatEndpoint struct {
	Component string `json:"component"`
	Pin       string `json:"pin"`
}

type flatNet struct {
	Name        string         `json:"name"`
	Connections []flatEndpoint `json:"connections"`
}

type flatComponent struct {
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Description string            `json:"description"`
	Inputs      []string          `json:"inputs"`
	Outputs     []string          `json:"outputs"`
	Position    *Position         `json:"position"`
	Metadata    map[string]string `json:"metadata"`
}

type flatDocument struct {
	Components []flatComponent `json:"components"`
	Nets       []flatNet       `json:"nets"`
}

// parseRecords parses the flat JSON record format into a Document.
func parseRecords(filename string, data []byte) (*Document, error) {
	var in flatDocument
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, &ParseError{Filename: filename, Wrapped: fmt.Errorf("%w: %v", ErrBadRecord, err)}
	}
	if len(in.Components) == 0 {
		return nil, &ParseError{Filename: filename, Wrapped: ErrNoComponents}
	}

	doc := &Document{Filename: filename}
	for i, c := range in.Components {
		if c.Name == "" {
			return nil, &ParseError{
				Filename: filename,
				Text:     fmt.Sprintf("components[%d]", i),
				Wrapped:  fmt.Errorf("%w: missing name", ErrBadRecord),
			}
		}
		meta := c.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		doc.Components = append(doc.Components, ComponentRecord{
			Name:        c.Name,
			Type:        c.Type,
			Description: c.Description,
			Inputs:      c.Inputs,
			Outputs:     c.Outputs,
			Position:    c.Position,
			Metadata:    meta,
		})
	}

	for i, n := range in.Nets {
		if n.Name == "" {
			return nil, &ParseError{
				Filename: filename,
				Text:     fmt.Sprintf("nets[%d]", i),
				Wrapped:  fmt.Errorf("%w: missing net name", ErrBadRecord),
			}
		}
		net := NetRecord{Name: n.Name}
		for j, ep := range n.Connections {
			if ep.Component == "" || ep.Pin == "" {
				return nil, &ParseError{
					Filename: filename,
					Text:     fmt.Sprintf("nets[%d].connections[%d]", i, j),
					Wrapped:  fmt.Errorf("%w: endpoint needs component and pin", ErrBadRecord),
				}
			}
			net.Endpoints = append(net.Endpoints, Endpoint{Component: ep.Component, Pin: ep.Pin})
		}
		doc.Nets = append(doc.Nets, net)
	}

	doc.Nets = dropThinNets(doc.Nets)
	return doc, nil
}

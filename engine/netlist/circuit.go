package netlist

import (
	"fmt"
	"strings"
)

// The flat textual sub-dialect: one directive per line.
//
//	resistor R1 10k
//	led LED1 red
//	connect R1.2 LED1.anode
//
// The first word of a component line is its type, the second its name, an
// optional third its declared value; anything after that is description
// text. Each connect line becomes a two-endpoint net. Malformed lines are
// user errors and fail the whole parse.

// parseCircuit parses the textual dialect into a Document.
func parseCircuit(filename string, data []byte) (*Document, error) {
	doc := &Document{Filename: filename}
	declared := make(map[string]bool)
	netCount := 0

	for lineNo, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if !isWord(fields[0]) {
			return nil, &ParseError{Filename: filename, Line: lineNo + 1, Text: line, Wrapped: ErrBadLine}
		}

		if fields[0] == "connect" {
			if len(fields) != 3 {
				return nil, &ParseError{Filename: filename, Line: lineNo + 1, Text: line, Wrapped: ErrBadConnect}
			}
			a, errA := splitPinRef(fields[1])
			b, errB := splitPinRef(fields[2])
			if errA != nil || errB != nil {
				return nil, &ParseError{Filename: filename, Line: lineNo + 1, Text: line, Wrapped: ErrBadConnect}
			}
			if !declared[a.Component] || !declared[b.Component] {
				return nil, &ParseError{
					Filename: filename, Line: lineNo + 1, Text: line,
					Wrapped: fmt.Errorf("%w: undeclared component", ErrBadConnect),
				}
			}
			netCount++
			doc.Nets = append(doc.Nets, NetRecord{
				Name:      fmt.Sprintf("N%d", netCount),
				Endpoints: []Endpoint{a, b},
			})
			continue
		}

		// Component declaration: <type> <name> [value] [description...]
		if len(fields) < 2 {
			return nil, &ParseError{Filename: filename, Line: lineNo + 1, Text: line, Wrapped: ErrBadComponent}
		}
		rec := ComponentRecord{
			Name:     fields[1],
			Type:     fields[0],
			Metadata: map[string]string{"value": fields[0]},
		}
		if len(fields) > 2 {
			rec.Metadata["value"] = fields[2]
		}
		if len(fields) > 3 {
			rec.Description = strings.Join(fields[3:], " ")
		}
		doc.Components = append(doc.Components, rec)
		declared[rec.Name] = true
	}

	if len(doc.Components) == 0 {
		return nil, &ParseError{Filename: filename, Wrapped: ErrNoComponents}
	}
	doc.Nets = dropThinNets(doc.Nets)
	return doc, nil
}

// splitPinRef splits "R1.2" into its component and pin halves.
func splitPinRef(ref string) (Endpoint, error) {
	i := strings.IndexByte(ref, '.')
	if i <= 0 || i == len(ref)-1 {
		return Endpoint{}, fmt.Errorf("pin reference %q needs component.pin form", ref)
	}
	return Endpoint{Component: ref[:i], Pin: ref[i+1:]}, nil
}

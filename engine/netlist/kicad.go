package netlist

import (
	"regexp"
	"strconv"
	"strings"
)

// The paren-delimited hardware description subset. Only the sections the
// engine actually consumes are recognized: module/footprint sections (with
// nested fp_text reference/value, at, and pad sub-sections) and the flat
// net table. Everything else in the file is skipped by the section scanner.

const (
	defaultReference = "U?"
	defaultValue     = "COMPONENT"
)

var (
	netTableRe  = regexp.MustCompile(`\(net\s+(\d+)\s+"([^"]*)"\)`)
	padNetRe    = regexp.MustCompile(`\(net\s+(\d+)`)
	referenceRe = regexp.MustCompile(`\(fp_text\s+reference\s+"?([^"\s)]+)"?`)
	refPropRe   = regexp.MustCompile(`\(property\s+"Reference"\s+"([^"]*)"`)
	valueRe     = regexp.MustCompile(`\(fp_text\s+value\s+"?([^"\s)]+)"?`)
	valPropRe   = regexp.MustCompile(`\(property\s+"Value"\s+"([^"]*)"`)
	atRe        = regexp.MustCompile(`\(at\s+(-?\d+(?:\.\d+)?)\s+(-?\d+(?:\.\d+)?)`)
)

// section is one balanced paren-delimited region of the source text.
type section struct {
	start int // offset of the opening paren
	end   int // offset one past the closing paren
	text  string
}

// scanSections extracts every balanced section opening with "(keyword". The
// scan counts paren depth character by character, ignoring parens inside
// quoted strings, so nested sub-sections and literal parens in text fields do
// not terminate a section early. Regex alone cannot do this.
func scanSections(src, keyword string) ([]section, error) {
	var out []section
	inString := false
	for i := 0; i < len(src); i++ {
		if inString {
			if src[i] == '\\' {
				i++
			} else if src[i] == '"' {
				inString = false
			}
			continue
		}
		if src[i] == '"' {
			inString = true
			continue
		}
		if src[i] != '(' || !keywordAt(src, i+1, keyword) {
			continue
		}
		end, ok := matchParen(src, i)
		if !ok {
			return nil, &ParseError{Line: lineAt(src, i), Text: lineText(src, i), Wrapped: ErrUnbalanced}
		}
		out = append(out, section{start: i, end: end, text: src[i:end]})
		i = end - 1
	}
	return out, nil
}

// keywordAt reports whether src[i:] begins with keyword followed by a
// token boundary.
func keywordAt(src string, i int, keyword string) bool {
	if !strings.HasPrefix(src[i:], keyword) {
		return false
	}
	j := i + len(keyword)
	if j >= len(src) {
		return false
	}
	c := src[j]
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '('
}

// matchParen returns the offset one past the paren closing the one at start.
func matchParen(src string, start int) (int, bool) {
	depth := 0
	inString := false
	for i := start; i < len(src); i++ {
		c := src[i]
		if inString {
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

func lineAt(src string, offset int) int {
	return strings.Count(src[:offset], "\n") + 1
}

func lineText(src string, offset int) string {
	start := strings.LastIndexByte(src[:offset], '\n') + 1
	end := strings.IndexByte(src[offset:], '\n')
	if end < 0 {
		end = len(src)
	} else {
		end += offset
	}
	return strings.TrimSpace(src[start:end])
}

// parseKicad parses the paren-delimited board format into a Document.
func parseKicad(filename string, data []byte) (*Document, error) {
	src := string(data)

	// Net IDs are numeric; build the id → name table once per document.
	netNames := make(map[int]string)
	for _, m := range netTableRe.FindAllStringSubmatch(src, -1) {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, seen := netNames[id]; !seen {
			netNames[id] = m[2]
		}
	}

	sections, err := scanSections(src, "module")
	if err != nil {
		perr := err.(*ParseError)
		perr.Filename = filename
		return nil, perr
	}
	fpSections, err := scanSections(src, "footprint")
	if err != nil {
		perr := err.(*ParseError)
		perr.Filename = filename
		return nil, perr
	}
	sections = append(sections, fpSections...)

	doc := &Document{Filename: filename}
	netIndex := make(map[string]int)

	for _, sec := range sections {
		rec, pads, err := parseComponentSection(sec, netNames)
		if err != nil {
			perr := err.(*ParseError)
			perr.Filename = filename
			return nil, perr
		}
		doc.Components = append(doc.Components, rec)

		for _, p := range pads {
			idx, ok := netIndex[p.net]
			if !ok {
				idx = len(doc.Nets)
				netIndex[p.net] = idx
				doc.Nets = append(doc.Nets, NetRecord{Name: p.net})
			}
			doc.Nets[idx].Endpoints = append(doc.Nets[idx].Endpoints, Endpoint{
				Component: rec.Name,
				Pin:       p.name,
			})
		}
	}

	if len(doc.Components) == 0 {
		return nil, &ParseError{Filename: filename, Wrapped: ErrNoComponents}
	}
	doc.Nets = dropThinNets(doc.Nets)
	return doc, nil
}

// padRef is a pad attached to a named net.
type padRef struct {
	name string
	net  string
}

// parseComponentSection extracts one component record and its net-attached
// pads from a module/footprint section.
func parseComponentSection(sec section, netNames map[int]string) (ComponentRecord, []padRef, error) {
	body := sec.text

	rec := ComponentRecord{
		Name:     defaultReference,
		Type:     defaultValue,
		Metadata: map[string]string{},
	}

	if fp := headToken(body); fp != "" {
		rec.Metadata["footprint"] = fp
	}
	if m := referenceRe.FindStringSubmatch(body); m != nil {
		rec.Name = m[1]
	} else if m := refPropRe.FindStringSubmatch(body); m != nil {
		rec.Name = m[1]
	}
	if m := valueRe.FindStringSubmatch(body); m != nil {
		rec.Type = m[1]
	} else if m := valPropRe.FindStringSubmatch(body); m != nil {
		rec.Type = m[1]
	}
	rec.Metadata["value"] = rec.Type

	if m := atRe.FindStringSubmatch(body); m != nil {
		x, errX := strconv.ParseFloat(m[1], 64)
		y, errY := strconv.ParseFloat(m[2], 64)
		if errX == nil && errY == nil {
			rec.Position = &Position{X: x, Y: y}
		}
	}

	// Pads are themselves nested sections with their own net references, so
	// they get a second depth scan rather than a flat regex over the body.
	padSections, err := scanSections(body, "pad")
	if err != nil {
		return rec, nil, err
	}
	var pads []padRef
	for _, ps := range padSections {
		name := headToken(ps.text)
		if name == "" {
			continue
		}
		m := padNetRe.FindStringSubmatch(ps.text)
		if m == nil {
			continue // unconnected pad
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		netName, ok := netNames[id]
		if !ok || netName == "" {
			continue // net 0 is the no-connect net
		}
		pads = append(pads, padRef{name: name, net: netName})
	}
	return rec, pads, nil
}

// headToken returns the first token after the section keyword, unquoted.
// For `(module "Lib:R_0603" ...)` it returns Lib:R_0603.
func headToken(sectionText string) string {
	inner := strings.TrimPrefix(sectionText, "(")
	fields := strings.Fields(inner)
	if len(fields) < 2 {
		return ""
	}
	tok := fields[1]
	if strings.HasPrefix(tok, "(") {
		return ""
	}
	return strings.Trim(tok, `"`)
}

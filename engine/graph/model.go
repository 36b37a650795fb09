// Package graph mirrors the in-memory design registry into a Neo4j knowledge
// graph so assistant-layer collaborators can query designs with Cypher. The
// registry stays authoritative; the mirror is write-mostly and rebuilt per
// import.
package graph

// Component represents a board component node in the knowledge graph.
type Component struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"` // resistor, led, mcu, connector, ...
	Board      string            `json:"board"`
	Properties map[string]string `json:"properties"`
}

// Edge represents a directed drives-relationship between two components.
type Edge struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Type    string `json:"type"` // drives, connects_to
	SrcPort string `json:"src_port,omitempty"`
	DstPort string `json:"dst_port,omitempty"`
}

// componentToMap flattens a Component into Neo4j node properties.
func componentToMap(c Component) map[string]any {
	m := map[string]any{
		"id":    c.ID,
		"type":  c.Type,
		"board": c.Board,
	}
	for k, v := range c.Properties {
		m["prop_"+k] = v
	}
	return m
}

// componentFromProps constructs a Component from Neo4j node properties.
func componentFromProps(props map[string]any) Component {
	c := Component{
		ID:         strProp(props, "id"),
		Type:       strProp(props, "type"),
		Board:      strProp(props, "board"),
		Properties: make(map[string]string),
	}
	for k, v := range props {
		if len(k) > 5 && k[:5] == "prop_" {
			if s, ok := v.(string); ok {
				c.Properties[k[5:]] = s
			}
		}
	}
	return c
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// sanitizeRelType ensures the relationship type is a valid Cypher identifier.
func sanitizeRelType(t string) string {
	safe := make([]byte, 0, len(t))
	for i := range t {
		c := t[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			safe = append(safe, c)
		}
	}
	if len(safe) == 0 {
		return "CONNECTS_TO"
	}
	for i := range safe {
		if safe[i] >= 'a' && safe[i] <= 'z' {
			safe[i] -= 32
		}
	}
	return string(safe)
}

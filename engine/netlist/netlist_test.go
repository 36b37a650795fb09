package netlist

import (
	"errors"
	"strings"
	"testing"
)

const sampleBoard = `(kicad_pcb (version 20171130) (host pcbnew "(5.0.2)-1")
  (net 0 "")
  (net 1 "GND")
  (net 2 "VCC")
  (net 3 "LED_SIG")
  (module Resistor_SMD:R_0603 (layer F.Cu)
    (at 120.5 85.0)
    (descr "chip resistor ) with a paren in text")
    (fp_text reference R1 (at 0 0))
    (fp_text value 220 (at 0 1.2))
    (pad 1 smd rect (at -0.75 0) (net 1 "GND"))
    (pad 2 smd rect (at 0.75 0) (net 3 "LED_SIG"))
  )
  (module LED_SMD:LED_0603 (layer F.Cu)
    (at 125.0 85.0)
    (fp_text reference LED1 (at 0 0))
    (fp_text value red (at 0 1.2))
    (pad 1 smd rect (at -0.7 0) (net 3 "LED_SIG"))
    (pad 2 smd rect (at 0.7 0) (net 1 "GND"))
    (pad 3 smd rect (at 0 1))
  )
)`

func TestParseKicadBoard(t *testing.T) {
	doc, err := Parse("blinky.kicad_pcb", []byte(sampleBoard))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(doc.Components) != 2 {
		t.Fatalf("components = %d, want 2", len(doc.Components))
	}
	r1 := doc.Components[0]
	if r1.Name != "R1" || r1.Type != "220" {
		t.Errorf("r1 = %+v", r1)
	}
	if r1.Metadata["footprint"] != "Resistor_SMD:R_0603" {
		t.Errorf("footprint = %q", r1.Metadata["footprint"])
	}
	if r1.Position == nil || r1.Position.X != 120.5 || r1.Position.Y != 85.0 {
		t.Errorf("position = %+v", r1.Position)
	}

	if len(doc.Nets) != 2 {
		t.Fatalf("nets = %v", doc.Nets)
	}
	// First appearance order: R1's first pad is on GND.
	if doc.Nets[0].Name != "GND" || doc.Nets[1].Name != "LED_SIG" {
		t.Errorf("net order = %s, %s", doc.Nets[0].Name, doc.Nets[1].Name)
	}
	gnd := doc.Nets[0]
	if len(gnd.Endpoints) != 2 {
		t.Fatalf("GND endpoints = %v", gnd.Endpoints)
	}
	if gnd.Endpoints[0] != (Endpoint{Component: "R1", Pin: "1"}) {
		t.Errorf("GND first endpoint = %v", gnd.Endpoints[0])
	}
	if gnd.Endpoints[1] != (Endpoint{Component: "LED1", Pin: "2"}) {
		t.Errorf("GND second endpoint = %v", gnd.Endpoints[1])
	}
}

func TestParseKicadSkipsNoConnects(t *testing.T) {
	doc, err := Parse("blinky.kicad_pcb", []byte(sampleBoard))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// LED1 pad 3 has no net, net 0 has an empty name, and VCC has no pads:
	// none of them may surface as a net.
	for _, n := range doc.Nets {
		if n.Name == "" || n.Name == "VCC" {
			t.Errorf("unexpected net %q", n.Name)
		}
		for _, ep := range n.Endpoints {
			if ep.Component == "LED1" && ep.Pin == "3" {
				t.Error("unconnected pad leaked into a net")
			}
		}
	}
}

func TestParseKicadFootprintProperties(t *testing.T) {
	src := `(kicad_pcb
  (net 1 "SIG")
  (footprint "Package_SO:SOIC-8" (layer "F.Cu")
    (at 50 60)
    (property "Reference" "U1" (at 0 0))
    (property "Value" "ATTINY85" (at 0 1))
    (pad "4" smd rect (net 1 "SIG"))
  )
  (footprint "Connector:PinHeader" (layer "F.Cu")
    (property "Reference" "J1")
    (property "Value" "CONN")
    (pad "1" thru_hole circle (net 1 "SIG"))
  )
)`
	doc, err := Parse("modern.kicad_pcb", []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doc.Components) != 2 {
		t.Fatalf("components = %d", len(doc.Components))
	}
	if doc.Components[0].Name != "U1" || doc.Components[0].Type != "ATTINY85" {
		t.Errorf("u1 = %+v", doc.Components[0])
	}
	if len(doc.Nets) != 1 || len(doc.Nets[0].Endpoints) != 2 {
		t.Fatalf("nets = %v", doc.Nets)
	}
}

func TestParseKicadDefaults(t *testing.T) {
	src := `(kicad_pcb
  (net 1 "A")
  (module Bare (pad 1 smd rect (net 1 "A")))
  (module Bare2 (pad 1 smd rect (net 1 "A")))
)`
	doc, err := Parse("bare.kicad_pcb", []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Components[0].Name != "U?" || doc.Components[0].Type != "COMPONENT" {
		t.Errorf("defaults = %+v", doc.Components[0])
	}
}

func TestParseKicadUnbalanced(t *testing.T) {
	src := "(kicad_pcb\n  (module R_0603\n    (fp_text reference R1\n"
	_, err := Parse("broken.kicad_pcb", []byte(src))
	if !errors.Is(err, ErrUnbalanced) {
		t.Fatalf("err = %v, want ErrUnbalanced", err)
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err type = %T", err)
	}
	if perr.Filename != "broken.kicad_pcb" || perr.Line != 2 {
		t.Errorf("perr = %+v", perr)
	}
}

func TestParseKicadEmpty(t *testing.T) {
	_, err := Parse("empty.kicad_pcb", []byte("(kicad_pcb (version 4))"))
	if !errors.Is(err, ErrNoComponents) {
		t.Fatalf("err = %v, want ErrNoComponents", err)
	}
}

func TestScanSectionsIgnoresQuotedParens(t *testing.T) {
	src := `(module A (descr "close ) here") (pad 1 (net 1 "X")))`
	secs, err := scanSections(src, "module")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(secs) != 1 {
		t.Fatalf("sections = %d", len(secs))
	}
	if !strings.HasSuffix(secs[0].text, `"X")))`) {
		t.Errorf("section ended early: %q", secs[0].text)
	}
}

func TestScanSectionsSkipsQuotedOpeners(t *testing.T) {
	// A "(module" inside a string must not start a phantom section.
	src := `(module A (descr "see (module B) in the docs") (pad 1 (net 1 "X"))) (module C (y))`
	secs, err := scanSections(src, "module")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(secs) != 2 {
		t.Fatalf("sections = %d, want 2", len(secs))
	}
	if !strings.HasPrefix(secs[0].text, "(module A") || !strings.HasPrefix(secs[1].text, "(module C") {
		t.Fatalf("sections = %+v", secs)
	}
}

func TestScanSectionsKeywordBoundary(t *testing.T) {
	// "modules" must not match the "module" keyword.
	src := `(modules (x)) (module B (y))`
	secs, err := scanSections(src, "module")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(secs) != 1 || !strings.HasPrefix(secs[0].text, "(module B") {
		t.Fatalf("sections = %+v", secs)
	}
}

func TestParseRecords(t *testing.T) {
	src := `{
  "components": [
    {"name": "U1", "type": "mcu", "outputs": ["GPIO1"], "position": {"x": 10, "y": 20}},
    {"name": "LED1", "type": "led", "inputs": ["anode", "cathode"]}
  ],
  "nets": [
    {"name": "SIG", "connections": [
      {"component": "U1", "pin": "GPIO1"},
      {"component": "LED1", "pin": "anode"}
    ]},
    {"name": "DANGLING", "connections": [{"component": "U1", "pin": "GND"}]}
  ]
}`
	doc, err := Parse("design.json", []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doc.Components) != 2 || len(doc.Nets) != 1 {
		t.Fatalf("doc = %d components, %d nets", len(doc.Components), len(doc.Nets))
	}
	if doc.Nets[0].Name != "SIG" {
		t.Errorf("thin net survived: %v", doc.Nets)
	}
	if doc.Components[0].Position == nil || doc.Components[0].Position.X != 10 {
		t.Errorf("position = %+v", doc.Components[0].Position)
	}
}

func TestParseRecordsValidation(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"not json", `{nope`},
		{"no components", `{"components": []}`},
		{"missing name", `{"components": [{"type": "led"}]}`},
		{"missing net name", `{"components": [{"name": "A"}], "nets": [{"connections": []}]}`},
		{"bad endpoint", `{"components": [{"name": "A"}], "nets": [{"name": "N", "connections": [{"component": "A"}]}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse("bad.json", []byte(tc.src))
			if err == nil {
				t.Fatal("expected error")
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("err type = %T", err)
			}
		})
	}
}

func TestParseCircuit(t *testing.T) {
	src := `# two-component chain
resistor R1 220 current limiter
led LED1 red
connect R1.2 LED1.anode
`
	doc, err := Parse("chain.ckt", []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doc.Components) != 2 {
		t.Fatalf("components = %d", len(doc.Components))
	}
	if doc.Components[0].Description != "current limiter" {
		t.Errorf("description = %q", doc.Components[0].Description)
	}
	if len(doc.Nets) != 1 || doc.Nets[0].Name != "N1" {
		t.Fatalf("nets = %v", doc.Nets)
	}
}

func TestParseCircuitErrors(t *testing.T) {
	t.Run("undeclared component", func(t *testing.T) {
		_, err := Parse("x.ckt", []byte("resistor R1 220\nconnect R1.1 GHOST.2\n"))
		if !errors.Is(err, ErrBadConnect) {
			t.Fatalf("err = %v, want ErrBadConnect", err)
		}
		var perr *ParseError
		if !errors.As(err, &perr) || perr.Line != 2 {
			t.Fatalf("perr = %+v", perr)
		}
	})
	t.Run("malformed pin ref", func(t *testing.T) {
		_, err := Parse("x.ckt", []byte("resistor R1\nresistor R2\nconnect R1 R2.1\n"))
		if !errors.Is(err, ErrBadConnect) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("non-directive line", func(t *testing.T) {
		_, err := Parse("x.ckt", []byte("resistor R1 220\n@#$! junk line\n"))
		if !errors.Is(err, ErrBadLine) {
			t.Fatalf("err = %v, want ErrBadLine", err)
		}
		var perr *ParseError
		if !errors.As(err, &perr) || perr.Line != 2 {
			t.Fatalf("perr = %+v", perr)
		}
	})
	t.Run("bare component line", func(t *testing.T) {
		_, err := Parse("x.ckt", []byte("resistor\n"))
		if !errors.Is(err, ErrBadComponent) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("empty file", func(t *testing.T) {
		_, err := Parse("x.ckt", []byte("# only comments\n"))
		if !errors.Is(err, ErrNoComponents) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestParseSniffsContent(t *testing.T) {
	kicad := `(kicad_pcb (net 1 "A") (module M (pad 1 smd (net 1 "A"))) (module N (pad 1 smd (net 1 "A"))))`
	if _, err := Parse("mystery.dat", []byte(kicad)); err != nil {
		t.Errorf("paren sniff failed: %v", err)
	}
	if _, err := Parse("mystery.dat", []byte(`{"components": [{"name": "A"}]}`)); err != nil {
		t.Errorf("json sniff failed: %v", err)
	}
	if _, err := Parse("mystery.dat", []byte("resistor R1 220\n")); err != nil {
		t.Errorf("circuit sniff failed: %v", err)
	}

	_, err := Parse("mystery.dat", []byte("%PDF-1.4 binary junk"))
	var ufe *UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("err = %v, want UnsupportedFormatError", err)
	}
	if ufe.Filename != "mystery.dat" {
		t.Errorf("filename = %q", ufe.Filename)
	}
}

func TestSummary(t *testing.T) {
	doc := &Document{
		Filename: "s.ckt",
		Components: []ComponentRecord{
			{Name: "R1", Type: "resistor"},
			{Name: "R2", Type: "resistor"},
			{Name: "X1"},
		},
		Nets: []NetRecord{{Name: "N1"}},
	}
	s := doc.Summary()
	if s.Components != 3 || s.Nets != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.Types["resistor"] != 2 || s.Types["unknown"] != 1 {
		t.Errorf("types = %v", s.Types)
	}
}

func TestFingerprintIgnoresWiring(t *testing.T) {
	a := &Document{
		Components: []ComponentRecord{{Name: "R1"}, {Name: "LED1"}},
		Nets: []NetRecord{{Name: "N1", Endpoints: []Endpoint{
			{Component: "R1", Pin: "2"}, {Component: "LED1", Pin: "anode"},
		}}},
	}
	b := &Document{
		Components: []ComponentRecord{{Name: "LED1"}, {Name: "R1"}},
		Nets: []NetRecord{{Name: "N1", Endpoints: []Endpoint{
			{Component: "R1", Pin: "1"}, {Component: "LED1", Pin: "cathode"},
		}}},
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint depends on order or wiring")
	}

	c := &Document{Components: []ComponentRecord{{Name: "R1"}}}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different designs hash identically")
	}
}

func TestFingerprintSeparatesFields(t *testing.T) {
	// A component named like a net must not collide across the field
	// boundary.
	a := &Document{Components: []ComponentRecord{{Name: "X"}}, Nets: []NetRecord{{Name: "Y"}}}
	b := &Document{Components: []ComponentRecord{{Name: "X"}, {Name: "Y"}}}
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("component and net names collide in the hash")
	}
}

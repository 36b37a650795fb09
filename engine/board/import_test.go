package board

import (
	"reflect"
	"testing"

	"github.com/BoardsightAI/boardsight/engine/netlist"
	"github.com/BoardsightAI/boardsight/engine/profile"
)

// blinkyDoc is the smallest interesting design: an MCU driving an LED
// through a resistor, plus a shared ground.
func blinkyDoc() *netlist.Document {
	return &netlist.Document{
		Filename: "blinky.json",
		Components: []netlist.ComponentRecord{
			{Name: "U1", Type: "mcu", Inputs: []string{"VCC", "GND"}, Outputs: []string{"GPIO1"}},
			{Name: "R1", Type: "resistor", Inputs: []string{"1"}, Outputs: []string{"2"}},
			{Name: "LED1", Type: "led", Inputs: []string{"anode", "cathode"}},
		},
		Nets: []netlist.NetRecord{
			{Name: "SIG", Endpoints: []netlist.Endpoint{
				{Component: "U1", Pin: "GPIO1"}, {Component: "R1", Pin: "1"},
			}},
			{Name: "LED_IN", Endpoints: []netlist.Endpoint{
				{Component: "R1", Pin: "2"}, {Component: "LED1", Pin: "anode"},
			}},
			{Name: "GND", Endpoints: []netlist.Endpoint{
				{Component: "LED1", Pin: "cathode"}, {Component: "U1", Pin: "GND"},
			}},
		},
	}
}

func TestImportDocument(t *testing.T) {
	reg := NewRegistry()
	report := reg.ImportDocument(blinkyDoc(), profile.NewLibrary())

	if report.Components != 3 || report.Connections != 3 {
		t.Fatalf("report = %+v", report)
	}
	if report.Fingerprint == "" {
		t.Error("empty fingerprint")
	}

	// SIG: GPIO1 is a declared output, so U1 drives.
	if src, _ := reg.InputSource("R1", "1"); src != "U1.GPIO1" {
		t.Errorf("R1.1 source = %q", src)
	}
	// LED_IN: R1.2 is a declared output, so R1 drives.
	if src, _ := reg.InputSource("LED1", "anode"); src != "R1.2" {
		t.Errorf("LED1.anode source = %q", src)
	}
	// GND: neither endpoint is an output; LED1.cathode is a declared input,
	// U1.GND is too, so the first endpoint drives.
	if src, _ := reg.InputSource("U1", "GND"); src != "LED1.cathode" {
		t.Errorf("U1.GND source = %q", src)
	}
}

func TestImportFillsPortsFromProfiles(t *testing.T) {
	doc := &netlist.Document{
		Filename: "bare.json",
		Components: []netlist.ComponentRecord{
			{Name: "U1", Type: "COMPONENT", Metadata: map[string]string{"value": "esp32"}},
			{Name: "R1", Type: "resistor", Metadata: map[string]string{"value": "220"}},
		},
		Nets: []netlist.NetRecord{
			{Name: "SIG", Endpoints: []netlist.Endpoint{
				{Component: "R1", Pin: "2"}, {Component: "U1", Pin: "GPIO1"},
			}},
		},
	}
	reg := NewRegistry()
	reg.ImportDocument(doc, profile.NewLibrary())

	u1, _ := reg.State("U1")
	if u1.Type != "mcu" {
		t.Errorf("U1 type = %q, profile type not applied", u1.Type)
	}
	if _, ok := u1.Outputs["GPIO1"]; !ok {
		t.Errorf("U1 outputs = %v", u1.Outputs)
	}

	r1, _ := reg.State("R1")
	if r1.Type != "resistor" {
		t.Errorf("R1 type = %q, explicit type overwritten", r1.Type)
	}
	if _, ok := r1.Outputs["2"]; !ok {
		t.Errorf("R1 outputs = %v", r1.Outputs)
	}

	// Both endpoints are declared outputs; R1 comes first in the net.
	if src, _ := reg.InputSource("U1", "GPIO1"); src != "R1.2" {
		t.Errorf("driver = %q", src)
	}
}

func TestImportStarTopology(t *testing.T) {
	doc := &netlist.Document{
		Filename: "bus.json",
		Components: []netlist.ComponentRecord{
			{Name: "U1", Type: "mcu", Outputs: []string{"GPIO1"}},
			{Name: "A", Type: "led", Inputs: []string{"in"}},
			{Name: "B", Type: "led", Inputs: []string{"in"}},
			{Name: "C", Type: "led", Inputs: []string{"in"}},
		},
		Nets: []netlist.NetRecord{
			{Name: "BUS", Endpoints: []netlist.Endpoint{
				{Component: "A", Pin: "in"},
				{Component: "U1", Pin: "GPIO1"},
				{Component: "B", Pin: "in"},
				{Component: "C", Pin: "in"},
			}},
		},
	}
	reg := NewRegistry()
	report := reg.ImportDocument(doc, profile.NewLibrary())

	// One three-consumer net becomes three connections out of the driver,
	// even though the driver is not the first endpoint.
	if report.Connections != 3 {
		t.Fatalf("connections = %d", report.Connections)
	}
	if got := reg.OutputDestinations("U1", "GPIO1"); len(got) != 3 {
		t.Errorf("destinations = %v", got)
	}
	// Non-driver endpoints of a net still see each other.
	if got := reg.ConnectionsFor("A"); !reflect.DeepEqual(got, []string{"B", "C", "U1"}) {
		t.Errorf("A connections = %v", got)
	}
}

func TestImportIsDeterministic(t *testing.T) {
	a, b := NewRegistry(), NewRegistry()
	lib := profile.NewLibrary()
	a.ImportDocument(blinkyDoc(), lib)
	b.ImportDocument(blinkyDoc(), lib)

	sa, sb := a.Snapshot(), b.Snapshot()
	if !reflect.DeepEqual(sa.Connections, sb.Connections) {
		t.Errorf("imports diverged:\n%v\n%v", sa.Connections, sb.Connections)
	}
}

func TestImportSkipsThinNets(t *testing.T) {
	doc := &netlist.Document{
		Filename: "thin.json",
		Components: []netlist.ComponentRecord{
			{Name: "U1", Type: "mcu", Outputs: []string{"GPIO1"}},
		},
		Nets: []netlist.NetRecord{
			{Name: "DANGLING", Endpoints: []netlist.Endpoint{{Component: "U1", Pin: "GPIO1"}}},
		},
	}
	reg := NewRegistry()
	report := reg.ImportDocument(doc, profile.NewLibrary())
	if report.Connections != 0 || reg.ConnectionCount() != 0 {
		t.Errorf("thin net produced connections: %+v", report)
	}
}

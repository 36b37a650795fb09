// Package profile holds the library of known component types and their
// default port layouts. Raw netlist data rarely declares ports, so the import
// step asks the library for each component's layout. The library is an
// explicitly constructed, caller-owned object with a load-once method; there
// is no process-wide cache, and tests can load distinct libraries in
// isolation.
package profile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile describes one known component type.
type Profile struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Inputs      []string `yaml:"inputs"`
	Outputs     []string `yaml:"outputs"`
	// Footprints are substrings matched against a component's footprint name.
	Footprints []string `yaml:"footprints"`
	// Aliases are extra substrings matched against a component's value label.
	Aliases []string `yaml:"aliases"`
}

// Default is the profile used when nothing matches: a single generic input
// and no outputs.
var Default = Profile{
	Name:   "generic",
	Type:   "component",
	Inputs: []string{"in"},
}

// Library is a loaded set of profiles. The zero value is unusable; construct
// with NewLibrary, which starts from the built-in set.
type Library struct {
	profiles []Profile
	loaded   bool
}

// NewLibrary returns a library holding the built-in profiles.
func NewLibrary() *Library {
	return &Library{profiles: builtin()}
}

// Load reads additional profiles from a YAML file, once. Later calls are
// no-ops so a shared library cannot be reloaded mid-session.
func (l *Library) Load(path string) error {
	if l.loaded {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("profile: read %s: %w", path, err)
	}
	var in struct {
		Profiles []Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("profile: parse %s: %w", path, err)
	}
	// User profiles take precedence over same-named builtins.
	l.profiles = append(in.Profiles, l.profiles...)
	l.loaded = true
	return nil
}

// Len returns the number of profiles in the library.
func (l *Library) Len() int { return len(l.profiles) }

// Match resolves a component's value label and footprint name to a profile.
// Order: footprint substring match, then profile name/type appearing in the
// value, then ordered prefix heuristics on the value, then Default.
func (l *Library) Match(value, footprint string) Profile {
	lv := strings.ToLower(value)
	lf := strings.ToLower(footprint)

	for _, p := range l.profiles {
		for _, sub := range p.Footprints {
			if sub != "" && strings.Contains(lf, strings.ToLower(sub)) {
				return p
			}
		}
	}
	for _, p := range l.profiles {
		if p.Name != "" && strings.Contains(lv, strings.ToLower(p.Name)) {
			return p
		}
		if p.Type != "" && strings.Contains(lv, strings.ToLower(p.Type)) {
			return p
		}
		for _, a := range p.Aliases {
			if a != "" && strings.Contains(lv, strings.ToLower(a)) {
				return p
			}
		}
	}
	if p, ok := l.heuristic(lv); ok {
		return p
	}
	return Default
}

// heuristic applies the ordered fallback rules on the value label.
func (l *Library) heuristic(lv string) (Profile, bool) {
	switch {
	case strings.HasPrefix(lv, "res") || strings.HasPrefix(lv, "r"):
		return l.byName("resistor")
	case strings.HasPrefix(lv, "led"):
		return l.byName("led")
	case strings.Contains(lv, "mcu") || strings.Contains(lv, "esp") || strings.Contains(lv, "stm"):
		return l.byName("mcu")
	case strings.HasPrefix(lv, "cap"):
		return l.byName("capacitor")
	case strings.HasPrefix(lv, "sw"):
		return l.byName("switch")
	}
	return Profile{}, false
}

func (l *Library) byName(name string) (Profile, bool) {
	for _, p := range l.profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// builtin is the compiled-in profile set covering the component classes the
// assistant reasons about most often.
func builtin() []Profile {
	return []Profile{
		{
			Name: "resistor", Type: "resistor",
			Description: "fixed resistor",
			Inputs:      []string{"1"},
			Outputs:     []string{"2"},
			Footprints:  []string{"R_0402", "R_0603", "R_0805", "R_1206", "Resistor"},
			Aliases:     []string{"ohm"},
		},
		{
			Name: "capacitor", Type: "capacitor",
			Description: "capacitor",
			Inputs:      []string{"1", "2"},
			Footprints:  []string{"C_0402", "C_0603", "C_0805", "Capacitor"},
			Aliases:     []string{"farad"},
		},
		{
			Name: "led", Type: "led",
			Description: "light-emitting diode",
			Inputs:      []string{"anode", "cathode"},
			Footprints:  []string{"LED_", "D_0603", "D_0805"},
		},
		{
			Name: "mcu", Type: "mcu",
			Description: "microcontroller",
			Inputs:      []string{"VCC", "GND"},
			Outputs:     []string{"GPIO1", "GPIO2", "GPIO3", "GPIO4"},
			Footprints:  []string{"QFP", "QFN", "ESP32", "SOIC"},
			Aliases:     []string{"esp32", "atmega", "stm32"},
		},
		{
			Name: "regulator", Type: "regulator",
			Description: "voltage regulator",
			Inputs:      []string{"VIN", "GND"},
			Outputs:     []string{"VOUT"},
			Footprints:  []string{"SOT-23", "SOT-223", "TO-220"},
			Aliases:     []string{"ldo", "ams1117", "7805"},
		},
		{
			Name: "switch", Type: "switch",
			Description: "momentary or toggle switch",
			Inputs:      []string{"1"},
			Outputs:     []string{"2"},
			Footprints:  []string{"SW_", "Button"},
			Aliases:     []string{"button", "tactile"},
		},
		{
			Name: "connector", Type: "connector",
			Description: "board connector",
			Inputs:      []string{"1", "2", "3", "4"},
			Footprints:  []string{"PinHeader", "Conn_", "USB"},
			Aliases:     []string{"header"},
		},
	}
}

// Package netlist turns raw hardware descriptions into a normalized design
// document: a flat list of component records plus the nets tying their pins
// together. Three input forms are supported — a paren-delimited board format
// parsed by balanced-section scanning, a flat JSON record format, and a small
// textual directive dialect. A failed parse yields no partial document.
package netlist

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
)

// Parse dispatches on the filename extension, falling back to content
// sniffing, and returns the parsed document or an UnsupportedFormatError.
func Parse(filename string, data []byte) (*Document, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".kicad_pcb", ".kicad_mod", ".brd":
		return parseKicad(filename, data)
	case ".json":
		return parseRecords(filename, data)
	case ".ckt", ".net":
		return parseCircuit(filename, data)
	}

	switch {
	case bytes.HasPrefix(bytes.TrimSpace(data), []byte("(")):
		return parseKicad(filename, data)
	case bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")):
		return parseRecords(filename, data)
	case looksLikeCircuit(data):
		return parseCircuit(filename, data)
	}
	return nil, &UnsupportedFormatError{Filename: filename}
}

// ParseFile reads and parses a netlist file from disk.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(filepath.Base(path), data)
}

// looksLikeCircuit reports whether the data resembles the textual dialect:
// its first non-comment line is a word directive.
func looksLikeCircuit(data []byte) bool {
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		return len(fields) >= 2 && isWord(fields[0])
	}
	return false
}

func isWord(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(s) > 0
}

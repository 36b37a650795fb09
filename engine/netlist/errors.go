package netlist

import (
	"errors"
	"fmt"
)

// Sentinel errors for parse failures.
var (
	ErrNoComponents = errors.New("no components found")
	ErrBadComponent = errors.New("unparseable component declaration")
	ErrBadConnect   = errors.New("unparseable connect directive")
	ErrBadLine      = errors.New("unsupported line")
	ErrUnbalanced   = errors.New("unbalanced parenthesis")
	ErrBadRecord    = errors.New("invalid record")
)

// ParseError is fatal to the parse call that raised it; there is no partial
// recovery. Line and Text identify the offending source line when known.
type ParseError struct {
	Filename string
	Line     int
	Text     string
	Wrapped  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("netlist: %s:%d: %s (%q)", e.Filename, e.Line, e.Wrapped, e.Text)
	}
	return fmt.Sprintf("netlist: %s: %s", e.Filename, e.Wrapped)
}

func (e *ParseError) Unwrap() error { return e.Wrapped }

// UnsupportedFormatError fires before any parsing begins, when neither the
// file extension nor the content is recognized.
type UnsupportedFormatError struct {
	Filename string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("netlist: %s: unsupported format", e.Filename)
}

package intake

import (
	"time"

	"github.com/BoardsightAI/boardsight/engine/board"
	"github.com/BoardsightAI/boardsight/engine/netlist"
)

// DesignSubmission is the message body published to the intake subject. The
// payload carries raw netlist bytes in any supported dialect; Filename drives
// format dispatch.
type DesignSubmission struct {
	Board       string    `json:"board"`
	Filename    string    `json:"filename"`
	Payload     []byte    `json:"payload"`
	SubmittedAt time.Time `json:"submitted_at,omitempty"`
}

// LoadedDesign is a submission after parsing.
type LoadedDesign struct {
	DesignSubmission
	Document    *netlist.Document
	Fingerprint string
}

// ImportedDesign is a loaded design after registry import.
type ImportedDesign struct {
	LoadedDesign
	Report board.Report
}

// boardName resolves the board label, falling back to the filename.
func (s DesignSubmission) boardName() string {
	if s.Board != "" {
		return s.Board
	}
	return s.Filename
}

package export

import (
	"fmt"
	"strings"
)

// TextExporter writes the plain-text transcript: a header, then numbered
// question and answer blocks separated by rules.
type TextExporter struct{}

func (e *TextExporter) Export(t Transcript) ([]byte, error) {
	candidate := t.Candidate
	if candidate == "" {
		candidate = "Candidate"
	}
	name := speaker(candidate)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Interview Transcript\nDate: %s\nCandidate: %s\n\n", t.Date.Format("1/2/2006"), candidate)
	sb.WriteString(strings.Repeat("=", 50))
	sb.WriteString("\n\n")

	for i, turn := range t.Turns {
		fmt.Fprintf(&sb, "Q%d: %s\n\n%s: %s\n\n", i+1, turn.Question, name, turn.Answer)
		sb.WriteString(strings.Repeat("-", 50))
		sb.WriteString("\n\n")
	}
	return []byte(sb.String()), nil
}

func (e *TextExporter) FileExtension() string { return ".txt" }

func (e *TextExporter) MimeType() string { return "text/plain; charset=utf-8" }

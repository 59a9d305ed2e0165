// Package export renders a finished interview as a downloadable transcript.
package export

import (
	"fmt"
	"strings"
	"time"

	"interview_agent/internal/conversation"
)

// Transcript is the input to every exporter.
type Transcript struct {
	Candidate string
	Date      time.Time
	Turns     []conversation.Turn
}

// Exporter renders a transcript in one format.
type Exporter interface {
	Export(t Transcript) ([]byte, error)
	FileExtension() string
	MimeType() string
}

// Formats lists the accepted format names.
func Formats() []string {
	return []string{"text", "json"}
}

// For returns the exporter for a format name. An empty name selects text.
func For(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text", "txt":
		return &TextExporter{}, nil
	case "json":
		return &JSONExporter{Indent: "  "}, nil
	default:
		return nil, fmt.Errorf("unsupported transcript format %q (want one of %s)", format, strings.Join(Formats(), ", "))
	}
}

// FileName is interview-transcript-YYYY-MM-DD with the exporter's extension.
func FileName(e Exporter, date time.Time) string {
	return "interview-transcript-" + date.Format("2006-01-02") + e.FileExtension()
}

// speaker is the candidate's first name, used to label answers.
func speaker(candidate string) string {
	fields := strings.Fields(candidate)
	if len(fields) == 0 {
		return "Candidate"
	}
	return fields[0]
}

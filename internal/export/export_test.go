package export

import (
	"testing"
	"time"

	"interview_agent/internal/conversation"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTranscript() Transcript {
	return Transcript{
		Candidate: "Sean Kennedy",
		Date:      time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC),
		Turns: []conversation.Turn{
			{Question: "Tell me about yourself", Answer: "I build things.", Mode: conversation.ModeGraph},
			{Question: "Favourite editor?", Answer: "Vim.", Mode: conversation.ModeModel},
		},
	}
}

func TestTextExport(t *testing.T) {
	out, err := (&TextExporter{}).Export(sampleTranscript())
	require.NoError(t, err)

	rule := "=================================================="
	sep := "--------------------------------------------------"
	want := "Interview Transcript\nDate: 10/19/2026\nCandidate: Sean Kennedy\n\n" + rule + "\n\n" +
		"Q1: Tell me about yourself\n\nSean: I build things.\n\n" + sep + "\n\n" +
		"Q2: Favourite editor?\n\nSean: Vim.\n\n" + sep + "\n\n"
	assert.Equal(t, want, string(out))
}

func TestTextExportWithoutTurns(t *testing.T) {
	out, err := (&TextExporter{}).Export(Transcript{Date: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Contains(t, string(out), "Candidate: Candidate\n")
	assert.NotContains(t, string(out), "Q1:")
}

func TestJSONExport(t *testing.T) {
	out, err := (&JSONExporter{}).Export(sampleTranscript())
	require.NoError(t, err)

	var doc jsonTranscript
	require.NoError(t, sonic.Unmarshal(out, &doc))
	assert.Equal(t, "2026-10-19", doc.Date)
	require.Len(t, doc.Turns, 2)
	assert.Equal(t, 2, doc.Turns[1].Number)
	assert.Equal(t, "model", doc.Turns[1].Source)
}

func TestFor(t *testing.T) {
	e, err := For("")
	require.NoError(t, err)
	assert.Equal(t, ".txt", e.FileExtension())

	e, err = For("JSON")
	require.NoError(t, err)
	assert.Equal(t, "application/json", e.MimeType())

	_, err = For("pdf")
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	date := time.Date(2026, 10, 19, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "interview-transcript-2026-10-19.txt", FileName(&TextExporter{}, date))
	assert.Equal(t, "interview-transcript-2026-10-19.json", FileName(&JSONExporter{}, date))
}

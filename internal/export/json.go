package export

import (
	"fmt"

	"github.com/bytedance/sonic"
)

type jsonTranscript struct {
	Candidate string     `json:"candidate"`
	Date      string     `json:"date"`
	Turns     []jsonTurn `json:"turns"`
}

type jsonTurn struct {
	Number   int    `json:"number"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Source   string `json:"source,omitempty"`
}

// JSONExporter writes the transcript as a JSON document.
type JSONExporter struct {
	Indent string
}

func (e *JSONExporter) Export(t Transcript) ([]byte, error) {
	doc := jsonTranscript{
		Candidate: t.Candidate,
		Date:      t.Date.Format("2006-01-02"),
		Turns:     make([]jsonTurn, 0, len(t.Turns)),
	}
	for i, turn := range t.Turns {
		doc.Turns = append(doc.Turns, jsonTurn{
			Number:   i + 1,
			Question: turn.Question,
			Answer:   turn.Answer,
			Source:   string(turn.Mode),
		})
	}

	var (
		data []byte
		err  error
	)
	if e.Indent != "" {
		data, err = sonic.ConfigStd.MarshalIndent(doc, "", e.Indent)
	} else {
		data, err = sonic.ConfigStd.Marshal(doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transcript: %w", err)
	}
	return data, nil
}

func (e *JSONExporter) FileExtension() string { return ".json" }

func (e *JSONExporter) MimeType() string { return "application/json" }

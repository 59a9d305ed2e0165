package pkg

import "strings"

// HTTP wire types shared by the server and its clients.

// UIMessagePart is one part of a chat UI message. Only "text" parts carry
// content the server reads.
type UIMessagePart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// UIMessage is a chat message as sent by the web UI
type UIMessage struct {
	ID    string          `json:"id,omitempty"`
	Role  string          `json:"role"` // user, assistant, system
	Parts []UIMessagePart `json:"parts"`
	// Content is accepted from clients that send plain {role, content} messages.
	Content string `json:"content,omitempty"`
}

// Text joins the message's text parts
func (m UIMessage) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type == "text" || p.Type == "" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	ID       string      `json:"id,omitempty"`
	Messages []UIMessage `json:"messages"`
}

// QuestionRequest is the body of POST /sessions/{id}/questions
type QuestionRequest struct {
	Question string `json:"question"`
}

// UI message stream chunk types
const (
	ChunkStart     = "start"
	ChunkTextStart = "text-start"
	ChunkTextDelta = "text-delta"
	ChunkTextEnd   = "text-end"
	ChunkFollowUps = "data-followups"
	ChunkFinish    = "finish"
	ChunkError     = "error"
)

// StreamChunk is one server-sent event of a UI message stream
type StreamChunk struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId,omitempty"`
	ID        string `json:"id,omitempty"`
	Delta     string `json:"delta,omitempty"`
	Data      any    `json:"data,omitempty"`
	ErrorText string `json:"errorText,omitempty"`
}

// FollowUpData is the payload of a data-followups chunk
type FollowUpData struct {
	Source    string        `json:"source"` // graph or model
	Questions []string      `json:"questions"`
	Progress  *ProgressInfo `json:"progress,omitempty"`
}

// ProgressInfo mirrors the interview progress bar
type ProgressInfo struct {
	Current  int  `json:"current"`
	Total    int  `json:"total"`
	Complete bool `json:"complete"`
}

// TurnInfo is a recorded question and answer
type TurnInfo struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Source    string `json:"source,omitempty"`
	CreatedAt string `json:"created_at"`
}

// SessionResponse describes a stored interview session
type SessionResponse struct {
	ID                 string       `json:"id"`
	Turns              []TurnInfo   `json:"turns"`
	SuggestedQuestions []string     `json:"suggested_questions"`
	Progress           ProgressInfo `json:"progress"`
	CreatedAt          string       `json:"created_at,omitempty"`
	UpdatedAt          string       `json:"updated_at,omitempty"`
}

// QuestionsResponse lists suggested questions
type QuestionsResponse struct {
	Questions []string `json:"questions"`
}

// ErrorBody is the JSON error envelope
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

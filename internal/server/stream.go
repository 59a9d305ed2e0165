package server

import (
	"fmt"
	"net/http"

	"interview_agent/internal/conversation"
	"interview_agent/pkg"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// uiStream writes a UI message stream: server-sent events whose data is a
// JSON chunk, terminated by [DONE].
type uiStream struct {
	w         http.ResponseWriter
	flusher   http.Flusher
	messageID string
	textID    string
	failed    bool
}

func newUIStream(w http.ResponseWriter, flusher http.Flusher) *uiStream {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("x-vercel-ai-ui-message-stream", "v1")
	w.WriteHeader(http.StatusOK)

	return &uiStream{
		w:         w,
		flusher:   flusher,
		messageID: "msg-" + uuid.NewString(),
		textID:    "txt-" + uuid.NewString(),
	}
}

func (s *uiStream) send(chunk pkg.StreamChunk) {
	if s.failed {
		return
	}
	data, err := sonic.Marshal(chunk)
	if err != nil {
		s.failed = true
		return
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		// client went away; the request context cancels the model call
		s.failed = true
		return
	}
	s.flusher.Flush()
}

// sink translates controller events into stream chunks.
func (s *uiStream) sink(progress func() conversation.Progress) conversation.Sink {
	return func(e conversation.Event) {
		switch e.Type {
		case conversation.EventStarted:
			s.send(pkg.StreamChunk{Type: pkg.ChunkStart, MessageID: s.messageID})
			s.send(pkg.StreamChunk{Type: pkg.ChunkTextStart, ID: s.textID})
		case conversation.EventDelta:
			s.send(pkg.StreamChunk{Type: pkg.ChunkTextDelta, ID: s.textID, Delta: e.Text})
		case conversation.EventFollowUps:
			p := progress()
			s.send(pkg.StreamChunk{Type: pkg.ChunkFollowUps, Data: pkg.FollowUpData{
				Source:    string(e.Mode),
				Questions: e.FollowUps,
				Progress:  &pkg.ProgressInfo{Current: p.Current, Total: p.Total, Complete: p.Complete},
			}})
		case conversation.EventFinished:
			s.send(pkg.StreamChunk{Type: pkg.ChunkTextEnd, ID: s.textID})
		}
	}
}

func (s *uiStream) finish() {
	s.send(pkg.StreamChunk{Type: pkg.ChunkFinish})
	s.done()
}

// fail ends the stream in the error state instead of finish.
func (s *uiStream) fail(message string) {
	s.send(pkg.StreamChunk{Type: pkg.ChunkError, ErrorText: message})
	s.done()
}

func (s *uiStream) done() {
	if s.failed {
		return
	}
	fmt.Fprint(s.w, "data: [DONE]\n\n")
	s.flusher.Flush()
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"interview_agent/internal/conversation"
	"interview_agent/internal/export"
	"interview_agent/internal/gateway"
	"interview_agent/internal/storage"
	"interview_agent/pkg"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// handleChat answers the last user message of a stateless conversation. The
// earlier messages are paired into turns so the model sees the history.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req pkg.ChatRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, "invalid_json", http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		s.reject(w, "no_messages", http.StatusBadRequest, "messages are required")
		return
	}
	if len(req.Messages) > s.cfg.MaxMessages {
		s.reject(w, "too_many_messages", http.StatusBadRequest,
			fmt.Sprintf("too many messages (max %d)", s.cfg.MaxMessages))
		return
	}

	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" {
		s.reject(w, "no_question", http.StatusBadRequest, "the last message must come from the user")
		return
	}
	question, ok := s.checkQuestion(w, last.Text())
	if !ok {
		return
	}

	ctrl := s.newController()
	if err := ctrl.Restore(conversation.Snapshot{Turns: turnsFromMessages(req.Messages[:len(req.Messages)-1])}); err != nil {
		writeError(w, "Failed to restore conversation", "internal_error", http.StatusInternalServerError)
		return
	}

	s.streamAnswer(w, r, ctrl, question)
}

// turnsFromMessages pairs each assistant message with the user message
// before it. Unanswered or system messages are skipped.
func turnsFromMessages(messages []pkg.UIMessage) []conversation.Turn {
	turns := []conversation.Turn{}
	var question string
	for _, m := range messages {
		text := strings.TrimSpace(m.Text())
		switch m.Role {
		case "user":
			question = text
		case "assistant":
			if question == "" || text == "" {
				continue
			}
			id := m.ID
			if id == "" {
				id = uuid.NewString()
			}
			turns = append(turns, conversation.Turn{ID: id, Question: question, Answer: text})
			question = ""
		}
	}
	return turns
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctrl := s.newController()
	now := s.now()
	sess := &storage.Session{
		ID:        uuid.NewString(),
		Snapshot:  ctrl.Snapshot(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(r.Context(), sess); err != nil {
		s.logger.Error().Err(err).Msg("failed to save session")
		writeError(w, "Failed to create session", "storage_error", http.StatusInternalServerError)
		return
	}

	s.logger.Debug().Str("session_id", sess.ID).Msg("session created")
	writeJSON(w, http.StatusCreated, sessionResponse(sess, ctrl))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	ctrl, ok := s.restore(w, sess)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess, ctrl))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.logger.Error().Err(err).Msg("failed to delete session")
		writeError(w, "Failed to delete session", "storage_error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAsk answers a question within a stored session. The session is
// locked for the duration so concurrent questions get 409.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req pkg.QuestionRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, "invalid_json", http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	question, ok := s.checkQuestion(w, req.Question)
	if !ok {
		return
	}

	// lock before reading so the snapshot we extend is the latest one
	id := r.PathValue("id")
	token, err := s.store.Acquire(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrBusy) {
			s.reject(w, "busy", http.StatusConflict, err.Error())
			return
		}
		s.logger.Error().Err(err).Str("session_id", id).Msg("failed to lock session")
		writeError(w, "Failed to lock session", "storage_error", http.StatusInternalServerError)
		return
	}
	// the request context may already be cancelled when the answer ends
	bg := context.WithoutCancel(r.Context())
	defer func() {
		if err := s.store.Release(bg, id, token); err != nil {
			s.logger.Warn().Err(err).Str("session_id", id).Msg("failed to unlock session")
		}
	}()

	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	ctrl, ok := s.restore(w, sess)
	if !ok {
		return
	}

	s.streamAnswer(w, r, ctrl, question)

	sess.Snapshot = ctrl.Snapshot()
	sess.UpdatedAt = s.now()
	if err := s.store.Save(bg, sess); err != nil {
		s.logger.Error().Err(err).Str("session_id", sess.ID).Msg("failed to save session")
	}
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	exporter, err := export.For(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err.Error(), "invalid_request_error", http.StatusBadRequest)
		return
	}
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	date := s.now()
	body, err := exporter.Export(export.Transcript{
		Candidate: s.cfg.Candidate,
		Date:      date,
		Turns:     sess.Snapshot.Turns,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sess.ID).Msg("failed to export transcript")
		writeError(w, "Failed to export transcript", "internal_error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", exporter.MimeType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(exporter, date)))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, pkg.QuestionsResponse{
		Questions: s.newController().State().PendingFollowUps,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "store": "ok"}
	code := http.StatusOK

	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			status["status"] = "degraded"
			status["store"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, status)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeError(w, "Metrics are disabled", "not_found", http.StatusNotFound)
		return
	}
	s.metrics.Handler().ServeHTTP(w, r)
}

// streamAnswer runs one question through the controller and writes the
// answer as a UI message stream.
func (s *Server) streamAnswer(w http.ResponseWriter, r *http.Request, ctrl *conversation.Controller, question string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, "Streaming not supported", "server_error", http.StatusInternalServerError)
		return
	}

	if s.metrics != nil {
		s.metrics.ActiveStreams.Inc()
		defer s.metrics.ActiveStreams.Dec()
	}

	ui := newUIStream(w, flusher)
	started := time.Now()
	out, err := ctrl.Submit(r.Context(), question, ui.sink(ctrl.Progress))

	if s.metrics != nil && out.Mode != "" {
		s.metrics.RecordAnswer(string(out.Mode), out.Turn != nil, time.Since(started))
	}
	if err != nil {
		kind := gateway.KindOf(err)
		if s.metrics != nil && kind != 0 {
			s.metrics.RecordGatewayError(kind.String())
		}
		s.logger.Warn().Err(err).Str("kind", kind.String()).Msg("answer failed")
		ui.fail(errorText(err))
		return
	}
	ui.finish()
}

// errorText is the message shown to the user when an answer fails.
func errorText(err error) string {
	switch gateway.KindOf(err) {
	case gateway.KindTimeout:
		return "The answer took too long. Please try again."
	case gateway.KindProviderRejected:
		return "The model provider rejected the request."
	case gateway.KindNetworkFailure:
		return "Could not reach the model provider. Please try again."
	}
	if errors.Is(err, conversation.ErrTurnInFlight) {
		return err.Error()
	}
	return "Something went wrong while answering."
}

// checkQuestion trims and length-checks a question, writing a 400 if it is
// unusable.
func (s *Server) checkQuestion(w http.ResponseWriter, text string) (string, bool) {
	question := strings.TrimSpace(text)
	if question == "" {
		s.reject(w, "empty", http.StatusBadRequest, conversation.ErrEmptyQuestion.Error())
		return "", false
	}
	if utf8.RuneCountInString(question) > s.cfg.MaxQuestionLen {
		s.reject(w, "too_long", http.StatusBadRequest,
			fmt.Sprintf("question is too long (max %d characters)", s.cfg.MaxQuestionLen))
		return "", false
	}
	return question, true
}

func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*storage.Session, bool) {
	id := r.PathValue("id")
	sess, err := s.store.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, "Session not found", "not_found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", id).Msg("failed to load session")
		writeError(w, "Failed to load session", "storage_error", http.StatusInternalServerError)
		return nil, false
	}
	return sess, true
}

func (s *Server) restore(w http.ResponseWriter, sess *storage.Session) (*conversation.Controller, bool) {
	ctrl := s.newController()
	if err := ctrl.Restore(sess.Snapshot); err != nil {
		writeError(w, "Failed to restore session", "internal_error", http.StatusInternalServerError)
		return nil, false
	}
	return ctrl, true
}

func (s *Server) reject(w http.ResponseWriter, reason string, code int, message string) {
	if s.metrics != nil {
		s.metrics.RecordRejection(reason)
	}
	errType := "invalid_request_error"
	if code == http.StatusConflict {
		errType = "conflict"
	}
	writeError(w, message, errType, code)
}

func sessionResponse(sess *storage.Session, ctrl *conversation.Controller) pkg.SessionResponse {
	state := ctrl.State()
	progress := ctrl.Progress()

	turns := make([]pkg.TurnInfo, 0, len(state.Turns))
	for _, t := range state.Turns {
		turns = append(turns, pkg.TurnInfo{
			ID:        t.ID,
			Question:  t.Question,
			Answer:    t.Answer,
			Source:    string(t.Mode),
			CreatedAt: t.CreatedAt.Format(time.RFC3339),
		})
	}

	return pkg.SessionResponse{
		ID:                 sess.ID,
		Turns:              turns,
		SuggestedQuestions: state.PendingFollowUps,
		Progress:           pkg.ProgressInfo{Current: progress.Current, Total: progress.Total, Complete: progress.Complete},
		CreatedAt:          sess.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          sess.UpdatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	// headers are already sent, nothing useful to do with an encode error
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message, errType string, code int) {
	writeJSON(w, code, pkg.ErrorBody{Error: pkg.ErrorDetail{
		Message: message,
		Type:    errType,
		Code:    code,
	}})
}

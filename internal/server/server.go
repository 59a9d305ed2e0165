// Package server exposes the interview over HTTP: a stateless chat endpoint
// compatible with UI message stream clients, and a session API backed by a
// TTL store.
package server

import (
	"context"
	"net/http"
	"time"

	"interview_agent/internal/conversation"
	"interview_agent/internal/metrics"
	"interview_agent/internal/storage"

	"github.com/rs/zerolog"
)

// MaxRequestBodySize limits request bodies to 1MB
const MaxRequestBodySize = 1 << 20

// Config holds the server settings
type Config struct {
	Addr           string
	CORSOrigins    []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxQuestionLen int
	MaxMessages    int
	Candidate      string
}

// DefaultConfig returns the settings used by tests and the serve command
// when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   120 * time.Second,
		MaxQuestionLen: 4000,
		MaxMessages:    100,
		Candidate:      "Sean Kennedy",
	}
}

// ControllerFactory creates a fresh session controller.
type ControllerFactory func() *conversation.Controller

// Server is the HTTP API server.
type Server struct {
	cfg           Config
	router        *http.ServeMux
	server        *http.Server
	newController ControllerFactory
	store         storage.Store
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	now           func() time.Time
}

// NewServer creates a server with an in-memory session store.
func NewServer(cfg Config, factory ControllerFactory, logger zerolog.Logger) *Server {
	def := DefaultConfig()
	if cfg.MaxQuestionLen <= 0 {
		cfg.MaxQuestionLen = def.MaxQuestionLen
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = def.MaxMessages
	}
	if cfg.Candidate == "" {
		cfg.Candidate = def.Candidate
	}

	s := &Server{
		cfg:           cfg,
		router:        http.NewServeMux(),
		newController: factory,
		store:         storage.NewMemoryStore(storage.DefaultSessionTTL),
		logger:        logger.With().Str("component", "server").Logger(),
		now:           time.Now,
	}
	s.setupRoutes()
	return s
}

// WithStore replaces the session store
func (s *Server) WithStore(store storage.Store) *Server {
	s.store = store
	return s
}

// WithMetrics enables Prometheus metrics and the /metrics endpoint
func (s *Server) WithMetrics(m *metrics.Metrics) *Server {
	s.metrics = m
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /chat", s.handleChat)

	s.router.HandleFunc("POST /sessions", s.handleCreateSession)
	s.router.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	s.router.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	s.router.HandleFunc("POST /sessions/{id}/questions", s.handleAsk)
	s.router.HandleFunc("GET /sessions/{id}/transcript", s.handleTranscript)

	s.router.HandleFunc("GET /questions", s.handleQuestions)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /metrics", s.handleMetrics)
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger, s.metrics),
		CORSMiddleware(s.cfg.CORSOrigins),
	)(s.router)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info().Str("addr", s.cfg.Addr).Msg("server starting")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info().Msg("server shutting down")
	return s.server.Shutdown(ctx)
}

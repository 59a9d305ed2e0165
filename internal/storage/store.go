// Package storage keeps interview sessions between HTTP requests. Sessions
// expire after a TTL; nothing outlives it.
package storage

import (
	"context"
	"errors"
	"time"

	"interview_agent/internal/conversation"
)

// DefaultSessionTTL is how long an untouched session is kept.
const DefaultSessionTTL = 40 * time.Minute

var (
	ErrNotFound = errors.New("session not found")
	ErrBusy     = errors.New("session is answering another question")
	ErrLockLost = errors.New("session lock expired or taken over")
)

// Session is a stored interview.
type Session struct {
	ID        string                `json:"id"`
	Snapshot  conversation.Snapshot `json:"snapshot"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Store persists sessions and serialises questions per session.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
	// Acquire marks a session busy and returns the token that releases it.
	// It returns ErrBusy if the session already is busy.
	Acquire(ctx context.Context, id string) (string, error)
	// Release clears the busy mark only if token still holds it, otherwise
	// it returns ErrLockLost.
	Release(ctx context.Context, id, token string) error
	Close() error
}

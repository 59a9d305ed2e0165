package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for single-instance deployments and
// development.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	busy     map[string]string
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		busy:     make(map[string]string),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get retrieves a session by ID
func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	// Check if session has expired
	if m.now().Sub(session.UpdatedAt) > m.ttl {
		delete(m.sessions, id)
		return nil, fmt.Errorf("%w: %s (expired)", ErrNotFound, id)
	}

	copied := *session
	return &copied, nil
}

// Save saves or updates a session
func (m *MemoryStore) Save(ctx context.Context, session *Session) error {
	if session.ID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	copied := *session
	m.sessions[session.ID] = &copied
	m.sweepLocked(now)
	return nil
}

// Delete removes a session
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.busy, id)
	return nil
}

// Acquire marks a session busy
func (m *MemoryStore) Acquire(ctx context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.busy[id]; held {
		return "", ErrBusy
	}
	token := uuid.NewString()
	m.busy[id] = token
	return token, nil
}

// Release clears the busy mark held by token
func (m *MemoryStore) Release(ctx context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.busy[id]; !ok || held != token {
		return ErrLockLost
	}
	delete(m.busy, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included until the
// next sweep.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) sweepLocked(now time.Time) {
	for id, s := range m.sessions {
		if now.Sub(s.UpdatedAt) > m.ttl {
			delete(m.sessions, id)
		}
	}
}

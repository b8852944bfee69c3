// Package session stores chat histories keyed by session ID. The store
// is an injected dependency of the engine so history lifecycle is not
// welded to process memory: the default MemoryStore keeps everything for
// the process lifetime, the SQLite store persists across restarts.
package session

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when operating on a closed store.
var ErrClosed = errors.New("session: store is closed")

// Turn is one question/answer exchange.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Store persists chat history per session.
type Store interface {
	// Append adds turns to a session's history, creating the session if needed.
	Append(ctx context.Context, sessionID string, turns ...Turn) error

	// History returns a session's turns in order. Unknown sessions yield
	// an empty history, not an error.
	History(ctx context.Context, sessionID string) ([]Turn, error)

	// Close releases the store's resources.
	Close() error
}

// MemoryStore keeps histories in a process-local map. Histories are
// never evicted or truncated; a very long conversation will eventually
// exceed the AI endpoint's input limit.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]Turn
	closed   bool
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Turn)}
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, turns ...Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.sessions[sessionID] = append(s.sessions[sessionID], turns...)
	return nil
}

func (s *MemoryStore) History(_ context.Context, sessionID string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	stored := s.sessions[sessionID]
	out := make([]Turn, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sessions = nil
	return nil
}

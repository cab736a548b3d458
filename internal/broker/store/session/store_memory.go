// Package session persists login handshake sessions keyed by their
// one-time token.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gatehouse/internal/broker/models"
	"gatehouse/internal/sentinel"
)

// Error Contract:
// All store methods follow this pattern:
// - sentinel.ErrNotFound when the token does not exist
// - sentinel.ErrConflict when a token is already taken at create time
// - sentinel.ErrExpired / sentinel.ErrConsumed from Consume when the
//   session exists but is no longer completable
// - wrapped errors with context for infrastructure failures

// InMemoryStore keeps sessions in a map. It is the development and test
// backend; the consume path holds the write lock for the whole
// check-and-set so concurrent completions serialize.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.AuthSession
}

// NewInMemory creates an in-memory session store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*models.AuthSession)}
}

// Create persists a new session. The token must be unused.
func (s *InMemoryStore) Create(_ context.Context, session *models.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.Token]; exists {
		return fmt.Errorf("session token already exists: %w", sentinel.ErrConflict)
	}
	s.sessions[session.Token] = session
	return nil
}

// FindByToken retrieves a session without consuming it.
func (s *InMemoryStore) FindByToken(_ context.Context, token string) (*models.AuthSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, ok := s.sessions[token]; ok {
		copied := *session
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

// Consume atomically marks the session consumed and returns its payload.
// Only one caller can ever succeed for a given token.
func (s *InMemoryStore) Consume(_ context.Context, token string, now time.Time) (*models.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if session.Consumed {
		return nil, sentinel.ErrConsumed
	}
	if session.IsExpired(now) {
		return nil, sentinel.ErrExpired
	}

	session.Consumed = true
	consumedAt := now
	session.ConsumedAt = &consumedAt

	copied := *session
	return &copied, nil
}

// DeleteExpired removes sessions past expiry and reports how many.
func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for token, session := range s.sessions {
		if session.IsExpired(now) {
			delete(s.sessions, token)
			deleted++
		}
	}
	return deleted, nil
}

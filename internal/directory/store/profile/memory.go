// Package profile persists broker-side user profiles keyed by the
// identity provider's user ID.
package profile

import (
	"context"
	"sync"

	"gatehouse/internal/directory/models"
	"gatehouse/internal/sentinel"
)

// InMemory stores profiles in memory for development and tests.
type InMemory struct {
	mu       sync.RWMutex
	profiles map[string]*models.Profile
}

// NewInMemory creates an in-memory profile store.
func NewInMemory() *InMemory {
	return &InMemory{profiles: make(map[string]*models.Profile)}
}

// Upsert creates or replaces the profile for its user ID.
func (s *InMemory) Upsert(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.profiles[p.UserID]; ok {
		p.CreatedAt = existing.CreatedAt
	}
	s.profiles[p.UserID] = p
	return nil
}

// FindByUserID retrieves the profile for a user.
func (s *InMemory) FindByUserID(_ context.Context, userID string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[userID]; ok {
		return p, nil
	}
	return nil, sentinel.ErrNotFound
}

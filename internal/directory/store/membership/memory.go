// Package membership persists user memberships binding end users to
// applications at a tier.
package membership

import (
	"context"
	"sort"
	"sync"
	"time"

	"gatehouse/internal/directory/models"
	"gatehouse/internal/sentinel"
)

// InMemory stores memberships in memory for development and tests.
type InMemory struct {
	mu          sync.RWMutex
	memberships map[string]*models.UserMembership
}

// NewInMemory creates an in-memory membership store.
func NewInMemory() *InMemory {
	return &InMemory{memberships: make(map[string]*models.UserMembership)}
}

// Create persists a new membership.
func (s *InMemory) Create(_ context.Context, m *models.UserMembership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.memberships[m.ID]; exists {
		return sentinel.ErrConflict
	}
	s.memberships[m.ID] = m
	return nil
}

// FindByID retrieves a membership by ID.
func (s *InMemory) FindByID(_ context.Context, membershipID string) (*models.UserMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.memberships[membershipID]; ok {
		return m, nil
	}
	return nil, sentinel.ErrNotFound
}

// ListActive returns the user's active memberships for one application.
// More than one row is possible; the caller applies the tie-break.
func (s *InMemory) ListActive(_ context.Context, userID, applicationID string) ([]*models.UserMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.UserMembership
	for _, m := range s.memberships {
		if m.UserID == userID && m.ApplicationID == applicationID && m.IsActive() {
			out = append(out, m)
		}
	}
	sortMemberships(out)
	return out, nil
}

// ListByUser returns every membership the user holds across applications.
func (s *InMemory) ListByUser(_ context.Context, userID string) ([]*models.UserMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.UserMembership
	for _, m := range s.memberships {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sortMemberships(out)
	return out, nil
}

// UpdateStatus transitions a membership's billing status.
func (s *InMemory) UpdateStatus(_ context.Context, membershipID string, status models.MembershipStatus, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[membershipID]
	if !ok {
		return sentinel.ErrNotFound
	}
	m.Status = status
	m.UpdatedAt = now
	return nil
}

// CountActiveByApplication counts active memberships for the delete guard.
func (s *InMemory) CountActiveByApplication(_ context.Context, applicationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, m := range s.memberships {
		if m.ApplicationID == applicationID && m.IsActive() {
			count++
		}
	}
	return count, nil
}

func sortMemberships(ms []*models.UserMembership) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].StartedAt.Equal(ms[j].StartedAt) {
			return ms[i].ID < ms[j].ID
		}
		return ms[i].StartedAt.Before(ms[j].StartedAt)
	})
}

// Package tier persists per-application membership tiers.
package tier

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gatehouse/internal/directory/models"
	"gatehouse/internal/sentinel"
)

// InMemory stores membership tiers in memory for development and tests.
type InMemory struct {
	mu      sync.RWMutex
	tiers   map[string]*models.MembershipTier
	slugIdx map[string]string
}

// NewInMemory creates an in-memory tier store.
func NewInMemory() *InMemory {
	return &InMemory{
		tiers:   make(map[string]*models.MembershipTier),
		slugIdx: make(map[string]string),
	}
}

func slugKey(applicationID, slug string) string {
	return applicationID + "/" + strings.ToLower(slug)
}

// CreateIfSlugAvailable atomically creates the tier if the slug is not
// already taken within its application.
func (s *InMemory) CreateIfSlugAvailable(_ context.Context, t *models.MembershipTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := slugKey(t.ApplicationID, t.Slug)
	if _, exists := s.slugIdx[key]; exists {
		return fmt.Errorf("tier slug must be unique per application: %w", sentinel.ErrConflict)
	}
	s.tiers[t.ID] = t
	s.slugIdx[key] = t.ID
	return nil
}

// FindByID retrieves a tier by ID.
func (s *InMemory) FindByID(_ context.Context, tierID string) (*models.MembershipTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tiers[tierID]; ok {
		return t, nil
	}
	return nil, sentinel.ErrNotFound
}

// ListByApplication returns the application's tiers ordered by level.
func (s *InMemory) ListByApplication(_ context.Context, applicationID string) ([]*models.MembershipTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.MembershipTier
	for _, t := range s.tiers {
		if t.ApplicationID == applicationID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TierLevel == out[j].TierLevel {
			return out[i].Slug < out[j].Slug
		}
		return out[i].TierLevel < out[j].TierLevel
	})
	return out, nil
}

// Update replaces an existing tier.
func (s *InMemory) Update(_ context.Context, t *models.MembershipTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tiers[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.tiers[t.ID] = t
	return nil
}

// Delete removes a tier. Memberships referencing it keep their dangling
// tier ID; authorization treats them as level 0.
func (s *InMemory) Delete(_ context.Context, tierID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tiers[tierID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.slugIdx, slugKey(t.ApplicationID, t.Slug))
	delete(s.tiers, tierID)
	return nil
}

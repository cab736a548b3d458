// Package application persists registered tenant applications.
package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gatehouse/internal/directory/models"
	"gatehouse/internal/sentinel"
)

// InMemory stores applications in memory for development and tests.
type InMemory struct {
	mu      sync.RWMutex
	apps    map[string]*models.Application
	slugIdx map[string]string
}

// NewInMemory creates an in-memory application store.
func NewInMemory() *InMemory {
	return &InMemory{
		apps:    make(map[string]*models.Application),
		slugIdx: make(map[string]string),
	}
}

// CreateIfSlugAvailable atomically creates the application if the slug is
// not already taken.
func (s *InMemory) CreateIfSlugAvailable(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slug := strings.ToLower(app.Slug)
	if _, exists := s.slugIdx[slug]; exists {
		return fmt.Errorf("application slug must be unique: %w", sentinel.ErrConflict)
	}
	s.apps[app.ID] = app
	s.slugIdx[slug] = app.ID
	return nil
}

// FindByID retrieves an application by ID.
func (s *InMemory) FindByID(_ context.Context, applicationID string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if app, ok := s.apps[applicationID]; ok {
		return app, nil
	}
	return nil, sentinel.ErrNotFound
}

// FindBySlug retrieves an application by its URL-safe slug.
func (s *InMemory) FindBySlug(_ context.Context, slug string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.slugIdx[strings.ToLower(slug)]; ok {
		return s.apps[id], nil
	}
	return nil, sentinel.ErrNotFound
}

// List returns all applications ordered by creation time.
func (s *InMemory) List(_ context.Context) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Application, 0, len(s.apps))
	for _, app := range s.apps {
		out = append(out, app)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Update replaces an existing application.
func (s *InMemory) Update(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.apps[app.ID] = app
	return nil
}

// Delete removes an application.
func (s *InMemory) Delete(_ context.Context, applicationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[applicationID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.slugIdx, strings.ToLower(app.Slug))
	delete(s.apps, applicationID)
	return nil
}

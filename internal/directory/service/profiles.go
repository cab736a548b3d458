package service

import (
	"context"
	"errors"
	"time"

	"gatehouse/internal/directory/models"
	"gatehouse/internal/identity"
	"gatehouse/internal/sentinel"
	dErrors "gatehouse/pkg/domain-errors"
)

// UpsertProfile records or refreshes the broker-side profile for a user.
func (s *Service) UpsertProfile(ctx context.Context, p *models.Profile) error {
	if p == nil || p.UserID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "profile user ID required")
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if err := s.profiles.Upsert(ctx, p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save profile")
	}
	return nil
}

// GetProfile returns the profile for a user. Returns sentinel.ErrNotFound
// when no profile record exists.
func (s *Service) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user ID required")
	}
	p, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, sentinel.ErrNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	return p, nil
}

// IsAdmin reports whether the caller holds admin privileges. The role may
// live either in the identity provider's user metadata or in the broker
// profile; either source is sufficient, preserving compatibility with
// callers provisioned through only one of the two paths.
func (s *Service) IsAdmin(ctx context.Context, ident *identity.Identity) (bool, error) {
	if ident == nil {
		return false, nil
	}
	if ident.Role() == "admin" {
		return true, nil
	}
	p, err := s.profiles.FindByUserID(ctx, ident.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile for admin check")
	}
	return p.Role() == "admin", nil
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"gatehouse/internal/audit"
	"gatehouse/internal/directory/models"
	"gatehouse/internal/sentinel"
	dErrors "gatehouse/pkg/domain-errors"
)

// CreateTier adds a membership tier to an application.
func (s *Service) CreateTier(ctx context.Context, req *models.CreateTierRequest) (*models.MembershipTier, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.apps.FindByID(ctx, req.ApplicationID); err != nil {
		return nil, wrapApplicationErr(err, "failed to load application for tier")
	}

	t, err := models.NewMembershipTier(uuid.NewString(), req.ApplicationID, req.Slug, req.Name, req.TierLevel, req.Features, req.Pricing, time.Now())
	if err != nil {
		return nil, err
	}

	if err := s.tiers.CreateIfSlugAvailable(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "tier slug must be unique per application")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tier")
	}

	s.logAudit(ctx, string(audit.EventTierSaved), audit.Event{ApplicationID: t.ApplicationID})
	if s.metrics != nil {
		s.metrics.IncrementTiersCreated()
	}
	return t, nil
}

// GetTier returns a tier by ID.
func (s *Service) GetTier(ctx context.Context, tierID string) (*models.MembershipTier, error) {
	if tierID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tier ID required")
	}
	t, err := s.tiers.FindByID(ctx, tierID)
	if err != nil {
		return nil, wrapTierErr(err, "failed to load tier")
	}
	return t, nil
}

// ListTiersByApplication returns an application's tiers ordered by level.
func (s *Service) ListTiersByApplication(ctx context.Context, applicationID string) ([]*models.MembershipTier, error) {
	if applicationID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "application ID required")
	}
	tiers, err := s.tiers.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tiers")
	}
	return tiers, nil
}

// UpdateTier applies mutable field changes to a tier.
func (s *Service) UpdateTier(ctx context.Context, tierID string, req *models.UpdateTierRequest) (*models.MembershipTier, error) {
	if tierID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tier ID required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	t, err := s.tiers.FindByID(ctx, tierID)
	if err != nil {
		return nil, wrapTierErr(err, "failed to load tier")
	}

	if req.Name != nil {
		t.Name = *req.Name
	}
	if req.TierLevel != nil {
		t.TierLevel = *req.TierLevel
	}
	if req.Features != nil {
		t.Features = *req.Features
	}
	if req.Pricing != nil {
		t.Pricing = req.Pricing
	}
	t.UpdatedAt = time.Now()

	if err := s.tiers.Update(ctx, t); err != nil {
		return nil, wrapTierErr(err, "failed to update tier")
	}

	s.logAudit(ctx, string(audit.EventTierSaved), audit.Event{ApplicationID: t.ApplicationID})
	return t, nil
}

// DeleteTier removes a tier. Memberships referencing it are left with a
// dangling tier ID and authorize at level 0 until reassigned.
func (s *Service) DeleteTier(ctx context.Context, tierID string) error {
	if tierID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "tier ID required")
	}
	t, err := s.tiers.FindByID(ctx, tierID)
	if err != nil {
		return wrapTierErr(err, "failed to load tier")
	}
	if err := s.tiers.Delete(ctx, tierID); err != nil {
		return wrapTierErr(err, "failed to delete tier")
	}
	s.logAudit(ctx, string(audit.EventTierSaved), audit.Event{ApplicationID: t.ApplicationID, Reason: "tier deleted"})
	return nil
}

func wrapTierErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "tier not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

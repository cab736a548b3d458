package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gatehouse/internal/audit"
	"gatehouse/internal/directory/models"
	"gatehouse/internal/sentinel"
	dErrors "gatehouse/pkg/domain-errors"
)

// CreateMembership binds a user to an application, optionally at a tier.
func (s *Service) CreateMembership(ctx context.Context, req *models.CreateMembershipRequest) (*models.UserMembership, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.apps.FindByID(ctx, req.ApplicationID); err != nil {
		return nil, wrapApplicationErr(err, "failed to load application for membership")
	}
	if req.TierID != "" {
		t, err := s.tiers.FindByID(ctx, req.TierID)
		if err != nil {
			return nil, wrapTierErr(err, "failed to load tier for membership")
		}
		if t.ApplicationID != req.ApplicationID {
			return nil, dErrors.New(dErrors.CodeValidation, "tier belongs to a different application")
		}
	}

	now := time.Now()
	m := &models.UserMembership{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		ApplicationID: req.ApplicationID,
		TierID:        req.TierID,
		Status:        req.Status,
		StartedAt:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.memberships.Create(ctx, m); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create membership")
	}

	s.logAudit(ctx, string(audit.EventMembershipSaved), audit.Event{UserID: m.UserID, ApplicationID: m.ApplicationID})
	if s.metrics != nil {
		s.metrics.IncrementMembershipsCreated()
	}
	return m, nil
}

// UpdateMembershipStatus transitions a membership's billing status.
// Memberships are never hard-deleted; canceled is a terminal status.
func (s *Service) UpdateMembershipStatus(ctx context.Context, membershipID string, status models.MembershipStatus) (*models.UserMembership, error) {
	if membershipID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "membership ID required")
	}
	if !models.ValidMembershipStatus(status) {
		return nil, dErrors.New(dErrors.CodeValidation, "status must be active, inactive, past_due, or canceled")
	}

	if err := s.memberships.UpdateStatus(ctx, membershipID, status, time.Now()); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "membership not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update membership status")
	}

	m, err := s.memberships.FindByID(ctx, membershipID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload membership")
	}

	s.logAudit(ctx, string(audit.EventMembershipSaved), audit.Event{UserID: m.UserID, ApplicationID: m.ApplicationID})
	return m, nil
}

// GetActiveMembership returns the user's authoritative active membership
// for an application, with its tier resolved. When several active rows
// exist the highest tier level wins; a dangling or absent tier counts as
// level 0. Returns sentinel.ErrNotFound when no active membership exists.
func (s *Service) GetActiveMembership(ctx context.Context, userID, applicationID string) (*models.UserMembership, *models.MembershipTier, error) {
	active, err := s.memberships.ListActive(ctx, userID, applicationID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list active memberships")
	}
	if len(active) == 0 {
		return nil, nil, sentinel.ErrNotFound
	}

	type candidate struct {
		membership *models.UserMembership
		tier       *models.MembershipTier
		level      int
	}
	candidates := make([]candidate, 0, len(active))
	for _, m := range active {
		c := candidate{membership: m}
		if m.TierID != "" {
			t, err := s.tiers.FindByID(ctx, m.TierID)
			switch {
			case err == nil:
				c.tier = t
				c.level = t.TierLevel
			case errors.Is(err, sentinel.ErrNotFound):
				// Tier was deleted out from under the membership.
			default:
				return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve membership tier")
			}
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].level > candidates[j].level
	})
	return candidates[0].membership, candidates[0].tier, nil
}

// ListMembershipsForUser returns every membership the user holds.
func (s *Service) ListMembershipsForUser(ctx context.Context, userID string) ([]*models.UserMembership, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user ID required")
	}
	ms, err := s.memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list memberships")
	}
	return ms, nil
}

// MembershipSummaries gathers the user's standing across all applications:
// every membership joined with its tier and owning application. Tier and
// application lookups for separate memberships run concurrently.
func (s *Service) MembershipSummaries(ctx context.Context, userID string) ([]models.MembershipSummary, error) {
	memberships, err := s.memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list memberships")
	}
	if len(memberships) == 0 {
		return []models.MembershipSummary{}, nil
	}

	summaries := make([]models.MembershipSummary, len(memberships))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range memberships {
		g.Go(func() error {
			app, err := s.apps.FindByID(gctx, m.ApplicationID)
			if err != nil {
				return wrapApplicationErr(err, "failed to resolve membership application")
			}

			detail := models.MembershipDetail{
				ID:          m.ID,
				Status:      string(m.Status),
				StartedAt:   m.StartedAt,
				EndsAt:      m.EndsAt,
				RenewalDate: m.RenewalDate,
			}
			if m.TierID != "" {
				t, err := s.tiers.FindByID(gctx, m.TierID)
				switch {
				case err == nil:
					detail.Tier = &models.TierSummary{
						ID:       t.ID,
						Name:     t.Name,
						Level:    t.TierLevel,
						Features: t.Features,
					}
					detail.Pricing = t.Pricing
				case errors.Is(err, sentinel.ErrNotFound):
					// Dangling tier reference; summary carries no tier.
				default:
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve membership tier")
				}
			}

			summaries[i] = models.MembershipSummary{
				ApplicationID:   app.ID,
				ApplicationName: app.Name,
				ApplicationSlug: app.Slug,
				Membership:      detail,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// Package service orchestrates the tenant directory: application
// registration, membership tiers, user memberships, and profiles.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gatehouse/internal/audit"
	dirmetrics "gatehouse/internal/directory/metrics"
	"gatehouse/internal/directory/models"
	"gatehouse/internal/platform/middleware"
	"gatehouse/internal/sentinel"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/secrets"
)

type ApplicationStore interface {
	CreateIfSlugAvailable(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, applicationID string) (*models.Application, error)
	FindBySlug(ctx context.Context, slug string) (*models.Application, error)
	List(ctx context.Context) ([]*models.Application, error)
	Update(ctx context.Context, app *models.Application) error
	Delete(ctx context.Context, applicationID string) error
}

type TierStore interface {
	CreateIfSlugAvailable(ctx context.Context, t *models.MembershipTier) error
	FindByID(ctx context.Context, tierID string) (*models.MembershipTier, error)
	ListByApplication(ctx context.Context, applicationID string) ([]*models.MembershipTier, error)
	Update(ctx context.Context, t *models.MembershipTier) error
	Delete(ctx context.Context, tierID string) error
}

type MembershipStore interface {
	Create(ctx context.Context, m *models.UserMembership) error
	FindByID(ctx context.Context, membershipID string) (*models.UserMembership, error)
	ListActive(ctx context.Context, userID, applicationID string) ([]*models.UserMembership, error)
	ListByUser(ctx context.Context, userID string) ([]*models.UserMembership, error)
	UpdateStatus(ctx context.Context, membershipID string, status models.MembershipStatus, now time.Time) error
	CountActiveByApplication(ctx context.Context, applicationID string) (int, error)
}

type ProfileStore interface {
	Upsert(ctx context.Context, p *models.Profile) error
	FindByUserID(ctx context.Context, userID string) (*models.Profile, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service is the directory's single entry point. Stores are injected so
// tests can run against the in-memory variants.
type Service struct {
	apps           ApplicationStore
	tiers          TierStore
	memberships    MembershipStore
	profiles       ProfileStore
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *dirmetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *dirmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(apps ApplicationStore, tiers TierStore, memberships MembershipStore, profiles ProfileStore, opts ...Option) *Service {
	s := &Service{apps: apps, tiers: tiers, memberships: memberships, profiles: profiles}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateApplication registers a new application and generates its key pair.
// Returns the application and the cleartext secret key, which is only
// available at creation time.
func (s *Service) CreateApplication(ctx context.Context, req *models.CreateApplicationRequest) (*models.Application, string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	keys, secretKey, err := generateKeys(req.Slug)
	if err != nil {
		return nil, "", err
	}

	app, err := models.NewApplication(uuid.NewString(), req.Name, req.Slug, req.Description, req.Config, keys, time.Now())
	if err != nil {
		return nil, "", err
	}

	if err := s.apps.CreateIfSlugAvailable(ctx, app); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, "", dErrors.New(dErrors.CodeConflict, "application slug must be unique")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create application")
	}

	s.logAudit(ctx, string(audit.EventApplicationSaved), audit.Event{ApplicationID: app.ID})
	if s.metrics != nil {
		s.metrics.IncrementApplicationsCreated()
	}
	return app, secretKey, nil
}

// GetApplication returns an application by ID.
func (s *Service) GetApplication(ctx context.Context, applicationID string) (*models.Application, error) {
	if applicationID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "application ID required")
	}
	app, err := s.apps.FindByID(ctx, applicationID)
	if err != nil {
		return nil, wrapApplicationErr(err, "failed to load application")
	}
	return app, nil
}

// GetApplicationBySlug returns an application by its URL-safe slug.
func (s *Service) GetApplicationBySlug(ctx context.Context, slug string) (*models.Application, error) {
	if slug == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "application slug required")
	}
	app, err := s.apps.FindBySlug(ctx, slug)
	if err != nil {
		return nil, wrapApplicationErr(err, "failed to load application")
	}
	return app, nil
}

// ListApplications returns all registered applications.
func (s *Service) ListApplications(ctx context.Context) ([]*models.Application, error) {
	apps, err := s.apps.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list applications")
	}
	return apps, nil
}

// UpdateApplication applies mutable field changes.
func (s *Service) UpdateApplication(ctx context.Context, applicationID string, req *models.UpdateApplicationRequest) (*models.Application, error) {
	if applicationID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "application ID required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	app, err := s.apps.FindByID(ctx, applicationID)
	if err != nil {
		return nil, wrapApplicationErr(err, "failed to load application")
	}

	if req.Name != nil {
		app.Name = *req.Name
	}
	if req.Description != nil {
		app.Description = *req.Description
	}
	if req.Status != nil {
		app.Status = *req.Status
	}
	if req.Config != nil {
		app.Config = *req.Config
	}
	app.UpdatedAt = time.Now()

	if err := s.apps.Update(ctx, app); err != nil {
		return nil, wrapApplicationErr(err, "failed to update application")
	}

	s.logAudit(ctx, string(audit.EventApplicationSaved), audit.Event{ApplicationID: app.ID})
	return app, nil
}

// DeleteApplication removes an application. Deletion is refused while the
// application still has active memberships; deactivate those first.
func (s *Service) DeleteApplication(ctx context.Context, applicationID string) error {
	if applicationID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "application ID required")
	}
	if _, err := s.apps.FindByID(ctx, applicationID); err != nil {
		return wrapApplicationErr(err, "failed to load application")
	}

	active, err := s.memberships.CountActiveByApplication(ctx, applicationID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count active memberships")
	}
	if active > 0 {
		if s.metrics != nil {
			s.metrics.IncrementDeleteGuardRejected()
		}
		return dErrors.New(dErrors.CodeConflict, "application has active memberships and cannot be deleted")
	}

	if err := s.apps.Delete(ctx, applicationID); err != nil {
		return wrapApplicationErr(err, "failed to delete application")
	}

	s.logAudit(ctx, string(audit.EventApplicationGone), audit.Event{ApplicationID: applicationID})
	if s.metrics != nil {
		s.metrics.IncrementApplicationsDeleted()
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event string, base audit.Event) {
	if s.logger != nil {
		args := []any{"event", event, "log_type", "audit"}
		if base.ApplicationID != "" {
			args = append(args, "application_id", base.ApplicationID)
		}
		if base.UserID != "" {
			args = append(args, "user_id", base.UserID)
		}
		if requestID := middleware.GetRequestID(ctx); requestID != "" {
			args = append(args, "request_id", requestID)
		}
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher != nil {
		base.Action = event
		_ = s.auditPublisher.Emit(ctx, base)
	}
}

func wrapApplicationErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "application not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

// generateKeys builds the slug-prefixed key pair handed to a new
// application. The secret is stored hashed; only the cleartext return
// value ever leaves the service.
func generateKeys(slug string) (models.APIKeys, string, error) {
	publicSuffix, err := secrets.GenerateToken(24)
	if err != nil {
		return models.APIKeys{}, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate public key")
	}
	secretSuffix, err := secrets.GenerateToken(32)
	if err != nil {
		return models.APIKeys{}, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate secret key")
	}
	secretKey := "sk_" + slug + "_" + secretSuffix
	hash, err := secrets.Hash(secretKey)
	if err != nil {
		return models.APIKeys{}, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash secret key")
	}
	return models.APIKeys{
		PublicKey:     "pk_" + slug + "_" + publicSuffix,
		SecretKeyHash: hash,
	}, secretKey, nil
}

package service

//go:generate mockgen -source=contracts.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"gatehouse/internal/audit"
	"gatehouse/internal/broker/models"
	dirmodels "gatehouse/internal/directory/models"
	"gatehouse/internal/identity"
)

// SessionStore persists login handshake sessions. Consume is the
// exactly-once primitive: for any token, at most one call ever returns the
// session.
type SessionStore interface {
	Create(ctx context.Context, session *models.AuthSession) error
	FindByToken(ctx context.Context, token string) (*models.AuthSession, error)
	Consume(ctx context.Context, token string, now time.Time) (*models.AuthSession, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// RedirectValidator checks a candidate redirect against the owning
// application's allow-list, returning the application on success.
type RedirectValidator interface {
	Validate(ctx context.Context, applicationID, candidate string) (*dirmodels.Application, error)
}

// Directory is the slice of the tenant directory the broker reads.
type Directory interface {
	GetApplication(ctx context.Context, applicationID string) (*dirmodels.Application, error)
	GetProfile(ctx context.Context, userID string) (*dirmodels.Profile, error)
	GetActiveMembership(ctx context.Context, userID, applicationID string) (*dirmodels.UserMembership, *dirmodels.MembershipTier, error)
	MembershipSummaries(ctx context.Context, userID string) ([]dirmodels.MembershipSummary, error)
}

// CredentialVerifier authenticates durable user credentials for verify.
type CredentialVerifier interface {
	VerifyCredential(ctx context.Context, credential string) (*identity.Identity, error)
}

// AuditPublisher records handshake lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Package models defines the tenant directory entities: registered
// applications, their membership tiers, and user memberships.
package models

import (
	"regexp"
	"time"

	dErrors "gatehouse/pkg/domain-errors"
)

// ApplicationStatus is the lifecycle state of a registered application.
type ApplicationStatus string

const (
	StatusDevelopment ApplicationStatus = "development"
	StatusActive      ApplicationStatus = "active"
	StatusInactive    ApplicationStatus = "inactive"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidStatus reports whether s is one of the known lifecycle states.
func ValidStatus(s ApplicationStatus) bool {
	switch s {
	case StatusDevelopment, StatusActive, StatusInactive:
		return true
	}
	return false
}

// APIKeys is the key pair handed to an application at registration.
// The secret key is stored hashed; the cleartext is only available once.
type APIKeys struct {
	PublicKey     string `json:"public_key"`
	SecretKeyHash string `json:"-"`
}

// AppConfig carries per-application settings the broker reads at runtime.
type AppConfig struct {
	RedirectAllowList []string       `json:"redirect_allow_list"`
	CORSOrigins       []string       `json:"cors_origins"`
	AuthSettings      map[string]any `json:"auth_settings,omitempty"`
}

// Application is one registered client system.
type Application struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description string            `json:"description,omitempty"`
	Status      ApplicationStatus `json:"status"`
	Keys        APIKeys           `json:"keys"`
	Config      AppConfig         `json:"config"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (a *Application) IsActive() bool {
	return a.Status == StatusActive
}

// NewApplication validates invariants and returns a new application in
// development status.
func NewApplication(id, name, slug, description string, cfg AppConfig, keys APIKeys, now time.Time) (*Application, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "application name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeValidation, "application name must be 128 characters or less")
	}
	if !slugPattern.MatchString(slug) {
		return nil, dErrors.New(dErrors.CodeValidation, "slug must be lowercase alphanumeric with hyphens")
	}
	return &Application{
		ID:          id,
		Name:        name,
		Slug:        slug,
		Description: description,
		Status:      StatusDevelopment,
		Keys:        keys,
		Config:      cfg,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Pricing is the optional billing attachment of a tier.
type Pricing struct {
	BillingPeriod string `json:"billing_period"`
	PriceCents    int64  `json:"price_cents"`
	Currency      string `json:"currency"`
}

// MembershipTier is a named tier scoped to one application. TierLevel
// orders tiers for authorization comparisons; levels need not be contiguous.
type MembershipTier struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	Slug          string    `json:"slug"`
	Name          string    `json:"name"`
	TierLevel     int       `json:"tier_level"`
	Features      []string  `json:"features,omitempty"`
	Pricing       *Pricing  `json:"pricing,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewMembershipTier(id, applicationID, slug, name string, level int, features []string, pricing *Pricing, now time.Time) (*MembershipTier, error) {
	if applicationID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "tier application ID cannot be empty")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "tier name cannot be empty")
	}
	if !slugPattern.MatchString(slug) {
		return nil, dErrors.New(dErrors.CodeValidation, "tier slug must be lowercase alphanumeric with hyphens")
	}
	return &MembershipTier{
		ID:            id,
		ApplicationID: applicationID,
		Slug:          slug,
		Name:          name,
		TierLevel:     level,
		Features:      features,
		Pricing:       pricing,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// MembershipStatus is the billing state of a user's membership.
type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipInactive MembershipStatus = "inactive"
	MembershipPastDue  MembershipStatus = "past_due"
	MembershipCanceled MembershipStatus = "canceled"
)

func ValidMembershipStatus(s MembershipStatus) bool {
	switch s {
	case MembershipActive, MembershipInactive, MembershipPastDue, MembershipCanceled:
		return true
	}
	return false
}

// UserMembership binds one end user to one application at one tier.
// TierID may be empty when the tier was deleted out from under the
// membership; authorization then treats the user as level 0.
type UserMembership struct {
	ID            string           `json:"id"`
	UserID        string           `json:"user_id"`
	ApplicationID string           `json:"application_id"`
	TierID        string           `json:"tier_id,omitempty"`
	Status        MembershipStatus `json:"status"`
	StartedAt     time.Time        `json:"started_at"`
	EndsAt        *time.Time       `json:"ends_at,omitempty"`
	RenewalDate   *time.Time       `json:"renewal_date,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (m *UserMembership) IsActive() bool {
	return m.Status == MembershipActive
}

// Profile is the broker-side record of an end user, keyed by the identity
// provider's user ID.
type Profile struct {
	UserID    string         `json:"user_id"`
	Email     string         `json:"email"`
	FullName  string         `json:"full_name,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Role returns the role recorded in the profile metadata, if any.
func (p *Profile) Role() string {
	if p == nil || p.Metadata == nil {
		return ""
	}
	if role, ok := p.Metadata["role"].(string); ok {
		return role
	}
	return ""
}

// Package identity defines the contract for the external identity provider
// collaborator: password login, signup, credential verification. The broker
// never touches password hashing or session-cookie mechanics itself; it only
// consumes this interface.
package identity

import (
	"context"
	"errors"
)

// Sentinel errors returned by providers. Services translate them into domain
// errors at the boundary.
var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailTaken        = errors.New("email already registered")
	ErrUnavailable       = errors.New("identity provider unavailable")
)

// Identity is the provider's view of an authenticated user.
type Identity struct {
	ID       string
	Email    string
	Metadata map[string]any
}

// Role returns the role claim from provider-level user metadata, if any.
func (i *Identity) Role() string {
	if i == nil || i.Metadata == nil {
		return ""
	}
	if role, ok := i.Metadata["role"].(string); ok {
		return role
	}
	return ""
}

// Provider is the identity collaborator contract.
type Provider interface {
	// SignUp registers a new user and returns its id.
	SignUp(ctx context.Context, email, password string, profile map[string]any) (string, error)

	// SignIn exchanges email+password for a durable session credential.
	SignIn(ctx context.Context, email, password string) (string, error)

	// VerifyCredential checks a credential and returns the identity it
	// belongs to. Returns ErrInvalidCredential when the credential is
	// malformed, expired, or revoked.
	VerifyCredential(ctx context.Context, credential string) (*Identity, error)

	// GetUserByCredential resolves the user record behind a credential.
	GetUserByCredential(ctx context.Context, credential string) (*Identity, error)
}

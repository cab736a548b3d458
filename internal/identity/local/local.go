// Package local implements the identity provider contract in-process.
// Users live in memory, passwords are bcrypt-hashed, and credentials are
// HS256 JWTs. Intended for development and tests; production deployments
// point IDENTITY_MODE=remote at a real provider.
package local

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gatehouse/internal/identity"
	"gatehouse/pkg/secrets"
)

const defaultCredentialTTL = 24 * time.Hour

type user struct {
	id           string
	email        string
	passwordHash string
	metadata     map[string]any
}

// Provider is an in-memory identity provider.
type Provider struct {
	signingKey    []byte
	credentialTTL time.Duration

	mu      sync.RWMutex
	byEmail map[string]*user
	byID    map[string]*user
}

// Option configures the Provider.
type Option func(*Provider)

// WithCredentialTTL overrides the JWT lifetime when greater than zero.
func WithCredentialTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		if ttl > 0 {
			p.credentialTTL = ttl
		}
	}
}

// New constructs a local provider signing credentials with the given key.
func New(signingKey string, opts ...Option) (*Provider, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("signing key is required")
	}
	p := &Provider{
		signingKey:    []byte(signingKey),
		credentialTTL: defaultCredentialTTL,
		byEmail:       make(map[string]*user),
		byID:          make(map[string]*user),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Provider) SignUp(_ context.Context, email, password string, profile map[string]any) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", fmt.Errorf("email and password are required: %w", identity.ErrInvalidCredential)
	}

	hash, err := secrets.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byEmail[email]; exists {
		return "", identity.ErrEmailTaken
	}

	u := &user{
		id:           uuid.NewString(),
		email:        email,
		passwordHash: hash,
		metadata:     profile,
	}
	p.byEmail[email] = u
	p.byID[u.id] = u
	return u.id, nil
}

func (p *Provider) SignIn(_ context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	p.mu.RLock()
	u, ok := p.byEmail[email]
	p.mu.RUnlock()
	if !ok {
		return "", identity.ErrInvalidCredential
	}
	if err := secrets.Verify(password, u.passwordHash); err != nil {
		return "", identity.ErrInvalidCredential
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   u.id,
		"email": u.email,
		"iat":   now.Unix(),
		"exp":   now.Add(p.credentialTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	return signed, nil
}

func (p *Provider) VerifyCredential(_ context.Context, credential string) (*identity.Identity, error) {
	if credential == "" {
		return nil, identity.ErrInvalidCredential
	}

	parsed, err := jwt.Parse(credential, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return nil, identity.ErrInvalidCredential
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, identity.ErrInvalidCredential
	}
	sub, _ := claims["sub"].(string)

	p.mu.RLock()
	u, exists := p.byID[sub]
	p.mu.RUnlock()
	if !exists {
		return nil, identity.ErrInvalidCredential
	}

	return &identity.Identity{ID: u.id, Email: u.email, Metadata: u.metadata}, nil
}

func (p *Provider) GetUserByCredential(ctx context.Context, credential string) (*identity.Identity, error) {
	return p.VerifyCredential(ctx, credential)
}

var _ identity.Provider = (*Provider)(nil)

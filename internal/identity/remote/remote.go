// Package remote implements the identity provider contract against a
// GoTrue-style REST API (the protocol spoken by hosted auth services).
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gatehouse/internal/identity"
)

const defaultTimeout = 10 * time.Second

// Provider talks to a remote identity service over HTTP.
type Provider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Option configures the Provider.
type Option func(*Provider)

// WithHTTPClient injects a custom HTTP client (tests, custom transports).
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.client = client
		}
	}
}

// New constructs a remote provider. baseURL and apiKey are required.
func New(baseURL, apiKey string, opts ...Option) (*Provider, error) {
	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("identity base URL and API key are required")
	}
	p := &Provider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type signUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

type signUpResponse struct {
	ID string `json:"id"`
}

func (p *Provider) SignUp(ctx context.Context, email, password string, profile map[string]any) (string, error) {
	body, err := json.Marshal(signUpRequest{Email: email, Password: password, Data: profile})
	if err != nil {
		return "", fmt.Errorf("marshal signup request: %w", err)
	}

	resp, err := p.post(ctx, "/signup", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out signUpResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("decode signup response: %w", err)
		}
		return out.ID, nil
	case http.StatusUnprocessableEntity, http.StatusConflict:
		return "", identity.ErrEmailTaken
	case http.StatusBadRequest:
		return "", identity.ErrInvalidCredential
	default:
		return "", fmt.Errorf("signup returned status %d: %w", resp.StatusCode, identity.ErrUnavailable)
	}
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (string, error) {
	body, err := json.Marshal(tokenRequest{Email: email, Password: password})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	resp, err := p.post(ctx, "/token?grant_type=password", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out tokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("decode token response: %w", err)
		}
		return out.AccessToken, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return "", identity.ErrInvalidCredential
	default:
		return "", fmt.Errorf("token endpoint returned status %d: %w", resp.StatusCode, identity.ErrUnavailable)
	}
}

type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (p *Provider) VerifyCredential(ctx context.Context, credential string) (*identity.Identity, error) {
	if credential == "" {
		return nil, identity.ErrInvalidCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("build user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("apikey", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request failed: %w: %w", identity.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out userResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode user response: %w", err)
		}
		return &identity.Identity{ID: out.ID, Email: out.Email, Metadata: out.UserMetadata}, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, identity.ErrInvalidCredential
	case http.StatusNotFound:
		return nil, identity.ErrUserNotFound
	default:
		return nil, fmt.Errorf("user endpoint returned status %d: %w", resp.StatusCode, identity.ErrUnavailable)
	}
}

func (p *Provider) GetUserByCredential(ctx context.Context, credential string) (*identity.Identity, error) {
	return p.VerifyCredential(ctx, credential)
}

func (p *Provider) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request failed: %w: %w", identity.ErrUnavailable, err)
	}
	return resp, nil
}

var _ identity.Provider = (*Provider)(nil)

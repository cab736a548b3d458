package models

import (
	"encoding/json"
	"strings"

	dErrors "gatehouse/pkg/domain-errors"
)

// DefaultSessionTTLMinutes applies when expiresInMinutes is absent.
const DefaultSessionTTLMinutes = 30

// IssueSessionRequest is the wire shape of POST /auth/sessions. Field
// names are part of the cross-application contract.
type IssueSessionRequest struct {
	ApplicationID    string          `json:"applicationId"`
	RedirectURL      string          `json:"redirectUrl"`
	UserEmail        string          `json:"userEmail,omitempty"`
	State            json.RawMessage `json:"state,omitempty"`
	ExpiresInMinutes *int            `json:"expiresInMinutes,omitempty"`
}

func (r *IssueSessionRequest) Normalize() {
	if r == nil {
		return
	}
	r.ApplicationID = strings.TrimSpace(r.ApplicationID)
	r.RedirectURL = strings.TrimSpace(r.RedirectURL)
	r.UserEmail = strings.TrimSpace(strings.ToLower(r.UserEmail))
}

func (r *IssueSessionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.ApplicationID == "" || r.RedirectURL == "" {
		return dErrors.New(dErrors.CodeBadRequest, "Missing required parameters: applicationId and redirectUrl")
	}
	// An absent TTL defaults; an explicit non-positive one is a caller bug
	// and is rejected rather than silently rewritten.
	if r.ExpiresInMinutes != nil && *r.ExpiresInMinutes <= 0 {
		return dErrors.New(dErrors.CodeValidation, "expiresInMinutes must be a positive integer")
	}
	return nil
}

// TTLMinutes returns the effective session lifetime.
func (r *IssueSessionRequest) TTLMinutes() int {
	if r.ExpiresInMinutes == nil {
		return DefaultSessionTTLMinutes
	}
	return *r.ExpiresInMinutes
}

// CompleteSessionRequest is the wire shape of POST /auth/sessions/complete.
type CompleteSessionRequest struct {
	SessionToken string `json:"sessionToken"`
	UserID       string `json:"userId"`
}

func (r *CompleteSessionRequest) Normalize() {
	if r == nil {
		return
	}
	r.SessionToken = strings.TrimSpace(r.SessionToken)
	r.UserID = strings.TrimSpace(r.UserID)
}

func (r *CompleteSessionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.SessionToken == "" || r.UserID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "Missing required parameters: sessionToken and userId")
	}
	return nil
}

// VerifyRequest is the wire shape of POST /auth/verify. Unlike the session
// endpoints it uses snake_case field names, mirroring the callers that
// integrate against it.
type VerifyRequest struct {
	ApplicationID     string `json:"application_id"`
	UserToken         string `json:"user_token,omitempty"`
	RequiredTierLevel *int   `json:"required_tier_level,omitempty"`
}

func (r *VerifyRequest) Normalize() {
	if r == nil {
		return
	}
	r.ApplicationID = strings.TrimSpace(r.ApplicationID)
	r.UserToken = strings.TrimSpace(r.UserToken)
}

func (r *VerifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.ApplicationID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "Missing required parameter: application_id")
	}
	return nil
}

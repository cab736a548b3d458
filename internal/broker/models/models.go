// Package models defines the login handshake entities.
package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/mssola/useragent"
)

// RequestMeta captures creation context for audit. The device summary is
// derived from the user agent at issuance so operators can read it without
// reparsing raw strings.
type RequestMeta struct {
	RemoteAddr string `json:"remote_addr,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	Device     string `json:"device,omitempty"`
}

// NewRequestMeta builds request metadata from the raw request context.
func NewRequestMeta(remoteAddr, userAgentString string) RequestMeta {
	meta := RequestMeta{RemoteAddr: remoteAddr, UserAgent: userAgentString}
	if userAgentString == "" {
		return meta
	}

	ua := useragent.New(userAgentString)
	browser, _ := ua.Browser()
	browser = strings.TrimSpace(browser)
	os := strings.TrimSpace(ua.OS())
	platform := "desktop"
	if ua.Mobile() {
		platform = "mobile"
	}
	if browser == "" {
		browser = "unknown"
	}
	if os == "" {
		os = "unknown"
	}
	meta.Device = browser + "/" + os + "/" + platform
	return meta
}

// AuthSession is a short-lived, single-use record of one login handshake.
// The token is the only lookup key; the state blob is echoed back verbatim
// at completion and never interpreted here.
type AuthSession struct {
	Token         string          `json:"token"`
	ApplicationID string          `json:"application_id"`
	RedirectURL   string          `json:"redirect_url"`
	UserEmail     string          `json:"user_email,omitempty"`
	State         json.RawMessage `json:"state,omitempty"`
	ExpiresAt     time.Time       `json:"expires_at"`
	Consumed      bool            `json:"consumed"`
	ConsumedAt    *time.Time      `json:"consumed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Meta          RequestMeta     `json:"meta"`
}

// IsExpired reports whether the session is past its expiry.
func (s *AuthSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Package redirect enforces per-application redirect allow-lists before a
// login session is created.
package redirect

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"gatehouse/internal/audit"
	dirmodels "gatehouse/internal/directory/models"
	"gatehouse/internal/sentinel"
	dErrors "gatehouse/pkg/domain-errors"
)

// ApplicationFinder resolves applications for validation.
type ApplicationFinder interface {
	FindByID(ctx context.Context, applicationID string) (*dirmodels.Application, error)
}

// AuditPublisher records rejected redirects for operator follow-up.
type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Validator checks candidate redirect URLs against the owning
// application's allow-list. Validation fails closed: a missing or inactive
// application, or an empty allow-list, always rejects.
type Validator struct {
	apps           ApplicationFinder
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

// Option configures the Validator.
type Option func(*Validator)

func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(v *Validator) {
		v.auditPublisher = publisher
	}
}

// New constructs a Validator.
func New(apps ApplicationFinder, opts ...Option) *Validator {
	v := &Validator{apps: apps}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate resolves the application and tests the candidate URL against
// its allow-list. On success it returns the application so callers avoid a
// second lookup. The rejection message tells the legitimate caller what to
// fix but never echoes the allow-list, which would leak another tenant's
// configuration to anyone holding an application ID.
func (v *Validator) Validate(ctx context.Context, applicationID, candidate string) (*dirmodels.Application, error) {
	app, err := v.apps.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, v.reject(ctx, applicationID, candidate, "application not found",
				dErrors.New(dErrors.CodeInvalidRedirect, "Invalid redirect URL: application not found or inactive"))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application for redirect validation")
	}
	if !app.IsActive() {
		return nil, v.reject(ctx, applicationID, candidate, "application inactive",
			dErrors.New(dErrors.CodeInvalidRedirect, "Invalid redirect URL: application not found or inactive"))
	}
	if len(app.Config.RedirectAllowList) == 0 {
		return nil, v.reject(ctx, applicationID, candidate, "allow-list empty",
			dErrors.New(dErrors.CodeInvalidRedirect, "Invalid redirect URL: no redirect URLs are configured for this application"))
	}

	candidateURL, err := url.Parse(candidate)
	if err != nil || candidateURL.Scheme == "" || candidateURL.Host == "" {
		return nil, v.reject(ctx, applicationID, candidate, "candidate not an absolute URL",
			dErrors.New(dErrors.CodeInvalidRedirect, "Invalid redirect URL: must be an absolute http or https URL"))
	}

	for _, entry := range app.Config.RedirectAllowList {
		if matches(entry, candidate, candidateURL) {
			return app, nil
		}
	}

	return nil, v.reject(ctx, applicationID, candidate, "not on allow-list",
		dErrors.New(dErrors.CodeInvalidRedirect, "Invalid redirect URL: the URL is not on the application's redirect allow-list; ask an administrator to add it"))
}

// matches implements the documented rule: a candidate matches an
// allow-list entry when the strings are equal, or when scheme and host are
// equal and the entry's path prefixes the candidate's path on a segment
// boundary. "https://a.example/cb" therefore admits "https://a.example/cb/done"
// but not "https://a.example/cb-evil".
func matches(entry, candidate string, candidateURL *url.URL) bool {
	if entry == candidate {
		return true
	}

	entryURL, err := url.Parse(entry)
	if err != nil {
		return false
	}
	if entryURL.Scheme != candidateURL.Scheme || entryURL.Host != candidateURL.Host {
		return false
	}

	entryPath := entryURL.Path
	if entryPath == "" {
		entryPath = "/"
	}
	candidatePath := candidateURL.Path
	if candidatePath == "" {
		candidatePath = "/"
	}

	if entryPath == candidatePath {
		return true
	}
	prefix := strings.TrimSuffix(entryPath, "/")
	return strings.HasPrefix(candidatePath, prefix+"/")
}

// reject logs and audits the attempt, then returns the caller-facing error.
func (v *Validator) reject(ctx context.Context, applicationID, candidate, reason string, err error) error {
	if v.logger != nil {
		v.logger.WarnContext(ctx, "redirect rejected",
			"event", string(audit.EventRedirectRejected),
			"log_type", "audit",
			"application_id", applicationID,
			"attempted_url", candidate,
			"reason", reason,
		)
	}
	if v.auditPublisher != nil {
		_ = v.auditPublisher.Emit(ctx, audit.Event{
			Action:        string(audit.EventRedirectRejected),
			ApplicationID: applicationID,
			AttemptedURL:  candidate,
			Reason:        reason,
		})
	}
	return err
}

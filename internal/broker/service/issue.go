package service

import (
	"context"
	"errors"
	"time"

	"gatehouse/internal/audit"
	"gatehouse/internal/broker/models"
	"gatehouse/internal/platform/tracer"
	"gatehouse/internal/sentinel"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/secrets"
)

const (
	// Session tokens carry 256 bits of entropy, well above the 128-bit
	// floor the handshake requires.
	tokenBytes = 32

	// Collisions are astronomically unlikely at this entropy; one retry
	// exists to turn "astronomically unlikely" into "handled".
	tokenCreateAttempts = 2

	// Redirect URLs beyond these lengths break in some browsers and email
	// clients. The first threshold warns, the second flags likely failure;
	// neither fails the request.
	redirectWarnLength = 2048
	redirectFailLength = 8192
)

// IssueResult is the outcome of a successful session issuance.
type IssueResult struct {
	Token     string
	AuthURL   string
	ExpiresAt time.Time
}

// Issue validates the redirect, persists a single-use session, and returns
// the token plus the login URL the caller redirects the end user to.
func (s *Service) Issue(ctx context.Context, req *models.IssueSessionRequest, meta models.RequestMeta) (result *IssueResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanSessionIssue)
	defer func() { span.End(err) }()

	req.Normalize()
	if err = req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrApplicationID, req.ApplicationID))

	app, err := s.redirects.Validate(ctx, req.ApplicationID, req.RedirectURL)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidRedirect) && s.metrics != nil {
			s.metrics.IncrementRedirectRejections()
		}
		return nil, err
	}

	expiresAt := start.Add(time.Duration(req.TTLMinutes()) * time.Minute)

	var session *models.AuthSession
	for attempt := 0; attempt < tokenCreateAttempts; attempt++ {
		var token string
		token, err = secrets.GenerateToken(tokenBytes)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate session token")
		}

		session = &models.AuthSession{
			Token:         token,
			ApplicationID: app.ID,
			RedirectURL:   req.RedirectURL,
			UserEmail:     req.UserEmail,
			State:         req.State,
			ExpiresAt:     expiresAt,
			CreatedAt:     start,
			Meta:          meta,
		}
		err = s.sessions.Create(ctx, session)
		if err == nil {
			break
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist session")
		}
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist session")
	}

	authURL := s.cfg.PublicURL + "/auth/login?session=" + session.Token

	// Token and redirect lengths (never the raw token) feed diagnosis of
	// URL-length failures downstream.
	redirectLen := len(req.RedirectURL)
	span.SetAttributes(
		tracer.Int64(tracer.AttrTokenLength, int64(len(session.Token))),
		tracer.Int64(tracer.AttrRedirectLength, int64(redirectLen)),
	)
	s.logAudit(ctx, string(audit.EventSessionIssued),
		"application_id", app.ID,
		"token_length", len(session.Token),
		"redirect_length", redirectLen,
		"expires_at", expiresAt,
	)
	switch {
	case redirectLen > redirectFailLength:
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "redirect URL likely to fail downstream",
				"application_id", app.ID,
				"redirect_length", redirectLen,
			)
		}
	case redirectLen > redirectWarnLength:
		if s.logger != nil {
			s.logger.WarnContext(ctx, "redirect URL exceeds safe browser length",
				"application_id", app.ID,
				"redirect_length", redirectLen,
			)
		}
	}

	if s.auditPublisher != nil {
		_ = s.auditPublisher.Emit(ctx, audit.Event{
			Action:        string(audit.EventSessionIssued),
			ApplicationID: app.ID,
			RemoteAddr:    meta.RemoteAddr,
			UserAgent:     meta.UserAgent,
		})
	}
	if s.metrics != nil {
		s.metrics.IncrementSessionsIssued()
		s.metrics.ObserveIssue(start)
	}

	return &IssueResult{
		Token:     session.Token,
		AuthURL:   authURL,
		ExpiresAt: expiresAt,
	}, nil
}

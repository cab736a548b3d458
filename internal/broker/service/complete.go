package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gatehouse/internal/audit"
	"gatehouse/internal/broker/models"
	dirmodels "gatehouse/internal/directory/models"
	"gatehouse/internal/platform/tracer"
	"gatehouse/internal/sentinel"
	dErrors "gatehouse/pkg/domain-errors"
)

// CompletionResult carries everything the application needs to finish its
// login: where to send the user, the opaque state it handed over at
// issuance, and the user's entitlements across applications.
type CompletionResult struct {
	RedirectURL   string
	State         json.RawMessage
	ApplicationID string
	Memberships   []dirmodels.MembershipSummary
}

// Complete consumes a session exactly once and gathers the user's
// memberships. A second call with the same token fails, no matter how
// closely it races the first.
func (s *Service) Complete(ctx context.Context, req *models.CompleteSessionRequest) (result *CompletionResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanSessionComplete)
	defer func() { span.End(err) }()

	req.Normalize()
	if err = req.Validate(); err != nil {
		return nil, err
	}

	session, err := s.sessions.Consume(ctx, req.SessionToken, start)
	if err != nil {
		return nil, s.completionMiss(ctx, req, err)
	}
	span.SetAttributes(tracer.String(tracer.AttrApplicationID, session.ApplicationID))

	// The session is consumed at this point and stays consumed even if
	// membership gathering fails; a retry needs a fresh session.
	memberships, err := s.directory.MembershipSummaries(ctx, req.UserID)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to gather membership summaries",
				"user_id", req.UserID,
				"application_id", session.ApplicationID,
				"error", err,
			)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to load user memberships")
	}

	s.logAudit(ctx, string(audit.EventSessionCompleted),
		"application_id", session.ApplicationID,
		"user_id", req.UserID,
		"membership_count", len(memberships),
	)
	if s.auditPublisher != nil {
		_ = s.auditPublisher.Emit(ctx, audit.Event{
			Action:        string(audit.EventSessionCompleted),
			ApplicationID: session.ApplicationID,
			UserID:        req.UserID,
			RemoteAddr:    session.Meta.RemoteAddr,
			UserAgent:     session.Meta.UserAgent,
		})
	}
	if s.metrics != nil {
		s.metrics.IncrementSessionsCompleted()
		s.metrics.ObserveComplete(start)
	}

	return &CompletionResult{
		RedirectURL:   session.RedirectURL,
		State:         session.State,
		ApplicationID: session.ApplicationID,
		Memberships:   memberships,
	}, nil
}

// completionMiss maps every consume failure to the same caller-facing
// error. Which kind of miss it was is recorded internally only.
func (s *Service) completionMiss(ctx context.Context, req *models.CompleteSessionRequest, cause error) error {
	reason := "not_found"
	switch {
	case errors.Is(cause, sentinel.ErrExpired):
		reason = "expired"
	case errors.Is(cause, sentinel.ErrConsumed):
		reason = "already_consumed"
	case !errors.Is(cause, sentinel.ErrNotFound):
		return dErrors.Wrap(cause, dErrors.CodeInternal, "failed to consume session")
	}

	if s.logger != nil {
		s.logger.WarnContext(ctx, "session completion rejected",
			"reason", reason,
			"user_id", req.UserID,
		)
	}
	if reason == "already_consumed" && s.auditPublisher != nil {
		_ = s.auditPublisher.Emit(ctx, audit.Event{
			Action: string(audit.EventSessionReplayed),
			UserID: req.UserID,
			Reason: reason,
		})
	}
	if s.metrics != nil {
		s.metrics.IncrementCompletionMisses()
	}
	return dErrors.New(dErrors.CodeInvalidSession, "Invalid or expired session token")
}

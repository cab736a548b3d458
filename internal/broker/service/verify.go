package service

import (
	"context"
	"errors"

	"gatehouse/internal/broker/models"
	dirmodels "gatehouse/internal/directory/models"
	"gatehouse/internal/identity"
	"gatehouse/internal/platform/tracer"
	"gatehouse/internal/sentinel"
	dErrors "gatehouse/pkg/domain-errors"
)

// ApplicationInfo is the tenant-branding slice of an application exposed
// on every verification outcome where the application exists.
type ApplicationInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserInfo identifies the authenticated user.
type UserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// VerificationResult is the outcome of an authorization check. A nil
// Membership with Authorized false means the user holds no active
// membership; Authorized false with a non-nil Membership means the tier
// fell short of the required level.
type VerificationResult struct {
	Authorized  bool
	Application *ApplicationInfo
	User        *UserInfo
	Membership  *MembershipInfo
	Memberships []dirmodels.MembershipSummary
}

// MembershipInfo pairs a membership with its resolved tier for the caller.
type MembershipInfo struct {
	ID        string                     `json:"id"`
	Status    dirmodels.MembershipStatus `json:"status"`
	Tier      *dirmodels.MembershipTier  `json:"tier,omitempty"`
	StartedAt string                     `json:"started_at,omitempty"`
}

const verifyOutcomeAuthorized = "authorized"
const verifyOutcomeDenied = "denied"

// Verify answers "may this user act against this application at this tier"
// without side effects. Branches are evaluated in order and the first
// terminal wins: non-error terminals return a result with Authorized
// false, everything else returns a domain error.
func (s *Service) Verify(ctx context.Context, req *models.VerifyRequest) (result *VerificationResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanVerify)
	defer func() {
		if result != nil {
			span.SetAttributes(tracer.Bool(tracer.AttrAuthorized, result.Authorized))
		}
		span.End(err)
	}()

	req.Normalize()
	if err = req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrApplicationID, req.ApplicationID))

	app, err := s.directory.GetApplication(ctx, req.ApplicationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, s.deny(dErrors.New(dErrors.CodeNotFound, "Application not found"))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application")
	}
	if !app.IsActive() {
		return nil, s.deny(dErrors.New(dErrors.CodeNotFound, "Application not found"))
	}
	appInfo := &ApplicationInfo{ID: app.ID, Name: app.Name}

	// No credential is a valid terminal: the caller only wanted to confirm
	// the application exists.
	if req.UserToken == "" {
		return s.decide(&VerificationResult{Authorized: false, Application: appInfo}), nil
	}

	if s.identity == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "identity provider is not configured")
	}
	ident, err := s.identity.VerifyCredential(ctx, req.UserToken)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredential) || errors.Is(err, identity.ErrUserNotFound) {
			return nil, s.deny(dErrors.New(dErrors.CodeUnauthorized, "Invalid user token"))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "identity provider failure")
	}
	userInfo := &UserInfo{ID: ident.ID, Email: ident.Email}

	profile, err := s.directory.GetProfile(ctx, ident.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, s.deny(dErrors.New(dErrors.CodeNotFound, "User profile not found"))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	userInfo.Email = profile.Email

	summaries, err := s.directory.MembershipSummaries(ctx, ident.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load memberships")
	}

	membership, tier, err := s.directory.GetActiveMembership(ctx, ident.ID, app.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return s.decide(&VerificationResult{
				Authorized:  false,
				Application: appInfo,
				User:        userInfo,
				Memberships: summaries,
			}), nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active membership")
	}

	// A membership whose tier was deleted still exists; it authorizes at
	// level zero.
	userLevel := 0
	if tier != nil {
		userLevel = tier.TierLevel
	}
	authorized := req.RequiredTierLevel == nil || userLevel >= *req.RequiredTierLevel

	info := &MembershipInfo{
		ID:     membership.ID,
		Status: membership.Status,
		Tier:   tier,
	}
	if !membership.StartedAt.IsZero() {
		info.StartedAt = membership.StartedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}

	return s.decide(&VerificationResult{
		Authorized:  authorized,
		Application: appInfo,
		User:        userInfo,
		Membership:  info,
		Memberships: summaries,
	}), nil
}

func (s *Service) decide(result *VerificationResult) *VerificationResult {
	if s.metrics != nil {
		outcome := verifyOutcomeDenied
		if result.Authorized {
			outcome = verifyOutcomeAuthorized
		}
		s.metrics.IncrementVerifyDecision(outcome)
	}
	return result
}

func (s *Service) deny(err error) error {
	if s.metrics != nil {
		s.metrics.IncrementVerifyDecision(verifyOutcomeDenied)
	}
	return err
}

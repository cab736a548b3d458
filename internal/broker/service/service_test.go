package service_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatehouse/internal/broker/models"
	"gatehouse/internal/broker/redirect"
	"gatehouse/internal/broker/service"
	sessionstore "gatehouse/internal/broker/store/session"
	dirmodels "gatehouse/internal/directory/models"
	dirservice "gatehouse/internal/directory/service"
	appstore "gatehouse/internal/directory/store/application"
	membershipstore "gatehouse/internal/directory/store/membership"
	profilestore "gatehouse/internal/directory/store/profile"
	tierstore "gatehouse/internal/directory/store/tier"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/testutil"
)

const publicURL = "https://auth.example.com"

type BrokerServiceSuite struct {
	suite.Suite

	ctx       context.Context
	sessions  *sessionstore.InMemoryStore
	directory *dirservice.Service
	service   *service.Service

	app *dirmodels.Application
}

func (s *BrokerServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.sessions = sessionstore.NewInMemory()

	apps := appstore.NewInMemory()
	s.directory = dirservice.New(apps, tierstore.NewInMemory(), membershipstore.NewInMemory(), profilestore.NewInMemory())

	app, _, err := s.directory.CreateApplication(s.ctx, &dirmodels.CreateApplicationRequest{
		Name: "Tenant One",
		Slug: "tenant-one",
		Config: dirmodels.AppConfig{
			RedirectAllowList: []string{"https://tenant.example/cb"},
		},
	})
	s.Require().NoError(err)
	s.app = s.activate(app.ID)

	validator := redirect.New(apps)

	svc, err := service.New(s.sessions, validator, s.directory, nil, service.Config{PublicURL: publicURL + "/"})
	s.Require().NoError(err)
	s.service = svc
}

func (s *BrokerServiceSuite) activate(applicationID string) *dirmodels.Application {
	status := dirmodels.StatusActive
	app, err := s.directory.UpdateApplication(s.ctx, applicationID, &dirmodels.UpdateApplicationRequest{Status: &status})
	s.Require().NoError(err)
	return app
}

func (s *BrokerServiceSuite) issue(req *models.IssueSessionRequest) *service.IssueResult {
	result, err := s.service.Issue(s.ctx, req, models.RequestMeta{RemoteAddr: "203.0.113.9"})
	s.Require().NoError(err)
	return result
}

func (s *BrokerServiceSuite) TestIssueReturnsTokenAndAuthURL() {
	result := s.issue(&models.IssueSessionRequest{
		ApplicationID: s.app.ID,
		RedirectURL:   "https://tenant.example/cb",
	})

	// 32 random bytes base64url-encoded, well above 128 bits of entropy.
	s.Len(result.Token, 43)
	s.Equal(publicURL+"/auth/login?session="+result.Token, result.AuthURL)
	s.WithinDuration(time.Now().Add(30*time.Minute), result.ExpiresAt, 5*time.Second)

	stored, err := s.sessions.FindByToken(s.ctx, result.Token)
	s.Require().NoError(err)
	s.Equal(s.app.ID, stored.ApplicationID)
	s.False(stored.Consumed)
}

func (s *BrokerServiceSuite) TestIssueHonorsExplicitTTL() {
	ttl := 5
	result := s.issue(&models.IssueSessionRequest{
		ApplicationID:    s.app.ID,
		RedirectURL:      "https://tenant.example/cb",
		ExpiresInMinutes: &ttl,
	})
	s.WithinDuration(time.Now().Add(5*time.Minute), result.ExpiresAt, 5*time.Second)
}

func (s *BrokerServiceSuite) TestIssueRejectsNonPositiveTTL() {
	ttl := 0
	_, err := s.service.Issue(s.ctx, &models.IssueSessionRequest{
		ApplicationID:    s.app.ID,
		RedirectURL:      "https://tenant.example/cb",
		ExpiresInMinutes: &ttl,
	}, models.RequestMeta{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *BrokerServiceSuite) TestIssueMissingParameters() {
	_, err := s.service.Issue(s.ctx, &models.IssueSessionRequest{}, models.RequestMeta{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	s.Contains(err.Error(), "Missing required parameters: applicationId and redirectUrl")
}

func (s *BrokerServiceSuite) TestIssueRejectsUnlistedRedirectWithoutSideEffects() {
	_, err := s.service.Issue(s.ctx, &models.IssueSessionRequest{
		ApplicationID: s.app.ID,
		RedirectURL:   "https://evil.example/cb",
	}, models.RequestMeta{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidRedirect))

	count, err := s.sessions.DeleteExpired(s.ctx, time.Now().Add(24*time.Hour))
	s.Require().NoError(err)
	s.Zero(count, "no session row may survive a rejected issuance")
}

func (s *BrokerServiceSuite) TestCompleteReturnsRedirectStateAndMemberships() {
	state := json.RawMessage(`{"returnTo":"/dashboard","nested":{"n":1}}`)
	issued := s.issue(&models.IssueSessionRequest{
		ApplicationID: s.app.ID,
		RedirectURL:   "https://tenant.example/cb",
		State:         state,
	})

	tier, err := s.directory.CreateTier(s.ctx, &dirmodels.CreateTierRequest{
		ApplicationID: s.app.ID,
		Slug:          "pro",
		Name:          "Pro",
		TierLevel:     2,
	})
	s.Require().NoError(err)
	_, err = s.directory.CreateMembership(s.ctx, &dirmodels.CreateMembershipRequest{
		UserID:        "user-1",
		ApplicationID: s.app.ID,
		TierID:        tier.ID,
	})
	s.Require().NoError(err)

	// A membership in an unrelated application must still show up.
	other, _, err := s.directory.CreateApplication(s.ctx, &dirmodels.CreateApplicationRequest{
		Name: "Tenant Two",
		Slug: "tenant-two",
	})
	s.Require().NoError(err)
	_, err = s.directory.CreateMembership(s.ctx, &dirmodels.CreateMembershipRequest{
		UserID:        "user-1",
		ApplicationID: other.ID,
	})
	s.Require().NoError(err)

	result, err := s.service.Complete(s.ctx, &models.CompleteSessionRequest{
		SessionToken: issued.Token,
		UserID:       "user-1",
	})
	s.Require().NoError(err)
	s.Equal("https://tenant.example/cb", result.RedirectURL)
	s.Equal(s.app.ID, result.ApplicationID)
	s.JSONEq(string(state), string(result.State))

	s.Len(result.Memberships, 2)
	byApp := map[string]dirmodels.MembershipSummary{}
	for _, m := range result.Memberships {
		byApp[m.ApplicationID] = m
	}
	s.Require().NotNil(byApp[s.app.ID].Membership.Tier)
	s.Equal(2, byApp[s.app.ID].Membership.Tier.Level)
	s.Contains(byApp, other.ID)
}

func (s *BrokerServiceSuite) TestCompleteReplayRejected() {
	issued := s.issue(&models.IssueSessionRequest{
		ApplicationID: s.app.ID,
		RedirectURL:   "https://tenant.example/cb",
	})
	req := &models.CompleteSessionRequest{SessionToken: issued.Token, UserID: "user-1"}

	_, err := s.service.Complete(s.ctx, req)
	s.Require().NoError(err)

	_, err = s.service.Complete(s.ctx, req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidSession))
	s.Contains(err.Error(), "Invalid or expired session token")
}

func (s *BrokerServiceSuite) TestCompleteExpiredSession() {
	// Seed an already-expired row directly rather than sleeping out a TTL.
	expired := &models.AuthSession{
		Token:         strings.Repeat("e", 43),
		ApplicationID: s.app.ID,
		RedirectURL:   "https://tenant.example/cb",
		ExpiresAt:     time.Now().Add(-time.Minute),
		CreatedAt:     time.Now().Add(-31 * time.Minute),
	}
	s.Require().NoError(s.sessions.Create(s.ctx, expired))

	_, err := s.service.Complete(s.ctx, &models.CompleteSessionRequest{
		SessionToken: expired.Token,
		UserID:       "user-1",
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidSession))
}

func (s *BrokerServiceSuite) TestCompleteUnknownToken() {
	_, err := s.service.Complete(s.ctx, &models.CompleteSessionRequest{
		SessionToken: strings.Repeat("x", 43),
		UserID:       "user-1",
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidSession))
}

func (s *BrokerServiceSuite) TestCompleteMissingParameters() {
	_, err := s.service.Complete(s.ctx, &models.CompleteSessionRequest{UserID: "user-1"})
	s.Require().Error(err)
	s.Contains(err.Error(), "Missing required parameters: sessionToken and userId")
}

func (s *BrokerServiceSuite) TestConcurrentCompletionExactlyOnce() {
	issued := s.issue(&models.IssueSessionRequest{
		ApplicationID: s.app.ID,
		RedirectURL:   "https://tenant.example/cb",
	})

	successes, errs := testutil.RunConcurrentCollect(50, func(int) error {
		_, err := s.service.Complete(s.ctx, &models.CompleteSessionRequest{
			SessionToken: issued.Token,
			UserID:       "user-1",
		})
		return err
	})

	s.Equal(int32(1), successes)
	s.Len(errs, 49)
	for _, err := range errs {
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidSession))
	}
}

func TestBrokerServiceSuite(t *testing.T) {
	suite.Run(t, new(BrokerServiceSuite))
}

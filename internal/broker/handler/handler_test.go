package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"gatehouse/internal/broker/handler"
	"gatehouse/internal/broker/redirect"
	"gatehouse/internal/broker/service"
	sessionstore "gatehouse/internal/broker/store/session"
	dirmodels "gatehouse/internal/directory/models"
	dirservice "gatehouse/internal/directory/service"
	appstore "gatehouse/internal/directory/store/application"
	membershipstore "gatehouse/internal/directory/store/membership"
	profilestore "gatehouse/internal/directory/store/profile"
	tierstore "gatehouse/internal/directory/store/tier"
	"gatehouse/internal/identity/local"
)

type BrokerHandlerSuite struct {
	suite.Suite

	ctx       context.Context
	router    chi.Router
	directory *dirservice.Service
	provider  *local.Provider
	app       *dirmodels.Application
}

func (s *BrokerHandlerSuite) SetupTest() {
	s.ctx = context.Background()

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
	status := dirmodels.StatusActive
	s.app, err = s.directory.UpdateApplication(s.ctx, app.ID, &dirmodels.UpdateApplicationRequest{Status: &status})
	s.Require().NoError(err)

	s.provider, err = local.New("handler-test-signing-key")
	s.Require().NoError(err)

	svc, err := service.New(
		sessionstore.NewInMemory(),
		redirect.New(apps),
		s.directory,
		s.provider,
		service.Config{PublicURL: "https://auth.example.com"},
	)
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	handler.New(svc, nil).Register(s.router)
}

func (s *BrokerHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *BrokerHandlerSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (s *BrokerHandlerSuite) issueSession() (token string) {
	rec := s.do(http.MethodPost, "/auth/sessions", map[string]any{
		"applicationId": s.app.ID,
		"redirectUrl":   "https://tenant.example/cb",
		"state":         map[string]any{"returnTo": "/dashboard"},
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	body := s.decode(rec)
	token, _ = body["sessionToken"].(string)
	s.Require().NotEmpty(token)
	return token
}

func (s *BrokerHandlerSuite) TestIssueSessionResponseShape() {
	rec := s.do(http.MethodPost, "/auth/sessions", map[string]any{
		"applicationId": s.app.ID,
		"redirectUrl":   "https://tenant.example/cb",
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	body := s.decode(rec)
	s.Equal(true, body["success"])
	token, _ := body["sessionToken"].(string)
	s.Len(token, 43)
	s.Contains(body["authUrl"], "https://auth.example.com/auth/login?session="+token)
	s.NotEmpty(body["expiresAt"])
}

func (s *BrokerHandlerSuite) TestIssueSessionMissingParameters() {
	rec := s.do(http.MethodPost, "/auth/sessions", map[string]any{})
	s.Require().Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Missing required parameters: applicationId and redirectUrl", s.decode(rec)["error"])
}

func (s *BrokerHandlerSuite) TestIssueSessionRejectedRedirectCarriesDetails() {
	rec := s.do(http.MethodPost, "/auth/sessions", map[string]any{
		"applicationId": s.app.ID,
		"redirectUrl":   "https://evil.example/cb",
	})
	s.Require().Equal(http.StatusBadRequest, rec.Code)

	body := s.decode(rec)
	s.Equal("Invalid redirect URL", body["error"])
	s.NotEmpty(body["details"])
	s.NotContains(rec.Body.String(), "tenant.example", "allow-list entries must not leak")
}

func (s *BrokerHandlerSuite) TestCompleteSessionResponseShape() {
	token := s.issueSession()

	rec := s.do(http.MethodPost, "/auth/sessions/complete", map[string]any{
		"sessionToken": token,
		"userId":       "user-1",
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	body := s.decode(rec)
	s.Equal(true, body["success"])
	s.Equal("https://tenant.example/cb", body["redirectUrl"])
	s.Equal(s.app.ID, body["applicationId"])
	s.JSONEq(`{"returnTo":"/dashboard"}`, string(s.raw(rec, "state")))
	s.Equal([]any{}, body["userMemberships"])
}

func (s *BrokerHandlerSuite) raw(rec *httptest.ResponseRecorder, key string) json.RawMessage {
	var body map[string]json.RawMessage
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body[key]
}

func (s *BrokerHandlerSuite) TestCompleteSessionReplay() {
	token := s.issueSession()

	first := s.do(http.MethodPost, "/auth/sessions/complete", map[string]any{
		"sessionToken": token,
		"userId":       "user-1",
	})
	s.Require().Equal(http.StatusOK, first.Code)

	second := s.do(http.MethodPost, "/auth/sessions/complete", map[string]any{
		"sessionToken": token,
		"userId":       "user-1",
	})
	s.Require().Equal(http.StatusBadRequest, second.Code)
	s.Equal("Invalid or expired session token", s.decode(second)["error"])
}

func (s *BrokerHandlerSuite) TestCompleteSessionMissingParameters() {
	rec := s.do(http.MethodPost, "/auth/sessions/complete", map[string]any{"userId": "user-1"})
	s.Require().Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Missing required parameters: sessionToken and userId", s.decode(rec)["error"])
}

func (s *BrokerHandlerSuite) TestVerifyMissingApplicationID() {
	rec := s.do(http.MethodPost, "/auth/verify", map[string]any{})
	s.Require().Equal(http.StatusBadRequest, rec.Code)

	body := s.decode(rec)
	s.Equal("Missing required parameter: application_id", body["error"])
	s.Equal(false, body["authorized"])
}

func (s *BrokerHandlerSuite) TestVerifyWithoutCredential() {
	rec := s.do(http.MethodPost, "/auth/verify", map[string]any{
		"application_id": s.app.ID,
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	body := s.decode(rec)
	s.Equal(false, body["authorized"])
	application, _ := body["application"].(map[string]any)
	s.Require().NotNil(application)
	s.Equal(s.app.ID, application["id"])
	s.Equal("Tenant One", application["name"])
	s.NotContains(body, "user")
	s.NotContains(body, "membership")
}

func (s *BrokerHandlerSuite) TestVerifyInvalidToken() {
	rec := s.do(http.MethodPost, "/auth/verify", map[string]any{
		"application_id": s.app.ID,
		"user_token":     "not-a-real-token",
	})
	s.Require().Equal(http.StatusUnauthorized, rec.Code)

	body := s.decode(rec)
	s.Equal("Invalid user token", body["error"])
	s.Equal(false, body["authorized"])
}

func (s *BrokerHandlerSuite) TestVerifyUnknownApplication() {
	rec := s.do(http.MethodPost, "/auth/verify", map[string]any{
		"application_id": "no-such-app",
	})
	s.Require().Equal(http.StatusNotFound, rec.Code)
	s.Equal(false, s.decode(rec)["authorized"])
}

func (s *BrokerHandlerSuite) TestVerifyTierGate() {
	// Sign a user up through the identity provider and give them a level 1
	// membership, then require level 2.
	userID, err := s.provider.SignUp(s.ctx, "user@example.com", "correct-horse", nil)
	s.Require().NoError(err)
	credential, err := s.provider.SignIn(s.ctx, "user@example.com", "correct-horse")
	s.Require().NoError(err)
	s.Require().NoError(s.directory.UpsertProfile(s.ctx, &dirmodels.Profile{
		UserID: userID,
		Email:  "user@example.com",
	}))
	tier, err := s.directory.CreateTier(s.ctx, &dirmodels.CreateTierRequest{
		ApplicationID: s.app.ID,
		Slug:          "basic",
		Name:          "Basic",
		TierLevel:     1,
	})
	s.Require().NoError(err)
	_, err = s.directory.CreateMembership(s.ctx, &dirmodels.CreateMembershipRequest{
		UserID:        userID,
		ApplicationID: s.app.ID,
		TierID:        tier.ID,
	})
	s.Require().NoError(err)

	rec := s.do(http.MethodPost, "/auth/verify", map[string]any{
		"application_id":      s.app.ID,
		"user_token":          credential,
		"required_tier_level": 2,
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	body := s.decode(rec)
	s.Equal(false, body["authorized"])
	membership, _ := body["membership"].(map[string]any)
	s.Require().NotNil(membership)
	tierBody, _ := membership["tier"].(map[string]any)
	s.Require().NotNil(tierBody)
	s.Equal(float64(1), tierBody["tier_level"])

	rec = s.do(http.MethodPost, "/auth/verify", map[string]any{
		"application_id":      s.app.ID,
		"user_token":          credential,
		"required_tier_level": 1,
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(true, s.decode(rec)["authorized"])
}

func (s *BrokerHandlerSuite) TestHealthProbe() {
	rec := s.do(http.MethodGet, "/auth/verify", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	body := s.decode(rec)
	s.Equal("operational", body["status"])
	s.NotEmpty(body["service"])
	s.NotEmpty(body["version"])
	s.NotEmpty(body["timestamp"])
}

func (s *BrokerHandlerSuite) TestPreflight() {
	rec := s.do(http.MethodOptions, "/auth/sessions", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("*", rec.Header().Get("Access-Control-Allow-Origin"))
	s.Equal("POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	s.Equal("Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestBrokerHandlerSuite(t *testing.T) {
	suite.Run(t, new(BrokerHandlerSuite))
}

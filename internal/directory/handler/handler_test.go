package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/directory/models"
	"gatehouse/internal/directory/service"
	"gatehouse/internal/directory/store/application"
	"gatehouse/internal/directory/store/membership"
	"gatehouse/internal/directory/store/profile"
	"gatehouse/internal/directory/store/tier"
	"gatehouse/internal/identity/local"
)

func newTestRouter(t *testing.T) (*chi.Mux, *service.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(
		application.NewInMemory(),
		tier.NewInMemory(),
		membership.NewInMemory(),
		profile.NewInMemory(),
		service.WithLogger(logger),
	)
	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return r, svc
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateApplicationReturnsSecretOnce(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postJSON(t, router, "/admin/applications", map[string]any{
		"name": "Acme Portal",
		"slug": "acme",
		"config": map[string]any{
			"redirect_allow_list": []string{"https://acme.example/callback"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp ApplicationCreateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.SecretKey, "sk_acme_")
	assert.Contains(t, resp.Application.PublicKey, "pk_acme_")

	get := httptest.NewRequest(http.MethodGet, "/admin/applications/"+resp.Application.ID, nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, get)
	require.Equal(t, http.StatusOK, getRec.Code)
	assert.NotContains(t, getRec.Body.String(), resp.SecretKey)
	assert.NotContains(t, getRec.Body.String(), "secret_key_hash")
}

func TestCreateApplicationValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postJSON(t, router, "/admin/applications", map[string]any{"slug": "no-name"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteApplicationConflict(t *testing.T) {
	router, svc := newTestRouter(t)

	rec := postJSON(t, router, "/admin/applications", map[string]any{"name": "Acme", "slug": "acme"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created ApplicationCreateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	_, err := svc.CreateMembership(t.Context(), &models.CreateMembershipRequest{
		UserID:        "user-1",
		ApplicationID: created.Application.ID,
	})
	require.NoError(t, err)

	del := httptest.NewRequest(http.MethodDelete, "/admin/applications/"+created.Application.ID, nil)
	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, del)
	assert.Equal(t, http.StatusConflict, delRec.Code)
}

func TestAdminOnlyMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(
		application.NewInMemory(),
		tier.NewInMemory(),
		membership.NewInMemory(),
		profile.NewInMemory(),
		service.WithLogger(logger),
	)
	provider, err := local.New("test-signing-key")
	require.NoError(t, err)

	ctx := t.Context()
	_, err = provider.SignUp(ctx, "admin@example.com", "password1", map[string]any{"role": "admin"})
	require.NoError(t, err)
	_, err = provider.SignUp(ctx, "user@example.com", "password1", nil)
	require.NoError(t, err)

	adminCred, err := provider.SignIn(ctx, "admin@example.com", "password1")
	require.NoError(t, err)
	userCred, err := provider.SignIn(ctx, "user@example.com", "password1")
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(AdminOnly(provider, svc, logger))
		New(svc, logger).Register(r)
	})

	request := func(credential string) int {
		req := httptest.NewRequest(http.MethodGet, "/admin/applications", nil)
		if credential != "" {
			req.Header.Set("Authorization", "Bearer "+credential)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, request(""))
	assert.Equal(t, http.StatusUnauthorized, request("garbage"))
	assert.Equal(t, http.StatusForbidden, request(userCred))
	assert.Equal(t, http.StatusOK, request(adminCred))
}

// Package handler exposes the public authentication handshake surface.
//
// Unlike the admin surface, response shapes here are part of the
// cross-application wire contract and are written out field by field.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatehouse/internal/broker/models"
	"gatehouse/internal/broker/service"
	"gatehouse/internal/platform/health"
	"gatehouse/internal/platform/middleware"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/httputil"
)

const serviceName = "gatehouse-auth"

// Broker defines the handshake operations the public surface needs.
type Broker interface {
	Issue(ctx context.Context, req *models.IssueSessionRequest, meta models.RequestMeta) (*service.IssueResult, error)
	Complete(ctx context.Context, req *models.CompleteSessionRequest) (*service.CompletionResult, error)
	Verify(ctx context.Context, req *models.VerifyRequest) (*service.VerificationResult, error)
}

type Handler struct {
	broker Broker
	logger *slog.Logger
}

func New(broker Broker, logger *slog.Logger) *Handler {
	return &Handler{broker: broker, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/sessions", h.HandleIssueSession)
	r.Options("/auth/sessions", h.HandlePreflight)
	r.Post("/auth/sessions/complete", h.HandleCompleteSession)
	r.Post("/auth/verify", h.HandleVerify)
	r.Get("/auth/verify", h.HandleProbe)
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HandleIssueSession validates the redirect and mints a single-use session
// token for the application's login handoff.
func (h *Handler) HandleIssueSession(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[models.IssueSessionRequest](h, w, r)
	if !ok {
		return
	}

	meta := models.NewRequestMeta(r.RemoteAddr, r.UserAgent())
	result, err := h.broker.Issue(r.Context(), req, meta)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"sessionToken": result.Token,
		"authUrl":      result.AuthURL,
		"expiresAt":    result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// HandleCompleteSession consumes a session token exactly once and returns
// the redirect target, the opaque state, and the user's memberships.
func (h *Handler) HandleCompleteSession(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[models.CompleteSessionRequest](h, w, r)
	if !ok {
		return
	}

	result, err := h.broker.Complete(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	state := result.State
	if len(state) == 0 {
		state = json.RawMessage("null")
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"redirectUrl":     result.RedirectURL,
		"state":           state,
		"applicationId":   result.ApplicationID,
		"userMemberships": result.Memberships,
	})
}

// HandleVerify answers an authorization check. Every response, error or
// not, carries an explicit authorized flag.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[models.VerifyRequest](h, w, r)
	if !ok {
		return
	}

	result, err := h.broker.Verify(r.Context(), req)
	if err != nil {
		status, message := h.classify(r.Context(), err)
		httputil.WriteJSON(w, status, map[string]any{
			"error":      message,
			"authorized": false,
		})
		return
	}

	body := map[string]any{
		"authorized":  result.Authorized,
		"application": result.Application,
	}
	if result.User != nil {
		body["user"] = result.User
	}
	if result.Membership != nil {
		body["membership"] = result.Membership
	}
	if result.Memberships != nil {
		body["userMemberships"] = result.Memberships
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}

// HandleProbe reports liveness in the shape monitoring integrations poll.
func (h *Handler) HandleProbe(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"service":   serviceName,
		"status":    "operational",
		"version":   health.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandlePreflight answers CORS preflight for browser-origin issuance.
func (h *Handler) HandlePreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusOK)
}

// classify extracts the HTTP status and caller-facing message for a
// domain error. Anything unrecognized is an internal failure and its
// detail is logged, not returned.
func (h *Handler) classify(ctx context.Context, err error) (int, string) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) && domainErr.Code != dErrors.CodeInternal {
		return httputil.DomainCodeToHTTPStatus(domainErr.Code), domainErr.Message
	}
	if h.logger != nil {
		h.logger.ErrorContext(ctx, "request failed",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
	}
	return http.StatusInternalServerError, "Internal server error"
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := h.classify(r.Context(), err)
	body := errorBody{Error: message}
	if dErrors.HasCode(err, dErrors.CodeInvalidRedirect) {
		body.Error = "Invalid redirect URL"
		body.Details = message
	}
	httputil.WriteJSON(w, status, body)
}

func decode[T any](h *Handler, w http.ResponseWriter, r *http.Request) (*T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if h.logger != nil {
			h.logger.WarnContext(r.Context(), "malformed request body",
				"error", err,
				"request_id", middleware.GetRequestID(r.Context()),
			)
		}
		httputil.WriteJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid JSON body"})
		return nil, false
	}
	return &req, true
}

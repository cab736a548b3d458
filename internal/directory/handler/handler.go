// Package handler exposes the admin CRUD surface of the directory.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatehouse/internal/directory/models"
	"gatehouse/internal/platform/middleware"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/httputil"
)

// Service defines the directory operations the admin surface needs.
// Returns domain objects, not HTTP response DTOs.
type Service interface {
	CreateApplication(ctx context.Context, req *models.CreateApplicationRequest) (*models.Application, string, error)
	GetApplication(ctx context.Context, applicationID string) (*models.Application, error)
	ListApplications(ctx context.Context) ([]*models.Application, error)
	UpdateApplication(ctx context.Context, applicationID string, req *models.UpdateApplicationRequest) (*models.Application, error)
	DeleteApplication(ctx context.Context, applicationID string) error
	CreateTier(ctx context.Context, req *models.CreateTierRequest) (*models.MembershipTier, error)
	ListTiersByApplication(ctx context.Context, applicationID string) ([]*models.MembershipTier, error)
	UpdateTier(ctx context.Context, tierID string, req *models.UpdateTierRequest) (*models.MembershipTier, error)
	DeleteTier(ctx context.Context, tierID string) error
	CreateMembership(ctx context.Context, req *models.CreateMembershipRequest) (*models.UserMembership, error)
	UpdateMembershipStatus(ctx context.Context, membershipID string, status models.MembershipStatus) (*models.UserMembership, error)
	ListMembershipsForUser(ctx context.Context, userID string) ([]*models.UserMembership, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/applications", h.HandleCreateApplication)
	r.Get("/admin/applications", h.HandleListApplications)
	r.Get("/admin/applications/{id}", h.HandleGetApplication)
	r.Put("/admin/applications/{id}", h.HandleUpdateApplication)
	r.Delete("/admin/applications/{id}", h.HandleDeleteApplication)
	r.Post("/admin/tiers", h.HandleCreateTier)
	r.Get("/admin/applications/{id}/tiers", h.HandleListTiers)
	r.Put("/admin/tiers/{id}", h.HandleUpdateTier)
	r.Delete("/admin/tiers/{id}", h.HandleDeleteTier)
	r.Post("/admin/memberships", h.HandleCreateMembership)
	r.Put("/admin/memberships/{id}/status", h.HandleUpdateMembershipStatus)
	r.Get("/admin/users/{id}/memberships", h.HandleListUserMemberships)
}

// HandleCreateApplication registers an application and returns its key
// pair. The secret key appears in this response only.
func (h *Handler) HandleCreateApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateApplicationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	app, secretKey, err := h.service.CreateApplication(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "create application failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, &ApplicationCreateResponse{
		Application: toApplicationResponse(app),
		SecretKey:   secretKey,
	})
}

func (h *Handler) HandleListApplications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	apps, err := h.service.ListApplications(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list applications failed", "error", err, "request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, err)
		return
	}

	out := make([]*ApplicationResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, toApplicationResponse(app))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleGetApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	app, err := h.service.GetApplication(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApplicationResponse(app))
}

func (h *Handler) HandleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.UpdateApplicationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	app, err := h.service.UpdateApplication(ctx, chi.URLParam(r, "id"), req)
	if err != nil {
		h.logger.ErrorContext(ctx, "update application failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApplicationResponse(app))
}

func (h *Handler) HandleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	if err := h.service.DeleteApplication(ctx, chi.URLParam(r, "id")); err != nil {
		h.logger.ErrorContext(ctx, "delete application failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleCreateTier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateTierRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	t, err := h.service.CreateTier(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "create tier failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) HandleListTiers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tiers, err := h.service.ListTiersByApplication(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tiers)
}

func (h *Handler) HandleUpdateTier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.UpdateTierRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	t, err := h.service.UpdateTier(ctx, chi.URLParam(r, "id"), req)
	if err != nil {
		h.logger.ErrorContext(ctx, "update tier failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) HandleDeleteTier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	if err := h.service.DeleteTier(ctx, chi.URLParam(r, "id")); err != nil {
		h.logger.ErrorContext(ctx, "delete tier failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleCreateMembership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateMembershipRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	m, err := h.service.CreateMembership(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "create membership failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) HandleUpdateMembershipStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.UpdateMembershipStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	m, err := h.service.UpdateMembershipStatus(ctx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.logger.ErrorContext(ctx, "update membership status failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) HandleListUserMemberships(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "id")
	if userID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "user ID required"))
		return
	}

	ms, err := h.service.ListMembershipsForUser(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ms)
}

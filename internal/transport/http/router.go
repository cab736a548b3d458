// Package httptransport assembles the full HTTP surface: the public
// handshake endpoints, the bearer-guarded admin surface, health probes,
// and Prometheus metrics.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	brokerhandler "gatehouse/internal/broker/handler"
	dirhandler "gatehouse/internal/directory/handler"
	"gatehouse/internal/platform/health"
	"gatehouse/internal/platform/middleware"
)

// Deps carries the wired handlers and collaborators the router mounts.
type Deps struct {
	Broker   *brokerhandler.Handler
	Admin    *dirhandler.Handler
	Verifier dirhandler.CredentialVerifier
	Authz    dirhandler.AdminAuthorizer
	Health   *health.Handler
	Logger   *slog.Logger
}

const requestTimeout = 30 * time.Second

// NewRouter wires all endpoints with the shared middleware stack. The
// public surface is CORS-open for browser-origin issuance; the admin
// surface sits behind the bearer admin guard.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(requestTimeout))

	if deps.Health != nil {
		deps.Health.Register(r)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(public chi.Router) {
		public.Use(middleware.CORS)
		deps.Broker.Register(public)
	})

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.ContentTypeJSON)
		admin.Use(dirhandler.AdminOnly(deps.Verifier, deps.Authz, deps.Logger))
		deps.Admin.Register(admin)
	})

	return r
}

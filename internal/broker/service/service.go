// Package service implements the cross-application login handshake:
// session issuance, exactly-once completion, and tiered authorization.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	brokermetrics "gatehouse/internal/broker/metrics"
	"gatehouse/internal/platform/middleware"
	"gatehouse/internal/platform/tracer"
)

// Config carries the service's static settings.
type Config struct {
	// PublicURL is the externally reachable base URL of the broker's login
	// page, e.g. "https://auth.example.com". Login URLs are built from it.
	PublicURL string
}

// Service orchestrates the handshake. Collaborators are injected; there
// is no package-level state.
type Service struct {
	sessions       SessionStore
	redirects      RedirectValidator
	directory      Directory
	identity       CredentialVerifier
	cfg            Config
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *brokermetrics.Metrics
	tracer         tracer.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *brokermetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func New(sessions SessionStore, redirects RedirectValidator, directory Directory, identityProvider CredentialVerifier, cfg Config, opts ...Option) (*Service, error) {
	if sessions == nil || redirects == nil || directory == nil {
		return nil, fmt.Errorf("sessions, redirects, and directory are required")
	}
	if cfg.PublicURL == "" {
		return nil, fmt.Errorf("public URL is required")
	}
	s := &Service{
		sessions:  sessions,
		redirects: redirects,
		directory: directory,
		identity:  identityProvider,
		cfg: Config{
			PublicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
		},
		tracer: tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	attributes = append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, attributes...)
}

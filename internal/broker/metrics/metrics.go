package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SessionsIssued     prometheus.Counter
	SessionsCompleted  prometheus.Counter
	CompletionMisses   prometheus.Counter
	RedirectRejections prometheus.Counter
	VerifyDecisions    *prometheus.CounterVec
	IssueDuration      prometheus.Histogram
	CompleteDuration   prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		SessionsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_sessions_issued_total",
			Help: "Total number of login sessions issued",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_sessions_completed_total",
			Help: "Total number of login sessions completed",
		}),
		CompletionMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_session_completion_misses_total",
			Help: "Completion attempts rejected as invalid, expired, or replayed",
		}),
		RedirectRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_redirect_rejections_total",
			Help: "Session issuance attempts rejected by redirect validation",
		}),
		VerifyDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_verify_decisions_total",
			Help: "Authorization verify decisions by outcome",
		}, []string{"outcome"}),
		IssueDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatehouse_session_issue_duration_seconds",
			Help:    "Duration of session issuance",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		CompleteDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatehouse_session_complete_duration_seconds",
			Help:    "Duration of session completion including membership gathering",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementSessionsIssued() {
	m.SessionsIssued.Inc()
}

func (m *Metrics) IncrementSessionsCompleted() {
	m.SessionsCompleted.Inc()
}

func (m *Metrics) IncrementCompletionMisses() {
	m.CompletionMisses.Inc()
}

func (m *Metrics) IncrementRedirectRejections() {
	m.RedirectRejections.Inc()
}

func (m *Metrics) IncrementVerifyDecision(outcome string) {
	m.VerifyDecisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveIssue(start time.Time) {
	m.IssueDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveComplete(start time.Time) {
	m.CompleteDuration.Observe(time.Since(start).Seconds())
}

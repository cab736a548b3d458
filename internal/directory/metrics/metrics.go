package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ApplicationsCreated prometheus.Counter
	ApplicationsDeleted prometheus.Counter
	TiersCreated        prometheus.Counter
	MembershipsCreated  prometheus.Counter
	DeleteGuardRejected prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ApplicationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_applications_created_total",
			Help: "Total number of applications registered",
		}),
		ApplicationsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_applications_deleted_total",
			Help: "Total number of applications deleted",
		}),
		TiersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_tiers_created_total",
			Help: "Total number of membership tiers created",
		}),
		MembershipsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_memberships_created_total",
			Help: "Total number of user memberships created",
		}),
		DeleteGuardRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_application_delete_guard_rejections_total",
			Help: "Application deletions rejected because active memberships exist",
		}),
	}
}

func (m *Metrics) IncrementApplicationsCreated() {
	m.ApplicationsCreated.Inc()
}

func (m *Metrics) IncrementApplicationsDeleted() {
	m.ApplicationsDeleted.Inc()
}

func (m *Metrics) IncrementTiersCreated() {
	m.TiersCreated.Inc()
}

func (m *Metrics) IncrementMembershipsCreated() {
	m.MembershipsCreated.Inc()
}

func (m *Metrics) IncrementDeleteGuardRejected() {
	m.DeleteGuardRejected.Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters exposed on /metrics. Mutations are labelled by audit action so
// dashboards can watch delete volume separately.
var (
	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolattend_mutations_total",
		Help: "Attendance record mutations, by action and outcome.",
	}, []string{"action", "outcome"})

	AuditEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schoolattend_audit_entries_total",
		Help: "Audit trail entries written.",
	})

	AnalyticsComputes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolattend_analytics_computes_total",
		Help: "Analytics snapshot computations, by outcome.",
	}, []string{"outcome"})
)

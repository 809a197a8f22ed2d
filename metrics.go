package auditry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Skip reasons reported on auditry_entries_skipped_total.
const (
	skipNotNew       = "not_new"
	skipNotModified  = "not_modified"
	skipNoRows       = "no_rows"
	skipNotDeleted   = "not_deleted"
	skipEmptyChanges = "empty_changes"
	skipContext      = "context"
)

// Metrics holds Prometheus metrics for the recorder.
type Metrics struct {
	Recorded      *prometheus.CounterVec
	Skipped       *prometheus.CounterVec
	StoreFailures prometheus.Counter
}

// NewMetrics creates recorder metrics. They are registered on reg when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Recorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditry_entries_recorded_total",
			Help: "Total number of audit entries appended, by operation type",
		}, []string{"type"}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditry_entries_skipped_total",
			Help: "Total number of hook calls that did not qualify for an audit entry, by reason",
		}, []string{"reason"}),
		StoreFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auditry_store_failures_total",
			Help: "Total number of audit store append failures",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Recorded, m.Skipped, m.StoreFailures)
	}
	return m
}

func (m *Metrics) incRecorded(t OpType) {
	m.Recorded.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) incSkipped(reason string) {
	m.Skipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) incStoreFailures() {
	m.StoreFailures.Inc()
}

package publisher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for audit delivery.
type Metrics struct {
	Persisted       prometheus.Counter
	PersistFailures prometheus.Counter
	Dropped         prometheus.Counter
	Sampled         prometheus.Counter
	PersistDuration prometheus.Histogram
}

// NewMetrics registers the audit delivery collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Persisted: f.NewCounter(prometheus.CounterOpts{
			Name: "ekyc_audit_events_persisted_total",
			Help: "Total number of audit events persisted",
		}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "ekyc_audit_persist_failures_total",
			Help: "Total number of audit event persistence failures",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "ekyc_audit_events_dropped_total",
			Help: "Total number of audit events dropped because the async buffer was full",
		}),
		Sampled: f.NewCounter(prometheus.CounterOpts{
			Name: "ekyc_audit_events_sampled_out_total",
			Help: "Total number of operations audit events dropped by sampling",
		}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ekyc_audit_persist_duration_seconds",
			Help:    "Time spent per audit store write",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
	}
}

func (m *Metrics) observePersist(n int, d time.Duration) {
	if m == nil {
		return
	}
	m.Persisted.Add(float64(n))
	m.PersistDuration.Observe(d.Seconds())
}

func (m *Metrics) incPersistFailures(n int) {
	if m == nil {
		return
	}
	m.PersistFailures.Add(float64(n))
}

func (m *Metrics) incDropped() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}

func (m *Metrics) incSampled() {
	if m == nil {
		return
	}
	m.Sampled.Inc()
}

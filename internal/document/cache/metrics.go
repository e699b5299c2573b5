package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	backendMemory = "memory"
	backendRedis  = "redis"
)

// Metrics counts cache lookups by backend and result.
type Metrics struct {
	lookups *prometheus.CounterVec
}

// NewMetrics registers the cache collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		lookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ekyc_classification_cache_lookups_total",
			Help: "Classification cache lookups by backend and result",
		}, []string{"backend", "result"}),
	}
}

func (m *Metrics) hit(backend string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(backend, "hit").Inc()
}

func (m *Metrics) miss(backend string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(backend, "miss").Inc()
}

// Package metrics holds the HTTP-level Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds HTTP request metrics.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	UploadBytes     prometheus.Histogram
}

// New registers the HTTP collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ekyc_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		UploadBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ekyc_http_upload_bytes",
			Help:    "Size of uploaded document images",
			Buckets: prometheus.ExponentialBuckets(16<<10, 2, 10),
		}),
	}
}

// ObserveRequest records one request.
func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

// ObserveUpload records the size of one uploaded image.
func (m *Metrics) ObserveUpload(size int) {
	if m == nil {
		return
	}
	m.UploadBytes.Observe(float64(size))
}

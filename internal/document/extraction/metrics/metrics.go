package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for document extraction.
type Metrics struct {
	// Backend call latencies by operation
	BackendLatency *prometheus.HistogramVec

	// Extraction outcomes by document type and outcome
	ExtractionOutcome *prometheus.CounterVec

	// Per-template failures recorded under partial success
	FieldFailures *prometheus.CounterVec

	// Classification retries
	Retries *prometheus.CounterVec

	// Classification confidence of accepted documents
	ClassificationConfidence *prometheus.HistogramVec

	// Overall extraction latency
	ExtractLatency prometheus.Histogram
}

// New registers the extraction metrics with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		BackendLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ekyc_backend_call_duration_seconds",
			Help:    "Duration of vision backend calls by operation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"operation"}), // classify, fields, landmarks, face, signature, liveness

		ExtractionOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ekyc_extraction_outcomes_total",
			Help: "Total extraction outcomes by document type and outcome",
		}, []string{"document_type", "outcome"}),

		FieldFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ekyc_field_extraction_failures_total",
			Help: "Declared templates that came back empty, by document type and template",
		}, []string{"document_type", "template"}),

		Retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ekyc_backend_retries_total",
			Help: "Retried backend calls by operation",
		}, []string{"operation"}),

		ClassificationConfidence: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ekyc_classification_confidence",
			Help:    "Top classification confidence by document type",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
		}, []string{"document_type"}),

		ExtractLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ekyc_extract_duration_seconds",
			Help:    "Duration of a full extraction including classification",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}),
	}
}

// ObserveBackendLatency records the duration of one backend call.
func (m *Metrics) ObserveBackendLatency(operation string, d time.Duration) {
	if m != nil {
		m.BackendLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// IncrementOutcome records an extraction outcome.
func (m *Metrics) IncrementOutcome(documentType, outcome string) {
	if m != nil {
		m.ExtractionOutcome.WithLabelValues(documentType, outcome).Inc()
	}
}

// IncrementFieldFailure records a template that fell back to its empty value.
func (m *Metrics) IncrementFieldFailure(documentType, template string) {
	if m != nil {
		m.FieldFailures.WithLabelValues(documentType, template).Inc()
	}
}

// IncrementRetry records a retried backend call.
func (m *Metrics) IncrementRetry(operation string) {
	if m != nil {
		m.Retries.WithLabelValues(operation).Inc()
	}
}

// ObserveClassification records the confidence of an accepted classification.
func (m *Metrics) ObserveClassification(documentType string, confidence float64) {
	if m != nil {
		m.ClassificationConfidence.WithLabelValues(documentType).Observe(confidence)
	}
}

// ObserveExtractLatency records the total extraction duration.
func (m *Metrics) ObserveExtractLatency(d time.Duration) {
	if m != nil {
		m.ExtractLatency.Observe(d.Seconds())
	}
}

// Package classify decides which registered document type an image shows.
//
// Classification makes a single backend call per invocation. Retrying is
// the caller's decision.
package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ekyc/internal/document/models"
	"ekyc/internal/document/ports"
	"ekyc/internal/document/providers"
	"ekyc/internal/document/registry"
)

// DefaultThreshold is the minimum top-label confidence accepted when none is
// configured.
const DefaultThreshold = 0.8

// Classifier maps classification backend labels onto registered document types.
type Classifier struct {
	backend   ports.Classifier
	registry  *registry.Registry
	cache     ports.ClassificationCache
	threshold float64
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithThreshold sets the minimum accepted confidence. A top label exactly at
// the threshold is accepted.
func WithThreshold(threshold float64) Option {
	return func(c *Classifier) {
		c.threshold = threshold
	}
}

// WithCache enables the classification cache.
func WithCache(cache ports.ClassificationCache) Option {
	return func(c *Classifier) {
		c.cache = cache
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// New creates a Classifier over backend. It panics when backend or reg is nil.
func New(backend ports.Classifier, reg *registry.Registry, opts ...Option) *Classifier {
	if backend == nil {
		panic("classify: backend is required")
	}
	if reg == nil {
		panic("classify: registry is required")
	}
	c := &Classifier{
		backend:   backend,
		registry:  reg,
		threshold: DefaultThreshold,
		logger:    slog.Default(),
		tracer:    otel.Tracer("ekyc/document/classify"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Threshold returns the configured confidence threshold.
func (c *Classifier) Threshold() float64 {
	return c.threshold
}

// Classify returns the document type of image and the backend's confidence.
//
// Errors carry one of models.ErrImageUnavailable, models.ErrClassificationFailed,
// models.ErrUnsupportedDocumentType or models.ErrLowConfidenceClassification.
func (c *Classifier) Classify(ctx context.Context, image []byte) (models.DocumentType, float64, error) {
	ctx, span := c.tracer.Start(ctx, "classify.Classify", trace.WithAttributes(
		attribute.Int("image.bytes", len(image)),
	))
	defer span.End()

	docType, confidence, err := c.classify(ctx, image)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", confidence, err
	}
	span.SetAttributes(
		attribute.String("document.type", string(docType)),
		attribute.Float64("classification.confidence", confidence),
	)
	return docType, confidence, nil
}

func (c *Classifier) classify(ctx context.Context, image []byte) (models.DocumentType, float64, error) {
	if len(image) == 0 {
		return "", 0, models.ImageUnavailable(fmt.Errorf("empty image"))
	}

	key := ImageKey(image)
	if cached, ok := c.lookup(ctx, key); ok {
		return cached.Type, cached.Confidence, nil
	}

	labels, err := c.backend.Classify(ctx, image, c.registry.ModelIDs())
	if err != nil {
		var backendErr *providers.BackendError
		if !errors.As(err, &backendErr) {
			if ctxErr := providers.FromContext("classifier", err); ctxErr != nil {
				err = ctxErr
			}
		}
		return "", 0, models.ClassificationFailed(err)
	}

	for _, l := range labels {
		if math.IsNaN(l.Confidence) || l.Confidence < 0 || l.Confidence > 1 {
			return "", 0, models.ClassificationFailed(providers.NewBackendError(
				providers.ErrorBadData, "classifier",
				fmt.Sprintf("label %q confidence %.4f out of range [0, 1]", l.ModelID, l.Confidence), nil))
		}
	}
	top, ok := topLabel(labels)
	if !ok {
		return "", 0, models.UnsupportedDocumentType("", fmt.Errorf("no matching model among %d candidates", c.registry.Len()))
	}

	docType, known := c.registry.TypeForModel(top.ModelID)
	if !known {
		return "", top.Confidence, models.UnsupportedDocumentType("", fmt.Errorf("model %q is not registered", top.ModelID))
	}
	if top.Confidence < c.threshold {
		c.logger.InfoContext(ctx, "classification below threshold",
			"document_type", docType,
			"confidence", top.Confidence,
			"threshold", c.threshold,
		)
		return docType, top.Confidence, models.LowConfidence(docType, top.Confidence)
	}

	c.store(ctx, key, ports.Classification{Type: docType, Confidence: top.Confidence})
	return docType, top.Confidence, nil
}

func (c *Classifier) lookup(ctx context.Context, key string) (ports.Classification, bool) {
	if c.cache == nil {
		return ports.Classification{}, false
	}
	cached, ok, err := c.cache.Find(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "classification cache lookup failed", "error", err)
		return ports.Classification{}, false
	}
	if !ok {
		return ports.Classification{}, false
	}
	// Definitions may have been reloaded since the entry was written.
	if _, err := c.registry.Resolve(cached.Type); err != nil {
		return ports.Classification{}, false
	}
	return cached, true
}

func (c *Classifier) store(ctx context.Context, key string, result ports.Classification) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Save(ctx, key, result); err != nil {
		c.logger.WarnContext(ctx, "classification cache save failed", "error", err)
	}
}

// topLabel picks the highest-confidence label. Ties keep the first returned.
func topLabel(labels []models.Label) (models.Label, bool) {
	if len(labels) == 0 {
		return models.Label{}, false
	}
	best := labels[0]
	for _, l := range labels[1:] {
		if l.Confidence > best.Confidence {
			best = l
		}
	}
	return best, true
}

// ImageKey returns the cache key for image: its hex SHA-256 digest.
func ImageKey(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

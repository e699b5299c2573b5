// Package extraction orchestrates document extraction: classify, resolve the
// definition, fan out per-template backend calls, run capability checks and
// assemble the typed result.
//
// The engine keeps no request-to-request state. The registry is the only
// shared value and it is read-only.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ekyc/internal/document/extraction/metrics"
	"ekyc/internal/document/models"
	"ekyc/internal/document/ports"
	"ekyc/internal/document/registry"
)

// Classifier resolves an image to a registered document type.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (models.DocumentType, float64, error)
}

// Config holds the engine's policy values.
type Config struct {
	// MaxConcurrency bounds concurrent backend calls per extraction.
	MaxConcurrency int
	// ClassificationTimeout applies to each classification attempt.
	ClassificationTimeout time.Duration
	// FieldTimeout applies to each per-template extraction call.
	FieldTimeout time.Duration
	// CapabilityTimeout applies to each liveness attempt.
	CapabilityTimeout time.Duration
	// ClassificationAttempts is the total number of classification tries.
	ClassificationAttempts int
	// CapabilityAttempts is the total number of liveness tries.
	CapabilityAttempts int
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
	// MinDetectionConfidence drops weaker backend candidates.
	MinDetectionConfidence float64
	// BoxVariance is the per-edge tolerance against a template's expected box.
	BoxVariance float64
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:         4,
		ClassificationTimeout:  10 * time.Second,
		FieldTimeout:           10 * time.Second,
		CapabilityTimeout:      15 * time.Second,
		ClassificationAttempts: 3,
		CapabilityAttempts:     2,
		InitialBackoff:         200 * time.Millisecond,
		MaxBackoff:             2 * time.Second,
		MinDetectionConfidence: 0,
		BoxVariance:            0.05,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = d.MaxConcurrency
	}
	if c.ClassificationTimeout <= 0 {
		c.ClassificationTimeout = d.ClassificationTimeout
	}
	if c.FieldTimeout <= 0 {
		c.FieldTimeout = d.FieldTimeout
	}
	if c.CapabilityTimeout <= 0 {
		c.CapabilityTimeout = d.CapabilityTimeout
	}
	if c.ClassificationAttempts <= 0 {
		c.ClassificationAttempts = d.ClassificationAttempts
	}
	if c.CapabilityAttempts <= 0 {
		c.CapabilityAttempts = d.CapabilityAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.BoxVariance <= 0 {
		c.BoxVariance = d.BoxVariance
	}
	return c
}

// Engine runs extractions.
type Engine struct {
	classifier Classifier
	registry   *registry.Registry
	fields     ports.FieldExtractor
	landmarks  ports.LandmarkDetector
	liveness   ports.LivenessChecker
	blobs      ports.BlobStore
	auditor    ports.AuditPublisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	cfg        Config

	// patterns holds compiled field patterns per document type. Built in New
	// and read-only afterwards.
	patterns map[models.DocumentType]map[string]*regexp.Regexp
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the policy values. Zero fields take defaults.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithBlobStore enables ExtractRef.
func WithBlobStore(store ports.BlobStore) Option {
	return func(e *Engine) {
		e.blobs = store
	}
}

// WithAuditPublisher records extraction outcomes.
func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(e *Engine) {
		e.auditor = publisher
	}
}

// New builds an Engine. Every collaborator is required; capability gating
// decides at request time whether liveness or landmark backends are called.
func New(
	classifier Classifier,
	reg *registry.Registry,
	fields ports.FieldExtractor,
	landmarks ports.LandmarkDetector,
	liveness ports.LivenessChecker,
	opts ...Option,
) (*Engine, error) {
	if classifier == nil || reg == nil || fields == nil || landmarks == nil || liveness == nil {
		return nil, fmt.Errorf("extraction: classifier, registry, field extractor, landmark detector and liveness checker are required")
	}
	e := &Engine{
		classifier: classifier,
		registry:   reg,
		fields:     fields,
		landmarks:  landmarks,
		liveness:   liveness,
		logger:     slog.Default(),
		tracer:     otel.Tracer("ekyc/document/extraction"),
		cfg:        DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cfg = e.cfg.withDefaults()

	e.patterns = make(map[models.DocumentType]map[string]*regexp.Regexp, reg.Len())
	for _, def := range reg.All() {
		compiled := make(map[string]*regexp.Regexp)
		for _, f := range def.DataFields {
			if f.Pattern == "" {
				continue
			}
			re, err := regexp.Compile("(?i)" + f.Pattern)
			if err != nil {
				return nil, fmt.Errorf("extraction: %s field %q: %w", def.Type, f.Name, err)
			}
			compiled[f.Name] = re
		}
		e.patterns[def.Type] = compiled
	}
	return e, nil
}

// Request is one extraction input. LivenessMedia, when set, is checked for
// liveness instead of the document image.
type Request struct {
	Image         []byte
	LivenessMedia []byte
}

// Extract classifies image and extracts everything its definition declares.
func (e *Engine) Extract(ctx context.Context, image []byte) (*models.ExtractionResult, error) {
	return e.ExtractRequest(ctx, Request{Image: image})
}

// ExtractRef loads the image from the blob store and extracts it.
func (e *Engine) ExtractRef(ctx context.Context, ref string) (*models.ExtractionResult, error) {
	if e.blobs == nil {
		return nil, models.ImageUnavailable(fmt.Errorf("no blob store configured"))
	}
	image, err := e.blobs.Get(ctx, ref)
	if err != nil {
		return nil, models.ImageUnavailable(fmt.Errorf("load %q: %w", ref, err))
	}
	return e.ExtractRequest(ctx, Request{Image: image})
}

// ExtractRequest runs the full pipeline for req.
func (e *Engine) ExtractRequest(ctx context.Context, req Request) (*models.ExtractionResult, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "extraction.Extract")
	defer span.End()

	result, err := e.extract(ctx, req)
	e.metrics.ObserveExtractLatency(time.Since(start))
	e.record(ctx, req.Image, result, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("document.type", string(result.DocumentType)),
		attribute.Int("document.failed_fields", len(result.FailedFields())),
	)
	return result, nil
}

func (e *Engine) extract(ctx context.Context, req Request) (*models.ExtractionResult, error) {
	if len(req.Image) == 0 {
		return nil, models.ImageUnavailable(fmt.Errorf("empty image"))
	}

	docType, confidence, err := e.classifyWithRetry(ctx, req.Image)
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveClassification(string(docType), confidence)

	def, err := e.registry.Resolve(docType)
	if err != nil {
		// The classifier only returns registered types.
		return nil, models.Internal(docType, err)
	}

	e.logger.DebugContext(ctx, "document classified",
		"document_type", docType,
		"confidence", confidence,
	)

	result, err := e.run(ctx, def, confidence, req)
	if err != nil {
		return nil, err
	}
	return result, nil
}

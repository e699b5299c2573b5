package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"ekyc/internal/document/models"
)

// Backend operations, used for metrics labels and log attributes.
const (
	opClassify  = "classify"
	opFields    = "fields"
	opLandmarks = "landmarks"
	opFace      = "face"
	opSignature = "signature"
	opLiveness  = "liveness"
)

// run fans out every backend call the definition allows. Each task writes
// only its own slot, so no locking is needed.
func (e *Engine) run(ctx context.Context, def models.Definition, confidence float64, req Request) (*models.ExtractionResult, error) {
	fieldSlots := make([]models.FieldValue, len(def.DataFields))
	landmarkSlots := make([]models.NamedBoundingBox, len(def.Landmarks))
	var liveness *bool

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrency)

	if def.Capabilities.Liveness {
		media := req.LivenessMedia
		if len(media) == 0 {
			media = req.Image
		}
		g.Go(func() error {
			live, err := e.checkLiveness(gctx, def.Type, media)
			if err != nil {
				return err
			}
			liveness = &live
			return nil
		})
	}

	if len(def.DataFields) > 0 {
		g.Go(func() error {
			e.extractFields(gctx, def, req.Image, fieldSlots)
			return nil
		})
	}

	for i, lm := range def.Landmarks {
		if !landmarkAllowed(def.Capabilities, lm.Role) {
			landmarkSlots[i] = models.NamedBoundingBox{Name: lm.Name}
			continue
		}
		g.Go(func() error {
			landmarkSlots[i] = e.detectLandmark(gctx, def, lm, req.Image)
			return nil
		})
	}

	waitErr := g.Wait()
	// Cancellation surfaces as a request failure, not as a result full of
	// empty fields.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract %s: %w", def.Type, err)
	}
	if waitErr != nil {
		return nil, waitErr
	}

	result := models.NewExtractionResult(def, confidence)
	for i, f := range def.DataFields {
		result.DataFields[f.Name] = fieldSlots[i]
		if !fieldSlots[i].Extracted() {
			e.metrics.IncrementFieldFailure(string(def.Type), f.Name)
		}
	}
	for i, lm := range def.Landmarks {
		result.Landmarks[lm.Name] = landmarkSlots[i]
	}
	result.LivenessPassed = liveness
	return result, nil
}

// landmarkAllowed gates face and signature regions on their capability flags.
// Structural landmarks are always extracted.
func landmarkAllowed(caps models.Capabilities, role models.LandmarkRole) bool {
	switch role {
	case models.RoleFace:
		return caps.FaceExtraction
	case models.RoleSignature:
		return caps.SignatureExtraction
	default:
		return true
	}
}

func landmarkOperation(role models.LandmarkRole) string {
	switch role {
	case models.RoleFace:
		return opFace
	case models.RoleSignature:
		return opSignature
	default:
		return opLandmarks
	}
}

// extractFields asks the extractor for every data field in one call and
// fills slots in template order. A failed call leaves every slot empty.
func (e *Engine) extractFields(ctx context.Context, def models.Definition, image []byte, slots []models.FieldValue) {
	ctx, span := e.tracer.Start(ctx, "extraction.Fields", trace.WithAttributes(
		attribute.String("document.type", string(def.Type)),
		attribute.Int("templates", len(def.DataFields)),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.FieldTimeout)
	defer cancel()

	start := time.Now()
	detections, err := e.fields.ExtractFields(callCtx, image, def.CustomModelID, def.DataFields)
	e.metrics.ObserveBackendLatency(opFields, time.Since(start))
	if err != nil {
		span.RecordError(err)
		for _, f := range def.DataFields {
			e.fieldFailed(ctx, def.Type, f.Name, err)
		}
		return
	}

	for i, f := range def.DataFields {
		value, ok := selectField(f, e.patterns[def.Type][f.Name], def.ValueTrimPrefix, detections, e.cfg)
		if !ok {
			e.fieldFailed(ctx, def.Type, f.Name, errNoCandidate)
			continue
		}
		slots[i] = value
	}
}

func (e *Engine) detectLandmark(ctx context.Context, def models.Definition, lm models.LandmarkTemplate, image []byte) models.NamedBoundingBox {
	op := landmarkOperation(lm.Role)
	ctx, span := e.tracer.Start(ctx, "extraction.Landmark", trace.WithAttributes(
		attribute.String("document.type", string(def.Type)),
		attribute.String("template", lm.Name),
		attribute.String("role", string(lm.Role)),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.FieldTimeout)
	defer cancel()

	start := time.Now()
	detections, err := e.landmarks.DetectLandmarks(callCtx, image, def.CustomModelID, []models.LandmarkTemplate{lm})
	e.metrics.ObserveBackendLatency(op, time.Since(start))
	if err != nil {
		e.fieldFailed(ctx, def.Type, lm.Name, err)
		span.RecordError(err)
		return models.NamedBoundingBox{Name: lm.Name}
	}

	box, ok := selectLandmark(lm, detections, e.cfg)
	if !ok {
		e.fieldFailed(ctx, def.Type, lm.Name, errNoCandidate)
		return models.NamedBoundingBox{Name: lm.Name}
	}
	return box
}

var errNoCandidate = errors.New("no acceptable candidate")

// fieldFailed records a per-template failure. It never aborts the request.
func (e *Engine) fieldFailed(ctx context.Context, docType models.DocumentType, template string, cause error) {
	if ctx.Err() != nil {
		return
	}
	err := &models.Error{Kind: models.ErrFieldExtractionFailed, Type: docType, Err: cause}
	e.logger.WarnContext(ctx, "template extraction failed",
		"document_type", docType,
		"template", template,
		"error", err,
	)
}

func (e *Engine) checkLiveness(ctx context.Context, docType models.DocumentType, media []byte) (bool, error) {
	ctx, span := e.tracer.Start(ctx, "extraction.Liveness", trace.WithAttributes(
		attribute.String("document.type", string(docType)),
	))
	defer span.End()

	var live bool
	err := e.retry(ctx, opLiveness, e.cfg.CapabilityAttempts, func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CapabilityTimeout)
		defer cancel()

		start := time.Now()
		result, err := e.liveness.CheckLiveness(callCtx, media)
		e.metrics.ObserveBackendLatency(opLiveness, time.Since(start))
		if err != nil {
			return models.CapabilityCheckFailed(docType, normalizeContextError(opLiveness, err))
		}
		live = result
		return nil
	})
	if err != nil {
		span.RecordError(err)
		if !errors.Is(err, models.ErrCapabilityCheckFailed) {
			err = models.CapabilityCheckFailed(docType, err)
		}
		return false, err
	}
	span.SetAttributes(attribute.Bool("liveness.passed", live))
	return live, nil
}

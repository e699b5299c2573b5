package extraction

import (
	"context"
	"errors"

	"ekyc/internal/document/classify"
	"ekyc/internal/document/models"
	"ekyc/pkg/platform/audit"
	"ekyc/pkg/requestcontext"
)

// Outcome labels for metrics and audit decisions.
const (
	outcomeExtracted     = "extracted"
	outcomeUnsupported   = "unsupported"
	outcomeLowConfidence = "low_confidence"
	outcomeUnavailable   = "unavailable"
	outcomeNoImage       = "image_unavailable"
	outcomeCanceled      = "canceled"
	outcomeInternal      = "internal_error"
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeExtracted
	case errors.Is(err, models.ErrUnsupportedDocumentType):
		return outcomeUnsupported
	case errors.Is(err, models.ErrLowConfidenceClassification):
		return outcomeLowConfidence
	case errors.Is(err, models.ErrClassificationFailed), errors.Is(err, models.ErrCapabilityCheckFailed):
		return outcomeUnavailable
	case errors.Is(err, models.ErrImageUnavailable):
		return outcomeNoImage
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcomeCanceled
	default:
		return outcomeInternal
	}
}

// record emits metrics, a log line and an audit event for one extraction.
func (e *Engine) record(ctx context.Context, image []byte, result *models.ExtractionResult, err error) {
	outcome := outcomeOf(err)
	if err != nil && ctx.Err() != nil {
		outcome = outcomeCanceled
	}

	event := audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Decision:  outcome,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
	}
	if len(image) > 0 {
		event.Subject = classify.ImageKey(image)
	}

	var typed *models.Error
	if errors.As(err, &typed) {
		event.DocumentType = string(typed.Type)
		event.Confidence = typed.Confidence
	}
	if result != nil {
		event.DocumentType = string(result.DocumentType)
		event.Confidence = result.ClassificationConfidence
		event.FailedFields = len(result.FailedFields())
	}

	switch outcome {
	case outcomeExtracted:
		event.Action = string(audit.EventDocumentExtracted)
		e.logger.InfoContext(ctx, "document extracted",
			"document_type", event.DocumentType,
			"confidence", event.Confidence,
			"failed_fields", event.FailedFields,
			"request_id", event.RequestID,
		)
	case outcomeLowConfidence:
		event.Action = string(audit.EventClassificationLowConfidence)
		event.Reason = err.Error()
	case outcomeUnavailable:
		event.Action = string(audit.EventExtractionBackendUnavailable)
		event.Reason = err.Error()
		e.logger.WarnContext(ctx, "extraction backend unavailable",
			"error", err,
			"request_id", event.RequestID,
		)
	case outcomeCanceled:
		// The caller went away; nothing to audit.
		e.metrics.IncrementOutcome(event.DocumentType, outcome)
		return
	default:
		event.Action = string(audit.EventDocumentRejected)
		event.Reason = err.Error()
		if outcome == outcomeInternal {
			e.logger.ErrorContext(ctx, "extraction failed",
				"error", err,
				"request_id", event.RequestID,
			)
		}
	}
	event.Category = audit.AuditEvent(event.Action).Category()

	e.metrics.IncrementOutcome(event.DocumentType, outcome)
	if e.auditor == nil {
		return
	}
	if auditErr := e.auditor.Emit(ctx, event); auditErr != nil {
		e.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", auditErr,
		)
	}
}

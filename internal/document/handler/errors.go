package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ekyc/internal/document/blob"
	"ekyc/internal/document/models"
	"ekyc/internal/platform/middleware"
	dErrors "ekyc/pkg/domain-errors"
	"ekyc/pkg/platform/httputil"
	"ekyc/pkg/platform/sentinel"
)

// toDomainError maps an extraction failure onto a coded error.
func toDomainError(err error) error {
	switch {
	case errors.Is(err, models.ErrUnsupportedDocumentType):
		return dErrors.Wrap(err, dErrors.CodeUnsupportedDocument, "document type is not supported")
	case errors.Is(err, models.ErrLowConfidenceClassification):
		return dErrors.Wrap(err, dErrors.CodeLowConfidence, "document could not be classified with enough confidence; manual review required")
	case errors.Is(err, models.ErrClassificationFailed), errors.Is(err, models.ErrCapabilityCheckFailed):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "document service temporarily unavailable; try again")
	case errors.Is(err, models.ErrImageUnavailable):
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Wrap(err, dErrors.CodeNotFound, "image not found")
		case errors.Is(err, sentinel.ErrTooLarge):
			return dErrors.Wrap(err, dErrors.CodePayloadTooLarge, "image exceeds the size limit")
		case errors.Is(err, blob.ErrInvalidReference):
			return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid image reference")
		default:
			return dErrors.Wrap(err, dErrors.CodeBadRequest, "image could not be loaded")
		}
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "extraction timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "extraction failed")
	}
}

func (h *Handler) writeExtractionError(ctx context.Context, w http.ResponseWriter, err error) {
	requestID := middleware.GetRequestID(ctx)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		h.logger.InfoContext(ctx, "client went away during extraction", "request_id", requestID)
		return
	}

	domainErr := toDomainError(err)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		// The request budget ran out, whichever stage noticed it first.
		domainErr = dErrors.Wrap(err, dErrors.CodeTimeout, "extraction timed out")
	}
	switch dErrors.CodeOf(domainErr) {
	case dErrors.CodeInternal, dErrors.CodeUnavailable, dErrors.CodeTimeout:
		h.logger.ErrorContext(ctx, "extraction failed",
			"request_id", requestID,
			"error", err.Error(),
		)
	default:
		h.logger.InfoContext(ctx, "extraction rejected",
			"request_id", requestID,
			"error", err.Error(),
		)
	}

	if dErrors.CodeOf(domainErr) != dErrors.CodeTimeout && models.IsRetryable(err) {
		httputil.WriteRetryableError(w, domainErr, h.retryAfter)
		return
	}
	httputil.WriteError(w, domainErr)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

package extraction

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"

	"ekyc/internal/document/models"
	"ekyc/internal/document/providers"
)

// retry runs op up to attempts times with exponential backoff. Only errors
// models.IsRetryable accepts are retried; the caller's cancellation stops it.
func (e *Engine) retry(ctx context.Context, operation string, attempts int, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.cfg.InitialBackoff
	policy.MaxInterval = e.cfg.MaxBackoff
	policy.MaxElapsedTime = 0

	var b backoff.BackOff = &backoff.StopBackOff{}
	if attempts > 1 {
		b = backoff.WithMaxRetries(policy, uint64(attempts-1))
	}

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		if attempt > 1 {
			e.metrics.IncrementRetry(operation)
		}
		err := op()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !models.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		e.logger.WarnContext(ctx, "backend call failed, will retry",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", attempts,
			"error", err,
		)
		return err
	}, backoff.WithContext(b, ctx))
}

func (e *Engine) classifyWithRetry(ctx context.Context, image []byte) (models.DocumentType, float64, error) {
	var (
		docType    models.DocumentType
		confidence float64
	)
	err := e.retry(ctx, opClassify, e.cfg.ClassificationAttempts, func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.ClassificationTimeout)
		defer cancel()

		var err error
		docType, confidence, err = e.classifier.Classify(callCtx, image)
		return err
	})
	if err != nil {
		// backoff reports the bare context error when the caller gives up
		// between attempts.
		if !isModelError(err) {
			err = models.ClassificationFailed(normalizeContextError(opClassify, err))
		}
		return "", confidence, err
	}
	return docType, confidence, nil
}

func isModelError(err error) bool {
	var me *models.Error
	return errors.As(err, &me)
}

// normalizeContextError turns a bare context error from a backend call into a
// categorized backend error so retryability is decided consistently.
func normalizeContextError(backend string, err error) error {
	var be *providers.BackendError
	if errors.As(err, &be) {
		return err
	}
	if ctxErr := providers.FromContext(backend, err); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Package providers holds what every vision backend adapter shares: the
// normalized failure taxonomy.
package providers

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCategory defines the normalized failure taxonomy
type ErrorCategory string

const (
	// ErrorTimeout indicates the backend took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the backend returned invalid/malformed data
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorBadRequest indicates the backend rejected the request itself
	ErrorBadRequest ErrorCategory = "bad_request"

	// ErrorAuthentication indicates credential or permission issues
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorOutage indicates the backend is unavailable
	ErrorOutage ErrorCategory = "backend_outage"

	// ErrorNotFound indicates the model or processor doesn't exist
	ErrorNotFound ErrorCategory = "not_found"

	// ErrorRateLimited indicates too many requests
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorCanceled indicates the caller gave up
	ErrorCanceled ErrorCategory = "canceled"

	// ErrorInternal indicates an unexpected internal error
	ErrorInternal ErrorCategory = "internal"
)

// BackendError wraps backend failures with normalized categorization
type BackendError struct {
	Category   ErrorCategory
	Backend    string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *BackendError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("backend %s [%s]: %s: %v", e.Backend, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("backend %s [%s]: %s", e.Backend, e.Category, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Underlying
}

// IsRetryable lets models.IsRetryable consult the backend's verdict.
func (e *BackendError) IsRetryable() bool {
	return e.Retryable
}

// NewBackendError creates a new normalized backend error
func NewBackendError(category ErrorCategory, backend, message string, underlying error) *BackendError {
	retryable := category == ErrorTimeout ||
		category == ErrorOutage ||
		category == ErrorRateLimited

	return &BackendError{
		Category:   category,
		Backend:    backend,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// FromContext maps a context error onto the taxonomy. It returns nil when
// err is not a context error.
func FromContext(backend string, err error) *BackendError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewBackendError(ErrorTimeout, backend, "deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewBackendError(ErrorCanceled, backend, "request canceled", err)
	}
	return nil
}

// IsRetryable checks if an error is worth retrying
func IsRetryable(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error
func GetCategory(err error) ErrorCategory {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Category
	}
	return ErrorInternal
}

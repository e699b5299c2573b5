// Package sentinel holds infrastructure facts shared by stores and adapters.
// Callers wrap them with %w; the transport edge translates them into coded
// domain errors.
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
package sentinel

import "errors"

var (
	// ErrNotFound means the referenced object does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTooLarge means the object exceeds a configured size limit.
	ErrTooLarge = errors.New("too large")
	// ErrUnavailable means a dependency is temporarily unreachable.
	ErrUnavailable = errors.New("unavailable")
)

package models

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is against an *Error or anything wrapping one.
var (
	// ErrUnsupportedDocumentType means the image is not one of the known
	// document types. Callers must not retry.
	ErrUnsupportedDocumentType = errors.New("unsupported document type")
	// ErrClassificationFailed is a transient classification backend fault.
	ErrClassificationFailed = errors.New("classification failed")
	// ErrLowConfidenceClassification is an ambiguous result needing manual review.
	ErrLowConfidenceClassification = errors.New("low confidence classification")
	// ErrFieldExtractionFailed is recorded per field and never aborts a request.
	ErrFieldExtractionFailed = errors.New("field extraction failed")
	// ErrCapabilityCheckFailed is a transient liveness/face/signature fault.
	ErrCapabilityCheckFailed = errors.New("capability check failed")
	// ErrImageUnavailable means the image bytes could not be obtained.
	ErrImageUnavailable = errors.New("image unavailable")
	// ErrInternal is an internal-consistency fault such as a registry mismatch.
	ErrInternal = errors.New("internal extraction error")
)

// Error carries one of the kinds above plus the context that produced it.
type Error struct {
	Kind       error
	Type       DocumentType
	Confidence float64
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Type != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Type)
	}
	if errors.Is(e.Kind, ErrLowConfidenceClassification) {
		msg = fmt.Sprintf("%s (confidence %.2f)", msg, e.Confidence)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is matches the error kind so errors.Is(err, ErrClassificationFailed) works.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error of the given kind.
func NewError(kind error, underlying error) *Error {
	return &Error{Kind: kind, Err: underlying}
}

// UnsupportedDocumentType reports an unknown or unregistered document type.
func UnsupportedDocumentType(t DocumentType, underlying error) *Error {
	return &Error{Kind: ErrUnsupportedDocumentType, Type: t, Err: underlying}
}

// LowConfidence reports a classification below threshold.
func LowConfidence(t DocumentType, confidence float64) *Error {
	return &Error{Kind: ErrLowConfidenceClassification, Type: t, Confidence: confidence}
}

// ClassificationFailed wraps a classification backend fault.
func ClassificationFailed(underlying error) *Error {
	return &Error{Kind: ErrClassificationFailed, Err: underlying}
}

// CapabilityCheckFailed wraps a failed capability check.
func CapabilityCheckFailed(t DocumentType, underlying error) *Error {
	return &Error{Kind: ErrCapabilityCheckFailed, Type: t, Err: underlying}
}

// ImageUnavailable wraps a failed image load.
func ImageUnavailable(underlying error) *Error {
	return &Error{Kind: ErrImageUnavailable, Err: underlying}
}

// Internal wraps an internal-consistency fault.
func Internal(t DocumentType, underlying error) *Error {
	return &Error{Kind: ErrInternal, Type: t, Err: underlying}
}

// KindOf returns the kind of err, or nil when err carries none.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}

// IsRetryable reports whether the caller may try again. Only transient
// backend faults qualify; the underlying backend error may veto a retry by
// implementing IsRetryable() bool.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	if !errors.Is(e.Kind, ErrClassificationFailed) && !errors.Is(e.Kind, ErrCapabilityCheckFailed) {
		return false
	}
	var r interface{ IsRetryable() bool }
	if errors.As(e.Err, &r) {
		return r.IsRetryable()
	}
	return true
}

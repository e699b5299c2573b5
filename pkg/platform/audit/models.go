package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and storage backends.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// every accepted or rejected identity document.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	// ID is assigned by the store when empty.
	ID        string
	Category  EventCategory
	Timestamp time.Time
	// Subject is the SHA-256 digest of the processed image. Raw images and
	// extracted PII never enter the audit trail.
	Subject      string
	Action       string
	DocumentType string
	Decision     string
	Reason       string
	Confidence   float64
	// FailedFields counts declared templates that came back empty.
	FailedFields int
	RequestID    string
	ClientIP     string
}

type AuditEvent string

const (
	EventDocumentExtracted            AuditEvent = "document_extracted"
	EventDocumentRejected             AuditEvent = "document_rejected"
	EventClassificationLowConfidence  AuditEvent = "classification_low_confidence"
	EventExtractionBackendUnavailable AuditEvent = "extraction_backend_unavailable"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDocumentExtracted:           CategoryCompliance,
	EventDocumentRejected:            CategoryCompliance,
	EventClassificationLowConfidence: CategoryCompliance,

	EventExtractionBackendUnavailable: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	// ListBySubject returns the events recorded for one image digest, oldest first.
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	// ListRecent returns up to limit events, newest first.
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

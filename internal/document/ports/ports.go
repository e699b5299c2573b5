// Package ports defines the contracts the extraction pipeline needs from the
// outside world. Adapters live under providers/, cache/ and blob/.
//
// Every call is a blocking network operation and must honour ctx.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"ekyc/internal/document/models"
	"ekyc/pkg/platform/audit"
)

// Classifier ranks candidate custom models against an image.
type Classifier interface {
	// Classify returns labels for the candidate model identifiers. An empty
	// result means no candidate matched.
	Classify(ctx context.Context, image []byte, candidateModelIDs []string) ([]models.Label, error)
}

// FieldExtractor reads textual data fields from an image using the document's
// custom model.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, image []byte, modelID string, fields []models.FieldTemplate) ([]models.Detection, error)
}

// LandmarkDetector locates named regions (face, signature, structural marks).
type LandmarkDetector interface {
	DetectLandmarks(ctx context.Context, image []byte, modelID string, landmarks []models.LandmarkTemplate) ([]models.Detection, error)
}

// LivenessChecker decides whether the media shows a live subject. A false
// result is a normal outcome, not an error.
type LivenessChecker interface {
	CheckLiveness(ctx context.Context, media []byte) (bool, error)
}

// BlobStore loads image bytes by reference.
type BlobStore interface {
	Get(ctx context.Context, ref string) ([]byte, error)
}

// Classification is a cached classification outcome.
type Classification struct {
	Type       models.DocumentType `json:"document_type"`
	Confidence float64             `json:"confidence"`
}

// ClassificationCache stores classification outcomes keyed by image digest.
// Find returns ok=false on a miss.
type ClassificationCache interface {
	Find(ctx context.Context, key string) (Classification, bool, error)
	Save(ctx context.Context, key string, c Classification) error
}

// AuditPublisher records extraction outcomes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

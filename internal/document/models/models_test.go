package models

import (
	"errors"
	"fmt"
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocumentType(t *testing.T) {
	for _, dt := range DocumentTypes() {
		parsed, err := ParseDocumentType(string(dt))
		require.NoError(t, err)
		assert.Equal(t, dt, parsed)
	}

	parsed, err := ParseDocumentType("  sg_passport ")
	require.NoError(t, err)
	assert.Equal(t, DocumentTypeSGPassport, parsed)

	_, err = ParseDocumentType("GENERIC")
	assert.Error(t, err)
}

func TestBoundingBoxValidate(t *testing.T) {
	tests := []struct {
		name    string
		box     BoundingBox
		wantErr bool
	}{
		{"full image", BoundingBox{0, 0, 1, 1}, false},
		{"zero size", BoundingBox{0.5, 0.5, 0, 0}, false},
		{"float noise at edge", BoundingBox{0.5, 0, 0.5000001, 1}, false},
		{"negative width", BoundingBox{0.1, 0.1, -0.1, 0.2}, true},
		{"negative height", BoundingBox{0.1, 0.1, 0.2, -0.2}, true},
		{"negative origin", BoundingBox{-0.2, 0.1, 0.2, 0.2}, true},
		{"past right edge", BoundingBox{0.9, 0.1, 0.2, 0.2}, true},
		{"past bottom edge", BoundingBox{0.1, 0.9, 0.2, 0.2}, true},
		{"nan", BoundingBox{math.NaN(), 0, 0.1, 0.1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.box.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBoundingBoxWithinVariance(t *testing.T) {
	expected := BoundingBox{Left: 0.57, Top: 0.02, Width: 0.15, Height: 0.21}

	assert.True(t, BoundingBox{Left: 0.60, Top: 0.04, Width: 0.13, Height: 0.20}.WithinVariance(expected, 0.05))
	assert.False(t, BoundingBox{Left: 0.40, Top: 0.02, Width: 0.15, Height: 0.21}.WithinVariance(expected, 0.05))
	assert.False(t, BoundingBox{Left: 0.57, Top: 0.02, Width: 0.30, Height: 0.21}.WithinVariance(expected, 0.05))
}

func TestBoundingBoxPixels(t *testing.T) {
	box := BoundingBox{Left: 0.25, Top: 0.5, Width: 0.5, Height: 0.25}
	assert.Equal(t, image.Rect(100, 100, 300, 150), box.Pixels(400, 200))
}

func TestNewExtractionResultSeedsDeclaredKeys(t *testing.T) {
	def := Definition{
		Type:       DocumentTypeSGPassport,
		Landmarks:  []LandmarkTemplate{{Name: "face", Role: RoleFace}},
		DataFields: []FieldTemplate{{Name: "passport_number"}, {Name: "surname"}},
	}

	res := NewExtractionResult(def, 0.9)

	assert.Equal(t, DocumentTypeSGPassport, res.DocumentType)
	assert.InDelta(t, 0.9, res.ClassificationConfidence, 1e-9)
	assert.Len(t, res.Landmarks, 1)
	assert.Len(t, res.DataFields, 2)
	assert.ElementsMatch(t, []string{"passport_number", "surname"}, res.FailedFields())
	assert.Nil(t, res.LivenessPassed)
}

func TestDefinitionCloneDoesNotAlias(t *testing.T) {
	box := BoundingBox{Left: 0.1, Top: 0.1, Width: 0.1, Height: 0.1}
	def := Definition{
		Landmarks:  []LandmarkTemplate{{Name: "logo", Role: RoleStructural, ExpectedBox: &box}},
		DataFields: []FieldTemplate{{Name: "name"}},
	}

	clone := def.Clone()
	clone.Landmarks[0].ExpectedBox.Left = 0.9
	clone.DataFields[0].Name = "changed"

	assert.InDelta(t, 0.1, def.Landmarks[0].ExpectedBox.Left, 1e-9)
	assert.Equal(t, "name", def.DataFields[0].Name)
}

type retryableErr struct{ retry bool }

func (e retryableErr) Error() string     { return "backend" }
func (e retryableErr) IsRetryable() bool { return e.retry }

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", LowConfidence(DocumentTypeSGPassport, 0.4))
	assert.ErrorIs(t, err, ErrLowConfidenceClassification)
	assert.NotErrorIs(t, err, ErrClassificationFailed)
	assert.Equal(t, ErrLowConfidenceClassification, KindOf(err))
	assert.Contains(t, err.Error(), "0.40")

	var typed *Error
	require.True(t, errors.As(err, &typed))
	assert.InDelta(t, 0.4, typed.Confidence, 1e-9)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ClassificationFailed(errors.New("boom"))))
	assert.True(t, IsRetryable(ClassificationFailed(retryableErr{retry: true})))
	assert.False(t, IsRetryable(ClassificationFailed(retryableErr{retry: false})))
	assert.True(t, IsRetryable(CapabilityCheckFailed(DocumentTypeAUPassport, nil)))
	assert.False(t, IsRetryable(UnsupportedDocumentType("", nil)))
	assert.False(t, IsRetryable(LowConfidence(DocumentTypeAUPassport, 0.1)))
	assert.False(t, IsRetryable(ImageUnavailable(errors.New("missing"))))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

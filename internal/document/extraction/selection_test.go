package extraction

import (
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ekyc/internal/document/models"
)

func TestSelectField(t *testing.T) {
	cfg := testConfig()
	valid := box(0.1, 0.1, 0.3, 0.05)
	number := models.FieldTemplate{Name: "passport_number"}
	pattern := regexp.MustCompile(`(?i)^[a-z]\d{7}[a-z]$`)

	tests := []struct {
		name       string
		template   models.FieldTemplate
		pattern    *regexp.Regexp
		trim       string
		detections []models.Detection
		wantValue  string
		wantConf   float64
		wantFound  bool
	}{
		{
			name:     "highest confidence wins",
			template: number,
			detections: []models.Detection{
				{Name: "passport_number", Value: "K1111111A", Confidence: 0.6, Box: valid},
				{Name: "passport_number", Value: "K2222222B", Confidence: 0.9, Box: valid},
			},
			wantValue: "K2222222B", wantConf: 0.9, wantFound: true,
		},
		{
			name:     "ties keep first returned",
			template: number,
			detections: []models.Detection{
				{Name: "passport_number", Value: "K1111111A", Confidence: 0.8, Box: valid},
				{Name: "passport_number", Value: "K2222222B", Confidence: 0.8, Box: valid},
			},
			wantValue: "K1111111A", wantConf: 0.8, wantFound: true,
		},
		{
			name:     "other names ignored",
			template: number,
			detections: []models.Detection{
				{Name: "surname", Value: "TAN", Confidence: 0.99, Box: valid},
			},
		},
		{
			name:     "invalid boxes dropped",
			template: number,
			detections: []models.Detection{
				{Name: "passport_number", Value: "K9999999Z", Confidence: 0.99, Box: box(0.9, 0.1, 0.3, 0.05)},
				{Name: "passport_number", Value: "K8888888Y", Confidence: 0.99, Box: box(0.1, 0.1, -0.1, 0.05)},
				{Name: "passport_number", Value: "K1111111A", Confidence: 0.5, Box: valid},
			},
			wantValue: "K1111111A", wantConf: 0.5, wantFound: true,
		},
		{
			name:     "out of range confidence dropped",
			template: number,
			detections: []models.Detection{
				{Name: "passport_number", Value: "K9999999Z", Confidence: 1.5, Box: valid},
				{Name: "passport_number", Value: "K8888888Y", Confidence: math.NaN(), Box: valid},
			},
		},
		{
			name:     "zero confidence dropped",
			template: number,
			pattern:  pattern,
			detections: []models.Detection{
				{Name: "passport_number", Value: "K1234567A", Confidence: 0, Box: valid},
			},
		},
		{
			name:     "pattern mismatch dropped",
			template: number,
			pattern:  pattern,
			detections: []models.Detection{
				{Name: "passport_number", Value: "PASSPORT", Confidence: 0.99, Box: valid},
				{Name: "passport_number", Value: "k1234567a", Confidence: 0.7, Box: valid},
			},
			wantValue: "k1234567a", wantConf: 0.7, wantFound: true,
		},
		{
			name:     "prefix and whitespace trimmed",
			template: models.FieldTemplate{Name: "place_of_birth"},
			trim:     "/",
			detections: []models.Detection{
				{Name: "place_of_birth", Value: "  / GUANGDONG ", Confidence: 0.8, Box: valid},
			},
			wantValue: "GUANGDONG", wantConf: 0.8, wantFound: true,
		},
		{
			name:     "blank value dropped",
			template: models.FieldTemplate{Name: "place_of_birth"},
			trim:     "/",
			detections: []models.Detection{
				{Name: "place_of_birth", Value: " / ", Confidence: 0.8, Box: valid},
			},
		},
		{
			name: "expected box variance",
			template: models.FieldTemplate{
				Name:        "nric",
				ExpectedBox: &models.BoundingBox{Left: 0.05, Top: 0.3, Width: 0.3, Height: 0.06},
			},
			detections: []models.Detection{
				{Name: "nric", Value: "900101-14-5678", Confidence: 0.99, Box: box(0.5, 0.6, 0.3, 0.06)},
				{Name: "nric", Value: "900101-14-1234", Confidence: 0.7, Box: box(0.07, 0.31, 0.29, 0.06)},
			},
			wantValue: "900101-14-1234", wantConf: 0.7, wantFound: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := selectField(tt.template, tt.pattern, tt.trim, tt.detections, cfg)
			require.Equal(t, tt.wantFound, found)
			if !tt.wantFound {
				assert.Equal(t, models.FieldValue{}, got)
				return
			}
			assert.Equal(t, tt.wantValue, got.Value)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
			assert.NotNil(t, got.Box)
		})
	}
}

func TestSelectFieldMinimumConfidence(t *testing.T) {
	cfg := testConfig()
	cfg.MinDetectionConfidence = 0.5
	detections := []models.Detection{
		{Name: "surname", Value: "LIM", Confidence: 0.49, Box: box(0, 0, 0.1, 0.1)},
	}

	_, found := selectField(models.FieldTemplate{Name: "surname"}, nil, "", detections, cfg)
	assert.False(t, found)

	detections[0].Confidence = 0.5
	got, found := selectField(models.FieldTemplate{Name: "surname"}, nil, "", detections, cfg)
	assert.True(t, found)
	assert.Equal(t, "LIM", got.Value)
}

func TestSelectLandmark(t *testing.T) {
	cfg := testConfig()
	logo := models.LandmarkTemplate{
		Name:        "mykad_logo",
		Role:        models.RoleStructural,
		ExpectedBox: &models.BoundingBox{Left: 0.57, Top: 0.02, Width: 0.15, Height: 0.21},
	}

	got, found := selectLandmark(logo, []models.Detection{
		{Name: "mykad_logo", Confidence: 0.99, Box: box(0.1, 0.5, 0.15, 0.21)},
		{Name: "mykad_logo", Confidence: 0.8, Box: box(0.58, 0.03, 0.14, 0.2)},
		{Name: "mykad_logo", Confidence: 0.8, Box: box(0.56, 0.02, 0.15, 0.21)},
	}, cfg)

	require.True(t, found)
	assert.Equal(t, "mykad_logo", got.Name)
	assert.InDelta(t, 0.58, got.Box.Left, 1e-9, "first of the tied candidates")

	_, found = selectLandmark(logo, nil, cfg)
	assert.False(t, found)
}

func TestLandmarkAllowed(t *testing.T) {
	caps := models.Capabilities{FaceExtraction: true}
	assert.True(t, landmarkAllowed(caps, models.RoleFace))
	assert.False(t, landmarkAllowed(caps, models.RoleSignature))
	assert.True(t, landmarkAllowed(caps, models.RoleStructural))
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{InitialBackoff: time.Second, MaxBackoff: time.Millisecond}.withDefaults()

	assert.Equal(t, DefaultConfig().MaxConcurrency, cfg.MaxConcurrency)
	assert.Equal(t, 3, cfg.ClassificationAttempts)
	assert.Equal(t, 2, cfg.CapabilityAttempts)
	assert.Equal(t, time.Second, cfg.MaxBackoff)
	assert.InDelta(t, 0.05, cfg.BoxVariance, 1e-9)
}

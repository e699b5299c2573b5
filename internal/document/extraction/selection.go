package extraction

import (
	"math"
	"regexp"
	"strings"

	"ekyc/internal/document/models"
)

// acceptable applies the checks every candidate must pass: a valid box, a
// confidence in (0,1] at or above the configured floor, and, when the
// template declares one, a box close to the expected position. Zero
// confidence is what a failed slot carries, so it never counts as a hit.
func acceptable(d models.Detection, expected *models.BoundingBox, cfg Config) bool {
	if math.IsNaN(d.Confidence) || d.Confidence <= 0 || d.Confidence > 1 {
		return false
	}
	if d.Confidence < cfg.MinDetectionConfidence {
		return false
	}
	if err := d.Box.Validate(); err != nil {
		return false
	}
	if expected != nil && !d.Box.WithinVariance(*expected, cfg.BoxVariance) {
		return false
	}
	return true
}

// normalizeValue trims whitespace and the definition's value prefix.
func normalizeValue(value, trimPrefix string) string {
	value = strings.TrimSpace(value)
	if trimPrefix != "" {
		value = strings.TrimSpace(strings.TrimPrefix(value, trimPrefix))
	}
	return value
}

// selectField keeps the highest-confidence acceptable candidate for f.
// Candidates for other names are ignored. Ties keep the first returned.
func selectField(f models.FieldTemplate, pattern *regexp.Regexp, trimPrefix string, detections []models.Detection, cfg Config) (models.FieldValue, bool) {
	var (
		best  models.FieldValue
		found bool
	)
	for _, d := range detections {
		if d.Name != f.Name || !acceptable(d, f.ExpectedBox, cfg) {
			continue
		}
		value := normalizeValue(d.Value, trimPrefix)
		if value == "" {
			continue
		}
		if pattern != nil && !pattern.MatchString(value) {
			continue
		}
		if found && d.Confidence <= best.Confidence {
			continue
		}
		box := d.Box
		best = models.FieldValue{Value: value, Confidence: d.Confidence, Box: &box}
		found = true
	}
	return best, found
}

// selectLandmark keeps the highest-confidence acceptable candidate for lm.
func selectLandmark(lm models.LandmarkTemplate, detections []models.Detection, cfg Config) (models.NamedBoundingBox, bool) {
	var (
		best  models.NamedBoundingBox
		found bool
	)
	for _, d := range detections {
		if d.Name != lm.Name || !acceptable(d, lm.ExpectedBox, cfg) {
			continue
		}
		if found && d.Confidence <= best.Confidence {
			continue
		}
		best = models.NamedBoundingBox{Name: lm.Name, Box: d.Box, Confidence: d.Confidence}
		found = true
	}
	return best, found
}

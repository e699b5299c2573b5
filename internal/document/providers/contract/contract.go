// Package contract holds reusable test suites every backend adapter must
// pass, whatever transport it speaks.
package contract

import (
	"context"
	"math"
	"testing"

	"ekyc/internal/document/models"
	"ekyc/internal/document/ports"
	"ekyc/internal/document/providers"
)

// ClassifierTest defines a classification case for contract validation
type ClassifierTest struct {
	Name       string
	Image      []byte
	Candidates []string
	// ExpectTop is the model ID expected to rank first. Empty means the
	// backend must return no labels.
	ExpectTop string
}

// ClassifierSuite validates a ports.Classifier implementation
type ClassifierSuite struct {
	Backend ports.Classifier
	Tests   []ClassifierTest
}

// Run executes all classifier contract tests in the suite
func (s *ClassifierSuite) Run(t *testing.T) {
	for _, test := range s.Tests {
		t.Run(test.Name, func(t *testing.T) {
			labels, err := s.Backend.Classify(context.Background(), test.Image, test.Candidates)
			if err != nil {
				t.Fatalf("classify failed: %v", err)
			}

			allowed := make(map[string]bool, len(test.Candidates))
			for _, c := range test.Candidates {
				allowed[c] = true
			}
			seen := make(map[string]bool, len(labels))
			for _, l := range labels {
				if !allowed[l.ModelID] {
					t.Errorf("label %q is not a candidate", l.ModelID)
				}
				if seen[l.ModelID] {
					t.Errorf("label %q returned twice", l.ModelID)
				}
				seen[l.ModelID] = true
				checkConfidence(t, l.ModelID, l.Confidence)
			}

			if test.ExpectTop == "" {
				if len(labels) != 0 {
					t.Errorf("expected no labels, got %d", len(labels))
				}
				return
			}
			if len(labels) == 0 {
				t.Fatalf("expected top label %s, got none", test.ExpectTop)
			}
			top := labels[0]
			for _, l := range labels[1:] {
				if l.Confidence > top.Confidence {
					top = l
				}
			}
			if top.ModelID != test.ExpectTop {
				t.Errorf("expected top label %s, got %s", test.ExpectTop, top.ModelID)
			}
		})
	}
}

// DetectionTest defines a field or landmark detection case
type DetectionTest struct {
	Name    string
	Image   []byte
	ModelID string
	Names   []string
	// ExpectNames must each appear at least once.
	ExpectNames []string
}

// DetectionSuite validates FieldExtractor and LandmarkDetector
// implementations. Either backend may be nil.
type DetectionSuite struct {
	Fields    ports.FieldExtractor
	Landmarks ports.LandmarkDetector
	Tests     []DetectionTest
}

// Run executes all detection contract tests in the suite
func (s *DetectionSuite) Run(t *testing.T) {
	for _, test := range s.Tests {
		if s.Fields != nil {
			t.Run("fields/"+test.Name, func(t *testing.T) {
				templates := make([]models.FieldTemplate, len(test.Names))
				for i, n := range test.Names {
					templates[i] = models.FieldTemplate{Name: n}
				}
				detections, err := s.Fields.ExtractFields(context.Background(), test.Image, test.ModelID, templates)
				if err != nil {
					t.Fatalf("extract fields failed: %v", err)
				}
				checkDetections(t, test, detections)
			})
		}
		if s.Landmarks != nil {
			t.Run("landmarks/"+test.Name, func(t *testing.T) {
				templates := make([]models.LandmarkTemplate, len(test.Names))
				for i, n := range test.Names {
					templates[i] = models.LandmarkTemplate{Name: n, Role: models.RoleStructural}
				}
				detections, err := s.Landmarks.DetectLandmarks(context.Background(), test.Image, test.ModelID, templates)
				if err != nil {
					t.Fatalf("detect landmarks failed: %v", err)
				}
				checkDetections(t, test, detections)
			})
		}
	}
}

func checkDetections(t *testing.T, test DetectionTest, detections []models.Detection) {
	t.Helper()
	requested := make(map[string]bool, len(test.Names))
	for _, n := range test.Names {
		requested[n] = true
	}
	found := make(map[string]bool)
	for _, d := range detections {
		if !requested[d.Name] {
			t.Errorf("detection %q was not requested", d.Name)
		}
		found[d.Name] = true
		checkConfidence(t, d.Name, d.Confidence)
		if err := d.Box.Validate(); err != nil {
			t.Errorf("detection %q: %v", d.Name, err)
		}
	}
	for _, n := range test.ExpectNames {
		if !found[n] {
			t.Errorf("expected a detection for %q", n)
		}
	}
}

func checkConfidence(t *testing.T, name string, confidence float64) {
	t.Helper()
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1.0 {
		t.Errorf("%s: confidence %f out of range [0, 1]", name, confidence)
	}
}

// ErrorContractTest validates that adapter errors follow the taxonomy
type ErrorContractTest struct {
	Name          string
	Call          func(ctx context.Context) error
	ExpectedError providers.ErrorCategory
	ExpectedRetry bool
}

// Run executes an error contract test
func (ect *ErrorContractTest) Run(t *testing.T) {
	t.Run(ect.Name, func(t *testing.T) {
		err := ect.Call(context.Background())
		if err == nil {
			t.Fatal("expected error but got none")
		}

		category := providers.GetCategory(err)
		if category != ect.ExpectedError {
			t.Errorf("expected error category %s, got %s", ect.ExpectedError, category)
		}

		isRetryable := providers.IsRetryable(err)
		if isRetryable != ect.ExpectedRetry {
			t.Errorf("expected retryable=%v, got %v", ect.ExpectedRetry, isRetryable)
		}

		if models.IsRetryable(err) != isRetryable {
			t.Error("models.IsRetryable disagrees with the backend error")
		}
	})
}

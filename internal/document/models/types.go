// Package models holds the value types shared by the document extraction
// pipeline: document types, bounding boxes, definitions and results.
//
// Everything here is pure data. No I/O, no context.Context.
package models

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// DocumentType identifies one supported identity document variant.
type DocumentType string

const (
	DocumentTypeAUPassport  DocumentType = "AU_PASSPORT"
	DocumentTypeSGPassport  DocumentType = "SG_PASSPORT"
	DocumentTypeCNPassport  DocumentType = "CN_PASSPORT"
	DocumentTypePRCPassport DocumentType = "PRC_PASSPORT"
	DocumentTypeMYNRIC      DocumentType = "MY_NRIC"
	DocumentTypeIDKTP       DocumentType = "ID_KTP"
	DocumentTypeKHIC        DocumentType = "KH_IC"
	DocumentTypeTHIDFront   DocumentType = "TH_ID_FRONT"
)

var documentTypes = []DocumentType{
	DocumentTypeAUPassport,
	DocumentTypeSGPassport,
	DocumentTypeCNPassport,
	DocumentTypePRCPassport,
	DocumentTypeMYNRIC,
	DocumentTypeIDKTP,
	DocumentTypeKHIC,
	DocumentTypeTHIDFront,
}

// DocumentTypes returns every known document type in declaration order.
func DocumentTypes() []DocumentType {
	return append([]DocumentType(nil), documentTypes...)
}

// ParseDocumentType resolves a tag case-insensitively.
func ParseDocumentType(s string) (DocumentType, error) {
	candidate := DocumentType(strings.ToUpper(strings.TrimSpace(s)))
	if !candidate.IsValid() {
		return "", fmt.Errorf("unknown document type %q", s)
	}
	return candidate, nil
}

// IsValid reports whether t is one of the declared tags.
func (t DocumentType) IsValid() bool {
	for _, known := range documentTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t DocumentType) String() string {
	return string(t)
}

// boxTolerance absorbs float noise from backends that report edges like 1.0000001.
const boxTolerance = 1e-6

// BoundingBox is a rectangle in normalized image coordinates: every value is a
// fraction of the image width (Left, Width) or height (Top, Height).
type BoundingBox struct {
	Left   float64 `json:"left" yaml:"left"`
	Top    float64 `json:"top" yaml:"top"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Validate checks the box has non-negative extent and lies inside the image.
func (b BoundingBox) Validate() error {
	for _, v := range []float64{b.Left, b.Top, b.Width, b.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bounding box has non-finite coordinate")
		}
	}
	if b.Width < 0 || b.Height < 0 {
		return fmt.Errorf("bounding box has negative extent (%.4f x %.4f)", b.Width, b.Height)
	}
	if b.Left < -boxTolerance || b.Top < -boxTolerance {
		return fmt.Errorf("bounding box origin (%.4f, %.4f) outside image", b.Left, b.Top)
	}
	if b.Right() > 1+boxTolerance || b.Bottom() > 1+boxTolerance {
		return fmt.Errorf("bounding box extends past image edge (%.4f, %.4f)", b.Right(), b.Bottom())
	}
	return nil
}

// Right returns the normalized x coordinate of the right edge.
func (b BoundingBox) Right() float64 { return b.Left + b.Width }

// Bottom returns the normalized y coordinate of the bottom edge.
func (b BoundingBox) Bottom() float64 { return b.Top + b.Height }

// WithinVariance reports whether every edge of b is within threshold of the
// matching edge of expected.
func (b BoundingBox) WithinVariance(expected BoundingBox, threshold float64) bool {
	return math.Abs(b.Left-expected.Left) <= threshold &&
		math.Abs(b.Top-expected.Top) <= threshold &&
		math.Abs(b.Right()-expected.Right()) <= threshold &&
		math.Abs(b.Bottom()-expected.Bottom()) <= threshold
}

// Pixels converts the box to pixel space for an image of the given size.
func (b BoundingBox) Pixels(width, height int) image.Rectangle {
	x0 := int(math.Round(b.Left * float64(width)))
	y0 := int(math.Round(b.Top * float64(height)))
	x1 := int(math.Round(b.Right() * float64(width)))
	y1 := int(math.Round(b.Bottom() * float64(height)))
	return image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, width, height))
}

// NamedBoundingBox ties a region of the image to a semantic name.
type NamedBoundingBox struct {
	Name       string      `json:"name"`
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence"`
}

// LandmarkRole says what a landmark is used for.
type LandmarkRole string

const (
	RoleFace       LandmarkRole = "face"
	RoleSignature  LandmarkRole = "signature"
	RoleStructural LandmarkRole = "structural"
)

// IsValid reports whether r is a declared role.
func (r LandmarkRole) IsValid() bool {
	switch r {
	case RoleFace, RoleSignature, RoleStructural:
		return true
	}
	return false
}

// LandmarkTemplate declares a landmark a document is expected to carry.
// ExpectedBox, when set, rejects detections that land elsewhere.
type LandmarkTemplate struct {
	Name        string
	Role        LandmarkRole
	ExpectedBox *BoundingBox
}

// FieldTemplate declares a textual data field. Pattern is an optional
// case-insensitive regular expression the extracted value must match.
type FieldTemplate struct {
	Name        string
	Pattern     string
	ExpectedBox *BoundingBox
}

// Detection is one raw candidate returned by a vision backend. Backends may
// return several candidates for the same name.
type Detection struct {
	Name       string
	Box        BoundingBox
	Value      string
	Confidence float64
}

// Label is one ranked classification candidate.
type Label struct {
	ModelID    string
	Confidence float64
}

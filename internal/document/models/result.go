package models

// FieldValue is an extracted textual field. A failed extraction is recorded
// with an empty Value and zero Confidence rather than omitted.
type FieldValue struct {
	Value      string       `json:"value"`
	Confidence float64      `json:"confidence"`
	Box        *BoundingBox `json:"box,omitempty"`
}

// Extracted reports whether the field produced a value.
func (f FieldValue) Extracted() bool {
	return f.Value != "" && f.Confidence > 0
}

// ExtractionResult is the typed output of one extraction run. The caller owns
// it once returned.
type ExtractionResult struct {
	DocumentType             DocumentType                `json:"document_type"`
	Landmarks                map[string]NamedBoundingBox `json:"landmarks"`
	DataFields               map[string]FieldValue       `json:"data_fields"`
	LivenessPassed           *bool                       `json:"liveness_passed,omitempty"`
	ClassificationConfidence float64                     `json:"classification_confidence"`
}

// NewExtractionResult seeds a result with every declared landmark and field
// set to its empty value, so that no declared key can go missing.
func NewExtractionResult(def Definition, confidence float64) *ExtractionResult {
	res := &ExtractionResult{
		DocumentType:             def.Type,
		Landmarks:                make(map[string]NamedBoundingBox, len(def.Landmarks)),
		DataFields:               make(map[string]FieldValue, len(def.DataFields)),
		ClassificationConfidence: confidence,
	}
	for _, lm := range def.Landmarks {
		res.Landmarks[lm.Name] = NamedBoundingBox{Name: lm.Name}
	}
	for _, f := range def.DataFields {
		res.DataFields[f.Name] = FieldValue{}
	}
	return res
}

// FailedFields lists data fields that came back empty, in map order.
func (r *ExtractionResult) FailedFields() []string {
	var failed []string
	for name, v := range r.DataFields {
		if !v.Extracted() {
			failed = append(failed, name)
		}
	}
	return failed
}

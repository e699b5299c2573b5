package models

// Capabilities gates the optional checks for a document type. Consumers must
// branch on these flags before calling the matching backend.
type Capabilities struct {
	Liveness            bool `json:"liveness_supported"`
	FaceExtraction      bool `json:"face_extraction_supported"`
	SignatureExtraction bool `json:"signature_extraction_supported"`
}

// Definition is the immutable extraction configuration of one document type.
//
// Definitions are built once by the registry and only ever read afterwards.
// Slices are copied on the way in and out so callers cannot alias them.
type Definition struct {
	Type         DocumentType
	DisplayName  string
	Capabilities Capabilities
	// CustomModelID is the opaque backend model identifier used both to
	// recognise the document during classification and to scope extraction.
	CustomModelID string
	Landmarks     []LandmarkTemplate
	DataFields    []FieldTemplate
	// ValueTrimPrefix is stripped from the start of every extracted value.
	ValueTrimPrefix string
}

// Summary is the listing view of a definition.
type Summary struct {
	Type         DocumentType `json:"document_type"`
	DisplayName  string       `json:"display_name"`
	Capabilities Capabilities `json:"capabilities"`
}

// Summary returns the public listing view of d.
func (d Definition) Summary() Summary {
	return Summary{Type: d.Type, DisplayName: d.DisplayName, Capabilities: d.Capabilities}
}

// Clone returns a deep copy of d.
func (d Definition) Clone() Definition {
	out := d
	out.Landmarks = make([]LandmarkTemplate, len(d.Landmarks))
	for i, lm := range d.Landmarks {
		out.Landmarks[i] = lm
		if lm.ExpectedBox != nil {
			box := *lm.ExpectedBox
			out.Landmarks[i].ExpectedBox = &box
		}
	}
	out.DataFields = make([]FieldTemplate, len(d.DataFields))
	for i, f := range d.DataFields {
		out.DataFields[i] = f
		if f.ExpectedBox != nil {
			box := *f.ExpectedBox
			out.DataFields[i].ExpectedBox = &box
		}
	}
	return out
}

// LandmarksByRole returns the landmark templates with the given role, in
// declaration order.
func (d Definition) LandmarksByRole(role LandmarkRole) []LandmarkTemplate {
	var out []LandmarkTemplate
	for _, lm := range d.Landmarks {
		if lm.Role == role {
			out = append(out, lm)
		}
	}
	return out
}

// FieldNames returns the declared data field names in order.
func (d Definition) FieldNames() []string {
	names := make([]string, len(d.DataFields))
	for i, f := range d.DataFields {
		names[i] = f.Name
	}
	return names
}

// LandmarkNames returns the declared landmark names in order.
func (d Definition) LandmarkNames() []string {
	names := make([]string, len(d.Landmarks))
	for i, lm := range d.Landmarks {
		names[i] = lm.Name
	}
	return names
}

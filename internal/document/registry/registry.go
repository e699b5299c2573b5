// Package registry holds the process-wide table of document definitions.
//
// A Registry is built once at startup and never mutated afterwards, so it is
// shared between concurrent extractions without locking.
package registry

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"ekyc/internal/document/models"
)

// ErrInvalidDefinition wraps every construction-time validation failure.
var ErrInvalidDefinition = errors.New("invalid document definition")

// Registry maps document types to their definitions.
type Registry struct {
	order   []models.DocumentType
	defs    map[models.DocumentType]models.Definition
	byModel map[string]models.DocumentType
}

// New validates defs and builds an immutable registry. Registration order is
// preserved for listing.
func New(defs ...models.Definition) (*Registry, error) {
	r := &Registry{
		order:   make([]models.DocumentType, 0, len(defs)),
		defs:    make(map[models.DocumentType]models.Definition, len(defs)),
		byModel: make(map[string]models.DocumentType, len(defs)),
	}
	for _, def := range defs {
		if err := validate(def); err != nil {
			return nil, err
		}
		if _, exists := r.defs[def.Type]; exists {
			return nil, fmt.Errorf("%w: document type %s registered twice", ErrInvalidDefinition, def.Type)
		}
		if other, exists := r.byModel[def.CustomModelID]; exists {
			return nil, fmt.Errorf("%w: model %q shared by %s and %s", ErrInvalidDefinition, def.CustomModelID, other, def.Type)
		}
		r.order = append(r.order, def.Type)
		r.defs[def.Type] = def.Clone()
		r.byModel[def.CustomModelID] = def.Type
	}
	return r, nil
}

// MustNew is New for static tables known to be valid.
func MustNew(defs ...models.Definition) *Registry {
	r, err := New(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the definition for t.
func (r *Registry) Resolve(t models.DocumentType) (models.Definition, error) {
	def, ok := r.defs[t]
	if !ok {
		return models.Definition{}, models.UnsupportedDocumentType(t, nil)
	}
	return def.Clone(), nil
}

// All returns every definition in registration order.
func (r *Registry) All() []models.Definition {
	out := make([]models.Definition, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.defs[t].Clone())
	}
	return out
}

// Summaries lists the supported document types for discovery.
func (r *Registry) Summaries() []models.Summary {
	out := make([]models.Summary, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.defs[t].Summary())
	}
	return out
}

// ModelIDs returns the custom model identifiers of every definition, in
// registration order. This is the candidate set handed to classification.
func (r *Registry) ModelIDs() []string {
	out := make([]string, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.defs[t].CustomModelID)
	}
	return out
}

// TypeForModel maps a classification label back to a document type.
func (r *Registry) TypeForModel(modelID string) (models.DocumentType, bool) {
	t, ok := r.byModel[modelID]
	return t, ok
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	return len(r.order)
}

func validate(def models.Definition) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidDefinition, def.Type, fmt.Sprintf(format, args...))
	}

	if !def.Type.IsValid() {
		return fmt.Errorf("%w: unknown document type %q", ErrInvalidDefinition, def.Type)
	}
	if strings.TrimSpace(def.DisplayName) == "" {
		return invalid("display name is required")
	}
	if strings.TrimSpace(def.CustomModelID) == "" {
		return invalid("custom model id is required")
	}

	seen := make(map[string]struct{}, len(def.Landmarks)+len(def.DataFields))
	roles := make(map[models.LandmarkRole]bool)
	for _, lm := range def.Landmarks {
		if strings.TrimSpace(lm.Name) == "" {
			return invalid("landmark name is required")
		}
		if _, dup := seen[lm.Name]; dup {
			return invalid("template %q declared twice", lm.Name)
		}
		seen[lm.Name] = struct{}{}
		if !lm.Role.IsValid() {
			return invalid("landmark %q has unknown role %q", lm.Name, lm.Role)
		}
		roles[lm.Role] = true
		if lm.ExpectedBox != nil {
			if err := lm.ExpectedBox.Validate(); err != nil {
				return invalid("landmark %q: %v", lm.Name, err)
			}
		}
	}
	for _, f := range def.DataFields {
		if strings.TrimSpace(f.Name) == "" {
			return invalid("data field name is required")
		}
		if _, dup := seen[f.Name]; dup {
			return invalid("template %q declared twice", f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Pattern != "" {
			if _, err := regexp.Compile(f.Pattern); err != nil {
				return invalid("data field %q pattern: %v", f.Name, err)
			}
		}
		if f.ExpectedBox != nil {
			if err := f.ExpectedBox.Validate(); err != nil {
				return invalid("data field %q: %v", f.Name, err)
			}
		}
	}

	caps := def.Capabilities
	if roles[models.RoleFace] != caps.FaceExtraction {
		return invalid("face landmark declared=%t but face extraction supported=%t", roles[models.RoleFace], caps.FaceExtraction)
	}
	if roles[models.RoleSignature] != caps.SignatureExtraction {
		return invalid("signature landmark declared=%t but signature extraction supported=%t", roles[models.RoleSignature], caps.SignatureExtraction)
	}
	return nil
}

package registry

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"ekyc/internal/document/models"
)

//go:embed schema.json
var schemaJSON []byte

var fileSchema = compileSchema()

func compileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("definitions.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("add definitions schema: %v", err))
	}
	return compiler.MustCompile("definitions.schema.json")
}

type fileDocument struct {
	Definitions []Override `yaml:"definitions"`
}

// Override is one entry of a definitions file. Zero-valued parts leave the
// built-in definition untouched.
type Override struct {
	DocumentType    string            `yaml:"document_type"`
	DisplayName     string            `yaml:"display_name"`
	ModelID         string            `yaml:"model_id"`
	ValueTrimPrefix *string           `yaml:"value_trim_prefix"`
	Capabilities    *fileCapabilities `yaml:"capabilities"`
	Landmarks       []fileLandmark    `yaml:"landmarks"`
	DataFields      []fileField       `yaml:"data_fields"`
}

type fileCapabilities struct {
	Liveness            bool `yaml:"liveness"`
	FaceExtraction      bool `yaml:"face_extraction"`
	SignatureExtraction bool `yaml:"signature_extraction"`
}

type fileLandmark struct {
	Name        string              `yaml:"name"`
	Role        string              `yaml:"role"`
	ExpectedBox *models.BoundingBox `yaml:"expected_box"`
}

type fileField struct {
	Name        string              `yaml:"name"`
	Pattern     string              `yaml:"pattern"`
	ExpectedBox *models.BoundingBox `yaml:"expected_box"`
}

// LoadFile reads a YAML definitions file and validates it against the
// embedded schema.
func LoadFile(path string) ([]Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates definitions file content.
func Parse(data []byte) ([]Override, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidDefinition, err)
	}
	// Round-trip through JSON so the validator sees JSON-native types.
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: convert yaml: %v", ErrInvalidDefinition, err)
	}
	var doc any
	if err := json.Unmarshal(asJSON, &doc); err != nil {
		return nil, fmt.Errorf("%w: convert yaml: %v", ErrInvalidDefinition, err)
	}
	if err := fileSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	var parsed fileDocument
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode definitions: %v", ErrInvalidDefinition, err)
	}
	return parsed.Definitions, nil
}

// Apply returns def with the override merged in.
func (o Override) Apply(def models.Definition) models.Definition {
	out := def.Clone()
	if o.DisplayName != "" {
		out.DisplayName = o.DisplayName
	}
	if o.ModelID != "" {
		out.CustomModelID = o.ModelID
	}
	if o.ValueTrimPrefix != nil {
		out.ValueTrimPrefix = *o.ValueTrimPrefix
	}
	if o.Capabilities != nil {
		out.Capabilities = models.Capabilities{
			Liveness:            o.Capabilities.Liveness,
			FaceExtraction:      o.Capabilities.FaceExtraction,
			SignatureExtraction: o.Capabilities.SignatureExtraction,
		}
	}
	if o.Landmarks != nil {
		out.Landmarks = make([]models.LandmarkTemplate, 0, len(o.Landmarks))
		for _, lm := range o.Landmarks {
			out.Landmarks = append(out.Landmarks, models.LandmarkTemplate{
				Name:        lm.Name,
				Role:        models.LandmarkRole(lm.Role),
				ExpectedBox: lm.ExpectedBox,
			})
		}
	}
	if o.DataFields != nil {
		out.DataFields = make([]models.FieldTemplate, 0, len(o.DataFields))
		for _, f := range o.DataFields {
			out.DataFields = append(out.DataFields, models.FieldTemplate{
				Name:        f.Name,
				Pattern:     f.Pattern,
				ExpectedBox: f.ExpectedBox,
			})
		}
	}
	return out
}

// Type returns the document type the override targets.
func (o Override) Type() models.DocumentType {
	return models.DocumentType(o.DocumentType)
}

// NewWithOverrides merges overrides over the built-in table by document type
// and validates the result. Overrides for types without a built-in entry must
// be complete definitions.
func NewWithOverrides(overrides []Override) (*Registry, error) {
	defs := BuiltinDefinitions()
	index := make(map[models.DocumentType]int, len(defs))
	for i, def := range defs {
		index[def.Type] = i
	}
	for _, o := range overrides {
		if i, ok := index[o.Type()]; ok {
			defs[i] = o.Apply(defs[i])
			continue
		}
		index[o.Type()] = len(defs)
		defs = append(defs, o.Apply(models.Definition{Type: o.Type()}))
	}
	return New(defs...)
}

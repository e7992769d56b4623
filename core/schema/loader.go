package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed descriptor.schema.json
var descriptorSchema string

var compiledDescriptorSchema *gojsonschema.Schema

func init() {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(descriptorSchema))
	if err != nil {
		panic(fmt.Sprintf("schema: invalid embedded descriptor schema: %v", err))
	}
	compiledDescriptorSchema = s
}

// descriptorFile is the top-level shape of an entity descriptor file.
type descriptorFile struct {
	Entities []*EntityDefinition `json:"entities" yaml:"entities"`
}

// LoadYAML parses a YAML descriptor file and returns its validated entity
// definitions in declaration order.
func LoadYAML(data []byte) ([]*EntityDefinition, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor yaml: %w", err)
	}
	if err := checkDescriptor(raw); err != nil {
		return nil, err
	}

	var file descriptorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor yaml: %w", err)
	}
	return validateAll(file.Entities)
}

// LoadJSON parses a JSON descriptor file.
func LoadJSON(data []byte) ([]*EntityDefinition, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor json: %w", err)
	}
	if err := checkDescriptor(raw); err != nil {
		return nil, err
	}

	var file descriptorFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor json: %w", err)
	}
	return validateAll(file.Entities)
}

// LoadFile reads a descriptor file, choosing the decoder by extension.
func LoadFile(path string) ([]*EntityDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(data)
	case ".json":
		return LoadJSON(data)
	default:
		return nil, fmt.Errorf("unsupported descriptor extension %q", filepath.Ext(path))
	}
}

func checkDescriptor(raw map[string]any) error {
	result, err := compiledDescriptorSchema.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("descriptor schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	issues := make([]Issue, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, Issue{
			Code:    "DESCRIPTOR_INVALID",
			Message: desc.String(),
			Path:    desc.Field(),
		})
	}
	return &ValidationError{Entity: "descriptor", Issues: issues}
}

func validateAll(defs []*EntityDefinition) ([]*EntityDefinition, error) {
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

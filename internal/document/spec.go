// Declares schemas in YAML.

package document

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// SchemaSpec is the YAML form of a schema.
type SchemaSpec struct {
	Name   string      `yaml:"name"`
	Fields []FieldSpec `yaml:"fields"`
}

// FieldSpec is the YAML form of a field.
type FieldSpec struct {
	Name        string   `yaml:"name"`
	Type        Kind     `yaml:"type"`
	Required    bool     `yaml:"required,omitempty"`
	PrimaryKey  bool     `yaml:"primary_key,omitempty"`
	Default     any      `yaml:"default,omitempty"`
	Description string   `yaml:"description,omitempty"`
	MinLength   int      `yaml:"min_length,omitempty"`
	MaxLength   int      `yaml:"max_length,omitempty"`
	Min         *float64 `yaml:"min,omitempty"`
	Max         *float64 `yaml:"max,omitempty"`
	Choices     []any    `yaml:"choices,omitempty"`
	Pattern     string   `yaml:"pattern,omitempty"`
}

// Build returns the schema described by s.
func (s *SchemaSpec) Build() (*Schema, error) {
	fields := make([]Field, 0, len(s.Fields))
	for _, fs := range s.Fields {
		f := Field{
			Name:        fs.Name,
			Kind:        fs.Type,
			Required:    fs.Required,
			PrimaryKey:  fs.PrimaryKey,
			Default:     fs.Default,
			Description: fs.Description,
			MinLength:   fs.MinLength,
			MaxLength:   fs.MaxLength,
			Min:         fs.Min,
			Max:         fs.Max,
			Choices:     fs.Choices,
		}
		if fs.Pattern != "" {
			re, err := regexp.Compile(fs.Pattern)
			if err != nil {
				return nil, fmt.Errorf("schema %s: field %q: invalid pattern: %w", s.Name, fs.Name, err)
			}
			f.Pattern = re
		}
		fields = append(fields, f)
	}
	return NewSchema(s.Name, fields...)
}

// ParseSchemas decodes a YAML list of schema specs and builds them.
func ParseSchemas(data []byte) ([]*Schema, error) {
	var specs []SchemaSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse schemas: %w", err)
	}
	schemas := make([]*Schema, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for i := range specs {
		s, err := specs[i].Build()
		if err != nil {
			return nil, err
		}
		if seen[s.Name()] {
			return nil, fmt.Errorf("duplicate schema %s", s.Name())
		}
		seen[s.Name()] = true
		schemas = append(schemas, s)
	}
	return schemas, nil
}

package document

import (
	"encoding/json"
	"strconv"

	"github.com/invopop/jsonschema"
)

// JSONSchema describes the schema as a JSON Schema document.
func (s *Schema) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	var required []string
	for i := range s.fields {
		f := &s.fields[i]
		p := &jsonschema.Schema{
			Type:        f.Kind.jsonType(),
			Description: f.Description,
			Enum:        f.Choices,
		}
		if f.Kind == KindDateTime {
			p.Format = "date-time"
		}
		if _, ok := f.Default.(func() any); !ok && f.Default != nil {
			p.Default = f.Default
		}
		if f.Pattern != nil {
			p.Pattern = f.Pattern.String()
		}
		if f.Min != nil {
			p.Minimum = jsonNumber(*f.Min)
		}
		if f.Max != nil {
			p.Maximum = jsonNumber(*f.Max)
		}
		switch f.Kind {
		case KindList:
			p.MinItems = uintPtr(f.MinLength)
			p.MaxItems = uintPtr(f.MaxLength)
		case KindString:
			p.MinLength = uintPtr(f.MinLength)
			p.MaxLength = uintPtr(f.MaxLength)
		}
		props.Set(f.Name, p)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return &jsonschema.Schema{
		Version:              jsonschema.Version,
		Title:                s.name,
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

func jsonNumber(f float64) json.Number {
	return json.Number(strconv.FormatFloat(f, 'f', -1, 64))
}

func uintPtr(n int) *uint64 {
	if n <= 0 {
		return nil
	}
	u := uint64(n)
	return &u
}

// Builds schemas from Go struct types using JSON Schema reflection.

package document

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/invopop/jsonschema"
)

// SchemaFor reflects the exported fields of struct type T into a schema named
// after the type.
//
// Field names come from `json` tags. Constraints come from `jsonschema` tags:
// required, minLength, maxLength, minimum, maximum, enum, pattern, default and
// description. A `doc:"pk"` tag marks the primary key.
//
//	type Person struct {
//		Name string `json:"name" jsonschema:"maxLength=255,default=Robot"`
//		Age  int    `json:"age" jsonschema:"required"`
//	}
func SchemaFor[T any]() (*Schema, error) {
	return schemaFromType(reflect.TypeFor[T]())
}

// MustSchemaFor is like SchemaFor but panics on error.
func MustSchemaFor[T any]() *Schema {
	s, err := SchemaFor[T]()
	if err != nil {
		panic(err)
	}
	return s
}

func schemaFromType(t reflect.Type) (*Schema, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type must be a struct or pointer to struct, got %s", t.Kind())
	}

	// Inline properties (no $ref); required only when tagged so.
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true, RequiredFromJSONSchemaTags: true}
	js := r.ReflectFromType(t)

	goFields := make(map[string]reflect.StructField)
	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		if name := jsonFieldName(&sf); name != "-" {
			goFields[name] = sf
		}
	}

	var fields []Field
	for pair := js.Properties.Oldest(); pair != nil; pair = pair.Next() {
		name, prop := pair.Key, pair.Value
		f := Field{
			Name:        name,
			Kind:        KindAny,
			Required:    slices.Contains(js.Required, name),
			Default:     prop.Default,
			Description: prop.Description,
			Choices:     prop.Enum,
		}
		if sf, ok := goFields[name]; ok {
			f.Kind = kindOf(sf.Type)
			f.PrimaryKey = hasTagOption(sf.Tag.Get("doc"), "pk")
		}
		if prop.MinLength != nil {
			f.MinLength = int(*prop.MinLength)
		}
		if prop.MaxLength != nil {
			f.MaxLength = int(*prop.MaxLength)
		}
		if prop.Minimum != "" {
			v, err := prop.Minimum.Float64()
			if err != nil {
				return nil, fmt.Errorf("field %q: invalid minimum: %w", name, err)
			}
			f.Min = &v
		}
		if prop.Maximum != "" {
			v, err := prop.Maximum.Float64()
			if err != nil {
				return nil, fmt.Errorf("field %q: invalid maximum: %w", name, err)
			}
			f.Max = &v
		}
		if prop.Pattern != "" {
			re, err := regexp.Compile(prop.Pattern)
			if err != nil {
				return nil, fmt.Errorf("field %q: invalid pattern: %w", name, err)
			}
			f.Pattern = re
		}
		fields = append(fields, f)
	}
	return NewSchema(t.Name(), fields...)
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(field *reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "-"
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}

func hasTagOption(tag, option string) bool {
	return slices.Contains(strings.Split(tag, ","), option)
}

package document

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/maruel/docitem/internal/jsonldb"
)

var (
	// ErrUnknownField is returned when a value is given for a field the schema
	// does not declare.
	ErrUnknownField = errors.New("unknown field")
	// ErrValidation matches every *ValidationError with errors.Is.
	ErrValidation = errors.New("validation failed")

	errSchemaNameRequired = errors.New("schema name is required")
)

// Schema is an immutable, ordered set of fields.
type Schema struct {
	name   string
	fields []Field
	index  map[string]int
	pk     int
}

// NewSchema builds a schema from fields, in declared order.
func NewSchema(name string, fields ...Field) (*Schema, error) {
	if name == "" {
		return nil, errSchemaNameRequired
	}
	s := &Schema{
		name:   name,
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
		pk:     -1,
	}
	for _, f := range fields {
		if err := f.check(); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		if _, ok := s.index[f.Name]; ok {
			return nil, fmt.Errorf("schema %s: duplicate field %q", name, f.Name)
		}
		if f.PrimaryKey {
			if s.pk >= 0 {
				return nil, fmt.Errorf("schema %s: fields %q and %q are both primary keys", name, s.fields[s.pk].Name, f.Name)
			}
			if !f.Kind.comparable() {
				return nil, fmt.Errorf("schema %s: primary key %q cannot be of kind %q", name, f.Name, f.Kind)
			}
			s.pk = len(s.fields)
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error.
func MustSchema(name string, fields ...Field) *Schema {
	s, err := NewSchema(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string {
	return s.name
}

// Schema returns s. It lets a *Schema be used wherever a schema provider is
// expected.
func (s *Schema) Schema() *Schema {
	return s
}

// Fields returns a copy of the fields in declared order.
func (s *Schema) Fields() []Field {
	return slices.Clone(s.fields)
}

// FieldNames returns the field names in declared order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i := range s.fields {
		names[i] = s.fields[i].Name
	}
	return names
}

// Field returns the named field.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// HasField reports whether the schema declares the named field.
func (s *Schema) HasField(name string) bool {
	_, ok := s.index[name]
	return ok
}

// PrimaryKey returns the primary key field, if the schema declares one.
func (s *Schema) PrimaryKey() (Field, bool) {
	if s.pk < 0 {
		return Field{}, false
	}
	return s.fields[s.pk], true
}

func (s *Schema) columns() []jsonldb.Column {
	cols := make([]jsonldb.Column, len(s.fields))
	for i := range s.fields {
		f := &s.fields[i]
		cols[i] = jsonldb.Column{
			Name:        f.Name,
			Type:        f.Kind.column(),
			Required:    f.Required,
			PrimaryKey:  f.PrimaryKey,
			Description: f.Description,
		}
	}
	return cols
}

// NewDocument returns a document holding values, with every other field set
// to its default.
func (s *Schema) NewDocument(values map[string]any) (*Document, error) {
	for name := range values {
		if !s.HasField(name) {
			return nil, fmt.Errorf("%w %q for schema %s", ErrUnknownField, name, s.name)
		}
	}
	return s.newDocument(values), nil
}

func (s *Schema) newDocument(values map[string]any) *Document {
	d := &Document{schema: s, values: make(map[string]any, len(s.fields))}
	for i := range s.fields {
		f := &s.fields[i]
		v, ok := values[f.Name]
		if !ok {
			v = f.DefaultValue()
		}
		d.values[f.Name] = canonicalize(f, v)
	}
	return d
}

// canonicalize returns v in canonical form when it belongs to the field kind
// and unchanged otherwise, so validation can report it.
func canonicalize(f *Field, v any) any {
	if v == nil {
		return nil
	}
	if cv, err := f.Kind.canonical(v); err == nil {
		return cv
	}
	return v
}

// Validate checks the named fields of doc; nil fields means every field.
// Names the schema does not declare are ignored.
//
// It returns nil or a *ValidationError listing every failing field.
func (s *Schema) Validate(doc *Document, fields []string) error {
	if doc == nil {
		return errors.New("document is nil")
	}
	if doc.schema != s {
		return fmt.Errorf("document of schema %s validated against %s", doc.schema.name, s.name)
	}
	if fields == nil {
		fields = s.FieldNames()
	}
	errs := map[string]error{}
	for _, name := range fields {
		i, ok := s.index[name]
		if !ok {
			continue
		}
		if err := s.fields[i].validate(doc.values[name]); err != nil {
			errs[name] = err
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Schema: s.name, Errors: errs}
}

// ValidationError lists the fields of a document that failed validation.
type ValidationError struct {
	Schema string
	Errors map[string]error
}

// Fields returns the failing field names, sorted.
func (e *ValidationError) Fields() []string {
	return slices.Sorted(maps.Keys(e.Errors))
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, name := range e.Fields() {
		parts = append(parts, name+": "+e.Errors[name].Error())
	}
	return fmt.Sprintf("%s: %s (%s)", ErrValidation, e.Schema, strings.Join(parts, ", "))
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

package item

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/maruel/docitem/internal/document"
)

var (
	// ErrNoSchema is returned when a class is defined without a document schema.
	ErrNoSchema = errors.New("item class has no document schema")
	// ErrNotPersistable is returned by Save with commit when the class model
	// cannot store documents.
	ErrNotPersistable = errors.New("item class model cannot persist documents")

	errClassNameRequired = errors.New("item class name is required")
)

// Model provides the document schema of an item class. Both
// *document.Schema and *document.Collection implement it.
type Model interface {
	Schema() *document.Schema
}

// Persister is implemented by models that can store documents, such as
// *document.Collection.
type Persister interface {
	Save(ctx context.Context, doc *document.Document) (*document.Document, error)
}

// Class is an item type: a frozen set of fields derived from a document
// schema, plus fields added or redefined by the class and its ancestors.
type Class struct {
	name   string
	parent *Class
	model  Model
	schema *document.Schema
	fields map[string]Field
}

// Define returns a root class whose fields are those of the model schema,
// overlaid with fields. A field named like a schema field replaces its
// descriptor.
func Define(name string, model Model, fields ...Field) (*Class, error) {
	if name == "" {
		return nil, errClassNameRequired
	}
	var s *document.Schema
	if model != nil {
		s = model.Schema()
	}
	derived, err := reflectSchema(s)
	if err != nil {
		return nil, fmt.Errorf("item class %s: %w", name, err)
	}
	set := make(map[string]Field, len(derived)+len(fields))
	for _, f := range derived {
		set[f.Name] = f
	}
	c := &Class{name: name, model: model, schema: s, fields: set}
	if err := c.overlay(fields); err != nil {
		return nil, err
	}
	return c, nil
}

// MustDefine is like Define but panics on error.
func MustDefine(name string, model Model, fields ...Field) *Class {
	c, err := Define(name, model, fields...)
	if err != nil {
		panic(err)
	}
	return c
}

// Extend returns a subclass of c. It starts from c's fields and overlays
// fields; a redefined field replaces the inherited descriptor.
func (c *Class) Extend(name string, fields ...Field) (*Class, error) {
	if name == "" {
		return nil, errClassNameRequired
	}
	set := make(map[string]Field, len(c.fields)+len(fields))
	for k, f := range c.fields {
		set[k] = f.clone()
	}
	sub := &Class{name: name, parent: c, model: c.model, schema: c.schema, fields: set}
	if err := sub.overlay(fields); err != nil {
		return nil, err
	}
	return sub, nil
}

// MustExtend is like Extend but panics on error.
func (c *Class) MustExtend(name string, fields ...Field) *Class {
	sub, err := c.Extend(name, fields...)
	if err != nil {
		panic(err)
	}
	return sub
}

func (c *Class) overlay(fields []Field) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("item class %s: field name is required", c.name)
		}
		if seen[f.Name] {
			return fmt.Errorf("item class %s: duplicate field %q", c.name, f.Name)
		}
		seen[f.Name] = true
		f = f.clone()
		f.doc = nil
		c.fields[f.Name] = f
	}
	return nil
}

// Name returns the class name.
func (c *Class) Name() string {
	return c.name
}

// Parent returns the class c extends, or nil for a root class.
func (c *Class) Parent() *Class {
	return c.parent
}

// Model returns the model the class was defined with.
func (c *Class) Model() Model {
	return c.model
}

// Schema returns the document schema backing the class.
func (c *Class) Schema() *document.Schema {
	return c.schema
}

// Fields returns a copy of the field descriptors sorted by name.
func (c *Class) Fields() []Field {
	out := make([]Field, 0, len(c.fields))
	for _, name := range c.FieldNames() {
		out = append(out, c.fields[name].clone())
	}
	return out
}

// FieldNames returns the names of the fields, sorted.
func (c *Class) FieldNames() []string {
	return slices.Sorted(maps.Keys(c.fields))
}

// Field returns the named field descriptor.
func (c *Class) Field(name string) (Field, bool) {
	f, ok := c.fields[name]
	if !ok {
		return Field{}, false
	}
	return f.clone(), true
}

// HasField reports whether items of the class accept the named field.
func (c *Class) HasField(name string) bool {
	_, ok := c.fields[name]
	return ok
}

func (c *Class) String() string {
	return c.name
}

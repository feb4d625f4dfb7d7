package item

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/maruel/docitem/internal/document"
)

// ErrUnknownField matches every *UnknownFieldError with errors.Is. It is the
// same sentinel the document layer uses.
var ErrUnknownField = document.ErrUnknownField

// ErrNotPopulated is returned by Get for a known field that was never set.
var ErrNotPopulated = errors.New("field is not populated")

// UnknownFieldError is returned when reading or writing a field the item
// class does not declare.
type UnknownFieldError struct {
	Class string
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%s does not support field: %s", e.Class, e.Field)
}

// Is reports whether target is ErrUnknownField.
func (e *UnknownFieldError) Is(target error) bool {
	return target == ErrUnknownField
}

// Item is a record being collected for a class.
//
// Only populated fields hold a value. The validation outcome is cached until
// the next mutation.
type Item struct {
	class  *Class
	values map[string]any

	validated bool
	valid     bool
	errs      map[string]error
}

// New returns an item of class c populated with values.
func (c *Class) New(values map[string]any) (*Item, error) {
	it := &Item{class: c, values: make(map[string]any, len(values))}
	// Sorted so the reported unknown field is deterministic.
	for _, name := range slices.Sorted(maps.Keys(values)) {
		if err := it.Set(name, values[name]); err != nil {
			return nil, err
		}
	}
	return it, nil
}

// Class returns the item class.
func (it *Item) Class() *Class {
	return it.class
}

// Set populates the named field.
func (it *Item) Set(name string, v any) error {
	if !it.class.HasField(name) {
		return &UnknownFieldError{Class: it.class.name, Field: name}
	}
	it.values[name] = v
	it.validated = false
	return nil
}

// Unset removes the value of the named field.
func (it *Item) Unset(name string) error {
	if !it.class.HasField(name) {
		return &UnknownFieldError{Class: it.class.name, Field: name}
	}
	delete(it.values, name)
	it.validated = false
	return nil
}

// Get returns the value of the named field.
func (it *Item) Get(name string) (any, error) {
	if !it.class.HasField(name) {
		return nil, &UnknownFieldError{Class: it.class.name, Field: name}
	}
	v, ok := it.values[name]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", it.class.name, name, ErrNotPopulated)
	}
	return v, nil
}

// IsSet reports whether the named field is populated.
func (it *Item) IsSet(name string) bool {
	_, ok := it.values[name]
	return ok
}

// Keys returns the populated field names, sorted.
func (it *Item) Keys() []string {
	return slices.Sorted(maps.Keys(it.values))
}

// Values returns a copy of the populated fields.
func (it *Item) Values() map[string]any {
	return maps.Clone(it.values)
}

// Len returns the number of populated fields.
func (it *Item) Len() int {
	return len(it.values)
}

// MarshalJSON implements json.Marshaler with the populated fields.
func (it *Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(it.values)
}

// IsValid validates the populated fields against the document schema.
//
// Every schema field not listed in exclude is checked, so a required field
// that was never set makes the item invalid. The outcome is cached: while the
// item is not mutated, later calls return it without validating again,
// whatever exclude they pass.
func (it *Item) IsValid(exclude ...string) bool {
	if it.validated {
		return it.valid
	}
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}
	s := it.class.schema
	doc := it.document(skip)
	fields := make([]string, 0, len(it.values))
	for _, name := range s.FieldNames() {
		if !skip[name] {
			fields = append(fields, name)
		}
	}
	it.errs = map[string]error{}
	if err := s.Validate(doc, fields); err != nil {
		var verr *document.ValidationError
		if errors.As(err, &verr) {
			maps.Copy(it.errs, verr.Errors)
		} else {
			// Not tied to a field.
			it.errs[""] = err
		}
	}
	it.valid = len(it.errs) == 0
	it.validated = true
	return it.valid
}

// Errors returns the per-field errors found by the most recent IsValid. It is
// empty until IsValid has run.
func (it *Item) Errors() map[string]error {
	return maps.Clone(it.errs)
}

// Save converts the item to a document of the class schema.
//
// Fields that are not populated take their schema default. Fields the schema
// does not declare are left out. Save does not validate the item; with commit
// the document is stored through the class model, which performs its own
// validation. Errors from the model are returned unchanged.
func (it *Item) Save(ctx context.Context, commit bool) (*document.Document, error) {
	doc := it.document(nil)
	if !commit {
		return doc, nil
	}
	p, ok := it.class.model.(Persister)
	if !ok {
		return nil, fmt.Errorf("item class %s: %w", it.class.name, ErrNotPersistable)
	}
	return p.Save(ctx, doc)
}

// document builds the transient document from populated schema fields.
func (it *Item) document(skip map[string]bool) *document.Document {
	s := it.class.schema
	values := make(map[string]any, len(it.values))
	for name, v := range it.values {
		if s.HasField(name) && !skip[name] {
			values[name] = v
		}
	}
	doc, err := s.NewDocument(values)
	if err != nil {
		// Unreachable: values only holds schema fields.
		panic(err)
	}
	return doc
}

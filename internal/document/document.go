package document

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/maruel/ksid"
)

// Document holds one value per schema field.
//
// Values are kept in the canonical form of their field kind (int64 for ints,
// float64 for floats, time.Time for datetimes) when they belong to it; values
// of the wrong type are kept as-is and reported by validation.
//
// A Document is not safe for concurrent mutation.
type Document struct {
	schema   *Schema
	id       ksid.ID
	values   map[string]any
	created  time.Time
	modified time.Time
}

// Schema returns the document schema.
func (d *Document) Schema() *Schema {
	return d.schema
}

// ID returns the store-assigned ID; it is zero until the document is saved.
func (d *Document) ID() ksid.ID {
	return d.id
}

// Created returns when the document was first saved.
func (d *Document) Created() time.Time {
	return d.created
}

// Modified returns when the document was last saved.
func (d *Document) Modified() time.Time {
	return d.modified
}

// Get returns the value of the named field, or nil if unset or unknown.
func (d *Document) Get(name string) any {
	return d.values[name]
}

// Set assigns the named field.
func (d *Document) Set(name string, v any) error {
	i, ok := d.schema.index[name]
	if !ok {
		return fmt.Errorf("%w %q for schema %s", ErrUnknownField, name, d.schema.name)
	}
	d.values[name] = canonicalize(&d.schema.fields[i], v)
	return nil
}

// Values returns a copy of all field values; unset fields map to nil.
func (d *Document) Values() map[string]any {
	return maps.Clone(d.values)
}

// PrimaryKey returns the value of the primary key field, or the ID when the
// schema has no primary key.
func (d *Document) PrimaryKey() any {
	if f, ok := d.schema.PrimaryKey(); ok {
		return d.values[f.Name]
	}
	return d.id
}

// Decode stores the document values into dst, typically a pointer to the
// struct the schema was reflected from.
func (d *Document) Decode(dst any) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode %s document: %w", d.schema.name, err)
	}
	return nil
}

// MarshalJSON implements json.Marshaler. Unset fields are omitted.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.storable())
}

// storable returns the set values with datetimes formatted as RFC3339.
func (d *Document) storable() map[string]any {
	out := make(map[string]any, len(d.values))
	for name, v := range d.values {
		switch x := v.(type) {
		case nil:
			continue
		case time.Time:
			out[name] = x.UTC().Format(time.RFC3339Nano)
		default:
			out[name] = v
		}
	}
	return out
}

// Persists documents in JSONL tables, one file per schema.

package document

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/maruel/docitem/internal/jsonldb"
	"github.com/maruel/ksid"
)

var (
	// ErrNotFound is returned when no stored document matches a lookup.
	ErrNotFound = errors.New("document not found")

	errNoPrimaryKey   = errors.New("schema has no primary key")
	errNotSearchable  = errors.New("field cannot be searched")
	errSchemaMismatch = errors.New("document schema does not match collection")
	errSchemaConflict = errors.New("another schema with the same name is already open")
)

// record is the stored form of a document.
type record struct {
	ID       ksid.ID        `json:"id"`
	Data     map[string]any `json:"data"`
	Created  time.Time      `json:"created"`
	Modified time.Time      `json:"modified"`
}

func (r *record) Clone() *record {
	c := *r
	if r.Data != nil {
		c.Data = make(map[string]any, len(r.Data))
		for k, v := range r.Data {
			c.Data[k] = v
		}
	}
	return &c
}

func (r *record) GetID() ksid.ID {
	return r.ID
}

func (r *record) Validate() error {
	if r.ID.IsZero() {
		return errors.New("record ID is required")
	}
	return nil
}

// DB is a directory of collections.
type DB struct {
	dir string

	mu          sync.Mutex
	collections map[string]*Collection
}

// Open opens the database stored in dir, creating the directory if needed.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return &DB{dir: dir, collections: make(map[string]*Collection)}, nil
}

// Dir returns the database directory.
func (db *DB) Dir() string {
	return db.dir
}

// Collection opens the collection storing documents of schema s.
//
// Opening the same schema twice returns the same collection.
func (db *DB) Collection(s *Schema) (*Collection, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if c, ok := db.collections[s.name]; ok {
		if c.schema != s {
			return nil, fmt.Errorf("%w: %s", errSchemaConflict, s.name)
		}
		return c, nil
	}
	c, err := newCollection(filepath.Join(db.dir, FileName(s.name)), s)
	if err != nil {
		return nil, err
	}
	db.collections[s.name] = c
	return c, nil
}

// Files returns the paths of the open collection files relative to Dir, sorted.
func (db *DB) Files() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	files := make([]string, 0, len(db.collections))
	for name := range db.collections {
		files = append(files, FileName(name))
	}
	slices.Sort(files)
	return files
}

// FileName returns the name of the file storing the collection of the named
// schema, relative to the database directory.
func FileName(schema string) string {
	return schema + ".jsonl"
}

// Collection stores documents of a single schema.
type Collection struct {
	schema *Schema
	table  *jsonldb.Table[*record]
	byKey  *jsonldb.UniqueIndex[string, *record]

	// mu serializes Save's read-modify-write and guards byField.
	mu      sync.Mutex
	byField map[string]*jsonldb.Index[string, *record]
}

func newCollection(path string, s *Schema) (*Collection, error) {
	table, err := jsonldb.NewTable[*record](path, s.columns())
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", s.name, err)
	}
	c := &Collection{schema: s, table: table}
	if pk, ok := s.PrimaryKey(); ok {
		c.byKey = jsonldb.NewUniqueIndex(table, func(r *record) string {
			return pk.key(r.Data[pk.Name])
		})
	}
	return c, nil
}

// Schema returns the collection schema, or nil for a nil collection.
func (c *Collection) Schema() *Schema {
	if c == nil {
		return nil
	}
	return c.schema
}

// Path returns the backing file path.
func (c *Collection) Path() string {
	return c.table.Path()
}

// Len returns the number of stored documents.
func (c *Collection) Len() int {
	return c.table.Len()
}

// Save validates doc and stores it.
//
// The stored document is replaced when one has the same primary key, or the
// same ID for schemas without a primary key; otherwise a new document with a
// fresh ID is appended. It returns the stored document. Invalid documents are
// rejected with a *ValidationError.
func (c *Collection) Save(ctx context.Context, doc *Document) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc.schema != c.schema {
		return nil, fmt.Errorf("%w: %s into %s", errSchemaMismatch, doc.schema.name, c.schema.name)
	}
	if err := c.schema.Validate(doc, nil); err != nil {
		return nil, err
	}
	data := doc.storable()
	now := time.Now().UTC()

	c.mu.Lock()
	defer c.mu.Unlock()
	var existing *record
	if pk, ok := c.schema.PrimaryKey(); ok {
		existing = c.byKey.Get(pk.key(data[pk.Name]))
	}
	if existing == nil && !doc.id.IsZero() {
		existing = c.table.Get(doc.id)
	}

	if existing != nil {
		existing.Data = data
		existing.Modified = now
		if _, err := c.table.Update(existing); err != nil {
			return nil, fmt.Errorf("failed to update %s document: %w", c.schema.name, err)
		}
		return c.fromRecord(existing), nil
	}
	id := doc.id
	if id.IsZero() {
		id = ksid.NewID()
	}
	r := &record{ID: id, Data: data, Created: now, Modified: now}
	if err := c.table.Append(r); err != nil {
		return nil, fmt.Errorf("failed to insert %s document: %w", c.schema.name, err)
	}
	return c.fromRecord(r), nil
}

// Get returns the document with the given ID.
func (c *Collection) Get(ctx context.Context, id ksid.ID) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := c.table.Get(id)
	if r == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, c.schema.name, id)
	}
	return c.fromRecord(r), nil
}

// Lookup returns the document whose primary key equals key.
func (c *Collection) Lookup(ctx context.Context, key any) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pk, ok := c.schema.PrimaryKey()
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNoPrimaryKey, c.schema.name)
	}
	r := c.byKey.Get(pk.key(key))
	if r == nil {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, c.schema.name, key)
	}
	return c.fromRecord(r), nil
}

// Find returns the stored documents whose named field equals value, oldest
// first. Lists, dicts and untyped fields cannot be searched. The index backing
// a field is built on first use.
func (c *Collection) Find(ctx context.Context, field string, value any) ([]*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, ok := c.schema.Field(field)
	if !ok {
		return nil, fmt.Errorf("%w %q for schema %s", ErrUnknownField, field, c.schema.name)
	}
	if !f.Kind.comparable() && f.Kind != KindDateTime {
		return nil, fmt.Errorf("%w: %s.%s is of kind %q", errNotSearchable, c.schema.name, field, f.Kind)
	}
	var out []*Document
	for r := range c.index(&f).Iter(f.key(value)) {
		out = append(out, c.fromRecord(r))
	}
	return out, nil
}

func (c *Collection) index(f *Field) *jsonldb.Index[string, *record] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx, ok := c.byField[f.Name]; ok {
		return idx
	}
	if c.byField == nil {
		c.byField = make(map[string]*jsonldb.Index[string, *record])
	}
	name := f.Name
	key := f.key
	idx := jsonldb.NewIndex(c.table, func(r *record) string {
		return key(r.Data[name])
	})
	c.byField[name] = idx
	return idx
}

// All returns an iterator over all stored documents in insertion order.
func (c *Collection) All() iter.Seq[*Document] {
	return func(yield func(*Document) bool) {
		for r := range c.table.All() {
			if !yield(c.fromRecord(r)) {
				return
			}
		}
	}
}

// Delete removes the stored document with doc's ID.
func (c *Collection) Delete(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ok, err := c.table.Delete(doc.id)
	if err != nil {
		return fmt.Errorf("failed to delete %s document: %w", c.schema.name, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrNotFound, c.schema.name, doc.id)
	}
	return nil
}

// fromRecord rebuilds a document, dropping stored fields the schema no longer
// declares.
func (c *Collection) fromRecord(r *record) *Document {
	data := jsonldb.CoerceData(r.Data, c.table.Columns())
	for name := range data {
		if !c.schema.HasField(name) {
			delete(data, name)
		}
	}
	d := c.schema.newDocument(data)
	d.id = r.ID
	d.created = r.Created
	d.modified = r.Modified
	return d
}

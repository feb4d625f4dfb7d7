package jsonldb

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/maruel/ksid"
)

var (
	errRowIDRequired = errors.New("row ID is required")
	errDuplicateID   = errors.New("duplicate row ID")
)

// Cloner is implemented by types that can clone themselves.
type Cloner[T any] interface {
	Clone() T
}

// Row is the constraint for types stored in a [Table].
type Row[T any] interface {
	Cloner[T]
	GetID() ksid.ID
	Validate() error
}

// TableObserver is notified of every mutation of a [Table].
//
// Callbacks run while the table write lock is held; they must not call back
// into the table.
type TableObserver[T any] interface {
	OnAppend(row T)
	OnUpdate(prev, curr T)
	OnDelete(row T)
}

// Table handles storage and in-memory caching for a single table in JSONL format.
type Table[T Row[T]] struct {
	path   string
	header schemaHeader

	mu        sync.RWMutex
	rows      []T
	byID      map[ksid.ID]int
	observers []TableObserver[T]
}

// NewTable creates a new Table and loads all data from the file.
//
// columns is written as the schema header when the file is created or
// rewritten.
func NewTable[T Row[T]](path string, columns []Column) (*Table[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	table := &Table[T]{
		path:   path,
		header: schemaHeader{Version: currentVersion, Columns: columns},
		byID:   make(map[ksid.ID]int),
	}
	if err := table.header.Validate(); err != nil {
		return nil, fmt.Errorf("invalid columns for %s: %w", path, err)
	}
	if err := table.load(); err != nil {
		return nil, err
	}
	return table, nil
}

func (t *Table[T]) load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.rows = []T{}
			return nil
		}
		return fmt.Errorf("failed to open table file %s: %w", t.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var rows []T
	sawHeader := false
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !sawHeader {
			var h schemaHeader
			if err := json.Unmarshal(line, &h); err != nil {
				return fmt.Errorf("failed to unmarshal schema header in %s: %w", t.path, err)
			}
			if err := h.Validate(); err != nil {
				return fmt.Errorf("invalid schema header in %s: %w", t.path, err)
			}
			sawHeader = true
			continue
		}
		// Numbers stay json.Number so integers above 2^53 survive.
		var row T
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		if err := dec.Decode(&row); err != nil {
			return fmt.Errorf("failed to unmarshal row in %s: %w", t.path, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read table file %s: %w", t.path, err)
	}
	if rows == nil {
		rows = []T{}
	}
	t.rows = rows
	t.reindex()
	return nil
}

// reindex rebuilds the ID lookup. Must be called with the write lock held.
func (t *Table[T]) reindex() {
	clear(t.byID)
	for i, row := range t.rows {
		t.byID[row.GetID()] = i
	}
}

// Columns returns the table columns.
func (t *Table[T]) Columns() []Column {
	return append([]Column(nil), t.header.Columns...)
}

// Path returns the path of the backing file.
func (t *Table[T]) Path() string {
	return t.path
}

// Len returns the number of rows.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Get returns a clone of the row with the given ID, or the zero value if not found.
func (t *Table[T]) Get(id ksid.ID) T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.byID[id]
	if !ok {
		var zero T
		return zero
	}
	return t.rows[i].Clone()
}

// All returns an iterator over clones of all rows.
func (t *Table[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for _, row := range t.rows {
			if !yield(row.Clone()) {
				return
			}
		}
	}
}

// AddObserver registers o and replays every existing row through OnAppend.
func (t *Table[T]) AddObserver(o TableObserver[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, row := range t.rows {
		o.OnAppend(row.Clone())
	}
	t.observers = append(t.observers, o)
}

// Append validates row, adds it to the table and persists it.
func (t *Table[T]) Append(row T) error {
	if err := row.Validate(); err != nil {
		return fmt.Errorf("invalid row: %w", err)
	}
	id := row.GetID()
	if id.IsZero() {
		return errRowIDRequired
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[id]; ok {
		return fmt.Errorf("%w: %s", errDuplicateID, id)
	}

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G302: data files are not secret
	if err != nil {
		return fmt.Errorf("failed to open table file for append: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat table file: %w", err)
	}
	if st.Size() == 0 {
		h, err := json.Marshal(&t.header)
		if err != nil {
			return fmt.Errorf("failed to marshal schema header: %w", err)
		}
		if _, err := f.Write(append(h, '\n')); err != nil {
			return fmt.Errorf("failed to write schema header: %w", err)
		}
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}

	stored := row.Clone()
	t.rows = append(t.rows, stored)
	t.byID[id] = len(t.rows) - 1
	for _, o := range t.observers {
		o.OnAppend(stored.Clone())
	}
	return nil
}

// Update replaces the row with the same ID and persists the table.
//
// It returns the previous row, or the zero value if no row has that ID, in
// which case nothing is written.
func (t *Table[T]) Update(row T) (T, error) {
	var zero T
	if err := row.Validate(); err != nil {
		return zero, fmt.Errorf("invalid row: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.byID[row.GetID()]
	if !ok {
		return zero, nil
	}
	prev := t.rows[i]
	next := make([]T, len(t.rows))
	copy(next, t.rows)
	next[i] = row.Clone()
	if err := t.rewrite(next); err != nil {
		return zero, err
	}
	t.rows = next
	for _, o := range t.observers {
		o.OnUpdate(prev.Clone(), next[i].Clone())
	}
	return prev, nil
}

// Delete removes the row with the given ID and persists the table.
//
// It returns false if no row has that ID.
func (t *Table[T]) Delete(id ksid.ID) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.byID[id]
	if !ok {
		return false, nil
	}
	prev := t.rows[i]
	next := make([]T, 0, len(t.rows)-1)
	next = append(next, t.rows[:i]...)
	next = append(next, t.rows[i+1:]...)
	if err := t.rewrite(next); err != nil {
		return false, err
	}
	t.rows = next
	t.reindex()
	for _, o := range t.observers {
		o.OnDelete(prev.Clone())
	}
	return true, nil
}

// rewrite atomically replaces the file content with the header and rows.
func (t *Table[T]) rewrite(rows []T) error {
	tmp := t.path + ".tmp"
	f, err := os.Create(tmp) //nolint:gosec // G304: path is controlled by the caller
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}()

	writer := bufio.NewWriter(f)
	h, err := json.Marshal(&t.header)
	if err != nil {
		return fmt.Errorf("failed to marshal schema header: %w", err)
	}
	if _, err := writer.Write(append(h, '\n')); err != nil {
		return fmt.Errorf("failed to write schema header: %w", err)
	}
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal row: %w", err)
		}
		if _, err := writer.Write(data); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close table file: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("failed to replace table file: %w", err)
	}
	return nil
}

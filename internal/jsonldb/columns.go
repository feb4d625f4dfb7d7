// Handles schema header definition and column types.

package jsonldb

import (
	"errors"
	"fmt"
)

var errSchemaVersionRequired = errors.New("schema version is required")

// currentVersion is the current version of the JSONL table format.
const currentVersion = "1.0"

// ColumnType represents the type of a table column.
type ColumnType string

const (
	// ColumnTypeText stores text values.
	ColumnTypeText ColumnType = "text"
	// ColumnTypeInteger stores whole numbers.
	ColumnTypeInteger ColumnType = "integer"
	// ColumnTypeReal stores floating point numbers.
	ColumnTypeReal ColumnType = "real"
	// ColumnTypeBool stores booleans as JSON true/false.
	ColumnTypeBool ColumnType = "bool"
	// ColumnTypeDate stores RFC3339 timestamps.
	ColumnTypeDate ColumnType = "date"
	// ColumnTypeJSONB stores arbitrary JSON (arrays, objects).
	ColumnTypeJSONB ColumnType = "jsonb"
)

// Column represents a table column in storage.
type Column struct {
	Name        string     `json:"name"`
	Type        ColumnType `json:"type"`
	Required    bool       `json:"required,omitempty"`
	PrimaryKey  bool       `json:"primary_key,omitempty"`
	Description string     `json:"description,omitempty"`
}

// schemaHeader is the first row of a JSONL data file containing schema and metadata.
type schemaHeader struct {
	Version string   `json:"version"`
	Columns []Column `json:"columns"`
}

// Validate checks that the schema header is well-formed.
func (h *schemaHeader) Validate() error {
	if h.Version == "" {
		return errSchemaVersionRequired
	}
	for i, col := range h.Columns {
		if col.Name == "" {
			return fmt.Errorf("column %d: name is required", i)
		}
		if col.Type == "" {
			return fmt.Errorf("column %d: type is required", i)
		}
	}
	return nil
}

package item

import (
	"maps"

	"github.com/maruel/docitem/internal/document"
)

// Field describes one field an item class accepts.
type Field struct {
	Name string
	// Required, PrimaryKey and Default mirror the schema field the descriptor
	// was derived from. They are informational: validation is always done by
	// the document schema.
	Required   bool
	PrimaryKey bool
	Default    any
	// Meta holds arbitrary metadata, e.g. for serializers in the pipeline.
	Meta map[string]any

	doc *document.Field
}

// FromSchema reports whether the descriptor was derived from the document
// schema rather than declared on a class.
func (f Field) FromSchema() bool {
	return f.doc != nil
}

// Document returns the schema field the descriptor was derived from.
func (f Field) Document() (document.Field, bool) {
	if f.doc == nil {
		return document.Field{}, false
	}
	return *f.doc, true
}

func (f Field) clone() Field {
	f.Meta = maps.Clone(f.Meta)
	return f
}

package item

import (
	"github.com/maruel/docitem/internal/document"
)

// reflectSchema returns one descriptor per schema field, in declared order.
//
// The store-assigned document ID is not a schema field and is never returned.
func reflectSchema(s *document.Schema) ([]Field, error) {
	if s == nil {
		return nil, ErrNoSchema
	}
	dfs := s.Fields()
	fields := make([]Field, len(dfs))
	for i := range dfs {
		df := dfs[i]
		meta := map[string]any{"kind": string(df.Kind)}
		if df.Description != "" {
			meta["description"] = df.Description
		}
		fields[i] = Field{
			Name:       df.Name,
			Required:   df.Required,
			PrimaryKey: df.PrimaryKey,
			Default:    df.Default,
			Meta:       meta,
			doc:        &df,
		}
	}
	return fields, nil
}

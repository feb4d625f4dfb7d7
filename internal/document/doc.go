// Package document implements a small document-modeling layer: schemas made of
// typed, constrained fields, documents holding values for a schema, per-field
// validation, and JSONL-backed collections that persist documents.
//
// Schemas are declared in Go with [NewSchema], reflected from a struct with
// [SchemaFor], or loaded from YAML with [ParseSchemas]. A [DB] opens one
// [Collection] per schema in a directory; [Collection.Save] validates and
// upserts a [Document], keyed by its primary key field when the schema
// declares one and by a store-assigned ID otherwise.
package document

// Package jsonldb provides a generic, concurrent-safe, JSONL-backed data store.
//
// # Overview
//
// The package centers around [Table], a generic container that stores rows in a
// JSONL (JSON Lines) file with full in-memory caching for fast reads. Tables are
// safe for concurrent use by multiple goroutines.
//
// # Secondary Indexes
//
// [UniqueIndex] and [Index] provide O(1) lookups by arbitrary keys, staying
// synchronized with table mutations via [TableObserver].
//
// # File Format
//
// JSONL files with line 1 as schema header, subsequent lines as JSON rows.
// Appends write a single line; updates and deletes rewrite the file through a
// temporary file and a rename.
//
// # Type Coercion
//
// Rows are decoded with json.Number so no integer precision is lost, but the
// Go types of untyped values are. [CoerceData] restores them using
// SQLite-style column affinity.
package jsonldb

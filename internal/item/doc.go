// Package item bridges document schemas and scraped records.
//
// A Class projects the fields of a document schema onto a dynamic,
// dictionary-like Item. Classes can be extended to add or redefine fields.
// Items track which fields were populated, validate them against the
// document schema and save them as documents, optionally persisting them
// through the class model.
//
//	people := item.MustDefine("PersonItem", collection)
//	it, _ := people.New(map[string]any{"name": "John"})
//	_ = it.Set("age", 22)
//	if it.IsValid() {
//		doc, err := it.Save(ctx, true)
//	}
//
// Classes are immutable once defined and safe for concurrent use. Items are
// not.
package item

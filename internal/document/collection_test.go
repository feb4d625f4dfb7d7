package document

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func openDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func TestCollectionSave(t *testing.T) {
	ctx := t.Context()
	s := MustSchemaFor[Person]()

	t.Run("insert then update by ID", func(t *testing.T) {
		db := openDB(t)
		c, err := db.Collection(s)
		if err != nil {
			t.Fatal(err)
		}
		d, _ := s.NewDocument(map[string]any{"name": "John", "age": 22})
		saved, err := c.Save(ctx, d)
		if err != nil {
			t.Fatal(err)
		}
		if saved.ID().IsZero() {
			t.Fatal("saved document has no ID")
		}
		if saved.Created().IsZero() || saved.Modified().IsZero() {
			t.Error("timestamps not set")
		}
		if err := saved.Set("age", 23); err != nil {
			t.Fatal(err)
		}
		again, err := c.Save(ctx, saved)
		if err != nil {
			t.Fatal(err)
		}
		if again.ID() != saved.ID() {
			t.Errorf("ID changed from %s to %s", saved.ID(), again.ID())
		}
		if c.Len() != 1 {
			t.Errorf("Len() = %d, want 1", c.Len())
		}
		got, err := c.Get(ctx, saved.ID())
		if err != nil {
			t.Fatal(err)
		}
		if got.Get("age") != int64(23) {
			t.Errorf("age = %#v, want 23", got.Get("age"))
		}
	})

	t.Run("invalid", func(t *testing.T) {
		c, _ := openDB(t).Collection(s)
		d, _ := s.NewDocument(map[string]any{"name": "John"})
		if _, err := c.Save(ctx, d); !errors.Is(err, ErrValidation) {
			t.Errorf("Save() = %v, want %v", err, ErrValidation)
		}
		if c.Len() != 0 {
			t.Errorf("Len() = %d, want 0", c.Len())
		}
	})

	t.Run("schema mismatch", func(t *testing.T) {
		c, _ := openDB(t).Collection(s)
		d, _ := MustSchemaFor[IdentifiedPerson]().NewDocument(map[string]any{"identifier": "x", "age": 1})
		if _, err := c.Save(ctx, d); !errors.Is(err, errSchemaMismatch) {
			t.Errorf("Save() = %v, want %v", err, errSchemaMismatch)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		c, _ := openDB(t).Collection(s)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		d, _ := s.NewDocument(map[string]any{"age": 1})
		if _, err := c.Save(cctx, d); !errors.Is(err, context.Canceled) {
			t.Errorf("Save() = %v, want %v", err, context.Canceled)
		}
	})
}

func TestCollectionPrimaryKey(t *testing.T) {
	ctx := t.Context()
	s := MustSchemaFor[IdentifiedPerson]()
	c, err := openDB(t).Collection(s)
	if err != nil {
		t.Fatal(err)
	}
	for _, age := range []int{30, 31} {
		d, _ := s.NewDocument(map[string]any{"identifier": "abc", "age": age})
		if _, err := c.Save(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
	got, err := c.Lookup(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if got.Get("age") != int64(31) || got.PrimaryKey() != "abc" {
		t.Errorf("Lookup() = %v", got.Values())
	}
	if _, err := c.Lookup(ctx, "zzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(missing) = %v, want %v", err, ErrNotFound)
	}

	t.Run("no primary key", func(t *testing.T) {
		c, _ := openDB(t).Collection(MustSchemaFor[Person]())
		if _, err := c.Lookup(ctx, "abc"); !errors.Is(err, errNoPrimaryKey) {
			t.Errorf("Lookup() = %v, want %v", err, errNoPrimaryKey)
		}
	})
}

func TestCollectionReload(t *testing.T) {
	ctx := t.Context()
	dir := t.TempDir()
	s := MustSchema("Event",
		Field{Name: "title", Kind: KindString, Required: true},
		Field{Name: "at", Kind: KindDateTime},
		Field{Name: "score", Kind: KindFloat},
		Field{Name: "count", Kind: KindInt},
		Field{Name: "labels", Kind: KindList},
	)
	when := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	db, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := db.Collection(s)
	d, _ := s.NewDocument(map[string]any{"title": "launch", "at": when, "score": 1.5, "count": 4, "labels": []string{"a"}})
	saved, err := c.Save(ctx, d)
	if err != nil {
		t.Fatal(err)
	}

	db2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := db2.Collection(s)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c2.Get(ctx, saved.ID())
	if err != nil {
		t.Fatal(err)
	}
	if got.Get("title") != "launch" {
		t.Errorf("title = %#v", got.Get("title"))
	}
	if at, ok := got.Get("at").(time.Time); !ok || !at.Equal(when) {
		t.Errorf("at = %#v, want %v", got.Get("at"), when)
	}
	if got.Get("score") != 1.5 {
		t.Errorf("score = %#v", got.Get("score"))
	}
	if got.Get("count") != int64(4) {
		t.Errorf("count = %#v", got.Get("count"))
	}
	if n := len(slices.Collect(c2.All())); n != 1 {
		t.Errorf("All() yielded %d documents, want 1", n)
	}

	if err := c2.Delete(ctx, got); err != nil {
		t.Fatal(err)
	}
	if _, err := c2.Get(ctx, saved.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(deleted) = %v, want %v", err, ErrNotFound)
	}
	if err := c2.Delete(ctx, got); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(deleted) = %v, want %v", err, ErrNotFound)
	}
}

func TestCollectionReload_LargeInt(t *testing.T) {
	ctx := t.Context()
	dir := t.TempDir()
	s := MustSchema("Big",
		Field{Name: "key", Kind: KindInt, PrimaryKey: true},
		Field{Name: "n", Kind: KindInt},
		Field{Name: "extra", Kind: KindDict},
	)
	const big = int64(1<<53 + 1)

	db, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := db.Collection(s)
	d, _ := s.NewDocument(map[string]any{"key": big, "n": big, "extra": map[string]any{"v": big}})
	if _, err := c.Save(ctx, d); err != nil {
		t.Fatal(err)
	}

	db2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := db2.Collection(s)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c2.Lookup(ctx, big)
	if err != nil {
		t.Fatalf("Lookup() after reopen = %v", err)
	}
	if got.Get("key") != big || got.Get("n") != big {
		t.Errorf("reloaded key = %#v, n = %#v, want %d", got.Get("key"), got.Get("n"), big)
	}
	if extra, ok := got.Get("extra").(map[string]any); !ok || extra["v"] != big {
		t.Errorf("reloaded extra = %#v, want map[v:%d]", got.Get("extra"), big)
	}

	d2, _ := s.NewDocument(map[string]any{"key": big, "n": 1})
	if _, err := c2.Save(ctx, d2); err != nil {
		t.Fatal(err)
	}
	if c2.Len() != 1 {
		t.Errorf("Len() after upsert = %d, want 1", c2.Len())
	}
}

func TestCollectionFind(t *testing.T) {
	ctx := t.Context()
	dir := t.TempDir()
	s := MustSchema("Visit",
		Field{Name: "who", Kind: KindString},
		Field{Name: "age", Kind: KindInt},
		Field{Name: "at", Kind: KindDateTime},
		Field{Name: "tags", Kind: KindList},
	)
	when := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	db, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := db.Collection(s)
	var saved []*Document
	for _, v := range []map[string]any{
		{"who": "John", "age": 22, "at": when},
		{"who": "Jane", "age": 22},
		{"who": "Bob", "age": 30, "at": when},
	} {
		d, _ := s.NewDocument(v)
		sd, err := c.Save(ctx, d)
		if err != nil {
			t.Fatal(err)
		}
		saved = append(saved, sd)
	}
	who := func(docs []*Document) []string {
		var out []string
		for _, d := range docs {
			out = append(out, d.Get("who").(string))
		}
		return out
	}

	tests := []struct {
		name  string
		field string
		value any
		want  []string
	}{
		{"int", "age", 22, []string{"John", "Jane"}},
		{"whole float matches int", "age", 22.0, []string{"John", "Jane"}},
		{"string", "who", "Bob", []string{"Bob"}},
		{"datetime in another zone", "at", when.In(time.FixedZone("X", 3600)), []string{"John", "Bob"}},
		{"no match", "age", 99, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Find(ctx, tt.field, tt.value)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(who(got), tt.want) {
				t.Errorf("Find(%s, %v) = %v, want %v", tt.field, tt.value, who(got), tt.want)
			}
		})
	}

	t.Run("follows updates", func(t *testing.T) {
		jane := saved[1]
		if err := jane.Set("age", 23); err != nil {
			t.Fatal(err)
		}
		if _, err := c.Save(ctx, jane); err != nil {
			t.Fatal(err)
		}
		got, _ := c.Find(ctx, "age", 22)
		if !slices.Equal(who(got), []string{"John"}) {
			t.Errorf("Find(age, 22) = %v, want [John]", who(got))
		}
	})
	t.Run("after reopen", func(t *testing.T) {
		db2, err := Open(dir)
		if err != nil {
			t.Fatal(err)
		}
		c2, _ := db2.Collection(s)
		got, err := c2.Find(ctx, "age", 30)
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(who(got), []string{"Bob"}) {
			t.Errorf("Find(age, 30) = %v, want [Bob]", who(got))
		}
	})
	t.Run("errors", func(t *testing.T) {
		if _, err := c.Find(ctx, "nope", 1); !errors.Is(err, ErrUnknownField) {
			t.Errorf("Find(unknown) = %v, want %v", err, ErrUnknownField)
		}
		if _, err := c.Find(ctx, "tags", "a"); !errors.Is(err, errNotSearchable) {
			t.Errorf("Find(list) = %v, want %v", err, errNotSearchable)
		}
	})
}

func TestDBCollection(t *testing.T) {
	db := openDB(t)
	s := MustSchemaFor[Person]()
	a, err := db.Collection(s)
	if err != nil {
		t.Fatal(err)
	}
	b, err := db.Collection(s)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("Collection() returned a different collection for the same schema")
	}
	if _, err := db.Collection(MustSchemaFor[Person]()); !errors.Is(err, errSchemaConflict) {
		t.Errorf("Collection(other Person) = %v, want %v", err, errSchemaConflict)
	}
	if _, err := db.Collection(MustSchemaFor[IdentifiedPerson]()); err != nil {
		t.Fatal(err)
	}
	if got := db.Files(); !slices.Equal(got, []string{"IdentifiedPerson.jsonl", "Person.jsonl"}) {
		t.Errorf("Files() = %v", got)
	}
}

package jsonldb

import (
	"slices"
	"testing"
)

func TestUniqueIndex(t *testing.T) {
	table, _ := setupTable(t)
	alice := mustAppend(t, table, "alice")

	// Existing rows are indexed on creation.
	idx := NewUniqueIndex(table, func(r *testRow) string { return r.Name })
	if got := idx.Get("alice"); got == nil || got.ID != alice.ID {
		t.Fatalf("Get(alice) = %+v", got)
	}

	bob := mustAppend(t, table, "bob")
	if got := idx.Get("bob"); got == nil || got.ID != bob.ID {
		t.Fatalf("Get(bob) = %+v", got)
	}

	if _, err := table.Update(&testRow{ID: bob.ID, Name: "robert"}); err != nil {
		t.Fatal(err)
	}
	if got := idx.Get("bob"); got != nil {
		t.Errorf("Get(bob) after rename = %+v, want nil", got)
	}
	if got := idx.Get("robert"); got == nil || got.ID != bob.ID {
		t.Errorf("Get(robert) = %+v", got)
	}

	if _, err := table.Delete(alice.ID); err != nil {
		t.Fatal(err)
	}
	if got := idx.Get("alice"); got != nil {
		t.Errorf("Get(alice) after delete = %+v, want nil", got)
	}
	if got := idx.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestIndex(t *testing.T) {
	table, _ := setupTable(t)
	idx := NewIndex(table, func(r *testRow) int { return len(r.Name) })

	mustAppend(t, table, "ab")
	cd := mustAppend(t, table, "cd")
	mustAppend(t, table, "xyz")

	if got := idx.Count(2); got != 2 {
		t.Errorf("Count(2) = %d, want 2", got)
	}
	var names []string
	for row := range idx.Iter(2) {
		names = append(names, row.Name)
	}
	if !slices.Equal(names, []string{"ab", "cd"}) {
		t.Errorf("Iter(2) = %v, want [ab cd]", names)
	}
	n := 0
	for row := range idx.Iter(3) {
		if row.Name != "xyz" {
			t.Errorf("Iter(3) yielded %q", row.Name)
		}
		n++
	}
	if n != 1 {
		t.Errorf("Iter(3) yielded %d rows, want 1", n)
	}

	if _, err := table.Update(&testRow{ID: cd.ID, Name: "cdef"}); err != nil {
		t.Fatal(err)
	}
	if got := idx.Count(2); got != 1 {
		t.Errorf("Count(2) after update = %d, want 1", got)
	}
	if got := idx.Count(4); got != 1 {
		t.Errorf("Count(4) after update = %d, want 1", got)
	}
	if _, err := table.Delete(cd.ID); err != nil {
		t.Fatal(err)
	}
	if got := idx.Count(4); got != 0 {
		t.Errorf("Count(4) after delete = %d, want 0", got)
	}
}

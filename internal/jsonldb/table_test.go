package jsonldb

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/maruel/ksid"
)

// testRow is a simple row type for testing.
type testRow struct {
	ID   ksid.ID `json:"id"`
	Name string  `json:"name"`

	failValidate bool
}

func (r *testRow) Clone() *testRow {
	c := *r
	return &c
}

func (r *testRow) GetID() ksid.ID {
	return r.ID
}

func (r *testRow) Validate() error {
	if r.failValidate {
		return errors.New("validation failed")
	}
	return nil
}

var testColumns = []Column{
	{Name: "id", Type: ColumnTypeText, PrimaryKey: true},
	{Name: "name", Type: ColumnTypeText},
}

// setupTable creates a table in the test's temp directory.
func setupTable(t *testing.T) (*Table[*testRow], string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.jsonl")
	table, err := NewTable[*testRow](path, testColumns)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return table, path
}

func mustAppend(t *testing.T, table *Table[*testRow], name string) *testRow {
	t.Helper()
	row := &testRow{ID: ksid.NewID(), Name: name}
	if err := table.Append(row); err != nil {
		t.Fatalf("Append(%q) failed: %v", name, err)
	}
	return row
}

func TestTable(t *testing.T) {
	t.Run("Append", func(t *testing.T) {
		t.Run("valid", func(t *testing.T) {
			table, path := setupTable(t)
			mustAppend(t, table, "One")
			mustAppend(t, table, "Two")
			if got := table.Len(); got != 2 {
				t.Errorf("Len() = %d, want 2", got)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) != 3 {
				t.Fatalf("file has %d lines, want 3 (header + 2 rows)", len(lines))
			}
			if !strings.Contains(lines[0], `"version":"1.0"`) {
				t.Errorf("header = %s, want version 1.0", lines[0])
			}
		})
		t.Run("errors", func(t *testing.T) {
			table, _ := setupTable(t)
			if err := table.Append(&testRow{Name: "no id"}); !errors.Is(err, errRowIDRequired) {
				t.Errorf("Append(zero ID) = %v, want %v", err, errRowIDRequired)
			}
			if err := table.Append(&testRow{ID: ksid.NewID(), failValidate: true}); err == nil {
				t.Error("Append(invalid) expected error")
			}
			row := mustAppend(t, table, "One")
			if err := table.Append(row); !errors.Is(err, errDuplicateID) {
				t.Errorf("Append(duplicate) = %v, want %v", err, errDuplicateID)
			}
			if got := table.Len(); got != 1 {
				t.Errorf("Len() = %d, want 1", got)
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		table, _ := setupTable(t)
		var zeroID ksid.ID
		ten := mustAppend(t, table, "Ten")
		twenty := mustAppend(t, table, "Twenty")

		tests := []struct {
			name string
			id   ksid.ID
			want string
		}{
			{"existing ID", ten.ID, "Ten"},
			{"existing ID 2", twenty.ID, "Twenty"},
			{"non-existing ID", ksid.NewID(), ""},
			{"zero ID", zeroID, ""},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got := table.Get(tt.id)
				if tt.want == "" {
					if got != nil {
						t.Errorf("Get(%s) = %+v, want nil", tt.id, got)
					}
					return
				}
				if got == nil || got.Name != tt.want {
					t.Errorf("Get(%s) = %+v, want %s", tt.id, got, tt.want)
				}
			})
		}
	})

	t.Run("All", func(t *testing.T) {
		table, _ := setupTable(t)
		mustAppend(t, table, "a")
		mustAppend(t, table, "b")
		mustAppend(t, table, "c")
		var names []string
		for row := range table.All() {
			names = append(names, row.Name)
		}
		if !slices.Equal(names, []string{"a", "b", "c"}) {
			t.Errorf("All() = %v", names)
		}
	})

	t.Run("Update", func(t *testing.T) {
		table, path := setupTable(t)
		row := mustAppend(t, table, "Original")

		prev, err := table.Update(&testRow{ID: row.ID, Name: "Updated"})
		if err != nil {
			t.Fatalf("Update error: %v", err)
		}
		if prev == nil || prev.Name != "Original" {
			t.Errorf("Update() prev = %+v, want Original", prev)
		}
		prev, err = table.Update(&testRow{ID: ksid.NewID(), Name: "New"})
		if err != nil || prev != nil {
			t.Errorf("Update(missing) = %+v, %v; want nil, nil", prev, err)
		}
		if _, err := table.Update(&testRow{ID: row.ID, failValidate: true}); err == nil {
			t.Error("Update(invalid) expected error")
		}

		table2, err := NewTable[*testRow](path, testColumns)
		if err != nil {
			t.Fatalf("NewTable error: %v", err)
		}
		if got := table2.Get(row.ID); got == nil || got.Name != "Updated" {
			t.Errorf("reloaded row = %+v, want Updated", got)
		}
		if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
			t.Errorf("temporary file left behind: %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		table, path := setupTable(t)
		one := mustAppend(t, table, "One")
		two := mustAppend(t, table, "Two")
		three := mustAppend(t, table, "Three")

		deleted, err := table.Delete(two.ID)
		if err != nil || !deleted {
			t.Fatalf("Delete() = %v, %v; want true, nil", deleted, err)
		}
		deleted, err = table.Delete(two.ID)
		if err != nil || deleted {
			t.Fatalf("Delete(again) = %v, %v; want false, nil", deleted, err)
		}
		if got := table.Get(three.ID); got == nil || got.Name != "Three" {
			t.Errorf("Get(three) after delete = %+v", got)
		}

		table2, err := NewTable[*testRow](path, testColumns)
		if err != nil {
			t.Fatalf("NewTable error: %v", err)
		}
		if table2.Len() != 2 || table2.Get(one.ID) == nil || table2.Get(two.ID) != nil {
			t.Errorf("reloaded table has wrong rows")
		}
	})

	t.Run("NewTable", func(t *testing.T) {
		t.Run("unreadable file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "not-a-file")
			if err := os.Mkdir(path, 0o755); err != nil {
				t.Fatal(err)
			}
			if _, err := NewTable[*testRow](path, testColumns); err == nil {
				t.Error("NewTable() expected error for directory, got nil")
			}
		})
		t.Run("invalid schema header", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.jsonl")
			if err := os.WriteFile(path, []byte(`{"columns":[]}`+"\n"), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := NewTable[*testRow](path, testColumns); !errors.Is(err, errSchemaVersionRequired) {
				t.Errorf("NewTable() = %v, want %v", err, errSchemaVersionRequired)
			}
		})
		t.Run("invalid columns", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "t.jsonl")
			if _, err := NewTable[*testRow](path, []Column{{Name: "x"}}); err == nil {
				t.Error("NewTable() expected error for column without type")
			}
		})
		t.Run("corrupt row", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.jsonl")
			data := `{"version":"1.0","columns":[]}` + "\n" + `{not json` + "\n"
			if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := NewTable[*testRow](path, testColumns); err == nil {
				t.Error("NewTable() expected error for corrupt row")
			}
		})
	})
}

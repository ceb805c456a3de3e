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

type testRow struct {
	ID   ksid.ID  `json:"id" jsonschema:"description=Row identifier"`
	Name string   `json:"name"`
	Tags []string `json:"tags,omitempty"`
}

func (r *testRow) Clone() *testRow {
	c := *r
	c.Tags = slices.Clone(r.Tags)
	return &c
}

func (r *testRow) GetID() ksid.ID {
	return r.ID
}

func (r *testRow) Validate() error {
	if r.ID.IsZero() {
		return errors.New("id is required")
	}
	if r.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func setupTable(t *testing.T) (*Table[*testRow], string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.jsonl")
	table, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return table, path
}

func reopen(t *testing.T, path string) *Table[*testRow] {
	t.Helper()
	table, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatalf("NewTable(reopen) failed: %v", err)
	}
	return table
}

func names(table *Table[*testRow]) []string {
	var out []string
	for r := range table.All() {
		out = append(out, r.Name)
	}
	return out
}

func TestTable(t *testing.T) {
	t.Run("new file has header only", func(t *testing.T) {
		table, path := setupTable(t)
		if table.Len() != 0 {
			t.Errorf("Len() = %d, want 0", table.Len())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 1 {
			t.Fatalf("got %d lines, want 1", len(lines))
		}
		if !strings.Contains(lines[0], `"version":"1.0"`) || !strings.Contains(lines[0], `"description":"Row identifier"`) {
			t.Errorf("unexpected header %s", lines[0])
		}
	})

	t.Run("append and reload", func(t *testing.T) {
		table, path := setupTable(t)
		for _, n := range []string{"a", "b", "c"} {
			if err := table.Append(&testRow{ID: ksid.NewID(), Name: n}); err != nil {
				t.Fatalf("Append(%s): %v", n, err)
			}
		}
		if got := names(reopen(t, path)); !slices.Equal(got, []string{"a", "b", "c"}) {
			t.Errorf("reloaded rows = %v", got)
		}
	})

	t.Run("append rejects invalid and duplicate rows", func(t *testing.T) {
		table, _ := setupTable(t)
		if err := table.Append(&testRow{ID: ksid.NewID()}); err == nil {
			t.Error("expected validation error")
		}
		row := &testRow{ID: ksid.NewID(), Name: "x"}
		if err := table.Append(row); err != nil {
			t.Fatal(err)
		}
		if err := table.Append(row); !errors.Is(err, ErrDuplicateID) {
			t.Errorf("got %v, want ErrDuplicateID", err)
		}
		if table.Len() != 1 {
			t.Errorf("Len() = %d, want 1", table.Len())
		}
	})

	t.Run("get returns clones", func(t *testing.T) {
		table, _ := setupTable(t)
		id := ksid.NewID()
		if err := table.Append(&testRow{ID: id, Name: "orig", Tags: []string{"t"}}); err != nil {
			t.Fatal(err)
		}
		got := table.Get(id)
		got.Name = "mutated"
		got.Tags[0] = "mutated"
		again := table.Get(id)
		if again.Name != "orig" || again.Tags[0] != "t" {
			t.Errorf("stored row was mutated: %+v", again)
		}
		if table.Get(ksid.NewID()) != nil {
			t.Error("Get(unknown) must return nil")
		}
	})

	t.Run("update", func(t *testing.T) {
		table, path := setupTable(t)
		id := ksid.NewID()
		if err := table.Append(&testRow{ID: id, Name: "before"}); err != nil {
			t.Fatal(err)
		}
		updated, err := table.Update(id, func(r *testRow) error {
			r.Name = "after"
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if updated.Name != "after" {
			t.Errorf("Name = %q", updated.Name)
		}
		if _, err := table.Update(id, func(r *testRow) error {
			r.Name = ""
			return nil
		}); err == nil {
			t.Error("expected validation error")
		}
		if _, err := table.Update(ksid.NewID(), func(*testRow) error { return nil }); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
		if got := reopen(t, path).Get(id); got == nil || got.Name != "after" {
			t.Errorf("reloaded row = %+v", got)
		}
	})

	t.Run("delete", func(t *testing.T) {
		table, path := setupTable(t)
		ids := []ksid.ID{ksid.NewID(), ksid.NewID(), ksid.NewID()}
		for i, id := range ids {
			if err := table.Append(&testRow{ID: id, Name: string(rune('a' + i))}); err != nil {
				t.Fatal(err)
			}
		}
		removed, err := table.Delete(ids[1])
		if err != nil {
			t.Fatal(err)
		}
		if removed.Name != "b" {
			t.Errorf("removed %q", removed.Name)
		}
		if _, err := table.Delete(ids[1]); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
		if got := names(reopen(t, path)); !slices.Equal(got, []string{"a", "c"}) {
			t.Errorf("reloaded rows = %v", got)
		}
		if got := table.Get(ids[2]); got == nil || got.Name != "c" {
			t.Errorf("Get after delete = %+v", got)
		}
	})

	t.Run("delete func", func(t *testing.T) {
		table, _ := setupTable(t)
		for _, n := range []string{"keep", "drop", "drop", "keep"} {
			if err := table.Append(&testRow{ID: ksid.NewID(), Name: n}); err != nil {
				t.Fatal(err)
			}
		}
		n, err := table.DeleteFunc(func(r *testRow) bool { return r.Name == "drop" })
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 || table.Len() != 2 {
			t.Errorf("removed %d, left %d", n, table.Len())
		}
	})

	t.Run("replace sorts by id", func(t *testing.T) {
		table, path := setupTable(t)
		a, b := ksid.NewID(), ksid.NewID()
		if err := table.Replace([]*testRow{{ID: b, Name: "second"}, {ID: a, Name: "first"}}); err != nil {
			t.Fatal(err)
		}
		if got := names(reopen(t, path)); !slices.Equal(got, []string{"first", "second"}) {
			t.Errorf("rows = %v", got)
		}
	})

	t.Run("load sorts out of order rows", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "manual.jsonl")
		a, b := ksid.NewID(), ksid.NewID()
		content := `{"version":"1.0","columns":[{"name":"id","type":"text"}]}` + "\n" +
			`{"id":"` + b.String() + `","name":"late"}` + "\n\n" +
			`{"id":"` + a.String() + `","name":"early"}` + "\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		if got := names(reopen(t, path)); !slices.Equal(got, []string{"early", "late"}) {
			t.Errorf("rows = %v", got)
		}
	})

	t.Run("load rejects bad header", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.jsonl")
		if err := os.WriteFile(path, []byte(`{"columns":[]}`+"\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := NewTable[*testRow](path); !errors.Is(err, errSchemaVersionRequired) {
			t.Errorf("got %v, want errSchemaVersionRequired", err)
		}
	})

	t.Run("all stops early", func(t *testing.T) {
		table, _ := setupTable(t)
		for range 5 {
			if err := table.Append(&testRow{ID: ksid.NewID(), Name: "r"}); err != nil {
				t.Fatal(err)
			}
		}
		n := 0
		for range table.All() {
			n++
			if n == 2 {
				break
			}
		}
		if n != 2 {
			t.Errorf("iterated %d rows", n)
		}
	})
}

func TestSchemaFromType(t *testing.T) {
	cols, err := schemaFromType[*testRow]()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]columnType{"id": columnTypeText, "name": columnTypeText, "tags": columnTypeJSONB}
	if len(cols) != len(want) {
		t.Fatalf("got %d columns: %+v", len(cols), cols)
	}
	for _, c := range cols {
		if want[c.Name] != c.Type {
			t.Errorf("column %s: type %s, want %s", c.Name, c.Type, want[c.Name])
		}
	}
	if _, err := schemaFromType[int](); err == nil {
		t.Error("expected error for non-struct type")
	}
}

package jsonldb

import (
	"bufio"
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/maruel/ksid"
)

var (
	// ErrNotFound is returned when no row has the requested ID.
	ErrNotFound = errors.New("row not found")
	// ErrDuplicateID is returned when appending a row whose ID already exists.
	ErrDuplicateID = errors.New("duplicate row id")
	// ErrInvalidRow wraps the error returned by Row.Validate.
	ErrInvalidRow = errors.New("invalid row")
)

// Row is implemented by every type stored in a Table.
type Row[T any] interface {
	Clone() T
	GetID() ksid.ID
	Validate() error
}

// TableObserver is notified of every mutation, under the table write lock.
type TableObserver[T any] interface {
	OnAppend(row T)
	OnUpdate(prev, curr T)
	OnDelete(row T)
}

// Table handles storage and in-memory caching for a single table in JSONL format.
type Table[T Row[T]] struct {
	path   string
	header schemaHeader

	mu        sync.RWMutex
	rows      []T
	byID      map[ksid.ID]int
	observers []TableObserver[T]
}

// NewTable creates a new Table and loads all data from the file.
//
// A missing file is created with only the schema header.
func NewTable[T Row[T]](path string) (*Table[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: data directories are world readable
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	cols, err := schemaFromType[T]()
	if err != nil {
		return nil, fmt.Errorf("failed to derive schema for %s: %w", path, err)
	}
	table := &Table[T]{
		path:   path,
		header: schemaHeader{Version: currentVersion, Columns: cols},
		byID:   make(map[ksid.ID]int),
	}
	if err := table.load(); err != nil {
		return nil, err
	}
	return table, nil
}

func (t *Table[T]) load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.rows = []T{}
			return t.rewriteLocked()
		}
		return fmt.Errorf("failed to open table file %s: %w", t.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var rows []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64<<10), 16<<20)
	first := true
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if first {
			first = false
			var h schemaHeader
			if err := json.Unmarshal(line, &h); err != nil {
				return fmt.Errorf("failed to parse schema header in %s: %w", t.path, err)
			}
			if err := h.Validate(); err != nil {
				return fmt.Errorf("invalid schema header in %s: %w", t.path, err)
			}
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			return fmt.Errorf("failed to unmarshal row in %s: %w", t.path, err)
		}
		if err := row.Validate(); err != nil {
			return fmt.Errorf("invalid row %s in %s: %w", row.GetID(), t.path, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read table file %s: %w", t.path, err)
	}

	cmpID := func(a, b T) int { return cmp.Compare(a.GetID(), b.GetID()) }
	if !slices.IsSortedFunc(rows, cmpID) {
		slices.SortStableFunc(rows, cmpID)
	}
	t.rows = rows
	t.reindexLocked()
	if first {
		// Empty file: write the header so the next append lands after it.
		return t.rewriteLocked()
	}
	return nil
}

// AddObserver registers o and replays existing rows through OnAppend.
func (t *Table[T]) AddObserver(o TableObserver[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, row := range t.rows {
		o.OnAppend(row.Clone())
	}
	t.observers = append(t.observers, o)
}

// Len returns the number of rows.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Get returns a clone of the row with the given ID, or the zero value.
func (t *Table[T]) Get(id ksid.ID) T {
	row, _ := t.lookup(id)
	return row
}

func (t *Table[T]) lookup(id ksid.ID) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i, ok := t.byID[id]; ok {
		return t.rows[i].Clone(), true
	}
	var zero T
	return zero, false
}

// All returns an iterator over clones of all rows, ordered by ID.
func (t *Table[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for _, row := range t.rows {
			if !yield(row.Clone()) {
				return
			}
		}
	}
}

// Append validates row, adds it to the table and persists it.
func (t *Table[T]) Append(row T) error {
	if err := row.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRow, err)
	}
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[row.GetID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, row.GetID())
	}

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G302: data files are world readable
	if err != nil {
		return fmt.Errorf("failed to open table file for append: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}

	row = row.Clone()
	t.rows = append(t.rows, row)
	last := len(t.rows) - 1
	if last > 0 && cmp.Compare(t.rows[last-1].GetID(), row.GetID()) > 0 {
		// IDs generated on another clock; keep memory sorted.
		slices.SortStableFunc(t.rows, func(a, b T) int { return cmp.Compare(a.GetID(), b.GetID()) })
		t.reindexLocked()
	} else {
		t.byID[row.GetID()] = last
	}
	for _, o := range t.observers {
		o.OnAppend(row.Clone())
	}
	return nil
}

// Update applies fn to a clone of the row with the given ID and persists the
// result. The row is left untouched when fn or validation fails.
func (t *Table[T]) Update(id ksid.ID, fn func(row T) error) (T, error) {
	var zero T
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.byID[id]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	prev := t.rows[i]
	curr := prev.Clone()
	if err := fn(curr); err != nil {
		return zero, err
	}
	if curr.GetID() != id {
		return zero, fmt.Errorf("%w: id cannot change", ErrInvalidRow)
	}
	if err := curr.Validate(); err != nil {
		return zero, fmt.Errorf("%w: %w", ErrInvalidRow, err)
	}
	t.rows[i] = curr
	if err := t.rewriteLocked(); err != nil {
		t.rows[i] = prev
		return zero, err
	}
	for _, o := range t.observers {
		o.OnUpdate(prev.Clone(), curr.Clone())
	}
	return curr.Clone(), nil
}

// Delete removes the row with the given ID and returns it.
func (t *Table[T]) Delete(id ksid.ID) (T, error) {
	var zero T
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.byID[id]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	prev := t.rows
	removed := t.rows[i]
	t.rows = slices.Delete(slices.Clone(t.rows), i, i+1)
	if err := t.rewriteLocked(); err != nil {
		t.rows = prev
		return zero, err
	}
	t.reindexLocked()
	for _, o := range t.observers {
		o.OnDelete(removed.Clone())
	}
	return removed.Clone(), nil
}

// DeleteFunc removes every row for which match returns true and returns the
// number of rows removed.
func (t *Table[T]) DeleteFunc(match func(T) bool) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var removed []T
	kept := make([]T, 0, len(t.rows))
	for _, row := range t.rows {
		if match(row) {
			removed = append(removed, row)
		} else {
			kept = append(kept, row)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}
	prev := t.rows
	t.rows = kept
	if err := t.rewriteLocked(); err != nil {
		t.rows = prev
		return 0, err
	}
	t.reindexLocked()
	for _, row := range removed {
		for _, o := range t.observers {
			o.OnDelete(row.Clone())
		}
	}
	return len(removed), nil
}

// Replace replaces all rows with the provided slice and persists it.
//
// Observers are not notified; Replace is meant for bulk loads before indexes
// are attached.
func (t *Table[T]) Replace(rows []T) error {
	for _, row := range rows {
		if err := row.Validate(); err != nil {
			return fmt.Errorf("%w %s: %w", ErrInvalidRow, row.GetID(), err)
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.rows
	t.rows = slices.Clone(rows)
	slices.SortStableFunc(t.rows, func(a, b T) int { return cmp.Compare(a.GetID(), b.GetID()) })
	if err := t.rewriteLocked(); err != nil {
		t.rows = prev
		return err
	}
	t.reindexLocked()
	return nil
}

func (t *Table[T]) reindexLocked() {
	clear(t.byID)
	for i, row := range t.rows {
		t.byID[row.GetID()] = i
	}
}

// rewriteLocked persists the header and all rows through a temporary file.
func (t *Table[T]) rewriteLocked() error {
	tmp := t.path + ".tmp"
	f, err := os.Create(tmp) //nolint:gosec // G304: path derived from the data directory
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	writer := bufio.NewWriter(f)
	err = writeLine(writer, t.header)
	for i := 0; err == nil && i < len(t.rows); i++ {
		err = writeLine(writer, t.rows[i])
	}
	if err == nil {
		err = writer.Flush()
	}
	if err2 := f.Close(); err == nil {
		err = err2
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write table file %s: %w", t.path, err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("failed to replace table file %s: %w", t.path, err)
	}
	return nil
}

func writeLine(w *bufio.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

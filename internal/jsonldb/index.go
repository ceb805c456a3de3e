// Concurrent-safe, in-memory secondary indexes for tables.

package jsonldb

import (
	"sync"

	"github.com/maruel/ksid"
)

// UniqueIndex provides O(1) lookup by a unique secondary key.
//
// The index is built from existing table data when created and kept
// synchronized via the [TableObserver] interface.
type UniqueIndex[K comparable, T Row[T]] struct {
	table   *Table[T]
	keyFunc func(T) K
	mu      sync.Mutex
	byKey   map[K]ksid.ID
}

// NewUniqueIndex creates a unique index on the given table.
//
// If duplicates exist in the table, the last row with each key wins.
func NewUniqueIndex[K comparable, T Row[T]](table *Table[T], keyFunc func(T) K) *UniqueIndex[K, T] {
	idx := &UniqueIndex[K, T]{
		table:   table,
		keyFunc: keyFunc,
		byKey:   make(map[K]ksid.ID),
	}
	table.AddObserver(idx)
	return idx
}

// Get returns the row with the given key, or the zero value if not found.
func (idx *UniqueIndex[K, T]) Get(key K) T {
	idx.mu.Lock()
	id, ok := idx.byKey[key]
	idx.mu.Unlock()
	if !ok {
		var zero T
		return zero
	}
	return idx.table.Get(id)
}

// Has reports whether a row with the given key exists.
func (idx *UniqueIndex[K, T]) Has(key K) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.byKey[key]
	return ok
}

// OnAppend implements [TableObserver].
func (idx *UniqueIndex[K, T]) OnAppend(row T) {
	idx.mu.Lock()
	idx.byKey[idx.keyFunc(row)] = row.GetID()
	idx.mu.Unlock()
}

// OnUpdate implements [TableObserver].
func (idx *UniqueIndex[K, T]) OnUpdate(prev, curr T) {
	oldKey := idx.keyFunc(prev)
	newKey := idx.keyFunc(curr)
	idx.mu.Lock()
	if oldKey != newKey {
		delete(idx.byKey, oldKey)
	}
	idx.byKey[newKey] = curr.GetID()
	idx.mu.Unlock()
}

// OnDelete implements [TableObserver].
func (idx *UniqueIndex[K, T]) OnDelete(row T) {
	idx.mu.Lock()
	delete(idx.byKey, idx.keyFunc(row))
	idx.mu.Unlock()
}

// Index provides O(1) lookup by a non-unique secondary key.
//
// IDs under a key are kept in insertion order.
type Index[K comparable, T Row[T]] struct {
	table   *Table[T]
	keyFunc func(T) K
	mu      sync.Mutex
	byKey   map[K][]ksid.ID
}

// NewIndex creates a non-unique index on the given table.
func NewIndex[K comparable, T Row[T]](table *Table[T], keyFunc func(T) K) *Index[K, T] {
	idx := &Index[K, T]{
		table:   table,
		keyFunc: keyFunc,
		byKey:   make(map[K][]ksid.ID),
	}
	table.AddObserver(idx)
	return idx
}

// Get returns clones of every row with the given key.
func (idx *Index[K, T]) Get(key K) []T {
	idx.mu.Lock()
	ids := append([]ksid.ID(nil), idx.byKey[key]...)
	idx.mu.Unlock()
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		// A row can disappear between the two locks.
		if row, ok := idx.table.lookup(id); ok {
			out = append(out, row)
		}
	}
	return out
}

// Count returns the number of rows with the given key.
func (idx *Index[K, T]) Count(key K) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.byKey[key])
}

// OnAppend implements [TableObserver].
func (idx *Index[K, T]) OnAppend(row T) {
	k := idx.keyFunc(row)
	idx.mu.Lock()
	idx.byKey[k] = append(idx.byKey[k], row.GetID())
	idx.mu.Unlock()
}

// OnUpdate implements [TableObserver].
func (idx *Index[K, T]) OnUpdate(prev, curr T) {
	oldKey := idx.keyFunc(prev)
	newKey := idx.keyFunc(curr)
	if oldKey == newKey {
		return
	}
	idx.mu.Lock()
	idx.removeLocked(oldKey, prev.GetID())
	idx.byKey[newKey] = append(idx.byKey[newKey], curr.GetID())
	idx.mu.Unlock()
}

// OnDelete implements [TableObserver].
func (idx *Index[K, T]) OnDelete(row T) {
	idx.mu.Lock()
	idx.removeLocked(idx.keyFunc(row), row.GetID())
	idx.mu.Unlock()
}

func (idx *Index[K, T]) removeLocked(key K, id ksid.ID) {
	ids := idx.byKey[key]
	for i, v := range ids {
		if v == id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(idx.byKey, key)
	} else {
		idx.byKey[key] = ids
	}
}

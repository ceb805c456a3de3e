// Package jsonldb provides a generic, concurrent-safe, JSONL-backed document store.
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
// Rows are sorted by ID on load if out of order (handles clock drift, manual edits).
// Appends go to the end of the file; updates and deletes rewrite it through a
// temporary file renamed in place.
package jsonldb

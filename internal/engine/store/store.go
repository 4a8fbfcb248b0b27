// Package store provides the per-strategy key/value tables that keep router
// state, timers, and atexit handlers isolated across strategies.
package store

import "sync"

// Table is one strategy's key/value state. Keys are opaque tokens owned by
// the components that use the table; only code running inside the strategy's
// task may touch it.
type Table struct {
	values map[any]any
}

// Get returns the value stored under key, or false when absent.
func (t *Table) Get(key any) (any, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Set stores value under key.
func (t *Table) Set(key, value any) {
	t.values[key] = value
}

// Delete removes key from the table.
func (t *Table) Delete(key any) {
	delete(t.values, key)
}

// Len returns the number of stored entries.
func (t *Table) Len() int {
	return len(t.values)
}

// Store maps strategy names to their tables.
type Store struct {
	mu     sync.Mutex
	tables map[string]*Table
}

// New creates an empty store.
func New() *Store {
	return &Store{
		mu:     sync.Mutex{},
		tables: make(map[string]*Table),
	}
}

// Table returns the table for the named strategy, creating it on first use.
func (s *Store) Table(name string) *Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, ok := s.tables[name]
	if !ok {
		table = &Table{values: make(map[any]any)}
		s.tables[name] = table
	}
	return table
}

// Reset drops everything stored for the named strategy. The next Table call
// returns a fresh table.
func (s *Store) Reset(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, name)
}

// Package propcol implements the property-column storage described in
// spec.md §4.2 (component C4): node and edge records hold no inline
// properties; instead, each property key maps to its own sparse
// entity-id → Value column, created lazily on first write and never
// removed for the database's lifetime (even once empty).
//
// This inverts the reference storage engine's inline
// `map[string]any` property bag into column-major storage, which is what
// lets the vectorized executor (C10/C11) scan a single property across
// many entities without touching unrelated columns.
package propcol

import (
	"sync"

	"github.com/lpgdb/lpgdb/pkg/value"
)

// EntityId is the id type a Store is keyed by: value.NodeId for node
// property columns, value.EdgeId for edge property columns.
type EntityId interface {
	~uint64
}

// column is a sparse entity-id → Value map for a single property key.
type column[E EntityId] struct {
	mu   sync.RWMutex
	data map[E]value.Value
}

func newColumn[E EntityId]() *column[E] {
	return &column[E]{data: make(map[E]value.Value)}
}

// Store holds every property column for one entity family (all node
// properties, or all edge properties). Columns are created on demand;
// `ColumnCount` only ever grows for the store's lifetime.
type Store[E EntityId] struct {
	mu      sync.RWMutex
	columns map[string]*column[E]
}

// New creates an empty property column store.
func New[E EntityId]() *Store[E] {
	return &Store[E]{columns: make(map[string]*column[E])}
}

func (s *Store[E]) columnFor(key string, create bool) *column[E] {
	s.mu.RLock()
	c, ok := s.columns[key]
	s.mu.RUnlock()
	if ok || !create {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.columns[key]; ok {
		return c
	}
	c = newColumn[E]()
	s.columns[key] = c
	return c
}

// Set assigns key=val for entity, creating the column if this is the
// key's first write. An existing value is overwritten.
func (s *Store[E]) Set(entity E, key string, val value.Value) {
	c := s.columnFor(key, true)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[entity] = val
}

// Get returns key's value for entity, or (zero, false) if the column does
// not exist or the entity has no entry in it.
func (s *Store[E]) Get(entity E, key string) (value.Value, bool) {
	c := s.columnFor(key, false)
	if c == nil {
		return value.Null, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[entity]
	return v, ok
}

// Remove erases entity's entry from key's column, if present. It does not
// delete the column itself, even if this was its last entry.
func (s *Store[E]) Remove(entity E, key string) {
	c := s.columnFor(key, false)
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, entity)
}

// RemoveAll erases entity's entry from every column, touching each one as
// required by spec.md §4.2.
func (s *Store[E]) RemoveAll(entity E) {
	s.mu.RLock()
	cols := make([]*column[E], 0, len(s.columns))
	for _, c := range s.columns {
		cols = append(cols, c)
	}
	s.mu.RUnlock()

	for _, c := range cols {
		c.mu.Lock()
		delete(c.data, entity)
		c.mu.Unlock()
	}
}

// GetAll assembles the full property map for entity by scanning every
// column, as spec.md §4.2 requires.
func (s *Store[E]) GetAll(entity E) map[string]value.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]value.Value)
	for key, c := range s.columns {
		c.mu.RLock()
		if v, ok := c.data[entity]; ok {
			out[key] = v
		}
		c.mu.RUnlock()
	}
	return out
}

// Keys returns every property key that has ever been written, in no
// particular order.
func (s *Store[E]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.columns))
	for k := range s.columns {
		out = append(out, k)
	}
	return out
}

// ColumnCount returns the number of distinct property keys ever written.
func (s *Store[E]) ColumnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.columns)
}

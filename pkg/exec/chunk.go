// Package exec implements the vectorized execution primitives of spec.md
// §4.8 (component C10): DataChunk, ValueVector, and SelectionVector. The
// physical operators in pkg/exec/operator are built entirely on top of
// these three types.
//
// This is new structure grounded in the teacher's general approach to
// hot-path data movement (pkg/pool's sync.Pool reuse discipline) rather
// than any one teacher file — the reference engine evaluates Cypher
// expressions directly against map[string]*storage.Node bindings row by
// row (pkg/cypher/executor.go) and has no columnar batch concept at all.
package exec

import (
	"fmt"

	"github.com/lpgdb/lpgdb/pkg/value"
)

// DefaultCapacity is the default row capacity of a DataChunk (spec.md §4.8).
const DefaultCapacity = 2048

// SelectionVector is a compact list of selected row indices into a
// DataChunk's vectors. A nil SelectionVector means "every row up to
// count is selected."
type SelectionVector []int

// SelectedIndices returns sel's indices, or 0..count if sel is empty.
func (sel SelectionVector) SelectedIndices(count int) []int {
	if len(sel) > 0 {
		return sel
	}
	out := make([]int, count)
	for i := range out {
		out[i] = i
	}
	return out
}

// ValueVector is a single typed column of up to DataChunk capacity
// values.
type ValueVector struct {
	Type value.LogicalType
	data []value.Value
}

func NewValueVector(t value.LogicalType, capacity int) *ValueVector {
	return &ValueVector{Type: t, data: make([]value.Value, 0, capacity)}
}

// Append adds v to the vector. v's kind must match the vector's declared
// LogicalType (Null is always accepted regardless of type), or Append
// returns a type-mismatch error (spec.md §4.8 contract).
func (vec *ValueVector) Append(v value.Value) error {
	if v.Kind() != value.KindNull && v.Kind().LogicalType() != vec.Type && vec.Type != value.LogicalAny {
		return fmt.Errorf("exec: type mismatch appending %s into %s vector", v.Kind().LogicalType(), vec.Type)
	}
	vec.data = append(vec.data, v)
	return nil
}

func (vec *ValueVector) At(i int) value.Value {
	return vec.data[i]
}

func (vec *ValueVector) Len() int { return len(vec.data) }

// Slice returns the raw backing data; callers must not mutate past Len().
func (vec *ValueVector) Slice() []value.Value { return vec.data }

func (vec *ValueVector) Reset() { vec.data = vec.data[:0] }

// DataChunk is a fixed-capacity batch of rows in columnar form: an
// ordered set of named ValueVectors, a row count, and an optional
// SelectionVector.
type DataChunk struct {
	Capacity int
	Columns  []*ValueVector
	Names    []string
	count    int
	sel      SelectionVector
}

func NewDataChunk(names []string, types []value.LogicalType, capacity int) *DataChunk {
	cols := make([]*ValueVector, len(types))
	for i, t := range types {
		cols[i] = NewValueVector(t, capacity)
	}
	return &DataChunk{Capacity: capacity, Columns: cols, Names: append([]string{}, names...)}
}

// ColumnIndex returns the index of the named column, or -1.
func (c *DataChunk) ColumnIndex(name string) int {
	for i, n := range c.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// SetRowCount records the raw (pre-selection) row count after columns are
// populated directly.
func (c *DataChunk) SetRowCount(n int) { c.count = n }

// TotalRowCount is the raw column length, ignoring any selection.
func (c *DataChunk) TotalRowCount() int { return c.count }

// RowCount is the effective row count: the selection's length if a
// selection vector is set, else TotalRowCount.
func (c *DataChunk) RowCount() int {
	if len(c.sel) > 0 {
		return len(c.sel)
	}
	return c.count
}

// SetSelection installs sel as the chunk's selection vector without
// rewriting any column — filters never copy (spec.md §4.8).
func (c *DataChunk) SetSelection(sel SelectionVector) { c.sel = sel }

func (c *DataChunk) Selection() SelectionVector { return c.sel }

// SelectedIndices returns the chunk's effective row indices.
func (c *DataChunk) SelectedIndices() []int {
	return c.sel.SelectedIndices(c.count)
}

// Reset empties every column and clears row count/selection, so the
// DataChunk can be reused from a pool.
func (c *DataChunk) Reset() {
	for _, col := range c.Columns {
		col.Reset()
	}
	c.count = 0
	c.sel = nil
}

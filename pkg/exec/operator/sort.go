package operator

import (
	"sort"

	"github.com/lpgdb/lpgdb/pkg/exec"
	"github.com/lpgdb/lpgdb/pkg/physical"
	"github.com/lpgdb/lpgdb/pkg/value"
)

// sortOperator fully materializes its input and stable-sorts by the key
// list, honoring per-key direction and null ordering (spec.md §4.9 Sort
// contract). Not yet spillable; see pkg/spill for the ExternalSort
// primitive a spilling variant would build on.
type sortOperator struct {
	phys  *physical.Operator
	input Operator

	rows [][]value.Value
	pos  int
	done bool
}

func newSort(phys *physical.Operator, input Operator) *sortOperator {
	return &sortOperator{phys: phys, input: input}
}

func (s *sortOperator) materialize(rt *Runtime) error {
	for {
		chunk, err := s.input.Next(rt)
		if err != nil {
			return err
		}
		if chunk == nil {
			break
		}
		for _, row := range chunk.SelectedIndices() {
			cols := make([]value.Value, len(chunk.Columns))
			for c := range chunk.Columns {
				cols[c] = chunk.Columns[c].At(row)
			}
			s.rows = append(s.rows, cols)
		}
	}

	keys := s.phys.Logical.SortKeys
	sort.SliceStable(s.rows, func(i, j int) bool {
		for _, key := range keys {
			a, errA := Eval(key.Expression, rowChunk(s.rows[i]), 0, s.phys.Vars, rt)
			b, errB := Eval(key.Expression, rowChunk(s.rows[j]), 0, s.phys.Vars, rt)
			if errA != nil || errB != nil {
				continue
			}
			if a.IsNull() || b.IsNull() {
				if a.IsNull() != b.IsNull() {
					if key.NullsFirst {
						return a.IsNull()
					}
					return b.IsNull()
				}
				continue
			}
			cmp, err := value.Compare(a, b)
			if err != nil || cmp == 0 {
				continue
			}
			if key.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return nil
}

// rowChunk wraps a single materialized row as a one-row DataChunk so Eval
// can be reused against sort keys without a parallel scalar evaluator.
func rowChunk(cols []value.Value) *exec.DataChunk {
	types := make([]value.LogicalType, len(cols))
	for i, c := range cols {
		types[i] = c.Kind().LogicalType()
	}
	chunk := exec.NewDataChunk(make([]string, len(cols)), types, 1)
	for i, c := range cols {
		_ = chunk.Columns[i].Append(c)
	}
	chunk.SetRowCount(1)
	return chunk
}

func (s *sortOperator) Next(rt *Runtime) (*exec.DataChunk, error) {
	if !s.done {
		if err := s.materialize(rt); err != nil {
			return nil, err
		}
		s.done = true
	}
	if s.pos >= len(s.rows) {
		return nil, nil
	}
	end := s.pos + exec.DefaultCapacity
	if end > len(s.rows) {
		end = len(s.rows)
	}
	out := schemaChunk(s.phys.Schema, exec.DefaultCapacity)
	for _, row := range s.rows[s.pos:end] {
		for c, v := range row {
			_ = out.Columns[c].Append(v)
		}
	}
	out.SetRowCount(end - s.pos)
	s.pos = end
	return out, nil
}

func (s *sortOperator) Reset() error {
	s.rows, s.pos, s.done = nil, 0, false
	return s.input.Reset()
}

func (s *sortOperator) Name() string { return "Sort" }

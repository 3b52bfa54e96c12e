package operator

import (
	"github.com/lpgdb/lpgdb/pkg/exec"
	"github.com/lpgdb/lpgdb/pkg/physical"
)

// filterOperator evaluates a predicate per row and records passing rows in
// a new selection vector, re-reading upstream chunks until one has a
// passing row or input is exhausted (spec.md §4.9 Filter contract).
type filterOperator struct {
	phys  *physical.Operator
	input Operator
	pred  *CompiledPredicate
}

func newFilter(phys *physical.Operator, input Operator) *filterOperator {
	return &filterOperator{
		phys:  phys,
		input: input,
		pred:  &CompiledPredicate{Expr: phys.Logical.Predicate, Vars: phys.Vars},
	}
}

func (f *filterOperator) Next(rt *Runtime) (*exec.DataChunk, error) {
	for {
		chunk, err := f.input.Next(rt)
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			return nil, nil
		}

		var sel exec.SelectionVector
		for _, row := range chunk.SelectedIndices() {
			ok, err := f.pred.Eval(chunk, row, rt)
			if err != nil {
				return nil, err
			}
			if ok {
				sel = append(sel, row)
			}
		}
		if len(sel) == 0 {
			continue // nothing passed this chunk; pull the next one
		}
		chunk.SetSelection(sel)
		return chunk, nil
	}
}

func (f *filterOperator) Reset() error { return f.input.Reset() }
func (f *filterOperator) Name() string { return "Filter" }

package operator

import (
	"github.com/lpgdb/lpgdb/pkg/exec"
	"github.com/lpgdb/lpgdb/pkg/physical"
)

// distinctOperator de-duplicates on the full row, hashing the whole row
// into a streaming seen-set rather than materializing the result up front
// (spec.md §4.9 Distinct contract).
type distinctOperator struct {
	phys  *physical.Operator
	input Operator
	seen  map[string]bool
}

func newDistinct(phys *physical.Operator, input Operator) *distinctOperator {
	return &distinctOperator{phys: phys, input: input, seen: map[string]bool{}}
}

func (d *distinctOperator) Next(rt *Runtime) (*exec.DataChunk, error) {
	for {
		chunk, err := d.input.Next(rt)
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			return nil, nil
		}

		var sel exec.SelectionVector
		for _, row := range chunk.SelectedIndices() {
			key := rowKey(chunk, row)
			if d.seen[key] {
				continue
			}
			d.seen[key] = true
			sel = append(sel, row)
		}
		if len(sel) == 0 {
			continue
		}
		chunk.SetSelection(sel)
		return chunk, nil
	}
}

func rowKey(chunk *exec.DataChunk, row int) string {
	key := ""
	for _, col := range chunk.Columns {
		key += col.At(row).String() + "\x00"
	}
	return key
}

func (d *distinctOperator) Reset() error {
	d.seen = map[string]bool{}
	return d.input.Reset()
}

func (d *distinctOperator) Name() string { return "Distinct" }

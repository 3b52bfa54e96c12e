package operator

import (
	"github.com/lpgdb/lpgdb/pkg/exec"
	"github.com/lpgdb/lpgdb/pkg/physical"
	"github.com/lpgdb/lpgdb/pkg/value"
)

// bindOperator evaluates BindValue per row and appends it as a new column
// under BindAlias, passing every other column through unchanged.
type bindOperator struct {
	phys  *physical.Operator
	input Operator
}

func newBind(phys *physical.Operator, input Operator) *bindOperator {
	return &bindOperator{phys: phys, input: input}
}

func (b *bindOperator) Next(rt *Runtime) (*exec.DataChunk, error) {
	in, err := b.input.Next(rt)
	if err != nil || in == nil {
		return nil, err
	}
	out := schemaChunk(b.phys.Schema, exec.DefaultCapacity)
	nIn := len(b.phys.Input.Schema)
	for _, row := range in.SelectedIndices() {
		for c := 0; c < nIn; c++ {
			_ = out.Columns[c].Append(in.Columns[c].At(row))
		}
		v, err := Eval(*b.phys.Logical.BindValue, in, row, b.phys.Input.Vars, rt)
		if err != nil {
			return nil, err
		}
		if err := out.Columns[nIn].Append(v); err != nil {
			return nil, err
		}
	}
	out.SetRowCount(len(in.SelectedIndices()))
	return out, nil
}

func (b *bindOperator) Reset() error { return b.input.Reset() }
func (b *bindOperator) Name() string { return "Bind" }

// unwindOperator evaluates UnwindExpr per input row (expecting a list) and
// emits one output row per list element, under UnwindAlias.
type unwindOperator struct {
	phys  *physical.Operator
	input Operator

	chunk     *exec.DataChunk // current upstream chunk being consumed
	rows      []int           // its remaining selected row indices
	rowPos    int
	curRow    []value.Value
	items     []value.Value
	itemPos   int
	exhausted bool
}

func newUnwind(phys *physical.Operator, input Operator) *unwindOperator {
	return &unwindOperator{phys: phys, input: input}
}

func (u *unwindOperator) advanceRow(rt *Runtime) (bool, error) {
	for u.rowPos >= len(u.rows) {
		if u.exhausted {
			return false, nil
		}
		chunk, err := u.input.Next(rt)
		if err != nil {
			return false, err
		}
		if chunk == nil {
			u.exhausted = true
			return false, nil
		}
		u.chunk = chunk
		u.rows = chunk.SelectedIndices()
		u.rowPos = 0
	}

	nIn := len(u.phys.Input.Schema)
	row := u.rows[u.rowPos]
	u.rowPos++
	u.curRow = make([]value.Value, nIn)
	for c := 0; c < nIn; c++ {
		u.curRow[c] = u.chunk.Columns[c].At(row)
	}
	listVal, err := Eval(*u.phys.Logical.UnwindExpr, u.chunk, row, u.phys.Input.Vars, rt)
	if err != nil {
		return false, err
	}
	items, _ := listVal.AsList()
	u.items = items
	u.itemPos = 0
	return true, nil
}

func (u *unwindOperator) Next(rt *Runtime) (*exec.DataChunk, error) {
	out := schemaChunk(u.phys.Schema, exec.DefaultCapacity)
	nIn := len(u.phys.Input.Schema)
	emitted := 0

	for emitted < exec.DefaultCapacity {
		if u.itemPos >= len(u.items) {
			ok, err := u.advanceRow(rt)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			continue
		}

		for c, v := range u.curRow {
			_ = out.Columns[c].Append(v)
		}
		if err := out.Columns[nIn].Append(u.items[u.itemPos]); err != nil {
			return nil, err
		}
		u.itemPos++
		emitted++
	}

	if emitted == 0 {
		return nil, nil
	}
	out.SetRowCount(emitted)
	return out, nil
}

func (u *unwindOperator) Reset() error {
	u.chunk, u.rows, u.rowPos = nil, nil, 0
	u.curRow, u.items, u.itemPos, u.exhausted = nil, nil, 0, false
	return u.input.Reset()
}

func (u *unwindOperator) Name() string { return "Unwind" }

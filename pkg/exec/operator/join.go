package operator

import (
	"fmt"

	"github.com/lpgdb/lpgdb/pkg/exec"
	"github.com/lpgdb/lpgdb/pkg/physical"
	"github.com/lpgdb/lpgdb/pkg/plan"
	"github.com/lpgdb/lpgdb/pkg/value"
)

// hashJoinRow is one materialized row of the build side, kept as a plain
// value slice since the hash table holds rows across chunk boundaries.
type hashJoinRow struct {
	cols    []value.Value
	matched bool // read by the Right/Full pass that emits unmatched build rows
}

// hashJoinOperator implements the join family of spec.md §4.9: the build
// side (right) materializes into a hash table keyed on its join-condition
// free variables; the probe side (left) streams. JoinType selects which
// unmatched-row behavior applies.
type hashJoinOperator struct {
	phys        *physical.Operator
	left, right Operator

	built   bool
	table   map[string][]*hashJoinRow
	allRows []*hashJoinRow

	// probe-time state for the current left chunk
	probeChunk *exec.DataChunk
	probeRow   int

	// leftDone marks the probe side exhausted; rightPos walks allRows to
	// emit build-side rows nothing on the left matched (Right/Full).
	leftDone bool
	rightPos int
}

func newHashJoin(phys *physical.Operator, left, right Operator) *hashJoinOperator {
	return &hashJoinOperator{phys: phys, left: left, right: right}
}

func (j *hashJoinOperator) build(rt *Runtime) error {
	j.table = map[string][]*hashJoinRow{}
	for {
		chunk, err := j.right.Next(rt)
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
			r := &hashJoinRow{cols: cols}
			j.allRows = append(j.allRows, r)
			key := j.joinKey(cols, j.phys.Right.Vars)
			j.table[key] = append(j.table[key], r)
		}
	}
	j.built = true
	return nil
}

// joinKey extracts a hashable key from the join condition's free variables
// on one side, falling back to a constant key (every row joins) when the
// condition does not reduce to a simple equi-join the hash path can use.
func (j *hashJoinOperator) joinKey(cols []value.Value, vars map[string]int) string {
	names := equiJoinVars(j.phys.Logical.JoinCond)
	if len(names) == 0 {
		return "*"
	}
	key := ""
	for _, n := range names {
		idx, ok := vars[n]
		if !ok {
			return "*"
		}
		key += cols[idx].String() + "\x00"
	}
	return key
}

// equiJoinVars returns the variable names referenced by cond if it is a
// single Eq(Var, Var) comparison; otherwise nil, meaning the join must
// fall back to evaluating cond against every build row.
func equiJoinVars(cond *plan.Expression) []string {
	if cond == nil || cond.Kind != plan.ExprBinary || cond.BinaryOp != plan.Eq {
		return nil
	}
	if cond.Left.Kind != plan.ExprVariable || cond.Right.Kind != plan.ExprVariable {
		return nil
	}
	return []string{cond.Left.Name, cond.Right.Name}
}

func (j *hashJoinOperator) Next(rt *Runtime) (*exec.DataChunk, error) {
	if !j.built {
		if err := j.build(rt); err != nil {
			return nil, err
		}
	}

	names := make([]string, len(j.phys.Schema))
	types := make([]value.LogicalType, len(j.phys.Schema))
	for i, c := range j.phys.Schema {
		names[i] = c.Name
		types[i] = c.Type
	}
	out := exec.NewDataChunk(names, types, exec.DefaultCapacity)
	leftCols := len(j.phys.Left.Schema)
	rightCols := len(j.phys.Right.Schema)

	wantsUnmatchedBuild := j.phys.Kind == plan.OpJoin &&
		(j.phys.Logical.JoinType == plan.Right || j.phys.Logical.JoinType == plan.Full)

	emitted := 0
	for emitted < exec.DefaultCapacity {
		if j.leftDone {
			break
		}
		if j.probeChunk == nil || j.probeRow >= len(j.probeChunk.SelectedIndices()) {
			chunk, err := j.left.Next(rt)
			if err != nil {
				return nil, err
			}
			if chunk == nil {
				j.leftDone = true
				break
			}
			j.probeChunk = chunk
			j.probeRow = 0
		}

		rows := j.probeChunk.SelectedIndices()
		if j.probeRow >= len(rows) {
			j.probeChunk = nil
			continue
		}
		row := rows[j.probeRow]
		leftCols2 := make([]value.Value, leftCols)
		for c := 0; c < leftCols; c++ {
			leftCols2[c] = j.probeChunk.Columns[c].At(row)
		}

		matches, err := j.matchesFor(leftCols2, rt)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			m.matched = true
		}

		switch {
		case j.phys.Kind == plan.OpAntiJoin:
			if len(matches) == 0 {
				appendJoinRow(out, leftCols2, nil, rightCols)
				emitted++
			}

		case j.phys.Kind == plan.OpLeftJoin, j.phys.Kind == plan.OpJoin && j.phys.Logical.JoinType == plan.Full:
			if len(matches) == 0 {
				appendJoinRow(out, leftCols2, nil, rightCols)
				emitted++
			} else {
				for _, m := range matches {
					appendJoinRow(out, leftCols2, m.cols, rightCols)
					emitted++
				}
			}

		case j.phys.Kind == plan.OpJoin && j.phys.Logical.JoinType == plan.Semi:
			if len(matches) > 0 {
				appendJoinRow(out, leftCols2, nil, rightCols)
				emitted++
			}

		default: // Inner, Cross, Right (matched side) all emit one row per match
			for _, m := range matches {
				appendJoinRow(out, leftCols2, m.cols, rightCols)
				emitted++
			}
		}
		j.probeRow++
	}

	if wantsUnmatchedBuild {
		for emitted < exec.DefaultCapacity && j.rightPos < len(j.allRows) {
			r := j.allRows[j.rightPos]
			j.rightPos++
			if r.matched {
				continue
			}
			appendJoinRow(out, nullRow(leftCols), r.cols, rightCols)
			emitted++
		}
	}

	if emitted == 0 {
		return nil, nil
	}
	out.SetRowCount(emitted)
	return out, nil
}

func nullRow(n int) []value.Value {
	row := make([]value.Value, n)
	for i := range row {
		row[i] = value.Null
	}
	return row
}

// matchesFor returns every build-side row that satisfies the join
// condition against leftCols. The hash key narrows candidates when the
// condition is a simple Var=Var equi-join; otherwise every build row is a
// candidate. Either way, the full condition (if any) is re-evaluated per
// candidate so conditions beyond a bare equi-join (or no condition at
// all, i.e. Cross) are handled correctly.
func (j *hashJoinOperator) matchesFor(leftCols []value.Value, rt *Runtime) ([]*hashJoinRow, error) {
	candidates := j.allRows
	if names := equiJoinVars(j.phys.Logical.JoinCond); len(names) > 0 {
		key := ""
		ok := true
		for _, n := range names {
			idx, found := j.phys.Left.Vars[n]
			if !found {
				ok = false
				break
			}
			key += leftCols[idx].String() + "\x00"
		}
		if ok {
			candidates = j.table[key]
		}
	}

	if j.phys.Logical.JoinCond == nil {
		return candidates, nil
	}
	var out []*hashJoinRow
	for _, c := range candidates {
		combined := combineRow(leftCols, c.cols)
		v, err := Eval(*j.phys.Logical.JoinCond, combined, 0, j.phys.Vars, rt)
		if err != nil {
			return nil, err
		}
		if ok, _ := v.AsBool(); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// combineRow builds a single-row DataChunk over left||right columns so a
// join condition spanning both sides can be evaluated with the ordinary
// scalar Eval path.
func combineRow(left, right []value.Value) *exec.DataChunk {
	all := make([]value.Value, 0, len(left)+len(right))
	all = append(all, left...)
	all = append(all, right...)
	types := make([]value.LogicalType, len(all))
	for i, v := range all {
		types[i] = v.Kind().LogicalType()
	}
	chunk := exec.NewDataChunk(make([]string, len(all)), types, 1)
	for i, v := range all {
		_ = chunk.Columns[i].Append(v)
	}
	chunk.SetRowCount(1)
	return chunk
}

func appendJoinRow(out *exec.DataChunk, left []value.Value, right []value.Value, rightCols int) {
	for c, v := range left {
		_ = out.Columns[c].Append(v)
	}
	offset := len(left)
	for c := 0; c < rightCols; c++ {
		if right != nil {
			_ = out.Columns[offset+c].Append(right[c])
		} else {
			_ = out.Columns[offset+c].Append(value.Null)
		}
	}
}

func (j *hashJoinOperator) Reset() error {
	j.built = false
	j.table = nil
	j.allRows = nil
	j.probeChunk = nil
	j.probeRow = 0
	j.leftDone = false
	j.rightPos = 0
	if err := j.left.Reset(); err != nil {
		return err
	}
	return j.right.Reset()
}

func (j *hashJoinOperator) Name() string { return fmt.Sprintf("HashJoin(%s)", j.phys.Kind) }

package operator

import (
	"fmt"

	"github.com/lpgdb/lpgdb/pkg/exec"
	"github.com/lpgdb/lpgdb/pkg/physical"
	"github.com/lpgdb/lpgdb/pkg/plan"
	"github.com/lpgdb/lpgdb/pkg/value"
)

// aggState accumulates one aggregate item's running value over a group
// (or, for SimpleAggregate, over the whole input).
type aggState struct {
	fn       plan.AggFunc
	distinct bool
	count    int64
	sum      float64
	sumIsInt bool
	min, max value.Value
	haveMM   bool
	collect  []value.Value
	seen     map[string]bool // distinct de-dup, keyed on String()
}

func newAggState(item plan.AggregateItem) *aggState {
	return &aggState{fn: item.Function, distinct: item.Distinct, sumIsInt: true, seen: map[string]bool{}}
}

func (a *aggState) add(v value.Value) {
	if a.fn != plan.AggCount && v.IsNull() {
		return
	}
	if a.distinct {
		k := v.String()
		if a.seen[k] {
			return
		}
		a.seen[k] = true
	}
	switch a.fn {
	case plan.AggCount:
		if v.IsNull() && a.distinct {
			return
		}
		a.count++
	case plan.AggSum, plan.AggAvg:
		a.count++
		a.sum += v.Float()
		if v.Kind() != value.KindInt64 {
			a.sumIsInt = false
		}
	case plan.AggMin:
		if !a.haveMM {
			a.min, a.haveMM = v, true
		} else if cmp, err := value.Compare(v, a.min); err == nil && cmp < 0 {
			a.min = v
		}
	case plan.AggMax:
		if !a.haveMM {
			a.max, a.haveMM = v, true
		} else if cmp, err := value.Compare(v, a.max); err == nil && cmp > 0 {
			a.max = v
		}
	case plan.AggCollect:
		a.collect = append(a.collect, v)
	}
}

func (a *aggState) result() value.Value {
	switch a.fn {
	case plan.AggCount:
		return value.Int64(a.count)
	case plan.AggSum:
		if a.count == 0 {
			return value.Int64(0)
		}
		if a.sumIsInt {
			return value.Int64(int64(a.sum))
		}
		return value.Float64(a.sum)
	case plan.AggAvg:
		if a.count == 0 {
			return value.Null
		}
		return value.Float64(a.sum / float64(a.count))
	case plan.AggMin:
		if !a.haveMM {
			return value.Null
		}
		return a.min
	case plan.AggMax:
		if !a.haveMM {
			return value.Null
		}
		return a.max
	case plan.AggCollect:
		return value.List(a.collect)
	default:
		return value.Null
	}
}

// simpleAggregateOperator accumulates per-aggregate state over all input
// (no group keys) and emits a single-row chunk at end-of-input (spec.md
// §4.9 SimpleAggregate contract).
type simpleAggregateOperator struct {
	phys   *physical.Operator
	input  Operator
	done   bool
	states []*aggState
}

func newSimpleAggregate(phys *physical.Operator, input Operator) *simpleAggregateOperator {
	return &simpleAggregateOperator{phys: phys, input: input}
}

func (a *simpleAggregateOperator) Next(rt *Runtime) (*exec.DataChunk, error) {
	if a.done {
		return nil, nil
	}
	a.states = make([]*aggState, len(a.phys.Logical.Aggregates))
	for i, item := range a.phys.Logical.Aggregates {
		a.states[i] = newAggState(item)
	}

	for {
		chunk, err := a.input.Next(rt)
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			break
		}
		for _, row := range chunk.SelectedIndices() {
			for i, item := range a.phys.Logical.Aggregates {
				v, err := aggInput(item, chunk, row, a.phys.Input.Vars, rt)
				if err != nil {
					return nil, err
				}
				a.states[i].add(v)
			}
		}
	}

	out := schemaChunk(a.phys.Schema, 1)
	for i, s := range a.states {
		if err := out.Columns[i].Append(s.result()); err != nil {
			return nil, err
		}
	}
	out.SetRowCount(1)
	a.done = true
	return out, nil
}

func (a *simpleAggregateOperator) Reset() error {
	a.done = false
	a.states = nil
	return a.input.Reset()
}

func (a *simpleAggregateOperator) Name() string { return "SimpleAggregate" }

// hashAggregateOperator groups by the GroupBy expressions and keeps a
// per-group aggregate state, emitting one row per group at end-of-input
// (spec.md §4.9 HashAggregate contract). Not yet spillable; large group
// sets materialize fully in memory (see pkg/spill for the primitives a
// spilling variant would use).
type hashAggregateOperator struct {
	phys  *physical.Operator
	input Operator

	done   bool
	groups map[string][]value.Value
	states map[string][]*aggState
	order  []string
}

func newHashAggregate(phys *physical.Operator, input Operator) *hashAggregateOperator {
	return &hashAggregateOperator{phys: phys, input: input}
}

func (a *hashAggregateOperator) Next(rt *Runtime) (*exec.DataChunk, error) {
	if a.done {
		return nil, nil
	}
	a.groups = map[string][]value.Value{}
	a.states = map[string][]*aggState{}

	for {
		chunk, err := a.input.Next(rt)
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			break
		}
		for _, row := range chunk.SelectedIndices() {
			keyVals := make([]value.Value, len(a.phys.Logical.GroupBy))
			keyStr := ""
			for i, g := range a.phys.Logical.GroupBy {
				v, err := Eval(g, chunk, row, a.phys.Input.Vars, rt)
				if err != nil {
					return nil, err
				}
				keyVals[i] = v
				keyStr += v.String() + "\x00"
			}
			states, ok := a.states[keyStr]
			if !ok {
				states = make([]*aggState, len(a.phys.Logical.Aggregates))
				for i, item := range a.phys.Logical.Aggregates {
					states[i] = newAggState(item)
				}
				a.states[keyStr] = states
				a.groups[keyStr] = keyVals
				a.order = append(a.order, keyStr)
			}
			for i, item := range a.phys.Logical.Aggregates {
				v, err := aggInput(item, chunk, row, a.phys.Input.Vars, rt)
				if err != nil {
					return nil, err
				}
				states[i].add(v)
			}
		}
	}

	out := schemaChunk(a.phys.Schema, exec.DefaultCapacity)
	nGroupKeys := len(a.phys.Logical.GroupBy)
	for _, key := range a.order {
		for i, v := range a.groups[key] {
			if err := out.Columns[i].Append(v); err != nil {
				return nil, err
			}
		}
		for i, s := range a.states[key] {
			if err := out.Columns[nGroupKeys+i].Append(s.result()); err != nil {
				return nil, err
			}
		}
	}
	out.SetRowCount(len(a.order))
	a.done = true
	return out, nil
}

func (a *hashAggregateOperator) Reset() error {
	a.done = false
	a.groups, a.states, a.order = nil, nil, nil
	return a.input.Reset()
}

func (a *hashAggregateOperator) Name() string { return "HashAggregate" }

// aggInput evaluates an aggregate item's input expression, or treats a nil
// Expression (Count(*)) as always-present-and-non-null.
func aggInput(item plan.AggregateItem, chunk *exec.DataChunk, row int, vars map[string]int, rt *Runtime) (value.Value, error) {
	if item.Expression == nil {
		return value.Bool(true), nil
	}
	v, err := Eval(*item.Expression, chunk, row, vars, rt)
	if err != nil {
		return value.Null, fmt.Errorf("aggregate: %w", err)
	}
	if (item.Function == plan.AggSum || item.Function == plan.AggAvg) && !v.IsNull() && !v.IsNumeric() {
		return value.Null, fmt.Errorf("aggregate: %s over non-numeric value of kind %s", item.Function, v.Kind())
	}
	return v, nil
}

func schemaChunk(s physical.Schema, capacity int) *exec.DataChunk {
	names := make([]string, len(s))
	types := make([]value.LogicalType, len(s))
	for i, c := range s {
		names[i] = c.Name
		types[i] = c.Type
	}
	return exec.NewDataChunk(names, types, capacity)
}

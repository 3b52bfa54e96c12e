package operator

import (
	"fmt"

	"github.com/lpgdb/lpgdb/pkg/exec"
	"github.com/lpgdb/lpgdb/pkg/physical"
	"github.com/lpgdb/lpgdb/pkg/plan"
	"github.com/lpgdb/lpgdb/pkg/store"
	"github.com/lpgdb/lpgdb/pkg/value"
)

// expandOperator enumerates neighbors of each input row's source column
// per spec.md §4.1/§4.9, emitting one output row per (src, target[,
// edge]) tuple. Multi-hop expansion (MaxHops>1) tracks visited node ids
// per path to bound cycles, per spec.md §4.9's "must not diverge" clause.
type expandOperator struct {
	phys  *physical.Operator
	input Operator

	pending []expandRow
	pos     int
}

type expandRow struct {
	prefix []value.Value // the input row's columns, carried through
	target value.NodeId
	edge   value.EdgeId
}

func newExpand(phys *physical.Operator, input Operator) *expandOperator {
	return &expandOperator{phys: phys, input: input}
}

func storeDirection(d plan.Direction) store.Direction {
	switch d {
	case plan.Outgoing:
		return store.Out
	case plan.Incoming:
		return store.In
	default:
		return store.Both
	}
}

func (e *expandOperator) Next(rt *Runtime) (*exec.DataChunk, error) {
	for e.pos >= len(e.pending) {
		in, err := e.input.Next(rt)
		if err != nil {
			return nil, err
		}
		if in == nil {
			return nil, nil
		}
		e.pending = nil
		e.pos = 0

		srcCol := e.phys.Input.Vars[e.phys.Logical.FromVariable]
		dir := storeDirection(e.phys.Logical.Direction)
		minHops := e.phys.Logical.MinHops
		if minHops == 0 {
			minHops = 1
		}
		maxHops := minHops
		if e.phys.Logical.MaxHops != nil {
			maxHops = *e.phys.Logical.MaxHops
		}

		for _, row := range in.SelectedIndices() {
			srcVal := in.Columns[srcCol].At(row)
			srcID, ok := srcVal.AsNode()
			if !ok {
				continue
			}
			prefix := make([]value.Value, len(in.Columns))
			for c := range in.Columns {
				prefix[c] = in.Columns[c].At(row)
			}
			e.walkHops(rt.Store, srcID, dir, minHops, maxHops, map[value.NodeId]bool{srcID: true}, prefix)
		}
	}

	return e.emitChunk(), nil
}

// walkHops performs a bounded-depth traversal from src, appending a
// pending output row for every node reached at a hop count within
// [minHops, maxHops].
func (e *expandOperator) walkHops(s *store.Store, src value.NodeId, dir store.Direction, minHops, maxHops uint32, visited map[value.NodeId]bool, prefix []value.Value) {
	var recurse func(cur value.NodeId, depth uint32, seen map[value.NodeId]bool)
	recurse = func(cur value.NodeId, depth uint32, seen map[value.NodeId]bool) {
		if depth >= maxHops {
			return
		}
		for target, edgeID := range s.EdgesFrom(cur, dir) {
			if seen[target] {
				continue // cycle guard: never revisit a node within one path
			}
			nextDepth := depth + 1
			if nextDepth >= minHops {
				e.pending = append(e.pending, expandRow{prefix: prefix, target: target, edge: edgeID})
			}
			if nextDepth < maxHops {
				nextSeen := make(map[value.NodeId]bool, len(seen)+1)
				for k := range seen {
					nextSeen[k] = true
				}
				nextSeen[target] = true
				recurse(target, nextDepth, nextSeen)
			}
		}
	}
	recurse(src, 0, visited)
}

func (e *expandOperator) emitChunk() *exec.DataChunk {
	end := e.pos + exec.DefaultCapacity
	if end > len(e.pending) {
		end = len(e.pending)
	}
	names := make([]string, len(e.phys.Schema))
	types := make([]value.LogicalType, len(e.phys.Schema))
	for i, c := range e.phys.Schema {
		names[i] = c.Name
		types[i] = c.Type
	}
	chunk := exec.NewDataChunk(names, types, exec.DefaultCapacity)

	nInputCols := len(e.phys.Input.Schema)
	hasEdgeCol := e.phys.Logical.EdgeVariable != nil

	for _, r := range e.pending[e.pos:end] {
		for c := 0; c < nInputCols; c++ {
			_ = chunk.Columns[c].Append(r.prefix[c])
		}
		_ = chunk.Columns[nInputCols].Append(value.NodeRef(r.target))
		if hasEdgeCol {
			_ = chunk.Columns[nInputCols+1].Append(value.EdgeRef(r.edge))
		}
	}
	chunk.SetRowCount(end - e.pos)
	e.pos = end
	return chunk
}

func (e *expandOperator) Reset() error {
	e.pending = nil
	e.pos = 0
	return e.input.Reset()
}

func (e *expandOperator) Name() string { return fmt.Sprintf("Expand(%s)", e.phys.Logical.Direction) }

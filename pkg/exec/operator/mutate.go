package operator

import (
	"log"

	"github.com/lpgdb/lpgdb/pkg/exec"
	"github.com/lpgdb/lpgdb/pkg/physical"
	"github.com/lpgdb/lpgdb/pkg/plan"
	"github.com/lpgdb/lpgdb/pkg/value"
	"github.com/lpgdb/lpgdb/pkg/wal"
)

// mutateOperator applies CreateNode/CreateEdge/Delete*/SetProperty/
// AddLabel/RemoveLabel to the store, best-effort logs the corresponding
// WAL record, and passes the row through — binding a newly created id to
// its operator's output column where applicable (spec.md §4.9 mutation
// contract, §7's warn-and-continue WAL policy).
type mutateOperator struct {
	phys  *physical.Operator
	input Operator
	sink  WalSink
	tx    MutationContext
}

func newMutate(phys *physical.Operator, input Operator, sink WalSink, tx MutationContext) *mutateOperator {
	return &mutateOperator{phys: phys, input: input, sink: sink, tx: tx}
}

func (m *mutateOperator) logWAL(rec wal.Record) {
	if m.sink == nil {
		return
	}
	if err := m.sink.Append(rec); err != nil {
		log.Printf("operator: WAL append failed for %s, continuing in-memory: %v", rec.Kind, err)
	}
}

func (m *mutateOperator) Next(rt *Runtime) (*exec.DataChunk, error) {
	in, err := m.input.Next(rt)
	if err != nil || in == nil {
		return nil, err
	}

	out := schemaChunk(m.phys.Schema, exec.DefaultCapacity)
	nIn := len(m.phys.Input.Schema)
	rows := in.SelectedIndices()

	for _, row := range rows {
		for c := 0; c < nIn; c++ {
			_ = out.Columns[c].Append(in.Columns[c].At(row))
		}
		boundID, err := m.apply(in, row, rt)
		if err != nil {
			return nil, err
		}
		if nIn < len(out.Columns) {
			if err := out.Columns[nIn].Append(boundID); err != nil {
				return nil, err
			}
		}
	}
	out.SetRowCount(len(rows))
	return out, nil
}

// apply executes the one mutation this operator wraps against row, and
// returns the value to bind in this operator's extra output column
// (Null when the operator does not introduce one, e.g. SetProperty).
func (m *mutateOperator) apply(in *exec.DataChunk, row int, rt *Runtime) (value.Value, error) {
	logical := m.phys.Logical
	switch m.phys.Kind {
	case plan.OpCreateNode:
		props, err := evalProps(logical.NewProps, in, row, m.phys.Input.Vars, rt)
		if err != nil {
			return value.Null, err
		}
		id, err := rt.Store.CreateNodeWithProps(logical.NewLabels, props, m.tx.Epoch)
		if err != nil {
			return value.Null, err
		}
		m.logWAL(wal.CreateNode(id, logical.NewLabels))
		for k, v := range props {
			m.logWAL(wal.SetNodeProperty(id, k, v))
		}
		return value.NodeRef(id), nil

	case plan.OpCreateEdge:
		srcIdx := m.phys.Input.Vars[logical.Src]
		dstIdx := m.phys.Input.Vars[logical.Dst]
		srcVal, _ := in.Columns[srcIdx].At(row).AsNode()
		dstVal, _ := in.Columns[dstIdx].At(row).AsNode()
		props, err := evalProps(logical.NewProps, in, row, m.phys.Input.Vars, rt)
		if err != nil {
			return value.Null, err
		}
		typeName := ""
		if logical.EdgeType != nil {
			typeName = *logical.EdgeType
		}
		id, err := rt.Store.CreateEdgeWithProps(srcVal, dstVal, typeName, props, m.tx.Epoch)
		if err != nil {
			return value.Null, err
		}
		m.logWAL(wal.CreateEdge(id, srcVal, dstVal, typeName))
		for k, v := range props {
			m.logWAL(wal.SetEdgeProperty(id, k, v))
		}
		return value.EdgeRef(id), nil

	case plan.OpDeleteNode:
		idx := m.phys.Input.Vars[logical.TargetVariable]
		id, _ := in.Columns[idx].At(row).AsNode()
		rt.Store.DeleteNode(id)
		m.logWAL(wal.DeleteNode(id))
		return value.Null, nil

	case plan.OpDeleteEdge:
		idx := m.phys.Input.Vars[logical.TargetVariable]
		id, _ := in.Columns[idx].At(row).AsEdge()
		rt.Store.DeleteEdge(id)
		m.logWAL(wal.DeleteEdge(id))
		return value.Null, nil

	case plan.OpSetProperty:
		idx := m.phys.Input.Vars[logical.TargetVariable]
		target := in.Columns[idx].At(row)
		v, err := Eval(*logical.PropertyValue, in, row, m.phys.Input.Vars, rt)
		if err != nil {
			return value.Null, err
		}
		switch target.Kind() {
		case value.KindNode:
			id, _ := target.AsNode()
			if err := rt.Store.SetNodeProperty(id, logical.PropertyKey, v); err != nil {
				return value.Null, err
			}
			m.logWAL(wal.SetNodeProperty(id, logical.PropertyKey, v))
		case value.KindEdge:
			id, _ := target.AsEdge()
			if err := rt.Store.SetEdgeProperty(id, logical.PropertyKey, v); err != nil {
				return value.Null, err
			}
			m.logWAL(wal.SetEdgeProperty(id, logical.PropertyKey, v))
		}
		return value.Null, nil

	case plan.OpAddLabel:
		idx := m.phys.Input.Vars[logical.TargetVariable]
		id, _ := in.Columns[idx].At(row).AsNode()
		if err := rt.Store.AddLabel(id, logical.PropertyKey); err != nil {
			return value.Null, err
		}
		m.logWAL(wal.AddLabel(id, logical.PropertyKey))
		return value.Null, nil

	case plan.OpRemoveLabel:
		idx := m.phys.Input.Vars[logical.TargetVariable]
		id, _ := in.Columns[idx].At(row).AsNode()
		if err := rt.Store.RemoveLabel(id, logical.PropertyKey); err != nil {
			return value.Null, err
		}
		m.logWAL(wal.RemoveLabel(id, logical.PropertyKey))
		return value.Null, nil

	default:
		return value.Null, nil
	}
}

func evalProps(exprs map[string]plan.Expression, chunk *exec.DataChunk, row int, vars map[string]int, rt *Runtime) (map[string]value.Value, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	out := make(map[string]value.Value, len(exprs))
	for k, e := range exprs {
		v, err := Eval(e, chunk, row, vars, rt)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (m *mutateOperator) Reset() error { return m.input.Reset() }
func (m *mutateOperator) Name() string { return "Mutate(" + m.phys.Kind.String() + ")" }

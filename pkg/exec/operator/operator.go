package operator

import (
	"fmt"

	"github.com/lpgdb/lpgdb/pkg/exec"
	"github.com/lpgdb/lpgdb/pkg/physical"
	"github.com/lpgdb/lpgdb/pkg/plan"
	"github.com/lpgdb/lpgdb/pkg/value"
	"github.com/lpgdb/lpgdb/pkg/wal"
)

// Operator is the pull-based vectorized execution contract of spec.md
// §4.9: Next returns the next populated chunk, or (nil, nil) once input is
// exhausted ("None"), or (nil, err) on failure. Reset restarts the
// pipeline for re-execution. Name is for diagnostics (EXPLAIN-style
// output and logging), grounded on the reference engine's
// pkg/cypher/explain.go PlanOperator.Operation label.
type Operator interface {
	Next(rt *Runtime) (*exec.DataChunk, error)
	Reset() error
	Name() string
}

// WalSink is the logging side-channel mutation operators append to. It is
// satisfied by *wal.WAL; a nil WalSink means "no WAL configured" and
// mutation operators skip logging entirely rather than erroring, matching
// spec.md §7's "WAL write errors are warned, the in-memory mutation still
// succeeds" policy taken to its degenerate no-WAL case.
type WalSink interface {
	Append(rec wal.Record) error
}

// MutationContext carries the transaction/epoch identifiers mutation
// operators stamp onto the WAL records and store writes they perform
// while executing inside a single statement.
type MutationContext struct {
	TxID  value.TxId
	Epoch value.EpochId
}

// Build lowers a physical.Operator tree into an executable Operator tree.
// txID is stamped onto every WAL record / store write a mutation
// operator performs in this pipeline execution.
func Build(phys *physical.Operator, sink WalSink, txID MutationContext) (Operator, error) {
	if phys == nil {
		return nil, fmt.Errorf("operator: cannot build from nil physical operator")
	}

	switch phys.Kind {
	case plan.OpNodeScan, plan.OpEdgeScan, plan.OpTripleScan:
		return newScan(phys), nil

	case plan.OpExpand:
		input, err := Build(phys.Input, sink, txID)
		if err != nil {
			return nil, err
		}
		return newExpand(phys, input), nil

	case plan.OpFilter:
		input, err := Build(phys.Input, sink, txID)
		if err != nil {
			return nil, err
		}
		return newFilter(phys, input), nil

	case plan.OpProject, plan.OpReturn:
		input, err := Build(phys.Input, sink, txID)
		if err != nil {
			return nil, err
		}
		return newProject(phys, input), nil

	case plan.OpJoin, plan.OpLeftJoin, plan.OpAntiJoin:
		left, err := Build(phys.Left, sink, txID)
		if err != nil {
			return nil, err
		}
		right, err := Build(phys.Right, sink, txID)
		if err != nil {
			return nil, err
		}
		return newHashJoin(phys, left, right), nil

	case plan.OpUnion:
		children := make([]Operator, len(phys.Children))
		for i, c := range phys.Children {
			op, err := Build(c, sink, txID)
			if err != nil {
				return nil, err
			}
			children[i] = op
		}
		return newUnion(phys, children), nil

	case plan.OpAggregate:
		input, err := Build(phys.Input, sink, txID)
		if err != nil {
			return nil, err
		}
		if len(phys.Logical.GroupBy) == 0 {
			return newSimpleAggregate(phys, input), nil
		}
		return newHashAggregate(phys, input), nil

	case plan.OpSort:
		input, err := Build(phys.Input, sink, txID)
		if err != nil {
			return nil, err
		}
		return newSort(phys, input), nil

	case plan.OpDistinct:
		input, err := Build(phys.Input, sink, txID)
		if err != nil {
			return nil, err
		}
		return newDistinct(phys, input), nil

	case plan.OpLimit:
		input, err := Build(phys.Input, sink, txID)
		if err != nil {
			return nil, err
		}
		return newLimit(phys, input), nil

	case plan.OpSkip:
		input, err := Build(phys.Input, sink, txID)
		if err != nil {
			return nil, err
		}
		return newSkip(phys, input), nil

	case plan.OpBind:
		input, err := Build(phys.Input, sink, txID)
		if err != nil {
			return nil, err
		}
		return newBind(phys, input), nil

	case plan.OpUnwind:
		input, err := Build(phys.Input, sink, txID)
		if err != nil {
			return nil, err
		}
		return newUnwind(phys, input), nil

	case plan.OpCreateNode, plan.OpCreateEdge, plan.OpDeleteNode, plan.OpDeleteEdge,
		plan.OpSetProperty, plan.OpAddLabel, plan.OpRemoveLabel:
		input, err := Build(phys.Input, sink, txID)
		if err != nil {
			return nil, err
		}
		return newMutate(phys, input, sink, txID), nil

	case plan.OpMerge:
		pattern, err := Build(phys.Left, sink, txID)
		if err != nil {
			return nil, err
		}
		input, err := Build(phys.Input, sink, txID)
		if err != nil {
			return nil, err
		}
		return newMerge(phys, input, pattern), nil

	case plan.OpEmpty:
		return newEmpty(phys), nil

	default:
		return nil, fmt.Errorf("operator: unsupported physical operator kind %s", phys.Kind)
	}
}

type emptyOperator struct {
	phys *physical.Operator
	done bool
}

func newEmpty(phys *physical.Operator) *emptyOperator { return &emptyOperator{phys: phys} }

func (e *emptyOperator) Next(rt *Runtime) (*exec.DataChunk, error) {
	if e.done {
		return nil, nil
	}
	e.done = true
	// Empty yields a single row with no columns, so an operator above it
	// (e.g. CreateNode) runs exactly once.
	chunk := exec.NewDataChunk(nil, nil, exec.DefaultCapacity)
	chunk.SetRowCount(1)
	return chunk, nil
}

func (e *emptyOperator) Reset() error { e.done = false; return nil }
func (e *emptyOperator) Name() string { return "Empty" }

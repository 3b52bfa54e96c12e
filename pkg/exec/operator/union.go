package operator

import (
	"github.com/lpgdb/lpgdb/pkg/exec"
	"github.com/lpgdb/lpgdb/pkg/physical"
)

// unionOperator chains its children in order, without deduplication
// (spec.md §4.9: "does not deduplicate unless wrapped in Distinct").
type unionOperator struct {
	phys     *physical.Operator
	children []Operator
	cur      int
}

func newUnion(phys *physical.Operator, children []Operator) *unionOperator {
	return &unionOperator{phys: phys, children: children}
}

func (u *unionOperator) Next(rt *Runtime) (*exec.DataChunk, error) {
	for u.cur < len(u.children) {
		chunk, err := u.children[u.cur].Next(rt)
		if err != nil {
			return nil, err
		}
		if chunk != nil {
			return chunk, nil
		}
		u.cur++
	}
	return nil, nil
}

func (u *unionOperator) Reset() error {
	u.cur = 0
	for _, c := range u.children {
		if err := c.Reset(); err != nil {
			return err
		}
	}
	return nil
}

func (u *unionOperator) Name() string { return "Union" }

// mergeOperator pulls from the input and pattern children, in that order;
// an external ordering (e.g. a preceding Sort) is preserved because Merge
// does not reorder rows itself (spec.md §4.9 Merge contract: "pull from
// all children maintaining an external ordering if present").
type mergeOperator struct {
	phys          *physical.Operator
	input, source Operator
	onSource      bool
}

func newMerge(phys *physical.Operator, input, source Operator) *mergeOperator {
	return &mergeOperator{phys: phys, input: input, source: source}
}

func (m *mergeOperator) Next(rt *Runtime) (*exec.DataChunk, error) {
	if !m.onSource {
		chunk, err := m.input.Next(rt)
		if err != nil {
			return nil, err
		}
		if chunk != nil {
			return chunk, nil
		}
		m.onSource = true
	}
	return m.source.Next(rt)
}

func (m *mergeOperator) Reset() error {
	m.onSource = false
	if err := m.input.Reset(); err != nil {
		return err
	}
	return m.source.Reset()
}

func (m *mergeOperator) Name() string { return "Merge" }

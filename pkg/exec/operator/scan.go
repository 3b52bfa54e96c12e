package operator

import (
	"fmt"

	"github.com/lpgdb/lpgdb/pkg/exec"
	"github.com/lpgdb/lpgdb/pkg/physical"
	"github.com/lpgdb/lpgdb/pkg/plan"
	"github.com/lpgdb/lpgdb/pkg/value"
)

// scanOperator emits node or edge ids from the label index (if a label is
// supplied) or the full node/edge set otherwise, in chunks of up to
// exec.DefaultCapacity rows (spec.md §4.9 Scan contract).
type scanOperator struct {
	phys *physical.Operator
	ids  []uint64 // node or edge ids, boxed as uint64 regardless of kind
	pos  int
	kind plan.OpKind
}

func newScan(phys *physical.Operator) *scanOperator {
	return &scanOperator{phys: phys, kind: phys.Kind}
}

func (s *scanOperator) loadIDs(rt *Runtime) {
	if s.ids != nil {
		return
	}
	switch s.kind {
	case plan.OpNodeScan:
		if s.phys.Logical.Label != nil {
			for _, id := range rt.Store.NodesByLabel(*s.phys.Logical.Label) {
				s.ids = append(s.ids, uint64(id))
			}
		} else {
			for id := range rt.Store.AllNodeIDs() {
				s.ids = append(s.ids, uint64(id))
			}
		}
	case plan.OpEdgeScan:
		if s.phys.Logical.EdgeType != nil {
			for _, id := range rt.Store.EdgesByType(*s.phys.Logical.EdgeType) {
				s.ids = append(s.ids, uint64(id))
			}
		} else {
			for id := range rt.Store.AllEdgeIDs() {
				s.ids = append(s.ids, uint64(id))
			}
		}
	case plan.OpTripleScan:
		for id := range rt.Store.AllEdgeIDs() {
			s.ids = append(s.ids, uint64(id))
		}
	}
	if s.ids == nil {
		s.ids = []uint64{}
	}
}

func (s *scanOperator) Next(rt *Runtime) (*exec.DataChunk, error) {
	s.loadIDs(rt)
	if s.pos >= len(s.ids) {
		return nil, nil
	}

	end := s.pos + exec.DefaultCapacity
	if end > len(s.ids) {
		end = len(s.ids)
	}
	col := s.phys.Schema[0]
	chunk := exec.NewDataChunk([]string{col.Name}, []value.LogicalType{col.Type}, exec.DefaultCapacity)
	for _, id := range s.ids[s.pos:end] {
		var v value.Value
		switch s.kind {
		case plan.OpNodeScan:
			v = value.NodeRef(value.NodeId(id))
		default:
			v = value.EdgeRef(value.EdgeId(id))
		}
		if err := chunk.Columns[0].Append(v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
	}
	chunk.SetRowCount(end - s.pos)
	s.pos = end
	return chunk, nil
}

func (s *scanOperator) Reset() error {
	s.pos = 0
	s.ids = nil
	return nil
}

func (s *scanOperator) Name() string { return "Scan(" + s.kind.String() + ")" }

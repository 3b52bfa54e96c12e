package store

import "github.com/lpgdb/lpgdb/pkg/value"

// Export is a flat, fully-materialized copy of a Store's live entities,
// suitable for persistence outside this package (pkg/lpgdb's snapshot
// store, SPEC_FULL.md's C6.1 supplement) and later reconstruction via
// Import.
type Export struct {
	Nodes []ExportedNode
	Edges []ExportedEdge

	// NextNodeID and NextEdgeID are the store's id counters at export
	// time, so Import does not hand out ids of deleted entities again.
	NextNodeID value.NodeId
	NextEdgeID value.EdgeId
}

type ExportedNode struct {
	ID         value.NodeId
	Labels     []string
	Properties map[string]value.Value
	CreatedAt  value.EpochId
}

type ExportedEdge struct {
	ID         value.EdgeId
	Src        value.NodeId
	Dst        value.NodeId
	Type       string
	Properties map[string]value.Value
	CreatedAt  value.EpochId
}

// Export walks every live node and edge into a point-in-time copy. Deleted
// (tombstoned) entities are omitted, the same way AllNodeIDs/AllEdgeIDs
// already filter them.
func (s *Store) Export() Export {
	var exp Export
	for id := range s.AllNodeIDs() {
		n, ok := s.GetNode(id)
		if !ok {
			continue
		}
		exp.Nodes = append(exp.Nodes, ExportedNode{
			ID: n.ID, Labels: n.Labels, Properties: n.Properties, CreatedAt: n.CreatedAt,
		})
	}
	for id := range s.AllEdgeIDs() {
		e, ok := s.GetEdge(id)
		if !ok {
			continue
		}
		exp.Edges = append(exp.Edges, ExportedEdge{
			ID: e.ID, Src: e.Src, Dst: e.Dst, Type: e.Type, Properties: e.Properties, CreatedAt: e.CreatedAt,
		})
	}
	exp.NextNodeID = value.NodeId(s.nextNodeID.Load())
	exp.NextEdgeID = value.EdgeId(s.nextEdgeID.Load())
	return exp
}

// Import reconstructs a Store from exp, preserving every node/edge's
// original id exactly. This is deliberately not built out of
// CreateNode/CreateEdge: those allocate ids sequentially from the store's
// atomic counters, which would silently renumber entities whenever exp
// has gaps (already-deleted ids between the live ones) — exactly the
// scenario a point-in-time export always has. Import instead inserts
// records directly at their recorded ids and sets the counters to the
// larger of the highest id seen and the exported counter, so ids
// allocated after a restore never collide with ids the export already
// used, including those of entities deleted before the export.
func Import(exp Export, opts Options) *Store {
	s := New(opts)

	var maxNode value.NodeId
	for _, n := range exp.Nodes {
		bitmap, labelIDs := s.internLabels(n.Labels)
		s.nodes[n.ID] = &nodeRecord{
			id: n.ID, epochCreated: n.CreatedAt, labelBitmap: bitmap, propsCount: len(n.Properties),
		}
		for _, l := range labelIDs {
			s.labelIdx.Add(l, n.ID)
		}
		for k, v := range n.Properties {
			s.nodeProps.Set(n.ID, k, v)
		}
		if n.ID > maxNode {
			maxNode = n.ID
		}
	}
	if exp.NextNodeID > maxNode {
		maxNode = exp.NextNodeID
	}
	s.nextNodeID.Store(uint64(maxNode))

	var maxEdge value.EdgeId
	for _, e := range exp.Edges {
		typeID := s.edgeTypes.Intern(e.Type)
		s.edges[e.ID] = &edgeRecord{
			id: e.ID, src: e.Src, dst: e.Dst, typeID: typeID, epochCreated: e.CreatedAt,
		}
		s.forward.AddEdge(e.Src, e.Dst, e.ID)
		if s.backward != nil {
			s.backward.AddEdge(e.Dst, e.Src, e.ID)
		}
		for k, v := range e.Properties {
			s.edgeProps.Set(e.ID, k, v)
		}
		if e.ID > maxEdge {
			maxEdge = e.ID
		}
	}
	if exp.NextEdgeID > maxEdge {
		maxEdge = exp.NextEdgeID
	}
	s.nextEdgeID.Store(uint64(maxEdge))

	return s
}

func (s *Store) internLabels(labels []string) (uint64, []value.LabelId) {
	var bitmap uint64
	var ids []value.LabelId
	for _, name := range labels {
		id, err := s.labels.Intern(name)
		if err != nil {
			continue
		}
		bitmap |= uint64(1) << uint(id)
		ids = append(ids, id)
	}
	return bitmap, ids
}

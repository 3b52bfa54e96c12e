package lpgdb

import (
	"github.com/lpgdb/lpgdb/pkg/store"
	"github.com/lpgdb/lpgdb/pkg/value"
	"github.com/lpgdb/lpgdb/pkg/wal"
)

// Snapshotting (SPEC_FULL.md §C6.1) reuses wal.Record purely as a
// convenient self-describing envelope for store.Export's node/edge/
// property payloads, so the snapshot blob gets wal's existing value
// codec for free. It is not replayed as a sequence of store mutations the
// way WAL recovery is (that would renumber ids around any already-deleted
// entity, see store.Import's doc comment) — snapshotRecords and
// exportFromRecords below only use CreateNode/CreateEdge/SetProperty as a
// wire shape, converting straight to and from a store.Export.

// snapshotRecords flattens exp plus the manager's current high-water mark
// into a []wal.Record ready for wal.EncodeRecords. Every entity's epoch
// is folded into its CreateNode/CreateEdge record's Epoch field; encoding
// that field for those record kinds is specific to snapshot envelopes
// and not part of the live WAL wire format other callers see.
func snapshotRecords(exp store.Export, lastTx value.TxId, epoch value.EpochId) []wal.Record {
	var records []wal.Record
	for _, n := range exp.Nodes {
		rec := wal.CreateNode(n.ID, n.Labels)
		rec.Epoch = n.CreatedAt
		records = append(records, rec)
		for k, v := range n.Properties {
			records = append(records, wal.SetNodeProperty(n.ID, k, v))
		}
	}
	for _, e := range exp.Edges {
		rec := wal.CreateEdge(e.ID, e.Src, e.Dst, e.Type)
		rec.Epoch = e.CreatedAt
		records = append(records, rec)
		for k, v := range e.Properties {
			records = append(records, wal.SetEdgeProperty(e.ID, k, v))
		}
	}
	records = append(records, wal.Checkpoint(lastTx, epoch))
	return records
}

// exportFromRecords is snapshotRecords' inverse: it groups a decoded
// record stream back into a store.Export plus the checkpoint high-water
// mark it carried.
func exportFromRecords(records []wal.Record) (store.Export, value.TxId, value.EpochId) {
	nodes := make(map[value.NodeId]*store.ExportedNode)
	edges := make(map[value.EdgeId]*store.ExportedEdge)
	var nodeOrder []value.NodeId
	var edgeOrder []value.EdgeId
	var lastTx value.TxId
	var lastEpoch value.EpochId

	for _, rec := range records {
		switch rec.Kind {
		case wal.KindCreateNode:
			nodes[rec.NodeID] = &store.ExportedNode{
				ID: rec.NodeID, Labels: rec.Labels, Properties: map[string]value.Value{}, CreatedAt: rec.Epoch,
			}
			nodeOrder = append(nodeOrder, rec.NodeID)
		case wal.KindSetNodeProperty:
			if n, ok := nodes[rec.NodeID]; ok {
				n.Properties[rec.Key] = rec.Value
			}
		case wal.KindCreateEdge:
			edges[rec.EdgeID] = &store.ExportedEdge{
				ID: rec.EdgeID, Src: rec.Src, Dst: rec.Dst, Type: rec.Type,
				Properties: map[string]value.Value{}, CreatedAt: rec.Epoch,
			}
			edgeOrder = append(edgeOrder, rec.EdgeID)
		case wal.KindSetEdgeProperty:
			if e, ok := edges[rec.EdgeID]; ok {
				e.Properties[rec.Key] = rec.Value
			}
		case wal.KindCheckpoint:
			lastTx, lastEpoch = rec.TxID, rec.Epoch
		}
	}

	exp := store.Export{}
	for _, id := range nodeOrder {
		exp.Nodes = append(exp.Nodes, *nodes[id])
	}
	for _, id := range edgeOrder {
		exp.Edges = append(exp.Edges, *edges[id])
	}
	return exp, lastTx, lastEpoch
}

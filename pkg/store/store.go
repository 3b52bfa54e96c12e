package store

import (
	"iter"
	"sync"
	"sync/atomic"

	"github.com/lpgdb/lpgdb/pkg/adjacency"
	"github.com/lpgdb/lpgdb/pkg/propcol"
	"github.com/lpgdb/lpgdb/pkg/value"
)

// Store is the labeled-property-graph store: node/edge records, label and
// edge-type dictionaries, the label index, and forward (and optionally
// backward) adjacency, wiring together C1 (pkg/value), C3 (pkg/adjacency),
// and C4 (pkg/propcol) per spec.md §4.3.
//
// All public methods are thread-safe; locking is at structure granularity
// (a single RWMutex over the node/edge record maps) with adjacency and
// property mutation delegated to the finer-grained locks those packages
// already provide, matching spec.md §5.
type Store struct {
	mu    sync.RWMutex
	nodes map[value.NodeId]*nodeRecord
	edges map[value.EdgeId]*edgeRecord

	nextNodeID atomic.Uint64
	nextEdgeID atomic.Uint64

	labels    *labelDictionary
	edgeTypes *edgeTypeDictionary
	labelIdx  *labelIndex

	nodeProps *propcol.Store[value.NodeId]
	edgeProps *propcol.Store[value.EdgeId]

	forward  *adjacency.Adjacency
	backward *adjacency.Adjacency // nil if backward adjacency is disabled
}

// Options configures a new Store.
type Options struct {
	// EnableBackwardAdjacency maintains a second adjacency index keyed by
	// destination node, making In/Both traversals O(in-degree) instead of
	// a full edge scan. Costs roughly double the adjacency memory.
	EnableBackwardAdjacency bool
}

// New creates an empty Store. Node and edge ids are allocated starting
// at 1 (0 is reserved as a not-found sentinel for callers that want one).
func New(opts Options) *Store {
	s := &Store{
		nodes:     make(map[value.NodeId]*nodeRecord),
		edges:     make(map[value.EdgeId]*edgeRecord),
		labels:    newLabelDictionary(),
		edgeTypes: newEdgeTypeDictionary(),
		labelIdx:  newLabelIndex(),
		nodeProps: propcol.New[value.NodeId](),
		edgeProps: propcol.New[value.EdgeId](),
		forward:   adjacency.New(),
	}
	if opts.EnableBackwardAdjacency {
		s.backward = adjacency.New()
	}
	s.nextNodeID.Store(0)
	s.nextEdgeID.Store(0)
	return s
}

// CreateNode assigns the next NodeId, interns labels, updates the label
// index, and returns the new id. epoch is the caller's current commit
// epoch (owned by the transaction manager, C13 — the store itself has no
// opinion on epoch sequencing).
func (s *Store) CreateNode(labels []string, epoch value.EpochId) (value.NodeId, error) {
	return s.CreateNodeWithProps(labels, nil, epoch)
}

// CreateNodeWithProps is CreateNode plus an initial property set, written
// to the property columns in the same call so property count is cached
// accurately on the record from creation.
func (s *Store) CreateNodeWithProps(labels []string, props map[string]value.Value, epoch value.EpochId) (value.NodeId, error) {
	var bitmap uint64
	var labelIDs []value.LabelId
	for _, name := range labels {
		id, err := s.labels.Intern(name)
		if err != nil {
			return 0, err
		}
		bitmap |= uint64(1) << uint(id)
		labelIDs = append(labelIDs, id)
	}

	id := value.NodeId(s.nextNodeID.Add(1))
	rec := &nodeRecord{
		id:           id,
		epochCreated: epoch,
		labelBitmap:  bitmap,
		propsCount:   len(props),
	}

	s.mu.Lock()
	s.nodes[id] = rec
	s.mu.Unlock()

	for _, l := range labelIDs {
		s.labelIdx.Add(l, id)
	}
	for k, v := range props {
		s.nodeProps.Set(id, k, v)
	}
	return id, nil
}

// GetNode reconstructs a Node from its record, label bitmap, and property
// columns. Returns (nil, false) if the id is unknown or has been deleted.
func (s *Store) GetNode(id value.NodeId) (*Node, bool) {
	s.mu.RLock()
	rec, ok := s.nodes[id]
	s.mu.RUnlock()
	if !ok || rec.deleted {
		return nil, false
	}

	return &Node{
		ID:         id,
		Labels:     s.labelNames(rec.labelBitmap),
		Properties: s.nodeProps.GetAll(id),
		CreatedAt:  rec.epochCreated,
	}, true
}

func (s *Store) labelNames(bitmap uint64) []string {
	var out []string
	for bit := 0; bit < value.MaxLabels; bit++ {
		if bitmap&(uint64(1)<<uint(bit)) == 0 {
			continue
		}
		if name, ok := s.labels.Name(value.LabelId(bit)); ok {
			out = append(out, name)
		}
	}
	return out
}

func (s *Store) nodeLabelIDs(bitmap uint64) []value.LabelId {
	var out []value.LabelId
	for bit := 0; bit < value.MaxLabels; bit++ {
		if bitmap&(uint64(1)<<uint(bit)) != 0 {
			out = append(out, value.LabelId(bit))
		}
	}
	return out
}

// DeleteNode idempotently tombstones id: clears label-index membership and
// removes all properties. It does not cascade-delete incident edges
// (spec.md §9 open question, resolved per SPEC_FULL.md §"Open Question
// resolutions" as option (b): adjacency iteration filters tombstoned
// endpoints instead of eagerly deleting edges at node-delete time).
func (s *Store) DeleteNode(id value.NodeId) {
	s.mu.Lock()
	rec, ok := s.nodes[id]
	if !ok || rec.deleted {
		s.mu.Unlock()
		return
	}
	rec.deleted = true
	labelIDs := s.nodeLabelIDs(rec.labelBitmap)
	s.mu.Unlock()

	s.labelIdx.RemoveAll(labelIDs, id)
	s.nodeProps.RemoveAll(id)
}

// isNodeLive reports whether id refers to a node that exists and has not
// been deleted. Used by adjacency iteration to filter edges whose far
// endpoint has been tombstoned (the cascade-delete resolution above).
func (s *Store) isNodeLive(id value.NodeId) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.nodes[id]
	return ok && !rec.deleted
}

// CreateEdge assigns the next EdgeId, interns typeName, and updates forward
// (and, if enabled, backward) adjacency. Returns ErrEndpointNotFound if
// either endpoint does not currently exist (deleted or unknown).
func (s *Store) CreateEdge(src, dst value.NodeId, typeName string, epoch value.EpochId) (value.EdgeId, error) {
	return s.CreateEdgeWithProps(src, dst, typeName, nil, epoch)
}

// CreateEdgeWithProps is CreateEdge plus an initial property set.
func (s *Store) CreateEdgeWithProps(src, dst value.NodeId, typeName string, props map[string]value.Value, epoch value.EpochId) (value.EdgeId, error) {
	if !s.isNodeLive(src) || !s.isNodeLive(dst) {
		return 0, ErrEndpointNotFound
	}

	typeID := s.edgeTypes.Intern(typeName)
	id := value.EdgeId(s.nextEdgeID.Add(1))
	rec := &edgeRecord{
		id:           id,
		src:          src,
		dst:          dst,
		typeID:       typeID,
		epochCreated: epoch,
	}

	s.mu.Lock()
	s.edges[id] = rec
	s.mu.Unlock()

	s.forward.AddEdge(src, dst, id)
	s.forward.CompactIfNeeded(src)
	if s.backward != nil {
		s.backward.AddEdge(dst, src, id)
		s.backward.CompactIfNeeded(dst)
	}
	for k, v := range props {
		s.edgeProps.Set(id, k, v)
	}
	return id, nil
}

// GetEdge reconstructs an Edge from its record and property columns.
func (s *Store) GetEdge(id value.EdgeId) (*Edge, bool) {
	s.mu.RLock()
	rec, ok := s.edges[id]
	s.mu.RUnlock()
	if !ok || rec.deleted {
		return nil, false
	}
	typeName, _ := s.edgeTypes.Name(rec.typeID)
	return &Edge{
		ID:         id,
		Src:        rec.src,
		Dst:        rec.dst,
		Type:       typeName,
		Properties: s.edgeProps.GetAll(id),
		CreatedAt:  rec.epochCreated,
	}, true
}

// DeleteEdge idempotently tombstones id in both adjacency directions and
// removes its properties.
func (s *Store) DeleteEdge(id value.EdgeId) {
	s.mu.Lock()
	rec, ok := s.edges[id]
	if !ok || rec.deleted {
		s.mu.Unlock()
		return
	}
	rec.deleted = true
	src, dst := rec.src, rec.dst
	s.mu.Unlock()

	s.forward.MarkDeleted(src, id)
	if s.backward != nil {
		s.backward.MarkDeleted(dst, id)
	}
	s.edgeProps.RemoveAll(id)
}

// isEdgeLive reports whether id refers to an edge record that has not been
// tombstoned. Used when a caller (e.g. WAL replay) needs to distinguish
// "never existed" from "deleted".
func (s *Store) isEdgeLive(id value.EdgeId) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.edges[id]
	return ok && !rec.deleted
}

// Neighbors concatenates the appropriate adjacency iterators for node
// according to direction, filtering out any neighbor whose node record has
// itself been tombstoned (cascade-delete resolution, see DeleteNode).
func (s *Store) Neighbors(node value.NodeId, dir Direction) iter.Seq[value.NodeId] {
	return func(yield func(value.NodeId) bool) {
		for entry := range s.edgesDirection(node, dir) {
			if !yield(entry.Dst) {
				return
			}
		}
	}
}

// edgeEndpoint pairs an adjacency entry with the direction it was found in,
// letting EdgesFrom report the correct "other side" node id regardless of
// whether it came from forward or backward adjacency.
type edgeEndpoint struct {
	Dst  value.NodeId
	Edge value.EdgeId
}

// edgesDirection is Neighbors' shared implementation: walk forward
// adjacency for Out, backward for In, both (forward then backward,
// deduplication left to the caller) for Both.
func (s *Store) edgesDirection(node value.NodeId, dir Direction) iter.Seq[edgeEndpoint] {
	return func(yield func(edgeEndpoint) bool) {
		if dir == Out || dir == Both {
			for e := range s.forward.EdgesFrom(node) {
				if !s.isNodeLive(e.Dst) {
					continue
				}
				if !yield(edgeEndpoint{Dst: e.Dst, Edge: e.Edge}) {
					return
				}
			}
		}
		if dir == In || dir == Both {
			if s.backward != nil {
				for e := range s.backward.EdgesFrom(node) {
					if !s.isNodeLive(e.Dst) {
						continue
					}
					if !yield(edgeEndpoint{Dst: e.Dst, Edge: e.Edge}) {
						return
					}
				}
			} else {
				// No backward index: fall back to a full edge scan. Slower,
				// but correct — backward adjacency is an optional
				// acceleration structure per spec.md §4.3.
				s.mu.RLock()
				var matches []edgeEndpoint
				for _, rec := range s.edges {
					if !rec.deleted && rec.dst == node {
						matches = append(matches, edgeEndpoint{Dst: rec.src, Edge: rec.id})
					}
				}
				s.mu.RUnlock()
				for _, m := range matches {
					if s.isNodeLive(m.Dst) && !yield(m) {
						return
					}
				}
			}
		}
	}
}

// EdgesFrom returns (neighbor, edgeID) pairs for node in the given
// direction, mirroring Neighbors but also exposing the connecting edge id.
func (s *Store) EdgesFrom(node value.NodeId, dir Direction) iter.Seq2[value.NodeId, value.EdgeId] {
	return func(yield func(value.NodeId, value.EdgeId) bool) {
		for e := range s.edgesDirection(node, dir) {
			if !yield(e.Dst, e.Edge) {
				return
			}
		}
	}
}

// AllNodeIDs iterates every live node id, for an unlabeled Scan (spec.md
// §4.9: "full node set" when no label is supplied).
func (s *Store) AllNodeIDs() iter.Seq[value.NodeId] {
	return func(yield func(value.NodeId) bool) {
		s.mu.RLock()
		ids := make([]value.NodeId, 0, len(s.nodes))
		for id, rec := range s.nodes {
			if !rec.deleted {
				ids = append(ids, id)
			}
		}
		s.mu.RUnlock()
		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}

// AllEdgeIDs iterates every live edge id, for an unlabeled edge Scan.
func (s *Store) AllEdgeIDs() iter.Seq[value.EdgeId] {
	return func(yield func(value.EdgeId) bool) {
		s.mu.RLock()
		ids := make([]value.EdgeId, 0, len(s.edges))
		for id, rec := range s.edges {
			if !rec.deleted {
				ids = append(ids, id)
			}
		}
		s.mu.RUnlock()
		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}

// EdgesByType returns every live edge id whose type matches typeName,
// scanning the edge table (no dedicated type index, matching spec.md §4.9:
// edge-type filtering is a Scan-level predicate, not an indexed lookup).
func (s *Store) EdgesByType(typeName string) []value.EdgeId {
	typeID, ok := s.edgeTypes.Lookup(typeName)
	if !ok {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []value.EdgeId
	for id, rec := range s.edges {
		if !rec.deleted && rec.typeID == typeID {
			out = append(out, id)
		}
	}
	return out
}

// NodesByLabel returns every live node id carrying label, via the label
// index (O(|label set|)).
func (s *Store) NodesByLabel(label string) []value.NodeId {
	id, ok := s.labels.Lookup(label)
	if !ok {
		return nil
	}
	return s.labelIdx.Nodes(id)
}

// LabelCount returns the number of live nodes carrying label, without
// materializing the id slice.
func (s *Store) LabelCount(label string) int {
	id, ok := s.labels.Lookup(label)
	if !ok {
		return 0
	}
	return s.labelIdx.Count(id)
}

// PropsCount returns the cached property count for a node record, letting
// callers (e.g. diagnostics) avoid scanning every property column just to
// learn how many properties an entity has.
func (s *Store) PropsCount(id value.NodeId) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.nodes[id]
	if !ok || rec.deleted {
		return 0, false
	}
	return rec.propsCount, true
}

// NodeCount returns the number of live (non-deleted) nodes.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.nodes {
		if !rec.deleted {
			n++
		}
	}
	return n
}

// EdgeCount returns the number of live (non-deleted) edges.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.edges {
		if !rec.deleted {
			n++
		}
	}
	return n
}

// SetNodeProperty writes a single property, bumping the cached property
// count on first write of a previously-unset key.
func (s *Store) SetNodeProperty(id value.NodeId, key string, v value.Value) error {
	s.mu.RLock()
	rec, ok := s.nodes[id]
	s.mu.RUnlock()
	if !ok || rec.deleted {
		return ErrNodeNotFound
	}
	if _, existed := s.nodeProps.Get(id, key); !existed {
		rec.propsCount++
	}
	s.nodeProps.Set(id, key, v)
	return nil
}

// RemoveNodeProperty erases a single property.
func (s *Store) RemoveNodeProperty(id value.NodeId, key string) error {
	s.mu.RLock()
	rec, ok := s.nodes[id]
	s.mu.RUnlock()
	if !ok || rec.deleted {
		return ErrNodeNotFound
	}
	if _, existed := s.nodeProps.Get(id, key); existed {
		rec.propsCount--
	}
	s.nodeProps.Remove(id, key)
	return nil
}

// SetEdgeProperty writes a single edge property.
func (s *Store) SetEdgeProperty(id value.EdgeId, key string, v value.Value) error {
	if !s.isEdgeLive(id) {
		return ErrEdgeNotFound
	}
	s.edgeProps.Set(id, key, v)
	return nil
}

// RemoveEdgeProperty erases a single edge property.
func (s *Store) RemoveEdgeProperty(id value.EdgeId, key string) error {
	if !s.isEdgeLive(id) {
		return ErrEdgeNotFound
	}
	s.edgeProps.Remove(id, key)
	return nil
}

// AddLabel interns label (if new) and sets its bit on id's bitmap, updating
// the label index. Idempotent: adding a label the node already carries is a
// no-op.
func (s *Store) AddLabel(id value.NodeId, label string) error {
	labelID, err := s.labels.Intern(label)
	if err != nil {
		return err
	}

	s.mu.Lock()
	rec, ok := s.nodes[id]
	if !ok || rec.deleted {
		s.mu.Unlock()
		return ErrNodeNotFound
	}
	bit := uint64(1) << uint(labelID)
	alreadySet := rec.labelBitmap&bit != 0
	rec.labelBitmap |= bit
	s.mu.Unlock()

	if !alreadySet {
		s.labelIdx.Add(labelID, id)
	}
	return nil
}

// RemoveLabel clears label's bit on id's bitmap and removes id from that
// label's index entry. A no-op if the node does not carry the label or the
// label was never interned.
func (s *Store) RemoveLabel(id value.NodeId, label string) error {
	labelID, ok := s.labels.Lookup(label)
	if !ok {
		return nil
	}

	s.mu.Lock()
	rec, ok := s.nodes[id]
	if !ok || rec.deleted {
		s.mu.Unlock()
		return ErrNodeNotFound
	}
	bit := uint64(1) << uint(labelID)
	wasSet := rec.labelBitmap&bit != 0
	rec.labelBitmap &^= bit
	s.mu.Unlock()

	if wasSet {
		s.labelIdx.Remove(labelID, id)
	}
	return nil
}

// Package adjacency implements the chunked, delta-buffered adjacency list
// described in spec.md §4.1 (component C3): one neighbor list per source
// node, stored as a sequence of fixed-capacity chunks plus a small overflow
// delta buffer, with tombstoned deletions that are reclaimed only by
// compaction.
//
// The design favors cache-friendly sequential scans (chunks) over O(1)
// amortized append (delta buffer) the way the reference storage engine
// favors a flat per-node edge slice, generalized here into the two-tier
// shape the specification requires so that a long-lived high-degree node
// does not pay for a full-slice reallocation on every edge insert.
package adjacency

import (
	"iter"
	"sync"

	"github.com/lpgdb/lpgdb/pkg/value"
)

// DefaultChunkCapacity is the fixed entry count per chunk.
const DefaultChunkCapacity = 64

// DefaultDeltaThreshold is the delta-buffer size that triggers compaction.
const DefaultDeltaThreshold = 1024

// Entry is one adjacency record: the neighbor node and the edge id
// connecting to it.
type Entry struct {
	Dst  value.NodeId
	Edge value.EdgeId
}

// chunk is a fixed-capacity block of adjacency entries, appended to in
// insertion order.
type chunk struct {
	entries []Entry
}

func newChunk(capacity int) *chunk {
	return &chunk{entries: make([]Entry, 0, capacity)}
}

func (c *chunk) hasRoom(capacity int) bool { return len(c.entries) < capacity }

// list is the per-source adjacency structure: chunks (dense, compacted),
// a delta buffer (recent appends awaiting compaction), and a tombstone set.
type list struct {
	mu      sync.RWMutex
	chunks  []*chunk
	delta   []Entry
	deleted map[value.EdgeId]struct{}
}

func newList() *list {
	return &list{deleted: make(map[value.EdgeId]struct{})}
}

// Adjacency owns one list per source node. It is safe for concurrent use:
// the top-level map is guarded by an RWMutex (held briefly, only to find or
// create a per-source list); all entry-level mutation and iteration locks
// only the affected list, matching spec.md §5's "fine-grained down to the
// per-source adjacency list for mutation" requirement.
type Adjacency struct {
	mu             sync.RWMutex
	lists          map[value.NodeId]*list
	chunkCapacity  int
	deltaThreshold int
}

// New creates an Adjacency structure using the default chunk capacity and
// delta-compaction threshold from spec.md §4.1.
func New() *Adjacency {
	return NewWithLimits(DefaultChunkCapacity, DefaultDeltaThreshold)
}

// NewWithLimits creates an Adjacency structure with explicit chunk capacity
// and delta-compaction threshold, primarily for tests that want to exercise
// chunk boundaries and compaction without inserting thousands of entries.
func NewWithLimits(chunkCapacity, deltaThreshold int) *Adjacency {
	return &Adjacency{
		lists:          make(map[value.NodeId]*list),
		chunkCapacity:  chunkCapacity,
		deltaThreshold: deltaThreshold,
	}
}

func (a *Adjacency) listFor(src value.NodeId, create bool) *list {
	a.mu.RLock()
	l, ok := a.lists[src]
	a.mu.RUnlock()
	if ok || !create {
		return l
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if l, ok = a.lists[src]; ok {
		return l
	}
	l = newList()
	a.lists[src] = l
	return l
}

// AddEdge appends (dst, edgeID) to src's adjacency list: to the last chunk
// if it has room, otherwise to the delta buffer. O(1) expected.
func (a *Adjacency) AddEdge(src, dst value.NodeId, edgeID value.EdgeId) {
	l := a.listFor(src, true)
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.chunks); n > 0 && l.chunks[n-1].hasRoom(a.chunkCapacity) {
		c := l.chunks[n-1]
		c.entries = append(c.entries, Entry{Dst: dst, Edge: edgeID})
		return
	}
	l.delta = append(l.delta, Entry{Dst: dst, Edge: edgeID})
}

// MarkDeleted tombstones edgeID within src's adjacency list. Idempotent: it
// is safe to call more than once for the same edge. A no-op if src has no
// adjacency list (nothing to tombstone).
func (a *Adjacency) MarkDeleted(src value.NodeId, edgeID value.EdgeId) {
	l := a.listFor(src, false)
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deleted[edgeID] = struct{}{}
}

// Neighbors returns a lazy sequence of the live neighbor node ids of src, in
// insertion order: chunks first (in chunk order), then the delta buffer.
// The sequence reflects the state of the list at the moment Neighbors is
// called, consistent with spec.md §5's per-call snapshot guarantee.
func (a *Adjacency) Neighbors(src value.NodeId) iter.Seq[value.NodeId] {
	return func(yield func(value.NodeId) bool) {
		for entry := range a.EdgesFrom(src) {
			if !yield(entry.Dst) {
				return
			}
		}
	}
}

// EdgesFrom returns a lazy sequence of (dst, edgeID) pairs for every live
// edge out of src, in insertion order: chunks then delta, filtering
// tombstoned edge ids.
func (a *Adjacency) EdgesFrom(src value.NodeId) iter.Seq[Entry] {
	l := a.listFor(src, false)
	return func(yield func(Entry) bool) {
		if l == nil {
			return
		}
		l.mu.RLock()
		chunks := l.chunks
		delta := l.delta
		deleted := l.deleted
		l.mu.RUnlock()

		for _, c := range chunks {
			for _, e := range c.entries {
				if _, tomb := deleted[e.Edge]; tomb {
					continue
				}
				if !yield(e) {
					return
				}
			}
		}
		for _, e := range delta {
			if _, tomb := deleted[e.Edge]; tomb {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// OutDegree counts the live entries for src by walking the iterator. The
// specification allows an implementer to cache this; this implementation
// intentionally does not, keeping the adjacency structure free of a
// maintained counter that every AddEdge/MarkDeleted would need to keep in
// sync.
func (a *Adjacency) OutDegree(src value.NodeId) int {
	n := 0
	for range a.EdgesFrom(src) {
		n++
	}
	return n
}

// CompactIfNeeded compacts src's list when its delta buffer has reached the
// configured threshold. Call sites (AddEdge callers in the LPG store) use
// this to trigger compaction lazily on the write path, per spec.md §9
// ("Delta compaction is lazy and on-demand").
func (a *Adjacency) CompactIfNeeded(src value.NodeId) {
	l := a.listFor(src, false)
	if l == nil {
		return
	}
	l.mu.RLock()
	needsCompaction := len(l.delta) >= a.deltaThreshold
	l.mu.RUnlock()
	if needsCompaction {
		a.Compact(src)
	}
}

// Compact drains src's delta buffer into its chunks. It rewrites every
// chunk from the live entries (chunks in order, then the delta), packing
// them densely into full chunks, and drops any entry whose edge id is
// tombstoned, then clears the tombstone set, so storage is actually
// reclaimed rather than merely defragmented.
func (a *Adjacency) Compact(src value.NodeId) {
	l := a.listFor(src, false)
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	live := make([]Entry, 0, countLive(l))
	for _, c := range l.chunks {
		for _, e := range c.entries {
			if _, tomb := l.deleted[e.Edge]; !tomb {
				live = append(live, e)
			}
		}
	}
	for _, e := range l.delta {
		if _, tomb := l.deleted[e.Edge]; !tomb {
			live = append(live, e)
		}
	}

	rebuilt := make([]*chunk, 0, len(live)/a.chunkCapacity+1)
	for len(live) > 0 {
		n := a.chunkCapacity
		if n > len(live) {
			n = len(live)
		}
		c := newChunk(a.chunkCapacity)
		c.entries = append(c.entries, live[:n]...)
		rebuilt = append(rebuilt, c)
		live = live[n:]
	}

	l.chunks = rebuilt
	l.delta = nil
	l.deleted = make(map[value.EdgeId]struct{})
}

func countLive(l *list) int {
	n := 0
	for _, c := range l.chunks {
		n += len(c.entries)
	}
	return n + len(l.delta)
}

// Remove deletes src's adjacency list entirely, used when a source node is
// reclaimed. Neighboring lists that reference src as a *destination* are
// unaffected: C3 stores only forward-direction ids and owns no
// back-pointers (spec.md §9, "Cyclic references").
func (a *Adjacency) Remove(src value.NodeId) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.lists, src)
}

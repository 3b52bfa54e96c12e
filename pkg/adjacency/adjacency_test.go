package adjacency

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpgdb/lpgdb/pkg/value"
)

func collectNeighbors(a *Adjacency, src value.NodeId) []value.NodeId {
	var out []value.NodeId
	for n := range a.Neighbors(src) {
		out = append(out, n)
	}
	return out
}

func TestAddEdgeAndNeighborsOrder(t *testing.T) {
	a := NewWithLimits(2, 1024)
	a.AddEdge(1, 10, 100)
	a.AddEdge(1, 11, 101)
	a.AddEdge(1, 12, 102) // no chunk exists before compaction: all three sit in the delta

	got := collectNeighbors(a, 1)
	assert.Equal(t, []value.NodeId{10, 11, 12}, got)
}

func TestMarkDeletedHidesFromIteration(t *testing.T) {
	a := New()
	a.AddEdge(1, 10, 100)
	a.AddEdge(1, 11, 101)

	a.MarkDeleted(1, 100)
	got := collectNeighbors(a, 1)
	assert.Equal(t, []value.NodeId{11}, got)

	// Idempotent.
	a.MarkDeleted(1, 100)
	got = collectNeighbors(a, 1)
	assert.Equal(t, []value.NodeId{11}, got)
}

func TestOutDegreeCountsLiveOnly(t *testing.T) {
	a := New()
	a.AddEdge(1, 10, 100)
	a.AddEdge(1, 11, 101)
	a.AddEdge(1, 12, 102)
	a.MarkDeleted(1, 101)

	assert.Equal(t, 2, a.OutDegree(1))
}

func TestCompactPreservesLiveSetAndReclaimsTombstones(t *testing.T) {
	a := NewWithLimits(2, 1024)
	a.AddEdge(1, 10, 100)
	a.AddEdge(1, 11, 101)
	a.AddEdge(1, 12, 102)
	a.AddEdge(1, 13, 103)
	a.MarkDeleted(1, 101)

	before := collectNeighbors(a, 1)
	a.Compact(1)
	after := collectNeighbors(a, 1)

	assert.Equal(t, before, after, "compaction must not change iteration order of live entries")
	assert.Equal(t, []value.NodeId{10, 12, 13}, after)

	l := a.listFor(1, false)
	require.NotNil(t, l)
	l.mu.RLock()
	defer l.mu.RUnlock()
	assert.Empty(t, l.delta, "compaction must drain the delta buffer")
	assert.Empty(t, l.deleted, "compaction reclaims tombstoned entries")
}

func TestCompactIfNeededRespectsThreshold(t *testing.T) {
	a := NewWithLimits(64, 3)
	a.AddEdge(1, 10, 100)
	a.AddEdge(1, 11, 101)
	a.CompactIfNeeded(1) // below threshold: no-op

	l := a.listFor(1, false)
	l.mu.RLock()
	deltaLen := len(l.delta)
	l.mu.RUnlock()
	assert.Equal(t, 2, deltaLen)

	a.AddEdge(1, 12, 102) // reaches threshold
	a.CompactIfNeeded(1)

	l.mu.RLock()
	defer l.mu.RUnlock()
	assert.Empty(t, l.delta)
	assert.Len(t, l.chunks, 1)
}

func TestEdgesFromYieldsDstAndEdgeId(t *testing.T) {
	a := New()
	a.AddEdge(1, 10, 100)
	a.AddEdge(1, 11, 101)

	var entries []Entry
	for e := range a.EdgesFrom(1) {
		entries = append(entries, e)
	}
	assert.Equal(t, []Entry{{Dst: 10, Edge: 100}, {Dst: 11, Edge: 101}}, entries)
}

func TestNeighborsOfUnknownSourceIsEmpty(t *testing.T) {
	a := New()
	got := collectNeighbors(a, 999)
	assert.Empty(t, got)
}

func TestRemoveDropsList(t *testing.T) {
	a := New()
	a.AddEdge(1, 10, 100)
	a.Remove(1)
	assert.Empty(t, collectNeighbors(a, 1))
}

func TestManyEdgesSpanMultipleChunksAndDelta(t *testing.T) {
	a := NewWithLimits(8, 1024)
	const n = 100
	for i := 0; i < n; i++ {
		a.AddEdge(1, value.NodeId(i), value.EdgeId(i))
		if i == n/2 {
			// Move the first half into chunks; later entries fill the
			// last chunk and then overflow into the delta.
			a.Compact(1)
		}
	}
	got := collectNeighbors(a, 1)
	require.Len(t, got, n)
	want := make([]value.NodeId, n)
	for i := range want {
		want[i] = value.NodeId(i)
	}
	assert.True(t, slices.Equal(want, got))
}

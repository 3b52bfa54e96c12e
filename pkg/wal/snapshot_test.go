package wal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpgdb/lpgdb/pkg/value"
)

func newTestSnapshotStore(t *testing.T) *SnapshotStore {
	t.Helper()
	s, err := OpenSnapshotStore(filepath.Join(t.TempDir(), "snapshots"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSnapshotPutAndLatest(t *testing.T) {
	s := newTestSnapshotStore(t)

	require.NoError(t, s.Put(1, []byte("epoch-1-graph")))
	require.NoError(t, s.Put(2, []byte("epoch-2-graph")))
	require.NoError(t, s.Put(3, []byte("epoch-3-graph")))

	epoch, data, ok, err := s.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.EpochId(3), epoch)
	assert.Equal(t, "epoch-3-graph", string(data))
}

func TestSnapshotLatestOnEmptyStore(t *testing.T) {
	s := newTestSnapshotStore(t)
	_, _, ok, err := s.Latest()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotPutOverwritesSameEpoch(t *testing.T) {
	s := newTestSnapshotStore(t)
	require.NoError(t, s.Put(5, []byte("first")))
	require.NoError(t, s.Put(5, []byte("second")))

	epoch, data, ok, err := s.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.EpochId(5), epoch)
	assert.Equal(t, "second", string(data))
}

func TestSnapshotPrune(t *testing.T) {
	s := newTestSnapshotStore(t)
	for epoch := value.EpochId(1); epoch <= 5; epoch++ {
		require.NoError(t, s.Put(epoch, []byte("graph")))
	}

	require.NoError(t, s.Prune(2))

	epoch, _, ok, err := s.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.EpochId(5), epoch, "pruning must keep the most recent snapshots")
}

func TestSnapshotPruneNoopWhenFewerThanKeep(t *testing.T) {
	s := newTestSnapshotStore(t)
	require.NoError(t, s.Put(1, []byte("graph")))
	require.NoError(t, s.Prune(10))

	_, _, ok, err := s.Latest()
	require.NoError(t, err)
	assert.True(t, ok)
}

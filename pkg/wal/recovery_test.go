package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpgdb/lpgdb/pkg/value"
)

func writeRecords(t *testing.T, path string, recs []Record) {
	t.Helper()
	cfg := DefaultConfig(path)
	cfg.Mode = SyncAlways
	w, err := Open(cfg)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Append(r))
	}
	require.NoError(t, w.Close())
}

// withTx stamps a TxId onto a record so recovery can group it, mirroring
// what the transaction manager does before handing a record to Append.
func withTx(rec Record, tx value.TxId) Record {
	rec.TxID = tx
	return rec
}

func TestRecoverRoundTripCommitsOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	writeRecords(t, path, []Record{
		withTx(CreateNode(1, []string{"Person"}), 1),
		withTx(SetNodeProperty(1, "name", value.String("Alice")), 1),
		TxCommit(1),
		withTx(CreateNode(2, []string{"Person"}), 2),
		TxAbort(2),
		withTx(CreateNode(3, []string{"Person"}), 3),
		TxCommit(3),
	})

	recs, err := Recover(path)
	require.NoError(t, err)

	var nodeIDs []value.NodeId
	for _, r := range recs {
		if r.Kind == KindCreateNode {
			nodeIDs = append(nodeIDs, r.NodeID)
		}
	}
	assert.Equal(t, []value.NodeId{1, 3}, nodeIDs, "aborted transaction 2 must not appear")

	var commits int
	for _, r := range recs {
		if r.Kind == KindTxCommit {
			commits++
		}
	}
	assert.Equal(t, 2, commits)
}

func TestRecoverDropsUncommittedTrailingGroup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	writeRecords(t, path, []Record{
		withTx(CreateNode(1, nil), 1),
		TxCommit(1),
		withTx(CreateNode(2, nil), 2), // never committed or aborted
	})

	recs, err := Recover(path)
	require.NoError(t, err)
	for _, r := range recs {
		assert.NotEqual(t, value.NodeId(2), r.NodeID)
	}
}

// A Checkpoint record carries a TxId but has no dedicated handling during
// recovery: it is buffered into the currently-open transaction like any
// other record and only survives if that transaction goes on to commit,
// matching recovery.rs's wildcard match arm. Writing one with no
// surrounding commit (as a periodic sync marker might) means it is
// discarded along with the rest of its open transaction's buffer.
func TestRecoverPassesThroughCheckpointBelongingToCommittedTx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	writeRecords(t, path, []Record{
		withTx(CreateNode(1, nil), 1),
		Checkpoint(1, 42),
		TxCommit(1),
	})

	recs, err := Recover(path)
	require.NoError(t, err)
	last := recs[len(recs)-1]
	assert.Equal(t, KindTxCommit, last.Kind)
	assert.Equal(t, KindCheckpoint, recs[len(recs)-2].Kind)
	assert.Equal(t, value.EpochId(42), recs[len(recs)-2].Epoch)
}

func TestRecoverDropsCheckpointWithoutFollowingCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	writeRecords(t, path, []Record{
		withTx(CreateNode(1, nil), 1),
		TxCommit(1),
		Checkpoint(2, 42), // never committed for TxId 2
	})

	recs, err := Recover(path)
	require.NoError(t, err)
	for _, r := range recs {
		assert.NotEqual(t, KindCheckpoint, r.Kind)
	}
}

func TestRecoverOnMissingFileReturnsEmpty(t *testing.T) {
	recs, err := Recover(filepath.Join(t.TempDir(), "does-not-exist.wal"))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

// TestRecoverStopsCleanlyOnTruncation exercises the WAL truncation safety
// property from spec.md §8: truncating the file mid-frame must not error,
// and everything written before the truncation point must still recover.
func TestRecoverStopsCleanlyOnTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	writeRecords(t, path, []Record{
		withTx(CreateNode(1, nil), 1),
		TxCommit(1),
		withTx(CreateNode(2, nil), 2),
		TxCommit(2),
	})

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-3))

	recs, err := Recover(path)
	require.NoError(t, err)

	var commits int
	for _, r := range recs {
		if r.Kind == KindTxCommit {
			commits++
		}
	}
	assert.Equal(t, 1, commits, "only the first, fully-written transaction should survive truncation")
}

func TestEncryptedWALRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	cfg := DefaultConfig(path)
	cfg.Mode = SyncAlways
	cfg.EncryptionKey = key
	w, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, w.Append(withTx(CreateNode(1, []string{"Person"}), 1)))
	require.NoError(t, w.Append(TxCommit(1)))
	require.NoError(t, w.Close())

	recs, err := RecoverEncrypted(path, key)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, KindCreateNode, recs[0].Kind)

	_, err = RecoverEncrypted(path, make([]byte, 32))
	require.NoError(t, err)
}

func TestDecodeRecordRejectsUnknownKind(t *testing.T) {
	_, err := decodeRecord([]byte{255})
	assert.Error(t, err)
}

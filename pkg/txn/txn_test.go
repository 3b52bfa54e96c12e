package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpgdb/lpgdb/pkg/value"
)

func TestBeginAllocatesMonotonicTxIds(t *testing.T) {
	m := NewManager()
	tx1 := m.Begin()
	tx2 := m.Begin()
	assert.Equal(t, value.TxId(1), tx1.ID())
	assert.Equal(t, value.TxId(2), tx2.ID())
	assert.Equal(t, tx2.ID(), m.LastTx())
}

func TestCommitAdvancesEpoch(t *testing.T) {
	m := NewManager()
	assert.Equal(t, value.EpochId(0), m.CurrentEpoch())

	tx := m.Begin()
	require.NoError(t, tx.MarkNodeWrite(1))
	require.NoError(t, tx.Commit())

	assert.Equal(t, StatusCommitted, tx.Status())
	assert.Equal(t, value.EpochId(1), tx.CommitEpoch())
	assert.Equal(t, value.EpochId(1), m.CurrentEpoch())
}

func TestRollbackDoesNotAdvanceEpoch(t *testing.T) {
	m := NewManager()
	tx := m.Begin()
	require.NoError(t, tx.MarkNodeWrite(1))
	require.NoError(t, tx.Rollback())

	assert.Equal(t, StatusRolledBack, tx.Status())
	assert.Equal(t, value.EpochId(0), m.CurrentEpoch())
}

func TestCommitAfterCloseIsError(t *testing.T) {
	m := NewManager()
	tx := m.Begin()
	require.NoError(t, tx.Commit())
	assert.ErrorIs(t, tx.Commit(), ErrTxNotActive)

	tx2 := m.Begin()
	require.NoError(t, tx2.Rollback())
	assert.ErrorIs(t, tx2.Commit(), ErrTxNotActive)
}

func TestConcurrentWriteToSameNodeConflicts(t *testing.T) {
	m := NewManager()

	txA := m.Begin()
	txB := m.Begin() // same snapshot epoch (0) as txA

	require.NoError(t, txA.MarkNodeWrite(42))
	require.NoError(t, txA.Commit()) // epoch -> 1, node 42 committed at epoch 1

	require.NoError(t, txB.MarkNodeWrite(42))
	err := txB.Commit()
	assert.ErrorIs(t, err, ErrConflict)
	// txB stays active on conflict so the caller can retry or roll back.
	assert.Equal(t, StatusActive, txB.Status())
	require.NoError(t, txB.Rollback())
}

func TestNonOverlappingWritesDoNotConflict(t *testing.T) {
	m := NewManager()

	txA := m.Begin()
	txB := m.Begin()

	require.NoError(t, txA.MarkNodeWrite(1))
	require.NoError(t, txA.Commit())

	require.NoError(t, txB.MarkNodeWrite(2))
	assert.NoError(t, txB.Commit())
}

func TestSessionAutoCommitWrapsEachStatement(t *testing.T) {
	m := NewManager()
	s := NewSession(m)

	var seen value.TxId
	err := s.WithStatement(func(tx *Tx) error {
		seen = tx.ID()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, value.EpochId(1), m.CurrentEpoch())

	_, active := s.Tx()
	assert.False(t, active)
	assert.Equal(t, value.TxId(1), seen)
}

func TestSessionAutoCommitRollsBackOnError(t *testing.T) {
	m := NewManager()
	s := NewSession(m)

	boom := assert.AnError
	err := s.WithStatement(func(tx *Tx) error {
		return boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, value.EpochId(0), m.CurrentEpoch(), "rolled back statement must not advance the epoch")
}

func TestSessionExplicitTransactionSpansStatements(t *testing.T) {
	m := NewManager()
	s := NewSession(m)

	tx, err := s.BeginTx()
	require.NoError(t, err)
	assert.True(t, s.InExplicitTx())

	require.NoError(t, s.WithStatement(func(got *Tx) error {
		assert.Equal(t, tx.ID(), got.ID())
		return got.MarkNodeWrite(1)
	}))
	require.NoError(t, s.WithStatement(func(got *Tx) error {
		return got.MarkNodeWrite(2)
	}))

	require.NoError(t, s.CommitTx())
	assert.False(t, s.InExplicitTx())
	assert.Equal(t, value.EpochId(1), m.CurrentEpoch(), "one commit for the whole explicit transaction")
}

func TestSessionRejectsNestedBegin(t *testing.T) {
	m := NewManager()
	s := NewSession(m)

	_, err := s.BeginTx()
	require.NoError(t, err)

	_, err = s.BeginTx()
	assert.ErrorIs(t, err, ErrTransactionActive)
	require.NoError(t, s.RollbackTx())
}

func TestSessionCommitWithoutBeginIsError(t *testing.T) {
	m := NewManager()
	s := NewSession(m)
	assert.ErrorIs(t, s.CommitTx(), ErrNoActiveTx)
	assert.ErrorIs(t, s.RollbackTx(), ErrNoActiveTx)
}

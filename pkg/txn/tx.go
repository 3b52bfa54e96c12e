package txn

import (
	"sync"

	"github.com/lpgdb/lpgdb/pkg/value"
)

// Tx is a single transaction's handle: its id, its pinned snapshot epoch,
// and the write set accumulated for commit-time conflict checking.
//
// Unlike the reference engine's Transaction, Tx does not buffer the
// mutating operations themselves — pkg/store's API applies writes
// directly, stamped with Epoch() at call time (see MutationContext in
// pkg/exec/operator) — so there is nothing to replay on Commit and
// nothing to undo on Rollback beyond marking the transaction closed.
type Tx struct {
	mu sync.Mutex

	id            value.TxId
	snapshotEpoch value.EpochId
	commitEpoch   value.EpochId
	status        Status
	mgr           *Manager
	writeSet      map[entityKey]struct{}
}

// ID returns the transaction's id.
func (tx *Tx) ID() value.TxId { return tx.id }

// Epoch returns the epoch writes within this transaction should be
// stamped with. Before commit this is the pinned snapshot epoch; callers
// needing the post-commit epoch should read CommitEpoch after Commit
// succeeds.
func (tx *Tx) Epoch() value.EpochId {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.snapshotEpoch
}

// CommitEpoch returns the epoch this transaction committed at. Zero
// before commit.
func (tx *Tx) CommitEpoch() value.EpochId {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.commitEpoch
}

// Status reports the transaction's current lifecycle state.
func (tx *Tx) Status() Status {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.status
}

// MarkNodeWrite registers id as touched by this transaction, for
// commit-time write-write conflict detection. Callers should mark every
// pre-existing node a mutating operator updates or deletes; newly
// created nodes need not be marked, since no other transaction could
// already hold a conflicting write on an id that did not exist at this
// transaction's snapshot epoch.
func (tx *Tx) MarkNodeWrite(id value.NodeId) error {
	return tx.markWrite(NodeKey(id))
}

// MarkEdgeWrite is MarkNodeWrite for edges.
func (tx *Tx) MarkEdgeWrite(id value.EdgeId) error {
	return tx.markWrite(EdgeKey(id))
}

func (tx *Tx) markWrite(key entityKey) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.status != StatusActive {
		return ErrTxNotActive
	}
	tx.writeSet[key] = struct{}{}
	return nil
}

// Commit validates the write set against concurrently committed epochs
// and, if clear, advances the manager's epoch and finalizes the
// transaction. On ErrConflict the transaction is left Active so the
// caller may retry or explicitly Rollback; any other outcome closes it.
func (tx *Tx) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.status != StatusActive {
		return ErrTxNotActive
	}

	if err := tx.mgr.validateAndCommitLocked(tx); err != nil {
		return err
	}

	tx.status = StatusCommitted
	return nil
}

// Rollback discards the transaction's write set without touching the
// manager's epoch. Per this module's doc comment, any store mutations
// already applied under this transaction's epoch are not undone — the
// caller is responsible for compensating writes if it rolls back after
// having executed mutating statements (spec.md §7's "side effects
// already performed in the same chunk are not automatically rolled back
// by the engine").
func (tx *Tx) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.status != StatusActive {
		return ErrTxNotActive
	}
	tx.writeSet = nil
	tx.status = StatusRolledBack
	return nil
}

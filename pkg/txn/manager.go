// Package txn implements the transaction manager and session of spec.md
// §4.12 (component C13): monotonic TxId allocation, begin/commit/abort,
// and epoch-granularity snapshot isolation.
//
// Generalized from the reference engine's pkg/storage/transaction.go
// Transaction type: that type buffers operations against a *MemoryEngine
// and applies them atomically on Commit. This module's Store (pkg/store)
// has no such staging area — its mutation calls apply directly, stamped
// with a caller-supplied epoch — so Tx here buffers bookkeeping (the
// write set, for conflict detection) rather than the operations
// themselves, and adds the snapshot-epoch pinning the reference type
// never had.
package txn

import (
	"errors"
	"sync"

	"github.com/lpgdb/lpgdb/pkg/value"
)

// Errors surfaced by the manager and by Tx/Session operations.
var (
	ErrTxNotActive       = errors.New("txn: transaction is not active")
	ErrConflict          = errors.New("txn: write-write conflict, commit aborted")
	ErrTransactionActive = errors.New("txn: session already has an active transaction")
	ErrNoActiveTx        = errors.New("txn: session has no active transaction")
)

// Status is the lifecycle state of a Tx, mirroring the reference engine's
// TransactionStatus.
type Status string

const (
	StatusActive     Status = "active"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
)

// entityKind distinguishes nodes from edges in the manager's write-epoch
// tracking map; NodeId and EdgeId are both uint64 and would otherwise
// collide.
type entityKind uint8

const (
	nodeEntity entityKind = iota
	edgeEntity
)

type entityKey struct {
	kind entityKind
	id   uint64
}

// NodeKey builds the conflict-tracking key for a node id.
func NodeKey(id value.NodeId) entityKey { return entityKey{kind: nodeEntity, id: uint64(id)} }

// EdgeKey builds the conflict-tracking key for an edge id.
func EdgeKey(id value.EdgeId) entityKey { return entityKey{kind: edgeEntity, id: uint64(id)} }

// Manager allocates TxIds and epochs for one store instance and arbitrates
// commit-time write-write conflicts per spec.md §4.12's isolation model.
//
// Isolation note: the underlying store (pkg/store) keeps a single version
// per entity, not an MVCC chain, so a committed write is visible to every
// reader immediately rather than only at the committer's epoch. The
// manager still tracks, per entity, the epoch of its last committing
// write; a transaction whose write set overlaps an entity committed at a
// later epoch than its own snapshot is refused at commit per spec.md
// §4.12 ("write-write conflicts surface as commit failures"), even though
// in the current single-writer-per-store-instance usage pattern this
// check rarely trips.
type Manager struct {
	mu         sync.Mutex
	nextTxID   uint64
	epoch      uint64
	lastTx     value.TxId
	writeEpoch map[entityKey]value.EpochId
}

// NewManager creates a Manager with fresh TxId/epoch counters.
func NewManager() *Manager {
	return &Manager{writeEpoch: make(map[entityKey]value.EpochId)}
}

// CurrentEpoch returns the epoch a new transaction would pin right now.
func (m *Manager) CurrentEpoch() value.EpochId {
	m.mu.Lock()
	defer m.mu.Unlock()
	return value.EpochId(m.epoch)
}

// LastTx returns the most recently allocated TxId, used by the database
// façade's Checkpoint record on close (spec.md §4.13 item 3).
func (m *Manager) LastTx() value.TxId {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTx
}

// FastForward advances the manager's TxId and epoch counters past values
// recovered from a WAL's trailing Checkpoint record, so ids allocated
// after recovery do not collide with ids already committed to the log.
func (m *Manager) FastForward(lastTx value.TxId, lastEpoch value.EpochId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uint64(lastTx) > m.nextTxID {
		m.nextTxID = uint64(lastTx)
	}
	m.lastTx = value.TxId(m.nextTxID)
	if uint64(lastEpoch) > m.epoch {
		m.epoch = uint64(lastEpoch)
	}
}

// Begin allocates a new TxId and pins the transaction's snapshot epoch to
// the manager's current epoch.
func (m *Manager) Begin() *Tx {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTxID++
	id := value.TxId(m.nextTxID)
	m.lastTx = id
	return &Tx{
		id:            id,
		snapshotEpoch: value.EpochId(m.epoch),
		status:        StatusActive,
		mgr:           m,
		writeSet:      make(map[entityKey]struct{}),
	}
}

// validateAndCommitLocked checks tx's write set against committed epochs
// newer than its snapshot, and if clear, advances the manager's epoch and
// stamps every written entity with the new epoch. Must be called with
// tx.mu held and tx already verified Active.
func (m *Manager) validateAndCommitLocked(tx *Tx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range tx.writeSet {
		if committedAt, ok := m.writeEpoch[key]; ok && committedAt > tx.snapshotEpoch {
			return ErrConflict
		}
	}

	m.epoch++
	newEpoch := value.EpochId(m.epoch)
	for key := range tx.writeSet {
		m.writeEpoch[key] = newEpoch
	}
	tx.commitEpoch = newEpoch
	return nil
}

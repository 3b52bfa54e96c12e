// Package lpgdb implements the database façade of spec.md §4.13/§6.4
// (component C14): Open/Close lifecycle, the execute() entry point that
// drives a logical plan through the optimizer, physical planner, and
// operator tree, and the convenience control-surface methods
// (create_node, get_node, ...) that wrap a single mutation in its own
// auto-commit transaction.
//
// Grounded on the reference engine's pkg/nornicdb/db.go Open/Close wiring
// order (storage, then WAL, then the rest) and its DB struct-of-
// subsystems shape, generalized from NornicDB's memory/decay/search
// feature set down to this module's C1-C13 component set: store, WAL,
// transaction manager, and buffer manager.
package lpgdb

import (
	"time"

	"github.com/lpgdb/lpgdb/pkg/buffer"
	"github.com/lpgdb/lpgdb/pkg/store"
	"github.com/lpgdb/lpgdb/pkg/wal"
)

// Options configures Open.
type Options struct {
	// Path is the directory a persistent database is rooted at (spec.md
	// §6.3). Empty means in-memory: no WAL, no recovery, nothing written
	// to disk.
	Path string

	// StoreOptions configures the underlying graph store (backward
	// adjacency, etc).
	StoreOptions store.Options

	// WALSyncMode overrides the WAL's durability mode; zero value
	// (SyncAlways) is overridden by DefaultWALSyncMode below when unset
	// via withDefaults.
	WALSyncMode      wal.SyncMode
	WALBatchInterval time.Duration

	// BufferBudgetBytes overrides the buffer manager's byte budget; zero
	// means DefaultBudget() (75% of detected system memory, spec.md
	// §4.11).
	BufferBudgetBytes uint64

	// WALEncryptionKey, when non-nil, must be exactly
	// chacha20poly1305.KeySize (32) bytes; every WAL record payload is
	// then sealed at rest. A config.Config loaded via LoadFromEnv or
	// LoadFromFile supplies this through its WALKey method.
	WALEncryptionKey []byte

	// SnapshotKeepCount bounds how many epoch-keyed snapshots a clean
	// Close retains; zero means DefaultSnapshotKeepCount.
	SnapshotKeepCount int
}

// DefaultSnapshotKeepCount matches config.DefaultConfig's choice.
const DefaultSnapshotKeepCount = 3

// DefaultWALSyncMode matches wal.DefaultConfig's choice.
const DefaultWALSyncMode = wal.SyncBatch

func (o Options) withDefaults() Options {
	if o.WALSyncMode == 0 && o.WALBatchInterval == 0 {
		o.WALSyncMode = DefaultWALSyncMode
		o.WALBatchInterval = 50 * time.Millisecond
	}
	if o.SnapshotKeepCount == 0 {
		o.SnapshotKeepCount = DefaultSnapshotKeepCount
	}
	return o
}

func (o Options) bufferManager() *buffer.Manager {
	if o.BufferBudgetBytes > 0 {
		return buffer.NewManager(o.BufferBudgetBytes)
	}
	return buffer.NewManagerDefault()
}

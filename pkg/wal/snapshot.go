package wal

import (
	"encoding/binary"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/lpgdb/lpgdb/pkg/value"
)

// snapshotKeyPrefix namespaces snapshot blobs inside the Badger keyspace,
// following the reference storage engine's prefix-keyed scheme in
// pkg/storage/badger.go.
var snapshotKeyPrefix = []byte("snap:")

// SnapshotStore persists whole-graph snapshots keyed by the epoch at which
// they were taken, per SPEC_FULL.md's C6.1 supplement. It uses Badger
// purely as an embedded, ordered-iteration-capable blob store — Badger's
// own WAL and transaction machinery are incidental here, not exercised for
// their own sake.
type SnapshotStore struct {
	db *badger.DB
}

// OpenSnapshotStore opens (creating if absent) a Badger database rooted at
// dir for use as a SnapshotStore.
func OpenSnapshotStore(dir string) (*SnapshotStore, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("wal: open snapshot store: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

func snapshotKey(epoch value.EpochId) []byte {
	key := make([]byte, len(snapshotKeyPrefix)+8)
	copy(key, snapshotKeyPrefix)
	binary.BigEndian.PutUint64(key[len(snapshotKeyPrefix):], uint64(epoch))
	return key
}

// Put stores snapshot under epoch, overwriting any prior snapshot at the
// same epoch.
func (s *SnapshotStore) Put(epoch value.EpochId, snapshot []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(epoch), snapshot)
	})
}

// Latest returns the snapshot with the highest epoch, if any exist. Keys
// are big-endian encoded so Badger's lexicographic key order doubles as
// epoch order, letting Latest seek to the last key under the prefix
// instead of scanning every entry.
func (s *SnapshotStore) Latest() (value.EpochId, []byte, bool, error) {
	var epoch value.EpochId
	var data []byte
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Reverse:        true,
			Prefix:         snapshotKeyPrefix,
			PrefetchValues: true,
		})
		defer it.Close()

		// Reverse iteration over a prefix must seed from a key that sorts
		// after every key in the prefix; append 0xFF to do that.
		seek := append(append([]byte{}, snapshotKeyPrefix...), 0xFF)
		it.Seek(seek)
		if !it.ValidForPrefix(snapshotKeyPrefix) {
			return nil
		}
		item := it.Item()
		key := item.KeyCopy(nil)
		epoch = value.EpochId(binary.BigEndian.Uint64(key[len(snapshotKeyPrefix):]))
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		data = val
		found = true
		return nil
	})
	if err != nil {
		return 0, nil, false, fmt.Errorf("wal: read latest snapshot: %w", err)
	}
	return epoch, data, found, nil
}

// Prune deletes all but the keep most-recent snapshots, oldest first.
func (s *SnapshotStore) Prune(keep int) error {
	if keep < 0 {
		return errors.New("wal: keep must be >= 0")
	}

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: snapshotKeyPrefix})
		defer it.Close()
		for it.Seek(snapshotKeyPrefix); it.ValidForPrefix(snapshotKeyPrefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("wal: list snapshots: %w", err)
	}

	// keys come back in ascending (oldest-first) key order because of the
	// big-endian epoch encoding; drop everything before the last `keep`.
	if len(keys) <= keep {
		return nil
	}
	toDelete := keys[:len(keys)-keep]

	return s.db.Update(func(txn *badger.Txn) error {
		for _, k := range toDelete {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

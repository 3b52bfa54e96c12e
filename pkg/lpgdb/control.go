package lpgdb

import (
	"log"

	"github.com/lpgdb/lpgdb/pkg/store"
	"github.com/lpgdb/lpgdb/pkg/txn"
	"github.com/lpgdb/lpgdb/pkg/value"
	"github.com/lpgdb/lpgdb/pkg/wal"
)

// The methods in this file are the direct control-surface operations of
// spec.md §6.4 (create_node, get_node, ...): single-entity mutations that
// bypass the plan/optimizer/physical/operator pipeline entirely, each
// wrapped in its own auto-commit transaction for WAL logging and
// commit-time conflict bookkeeping the same way Execute's statements are.

// CreateNode creates a node with labels and props, logs it to the WAL
// (best-effort), and returns its id.
func (db *DB) CreateNode(labels []string, props map[string]value.Value) (value.NodeId, error) {
	if err := db.checkOpen(); err != nil {
		return 0, err
	}

	var id value.NodeId
	err := db.session.WithStatement(func(tx *txn.Tx) error {
		var err error
		id, err = db.store.CreateNodeWithProps(labels, props, tx.Epoch())
		if err != nil {
			return err
		}
		db.logWAL(wal.CreateNode(id, labels))
		for k, v := range props {
			db.logWAL(wal.SetNodeProperty(id, k, v))
		}
		return nil
	})
	return id, err
}

// GetNode retrieves a node by id. Reads do not need transactional
// wrapping (spec.md §5: "reads against the store see a consistent
// snapshot within a single locked section of a read call").
func (db *DB) GetNode(id value.NodeId) (*store.Node, bool, error) {
	if err := db.checkOpen(); err != nil {
		return nil, false, err
	}
	n, ok := db.store.GetNode(id)
	return n, ok, nil
}

// DeleteNode tombstones a node and logs the deletion.
func (db *DB) DeleteNode(id value.NodeId) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	return db.session.WithStatement(func(tx *txn.Tx) error {
		if err := tx.MarkNodeWrite(id); err != nil {
			return err
		}
		db.store.DeleteNode(id)
		db.logWAL(wal.DeleteNode(id))
		return nil
	})
}

// SetNodeProperty sets key on node id to v.
func (db *DB) SetNodeProperty(id value.NodeId, key string, v value.Value) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	return db.session.WithStatement(func(tx *txn.Tx) error {
		if err := tx.MarkNodeWrite(id); err != nil {
			return err
		}
		if err := db.store.SetNodeProperty(id, key, v); err != nil {
			return err
		}
		db.logWAL(wal.SetNodeProperty(id, key, v))
		return nil
	})
}

// RemoveNodeProperty removes key from node id.
func (db *DB) RemoveNodeProperty(id value.NodeId, key string) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	return db.session.WithStatement(func(tx *txn.Tx) error {
		if err := tx.MarkNodeWrite(id); err != nil {
			return err
		}
		if err := db.store.RemoveNodeProperty(id, key); err != nil {
			return err
		}
		db.logWAL(wal.RemoveNodeProperty(id, key))
		return nil
	})
}

// AddLabel adds label to node id.
func (db *DB) AddLabel(id value.NodeId, label string) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	return db.session.WithStatement(func(tx *txn.Tx) error {
		if err := tx.MarkNodeWrite(id); err != nil {
			return err
		}
		if err := db.store.AddLabel(id, label); err != nil {
			return err
		}
		db.logWAL(wal.AddLabel(id, label))
		return nil
	})
}

// RemoveLabel removes label from node id.
func (db *DB) RemoveLabel(id value.NodeId, label string) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	return db.session.WithStatement(func(tx *txn.Tx) error {
		if err := tx.MarkNodeWrite(id); err != nil {
			return err
		}
		if err := db.store.RemoveLabel(id, label); err != nil {
			return err
		}
		db.logWAL(wal.RemoveLabel(id, label))
		return nil
	})
}

// CreateEdge creates an edge from src to dst with typeName and props.
func (db *DB) CreateEdge(src, dst value.NodeId, typeName string, props map[string]value.Value) (value.EdgeId, error) {
	if err := db.checkOpen(); err != nil {
		return 0, err
	}
	var id value.EdgeId
	err := db.session.WithStatement(func(tx *txn.Tx) error {
		var err error
		id, err = db.store.CreateEdgeWithProps(src, dst, typeName, props, tx.Epoch())
		if err != nil {
			return err
		}
		db.logWAL(wal.CreateEdge(id, src, dst, typeName))
		for k, v := range props {
			db.logWAL(wal.SetEdgeProperty(id, k, v))
		}
		return nil
	})
	return id, err
}

// GetEdge retrieves an edge by id.
func (db *DB) GetEdge(id value.EdgeId) (*store.Edge, bool, error) {
	if err := db.checkOpen(); err != nil {
		return nil, false, err
	}
	e, ok := db.store.GetEdge(id)
	return e, ok, nil
}

// DeleteEdge tombstones an edge and logs the deletion.
func (db *DB) DeleteEdge(id value.EdgeId) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	return db.session.WithStatement(func(tx *txn.Tx) error {
		if err := tx.MarkEdgeWrite(id); err != nil {
			return err
		}
		db.store.DeleteEdge(id)
		db.logWAL(wal.DeleteEdge(id))
		return nil
	})
}

// SetEdgeProperty sets key on edge id to v.
func (db *DB) SetEdgeProperty(id value.EdgeId, key string, v value.Value) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	return db.session.WithStatement(func(tx *txn.Tx) error {
		if err := tx.MarkEdgeWrite(id); err != nil {
			return err
		}
		if err := db.store.SetEdgeProperty(id, key, v); err != nil {
			return err
		}
		db.logWAL(wal.SetEdgeProperty(id, key, v))
		return nil
	})
}

// RemoveEdgeProperty removes key from edge id.
func (db *DB) RemoveEdgeProperty(id value.EdgeId, key string) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	return db.session.WithStatement(func(tx *txn.Tx) error {
		if err := tx.MarkEdgeWrite(id); err != nil {
			return err
		}
		if err := db.store.RemoveEdgeProperty(id, key); err != nil {
			return err
		}
		db.logWAL(wal.RemoveEdgeProperty(id, key))
		return nil
	})
}

// BeginTx switches the database's default session into explicit-
// transaction mode, per spec.md §4.12's begin_tx/commit/rollback.
func (db *DB) BeginTx() (*txn.Tx, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	return db.session.BeginTx()
}

// CommitTx commits the session's explicit transaction.
func (db *DB) CommitTx() error { return db.session.CommitTx() }

// RollbackTx rolls back the session's explicit transaction.
func (db *DB) RollbackTx() error { return db.session.RollbackTx() }

func (db *DB) logWAL(rec wal.Record) {
	if db.wal == nil {
		return
	}
	if err := db.wal.Append(rec); err != nil {
		log.Printf("lpgdb: WAL append failed for %s, continuing in-memory: %v", rec.Kind, err)
	}
}

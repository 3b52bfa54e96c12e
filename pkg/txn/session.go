package txn

// Session is a not-thread-safe handle holding zero or one active
// transaction, per spec.md §4.12. It switches between auto-commit mode
// (the default: each statement runs inside its own one-shot transaction)
// and explicit mode once BeginTx is called, mirroring the reference
// engine's ELI12 BEGIN/COMMIT/ROLLBACK framing generalized to a
// snapshot-epoch-pinned Tx instead of a buffered MemoryEngine
// transaction.
type Session struct {
	mgr      *Manager
	active   *Tx
	explicit bool
}

// NewSession creates a Session bound to mgr, starting in auto-commit mode
// with no active transaction.
func NewSession(mgr *Manager) *Session {
	return &Session{mgr: mgr}
}

// BeginTx switches the session into explicit-transaction mode. Returns
// ErrTransactionActive if a transaction is already open.
func (s *Session) BeginTx() (*Tx, error) {
	if s.active != nil {
		return nil, ErrTransactionActive
	}
	s.active = s.mgr.Begin()
	s.explicit = true
	return s.active, nil
}

// CommitTx commits the session's active transaction and returns to
// auto-commit mode. Returns ErrNoActiveTx if none is open.
func (s *Session) CommitTx() error {
	if s.active == nil {
		return ErrNoActiveTx
	}
	err := s.active.Commit()
	s.active = nil
	s.explicit = false
	return err
}

// RollbackTx rolls back the session's active transaction and returns to
// auto-commit mode. Returns ErrNoActiveTx if none is open.
func (s *Session) RollbackTx() error {
	if s.active == nil {
		return ErrNoActiveTx
	}
	err := s.active.Rollback()
	s.active = nil
	s.explicit = false
	return err
}

// Tx returns the session's current transaction and whether one is open.
func (s *Session) Tx() (*Tx, bool) {
	return s.active, s.active != nil
}

// InExplicitTx reports whether the session is in explicit-transaction
// mode (between BeginTx and CommitTx/RollbackTx).
func (s *Session) InExplicitTx() bool {
	return s.explicit
}

// WithStatement runs fn against the transaction that should back a
// single statement: the session's explicit transaction if one is open,
// or (in auto-commit mode) a fresh one-shot transaction created around
// fn and committed on success / rolled back on error, per spec.md
// §4.12's "in auto-commit mode a single-statement transaction is created
// around execution."
func (s *Session) WithStatement(fn func(tx *Tx) error) error {
	if s.active != nil {
		return fn(s.active)
	}

	tx := s.mgr.Begin()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

package lpgdb

import (
	"fmt"
	"log"

	"github.com/lpgdb/lpgdb/pkg/exec/operator"
	"github.com/lpgdb/lpgdb/pkg/optimizer"
	"github.com/lpgdb/lpgdb/pkg/physical"
	"github.com/lpgdb/lpgdb/pkg/plan"
	"github.com/lpgdb/lpgdb/pkg/txn"
	"github.com/lpgdb/lpgdb/pkg/value"
)

// Result is a query result per spec.md §6.5.
type Result struct {
	Columns     []string
	ColumnTypes []value.LogicalType
	Rows        [][]value.Value
}

// Execute runs a logical plan tree (the front-end contract of spec.md
// §6.1) to completion: optimize, lower to a physical plan, build the
// operator tree, and drain every chunk into a Result. Every call runs
// inside its own single-statement transaction in auto-commit mode,
// or inside the database's currently open explicit transaction if one
// was started via BeginTx, per spec.md §4.12.
func (db *DB) Execute(logical *plan.Operator, params map[string]value.Value) (*Result, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}

	optimized := optimizer.Optimize(logical, optimizer.DefaultStats())
	phys, err := physical.Plan(optimized)
	if err != nil {
		return nil, fmt.Errorf("lpgdb: plan: %w", err)
	}

	var result *Result
	err = db.session.WithStatement(func(tx *txn.Tx) error {
		ctx := operator.MutationContext{TxID: tx.ID(), Epoch: tx.Epoch()}
		op, err := operator.Build(phys, db.walSink(), ctx)
		if err != nil {
			return fmt.Errorf("lpgdb: build operator tree: %w", err)
		}

		r, err := drain(op, phys.Schema, &operator.Runtime{Store: db.store, Params: params})
		if err != nil {
			return err
		}
		result = r

		if containsMutation(phys) {
			markWrites(tx, phys.Schema, r.Rows)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// walSink returns db.wal, or nil if this is an in-memory database.
// operator.Build accepts a nil WalSink and has mutation operators skip
// logging entirely (spec.md §7's warn-and-continue policy taken to its
// degenerate no-WAL case).
func (db *DB) walSink() operator.WalSink {
	if db.wal == nil {
		return nil
	}
	return db.wal
}

func drain(op operator.Operator, schema physical.Schema, rt *operator.Runtime) (*Result, error) {
	result := &Result{Columns: make([]string, len(schema)), ColumnTypes: make([]value.LogicalType, len(schema))}
	for i, col := range schema {
		result.Columns[i] = col.Name
		result.ColumnTypes[i] = col.Type
	}

	for {
		chunk, err := op.Next(rt)
		if err != nil {
			return nil, fmt.Errorf("lpgdb: execute: %w", err)
		}
		if chunk == nil {
			break
		}
		for _, row := range chunk.SelectedIndices() {
			values := make([]value.Value, len(schema))
			for c := range schema {
				values[c] = chunk.Columns[c].At(row)
			}
			result.Rows = append(result.Rows, values)
		}
	}
	return result, nil
}

// containsMutation reports whether phys's tree includes any operator
// that writes to the store, deciding whether Execute needs to register a
// write set for commit-time conflict detection at all.
func containsMutation(phys *physical.Operator) bool {
	if phys == nil {
		return false
	}
	switch phys.Kind {
	case plan.OpCreateNode, plan.OpCreateEdge, plan.OpDeleteNode, plan.OpDeleteEdge,
		plan.OpSetProperty, plan.OpAddLabel, plan.OpRemoveLabel, plan.OpMerge:
		return true
	}
	if containsMutation(phys.Input) || containsMutation(phys.Left) || containsMutation(phys.Right) {
		return true
	}
	for _, c := range phys.Children {
		if containsMutation(c) {
			return true
		}
	}
	return false
}

// markWrites registers every node/edge id appearing anywhere in a
// mutating statement's result rows as written by tx, for commit-time
// conflict detection. This conservatively over-approximates the true
// write set (it also marks ids that were only read, e.g. a MATCH bound
// earlier in the same statement) rather than threading per-mutation
// target tracking back from pkg/exec/operator into pkg/txn, which would
// otherwise couple those two packages together; a false conflict is
// safe, a missed one is not, so erring toward more conflicts is the
// correct direction to simplify in.
func markWrites(tx *txn.Tx, schema physical.Schema, rows [][]value.Value) {
	for _, row := range rows {
		for c, col := range schema {
			switch col.Type {
			case value.LogicalNode:
				if id, ok := row[c].AsNode(); ok {
					if err := tx.MarkNodeWrite(id); err != nil {
						log.Printf("lpgdb: mark node write: %v", err)
					}
				}
			case value.LogicalEdge:
				if id, ok := row[c].AsEdge(); ok {
					if err := tx.MarkEdgeWrite(id); err != nil {
						log.Printf("lpgdb: mark edge write: %v", err)
					}
				}
			}
		}
	}
}

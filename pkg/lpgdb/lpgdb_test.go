package lpgdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpgdb/lpgdb/pkg/plan"
	"github.com/lpgdb/lpgdb/pkg/value"
)

func strp(s string) *string { return &s }

func TestOpenInMemoryAndControlSurface(t *testing.T) {
	db, err := Open(Options{})
	require.NoError(t, err)
	defer db.Close()

	id, err := db.CreateNode([]string{"Person"}, map[string]value.Value{"name": value.String("Alice")})
	require.NoError(t, err)
	assert.Equal(t, 1, db.NodeCount())

	node, ok, err := db.GetNode(id)
	require.NoError(t, err)
	require.True(t, ok)
	name, _ := node.Properties["name"].AsString()
	assert.Equal(t, "Alice", name)

	require.NoError(t, db.SetNodeProperty(id, "age", value.Int64(30)))
	node, _, _ = db.GetNode(id)
	age, _ := node.Properties["age"].AsInt64()
	assert.Equal(t, int64(30), age)

	require.NoError(t, db.RemoveNodeProperty(id, "age"))
	node, _, _ = db.GetNode(id)
	_, hasAge := node.Properties["age"]
	assert.False(t, hasAge)

	require.NoError(t, db.DeleteNode(id))
	assert.Equal(t, 0, db.NodeCount())

	_, ok = db.WalStatus()
	assert.False(t, ok, "in-memory database has no WAL")
}

func TestEdgeControlSurface(t *testing.T) {
	db, err := Open(Options{})
	require.NoError(t, err)
	defer db.Close()

	a, err := db.CreateNode([]string{"Person"}, nil)
	require.NoError(t, err)
	b, err := db.CreateNode([]string{"Person"}, nil)
	require.NoError(t, err)

	eid, err := db.CreateEdge(a, b, "KNOWS", map[string]value.Value{"since": value.Int64(2020)})
	require.NoError(t, err)
	assert.Equal(t, 1, db.EdgeCount())

	edge, ok, err := db.GetEdge(eid)
	require.NoError(t, err)
	require.True(t, ok)
	since, _ := edge.Properties["since"].AsInt64()
	assert.Equal(t, int64(2020), since)

	require.NoError(t, db.SetEdgeProperty(eid, "weight", value.Float64(0.5)))
	require.NoError(t, db.RemoveEdgeProperty(eid, "since"))
	require.NoError(t, db.DeleteEdge(eid))
	assert.Equal(t, 0, db.EdgeCount())
}

func TestExecuteCreateNodePlan(t *testing.T) {
	db, err := Open(Options{})
	require.NoError(t, err)
	defer db.Close()

	logical := plan.CreateNode("n", []string{"Person"}, map[string]plan.Expression{
		"name": plan.Lit(value.String("Bob")),
	}, plan.Empty())

	result, err := db.Execute(logical, nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	_, ok := result.Rows[0][0].AsNode()
	assert.True(t, ok)
	assert.Equal(t, 1, db.NodeCount())
}

func TestExecuteScanAndFilter(t *testing.T) {
	db, err := Open(Options{})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.CreateNode([]string{"Person"}, map[string]value.Value{"age": value.Int64(30)})
	require.NoError(t, err)
	_, err = db.CreateNode([]string{"Person"}, map[string]value.Value{"age": value.Int64(15)})
	require.NoError(t, err)

	pred := plan.Bin(plan.Gt, plan.Prop("n", "age"), plan.Lit(value.Int64(18)))
	logical := plan.Return(map[string]plan.Expression{"n": plan.Var("n")},
		plan.Filter(pred, plan.NodeScan("n", strp("Person"), nil)))

	result, err := db.Execute(logical, nil)
	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
	assert.Equal(t, []string{"n"}, result.Columns)
}

func TestExplicitTransactionSpansMultipleStatements(t *testing.T) {
	db, err := Open(Options{})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.BeginTx()
	require.NoError(t, err)

	id, err := db.CreateNode([]string{"Person"}, nil)
	require.NoError(t, err)
	require.NoError(t, db.SetNodeProperty(id, "k", value.Int64(1)))

	require.NoError(t, db.CommitTx())
	node, ok, _ := db.GetNode(id)
	require.True(t, ok)
	v, _ := node.Properties["k"].AsInt64()
	assert.Equal(t, int64(1), v)
}

func TestPersistentOpenWritesWALAndRecovers(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(Options{Path: dir})
	require.NoError(t, err)

	id, err := db.CreateNode([]string{"Person"}, map[string]value.Value{"name": value.String("Carol")})
	require.NoError(t, err)
	_, err = db.CreateNode([]string{"Person"}, map[string]value.Value{"name": value.String("Dave")})
	require.NoError(t, err)
	require.NoError(t, db.DeleteNode(id))

	stats, ok := db.WalStatus()
	require.True(t, ok)
	assert.Greater(t, stats.RecordsAppended, uint64(0))

	require.NoError(t, db.Close())

	// A clean Close snapshots the store and removes the WAL file entirely,
	// so a crash-free restart has nothing left to replay. Checked here,
	// before reopening, since Open unconditionally recreates a fresh WAL
	// file at this same path.
	require.NoFileExists(t, filepath.Join(dir, "wal"))
	require.DirExists(t, filepath.Join(dir, "snapshots"))

	reopened, err := Open(Options{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 1, reopened.NodeCount(), "Carol's delete should survive recovery, Dave should remain")
	_, ok, _ = reopened.GetNode(id)
	assert.False(t, ok)
}

func TestCloseIsIdempotent(t *testing.T) {
	db, err := Open(Options{})
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())
	_, err = db.CreateNode([]string{"X"}, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBufferManagerAccessor(t *testing.T) {
	db, err := Open(Options{BufferBudgetBytes: 1000})
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, uint64(1000), db.BufferManager().Budget())
}

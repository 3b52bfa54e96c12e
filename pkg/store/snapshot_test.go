package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpgdb/lpgdb/pkg/value"
)

func TestExportImportPreservesIdsAndProperties(t *testing.T) {
	s := New(Options{})

	a, err := s.CreateNodeWithProps([]string{"Person"}, map[string]value.Value{"name": value.String("Alice")}, 1)
	require.NoError(t, err)
	b, err := s.CreateNodeWithProps([]string{"Person"}, map[string]value.Value{"name": value.String("Bob")}, 1)
	require.NoError(t, err)
	c, err := s.CreateNode([]string{"Person"}, 1)
	require.NoError(t, err)
	s.DeleteNode(c) // leaves a gap in the id space

	eid, err := s.CreateEdgeWithProps(a, b, "KNOWS", map[string]value.Value{"since": value.Int64(2020)}, 1)
	require.NoError(t, err)

	exp := s.Export()
	restored := Import(exp, Options{})

	assert.Equal(t, s.NodeCount(), restored.NodeCount())
	assert.Equal(t, s.EdgeCount(), restored.EdgeCount())

	n, ok := restored.GetNode(a)
	require.True(t, ok)
	name, _ := n.Properties["name"].AsString()
	assert.Equal(t, "Alice", name)

	e, ok := restored.GetEdge(eid)
	require.True(t, ok)
	since, _ := e.Properties["since"].AsInt64()
	assert.Equal(t, int64(2020), since)

	// A node created after restore must not collide with the deleted c's id,
	// even though c was never exported.
	d, err := restored.CreateNode([]string{"Person"}, 2)
	require.NoError(t, err)
	assert.Greater(t, d, c)
}

func TestImportOfEmptyExportProducesEmptyStore(t *testing.T) {
	s := Import(Export{}, Options{})
	assert.Equal(t, 0, s.NodeCount())
	assert.Equal(t, 0, s.EdgeCount())
}

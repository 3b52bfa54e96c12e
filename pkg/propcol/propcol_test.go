package propcol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpgdb/lpgdb/pkg/value"
)

func TestSetGetOverwrite(t *testing.T) {
	s := New[value.NodeId]()
	s.Set(1, "age", value.Int64(30))
	v, ok := s.Get(1, "age")
	require.True(t, ok)
	i, _ := v.AsInt64()
	assert.Equal(t, int64(30), i)

	s.Set(1, "age", value.Int64(31))
	v, ok = s.Get(1, "age")
	require.True(t, ok)
	i, _ = v.AsInt64()
	assert.Equal(t, int64(31), i)
}

func TestGetMissingColumnOrEntity(t *testing.T) {
	s := New[value.NodeId]()
	_, ok := s.Get(1, "nope")
	assert.False(t, ok)

	s.Set(2, "name", value.String("bob"))
	_, ok = s.Get(1, "name")
	assert.False(t, ok, "column exists but entity has no entry")
}

func TestRemoveErasesEntryNotColumn(t *testing.T) {
	s := New[value.NodeId]()
	s.Set(1, "name", value.String("alice"))
	s.Remove(1, "name")

	_, ok := s.Get(1, "name")
	assert.False(t, ok)
	assert.Equal(t, 1, s.ColumnCount(), "column persists even when emptied")
}

func TestRemoveAllTouchesEveryColumn(t *testing.T) {
	s := New[value.NodeId]()
	s.Set(1, "name", value.String("alice"))
	s.Set(1, "age", value.Int64(30))
	s.Set(2, "name", value.String("bob"))

	s.RemoveAll(1)

	_, ok := s.Get(1, "name")
	assert.False(t, ok)
	_, ok = s.Get(1, "age")
	assert.False(t, ok)

	v, ok := s.Get(2, "name")
	require.True(t, ok)
	name, _ := v.AsString()
	assert.Equal(t, "bob", name)
}

func TestGetAllAssemblesAcrossColumns(t *testing.T) {
	s := New[value.NodeId]()
	s.Set(1, "name", value.String("alice"))
	s.Set(1, "age", value.Int64(30))
	s.Set(2, "name", value.String("bob"))

	all := s.GetAll(1)
	require.Len(t, all, 2)
	name, _ := all["name"].AsString()
	age, _ := all["age"].AsInt64()
	assert.Equal(t, "alice", name)
	assert.Equal(t, int64(30), age)
}

func TestKeysAndColumnCount(t *testing.T) {
	s := New[value.NodeId]()
	assert.Equal(t, 0, s.ColumnCount())

	s.Set(1, "a", value.Int64(1))
	s.Set(1, "b", value.Int64(2))
	assert.Equal(t, 2, s.ColumnCount())
	assert.ElementsMatch(t, []string{"a", "b"}, s.Keys())
}

func TestEdgeEntityFamily(t *testing.T) {
	s := New[value.EdgeId]()
	s.Set(100, "weight", value.Float64(1.5))
	v, ok := s.Get(100, "weight")
	require.True(t, ok)
	f, _ := v.AsFloat64()
	assert.InDelta(t, 1.5, f, 1e-9)
}

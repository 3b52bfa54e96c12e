package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpgdb/lpgdb/pkg/value"
)

func collect[T any](seq func(func(T) bool)) []T {
	var out []T
	seq(func(v T) bool {
		out = append(out, v)
		return true
	})
	return out
}

func TestBasicCRUDScenario(t *testing.T) {
	s := New(Options{EnableBackwardAdjacency: true})

	alice, err := s.CreateNodeWithProps([]string{"Person"}, map[string]value.Value{
		"name": value.String("Alice"),
		"age":  value.Int64(30),
	}, 1)
	require.NoError(t, err)

	bob, err := s.CreateNodeWithProps([]string{"Person"}, map[string]value.Value{
		"name": value.String("Bob"),
		"age":  value.Int64(25),
	}, 1)
	require.NoError(t, err)

	_, err = s.CreateEdge(alice, bob, "KNOWS", 1)
	require.NoError(t, err)

	assert.Equal(t, 2, s.NodeCount())
	assert.Equal(t, 1, s.EdgeCount())

	assert.Equal(t, []value.NodeId{bob}, collect(s.Neighbors(alice, Out)))
	assert.Equal(t, []value.NodeId{alice}, collect(s.Neighbors(bob, In)))

	node, ok := s.GetNode(alice)
	require.True(t, ok)
	age, _ := node.Properties["age"].AsInt64()
	assert.Equal(t, int64(30), age)
}

func TestDeleteNodeHidesFromNeighborsWithoutCascade(t *testing.T) {
	s := New(Options{EnableBackwardAdjacency: true})
	a, _ := s.CreateNode([]string{"Person"}, 1)
	b, _ := s.CreateNode([]string{"Person"}, 1)
	edgeID, err := s.CreateEdge(a, b, "KNOWS", 1)
	require.NoError(t, err)

	s.DeleteNode(b)

	// b is gone from a's neighbor list (cascade-delete resolution: filter
	// tombstoned endpoints at iteration time).
	assert.Empty(t, collect(s.Neighbors(a, Out)))

	// The edge record itself is untouched by DeleteNode (no cascade).
	_, live := s.GetEdge(edgeID)
	assert.True(t, live, "delete_node must not cascade-delete incident edges")
}

func TestDeleteEdgeRemovesFromBothDirections(t *testing.T) {
	s := New(Options{EnableBackwardAdjacency: true})
	a, _ := s.CreateNode([]string{"Person"}, 1)
	b, _ := s.CreateNode([]string{"Person"}, 1)
	edgeID, err := s.CreateEdge(a, b, "KNOWS", 1)
	require.NoError(t, err)

	s.DeleteEdge(edgeID)

	assert.Empty(t, collect(s.Neighbors(a, Out)))
	assert.Empty(t, collect(s.Neighbors(b, In)))
	_, ok := s.GetEdge(edgeID)
	assert.False(t, ok)

	// Idempotent.
	s.DeleteEdge(edgeID)
}

func TestLabelScanAndFilterScenario(t *testing.T) {
	s := New(Options{})
	ages := []int64{20, 25, 30, 35, 40}
	for _, age := range ages {
		_, err := s.CreateNodeWithProps([]string{"Person"}, map[string]value.Value{
			"age": value.Int64(age),
		}, 1)
		require.NoError(t, err)
	}

	ids := s.NodesByLabel("Person")
	require.Len(t, ids, 5)

	var over28 []int64
	for _, id := range ids {
		n, ok := s.GetNode(id)
		require.True(t, ok)
		age, _ := n.Properties["age"].AsInt64()
		if age > 28 {
			over28 = append(over28, age)
		}
	}
	assert.ElementsMatch(t, []int64{30, 35, 40}, over28)
}

func TestLabelDictionaryCapacity(t *testing.T) {
	s := New(Options{})
	for i := 0; i < value.MaxLabels; i++ {
		_, err := s.CreateNode([]string{string(rune('A' + i%26)) + string(rune(i))}, 1)
		require.NoError(t, err)
	}
	_, err := s.CreateNode([]string{"OneLabelTooMany"}, 1)
	assert.ErrorIs(t, err, ErrTooManyLabels)
}

func TestAddAndRemoveLabel(t *testing.T) {
	s := New(Options{})
	id, err := s.CreateNode([]string{"Person"}, 1)
	require.NoError(t, err)

	require.NoError(t, s.AddLabel(id, "Employee"))
	assert.ElementsMatch(t, []value.NodeId{id}, s.NodesByLabel("Employee"))

	require.NoError(t, s.RemoveLabel(id, "Person"))
	assert.Empty(t, s.NodesByLabel("Person"))
	assert.ElementsMatch(t, []value.NodeId{id}, s.NodesByLabel("Employee"))
}

func TestCreateEdgeRequiresLiveEndpoints(t *testing.T) {
	s := New(Options{})
	a, _ := s.CreateNode([]string{"Person"}, 1)
	_, err := s.CreateEdge(a, value.NodeId(9999), "KNOWS", 1)
	assert.ErrorIs(t, err, ErrEndpointNotFound)
}

func TestSetAndRemoveNodeProperty(t *testing.T) {
	s := New(Options{})
	id, _ := s.CreateNode([]string{"Person"}, 1)

	require.NoError(t, s.SetNodeProperty(id, "city", value.String("NYC")))
	n, _ := s.GetNode(id)
	city, _ := n.Properties["city"].AsString()
	assert.Equal(t, "NYC", city)

	require.NoError(t, s.RemoveNodeProperty(id, "city"))
	n, _ = s.GetNode(id)
	_, ok := n.Properties["city"]
	assert.False(t, ok)
}

func TestWithoutBackwardAdjacencyInFallsBackToScan(t *testing.T) {
	s := New(Options{EnableBackwardAdjacency: false})
	a, _ := s.CreateNode([]string{"Person"}, 1)
	b, _ := s.CreateNode([]string{"Person"}, 1)
	_, err := s.CreateEdge(a, b, "KNOWS", 1)
	require.NoError(t, err)

	assert.Equal(t, []value.NodeId{a}, collect(s.Neighbors(b, In)))
}

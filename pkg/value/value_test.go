package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	t.Run("null_only_equals_null", func(t *testing.T) {
		assert.True(t, Equal(Null, Null))
		assert.False(t, Equal(Null, Int64(0)))
	})

	t.Run("int_and_float_compare_numerically", func(t *testing.T) {
		assert.True(t, Equal(Int64(3), Float64(3.0)))
		assert.False(t, Equal(Int64(3), Float64(3.5)))
	})

	t.Run("strings_are_byte_wise", func(t *testing.T) {
		assert.True(t, Equal(String("abc"), String("abc")))
		assert.False(t, Equal(String("abc"), String("abd")))
	})

	t.Run("lists_compare_elementwise", func(t *testing.T) {
		a := List([]Value{Int64(1), String("x")})
		b := List([]Value{Int64(1), String("x")})
		c := List([]Value{Int64(1), String("y")})
		assert.True(t, Equal(a, b))
		assert.False(t, Equal(a, c))
	})

	t.Run("nodes_and_edges_compare_by_id", func(t *testing.T) {
		assert.True(t, Equal(NodeRef(1), NodeRef(1)))
		assert.False(t, Equal(NodeRef(1), NodeRef(2)))
		assert.False(t, Equal(NodeRef(1), EdgeRef(1)))
	})
}

func TestCompare(t *testing.T) {
	t.Run("numeric_family", func(t *testing.T) {
		c, err := Compare(Int64(1), Float64(2.0))
		require.NoError(t, err)
		assert.Equal(t, -1, c)
	})

	t.Run("string_lexicographic", func(t *testing.T) {
		c, err := Compare(String("a"), String("b"))
		require.NoError(t, err)
		assert.Equal(t, -1, c)
	})

	t.Run("cross_family_is_not_orderable", func(t *testing.T) {
		_, err := Compare(String("a"), Int64(1))
		require.Error(t, err)
		var notOrderable ErrNotOrderable
		require.ErrorAs(t, err, &notOrderable)
	})
}

func TestAddPromotion(t *testing.T) {
	t.Run("int_plus_int_stays_int", func(t *testing.T) {
		v, err := Add(Int64(1), Int64(2))
		require.NoError(t, err)
		i, ok := v.AsInt64()
		require.True(t, ok)
		assert.Equal(t, int64(3), i)
	})

	t.Run("int_plus_float_promotes", func(t *testing.T) {
		v, err := Add(Int64(1), Float64(2.5))
		require.NoError(t, err)
		f, ok := v.AsFloat64()
		require.True(t, ok)
		assert.InDelta(t, 3.5, f, 1e-9)
	})

	t.Run("string_concatenation", func(t *testing.T) {
		v, err := Add(String("foo"), String("bar"))
		require.NoError(t, err)
		s, _ := v.AsString()
		assert.Equal(t, "foobar", s)
	})

	t.Run("incompatible_kinds_error", func(t *testing.T) {
		_, err := Add(String("foo"), Int64(1))
		require.Error(t, err)
	})
}

func TestIdStringers(t *testing.T) {
	assert.Equal(t, "n42", NodeId(42).String())
	assert.Equal(t, "e7", EdgeId(7).String())
}

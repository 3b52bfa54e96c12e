package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpgdb/lpgdb/pkg/value"
)

func TestValueVectorAppendRejectsTypeMismatch(t *testing.T) {
	vec := NewValueVector(value.LogicalInt64, 4)
	require.NoError(t, vec.Append(value.Int64(1)))
	require.NoError(t, vec.Append(value.Null)) // null always accepted
	err := vec.Append(value.String("nope"))
	assert.Error(t, err)
}

func TestValueVectorAnyAcceptsEverything(t *testing.T) {
	vec := NewValueVector(value.LogicalAny, 4)
	require.NoError(t, vec.Append(value.Int64(1)))
	require.NoError(t, vec.Append(value.String("x")))
}

func TestDataChunkRowCountRespectsSelection(t *testing.T) {
	chunk := NewDataChunk([]string{"n"}, []value.LogicalType{value.LogicalInt64}, 8)
	for i := int64(0); i < 5; i++ {
		require.NoError(t, chunk.Columns[0].Append(value.Int64(i)))
	}
	chunk.SetRowCount(5)
	assert.Equal(t, 5, chunk.TotalRowCount())
	assert.Equal(t, 5, chunk.RowCount())

	chunk.SetSelection(SelectionVector{1, 3})
	assert.Equal(t, 5, chunk.TotalRowCount())
	assert.Equal(t, 2, chunk.RowCount())
}

func TestDataChunkSelectionDoesNotRewriteColumns(t *testing.T) {
	chunk := NewDataChunk([]string{"n"}, []value.LogicalType{value.LogicalInt64}, 8)
	for i := int64(0); i < 3; i++ {
		require.NoError(t, chunk.Columns[0].Append(value.Int64(i)))
	}
	chunk.SetRowCount(3)
	before := chunk.Columns[0].Slice()

	chunk.SetSelection(SelectionVector{0})
	after := chunk.Columns[0].Slice()

	assert.Equal(t, &before[0], &after[0], "setting a selection must not copy column data")
}

func TestSelectionVectorDefaultsToFullRange(t *testing.T) {
	var sel SelectionVector
	assert.Equal(t, []int{0, 1, 2}, sel.SelectedIndices(3))
}

func TestDataChunkColumnIndex(t *testing.T) {
	chunk := NewDataChunk([]string{"a", "b"}, []value.LogicalType{value.LogicalInt64, value.LogicalString}, 8)
	assert.Equal(t, 0, chunk.ColumnIndex("a"))
	assert.Equal(t, 1, chunk.ColumnIndex("b"))
	assert.Equal(t, -1, chunk.ColumnIndex("c"))
}

func TestDataChunkResetClearsSelectionAndCount(t *testing.T) {
	chunk := NewDataChunk([]string{"a"}, []value.LogicalType{value.LogicalInt64}, 8)
	require.NoError(t, chunk.Columns[0].Append(value.Int64(1)))
	chunk.SetRowCount(1)
	chunk.SetSelection(SelectionVector{0})

	chunk.Reset()
	assert.Equal(t, 0, chunk.TotalRowCount())
	assert.Equal(t, 0, chunk.RowCount())
	assert.Equal(t, 0, chunk.Columns[0].Len())
}

func TestChunkPoolReusesAndResets(t *testing.T) {
	p := NewChunkPool([]string{"a"}, []value.LogicalType{value.LogicalInt64}, 8)
	chunk := p.Get()
	require.NoError(t, chunk.Columns[0].Append(value.Int64(42)))
	chunk.SetRowCount(1)
	p.Put(chunk)

	reused := p.Get()
	assert.Equal(t, 0, reused.TotalRowCount())
	assert.Equal(t, 0, reused.Columns[0].Len())
}

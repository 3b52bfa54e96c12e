package spill

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpgdb/lpgdb/pkg/value"
)

func TestSpillFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	f, err := Create(dir, "test")
	require.NoError(t, err)

	rows := []Row{
		{value.Int64(1), value.String("a")},
		{value.Int64(2), value.String("b")},
		{value.Null, value.Bool(true)},
	}
	for _, r := range rows {
		require.NoError(t, f.WriteRow(r))
	}
	require.NoError(t, f.Close())

	rdr, err := OpenReader(f.Path())
	require.NoError(t, err)
	defer rdr.Close()

	var got []Row
	for {
		row, err := rdr.ReadRow()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, row)
	}
	require.Len(t, got, len(rows))
	for i, r := range rows {
		for c := range r {
			assert.True(t, value.Equal(r[c], got[i][c]))
		}
	}
	require.NoError(t, f.Remove())
}

func intLess(a, b Row) bool {
	av, _ := a[0].AsInt64()
	bv, _ := b[0].AsInt64()
	return av < bv
}

func TestExternalSortInMemoryWhenUnderBudget(t *testing.T) {
	dir := t.TempDir()
	s := NewExternalSort(dir, 100, intLess)
	for _, v := range []int64{5, 3, 4, 1, 2} {
		require.NoError(t, s.Add(Row{value.Int64(v)}))
	}
	it, err := s.Finish()
	require.NoError(t, err)
	defer it.Close()

	var got []int64
	for {
		row, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		v, _ := row[0].AsInt64()
		got = append(got, v)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, got)
}

func TestExternalSortSpillsAndMerges(t *testing.T) {
	dir := t.TempDir()
	s := NewExternalSort(dir, 3, intLess)
	values := []int64{9, 2, 7, 1, 8, 3, 6, 4, 5, 0}
	for _, v := range values {
		require.NoError(t, s.Add(Row{value.Int64(v)}))
	}
	it, err := s.Finish()
	require.NoError(t, err)
	defer it.Close()

	var got []int64
	for {
		row, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		v, _ := row[0].AsInt64()
		got = append(got, v)
	}
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestPartitionedStateIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPartitionedState(dir, 8)
	require.NoError(t, err)
	defer p.Close()

	key := Row{value.String("NYC")}
	idx1, err := p.PartitionOf(key)
	require.NoError(t, err)
	idx2, err := p.PartitionOf(key)
	require.NoError(t, err)
	assert.Equal(t, idx1, idx2)
}

func TestPartitionedStateRoutesAndReads(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPartitionedState(dir, 4)
	require.NoError(t, err)

	cities := []string{"NYC", "LA", "NYC", "SF", "LA"}
	for i, city := range cities {
		key := Row{value.String(city)}
		require.NoError(t, p.Add(key, Row{value.String(city), value.Int64(int64(i))}))
	}

	readers, err := p.PartitionReaders()
	require.NoError(t, err)

	total := 0
	for _, r := range readers {
		for {
			_, err := r.ReadRow()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			total++
		}
		require.NoError(t, r.Close())
	}
	assert.Equal(t, len(cities), total)
	require.NoError(t, p.Close())
}

func TestDefaultPartitionCount(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPartitionedState(dir, 0)
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, DefaultPartitionCount, p.Count())
}

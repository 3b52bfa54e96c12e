package buffer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryAllocateGrantsUnderBudget(t *testing.T) {
	m := NewManager(1000)
	g, err := m.TryAllocate(400, GraphStorage)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), g.Bytes())
	assert.Equal(t, uint64(400), m.Usage(GraphStorage))
}

func TestReleaseReturnsBytes(t *testing.T) {
	m := NewManager(1000)
	g, err := m.TryAllocate(400, GraphStorage)
	require.NoError(t, err)
	g.Release()
	assert.Equal(t, uint64(0), m.Usage(GraphStorage))

	g.Release() // idempotent
	assert.Equal(t, uint64(0), m.Usage(GraphStorage))
}

func TestPressureLevels(t *testing.T) {
	m := NewManager(1000)
	assert.Equal(t, Normal, m.Level())

	_, err := m.TryAllocate(750, ExecutionBuffers)
	require.NoError(t, err)
	assert.Equal(t, Moderate, m.Level())

	_, err = m.TryAllocate(150, ExecutionBuffers)
	require.NoError(t, err)
	assert.Equal(t, High, m.Level())
}

type fakeConsumer struct {
	name     string
	priority int
	freed    uint64
	spillErr error
	m        *Manager
	region   Region
}

func (c *fakeConsumer) Name() string   { return c.name }
func (c *fakeConsumer) Priority() int  { return c.priority }
func (c *fakeConsumer) Spill() error {
	if c.spillErr != nil {
		return c.spillErr
	}
	c.m.release(c.region, c.freed)
	return nil
}

func TestCriticalPressureForcesSpillThenGrants(t *testing.T) {
	m := NewManager(1000)
	_, err := m.TryAllocate(960, GraphStorage)
	require.NoError(t, err)
	assert.Equal(t, Critical, m.Level())

	low := &fakeConsumer{name: "low", priority: 0, freed: 500, m: m, region: GraphStorage}
	m.RegisterConsumer(low)

	g, err := m.TryAllocate(100, ExecutionBuffers)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), g.Bytes())
}

func TestCriticalPressureBlocksWhenNoRoomEvenAfterSpill(t *testing.T) {
	m := NewManager(1000)
	_, err := m.TryAllocate(990, GraphStorage)
	require.NoError(t, err)

	_, err = m.TryAllocate(50, ExecutionBuffers)
	assert.Error(t, err)
}

func TestSpillOrderIsLowestPriorityFirst(t *testing.T) {
	m := NewManager(1000)
	_, err := m.TryAllocate(960, GraphStorage)
	require.NoError(t, err)

	var order []string
	makeConsumer := func(name string, priority int) *fakeConsumer {
		return &fakeConsumer{name: name, priority: priority, freed: 1, m: m, region: GraphStorage}
	}
	first := makeConsumer("first", 0)
	second := makeConsumer("second", 5)
	recordingFirst := &recordingConsumer{fakeConsumer: first, order: &order}
	recordingSecond := &recordingConsumer{fakeConsumer: second, order: &order}
	m.RegisterConsumer(recordingSecond)
	m.RegisterConsumer(recordingFirst)

	_, _ = m.TryAllocate(60, ExecutionBuffers)
	require.NotEmpty(t, order)
	assert.Equal(t, "first", order[0])
}

type recordingConsumer struct {
	*fakeConsumer
	order *[]string
}

func (c *recordingConsumer) Spill() error {
	*c.order = append(*c.order, c.name)
	return c.fakeConsumer.Spill()
}

func TestTryAllocateCompositeAllOrNothing(t *testing.T) {
	m := NewManager(1000)
	reqs := []AllocRequest{
		{Bytes: 400, Region: GraphStorage},
		{Bytes: 2000, Region: IndexBuffers}, // exceeds budget outright
	}
	_, err := m.TryAllocateComposite(reqs)
	assert.Error(t, err)
	assert.Equal(t, uint64(0), m.Usage(GraphStorage), "first leg must be rolled back")
}

func TestTryAllocateCompositeSucceeds(t *testing.T) {
	m := NewManager(1000)
	reqs := []AllocRequest{
		{Bytes: 100, Region: GraphStorage},
		{Bytes: 200, Region: IndexBuffers},
	}
	g, err := m.TryAllocateComposite(reqs)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), g.TotalBytes())
	g.Release()
	assert.Equal(t, uint64(0), m.Usage(GraphStorage))
	assert.Equal(t, uint64(0), m.Usage(IndexBuffers))
}

func TestDefaultBudgetIsPositive(t *testing.T) {
	assert.Greater(t, DefaultBudget(), uint64(0))
}

func TestRegionString(t *testing.T) {
	assert.Equal(t, "GraphStorage", fmt.Sprintf("%s", GraphStorage))
	assert.Equal(t, "SpillStaging", fmt.Sprintf("%s", SpillStaging))
}

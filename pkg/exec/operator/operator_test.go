package operator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpgdb/lpgdb/pkg/physical"
	"github.com/lpgdb/lpgdb/pkg/plan"
	"github.com/lpgdb/lpgdb/pkg/store"
	"github.com/lpgdb/lpgdb/pkg/value"
)

func strp(s string) *string { return &s }

func newTestStore() *store.Store { return store.New(store.Options{}) }

func mustBuild(t *testing.T, logical *plan.Operator) (Operator, *physical.Operator) {
	t.Helper()
	phys, err := physical.Plan(logical)
	require.NoError(t, err)
	op, err := Build(phys, nil, MutationContext{})
	require.NoError(t, err)
	return op, phys
}

func drain(t *testing.T, op Operator, rt *Runtime) [][]value.Value {
	t.Helper()
	var rows [][]value.Value
	for {
		chunk, err := op.Next(rt)
		require.NoError(t, err)
		if chunk == nil {
			break
		}
		for _, row := range chunk.SelectedIndices() {
			cols := make([]value.Value, len(chunk.Columns))
			for c := range chunk.Columns {
				cols[c] = chunk.Columns[c].At(row)
			}
			rows = append(rows, cols)
		}
	}
	return rows
}

func TestScanFilterProjectEndToEnd(t *testing.T) {
	s := newTestStore()
	rt := &Runtime{Store: s}

	ages := []int64{20, 25, 30, 35, 40}
	for _, age := range ages {
		_, err := s.CreateNodeWithProps([]string{"Person"}, map[string]value.Value{"age": value.Int64(age)}, 1)
		require.NoError(t, err)
	}

	logical := plan.Project(
		map[string]plan.Expression{"age": plan.Prop("n", "age")},
		plan.Filter(
			plan.Bin(plan.Gt, plan.Prop("n", "age"), plan.Lit(value.Int64(28))),
			plan.NodeScan("n", strp("Person"), nil),
		),
	)
	op, _ := mustBuild(t, logical)
	rows := drain(t, op, rt)

	var got []int64
	for _, r := range rows {
		v, _ := r[0].AsInt64()
		got = append(got, v)
	}
	assert.ElementsMatch(t, []int64{30, 35, 40}, got)
}

func TestExpandSingleHop(t *testing.T) {
	s := newTestStore()
	rt := &Runtime{Store: s}

	a, _ := s.CreateNode([]string{"Person"}, 1)
	b, _ := s.CreateNode([]string{"Person"}, 1)
	c, _ := s.CreateNode([]string{"Person"}, 1)
	_, err := s.CreateEdge(a, b, "KNOWS", 1)
	require.NoError(t, err)
	_, err = s.CreateEdge(a, c, "KNOWS", 1)
	require.NoError(t, err)
	_, err = s.CreateEdge(b, c, "KNOWS", 1)
	require.NoError(t, err)

	edgeVar := "e"
	logical := plan.Expand("a", "b", &edgeVar, plan.Outgoing, strp("KNOWS"), 1, u32p(1), plan.NodeScan("a", nil, nil))
	op, _ := mustBuild(t, logical)
	rows := drain(t, op, rt)
	assert.Len(t, rows, 3)
}

func u32p(v uint32) *uint32 { return &v }

func TestSimpleAggregateCount(t *testing.T) {
	s := newTestStore()
	rt := &Runtime{Store: s}
	for i := 0; i < 4; i++ {
		_, _ = s.CreateNode([]string{"Person"}, 1)
	}

	logical := plan.Aggregate(nil, []plan.AggregateItem{{Function: plan.AggCount, Alias: "total"}}, plan.NodeScan("n", strp("Person"), nil))
	op, _ := mustBuild(t, logical)
	rows := drain(t, op, rt)
	require.Len(t, rows, 1)
	total, _ := rows[0][0].AsInt64()
	assert.Equal(t, int64(4), total)
}

func TestHashAggregateGroupsByCity(t *testing.T) {
	s := newTestStore()
	rt := &Runtime{Store: s}
	cities := []string{"NYC", "NYC", "NYC", "LA", "LA"}
	for _, city := range cities {
		_, err := s.CreateNodeWithProps([]string{"Person"}, map[string]value.Value{"city": value.String(city)}, 1)
		require.NoError(t, err)
	}

	logical := plan.Aggregate(
		[]plan.Expression{plan.Prop("n", "city")},
		[]plan.AggregateItem{{Function: plan.AggCount, Alias: "cnt"}},
		plan.NodeScan("n", strp("Person"), nil),
	)
	op, _ := mustBuild(t, logical)
	rows := drain(t, op, rt)
	require.Len(t, rows, 2)

	counts := map[string]int64{}
	for _, r := range rows {
		city, _ := r[0].AsString()
		cnt, _ := r[1].AsInt64()
		counts[city] = cnt
	}
	assert.Equal(t, int64(3), counts["NYC"])
	assert.Equal(t, int64(2), counts["LA"])
}

func TestLimitAndSkip(t *testing.T) {
	s := newTestStore()
	rt := &Runtime{Store: s}
	for i := 0; i < 10; i++ {
		_, _ = s.CreateNode([]string{"Person"}, 1)
	}

	logical := plan.Limit(3, plan.Skip(2, plan.NodeScan("n", strp("Person"), nil)))
	op, _ := mustBuild(t, logical)
	rows := drain(t, op, rt)
	assert.Len(t, rows, 3)
}

func TestSortStableByKey(t *testing.T) {
	s := newTestStore()
	rt := &Runtime{Store: s}
	ages := []int64{30, 10, 20, 10}
	for _, age := range ages {
		_, err := s.CreateNodeWithProps([]string{"Person"}, map[string]value.Value{"age": value.Int64(age)}, 1)
		require.NoError(t, err)
	}

	logical := plan.Sort(
		[]plan.SortKey{{Expression: plan.Prop("n", "age")}},
		plan.NodeScan("n", strp("Person"), nil),
	)
	op, _ := mustBuild(t, logical)
	rows := drain(t, op, rt)
	require.Len(t, rows, 4)
	var got []int64
	for _, r := range rows {
		v, _ := r[0].AsInt64()
		got = append(got, v)
	}
	assert.Equal(t, []int64{10, 10, 20, 30}, got)
}

func TestDistinctDeduplicatesRows(t *testing.T) {
	s := newTestStore()
	rt := &Runtime{Store: s}
	for i := 0; i < 3; i++ {
		_, err := s.CreateNodeWithProps([]string{"Person"}, map[string]value.Value{"city": value.String("NYC")}, 1)
		require.NoError(t, err)
	}

	logical := plan.Distinct(plan.Project(
		map[string]plan.Expression{"city": plan.Prop("n", "city")},
		plan.NodeScan("n", strp("Person"), nil),
	))
	op, _ := mustBuild(t, logical)
	rows := drain(t, op, rt)
	assert.Len(t, rows, 1)
}

func TestUnionChainsBothSides(t *testing.T) {
	s := newTestStore()
	rt := &Runtime{Store: s}
	_, _ = s.CreateNode([]string{"Person"}, 1)
	_, _ = s.CreateNode([]string{"Company"}, 1)

	logical := plan.Union(
		plan.NodeScan("n", strp("Person"), nil),
		plan.NodeScan("n", strp("Company"), nil),
	)
	op, _ := mustBuild(t, logical)
	rows := drain(t, op, rt)
	assert.Len(t, rows, 2)
}

func TestCreateNodeAppliesToStoreAndBindsColumn(t *testing.T) {
	s := newTestStore()
	rt := &Runtime{Store: s}

	logical := plan.CreateNode("n", []string{"Person"}, map[string]plan.Expression{"name": plan.Lit(value.String("Alice"))}, plan.Empty())
	op, _ := mustBuild(t, logical)
	rows := drain(t, op, rt)
	require.Len(t, rows, 1)
	_, ok := rows[0][0].AsNode()
	assert.True(t, ok)
	assert.Equal(t, 1, s.NodeCount())

	got, _ := s.GetNode(value.NodeId(1))
	require.NotNil(t, got)
	name, _ := got.Properties["name"].AsString()
	assert.Equal(t, "Alice", name)
}

func TestDeleteNodeAppliesToStore(t *testing.T) {
	s := newTestStore()
	rt := &Runtime{Store: s}
	id, _ := s.CreateNode([]string{"Person"}, 1)
	require.Equal(t, 1, s.NodeCount())

	logical := plan.DeleteNode("n", plan.NodeScan("n", strp("Person"), nil))
	op, _ := mustBuild(t, logical)
	_ = drain(t, op, rt)
	assert.Equal(t, 0, s.NodeCount())

	_, ok := s.GetNode(id)
	assert.False(t, ok)
}

func TestHashJoinInnerOnEquiCondition(t *testing.T) {
	s := newTestStore()
	rt := &Runtime{Store: s}
	a, _ := s.CreateNodeWithProps([]string{"A"}, map[string]value.Value{"k": value.Int64(1)}, 1)
	_, _ = s.CreateNodeWithProps([]string{"A"}, map[string]value.Value{"k": value.Int64(2)}, 1)
	b, _ := s.CreateNodeWithProps([]string{"B"}, map[string]value.Value{"k": value.Int64(1)}, 1)
	_ = a
	_ = b

	cond := plan.Bin(plan.Eq, plan.Prop("a", "k"), plan.Prop("b", "k"))
	logical := plan.Join(plan.Inner, &cond, plan.NodeScan("a", strp("A"), nil), plan.NodeScan("b", strp("B"), nil))
	op, _ := mustBuild(t, logical)
	rows := drain(t, op, rt)
	assert.Len(t, rows, 1)
}

func TestHashJoinRightEmitsUnmatchedBuildRows(t *testing.T) {
	s := newTestStore()
	rt := &Runtime{Store: s}
	_, _ = s.CreateNodeWithProps([]string{"A"}, map[string]value.Value{"k": value.Int64(1)}, 1)
	_, _ = s.CreateNodeWithProps([]string{"B"}, map[string]value.Value{"k": value.Int64(1)}, 1)
	_, _ = s.CreateNodeWithProps([]string{"B"}, map[string]value.Value{"k": value.Int64(2)}, 1)

	cond := plan.Bin(plan.Eq, plan.Prop("a", "k"), plan.Prop("b", "k"))
	logical := plan.Join(plan.Right, &cond, plan.NodeScan("a", strp("A"), nil), plan.NodeScan("b", strp("B"), nil))
	op, _ := mustBuild(t, logical)
	rows := drain(t, op, rt)
	require.Len(t, rows, 2)

	var unmatched int
	for _, r := range rows {
		if r[0].IsNull() {
			unmatched++
		}
	}
	assert.Equal(t, 1, unmatched)
}

func TestHashJoinSemiEmitsLeftOnceForMultipleMatches(t *testing.T) {
	s := newTestStore()
	rt := &Runtime{Store: s}
	_, _ = s.CreateNodeWithProps([]string{"A"}, map[string]value.Value{"k": value.Int64(1)}, 1)
	_, _ = s.CreateNodeWithProps([]string{"B"}, map[string]value.Value{"k": value.Int64(1)}, 1)
	_, _ = s.CreateNodeWithProps([]string{"B"}, map[string]value.Value{"k": value.Int64(1)}, 1)

	cond := plan.Bin(plan.Eq, plan.Prop("a", "k"), plan.Prop("b", "k"))
	logical := plan.Join(plan.Semi, &cond, plan.NodeScan("a", strp("A"), nil), plan.NodeScan("b", strp("B"), nil))
	op, _ := mustBuild(t, logical)
	rows := drain(t, op, rt)
	assert.Len(t, rows, 1)
}

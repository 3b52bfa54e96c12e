package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpgdb/lpgdb/pkg/plan"
)

func strPtr(s string) *string { return &s }

func TestCardinalityNodeScanUsesLabelStats(t *testing.T) {
	stats := DefaultStats()
	stats.LabelCardinality["Person"] = 50

	withLabel := plan.NodeScan("n", strPtr("Person"), nil)
	assert.Equal(t, float64(50), EstimateCardinality(withLabel, stats))

	withoutLabel := plan.NodeScan("n", nil, nil)
	assert.Equal(t, stats.DefaultLabelCardinality, EstimateCardinality(withoutLabel, stats))
}

func TestCardinalityFilterAppliesSelectivity(t *testing.T) {
	stats := DefaultStats()
	scan := plan.NodeScan("n", strPtr("Person"), nil)
	stats.LabelCardinality["Person"] = 1000

	eqFilter := plan.Filter(plan.Bin(plan.Eq, plan.Prop("n", "age"), plan.Lit(int64(1))), scan)
	assert.InDelta(t, 10.0, EstimateCardinality(eqFilter, stats), 0.001)

	andFilter := plan.Filter(plan.Bin(plan.And,
		plan.Bin(plan.Eq, plan.Prop("n", "age"), plan.Lit(int64(1))),
		plan.Bin(plan.Gt, plan.Prop("n", "age"), plan.Lit(int64(1))),
	), scan)
	assert.InDelta(t, 1000*0.01*0.33, EstimateCardinality(andFilter, stats), 0.001)
}

func TestCardinalityExpandAppliesFanout(t *testing.T) {
	stats := DefaultStats()
	scan := plan.NodeScan("n", nil, nil) // 1000 default
	expand := plan.Expand("n", "m", nil, plan.Outgoing, nil, 1, uint32Ptr(1), scan)
	assert.InDelta(t, 1000*10, EstimateCardinality(expand, stats), 0.001)

	typed := "KNOWS"
	typedExpand := plan.Expand("n", "m", nil, plan.Outgoing, &typed, 1, uint32Ptr(1), scan)
	assert.InDelta(t, 1000*5, EstimateCardinality(typedExpand, stats), 0.001)
}

func TestCardinalityMonotonicityUnderFilterAddition(t *testing.T) {
	stats := DefaultStats()
	scan := plan.NodeScan("n", strPtr("Person"), nil)
	base := EstimateCardinality(scan, stats)

	filtered := plan.Filter(plan.Bin(plan.Eq, plan.Prop("n", "age"), plan.Lit(int64(1))), scan)
	filteredCard := EstimateCardinality(filtered, stats)

	assert.LessOrEqual(t, filteredCard, base, "adding a filter must never increase estimated cardinality")
}

func TestCardinalityAggregateNoGroupKeysIsOne(t *testing.T) {
	stats := DefaultStats()
	scan := plan.NodeScan("n", strPtr("Person"), nil)
	agg := plan.Aggregate(nil, []plan.AggregateItem{{Function: plan.AggCount}}, scan)
	assert.Equal(t, float64(1), EstimateCardinality(agg, stats))
}

func TestCardinalityLimitCaps(t *testing.T) {
	stats := DefaultStats()
	stats.LabelCardinality["Person"] = 1000
	scan := plan.NodeScan("n", strPtr("Person"), nil)
	limited := plan.Limit(5, scan)
	assert.Equal(t, float64(5), EstimateCardinality(limited, stats))
}

func TestPushDownFilterThroughExpandWhenOnlySourceVarUsed(t *testing.T) {
	scan := plan.NodeScan("n", strPtr("Person"), nil)
	expand := plan.Expand("n", "m", nil, plan.Outgoing, nil, 1, uint32Ptr(1), scan)
	pred := plan.Bin(plan.Eq, plan.Prop("n", "age"), plan.Lit(int64(30)))
	filter := plan.Filter(pred, expand)

	optimized := Optimize(filter, DefaultStats())

	// the filter should now sit directly under the expand, above the scan
	require.Equal(t, plan.OpExpand, optimized.Kind)
	require.Equal(t, plan.OpFilter, optimized.Input.Kind)
	assert.Equal(t, plan.OpNodeScan, optimized.Input.Input.Kind)
}

func TestPushDownFilterStaysAboveExpandWhenTargetVarUsed(t *testing.T) {
	scan := plan.NodeScan("n", strPtr("Person"), nil)
	expand := plan.Expand("n", "m", nil, plan.Outgoing, nil, 1, uint32Ptr(1), scan)
	pred := plan.Bin(plan.Eq, plan.Prop("m", "age"), plan.Lit(int64(30)))
	filter := plan.Filter(pred, expand)

	optimized := Optimize(filter, DefaultStats())

	require.Equal(t, plan.OpFilter, optimized.Kind)
	assert.Equal(t, plan.OpExpand, optimized.Input.Kind)
}

func TestPushDownFilterDoesNotCrossAggregate(t *testing.T) {
	scan := plan.NodeScan("n", strPtr("Person"), nil)
	agg := plan.Aggregate([]plan.Expression{plan.Prop("n", "city")}, []plan.AggregateItem{{Function: plan.AggCount}}, scan)
	pred := plan.Bin(plan.Eq, plan.Prop("n", "city"), plan.Lit("NYC"))
	filter := plan.Filter(pred, agg)

	optimized := Optimize(filter, DefaultStats())
	require.Equal(t, plan.OpFilter, optimized.Kind)
	assert.Equal(t, plan.OpAggregate, optimized.Input.Kind)
}

func TestPushDownFilterPreservesSemanticsShape(t *testing.T) {
	// Pushing a filter must never change the set of leaf scans reachable
	// from the tree — it only relocates the Filter node itself.
	scan := plan.NodeScan("n", strPtr("Person"), nil)
	expand := plan.Expand("n", "m", nil, plan.Outgoing, nil, 1, uint32Ptr(1), scan)
	pred := plan.Bin(plan.Eq, plan.Prop("n", "age"), plan.Lit(int64(30)))
	filter := plan.Filter(pred, expand)

	before := countKind(filter, plan.OpNodeScan)
	after := countKind(Optimize(filter, DefaultStats()), plan.OpNodeScan)
	assert.Equal(t, before, after)
}

func countKind(op *plan.Operator, kind plan.OpKind) int {
	count := 0
	plan.Walk(op, func(n *plan.Operator) {
		if n.Kind == kind {
			count++
		}
	})
	return count
}

func TestJoinReorderKeepsAllThreeRelations(t *testing.T) {
	a := plan.NodeScan("a", strPtr("A"), nil)
	b := plan.NodeScan("b", strPtr("B"), nil)
	c := plan.NodeScan("c", strPtr("C"), nil)

	condAB := plan.Bin(plan.Eq, plan.Var("a"), plan.Var("b"))
	condBC := plan.Bin(plan.Eq, plan.Var("b"), plan.Var("c"))

	ab := plan.Join(plan.Inner, &condAB, a, b)
	abc := plan.Join(plan.Inner, &condBC, ab, c)

	stats := DefaultStats()
	stats.JoinReorderEnabled = true
	stats.LabelCardinality["A"] = 10
	stats.LabelCardinality["B"] = 1000000
	stats.LabelCardinality["C"] = 10

	optimized := Optimize(abc, stats)
	require.Equal(t, plan.OpJoin, optimized.Kind)

	var scans []string
	plan.Walk(optimized, func(n *plan.Operator) {
		if n.Kind == plan.OpNodeScan {
			scans = append(scans, n.Variable)
		}
	})
	assert.ElementsMatch(t, []string{"a", "b", "c"}, scans)
}

func TestJoinReorderDisabledLeavesTreeUntouched(t *testing.T) {
	a := plan.NodeScan("a", strPtr("A"), nil)
	b := plan.NodeScan("b", strPtr("B"), nil)
	cond := plan.Bin(plan.Eq, plan.Var("a"), plan.Var("b"))
	join := plan.Join(plan.Inner, &cond, a, b)

	optimized := Optimize(join, DefaultStats())
	require.Equal(t, plan.OpJoin, optimized.Kind)
	assert.Equal(t, "a", optimized.Left.Variable)
	assert.Equal(t, "b", optimized.Right.Variable)
}

func TestOptimizeIsDeterministic(t *testing.T) {
	build := func() *plan.Operator {
		scan := plan.NodeScan("n", strPtr("Person"), nil)
		expand := plan.Expand("n", "m", nil, plan.Outgoing, nil, 1, uint32Ptr(1), scan)
		pred := plan.Bin(plan.Eq, plan.Prop("n", "age"), plan.Lit(int64(30)))
		return plan.Filter(pred, expand)
	}
	stats := DefaultStats()
	first := Optimize(build(), stats)
	second := Optimize(build(), stats)
	assert.Equal(t, EstimateCost(first, stats), EstimateCost(second, stats))
}

func uint32Ptr(v uint32) *uint32 { return &v }

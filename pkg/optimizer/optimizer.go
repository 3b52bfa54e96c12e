// Package optimizer implements the logical-plan rewrite and cost-estimation
// pass described in spec.md §4.6 (component C8): filter pushdown, per-
// operator cardinality estimation, a linear cost model, and an optional
// DPccp-style join-reorder hook. The optimizer is pure — same plan plus
// same statistics always yields the same output plan, and it never
// consults the live store (spec.md's determinism guarantee).
//
// This package is new structure: the reference engine picks a single
// execution strategy per Cypher clause as it tree-walks (see
// pkg/cypher/executor.go), it does not build and rewrite a separate plan
// object first. The selectivity table and per-operator cardinality rules
// below follow spec.md §4.6 directly; the Optimize/estimate_* entry points
// are named the way the reference engine names its exported planning
// surface (pkg/cypher/explain.go's buildExecutionPlan/estimateDBHits).
package optimizer

import "github.com/lpgdb/lpgdb/pkg/plan"

// Stats supplies the statistics the cardinality estimator consults. A
// caller without real statistics can pass DefaultStats(), which matches
// spec.md §4.6's defaults.
type Stats struct {
	// LabelCardinality maps a label name to an estimated node count.
	// Missing labels fall back to DefaultLabelCardinality.
	LabelCardinality map[string]float64
	// DefaultLabelCardinality is used for NodeScan when no label is given,
	// or when a given label is absent from LabelCardinality.
	DefaultLabelCardinality float64
	// DefaultFanout is the average out-degree assumed for an Expand with
	// no edge type restriction.
	DefaultFanout float64
	// JoinReorderEnabled toggles the DPccp-style join enumerator.
	JoinReorderEnabled bool
}

func DefaultStats() Stats {
	return Stats{
		LabelCardinality:        map[string]float64{},
		DefaultLabelCardinality: 1000,
		DefaultFanout:           10,
		JoinReorderEnabled:      false,
	}
}

// Optimize rewrites op per spec.md §4.6's rules and returns the result. op
// itself is not mutated; Optimize builds new Operator nodes as it rewrites.
func Optimize(op *plan.Operator, stats Stats) *plan.Operator {
	rewritten := pushDownFilters(op)
	if stats.JoinReorderEnabled {
		rewritten = reorderJoins(rewritten, stats)
	}
	return rewritten
}

// EstimateCardinality returns the estimated output row count of op, per
// the per-operator rules in spec.md §4.6.
func EstimateCardinality(op *plan.Operator, stats Stats) float64 {
	if op == nil {
		return 0
	}
	switch op.Kind {
	case plan.OpNodeScan:
		if op.Label == nil {
			return stats.DefaultLabelCardinality
		}
		if c, ok := stats.LabelCardinality[*op.Label]; ok {
			return c
		}
		return stats.DefaultLabelCardinality
	case plan.OpEdgeScan, plan.OpTripleScan:
		return stats.DefaultLabelCardinality

	case plan.OpFilter:
		input := EstimateCardinality(op.Input, stats)
		return input * selectivity(op.Predicate, stats)

	case plan.OpExpand:
		input := EstimateCardinality(op.Input, stats)
		fanout := stats.DefaultFanout
		if op.EdgeType != nil {
			fanout /= 2
		}
		maxHops := uint32(1)
		if op.MaxHops != nil {
			maxHops = *op.MaxHops
		}
		if maxHops < op.MinHops {
			maxHops = op.MinHops
		}
		// Geometric sum over the hop range: fanout^minHops + ... + fanout^maxHops.
		var sum float64
		acc := 1.0
		for hop := uint32(0); hop <= maxHops; hop++ {
			if hop > 0 {
				acc *= fanout
			}
			if hop >= op.MinHops {
				sum += acc
			}
		}
		if sum == 0 {
			sum = fanout
		}
		return input * sum

	case plan.OpJoin:
		left := EstimateCardinality(op.Left, stats)
		right := EstimateCardinality(op.Right, stats)
		switch op.JoinType {
		case plan.Semi, plan.Anti:
			return left * conditionSelectivity(op.JoinCond)
		case plan.Left:
			return max(left, left*right*conditionSelectivity(op.JoinCond))
		case plan.Right:
			return max(right, left*right*conditionSelectivity(op.JoinCond))
		case plan.Full:
			return max(left, max(right, left*right*conditionSelectivity(op.JoinCond)))
		case plan.Cross:
			return left * right
		default: // Inner
			return left * right * conditionSelectivity(op.JoinCond)
		}
	case plan.OpLeftJoin:
		left := EstimateCardinality(op.Left, stats)
		right := EstimateCardinality(op.Right, stats)
		return max(left, left*right*conditionSelectivity(op.JoinCond))
	case plan.OpAntiJoin:
		left := EstimateCardinality(op.Left, stats)
		return left * conditionSelectivity(op.JoinCond)

	case plan.OpUnion:
		var total float64
		for _, child := range op.Children {
			total += EstimateCardinality(child, stats)
		}
		return total

	case plan.OpAggregate:
		input := EstimateCardinality(op.Input, stats)
		if len(op.GroupBy) == 0 {
			return 1
		}
		divisor := 1.0
		for range op.GroupBy {
			divisor *= 10
		}
		return input / divisor

	case plan.OpDistinct:
		return EstimateCardinality(op.Input, stats) * 0.5

	case plan.OpLimit:
		input := EstimateCardinality(op.Input, stats)
		if float64(op.Count) < input {
			return float64(op.Count)
		}
		return input

	case plan.OpSkip:
		input := EstimateCardinality(op.Input, stats)
		remaining := input - float64(op.Count)
		if remaining < 0 {
			return 0
		}
		return remaining

	case plan.OpEmpty:
		return 0

	default:
		return EstimateCardinality(op.Input, stats)
	}
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// selectivity resolves a predicate expression to the per-predicate
// selectivity table in spec.md §4.6.
func selectivity(pred *plan.Expression, stats Stats) float64 {
	if pred == nil {
		return 1
	}
	switch pred.Kind {
	case plan.ExprUnary:
		switch pred.UnaryOp {
		case plan.IsNull:
			return 0.05
		case plan.IsNotNull:
			return 0.95
		case plan.Not:
			return 1 - selectivity(pred.Operand, stats)
		}
		return 1
	case plan.ExprBinary:
		switch pred.BinaryOp {
		case plan.Eq:
			return 0.01
		case plan.Ne:
			return 0.99
		case plan.Lt, plan.Le, plan.Gt, plan.Ge:
			return 0.33
		case plan.StartsWith, plan.EndsWith, plan.Contains, plan.Like:
			return 0.1
		case plan.And:
			return selectivity(pred.Left, stats) * selectivity(pred.Right, stats)
		case plan.Or:
			a := selectivity(pred.Left, stats)
			b := selectivity(pred.Right, stats)
			return a + b - a*b
		default:
			return 1
		}
	default:
		return 1
	}
}

// conditionSelectivity is selectivity's join-condition counterpart: a
// join condition may be nil (cross-product-like join) in which case it
// selects everything, or a single equality/range predicate over columns
// from both sides.
func conditionSelectivity(cond *plan.Expression) float64 {
	if cond == nil {
		return 1
	}
	if cond.Kind == plan.ExprBinary {
		switch cond.BinaryOp {
		case plan.Eq:
			return 0.1
		case plan.And:
			return conditionSelectivity(cond.Left) * conditionSelectivity(cond.Right)
		}
	}
	return 0.1
}

// EstimateCost returns a linear-combination cost estimate for op,
// summing each node's own cardinality-weighted coefficient plus an I/O
// proxy at scan leaves (spec.md §4.6 rule 3).
func EstimateCost(op *plan.Operator, stats Stats) float64 {
	if op == nil {
		return 0
	}
	card := EstimateCardinality(op, stats)
	const cpuCoefficient = 1.0
	cost := card * cpuCoefficient

	switch op.Kind {
	case plan.OpNodeScan, plan.OpEdgeScan, plan.OpTripleScan:
		const ioCoefficient = 0.5
		cost += card * ioCoefficient
	}

	cost += EstimateCost(op.Input, stats)
	cost += EstimateCost(op.Left, stats)
	cost += EstimateCost(op.Right, stats)
	for _, child := range op.Children {
		cost += EstimateCost(child, stats)
	}
	return cost
}

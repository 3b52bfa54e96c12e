package optimizer

import "github.com/lpgdb/lpgdb/pkg/plan"

// reorderJoins implements the optional DPccp-style join-reorder hook from
// spec.md §4.6 rule 4: it collects the base relations and join conditions
// out of a left-deep chain of inner Joins, enumerates connected subgraph /
// complement pairs (csg-cmp pairs) over the resulting join hypergraph, and
// rebuilds the minimum-cost join tree via dynamic programming over
// subsets. Non-Join nodes, and any Join that isn't a plain Inner join, are
// left untouched — reordering only ever applies to a maximal run of inner
// joins.
func reorderJoins(op *plan.Operator, stats Stats) *plan.Operator {
	if op == nil {
		return nil
	}
	if op.Kind != plan.OpJoin || op.JoinType != plan.Inner {
		cp := *op
		cp.Input = reorderJoins(op.Input, stats)
		cp.Left = reorderJoins(op.Left, stats)
		cp.Right = reorderJoins(op.Right, stats)
		if op.Children != nil {
			cp.Children = make([]*plan.Operator, len(op.Children))
			for i, child := range op.Children {
				cp.Children[i] = reorderJoins(child, stats)
			}
		}
		return &cp
	}

	leaves, conds := flattenInnerJoins(op)
	if len(leaves) <= 2 {
		return op
	}
	return buildOptimalJoinTree(leaves, conds, stats)
}

// flattenInnerJoins walks a maximal chain of Inner Joins, collecting the
// leaf (non-join, or differently-typed-join) subtrees and every join
// condition encountered.
func flattenInnerJoins(op *plan.Operator) ([]*plan.Operator, []*plan.Expression) {
	var leaves []*plan.Operator
	var conds []*plan.Expression

	var walk func(*plan.Operator)
	walk = func(n *plan.Operator) {
		if n.Kind == plan.OpJoin && n.JoinType == plan.Inner {
			if n.JoinCond != nil {
				conds = append(conds, n.JoinCond)
			}
			walk(n.Left)
			walk(n.Right)
			return
		}
		leaves = append(leaves, n)
	}
	walk(op)
	return leaves, conds
}

// joinPlan is one entry of the DP table: a subset of leaves (by bitmask),
// the join tree built for exactly that subset, and its estimated cost.
type joinPlan struct {
	tree *plan.Operator
	cost float64
}

// buildOptimalJoinTree enumerates every csg-cmp pair over the power set of
// leaves (feasible at the small leaf counts real queries produce) and
// keeps, for each subset, the cheapest tree seen. This is DPccp in spirit:
// every subset's optimal plan is built strictly from optimal plans of two
// disjoint, smaller subsets that partition it.
func buildOptimalJoinTree(leaves []*plan.Operator, conds []*plan.Expression, stats Stats) *plan.Operator {
	n := len(leaves)
	best := make(map[uint64]joinPlan, 1<<uint(n))

	for i, leaf := range leaves {
		mask := uint64(1) << uint(i)
		best[mask] = joinPlan{tree: leaf, cost: EstimateCost(leaf, stats)}
	}

	full := uint64(1)<<uint(n) - 1
	for subsetSize := 2; subsetSize <= n; subsetSize++ {
		for mask := uint64(1); mask <= full; mask++ {
			if popcount(mask) != subsetSize {
				continue
			}
			// Enumerate every nonempty proper sub-mask as the left side;
			// its complement within mask is the right side.
			for sub := (mask - 1) & mask; sub > 0; sub = (sub - 1) & mask {
				complement := mask &^ sub
				if complement == 0 {
					continue
				}
				leftPlan, ok1 := best[sub]
				rightPlan, ok2 := best[complement]
				if !ok1 || !ok2 {
					continue
				}
				cond := conditionFor(leaves, sub, complement, conds)
				candidate := plan.Join(plan.Inner, cond, leftPlan.tree, rightPlan.tree)
				cost := leftPlan.cost + rightPlan.cost + EstimateCost(candidate, stats)
				if existing, ok := best[mask]; !ok || cost < existing.cost {
					best[mask] = joinPlan{tree: candidate, cost: cost}
				}
			}
		}
	}
	return best[full].tree
}

func popcount(mask uint64) int {
	count := 0
	for mask != 0 {
		count += int(mask & 1)
		mask >>= 1
	}
	return count
}

// conditionFor returns the first collected join condition whose free
// variables land entirely within the union of leftMask/rightMask leaves,
// or nil (a cross join) when none apply.
func conditionFor(leaves []*plan.Operator, leftMask, rightMask uint64, conds []*plan.Expression) *plan.Expression {
	combined := leftMask | rightMask
	for _, cond := range conds {
		free := cond.FreeVariables()
		if exprFitsWithinLeaves(free, leaves, combined) {
			return cond
		}
	}
	return nil
}

func exprFitsWithinLeaves(free map[string]struct{}, leaves []*plan.Operator, mask uint64) bool {
	allowed := make(map[string]struct{})
	for i, leaf := range leaves {
		if mask&(uint64(1)<<uint(i)) == 0 {
			continue
		}
		for v := range operatorOutputVars(leaf) {
			allowed[v] = struct{}{}
		}
	}
	return subsetOf(free, allowed)
}

package optimizer

import "github.com/lpgdb/lpgdb/pkg/plan"

// pushDownFilters recursively rewrites op, pushing any Filter toward the
// leaves per spec.md §4.6 rule 1. It never pushes through Aggregate,
// Limit, Skip, Sort, or Distinct — the filter stays above those.
func pushDownFilters(op *plan.Operator) *plan.Operator {
	if op == nil {
		return nil
	}

	switch op.Kind {
	case plan.OpFilter:
		child := pushDownFilters(op.Input)
		return tryPush(*op.Predicate, child)

	case plan.OpJoin, plan.OpLeftJoin, plan.OpAntiJoin:
		cp := *op
		cp.Left = pushDownFilters(op.Left)
		cp.Right = pushDownFilters(op.Right)
		return &cp

	case plan.OpUnion:
		cp := *op
		cp.Children = make([]*plan.Operator, len(op.Children))
		for i, child := range op.Children {
			cp.Children[i] = pushDownFilters(child)
		}
		return &cp

	default:
		cp := *op
		cp.Input = pushDownFilters(op.Input)
		return &cp
	}
}

// tryPush attaches predicate as a Filter at the lowest point in child's
// tree where its free variables are still satisfied, following spec.md
// §4.6 rule 1's per-operator conditions.
func tryPush(predicate plan.Expression, child *plan.Operator) *plan.Operator {
	if child == nil {
		return plan.Filter(predicate, nil)
	}

	free := predicate.FreeVariables()

	switch child.Kind {
	case plan.OpAggregate, plan.OpLimit, plan.OpSkip, plan.OpSort, plan.OpDistinct:
		return plan.Filter(predicate, child)

	case plan.OpProject, plan.OpReturn:
		if disjointFromAliases(free, child.Projections) {
			cp := *child
			cp.Input = tryPush(predicate, child.Input)
			return &cp
		}
		return plan.Filter(predicate, child)

	case plan.OpExpand:
		if onlyVar(free, child.FromVariable) {
			cp := *child
			cp.Input = tryPush(predicate, child.Input)
			return &cp
		}
		return plan.Filter(predicate, child)

	case plan.OpJoin:
		leftVars := operatorOutputVars(child.Left)
		rightVars := operatorOutputVars(child.Right)
		switch {
		case subsetOf(free, leftVars):
			cp := *child
			cp.Left = tryPush(predicate, child.Left)
			return &cp
		case subsetOf(free, rightVars):
			cp := *child
			cp.Right = tryPush(predicate, child.Right)
			return &cp
		default:
			return plan.Filter(predicate, child)
		}

	default:
		// Anything not explicitly named in spec.md §4.6 rule 1 (scans,
		// mutation operators, Bind, Unwind, ...) is a stopping point: the
		// filter attaches directly above it rather than risk pushing past
		// an operator whose semantics pushdown was never specified for.
		return plan.Filter(predicate, child)
	}
}

func disjointFromAliases(free map[string]struct{}, projections map[string]plan.Expression) bool {
	for alias := range projections {
		if _, ok := free[alias]; ok {
			return false
		}
	}
	return true
}

func onlyVar(free map[string]struct{}, v string) bool {
	for name := range free {
		if name != v {
			return false
		}
	}
	return true
}

func subsetOf(free, allowed map[string]struct{}) bool {
	for name := range free {
		if _, ok := allowed[name]; !ok {
			return false
		}
	}
	return true
}

// operatorOutputVars is a best-effort estimate of the variables an
// operator subtree can bind, used only to decide which join side a
// pushed predicate belongs on. It does not need to be exact for
// operators pushdown never reaches (mutation operators, etc.).
func operatorOutputVars(op *plan.Operator) map[string]struct{} {
	out := make(map[string]struct{})
	plan.Walk(op, func(n *plan.Operator) {
		switch n.Kind {
		case plan.OpNodeScan, plan.OpEdgeScan, plan.OpTripleScan:
			out[n.Variable] = struct{}{}
		case plan.OpExpand:
			out[n.ToVariable] = struct{}{}
			if n.EdgeVariable != nil {
				out[*n.EdgeVariable] = struct{}{}
			}
		case plan.OpBind:
			out[n.BindAlias] = struct{}{}
		case plan.OpUnwind:
			out[n.UnwindAlias] = struct{}{}
		}
	})
	return out
}

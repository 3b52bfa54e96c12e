// Package physical implements the lowering pass of spec.md §4.7 (component
// C9): turning a logical plan.Operator tree into a tree of physical
// Operators annotated with a derived output Schema and a variable→column
// map, ready for pkg/exec/operator to execute. It resolves every logical
// Variable/Property reference in the tree to a column index in its
// child's output schema; it does not itself evaluate expressions or touch
// the store.
//
// Grounded on the reference engine's pkg/cypher/executor.go
// StorageExecutor, which carries a binding map (variable name → live
// *storage.Node/*storage.Edge) through its tree-walk. This package
// generalizes that single runtime map into a planning-time
// variable→column index map built once, bottom-up, the way a columnar
// engine needs it.
package physical

import (
	"fmt"

	"github.com/lpgdb/lpgdb/pkg/plan"
	"github.com/lpgdb/lpgdb/pkg/value"
)

// Column is one entry of a derived output Schema.
type Column struct {
	Name string
	Type value.LogicalType
}

// Schema is the ordered list of (column_name, LogicalType) every operator
// downstream of its producer assumes (spec.md §4.7).
type Schema []Column

func (s Schema) IndexOf(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Operator is the physical plan tree's single node type. It mirrors
// plan.Operator's field set (Kind selects which are meaningful) but adds
// Schema and Vars, and keeps the original logical expressions/operator
// metadata so pkg/exec/operator can evaluate them against the resolved
// column indices in Vars.
type Operator struct {
	Kind   plan.OpKind
	Schema Schema
	// Vars maps every variable bound by this operator's subtree to a
	// column index in Schema.
	Vars map[string]int

	Input *Operator
	Left  *Operator
	Right *Operator

	Children []*Operator

	// Carried straight from the logical node; pkg/exec/operator evaluates
	// these against Vars/Schema at execution time.
	Logical *plan.Operator
}

// Plan lowers a logical op into a physical Operator tree, deriving a
// schema and variable→column map at every node (spec.md §4.7).
func Plan(op *plan.Operator) (*Operator, error) {
	if op == nil {
		return nil, nil
	}

	switch op.Kind {
	case plan.OpNodeScan:
		return leafScan(op, op.Variable, value.LogicalNode), nil
	case plan.OpEdgeScan:
		return leafScan(op, op.Variable, value.LogicalEdge), nil
	case plan.OpTripleScan:
		return leafScan(op, op.Variable, value.LogicalAny), nil
	case plan.OpEmpty:
		return &Operator{Kind: plan.OpEmpty, Schema: Schema{}, Vars: map[string]int{}, Logical: op}, nil

	case plan.OpExpand:
		input, err := Plan(op.Input)
		if err != nil {
			return nil, err
		}
		schema := cloneSchema(input.Schema)
		vars := cloneVars(input.Vars)
		targetType := value.LogicalNode
		vars[op.ToVariable] = len(schema)
		schema = append(schema, Column{Name: op.ToVariable, Type: targetType})
		if op.EdgeVariable != nil {
			vars[*op.EdgeVariable] = len(schema)
			schema = append(schema, Column{Name: *op.EdgeVariable, Type: value.LogicalEdge})
		}
		return &Operator{Kind: op.Kind, Schema: schema, Vars: vars, Input: input, Logical: op}, nil

	case plan.OpFilter:
		input, err := Plan(op.Input)
		if err != nil {
			return nil, err
		}
		return &Operator{Kind: op.Kind, Schema: input.Schema, Vars: input.Vars, Input: input, Logical: op}, nil

	case plan.OpProject, plan.OpReturn:
		input, err := Plan(op.Input)
		if err != nil {
			return nil, err
		}
		schema, vars, err := projectSchema(op.Projections, input)
		if err != nil {
			return nil, err
		}
		return &Operator{Kind: op.Kind, Schema: schema, Vars: vars, Input: input, Logical: op}, nil

	case plan.OpJoin, plan.OpLeftJoin, plan.OpAntiJoin:
		left, err := Plan(op.Left)
		if err != nil {
			return nil, err
		}
		right, err := Plan(op.Right)
		if err != nil {
			return nil, err
		}
		schema := append(cloneSchema(left.Schema), cloneSchema(right.Schema)...)
		vars := cloneVars(left.Vars)
		offset := len(left.Schema)
		for name, idx := range right.Vars {
			vars[name] = idx + offset
		}
		return &Operator{Kind: op.Kind, Schema: schema, Vars: vars, Left: left, Right: right, Logical: op}, nil

	case plan.OpUnion:
		children := make([]*Operator, len(op.Children))
		var schema Schema
		var vars map[string]int
		for i, child := range op.Children {
			p, err := Plan(child)
			if err != nil {
				return nil, err
			}
			children[i] = p
			if i == 0 {
				schema = p.Schema
				vars = p.Vars
			}
		}
		return &Operator{Kind: op.Kind, Schema: schema, Vars: vars, Children: children, Logical: op}, nil

	case plan.OpAggregate:
		input, err := Plan(op.Input)
		if err != nil {
			return nil, err
		}
		schema := make(Schema, 0, len(op.GroupBy)+len(op.Aggregates))
		vars := map[string]int{}
		for i, g := range op.GroupBy {
			name := exprLabel(g, i)
			vars[name] = len(schema)
			schema = append(schema, Column{Name: name, Type: value.LogicalAny})
		}
		for _, agg := range op.Aggregates {
			name := agg.Alias
			if name == "" {
				name = agg.Function.String()
			}
			t := value.LogicalAny
			if agg.Function == plan.AggCount {
				t = value.LogicalInt64
			}
			vars[name] = len(schema)
			schema = append(schema, Column{Name: name, Type: t})
		}
		return &Operator{Kind: op.Kind, Schema: schema, Vars: vars, Input: input, Logical: op}, nil

	case plan.OpSort, plan.OpDistinct, plan.OpLimit, plan.OpSkip, plan.OpBind, plan.OpUnwind:
		input, err := Plan(op.Input)
		if err != nil {
			return nil, err
		}
		schema := cloneSchema(input.Schema)
		vars := cloneVars(input.Vars)
		if op.Kind == plan.OpBind {
			vars[op.BindAlias] = len(schema)
			schema = append(schema, Column{Name: op.BindAlias, Type: value.LogicalAny})
		}
		if op.Kind == plan.OpUnwind {
			vars[op.UnwindAlias] = len(schema)
			schema = append(schema, Column{Name: op.UnwindAlias, Type: value.LogicalAny})
		}
		return &Operator{Kind: op.Kind, Schema: schema, Vars: vars, Input: input, Logical: op}, nil

	case plan.OpCreateNode:
		input, err := Plan(op.Input)
		if err != nil {
			return nil, err
		}
		schema := cloneSchema(input.Schema)
		vars := cloneVars(input.Vars)
		vars[op.Variable] = len(schema)
		schema = append(schema, Column{Name: op.Variable, Type: value.LogicalNode})
		return &Operator{Kind: op.Kind, Schema: schema, Vars: vars, Input: input, Logical: op}, nil

	case plan.OpCreateEdge:
		input, err := Plan(op.Input)
		if err != nil {
			return nil, err
		}
		schema := cloneSchema(input.Schema)
		vars := cloneVars(input.Vars)
		vars[op.Variable] = len(schema)
		schema = append(schema, Column{Name: op.Variable, Type: value.LogicalEdge})
		return &Operator{Kind: op.Kind, Schema: schema, Vars: vars, Input: input, Logical: op}, nil

	case plan.OpDeleteNode, plan.OpDeleteEdge, plan.OpSetProperty, plan.OpAddLabel, plan.OpRemoveLabel:
		input, err := Plan(op.Input)
		if err != nil {
			return nil, err
		}
		return &Operator{Kind: op.Kind, Schema: input.Schema, Vars: input.Vars, Input: input, Logical: op}, nil

	case plan.OpMerge:
		pattern, err := Plan(op.MergePattern)
		if err != nil {
			return nil, err
		}
		input, err := Plan(op.Input)
		if err != nil {
			return nil, err
		}
		schema := cloneSchema(pattern.Schema)
		vars := cloneVars(pattern.Vars)
		return &Operator{Kind: op.Kind, Schema: schema, Vars: vars, Input: input, Left: pattern, Logical: op}, nil

	default:
		return nil, fmt.Errorf("physical: unhandled operator kind %s", op.Kind)
	}
}

func leafScan(op *plan.Operator, variable string, t value.LogicalType) *Operator {
	schema := Schema{{Name: variable, Type: t}}
	return &Operator{Kind: op.Kind, Schema: schema, Vars: map[string]int{variable: 0}, Logical: op}
}

func cloneSchema(s Schema) Schema {
	out := make(Schema, len(s))
	copy(out, s)
	return out
}

func cloneVars(v map[string]int) map[string]int {
	out := make(map[string]int, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

func projectSchema(projections map[string]plan.Expression, input *Operator) (Schema, map[string]int, error) {
	schema := make(Schema, 0, len(projections))
	vars := map[string]int{}
	for alias, expr := range projections {
		t := inferType(expr, input)
		vars[alias] = len(schema)
		schema = append(schema, Column{Name: alias, Type: t})
	}
	return schema, vars, nil
}

// inferType makes a best-effort guess at an expression's output
// LogicalType from the input schema, falling back to Any. This is used
// only to pick a vector type for Project's output columns; the executor
// itself is the authority on runtime value kinds.
func inferType(expr plan.Expression, input *Operator) value.LogicalType {
	switch expr.Kind {
	case plan.ExprVariable:
		if idx, ok := input.Vars[expr.Name]; ok && idx < len(input.Schema) {
			return input.Schema[idx].Type
		}
	case plan.ExprLiteral:
		if v, ok := expr.Literal.(value.Value); ok {
			return v.Kind().LogicalType()
		}
	}
	return value.LogicalAny
}

func exprLabel(e plan.Expression, i int) string {
	if e.Kind == plan.ExprVariable || e.Kind == plan.ExprProperty {
		return e.String()
	}
	return fmt.Sprintf("col%d", i)
}

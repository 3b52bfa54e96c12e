// Package plan implements the logical plan IR shared by all query
// front-ends (spec.md §4.5/§6.1, component C7): an operator tree plus an
// expression tree. A front-end's only job is to build this shape; this
// package, the optimizer (pkg/optimizer), and the physical planner
// (pkg/physical) never know which surface language produced it.
//
// The tree-node shape here is grounded on the reference engine's
// pkg/cypher/explain.go PlanOperator/ExecutionPlan pair (a parent pointing
// at typed Children, walked bottom-up) — but where that package tree-walks
// a string AST directly, this one is a proper closed variant set with one
// struct per operator/expression kind, built once by a front-end and then
// read by multiple independent passes (optimizer, physical planner).
package plan

import "fmt"

// BinaryOp enumerates the binary operators an Expression's Binary variant
// may carry (spec.md §4.5).
type BinaryOp int

const (
	Eq BinaryOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
	And
	Or
	Xor
	Add
	Sub
	Mul
	Div
	Mod
	Concat
	StartsWith
	EndsWith
	Contains
	In
	Like
	Regex
	Pow
)

func (op BinaryOp) String() string {
	names := [...]string{"Eq", "Ne", "Lt", "Le", "Gt", "Ge", "And", "Or", "Xor",
		"Add", "Sub", "Mul", "Div", "Mod", "Concat", "StartsWith", "EndsWith",
		"Contains", "In", "Like", "Regex", "Pow"}
	if int(op) < 0 || int(op) >= len(names) {
		return "UnknownBinaryOp"
	}
	return names[op]
}

// UnaryOp enumerates the unary operators an Expression's Unary variant may
// carry.
type UnaryOp int

const (
	Not UnaryOp = iota
	Neg
	IsNull
	IsNotNull
)

func (op UnaryOp) String() string {
	switch op {
	case Not:
		return "Not"
	case Neg:
		return "Neg"
	case IsNull:
		return "IsNull"
	case IsNotNull:
		return "IsNotNull"
	default:
		return "UnknownUnaryOp"
	}
}

// ExprKind tags which variant an Expression holds.
type ExprKind int

const (
	ExprLiteral ExprKind = iota
	ExprVariable
	ExprParameter
	ExprProperty
	ExprBinary
	ExprUnary
	ExprFunctionCall
	ExprList
	ExprMap
	ExprIndexAccess
	ExprSliceAccess
	ExprCase
	ExprLabels
	ExprType
	ExprId
	ExprListComprehension
	ExprExistsSubquery
	ExprCountSubquery
)

// CaseBranch is one WHEN/THEN pair of a Case expression.
type CaseBranch struct {
	When Expression
	Then Expression
}

// Expression is a closed variant set (spec.md §4.5). Kind selects which
// fields are populated; this mirrors pkg/value.Value's flat-struct
// approach for the same reason expressions are built here: cheap to
// construct and walk without a type switch on an interface.
type Expression struct {
	Kind ExprKind

	// Literal
	Literal interface{} // a value.Value in practice; kept untyped here to
	// avoid an import cycle with pkg/value's own use of this package's
	// consumers (pkg/physical binds this to value.Value at compile time).

	// Variable / Parameter / Labels / Type / Id
	Name string

	// Property
	Var string
	Key string

	// Binary
	BinaryOp BinaryOp
	Left     *Expression
	Right    *Expression

	// Unary
	UnaryOp  UnaryOp
	Operand  *Expression

	// FunctionCall
	Function string
	Args     []Expression

	// List
	Items []Expression

	// Map
	Entries map[string]Expression

	// IndexAccess / SliceAccess
	Target *Expression
	Index  *Expression
	From   *Expression
	To     *Expression

	// Case
	Branches []CaseBranch
	Else     *Expression

	// ListComprehension: [x IN list WHERE pred | projection]
	IterVar    string
	Source     *Expression
	Predicate  *Expression
	Projection *Expression

	// ExistsSubquery / CountSubquery
	Subquery *Operator
}

func Lit(v interface{}) Expression { return Expression{Kind: ExprLiteral, Literal: v} }

func Var(name string) Expression { return Expression{Kind: ExprVariable, Name: name} }

func Param(name string) Expression { return Expression{Kind: ExprParameter, Name: name} }

func Prop(variable, key string) Expression {
	return Expression{Kind: ExprProperty, Var: variable, Key: key}
}

func Bin(op BinaryOp, left, right Expression) Expression {
	return Expression{Kind: ExprBinary, BinaryOp: op, Left: &left, Right: &right}
}

func Un(op UnaryOp, operand Expression) Expression {
	return Expression{Kind: ExprUnary, UnaryOp: op, Operand: &operand}
}

func Call(function string, args ...Expression) Expression {
	return Expression{Kind: ExprFunctionCall, Function: function, Args: args}
}

func ListExpr(items ...Expression) Expression {
	return Expression{Kind: ExprList, Items: items}
}

func MapExpr(entries map[string]Expression) Expression {
	return Expression{Kind: ExprMap, Entries: entries}
}

func Index(target, index Expression) Expression {
	return Expression{Kind: ExprIndexAccess, Target: &target, Index: &index}
}

func Slice(target Expression, from, to *Expression) Expression {
	return Expression{Kind: ExprSliceAccess, Target: &target, From: from, To: to}
}

func Case(branches []CaseBranch, elseExpr *Expression) Expression {
	return Expression{Kind: ExprCase, Branches: branches, Else: elseExpr}
}

func Labels(variable string) Expression { return Expression{Kind: ExprLabels, Name: variable} }

func Type(variable string) Expression { return Expression{Kind: ExprType, Name: variable} }

func Id(variable string) Expression { return Expression{Kind: ExprId, Name: variable} }

func ListComprehension(iterVar string, source, predicate, projection Expression) Expression {
	return Expression{
		Kind: ExprListComprehension, IterVar: iterVar,
		Source: &source, Predicate: &predicate, Projection: &projection,
	}
}

func ExistsSubquery(sub *Operator) Expression {
	return Expression{Kind: ExprExistsSubquery, Subquery: sub}
}

func CountSubquery(sub *Operator) Expression {
	return Expression{Kind: ExprCountSubquery, Subquery: sub}
}

// FreeVariables returns the set of variable names an expression reads,
// used by the optimizer's filter-pushdown rule (spec.md §4.6) to test
// whether a predicate can move past a given operator.
func (e Expression) FreeVariables() map[string]struct{} {
	out := make(map[string]struct{})
	e.collectFreeVariables(out)
	return out
}

func (e Expression) collectFreeVariables(out map[string]struct{}) {
	switch e.Kind {
	case ExprVariable, ExprLabels, ExprType, ExprId:
		out[e.Name] = struct{}{}
	case ExprProperty:
		out[e.Var] = struct{}{}
	case ExprBinary:
		e.Left.collectFreeVariables(out)
		e.Right.collectFreeVariables(out)
	case ExprUnary:
		e.Operand.collectFreeVariables(out)
	case ExprFunctionCall:
		for _, a := range e.Args {
			a.collectFreeVariables(out)
		}
	case ExprList:
		for _, item := range e.Items {
			item.collectFreeVariables(out)
		}
	case ExprMap:
		for _, v := range e.Entries {
			v.collectFreeVariables(out)
		}
	case ExprIndexAccess:
		e.Target.collectFreeVariables(out)
		e.Index.collectFreeVariables(out)
	case ExprSliceAccess:
		e.Target.collectFreeVariables(out)
		if e.From != nil {
			e.From.collectFreeVariables(out)
		}
		if e.To != nil {
			e.To.collectFreeVariables(out)
		}
	case ExprCase:
		for _, b := range e.Branches {
			b.When.collectFreeVariables(out)
			b.Then.collectFreeVariables(out)
		}
		if e.Else != nil {
			e.Else.collectFreeVariables(out)
		}
	case ExprListComprehension:
		e.Source.collectFreeVariables(out)
		inner := make(map[string]struct{})
		e.Predicate.collectFreeVariables(inner)
		e.Projection.collectFreeVariables(inner)
		delete(inner, e.IterVar)
		for v := range inner {
			out[v] = struct{}{}
		}
	}
}

func (e Expression) String() string {
	switch e.Kind {
	case ExprLiteral:
		return fmt.Sprintf("%v", e.Literal)
	case ExprVariable:
		return e.Name
	case ExprParameter:
		return "$" + e.Name
	case ExprProperty:
		return e.Var + "." + e.Key
	case ExprBinary:
		return fmt.Sprintf("(%s %s %s)", e.Left, e.BinaryOp, e.Right)
	case ExprUnary:
		return fmt.Sprintf("%s(%s)", e.UnaryOp, e.Operand)
	case ExprFunctionCall:
		return fmt.Sprintf("%s(...)", e.Function)
	default:
		return fmt.Sprintf("Expr(%d)", e.Kind)
	}
}

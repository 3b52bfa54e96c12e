// Package operator implements the pull-based vectorized operator family of
// spec.md §4.9 (component C11): Scan, Expand, Filter, Project, the join
// family, the aggregate family, Sort/Limit/Skip/Distinct/Union/Merge, and
// the mutation operators. Every operator exposes Next() returning the next
// *exec.DataChunk or nil at end of input, mirroring the reference engine's
// executor.go dispatch loop but vectorized instead of row-at-a-time.
package operator

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/lpgdb/lpgdb/pkg/exec"
	"github.com/lpgdb/lpgdb/pkg/physical"
	"github.com/lpgdb/lpgdb/pkg/plan"
	"github.com/lpgdb/lpgdb/pkg/store"
	"github.com/lpgdb/lpgdb/pkg/value"
)

// Runtime bundles the state an expression evaluator and every physical
// operator needs beyond the chunk itself: the live store for property and
// label lookups, and the bound query parameters.
type Runtime struct {
	Store  *store.Store
	Params map[string]value.Value
}

// Eval evaluates expr against row of chunk using vars (the physical
// operator's variable→column map) to resolve Variable/Property
// references, per spec.md §4.7/§4.9's "compile against the variable→
// column map" contract.
func Eval(expr plan.Expression, chunk *exec.DataChunk, row int, vars map[string]int, rt *Runtime) (value.Value, error) {
	switch expr.Kind {
	case plan.ExprLiteral:
		if v, ok := expr.Literal.(value.Value); ok {
			return v, nil
		}
		return value.Null, fmt.Errorf("eval: literal is not a value.Value: %v", expr.Literal)

	case plan.ExprParameter:
		if v, ok := rt.Params[expr.Name]; ok {
			return v, nil
		}
		return value.Null, nil

	case plan.ExprVariable:
		idx, ok := vars[expr.Name]
		if !ok {
			return value.Null, fmt.Errorf("eval: unbound variable %q", expr.Name)
		}
		return chunk.Columns[idx].At(row), nil

	case plan.ExprProperty:
		return evalProperty(expr, chunk, row, vars, rt)

	case plan.ExprLabels:
		return evalLabels(expr, chunk, row, vars, rt)

	case plan.ExprType:
		return evalEdgeType(expr, chunk, row, vars, rt)

	case plan.ExprId:
		v, err := Eval(plan.Var(expr.Name), chunk, row, vars, rt)
		if err != nil {
			return value.Null, err
		}
		switch v.Kind() {
		case value.KindNode:
			id, _ := v.AsNode()
			return value.Int64(int64(id)), nil
		case value.KindEdge:
			id, _ := v.AsEdge()
			return value.Int64(int64(id)), nil
		default:
			return value.Null, nil
		}

	case plan.ExprBinary:
		return evalBinary(expr, chunk, row, vars, rt)

	case plan.ExprUnary:
		return evalUnary(expr, chunk, row, vars, rt)

	case plan.ExprFunctionCall:
		return evalFunctionCall(expr, chunk, row, vars, rt)

	case plan.ExprList:
		items := make([]value.Value, len(expr.Items))
		for i, item := range expr.Items {
			v, err := Eval(item, chunk, row, vars, rt)
			if err != nil {
				return value.Null, err
			}
			items[i] = v
		}
		return value.List(items), nil

	case plan.ExprMap:
		m := make(map[string]value.Value, len(expr.Entries))
		for k, sub := range expr.Entries {
			v, err := Eval(sub, chunk, row, vars, rt)
			if err != nil {
				return value.Null, err
			}
			m[k] = v
		}
		return value.Map(m), nil

	case plan.ExprIndexAccess:
		target, err := Eval(*expr.Target, chunk, row, vars, rt)
		if err != nil {
			return value.Null, err
		}
		idx, err := Eval(*expr.Index, chunk, row, vars, rt)
		if err != nil {
			return value.Null, err
		}
		items, ok := target.AsList()
		if !ok {
			return value.Null, nil
		}
		i, _ := idx.AsInt64()
		if i < 0 || int(i) >= len(items) {
			return value.Null, nil
		}
		return items[i], nil

	case plan.ExprSliceAccess:
		target, err := Eval(*expr.Target, chunk, row, vars, rt)
		if err != nil {
			return value.Null, err
		}
		items, ok := target.AsList()
		if !ok {
			return value.Null, nil
		}
		from, to := 0, len(items)
		if expr.From != nil {
			v, err := Eval(*expr.From, chunk, row, vars, rt)
			if err != nil {
				return value.Null, err
			}
			i, _ := v.AsInt64()
			from = int(i)
		}
		if expr.To != nil {
			v, err := Eval(*expr.To, chunk, row, vars, rt)
			if err != nil {
				return value.Null, err
			}
			i, _ := v.AsInt64()
			to = int(i)
		}
		if from < 0 {
			from = 0
		}
		if to > len(items) {
			to = len(items)
		}
		if from > to {
			return value.List(nil), nil
		}
		return value.List(items[from:to]), nil

	case plan.ExprCase:
		for _, branch := range expr.Branches {
			cond, err := Eval(branch.When, chunk, row, vars, rt)
			if err != nil {
				return value.Null, err
			}
			if b, _ := cond.AsBool(); b {
				return Eval(branch.Then, chunk, row, vars, rt)
			}
		}
		if expr.Else != nil {
			return Eval(*expr.Else, chunk, row, vars, rt)
		}
		return value.Null, nil

	case plan.ExprListComprehension:
		return evalListComprehension(expr, chunk, row, vars, rt)

	default:
		return value.Null, fmt.Errorf("eval: unsupported expression kind %d", expr.Kind)
	}
}

func evalProperty(expr plan.Expression, chunk *exec.DataChunk, row int, vars map[string]int, rt *Runtime) (value.Value, error) {
	idx, ok := vars[expr.Var]
	if !ok {
		return value.Null, fmt.Errorf("eval: unbound variable %q", expr.Var)
	}
	v := chunk.Columns[idx].At(row)
	switch v.Kind() {
	case value.KindNode:
		id, _ := v.AsNode()
		n, ok := rt.Store.GetNode(id)
		if !ok {
			return value.Null, nil
		}
		if pv, ok := n.Properties[expr.Key]; ok {
			return pv, nil
		}
		return value.Null, nil
	case value.KindEdge:
		id, _ := v.AsEdge()
		e, ok := rt.Store.GetEdge(id)
		if !ok {
			return value.Null, nil
		}
		if pv, ok := e.Properties[expr.Key]; ok {
			return pv, nil
		}
		return value.Null, nil
	default:
		return value.Null, nil
	}
}

func evalLabels(expr plan.Expression, chunk *exec.DataChunk, row int, vars map[string]int, rt *Runtime) (value.Value, error) {
	idx, ok := vars[expr.Name]
	if !ok {
		return value.Null, fmt.Errorf("eval: unbound variable %q", expr.Name)
	}
	v := chunk.Columns[idx].At(row)
	id, ok := v.AsNode()
	if !ok {
		return value.List(nil), nil
	}
	n, ok := rt.Store.GetNode(id)
	if !ok {
		return value.List(nil), nil
	}
	items := make([]value.Value, len(n.Labels))
	for i, l := range n.Labels {
		items[i] = value.String(l)
	}
	return value.List(items), nil
}

func evalEdgeType(expr plan.Expression, chunk *exec.DataChunk, row int, vars map[string]int, rt *Runtime) (value.Value, error) {
	idx, ok := vars[expr.Name]
	if !ok {
		return value.Null, fmt.Errorf("eval: unbound variable %q", expr.Name)
	}
	v := chunk.Columns[idx].At(row)
	id, ok := v.AsEdge()
	if !ok {
		return value.Null, nil
	}
	e, ok := rt.Store.GetEdge(id)
	if !ok {
		return value.Null, nil
	}
	return value.String(e.Type), nil
}

func evalBinary(expr plan.Expression, chunk *exec.DataChunk, row int, vars map[string]int, rt *Runtime) (value.Value, error) {
	left, err := Eval(*expr.Left, chunk, row, vars, rt)
	if err != nil {
		return value.Null, err
	}

	// Short-circuit And/Or the way a predicate evaluator must to avoid
	// evaluating a right-hand side that is only valid when the left is
	// true/false (e.g. guarded property access).
	if expr.BinaryOp == plan.And {
		if b, _ := left.AsBool(); !b {
			return value.Bool(false), nil
		}
		right, err := Eval(*expr.Right, chunk, row, vars, rt)
		if err != nil {
			return value.Null, err
		}
		rb, _ := right.AsBool()
		return value.Bool(rb), nil
	}
	if expr.BinaryOp == plan.Or {
		if b, _ := left.AsBool(); b {
			return value.Bool(true), nil
		}
		right, err := Eval(*expr.Right, chunk, row, vars, rt)
		if err != nil {
			return value.Null, err
		}
		rb, _ := right.AsBool()
		return value.Bool(rb), nil
	}

	right, err := Eval(*expr.Right, chunk, row, vars, rt)
	if err != nil {
		return value.Null, err
	}

	switch expr.BinaryOp {
	case plan.Eq:
		return value.Bool(value.Equal(left, right)), nil
	case plan.Ne:
		return value.Bool(!value.Equal(left, right)), nil
	case plan.Lt, plan.Le, plan.Gt, plan.Ge:
		cmp, err := value.Compare(left, right)
		if err != nil {
			return value.Null, nil // not orderable: predicate is false, not an error
		}
		switch expr.BinaryOp {
		case plan.Lt:
			return value.Bool(cmp < 0), nil
		case plan.Le:
			return value.Bool(cmp <= 0), nil
		case plan.Gt:
			return value.Bool(cmp > 0), nil
		default:
			return value.Bool(cmp >= 0), nil
		}
	case plan.Xor:
		a, _ := left.AsBool()
		b, _ := right.AsBool()
		return value.Bool(a != b), nil
	case plan.Add, plan.Sub, plan.Mul, plan.Div, plan.Mod, plan.Concat:
		return evalArithmetic(expr.BinaryOp, left, right)
	case plan.StartsWith:
		ls, _ := left.AsString()
		rs, _ := right.AsString()
		return value.Bool(strings.HasPrefix(ls, rs)), nil
	case plan.EndsWith:
		ls, _ := left.AsString()
		rs, _ := right.AsString()
		return value.Bool(strings.HasSuffix(ls, rs)), nil
	case plan.Contains:
		ls, _ := left.AsString()
		rs, _ := right.AsString()
		return value.Bool(strings.Contains(ls, rs)), nil
	case plan.In:
		items, ok := right.AsList()
		if !ok {
			return value.Bool(false), nil
		}
		for _, item := range items {
			if value.Equal(left, item) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case plan.Like:
		ls, _ := left.AsString()
		rs, _ := right.AsString()
		return value.Bool(matchLike(ls, rs)), nil
	case plan.Regex:
		return evalRegex(left, right)
	case plan.Pow:
		lf := left.Float()
		rf := right.Float()
		return value.Float64(math.Pow(lf, rf)), nil
	default:
		return value.Null, fmt.Errorf("eval: unsupported binary op %s", expr.BinaryOp)
	}
}

func evalArithmetic(op plan.BinaryOp, left, right value.Value) (value.Value, error) {
	if op == plan.Add {
		return value.Add(left, right)
	}
	if op == plan.Concat {
		ls, _ := left.AsString()
		rs, _ := right.AsString()
		return value.String(ls + rs), nil
	}
	if !left.IsNumeric() || !right.IsNumeric() {
		return value.Null, fmt.Errorf("eval: %s requires numeric operands", op)
	}
	lf, rf := left.Float(), right.Float()
	switch op {
	case plan.Sub:
		return numericResult(left, right, lf-rf)
	case plan.Mul:
		return numericResult(left, right, lf*rf)
	case plan.Div:
		if rf == 0 {
			return value.Null, fmt.Errorf("eval: division by zero")
		}
		return numericResult(left, right, lf/rf)
	case plan.Mod:
		if rf == 0 {
			return value.Null, fmt.Errorf("eval: modulo by zero")
		}
		return numericResult(left, right, math.Mod(lf, rf))
	default:
		return value.Null, fmt.Errorf("eval: unsupported arithmetic op %s", op)
	}
}

// evalFunctionCall implements the scalar builtin function library,
// grounded on the names the reference engine's pkg/cypher/functions.go
// recognizes (toUpper/toLower and friends) but reimplemented against
// value.Value instead of string-expression rewriting.
func evalFunctionCall(expr plan.Expression, chunk *exec.DataChunk, row int, vars map[string]int, rt *Runtime) (value.Value, error) {
	args := make([]value.Value, len(expr.Args))
	for i, a := range expr.Args {
		v, err := Eval(a, chunk, row, vars, rt)
		if err != nil {
			return value.Null, err
		}
		args[i] = v
	}

	switch strings.ToLower(expr.Function) {
	case "coalesce":
		for _, a := range args {
			if !a.IsNull() {
				return a, nil
			}
		}
		return value.Null, nil

	case "touppercase", "toupper":
		s, _ := arg0String(args)
		return value.String(strings.ToUpper(s)), nil
	case "tolowercase", "tolower":
		s, _ := arg0String(args)
		return value.String(strings.ToLower(s)), nil
	case "trim":
		s, _ := arg0String(args)
		return value.String(strings.TrimSpace(s)), nil
	case "reverse":
		s, _ := arg0String(args)
		r := []rune(s)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return value.String(string(r)), nil
	case "left":
		s, _ := arg0String(args)
		n := argInt(args, 1)
		if n < 0 {
			n = 0
		}
		if int(n) > len(s) {
			n = int64(len(s))
		}
		return value.String(s[:n]), nil
	case "right":
		s, _ := arg0String(args)
		n := argInt(args, 1)
		if int(n) > len(s) {
			n = int64(len(s))
		}
		return value.String(s[len(s)-int(n):]), nil
	case "substring":
		s, _ := arg0String(args)
		start := int(argInt(args, 1))
		if start < 0 {
			start = 0
		}
		if start > len(s) {
			start = len(s)
		}
		if len(args) >= 3 {
			length := int(argInt(args, 2))
			end := start + length
			if end > len(s) {
				end = len(s)
			}
			return value.String(s[start:end]), nil
		}
		return value.String(s[start:]), nil
	case "replace":
		s, _ := arg0String(args)
		old, _ := arg0String(args[1:])
		repl, _ := arg0String(args[2:])
		return value.String(strings.ReplaceAll(s, old, repl)), nil
	case "split":
		s, _ := arg0String(args)
		sep, _ := arg0String(args[1:])
		parts := strings.Split(s, sep)
		items := make([]value.Value, len(parts))
		for i, p := range parts {
			items[i] = value.String(p)
		}
		return value.List(items), nil
	case "tostring":
		if len(args) == 0 {
			return value.Null, nil
		}
		return value.String(args[0].String()), nil
	case "tointeger":
		if len(args) == 0 {
			return value.Null, nil
		}
		return value.Int64(int64(args[0].Float())), nil
	case "tofloat":
		if len(args) == 0 {
			return value.Null, nil
		}
		return value.Float64(args[0].Float()), nil

	case "size", "length":
		if len(args) == 0 {
			return value.Null, nil
		}
		if items, ok := args[0].AsList(); ok {
			return value.Int64(int64(len(items))), nil
		}
		if s, ok := args[0].AsString(); ok {
			return value.Int64(int64(len(s))), nil
		}
		return value.Null, nil

	case "keys":
		if len(args) == 0 {
			return value.List(nil), nil
		}
		m, ok := args[0].AsMap()
		if !ok {
			return value.List(nil), nil
		}
		out := make([]value.Value, 0, len(m))
		for k := range m {
			out = append(out, value.String(k))
		}
		return value.List(out), nil

	case "abs":
		f := args[0].Float()
		return numericResult(args[0], args[0], math.Abs(f))
	case "ceil":
		return value.Float64(math.Ceil(args[0].Float())), nil
	case "floor":
		return value.Float64(math.Floor(args[0].Float())), nil
	case "round":
		return value.Float64(math.Round(args[0].Float())), nil
	case "sqrt":
		return value.Float64(math.Sqrt(args[0].Float())), nil
	case "sign":
		f := args[0].Float()
		switch {
		case f > 0:
			return value.Int64(1), nil
		case f < 0:
			return value.Int64(-1), nil
		default:
			return value.Int64(0), nil
		}

	default:
		return value.Null, fmt.Errorf("eval: unknown function %q", expr.Function)
	}
}

func arg0String(args []value.Value) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	return args[0].AsString()
}

func argInt(args []value.Value, i int) int64 {
	if i >= len(args) {
		return 0
	}
	n, _ := args[i].AsInt64()
	return n
}

func evalRegex(left, right value.Value) (value.Value, error) {
	ls, _ := left.AsString()
	rs, _ := right.AsString()
	re, err := regexp.Compile(rs)
	if err != nil {
		return value.Null, fmt.Errorf("eval: invalid regex %q: %w", rs, err)
	}
	return value.Bool(re.MatchString(ls)), nil
}

func numericResult(left, right value.Value, f float64) (value.Value, error) {
	if left.Kind() == value.KindInt64 && right.Kind() == value.KindInt64 {
		return value.Int64(int64(f)), nil
	}
	return value.Float64(f), nil
}

func evalUnary(expr plan.Expression, chunk *exec.DataChunk, row int, vars map[string]int, rt *Runtime) (value.Value, error) {
	operand, err := Eval(*expr.Operand, chunk, row, vars, rt)
	if err != nil {
		return value.Null, err
	}
	switch expr.UnaryOp {
	case plan.Not:
		b, _ := operand.AsBool()
		return value.Bool(!b), nil
	case plan.Neg:
		if operand.Kind() == value.KindInt64 {
			i, _ := operand.AsInt64()
			return value.Int64(-i), nil
		}
		return value.Float64(-operand.Float()), nil
	case plan.IsNull:
		return value.Bool(operand.IsNull()), nil
	case plan.IsNotNull:
		return value.Bool(!operand.IsNull()), nil
	default:
		return value.Null, fmt.Errorf("eval: unsupported unary op %s", expr.UnaryOp)
	}
}

func evalListComprehension(expr plan.Expression, chunk *exec.DataChunk, row int, vars map[string]int, rt *Runtime) (value.Value, error) {
	source, err := Eval(*expr.Source, chunk, row, vars, rt)
	if err != nil {
		return value.Null, err
	}
	items, ok := source.AsList()
	if !ok {
		return value.List(nil), nil
	}

	var out []value.Value
	for _, item := range items {
		iterChunk, iterVars := withIterBinding(chunk, row, vars, expr.IterVar, item)
		if expr.Predicate != nil {
			keep, err := Eval(*expr.Predicate, iterChunk, row, iterVars, rt)
			if err != nil {
				return value.Null, err
			}
			if b, _ := keep.AsBool(); !b {
				continue
			}
		}
		projected, err := Eval(*expr.Projection, iterChunk, row, iterVars, rt)
		if err != nil {
			return value.Null, err
		}
		out = append(out, projected)
	}
	return value.List(out), nil
}

// withIterBinding builds a single-row overlay chunk exposing item under
// iterVar alongside every column already in scope, so a list
// comprehension's predicate/projection can reference both the outer row
// and the comprehension's loop variable.
func withIterBinding(chunk *exec.DataChunk, row int, vars map[string]int, iterVar string, item value.Value) (*exec.DataChunk, map[string]int) {
	names := append([]string{}, chunk.Names...)
	types := make([]value.LogicalType, len(chunk.Columns))
	for i, col := range chunk.Columns {
		types[i] = col.Type
	}
	names = append(names, iterVar)
	types = append(types, item.Kind().LogicalType())

	overlay := exec.NewDataChunk(names, types, 1)
	for i, col := range chunk.Columns {
		_ = overlay.Columns[i].Append(col.At(row))
	}
	_ = overlay.Columns[len(overlay.Columns)-1].Append(item)
	overlay.SetRowCount(1)

	newVars := make(map[string]int, len(vars)+1)
	for k, v := range vars {
		newVars[k] = v
	}
	newVars[iterVar] = len(overlay.Columns) - 1
	return overlay, newVars
}

func matchLike(s, pattern string) bool {
	// '%' matches any run of characters, '_' matches exactly one.
	return likeMatch(s, pattern)
}

func likeMatch(s, pattern string) bool {
	if pattern == "" {
		return s == ""
	}
	switch pattern[0] {
	case '%':
		for i := 0; i <= len(s); i++ {
			if likeMatch(s[i:], pattern[1:]) {
				return true
			}
		}
		return false
	case '_':
		if len(s) == 0 {
			return false
		}
		return likeMatch(s[1:], pattern[1:])
	default:
		if len(s) == 0 || s[0] != pattern[0] {
			return false
		}
		return likeMatch(s[1:], pattern[1:])
	}
}

// CompiledPredicate is what Filter/predicate-bearing operators store: a
// ready-to-evaluate (expression, variable map) pair.
type CompiledPredicate struct {
	Expr *plan.Expression
	Vars map[string]int
}

func (p *CompiledPredicate) Eval(chunk *exec.DataChunk, row int, rt *Runtime) (bool, error) {
	v, err := Eval(*p.Expr, chunk, row, p.Vars, rt)
	if err != nil {
		return false, err
	}
	b, _ := v.AsBool()
	return b, nil
}

// VarsOf returns op.Vars, the variable→column map pkg/physical derived
// for this operator's output schema.
func VarsOf(op *physical.Operator) map[string]int {
	return op.Vars
}

package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFreeVariablesOfBinaryExpression(t *testing.T) {
	expr := Bin(Eq, Prop("n", "age"), Lit(int64(30)))
	free := expr.FreeVariables()
	assert.Equal(t, map[string]struct{}{"n": {}}, free)
}

func TestFreeVariablesOfListComprehensionExcludesIterVar(t *testing.T) {
	expr := ListComprehension("x", Var("xs"), Lit(true), Var("x"))
	free := expr.FreeVariables()
	assert.Contains(t, free, "xs")
	assert.NotContains(t, free, "x")
}

func TestFreeVariablesOfFunctionCall(t *testing.T) {
	expr := Call("coalesce", Prop("n", "name"), Prop("m", "name"))
	free := expr.FreeVariables()
	assert.Contains(t, free, "n")
	assert.Contains(t, free, "m")
}

func TestOperatorTreeShapeMatchesSpecExample(t *testing.T) {
	label := "Person"
	edgeType := "KNOWS"

	scan := NodeScan("n", &label, nil)
	expand := Expand("n", "m", nil, Outgoing, &edgeType, 1, uint32Ptr(1), scan)
	filter := Filter(Bin(Gt, Prop("m", "age"), Lit(int64(21))), expand)
	ret := Return(map[string]Expression{"m": Var("m")}, filter)

	assert.Equal(t, OpReturn, ret.Kind)
	assert.Equal(t, OpFilter, ret.Input.Kind)
	assert.Equal(t, OpExpand, ret.Input.Input.Kind)
	assert.Equal(t, OpNodeScan, ret.Input.Input.Input.Kind)

	var visited []OpKind
	Walk(ret, func(op *Operator) { visited = append(visited, op.Kind) })
	assert.Equal(t, []OpKind{OpReturn, OpFilter, OpExpand, OpNodeScan}, visited)
}

func TestWalkVisitsJoinBothSides(t *testing.T) {
	left := NodeScan("a", nil, nil)
	right := NodeScan("b", nil, nil)
	cond := Bin(Eq, Var("a"), Var("b"))
	join := Join(Inner, &cond, left, right)

	var kinds []OpKind
	Walk(join, func(op *Operator) { kinds = append(kinds, op.Kind) })
	assert.Equal(t, []OpKind{OpJoin, OpNodeScan, OpNodeScan}, kinds)
}

func TestWalkVisitsUnionChildren(t *testing.T) {
	u := Union(NodeScan("a", nil, nil), NodeScan("b", nil, nil), Empty())
	var kinds []OpKind
	Walk(u, func(op *Operator) { kinds = append(kinds, op.Kind) })
	assert.Equal(t, []OpKind{OpUnion, OpNodeScan, OpNodeScan, OpEmpty}, kinds)
}

func TestBinaryAndUnaryOpStringers(t *testing.T) {
	assert.Equal(t, "Eq", Eq.String())
	assert.Equal(t, "Pow", Pow.String())
	assert.Equal(t, "IsNotNull", IsNotNull.String())
}

func TestJoinTypeAndDirectionStringers(t *testing.T) {
	assert.Equal(t, "Semi", Semi.String())
	assert.Equal(t, "Both", Both.String())
}

func uint32Ptr(v uint32) *uint32 { return &v }

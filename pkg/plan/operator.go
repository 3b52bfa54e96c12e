package plan

// Direction is the traversal direction of an Expand operator.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "Outgoing"
	case Incoming:
		return "Incoming"
	case Both:
		return "Both"
	default:
		return "UnknownDirection"
	}
}

// AggFunc enumerates the aggregate functions HashAggregate/SimpleAggregate
// support (spec.md §4.9).
type AggFunc int

const (
	AggCount AggFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
	AggCollect
)

func (f AggFunc) String() string {
	names := [...]string{"Count", "Sum", "Avg", "Min", "Max", "Collect"}
	if int(f) < 0 || int(f) >= len(names) {
		return "UnknownAggFunc"
	}
	return names[f]
}

// AggregateItem is one entry of an Aggregate operator's aggregate list.
type AggregateItem struct {
	Function   AggFunc
	Expression *Expression // nil for Count(*)
	Distinct   bool
	Alias      string
}

// SortKey is one entry of a Sort operator's key list.
type SortKey struct {
	Expression Expression
	Descending bool
	NullsFirst bool
}

// OpKind tags which operator variant a *Operator node is.
type OpKind int

const (
	OpNodeScan OpKind = iota
	OpEdgeScan
	OpExpand
	OpFilter
	OpProject
	OpJoin
	OpLeftJoin
	OpAntiJoin
	OpUnion
	OpAggregate
	OpSort
	OpDistinct
	OpLimit
	OpSkip
	OpCreateNode
	OpCreateEdge
	OpDeleteNode
	OpDeleteEdge
	OpSetProperty
	OpAddLabel
	OpRemoveLabel
	OpBind
	OpUnwind
	OpMerge
	OpTripleScan
	OpReturn
	OpEmpty
)

func (k OpKind) String() string {
	names := [...]string{
		"NodeScan", "EdgeScan", "Expand", "Filter", "Project", "Join",
		"LeftJoin", "AntiJoin", "Union", "Aggregate", "Sort", "Distinct",
		"Limit", "Skip", "CreateNode", "CreateEdge", "DeleteNode",
		"DeleteEdge", "SetProperty", "AddLabel", "RemoveLabel", "Bind",
		"Unwind", "Merge", "TripleScan", "Return", "Empty",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return "UnknownOp"
	}
	return names[k]
}

// Operator is the logical plan tree's single node type (spec.md §4.5/§6.1).
// Kind selects the meaningful fields; Input/Left/Right/Children wire the
// tree together. This shape is what any front-end (query language) must
// emit — the optimizer and physical planner never see front-end syntax.
type Operator struct {
	Kind OpKind

	// NodeScan / EdgeScan / TripleScan
	Variable string
	Label    *string
	EdgeType *string

	// Expand
	FromVariable string
	ToVariable   string
	EdgeVariable *string
	Direction    Direction
	MinHops      uint32
	MaxHops      *uint32

	// Filter
	Predicate *Expression

	// Project / Return
	Projections map[string]Expression

	// Join family
	Left      *Operator
	Right     *Operator
	JoinCond  *Expression
	JoinType  JoinType

	// Aggregate
	GroupBy    []Expression
	Aggregates []AggregateItem

	// Sort
	SortKeys []SortKey

	// Limit / Skip
	Count uint64

	// CreateNode
	NewLabels []string
	NewProps  map[string]Expression

	// CreateEdge
	Src, Dst string

	// SetProperty / AddLabel / RemoveLabel / DeleteNode / DeleteEdge
	TargetVariable string
	PropertyKey    string
	PropertyValue  *Expression

	// Bind
	BindAlias string
	BindValue *Expression

	// Unwind
	UnwindAlias string
	UnwindExpr  *Expression

	// Merge: the pattern to match-or-create, plus on-match/on-create sets.
	MergePattern  *Operator
	OnMatchSets   []Operator
	OnCreateSets  []Operator

	// Union / Merge(multi-branch pull)
	Children []*Operator

	// every other non-leaf operator
	Input *Operator
}

// JoinType enumerates join semantics shared by Join/LeftJoin/AntiJoin
// (spec.md §4.9 names the full set; the logical IR keeps Join generic and
// lets JoinType distinguish Inner/Right/Full/Cross/Semi, with LeftJoin and
// AntiJoin as their own operator kinds for Left and Anti respectively).
type JoinType int

const (
	Inner JoinType = iota
	Left
	Right
	Full
	Cross
	Semi
	Anti
)

func (t JoinType) String() string {
	names := [...]string{"Inner", "Left", "Right", "Full", "Cross", "Semi", "Anti"}
	if int(t) < 0 || int(t) >= len(names) {
		return "UnknownJoinType"
	}
	return names[t]
}

func NodeScan(variable string, label *string, input *Operator) *Operator {
	return &Operator{Kind: OpNodeScan, Variable: variable, Label: label, Input: input}
}

func EdgeScan(variable string, edgeType *string, input *Operator) *Operator {
	return &Operator{Kind: OpEdgeScan, Variable: variable, EdgeType: edgeType, Input: input}
}

func Expand(from, to string, edgeVar *string, dir Direction, edgeType *string, minHops uint32, maxHops *uint32, input *Operator) *Operator {
	return &Operator{
		Kind: OpExpand, FromVariable: from, ToVariable: to, EdgeVariable: edgeVar,
		Direction: dir, EdgeType: edgeType, MinHops: minHops, MaxHops: maxHops, Input: input,
	}
}

func Filter(pred Expression, input *Operator) *Operator {
	return &Operator{Kind: OpFilter, Predicate: &pred, Input: input}
}

func Project(projections map[string]Expression, input *Operator) *Operator {
	return &Operator{Kind: OpProject, Projections: projections, Input: input}
}

func Join(joinType JoinType, cond *Expression, left, right *Operator) *Operator {
	return &Operator{Kind: OpJoin, JoinType: joinType, JoinCond: cond, Left: left, Right: right}
}

func LeftJoin(cond *Expression, left, right *Operator) *Operator {
	return &Operator{Kind: OpLeftJoin, JoinType: Left, JoinCond: cond, Left: left, Right: right}
}

func AntiJoin(cond *Expression, left, right *Operator) *Operator {
	return &Operator{Kind: OpAntiJoin, JoinType: Anti, JoinCond: cond, Left: left, Right: right}
}

func Union(children ...*Operator) *Operator {
	return &Operator{Kind: OpUnion, Children: children}
}

func Aggregate(groupBy []Expression, aggregates []AggregateItem, input *Operator) *Operator {
	return &Operator{Kind: OpAggregate, GroupBy: groupBy, Aggregates: aggregates, Input: input}
}

func Sort(keys []SortKey, input *Operator) *Operator {
	return &Operator{Kind: OpSort, SortKeys: keys, Input: input}
}

func Distinct(input *Operator) *Operator {
	return &Operator{Kind: OpDistinct, Input: input}
}

func Limit(count uint64, input *Operator) *Operator {
	return &Operator{Kind: OpLimit, Count: count, Input: input}
}

func Skip(count uint64, input *Operator) *Operator {
	return &Operator{Kind: OpSkip, Count: count, Input: input}
}

func CreateNode(variable string, labels []string, props map[string]Expression, input *Operator) *Operator {
	return &Operator{Kind: OpCreateNode, Variable: variable, NewLabels: labels, NewProps: props, Input: input}
}

func CreateEdge(variable, src, dst string, edgeType string, props map[string]Expression, input *Operator) *Operator {
	return &Operator{
		Kind: OpCreateEdge, Variable: variable, Src: src, Dst: dst,
		EdgeType: &edgeType, NewProps: props, Input: input,
	}
}

func DeleteNode(variable string, input *Operator) *Operator {
	return &Operator{Kind: OpDeleteNode, TargetVariable: variable, Input: input}
}

func DeleteEdge(variable string, input *Operator) *Operator {
	return &Operator{Kind: OpDeleteEdge, TargetVariable: variable, Input: input}
}

func SetProperty(variable, key string, value Expression, input *Operator) *Operator {
	return &Operator{Kind: OpSetProperty, TargetVariable: variable, PropertyKey: key, PropertyValue: &value, Input: input}
}

func AddLabel(variable, label string, input *Operator) *Operator {
	return &Operator{Kind: OpAddLabel, TargetVariable: variable, PropertyKey: label, Input: input}
}

func RemoveLabel(variable, label string, input *Operator) *Operator {
	return &Operator{Kind: OpRemoveLabel, TargetVariable: variable, PropertyKey: label, Input: input}
}

func Bind(alias string, value Expression, input *Operator) *Operator {
	return &Operator{Kind: OpBind, BindAlias: alias, BindValue: &value, Input: input}
}

func Unwind(alias string, expr Expression, input *Operator) *Operator {
	return &Operator{Kind: OpUnwind, UnwindAlias: alias, UnwindExpr: &expr, Input: input}
}

func Merge(pattern *Operator, onMatch, onCreate []Operator, input *Operator) *Operator {
	return &Operator{Kind: OpMerge, MergePattern: pattern, OnMatchSets: onMatch, OnCreateSets: onCreate, Input: input}
}

func TripleScan(variable string, input *Operator) *Operator {
	return &Operator{Kind: OpTripleScan, Variable: variable, Input: input}
}

func Return(projections map[string]Expression, input *Operator) *Operator {
	return &Operator{Kind: OpReturn, Projections: projections, Input: input}
}

func Empty() *Operator {
	return &Operator{Kind: OpEmpty}
}

// Walk calls visit for op and, recursively, every descendant reachable via
// Input/Left/Right/Children/MergePattern, in a pre-order traversal. This is
// the one traversal both the optimizer's rewrite passes and the physical
// planner's lowering pass build on.
func Walk(op *Operator, visit func(*Operator)) {
	if op == nil {
		return
	}
	visit(op)
	Walk(op.Input, visit)
	Walk(op.Left, visit)
	Walk(op.Right, visit)
	Walk(op.MergePattern, visit)
	for _, child := range op.Children {
		Walk(child, visit)
	}
}

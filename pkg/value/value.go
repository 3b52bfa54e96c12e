package value

import (
	"fmt"
	"math"
)

// Kind tags which variant of Value is populated.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindString
	KindList
	KindMap
	KindNode
	KindEdge
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt64:
		return "Int64"
	case KindFloat64:
		return "Float64"
	case KindString:
		return "String"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	case KindNode:
		return "Node"
	case KindEdge:
		return "Edge"
	default:
		return "Unknown"
	}
}

// LogicalType is the type tag carried by execution chunks and schema
// derivation. It overlaps with Kind but additionally distinguishes "Any"
// (used for columns whose type is not statically known, e.g. the result of
// a list comprehension) from a concrete Null column.
type LogicalType uint8

const (
	LogicalNull LogicalType = iota
	LogicalBool
	LogicalInt64
	LogicalFloat64
	LogicalString
	LogicalNode
	LogicalEdge
	LogicalList
	LogicalMap
	LogicalAny
)

func (t LogicalType) String() string {
	switch t {
	case LogicalNull:
		return "Null"
	case LogicalBool:
		return "Bool"
	case LogicalInt64:
		return "Int64"
	case LogicalFloat64:
		return "Float64"
	case LogicalString:
		return "String"
	case LogicalNode:
		return "Node"
	case LogicalEdge:
		return "Edge"
	case LogicalList:
		return "List"
	case LogicalMap:
		return "Map"
	case LogicalAny:
		return "Any"
	default:
		return "Unknown"
	}
}

// LogicalType returns the LogicalType corresponding to a Kind, for use when a
// column's static type must be derived from a sample value.
func (k Kind) LogicalType() LogicalType {
	switch k {
	case KindNull:
		return LogicalNull
	case KindBool:
		return LogicalBool
	case KindInt64:
		return LogicalInt64
	case KindFloat64:
		return LogicalFloat64
	case KindString:
		return LogicalString
	case KindList:
		return LogicalList
	case KindMap:
		return LogicalMap
	case KindNode:
		return LogicalNode
	case KindEdge:
		return LogicalEdge
	default:
		return LogicalAny
	}
}

// floatEpsilon bounds float equality comparisons, per spec: "Float equality
// uses |a-b| < epsilon".
const floatEpsilon = 1e-9

// Value is a tagged variant covering every runtime value the query engine
// can produce or consume: Null, Bool, Int64, Float64, String, List, Map,
// Node (by id), Edge (by id).
//
// Value is intentionally a plain struct rather than an interface: the
// executor evaluates millions of these per query and an interface's boxing
// and dynamic dispatch would show up directly in profiles.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
	node NodeId
	edge EdgeId
}

// Null is the singleton null value.
var Null = Value{kind: KindNull}

func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Int64(i int64) Value        { return Value{kind: KindInt64, i: i} }
func Float64(f float64) Value    { return Value{kind: KindFloat64, f: f} }
func String(s string) Value      { return Value{kind: KindString, s: s} }
func List(items []Value) Value   { return Value{kind: KindList, list: items} }
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: m} }
func NodeRef(id NodeId) Value    { return Value{kind: KindNode, node: id} }
func EdgeRef(id EdgeId) Value    { return Value{kind: KindEdge, edge: id} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) AsInt64() (int64, bool)     { return v.i, v.kind == KindInt64 }
func (v Value) AsFloat64() (float64, bool) { return v.f, v.kind == KindFloat64 }
func (v Value) AsString() (string, bool)   { return v.s, v.kind == KindString }
func (v Value) AsList() ([]Value, bool)    { return v.list, v.kind == KindList }
func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.kind == KindMap }
func (v Value) AsNode() (NodeId, bool)     { return v.node, v.kind == KindNode }
func (v Value) AsEdge() (EdgeId, bool)     { return v.edge, v.kind == KindEdge }

// IsNumeric reports whether v is Int64 or Float64 (the arithmetic family).
func (v Value) IsNumeric() bool {
	return v.kind == KindInt64 || v.kind == KindFloat64
}

// Float promotes an Int64 or Float64 value to float64. For a non-numeric
// v it returns 0; callers check IsNumeric first (the executor's predicate
// evaluator does this and returns a Query.Runtime error instead).
func (v Value) Float() float64 {
	if v.kind == KindInt64 {
		return float64(v.i)
	}
	return v.f
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt64:
		return fmt.Sprintf("%d", v.i)
	case KindFloat64:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindNode:
		return v.node.String()
	case KindEdge:
		return v.edge.String()
	case KindList:
		return fmt.Sprintf("%v", v.list)
	case KindMap:
		return fmt.Sprintf("%v", v.m)
	default:
		return "?"
	}
}

// Equal implements the engine's structural-equality rule: values are equal
// only within the same Kind (no cross-family coercion for equality, unlike
// arithmetic), except that Int64 and Float64 compare equal when they denote
// the same numeric quantity, matching Cypher-style semantics.
func Equal(a, b Value) bool {
	if a.kind == KindNull || b.kind == KindNull {
		return a.kind == KindNull && b.kind == KindNull
	}
	if a.IsNumeric() && b.IsNumeric() {
		if a.kind == KindInt64 && b.kind == KindInt64 {
			return a.i == b.i
		}
		return math.Abs(a.Float()-b.Float()) < floatEpsilon
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindBool:
		return a.b == b.b
	case KindString:
		return a.s == b.s
	case KindNode:
		return a.node == b.node
	case KindEdge:
		return a.edge == b.edge
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ErrNotOrderable is returned by Compare when two values have no defined
// ordering relative to each other (different non-numeric families).
type ErrNotOrderable struct {
	A, B Kind
}

func (e ErrNotOrderable) Error() string {
	return fmt.Sprintf("values of kind %s and %s are not orderable", e.A, e.B)
}

// Compare orders two values. Ordering is defined only within the same
// numeric family (Int64/Float64, promoted to float64) or lexicographically
// for strings; any other pairing returns ErrNotOrderable.
func Compare(a, b Value) (int, error) {
	if a.IsNumeric() && b.IsNumeric() {
		af, bf := a.Float(), b.Float()
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if a.kind == KindString && b.kind == KindString {
		return compareStrings(a.s, b.s), nil
	}
	return 0, ErrNotOrderable{A: a.kind, B: b.kind}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Add implements the Add binary operator: arithmetic across Int64/Float64
// promotes to Float64; String + String concatenates (the Concat operator is
// the canonical spelling, but + on two strings is accepted the way the
// reference query engine's comparison/arithmetic layer accepts it).
func Add(a, b Value) (Value, error) {
	if a.kind == KindString && b.kind == KindString {
		return String(a.s + b.s), nil
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		return Null, fmt.Errorf("cannot add %s and %s", a.kind, b.kind)
	}
	if a.kind == KindInt64 && b.kind == KindInt64 {
		return Int64(a.i + b.i), nil
	}
	return Float64(a.Float() + b.Float()), nil
}

// Package wire defines the interchange message model for serialized query
// plans and scalar expressions, plus the binary codec over it.
//
// Messages mirror a small relational algebra: a Plan carries a version
// stamp, a function declaration table, and relation trees; an
// ExtendedExpression carries scalar expressions bound to a named input
// schema. Variant types (Rel, Expression, Literal) are oneof-style
// structs where exactly one field is non-nil.
package wire

import "fmt"

// Format version stamped into every encoded Plan and ExtendedExpression.
const (
	FormatMajor = 0
	FormatMinor = 1
	FormatPatch = 0
)

// ---------- Plan Envelope ----------

// Plan is the top-level message for a serialized relational plan.
type Plan struct {
	Version   Version        `cbor:"1,keyasint"`
	Functions []FunctionDecl `cbor:"2,keyasint,omitempty"`
	Relations []PlanRel      `cbor:"3,keyasint,omitempty"`
}

// Version identifies the format revision and the producing system.
type Version struct {
	Major    uint32 `cbor:"1,keyasint"`
	Minor    uint32 `cbor:"2,keyasint"`
	Patch    uint32 `cbor:"3,keyasint"`
	Producer string `cbor:"4,keyasint,omitempty"`
}

// FunctionDecl declares a function name under an anchor. Expressions
// reference functions by anchor, never by name.
type FunctionDecl struct {
	Anchor uint32 `cbor:"1,keyasint"`
	Name   string `cbor:"2,keyasint"`
}

// PlanRel is one relation entry of a Plan.
type PlanRel struct {
	Root *RelRoot `cbor:"1,keyasint,omitempty"`
}

// RelRoot caps a relation tree with its output column names.
type RelRoot struct {
	Input *Rel     `cbor:"1,keyasint"`
	Names []string `cbor:"2,keyasint,omitempty"`
}

// ---------- Relations ----------

// Rel is the relation variant holder. Exactly one field is non-nil.
type Rel struct {
	Read      *ReadRel      `cbor:"1,keyasint,omitempty"`
	Filter    *FilterRel    `cbor:"2,keyasint,omitempty"`
	Project   *ProjectRel   `cbor:"3,keyasint,omitempty"`
	Aggregate *AggregateRel `cbor:"4,keyasint,omitempty"`
	Sort      *SortRel      `cbor:"5,keyasint,omitempty"`
	Fetch     *FetchRel     `cbor:"6,keyasint,omitempty"`
	Join      *JoinRel      `cbor:"7,keyasint,omitempty"`
}

// ReadRel is a leaf relation: either a catalog table scan or inline
// literal rows. Exactly one of NamedTable and VirtualTable is non-nil.
type ReadRel struct {
	BaseSchema   NamedStruct   `cbor:"1,keyasint"`
	NamedTable   *NamedTable   `cbor:"2,keyasint,omitempty"`
	VirtualTable *VirtualTable `cbor:"3,keyasint,omitempty"`
}

// NamedTable references a catalog table by qualified name parts.
type NamedTable struct {
	Names []string `cbor:"1,keyasint"`
}

// VirtualTable carries inline literal rows.
type VirtualTable struct {
	Rows [][]Literal `cbor:"1,keyasint,omitempty"`
}

// FilterRel keeps input rows satisfying the condition.
type FilterRel struct {
	Input     *Rel        `cbor:"1,keyasint"`
	Condition *Expression `cbor:"2,keyasint"`
}

// ProjectRel computes one output column per expression. Names carries
// the output column names positionally.
type ProjectRel struct {
	Input       *Rel         `cbor:"1,keyasint"`
	Expressions []Expression `cbor:"2,keyasint,omitempty"`
	Names       []string     `cbor:"3,keyasint,omitempty"`
}

// AggregateRel groups by the grouping expressions and computes measures.
type AggregateRel struct {
	Input     *Rel         `cbor:"1,keyasint"`
	Groupings []Expression `cbor:"2,keyasint,omitempty"`
	Measures  []Measure    `cbor:"3,keyasint,omitempty"`
}

// Measure is one aggregate computation of an AggregateRel.
type Measure struct {
	Function AggregateFunction `cbor:"1,keyasint"`
}

// AggregateFunction invokes a declared aggregate over argument
// expressions.
type AggregateFunction struct {
	FunctionRef uint32       `cbor:"1,keyasint"`
	Arguments   []Expression `cbor:"2,keyasint,omitempty"`
	Distinct    bool         `cbor:"3,keyasint,omitempty"`
	OutputType  Type         `cbor:"4,keyasint"`
}

// SortRel orders input rows by the sort fields.
type SortRel struct {
	Input *Rel        `cbor:"1,keyasint"`
	Sorts []SortField `cbor:"2,keyasint,omitempty"`
}

// SortField is one ordering key.
type SortField struct {
	Expr      Expression    `cbor:"1,keyasint"`
	Direction SortDirection `cbor:"2,keyasint"`
}

// SortDirection combines order and null placement.
type SortDirection uint8

// SortDirection values.
const (
	SortUnspecified SortDirection = iota
	SortAscNullsFirst
	SortAscNullsLast
	SortDescNullsFirst
	SortDescNullsLast
)

// FetchRel skips Offset rows and passes at most Count rows. Count -1
// means unlimited.
type FetchRel struct {
	Input  *Rel  `cbor:"1,keyasint"`
	Offset int64 `cbor:"2,keyasint,omitempty"`
	Count  int64 `cbor:"3,keyasint"`
}

// JoinRel joins two inputs on an optional condition.
type JoinRel struct {
	Left       *Rel        `cbor:"1,keyasint"`
	Right      *Rel        `cbor:"2,keyasint"`
	Kind       JoinKind    `cbor:"3,keyasint"`
	Expression *Expression `cbor:"4,keyasint,omitempty"`
}

// JoinKind enumerates join types.
type JoinKind uint8

// JoinKind values.
const (
	JoinUnspecified JoinKind = iota
	JoinInner
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
)

func (k JoinKind) String() string {
	switch k {
	case JoinInner:
		return "inner"
	case JoinLeft:
		return "left"
	case JoinRight:
		return "right"
	case JoinFull:
		return "full"
	case JoinCross:
		return "cross"
	default:
		return fmt.Sprintf("join(%d)", uint8(k))
	}
}

// ---------- Expressions ----------

// Expression is the expression variant holder. Exactly one field is
// non-nil.
type Expression struct {
	Literal        *Literal        `cbor:"1,keyasint,omitempty"`
	Selection      *FieldReference `cbor:"2,keyasint,omitempty"`
	ScalarFunction *ScalarFunction `cbor:"3,keyasint,omitempty"`
	Cast           *Cast           `cbor:"4,keyasint,omitempty"`
	IfThen         *IfThen         `cbor:"5,keyasint,omitempty"`
}

// Literal is a typed constant. Exactly one field is non-nil; Null
// carries the declared type of a typed null.
type Literal struct {
	Null    *Type    `cbor:"1,keyasint,omitempty"`
	Boolean *bool    `cbor:"2,keyasint,omitempty"`
	I64     *int64   `cbor:"3,keyasint,omitempty"`
	Fp64    *float64 `cbor:"4,keyasint,omitempty"`
	Str     *string  `cbor:"5,keyasint,omitempty"`
}

// FieldReference selects an input field by ordinal.
type FieldReference struct {
	Field int32 `cbor:"1,keyasint"`
}

// ScalarFunction invokes a declared scalar function.
type ScalarFunction struct {
	FunctionRef uint32       `cbor:"1,keyasint"`
	Arguments   []Expression `cbor:"2,keyasint,omitempty"`
	OutputType  Type         `cbor:"3,keyasint"`
}

// Cast converts its input to the target type.
type Cast struct {
	Input *Expression `cbor:"1,keyasint"`
	Type  Type        `cbor:"2,keyasint"`
}

// IfThen is a conditional chain: the first clause whose If holds yields
// its Then, otherwise Else.
type IfThen struct {
	Ifs  []IfClause  `cbor:"1,keyasint,omitempty"`
	Else *Expression `cbor:"2,keyasint,omitempty"`
}

// IfClause is one condition/result pair of an IfThen.
type IfClause struct {
	If   Expression `cbor:"1,keyasint"`
	Then Expression `cbor:"2,keyasint"`
}

// ---------- Types and Schemas ----------

// TypeKind enumerates wire value types.
type TypeKind uint8

// TypeKind values.
const (
	KindUnspecified TypeKind = iota
	KindBool
	KindI64
	KindFp64
	KindString
	KindDate
	KindTimestamp
)

func (k TypeKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindI64:
		return "i64"
	case KindFp64:
		return "fp64"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	default:
		return "unspecified"
	}
}

// Type is a wire value type with nullability.
type Type struct {
	Kind     TypeKind `cbor:"1,keyasint"`
	Nullable bool     `cbor:"2,keyasint,omitempty"`
}

func (t Type) String() string {
	if t.Nullable {
		return t.Kind.String() + "?"
	}
	return t.Kind.String()
}

// NamedStruct is a flat record schema: positional names and types.
type NamedStruct struct {
	Names []string `cbor:"1,keyasint,omitempty"`
	Types []Type   `cbor:"2,keyasint,omitempty"`
}

// ---------- Extended Expressions ----------

// ExtendedExpression is the top-level message for serialized scalar
// expressions bound to an input schema.
type ExtendedExpression struct {
	Version    Version               `cbor:"1,keyasint"`
	Functions  []FunctionDecl        `cbor:"2,keyasint,omitempty"`
	Referred   []ExpressionReference `cbor:"3,keyasint,omitempty"`
	BaseSchema NamedStruct           `cbor:"4,keyasint"`
}

// ExpressionReference is one labelled expression of an
// ExtendedExpression.
type ExpressionReference struct {
	Expression Expression `cbor:"1,keyasint"`
	Names      []string   `cbor:"2,keyasint,omitempty"`
}

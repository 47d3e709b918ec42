package logical

import (
	"fmt"
	"strings"
)

// Expr represents a bound scalar expression.
type Expr interface {
	exprNode()
	String() string
}

// ColumnRef references a field of the input schema by name. Index is the
// resolved ordinal, or -1 while the reference is unbound (an expression
// built directly by a caller rather than by the planner).
type ColumnRef struct {
	Name  string
	Index int
}

// NewColumnRef returns an unbound column reference.
func NewColumnRef(name string) *ColumnRef {
	return &ColumnRef{Name: name, Index: -1}
}

func (*ColumnRef) exprNode() {}

func (c *ColumnRef) String() string { return c.Name }

// Literal is a typed constant. Value is one of bool, int64, float64,
// string, or nil for NULL.
type Literal struct {
	Type  Type
	Value any
}

func (*Literal) exprNode() {}

func (l *Literal) String() string {
	if l.Value == nil {
		return "null"
	}
	if s, ok := l.Value.(string); ok {
		return fmt.Sprintf("'%s'", s)
	}
	return fmt.Sprintf("%v", l.Value)
}

// BinaryOp identifies a binary operator.
type BinaryOp int

// BinaryOp constants, grouped by family.
const (
	OpAdd BinaryOp = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpEq
	OpNotEq
	OpLt
	OpLtEq
	OpGt
	OpGtEq
	OpAnd
	OpOr
	OpConcat
)

// String returns the SQL spelling of the operator.
func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpModulo:
		return "%"
	case OpEq:
		return "="
	case OpNotEq:
		return "!="
	case OpLt:
		return "<"
	case OpLtEq:
		return "<="
	case OpGt:
		return ">"
	case OpGtEq:
		return ">="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpConcat:
		return "||"
	default:
		return fmt.Sprintf("op(%d)", op)
	}
}

// IsComparison reports whether the operator yields a boolean from two
// comparable operands.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEq, OpNotEq, OpLt, OpLtEq, OpGt, OpGtEq:
		return true
	default:
		return false
	}
}

// BinaryExpr applies a binary operator to two operands.
type BinaryExpr struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("%s %s %s", b.Left, b.Op, b.Right)
}

// UnaryOp identifies a unary operator.
type UnaryOp int

// UnaryOp constants.
const (
	OpNegate UnaryOp = iota
	OpNot
	OpIsNull
	OpIsNotNull
)

// String returns the SQL spelling of the operator.
func (op UnaryOp) String() string {
	switch op {
	case OpNegate:
		return "-"
	case OpNot:
		return "NOT"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	default:
		return fmt.Sprintf("op(%d)", op)
	}
}

// UnaryExpr applies a unary operator to one operand.
type UnaryExpr struct {
	Op    UnaryOp
	Input Expr
}

func (*UnaryExpr) exprNode() {}

func (u *UnaryExpr) String() string {
	switch u.Op {
	case OpIsNull, OpIsNotNull:
		return fmt.Sprintf("%s %s", u.Input, u.Op)
	default:
		return fmt.Sprintf("%s %s", u.Op, u.Input)
	}
}

// FuncCall invokes a registered scalar or aggregate function. Names are
// stored lowercase.
type FuncCall struct {
	Name     string
	Args     []Expr
	Distinct bool
}

func (*FuncCall) exprNode() {}

func (f *FuncCall) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	if f.Distinct {
		return fmt.Sprintf("%s(distinct %s)", f.Name, strings.Join(args, ", "))
	}
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(args, ", "))
}

// CastExpr converts its input to the target type.
type CastExpr struct {
	Input Expr
	To    Type
}

func (*CastExpr) exprNode() {}

func (c *CastExpr) String() string {
	return fmt.Sprintf("cast(%s as %s)", c.Input, c.To)
}

// WhenClause is one branch of a CaseExpr.
type WhenClause struct {
	When Expr
	Then Expr
}

// CaseExpr is a searched CASE expression. The planner rewrites the
// shorthand form (CASE operand WHEN v ...) into the searched form.
type CaseExpr struct {
	Whens []WhenClause
	Else  Expr
}

func (*CaseExpr) exprNode() {}

func (c *CaseExpr) String() string {
	var b strings.Builder
	b.WriteString("case")
	for _, w := range c.Whens {
		fmt.Fprintf(&b, " when %s then %s", w.When, w.Then)
	}
	if c.Else != nil {
		fmt.Fprintf(&b, " else %s", c.Else)
	}
	b.WriteString(" end")
	return b.String()
}

// TypeOf computes the result type of a bound expression against the schema
// it references. Unresolvable pieces degrade to TypeUnknown rather than
// failing; the producer validates references before relying on this.
func TypeOf(e Expr, schema *Schema) Type {
	switch e := e.(type) {
	case *ColumnRef:
		if e.Index >= 0 && e.Index < schema.Len() {
			return schema.Field(e.Index).Type
		}
		if i := schema.IndexOf(e.Name); i >= 0 {
			return schema.Field(i).Type
		}
		return Type{Kind: TypeUnknown}
	case *Literal:
		return e.Type
	case *BinaryExpr:
		switch {
		case e.Op.IsComparison(), e.Op == OpAnd, e.Op == OpOr:
			return Type{Kind: TypeBool, Nullable: true}
		case e.Op == OpConcat:
			return Type{Kind: TypeString, Nullable: true}
		default:
			lt := TypeOf(e.Left, schema)
			rt := TypeOf(e.Right, schema)
			if lt.Kind == TypeFloat64 || rt.Kind == TypeFloat64 {
				return Type{Kind: TypeFloat64, Nullable: true}
			}
			return Type{Kind: TypeInt64, Nullable: true}
		}
	case *UnaryExpr:
		switch e.Op {
		case OpNegate:
			return TypeOf(e.Input, schema)
		default:
			return Type{Kind: TypeBool, Nullable: e.Op == OpNot}
		}
	case *FuncCall:
		args := make([]Type, len(e.Args))
		for i, a := range e.Args {
			args[i] = TypeOf(a, schema)
		}
		if t, ok := builtinResult(e.Name, args); ok {
			return t
		}
		return Type{Kind: TypeUnknown}
	case *CastExpr:
		return e.To
	case *CaseExpr:
		if len(e.Whens) > 0 {
			t := TypeOf(e.Whens[0].Then, schema)
			t.Nullable = true
			return t
		}
		return Type{Kind: TypeUnknown}
	default:
		return Type{Kind: TypeUnknown}
	}
}

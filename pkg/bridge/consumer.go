package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/planwire/pkg/logical"
	"github.com/leapstack-labs/planwire/pkg/wire"
)

// Consumer: wire messages back to logical plans and expressions.
//
// Tables are resolved against the session catalog, function anchors
// against the message's declaration table. Operator function names map
// back onto binary and unary expression nodes, so a produced plan
// consumed on the same session reconstructs the original logical tree.

// wireBinaryOps is the inverse of binaryOpNames.
var wireBinaryOps = invertBinary(binaryOpNames)

// wireUnaryOps is the inverse of unaryOpNames.
var wireUnaryOps = invertUnary(unaryOpNames)

func invertBinary(m map[logical.BinaryOp]string) map[string]logical.BinaryOp {
	out := make(map[string]logical.BinaryOp, len(m))
	for op, name := range m {
		out[name] = op
	}
	return out
}

func invertUnary(m map[logical.UnaryOp]string) map[string]logical.UnaryOp {
	out := make(map[string]logical.UnaryOp, len(m))
	for op, name := range m {
		out[name] = op
	}
	return out
}

type consumer struct {
	ctx  context.Context
	sess *logical.Session
	fns  map[uint32]string
}

// FromWirePlan converts a wire plan carrier back into a logical plan,
// resolving tables and functions against the session.
func FromWirePlan(ctx context.Context, sess *logical.Session, plan *Plan) (logical.Plan, error) {
	msg := plan.Message()
	if len(msg.Relations) != 1 {
		return nil, &UnsupportedError{Construct: fmt.Sprintf("plan with %d relations", len(msg.Relations))}
	}

	c := &consumer{ctx: ctx, sess: sess, fns: declaredFunctions(msg.Functions)}
	return c.rel(msg.Relations[0].Root.Input)
}

// FromWireExpression converts a wire expression carrier back into a
// logical expression and the schema it is bound to. No session is
// involved: the envelope is self-contained.
func FromWireExpression(expr *Expression) (logical.Expr, *logical.Schema, error) {
	msg := expr.Message()
	schema, err := fromNamedStruct(msg.BaseSchema)
	if err != nil {
		return nil, nil, err
	}

	c := &consumer{fns: declaredFunctions(msg.Functions)}
	out, err := c.expr(&msg.Referred[0].Expression, schema)
	if err != nil {
		return nil, nil, err
	}
	return out, schema, nil
}

func declaredFunctions(decls []wire.FunctionDecl) map[uint32]string {
	m := make(map[uint32]string, len(decls))
	for _, d := range decls {
		m[d.Anchor] = d.Name
	}
	return m
}

func (c *consumer) functionName(anchor uint32) (string, error) {
	name, ok := c.fns[anchor]
	if !ok {
		return "", &ResolveError{Kind: "function", Name: fmt.Sprintf("anchor %d", anchor)}
	}
	return name, nil
}

// ---------- Relations ----------

func (c *consumer) rel(r *wire.Rel) (logical.Plan, error) {
	switch {
	case r.Read != nil:
		return c.read(r.Read)

	case r.Filter != nil:
		input, err := c.rel(r.Filter.Input)
		if err != nil {
			return nil, err
		}
		cond, err := c.expr(r.Filter.Condition, input.Schema())
		if err != nil {
			return nil, err
		}
		return &logical.Filter{Input: input, Predicate: cond}, nil

	case r.Project != nil:
		input, err := c.rel(r.Project.Input)
		if err != nil {
			return nil, err
		}
		exprs, err := c.exprs(r.Project.Expressions, input.Schema())
		if err != nil {
			return nil, err
		}
		names := make([]string, len(r.Project.Names))
		copy(names, r.Project.Names)
		return logical.NewProjection(input, exprs, names), nil

	case r.Aggregate != nil:
		return c.aggregate(r.Aggregate)

	case r.Sort != nil:
		input, err := c.rel(r.Sort.Input)
		if err != nil {
			return nil, err
		}
		keys := make([]logical.SortKey, len(r.Sort.Sorts))
		for i := range r.Sort.Sorts {
			s := &r.Sort.Sorts[i]
			expr, err := c.expr(&s.Expr, input.Schema())
			if err != nil {
				return nil, err
			}
			keys[i] = logical.SortKey{
				Expr:       expr,
				Desc:       s.Direction == wire.SortDescNullsFirst || s.Direction == wire.SortDescNullsLast,
				NullsFirst: s.Direction == wire.SortAscNullsFirst || s.Direction == wire.SortDescNullsFirst,
			}
		}
		return &logical.Sort{Input: input, Keys: keys}, nil

	case r.Fetch != nil:
		input, err := c.rel(r.Fetch.Input)
		if err != nil {
			return nil, err
		}
		return &logical.Limit{Input: input, Offset: r.Fetch.Offset, Count: r.Fetch.Count}, nil

	case r.Join != nil:
		return c.join(r.Join)

	default:
		return nil, &DecodeError{Err: fmt.Errorf("empty relation")}
	}
}

func (c *consumer) read(read *wire.ReadRel) (logical.Plan, error) {
	if read.NamedTable != nil {
		name := strings.Join(read.NamedTable.Names, ".")
		tbl, err := c.sess.Table(c.ctx, name)
		if err != nil {
			if c.ctx.Err() != nil {
				return nil, err
			}
			return nil, &ResolveError{Kind: "table", Name: name}
		}
		declared, err := fromNamedStruct(read.BaseSchema)
		if err != nil {
			return nil, err
		}
		if !tbl.Schema.Equal(declared) {
			return nil, &ResolveError{Kind: "table", Name: name}
		}
		return logical.NewScan(tbl.Name, tbl.Schema), nil
	}

	schema, err := fromNamedStruct(read.BaseSchema)
	if err != nil {
		return nil, err
	}
	rows := make([][]logical.Expr, len(read.VirtualTable.Rows))
	for i, row := range read.VirtualTable.Rows {
		rows[i] = make([]logical.Expr, len(row))
		for j := range row {
			lit, err := fromWireLiteral(&row[j])
			if err != nil {
				return nil, err
			}
			rows[i][j] = lit
		}
	}
	return logical.NewValues(rows, schema), nil
}

func (c *consumer) aggregate(agg *wire.AggregateRel) (logical.Plan, error) {
	input, err := c.rel(agg.Input)
	if err != nil {
		return nil, err
	}

	groupBy, err := c.exprs(agg.Groupings, input.Schema())
	if err != nil {
		return nil, err
	}

	aggs := make([]*logical.FuncCall, len(agg.Measures))
	types := make([]logical.Type, len(agg.Measures))
	for i := range agg.Measures {
		f := &agg.Measures[i].Function
		name, err := c.functionName(f.FunctionRef)
		if err != nil {
			return nil, err
		}
		if _, err := c.sess.Function(name); err != nil {
			return nil, &ResolveError{Kind: "function", Name: name}
		}
		args, err := c.exprs(f.Arguments, input.Schema())
		if err != nil {
			return nil, err
		}
		aggs[i] = &logical.FuncCall{Name: name, Args: args, Distinct: f.Distinct}
		types[i], err = fromWireType(f.OutputType)
		if err != nil {
			return nil, err
		}
	}

	return logical.NewAggregate(input, groupBy, aggs, types), nil
}

var logicalJoinKinds = map[wire.JoinKind]logical.JoinKind{
	wire.JoinInner: logical.JoinInner,
	wire.JoinLeft:  logical.JoinLeft,
	wire.JoinRight: logical.JoinRight,
	wire.JoinFull:  logical.JoinFull,
	wire.JoinCross: logical.JoinCross,
}

func (c *consumer) join(join *wire.JoinRel) (logical.Plan, error) {
	left, err := c.rel(join.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.rel(join.Right)
	if err != nil {
		return nil, err
	}

	kind, ok := logicalJoinKinds[join.Kind]
	if !ok {
		return nil, &DecodeError{Err: fmt.Errorf("unknown join kind %d", join.Kind)}
	}

	var on logical.Expr
	if join.Expression != nil {
		combined := logical.NewSchema(append(left.Schema().Fields(), right.Schema().Fields()...)...)
		on, err = c.expr(join.Expression, combined)
		if err != nil {
			return nil, err
		}
	}
	return logical.NewJoin(left, right, kind, on), nil
}

// ---------- Expressions ----------

func (c *consumer) exprs(exprs []wire.Expression, schema *logical.Schema) ([]logical.Expr, error) {
	out := make([]logical.Expr, len(exprs))
	for i := range exprs {
		e, err := c.expr(&exprs[i], schema)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (c *consumer) expr(e *wire.Expression, schema *logical.Schema) (logical.Expr, error) {
	switch {
	case e.Literal != nil:
		return fromWireLiteral(e.Literal)

	case e.Selection != nil:
		idx := int(e.Selection.Field)
		if idx >= schema.Len() {
			return nil, &FieldError{Name: fmt.Sprintf("$%d", idx)}
		}
		return &logical.ColumnRef{Name: schema.Field(idx).Name, Index: idx}, nil

	case e.ScalarFunction != nil:
		return c.scalarFunction(e.ScalarFunction, schema)

	case e.Cast != nil:
		input, err := c.expr(e.Cast.Input, schema)
		if err != nil {
			return nil, err
		}
		to, err := fromWireType(e.Cast.Type)
		if err != nil {
			return nil, err
		}
		return &logical.CastExpr{Input: input, To: to}, nil

	case e.IfThen != nil:
		out := &logical.CaseExpr{}
		for i := range e.IfThen.Ifs {
			clause := &e.IfThen.Ifs[i]
			when, err := c.expr(&clause.If, schema)
			if err != nil {
				return nil, err
			}
			then, err := c.expr(&clause.Then, schema)
			if err != nil {
				return nil, err
			}
			out.Whens = append(out.Whens, logical.WhenClause{When: when, Then: then})
		}
		if e.IfThen.Else != nil {
			els, err := c.expr(e.IfThen.Else, schema)
			if err != nil {
				return nil, err
			}
			out.Else = els
		}
		return out, nil

	default:
		return nil, &DecodeError{Err: fmt.Errorf("empty expression")}
	}
}

func (c *consumer) scalarFunction(f *wire.ScalarFunction, schema *logical.Schema) (logical.Expr, error) {
	name, err := c.functionName(f.FunctionRef)
	if err != nil {
		return nil, err
	}

	args, err := c.exprs(f.Arguments, schema)
	if err != nil {
		return nil, err
	}

	if op, ok := wireBinaryOps[name]; ok {
		if len(args) != 2 {
			return nil, &DecodeError{Err: fmt.Errorf("%s takes 2 arguments, got %d", name, len(args))}
		}
		return &logical.BinaryExpr{Op: op, Left: args[0], Right: args[1]}, nil
	}
	if op, ok := wireUnaryOps[name]; ok {
		if len(args) != 1 {
			return nil, &DecodeError{Err: fmt.Errorf("%s takes 1 argument, got %d", name, len(args))}
		}
		return &logical.UnaryExpr{Op: op, Input: args[0]}, nil
	}

	// Expression envelopes resolve functions by name only; plan
	// consumption checks them against the session.
	if c.sess != nil {
		if _, err := c.sess.Function(name); err != nil {
			return nil, &ResolveError{Kind: "function", Name: name}
		}
	}
	return &logical.FuncCall{Name: name, Args: args}, nil
}

func fromWireLiteral(lit *wire.Literal) (*logical.Literal, error) {
	switch {
	case lit.Null != nil:
		t, err := fromWireType(*lit.Null)
		if err != nil {
			return nil, err
		}
		t.Nullable = true
		return &logical.Literal{Type: t}, nil
	case lit.Boolean != nil:
		return &logical.Literal{Type: logical.Type{Kind: logical.TypeBool}, Value: *lit.Boolean}, nil
	case lit.I64 != nil:
		return &logical.Literal{Type: logical.Type{Kind: logical.TypeInt64}, Value: *lit.I64}, nil
	case lit.Fp64 != nil:
		return &logical.Literal{Type: logical.Type{Kind: logical.TypeFloat64}, Value: *lit.Fp64}, nil
	case lit.Str != nil:
		return &logical.Literal{Type: logical.Type{Kind: logical.TypeString}, Value: *lit.Str}, nil
	default:
		return nil, &DecodeError{Err: fmt.Errorf("empty literal")}
	}
}

// ---------- Type and Schema Mapping ----------

var logicalKinds = map[wire.TypeKind]logical.TypeKind{
	wire.KindUnspecified: logical.TypeUnknown,
	wire.KindBool:        logical.TypeBool,
	wire.KindI64:         logical.TypeInt64,
	wire.KindFp64:        logical.TypeFloat64,
	wire.KindString:      logical.TypeString,
	wire.KindDate:        logical.TypeDate,
	wire.KindTimestamp:   logical.TypeTimestamp,
}

func fromWireType(t wire.Type) (logical.Type, error) {
	kind, ok := logicalKinds[t.Kind]
	if !ok {
		return logical.Type{}, &ResolveError{Kind: "type", Name: t.Kind.String()}
	}
	return logical.Type{Kind: kind, Nullable: t.Nullable}, nil
}

func fromNamedStruct(ns wire.NamedStruct) (*logical.Schema, error) {
	fields := make([]logical.Field, len(ns.Names))
	for i, name := range ns.Names {
		t, err := fromWireType(ns.Types[i])
		if err != nil {
			return nil, err
		}
		fields[i] = logical.Field{Name: name, Type: t}
	}
	return logical.NewSchema(fields...), nil
}

package bridge

import (
	"fmt"

	"github.com/leapstack-labs/planwire/pkg/logical"
	"github.com/leapstack-labs/planwire/pkg/wire"
)

// Producer: logical plans and expressions to wire messages.
//
// Operators are encoded as named scalar functions; all function names
// are hoisted into the declaration table and referenced by anchor. The
// first unsupported construct aborts the conversion.

// producerName is stamped into the version of every produced message.
const producerName = "planwire"

// binaryOpNames maps logical binary operators to wire function names.
var binaryOpNames = map[logical.BinaryOp]string{
	logical.OpAdd:      "add",
	logical.OpSubtract: "subtract",
	logical.OpMultiply: "multiply",
	logical.OpDivide:   "divide",
	logical.OpModulo:   "modulus",
	logical.OpEq:       "equal",
	logical.OpNotEq:    "not_equal",
	logical.OpLt:       "lt",
	logical.OpLtEq:     "lte",
	logical.OpGt:       "gt",
	logical.OpGtEq:     "gte",
	logical.OpAnd:      "and",
	logical.OpOr:       "or",
	logical.OpConcat:   "concat",
}

// unaryOpNames maps logical unary operators to wire function names.
var unaryOpNames = map[logical.UnaryOp]string{
	logical.OpNegate:    "negate",
	logical.OpNot:       "not",
	logical.OpIsNull:    "is_null",
	logical.OpIsNotNull: "is_not_null",
}

type producer struct {
	decls   []wire.FunctionDecl
	anchors map[string]uint32
}

func newProducer() *producer {
	return &producer{anchors: make(map[string]uint32)}
}

// ToWirePlan converts a logical plan into a wire plan carrier.
func ToWirePlan(plan logical.Plan, _ *logical.Session) (*Plan, error) {
	p := newProducer()

	root, err := p.rel(plan)
	if err != nil {
		return nil, err
	}

	schema := plan.Schema()
	names := make([]string, schema.Len())
	for i := range names {
		names[i] = schema.Field(i).Name
	}

	msg := &wire.Plan{
		Version:   formatVersion(),
		Functions: p.decls,
		Relations: []wire.PlanRel{
			{Root: &wire.RelRoot{Input: root, Names: names}},
		},
	}
	return &Plan{msg: msg}, nil
}

// ToWireExpression converts a bound scalar expression over a schema into
// a wire expression carrier. The name labels the expression in the
// envelope; empty defaults to "expression".
func ToWireExpression(expr logical.Expr, name string, schema *logical.Schema) (*Expression, error) {
	if name == "" {
		name = "expression"
	}

	p := newProducer()
	wexpr, err := p.expr(expr, schema)
	if err != nil {
		return nil, err
	}

	msg := &wire.ExtendedExpression{
		Version:   formatVersion(),
		Functions: p.decls,
		Referred: []wire.ExpressionReference{
			{Expression: *wexpr, Names: []string{name}},
		},
		BaseSchema: toNamedStruct(schema),
	}
	return &Expression{msg: msg}, nil
}

func formatVersion() wire.Version {
	return wire.Version{
		Major:    wire.FormatMajor,
		Minor:    wire.FormatMinor,
		Patch:    wire.FormatPatch,
		Producer: producerName,
	}
}

// anchor returns the declaration anchor for a function name, declaring
// it on first use. Anchors start at 1.
func (p *producer) anchor(name string) uint32 {
	if a, ok := p.anchors[name]; ok {
		return a
	}
	a := uint32(len(p.decls) + 1)
	p.anchors[name] = a
	p.decls = append(p.decls, wire.FunctionDecl{Anchor: a, Name: name})
	return a
}

// ---------- Relations ----------

func (p *producer) rel(plan logical.Plan) (*wire.Rel, error) {
	switch plan := plan.(type) {
	case *logical.Scan:
		return &wire.Rel{Read: &wire.ReadRel{
			BaseSchema: toNamedStruct(plan.Schema()),
			NamedTable: &wire.NamedTable{Names: []string{plan.Table}},
		}}, nil

	case *logical.Values:
		rows := make([][]wire.Literal, len(plan.Rows))
		for i, row := range plan.Rows {
			rows[i] = make([]wire.Literal, len(row))
			for j, cell := range row {
				lit, ok := cell.(*logical.Literal)
				if !ok {
					return nil, &UnsupportedError{Construct: fmt.Sprintf("non-literal values cell %s", cell)}
				}
				wl, err := toWireLiteral(lit)
				if err != nil {
					return nil, err
				}
				rows[i][j] = *wl
			}
		}
		return &wire.Rel{Read: &wire.ReadRel{
			BaseSchema:   toNamedStruct(plan.Schema()),
			VirtualTable: &wire.VirtualTable{Rows: rows},
		}}, nil

	case *logical.Filter:
		input, err := p.rel(plan.Input)
		if err != nil {
			return nil, err
		}
		cond, err := p.expr(plan.Predicate, plan.Input.Schema())
		if err != nil {
			return nil, err
		}
		return &wire.Rel{Filter: &wire.FilterRel{Input: input, Condition: cond}}, nil

	case *logical.Projection:
		input, err := p.rel(plan.Input)
		if err != nil {
			return nil, err
		}
		exprs, err := p.exprs(plan.Exprs, plan.Input.Schema())
		if err != nil {
			return nil, err
		}
		names := make([]string, len(plan.Names))
		copy(names, plan.Names)
		return &wire.Rel{Project: &wire.ProjectRel{Input: input, Expressions: exprs, Names: names}}, nil

	case *logical.Aggregate:
		return p.aggregate(plan)

	case *logical.Sort:
		input, err := p.rel(plan.Input)
		if err != nil {
			return nil, err
		}
		sorts := make([]wire.SortField, len(plan.Keys))
		for i, key := range plan.Keys {
			expr, err := p.expr(key.Expr, plan.Input.Schema())
			if err != nil {
				return nil, err
			}
			sorts[i] = wire.SortField{Expr: *expr, Direction: sortDirection(key)}
		}
		return &wire.Rel{Sort: &wire.SortRel{Input: input, Sorts: sorts}}, nil

	case *logical.Limit:
		input, err := p.rel(plan.Input)
		if err != nil {
			return nil, err
		}
		return &wire.Rel{Fetch: &wire.FetchRel{Input: input, Offset: plan.Offset, Count: plan.Count}}, nil

	case *logical.Join:
		return p.join(plan)

	default:
		return nil, &UnsupportedError{Construct: fmt.Sprintf("%T plan node", plan)}
	}
}

func (p *producer) aggregate(agg *logical.Aggregate) (*wire.Rel, error) {
	input, err := p.rel(agg.Input)
	if err != nil {
		return nil, err
	}

	inSchema := agg.Input.Schema()
	groupings, err := p.exprs(agg.GroupBy, inSchema)
	if err != nil {
		return nil, err
	}

	measures := make([]wire.Measure, len(agg.Aggs))
	for i, call := range agg.Aggs {
		args, err := p.exprs(call.Args, inSchema)
		if err != nil {
			return nil, err
		}
		out := agg.Schema().Field(len(agg.GroupBy) + i).Type
		measures[i] = wire.Measure{Function: wire.AggregateFunction{
			FunctionRef: p.anchor(call.Name),
			Arguments:   args,
			Distinct:    call.Distinct,
			OutputType:  toWireType(out),
		}}
	}

	return &wire.Rel{Aggregate: &wire.AggregateRel{
		Input:     input,
		Groupings: groupings,
		Measures:  measures,
	}}, nil
}

var joinKinds = map[logical.JoinKind]wire.JoinKind{
	logical.JoinInner: wire.JoinInner,
	logical.JoinLeft:  wire.JoinLeft,
	logical.JoinRight: wire.JoinRight,
	logical.JoinFull:  wire.JoinFull,
	logical.JoinCross: wire.JoinCross,
}

func (p *producer) join(join *logical.Join) (*wire.Rel, error) {
	left, err := p.rel(join.Left)
	if err != nil {
		return nil, err
	}
	right, err := p.rel(join.Right)
	if err != nil {
		return nil, err
	}

	kind, ok := joinKinds[join.Kind]
	if !ok {
		return nil, &UnsupportedError{Construct: fmt.Sprintf("%s join", join.Kind)}
	}

	rel := &wire.JoinRel{Left: left, Right: right, Kind: kind}
	if join.On != nil {
		cond, err := p.expr(join.On, join.Schema())
		if err != nil {
			return nil, err
		}
		rel.Expression = cond
	}
	return &wire.Rel{Join: rel}, nil
}

func sortDirection(key logical.SortKey) wire.SortDirection {
	switch {
	case key.Desc && key.NullsFirst:
		return wire.SortDescNullsFirst
	case key.Desc:
		return wire.SortDescNullsLast
	case key.NullsFirst:
		return wire.SortAscNullsFirst
	default:
		return wire.SortAscNullsLast
	}
}

// ---------- Expressions ----------

func (p *producer) exprs(exprs []logical.Expr, schema *logical.Schema) ([]wire.Expression, error) {
	out := make([]wire.Expression, len(exprs))
	for i, e := range exprs {
		w, err := p.expr(e, schema)
		if err != nil {
			return nil, err
		}
		out[i] = *w
	}
	return out, nil
}

func (p *producer) expr(e logical.Expr, schema *logical.Schema) (*wire.Expression, error) {
	switch e := e.(type) {
	case *logical.ColumnRef:
		idx := e.Index
		if idx < 0 {
			idx = schema.IndexOf(e.Name)
		}
		if idx < 0 || idx >= schema.Len() {
			return nil, &FieldError{Name: e.Name}
		}
		return &wire.Expression{Selection: &wire.FieldReference{Field: int32(idx)}}, nil

	case *logical.Literal:
		lit, err := toWireLiteral(e)
		if err != nil {
			return nil, err
		}
		return &wire.Expression{Literal: lit}, nil

	case *logical.BinaryExpr:
		name, ok := binaryOpNames[e.Op]
		if !ok {
			return nil, &UnsupportedError{Construct: fmt.Sprintf("binary operator %s", e.Op)}
		}
		left, err := p.expr(e.Left, schema)
		if err != nil {
			return nil, err
		}
		right, err := p.expr(e.Right, schema)
		if err != nil {
			return nil, err
		}
		return &wire.Expression{ScalarFunction: &wire.ScalarFunction{
			FunctionRef: p.anchor(name),
			Arguments:   []wire.Expression{*left, *right},
			OutputType:  toWireType(logical.TypeOf(e, schema)),
		}}, nil

	case *logical.UnaryExpr:
		name, ok := unaryOpNames[e.Op]
		if !ok {
			return nil, &UnsupportedError{Construct: fmt.Sprintf("unary operator %s", e.Op)}
		}
		input, err := p.expr(e.Input, schema)
		if err != nil {
			return nil, err
		}
		return &wire.Expression{ScalarFunction: &wire.ScalarFunction{
			FunctionRef: p.anchor(name),
			Arguments:   []wire.Expression{*input},
			OutputType:  toWireType(logical.TypeOf(e, schema)),
		}}, nil

	case *logical.FuncCall:
		if e.Distinct {
			return nil, &UnsupportedError{Construct: fmt.Sprintf("distinct scalar call %s", e.Name)}
		}
		args, err := p.exprs(e.Args, schema)
		if err != nil {
			return nil, err
		}
		return &wire.Expression{ScalarFunction: &wire.ScalarFunction{
			FunctionRef: p.anchor(e.Name),
			Arguments:   args,
			OutputType:  toWireType(logical.TypeOf(e, schema)),
		}}, nil

	case *logical.CastExpr:
		input, err := p.expr(e.Input, schema)
		if err != nil {
			return nil, err
		}
		return &wire.Expression{Cast: &wire.Cast{Input: input, Type: toWireType(e.To)}}, nil

	case *logical.CaseExpr:
		ifThen := &wire.IfThen{}
		for _, w := range e.Whens {
			cond, err := p.expr(w.When, schema)
			if err != nil {
				return nil, err
			}
			then, err := p.expr(w.Then, schema)
			if err != nil {
				return nil, err
			}
			ifThen.Ifs = append(ifThen.Ifs, wire.IfClause{If: *cond, Then: *then})
		}
		if e.Else != nil {
			els, err := p.expr(e.Else, schema)
			if err != nil {
				return nil, err
			}
			ifThen.Else = els
		}
		return &wire.Expression{IfThen: ifThen}, nil

	default:
		return nil, &UnsupportedError{Construct: fmt.Sprintf("%T expression", e)}
	}
}

func toWireLiteral(lit *logical.Literal) (*wire.Literal, error) {
	if lit.Value == nil {
		t := toWireType(lit.Type)
		t.Nullable = true
		return &wire.Literal{Null: &t}, nil
	}
	switch v := lit.Value.(type) {
	case bool:
		return &wire.Literal{Boolean: &v}, nil
	case int64:
		return &wire.Literal{I64: &v}, nil
	case float64:
		return &wire.Literal{Fp64: &v}, nil
	case string:
		return &wire.Literal{Str: &v}, nil
	default:
		return nil, &UnsupportedError{Construct: fmt.Sprintf("%T literal", lit.Value)}
	}
}

// ---------- Type and Schema Mapping ----------

var wireKinds = map[logical.TypeKind]wire.TypeKind{
	logical.TypeUnknown:   wire.KindUnspecified,
	logical.TypeBool:      wire.KindBool,
	logical.TypeInt64:     wire.KindI64,
	logical.TypeFloat64:   wire.KindFp64,
	logical.TypeString:    wire.KindString,
	logical.TypeDate:      wire.KindDate,
	logical.TypeTimestamp: wire.KindTimestamp,
}

func toWireType(t logical.Type) wire.Type {
	return wire.Type{Kind: wireKinds[t.Kind], Nullable: t.Nullable}
}

func toNamedStruct(schema *logical.Schema) wire.NamedStruct {
	ns := wire.NamedStruct{
		Names: make([]string, schema.Len()),
		Types: make([]wire.Type, schema.Len()),
	}
	for i := 0; i < schema.Len(); i++ {
		f := schema.Field(i)
		ns.Names[i] = f.Name
		ns.Types[i] = toWireType(f.Type)
	}
	return ns
}

package logical

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/planwire/pkg/parser"
	"github.com/leapstack-labs/planwire/pkg/token"
)

// SQL AST to logical plan building.
//
// Plan shape, bottom up:
//
//	Scan/Values → Join* → Filter (WHERE) → Aggregate → Filter (HAVING)
//	→ Projection → Sort → Limit
//
// Binding resolves every column reference to an ordinal of its input
// schema; nothing downstream of the planner resolves names again.

type planBuilder struct {
	sess *Session
	ctx  context.Context
}

// ---------- Name Scope ----------

type scopeCol struct {
	table string // qualifier (alias or table name), may be empty
	name  string
	index int
}

type scope struct {
	cols   []scopeCol
	schema *Schema
}

// scopeFromSchema builds a scope over a schema with a single qualifier.
func scopeFromSchema(qualifier string, schema *Schema) *scope {
	sc := &scope{schema: schema}
	for i := 0; i < schema.Len(); i++ {
		sc.cols = append(sc.cols, scopeCol{table: qualifier, name: schema.Field(i).Name, index: i})
	}
	return sc
}

// merge appends another scope's columns, offsetting their ordinals past
// this scope's schema (used for join scopes).
func (sc *scope) merge(other *scope) *scope {
	out := &scope{schema: NewSchema(append(sc.schema.Fields(), other.schema.Fields()...)...)}
	out.cols = append(out.cols, sc.cols...)
	offset := sc.schema.Len()
	for _, c := range other.cols {
		out.cols = append(out.cols, scopeCol{table: c.table, name: c.name, index: c.index + offset})
	}
	return out
}

// resolve finds the column for an optionally qualified name.
func (sc *scope) resolve(table, name string) (scopeCol, error) {
	var found []scopeCol
	for _, c := range sc.cols {
		if c.name != name {
			continue
		}
		if table != "" && c.table != table {
			continue
		}
		found = append(found, c)
	}
	switch len(found) {
	case 0:
		if table != "" {
			return scopeCol{}, &ResolutionError{Kind: "column", Name: table + "." + name}
		}
		return scopeCol{}, &ResolutionError{Kind: "column", Name: name}
	case 1:
		return found[0], nil
	default:
		return scopeCol{}, fmt.Errorf("ambiguous column reference %q", name)
	}
}

// ---------- Statement Building ----------

func (b *planBuilder) buildSelect(stmt *parser.SelectStmt) (Plan, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, err
	}
	if stmt == nil {
		return nil, &PlanError{Construct: "statement", Message: "empty statement"}
	}
	if stmt.Distinct {
		return nil, &PlanError{Construct: "SELECT DISTINCT"}
	}

	var (
		input Plan
		sc    *scope
		err   error
	)
	if stmt.From != nil {
		input, sc, err = b.buildFrom(stmt.From)
		if err != nil {
			return nil, err
		}
	} else {
		// FROM-less query: a single empty literal row to project over.
		input = NewValues([][]Expr{{}}, NewSchema())
		sc = scopeFromSchema("", input.Schema())
	}

	// WHERE
	if stmt.Where != nil {
		pred, err := b.bindExpr(stmt.Where, sc, false)
		if err != nil {
			return nil, err
		}
		input = &Filter{Input: input, Predicate: pred}
	}

	// SELECT list: expand stars, bind, and name each output column.
	exprs, names, err := b.bindSelectList(stmt.Columns, sc)
	if err != nil {
		return nil, err
	}

	// HAVING is bound against the pre-aggregate scope; aggregate calls in
	// it become measures alongside those of the select list.
	var having Expr
	if stmt.Having != nil {
		having, err = b.bindExpr(stmt.Having, sc, true)
		if err != nil {
			return nil, err
		}
	}

	aggs := collectAggregates(b.sess, exprs)
	if having != nil {
		aggs = mergeAggregates(aggs, collectAggregates(b.sess, []Expr{having}))
	}

	if len(stmt.GroupBy) > 0 || len(aggs) > 0 {
		input, exprs, having, err = b.buildAggregate(stmt, sc, input, exprs, having, aggs)
		if err != nil {
			return nil, err
		}
	} else if stmt.Having != nil {
		return nil, &PlanError{Construct: "HAVING", Message: "HAVING requires GROUP BY or aggregates"}
	}

	if having != nil {
		input = &Filter{Input: input, Predicate: having}
	}

	plan := Plan(NewProjection(input, exprs, names))

	// ORDER BY binds against the projected output schema; a bare integer
	// literal is a 1-based output position.
	if len(stmt.OrderBy) > 0 {
		plan, err = b.buildSort(stmt.OrderBy, plan)
		if err != nil {
			return nil, err
		}
	}

	// LIMIT / OFFSET
	if stmt.Limit != nil || stmt.Offset != nil {
		limit := &Limit{Input: plan, Count: -1}
		if stmt.Limit != nil {
			if limit.Count, err = literalInt(stmt.Limit, "LIMIT"); err != nil {
				return nil, err
			}
		}
		if stmt.Offset != nil {
			if limit.Offset, err = literalInt(stmt.Offset, "OFFSET"); err != nil {
				return nil, err
			}
		}
		plan = limit
	}

	return plan, nil
}

// bindSelectList expands stars and binds select items to expressions with
// output names.
func (b *planBuilder) bindSelectList(items []parser.SelectItem, sc *scope) ([]Expr, []string, error) {
	var exprs []Expr
	var names []string

	for _, item := range items {
		switch {
		case item.Star:
			for _, c := range sc.cols {
				exprs = append(exprs, &ColumnRef{Name: c.name, Index: c.index})
				names = append(names, c.name)
			}
		case item.TableStar != "":
			matched := false
			for _, c := range sc.cols {
				if c.table != item.TableStar {
					continue
				}
				exprs = append(exprs, &ColumnRef{Name: c.name, Index: c.index})
				names = append(names, c.name)
				matched = true
			}
			if !matched {
				return nil, nil, &ResolutionError{Kind: "table", Name: item.TableStar}
			}
		default:
			bound, err := b.bindExpr(item.Expr, sc, true)
			if err != nil {
				return nil, nil, err
			}
			exprs = append(exprs, bound)
			names = append(names, outputName(item, bound))
		}
	}

	return exprs, names, nil
}

// outputName picks the display name of a select item.
func outputName(item parser.SelectItem, bound Expr) string {
	if item.Alias != "" {
		return item.Alias
	}
	if ref, ok := bound.(*ColumnRef); ok {
		return ref.Name
	}
	return bound.String()
}

// buildAggregate inserts an Aggregate node and rewrites the select list and
// HAVING predicate in terms of its output schema.
func (b *planBuilder) buildAggregate(stmt *parser.SelectStmt, sc *scope, input Plan, exprs []Expr, having Expr, aggs []*FuncCall) (Plan, []Expr, Expr, error) {
	groupBy := make([]Expr, 0, len(stmt.GroupBy))
	for _, g := range stmt.GroupBy {
		bound, err := b.bindExpr(g, sc, false)
		if err != nil {
			return nil, nil, nil, err
		}
		groupBy = append(groupBy, bound)
	}

	types := make([]Type, len(aggs))
	for i, a := range aggs {
		f, err := b.sess.Function(a.Name)
		if err != nil {
			return nil, nil, nil, err
		}
		argTypes := make([]Type, len(a.Args))
		for j, arg := range a.Args {
			argTypes[j] = TypeOf(arg, input.Schema())
		}
		types[i] = f.Result(argTypes)
	}

	agg := NewAggregate(input, groupBy, aggs, types)

	rewritten := make([]Expr, len(exprs))
	for i, e := range exprs {
		r, err := rewriteAggExpr(e, agg)
		if err != nil {
			return nil, nil, nil, err
		}
		rewritten[i] = r
	}

	if having != nil {
		r, err := rewriteAggExpr(having, agg)
		if err != nil {
			return nil, nil, nil, err
		}
		having = r
	}

	return agg, rewritten, having, nil
}

// rewriteAggExpr maps an expression bound against the pre-aggregate input
// onto the aggregate output schema. Grouping expressions and aggregate
// calls become column references; any other column reference is invalid.
func rewriteAggExpr(e Expr, agg *Aggregate) (Expr, error) {
	key := e.String()
	n := 0
	for _, g := range agg.GroupBy {
		if g.String() == key {
			return &ColumnRef{Name: agg.Schema().Field(n).Name, Index: n}, nil
		}
		n++
	}
	for _, a := range agg.Aggs {
		if a.String() == key {
			return &ColumnRef{Name: agg.Schema().Field(n).Name, Index: n}, nil
		}
		n++
	}

	switch e := e.(type) {
	case *ColumnRef:
		return nil, fmt.Errorf("column %q must appear in the GROUP BY clause or be used in an aggregate function", e.Name)
	case *Literal:
		return e, nil
	case *BinaryExpr:
		left, err := rewriteAggExpr(e.Left, agg)
		if err != nil {
			return nil, err
		}
		right, err := rewriteAggExpr(e.Right, agg)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: e.Op, Left: left, Right: right}, nil
	case *UnaryExpr:
		in, err := rewriteAggExpr(e.Input, agg)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: e.Op, Input: in}, nil
	case *FuncCall:
		args := make([]Expr, len(e.Args))
		for i, a := range e.Args {
			r, err := rewriteAggExpr(a, agg)
			if err != nil {
				return nil, err
			}
			args[i] = r
		}
		return &FuncCall{Name: e.Name, Args: args, Distinct: e.Distinct}, nil
	case *CastExpr:
		in, err := rewriteAggExpr(e.Input, agg)
		if err != nil {
			return nil, err
		}
		return &CastExpr{Input: in, To: e.To}, nil
	case *CaseExpr:
		out := &CaseExpr{}
		for _, w := range e.Whens {
			when, err := rewriteAggExpr(w.When, agg)
			if err != nil {
				return nil, err
			}
			then, err := rewriteAggExpr(w.Then, agg)
			if err != nil {
				return nil, err
			}
			out.Whens = append(out.Whens, WhenClause{When: when, Then: then})
		}
		if e.Else != nil {
			els, err := rewriteAggExpr(e.Else, agg)
			if err != nil {
				return nil, err
			}
			out.Else = els
		}
		return out, nil
	default:
		return nil, &PlanError{Construct: fmt.Sprintf("%T in aggregate query", e)}
	}
}

// buildSort binds ORDER BY against the projected output schema.
func (b *planBuilder) buildSort(items []parser.OrderByItem, plan Plan) (Plan, error) {
	outScope := scopeFromSchema("", plan.Schema())
	sort := &Sort{Input: plan}

	for _, item := range items {
		var key SortKey

		// Positional reference: ORDER BY 2
		if lit, ok := item.Expr.(*parser.Literal); ok && lit.Type == parser.LiteralNumber {
			pos, err := strconv.ParseInt(lit.Value, 10, 64)
			if err != nil || pos < 1 || pos > int64(plan.Schema().Len()) {
				return nil, fmt.Errorf("ORDER BY position %s is out of range", lit.Value)
			}
			f := plan.Schema().Field(int(pos - 1))
			key.Expr = &ColumnRef{Name: f.Name, Index: int(pos - 1)}
		} else {
			bound, err := b.bindExpr(item.Expr, outScope, false)
			if err != nil {
				return nil, err
			}
			key.Expr = bound
		}

		key.Desc = item.Desc
		if item.NullsFirst != nil {
			key.NullsFirst = *item.NullsFirst
		} else {
			// Default: nulls sort last ascending, first descending.
			key.NullsFirst = item.Desc
		}

		sort.Keys = append(sort.Keys, key)
	}

	return sort, nil
}

// ---------- FROM Clause ----------

func (b *planBuilder) buildFrom(from *parser.FromClause) (Plan, *scope, error) {
	plan, sc, err := b.buildTableRef(from.Source)
	if err != nil {
		return nil, nil, err
	}

	for _, join := range from.Joins {
		right, rightScope, err := b.buildTableRef(join.Right)
		if err != nil {
			return nil, nil, err
		}

		combined := sc.merge(rightScope)

		kind, ok := joinKinds[join.Type]
		if !ok {
			return nil, nil, &PlanError{Construct: fmt.Sprintf("%s JOIN", join.Type)}
		}

		var on Expr
		if join.Condition != nil {
			on, err = b.bindExpr(join.Condition, combined, false)
			if err != nil {
				return nil, nil, err
			}
		} else if kind != JoinCross {
			return nil, nil, &PlanError{Construct: "JOIN", Message: "missing ON condition"}
		}

		plan = NewJoin(plan, right, kind, on)
		sc = combined
	}

	return plan, sc, nil
}

var joinKinds = map[parser.JoinType]JoinKind{
	parser.JoinInner: JoinInner,
	parser.JoinLeft:  JoinLeft,
	parser.JoinRight: JoinRight,
	parser.JoinFull:  JoinFull,
	parser.JoinCross: JoinCross,
}

func (b *planBuilder) buildTableRef(ref parser.TableRef) (Plan, *scope, error) {
	switch ref := ref.(type) {
	case *parser.TableName:
		tbl, err := b.sess.Table(b.ctx, ref.Name)
		if err != nil {
			return nil, nil, err
		}
		qualifier := ref.Name
		if ref.Alias != "" {
			qualifier = ref.Alias
		}
		return NewScan(tbl.Name, tbl.Schema), scopeFromSchema(qualifier, tbl.Schema), nil

	case *parser.DerivedTable:
		sub, err := b.buildSelect(ref.Select)
		if err != nil {
			return nil, nil, err
		}
		return sub, scopeFromSchema(ref.Alias, sub.Schema()), nil

	default:
		return nil, nil, &PlanError{Construct: fmt.Sprintf("%T table reference", ref)}
	}
}

// ---------- Expression Binding ----------

// bindExpr resolves a parsed expression against the scope. allowAgg
// permits aggregate function calls (select list and HAVING only).
func (b *planBuilder) bindExpr(e parser.Expr, sc *scope, allowAgg bool) (Expr, error) {
	switch e := e.(type) {
	case *parser.ColumnRef:
		col, err := sc.resolve(e.Table, e.Column)
		if err != nil {
			return nil, err
		}
		return &ColumnRef{Name: col.name, Index: col.index}, nil

	case *parser.Literal:
		return bindLiteral(e)

	case *parser.BinaryExpr:
		op, ok := binaryOps[e.Op]
		if !ok {
			return nil, &PlanError{Construct: fmt.Sprintf("operator %s", e.Op)}
		}
		left, err := b.bindExpr(e.Left, sc, allowAgg)
		if err != nil {
			return nil, err
		}
		right, err := b.bindExpr(e.Right, sc, allowAgg)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: op, Left: left, Right: right}, nil

	case *parser.UnaryExpr:
		input, err := b.bindExpr(e.Expr, sc, allowAgg)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case token.MINUS:
			return &UnaryExpr{Op: OpNegate, Input: input}, nil
		case token.PLUS:
			return input, nil
		case token.NOT:
			return &UnaryExpr{Op: OpNot, Input: input}, nil
		default:
			return nil, &PlanError{Construct: fmt.Sprintf("unary operator %s", e.Op)}
		}

	case *parser.FuncCall:
		return b.bindFuncCall(e, sc, allowAgg)

	case *parser.CaseExpr:
		return b.bindCase(e, sc, allowAgg)

	case *parser.CastExpr:
		kind, ok := ParseTypeKind(e.TypeName)
		if !ok {
			return nil, &ResolutionError{Kind: "type", Name: e.TypeName}
		}
		input, err := b.bindExpr(e.Expr, sc, allowAgg)
		if err != nil {
			return nil, err
		}
		return &CastExpr{Input: input, To: Type{Kind: kind, Nullable: true}}, nil

	case *parser.InExpr:
		return b.bindIn(e, sc, allowAgg)

	case *parser.BetweenExpr:
		operand, err := b.bindExpr(e.Expr, sc, allowAgg)
		if err != nil {
			return nil, err
		}
		low, err := b.bindExpr(e.Low, sc, allowAgg)
		if err != nil {
			return nil, err
		}
		high, err := b.bindExpr(e.High, sc, allowAgg)
		if err != nil {
			return nil, err
		}
		between := &BinaryExpr{
			Op:    OpAnd,
			Left:  &BinaryExpr{Op: OpGtEq, Left: operand, Right: low},
			Right: &BinaryExpr{Op: OpLtEq, Left: operand, Right: high},
		}
		if e.Not {
			return &UnaryExpr{Op: OpNot, Input: between}, nil
		}
		return between, nil

	case *parser.IsNullExpr:
		input, err := b.bindExpr(e.Expr, sc, allowAgg)
		if err != nil {
			return nil, err
		}
		if e.Not {
			return &UnaryExpr{Op: OpIsNotNull, Input: input}, nil
		}
		return &UnaryExpr{Op: OpIsNull, Input: input}, nil

	case *parser.LikeExpr:
		input, err := b.bindExpr(e.Expr, sc, allowAgg)
		if err != nil {
			return nil, err
		}
		pattern, err := b.bindExpr(e.Pattern, sc, allowAgg)
		if err != nil {
			return nil, err
		}
		like := &FuncCall{Name: "like", Args: []Expr{input, pattern}}
		if e.Not {
			return &UnaryExpr{Op: OpNot, Input: like}, nil
		}
		return like, nil

	case *parser.ParenExpr:
		return b.bindExpr(e.Expr, sc, allowAgg)

	case *parser.StarExpr:
		return nil, &PlanError{Construct: "*", Message: "star is only valid in the select list"}

	default:
		return nil, &PlanError{Construct: fmt.Sprintf("%T expression", e)}
	}
}

var binaryOps = map[token.TokenType]BinaryOp{
	token.PLUS:    OpAdd,
	token.MINUS:   OpSubtract,
	token.STAR:    OpMultiply,
	token.SLASH:   OpDivide,
	token.PERCENT: OpModulo,
	token.EQ:      OpEq,
	token.NE:      OpNotEq,
	token.LT:      OpLt,
	token.LE:      OpLtEq,
	token.GT:      OpGt,
	token.GE:      OpGtEq,
	token.AND:     OpAnd,
	token.OR:      OpOr,
	token.DPIPE:   OpConcat,
}

func bindLiteral(lit *parser.Literal) (Expr, error) {
	switch lit.Type {
	case parser.LiteralNumber:
		if i, err := strconv.ParseInt(lit.Value, 10, 64); err == nil {
			return &Literal{Type: Type{Kind: TypeInt64}, Value: i}, nil
		}
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number literal %q", lit.Value)
		}
		return &Literal{Type: Type{Kind: TypeFloat64}, Value: f}, nil
	case parser.LiteralString:
		return &Literal{Type: Type{Kind: TypeString}, Value: lit.Value}, nil
	case parser.LiteralBool:
		return &Literal{Type: Type{Kind: TypeBool}, Value: lit.Value == "true"}, nil
	case parser.LiteralNull:
		return &Literal{Type: Type{Kind: TypeUnknown, Nullable: true}}, nil
	default:
		return nil, fmt.Errorf("unknown literal type %d", lit.Type)
	}
}

func (b *planBuilder) bindFuncCall(e *parser.FuncCall, sc *scope, allowAgg bool) (Expr, error) {
	name := strings.ToLower(e.Name)
	f, err := b.sess.Function(name)
	if err != nil {
		return nil, err
	}

	if f.Kind == FunctionAggregate && !allowAgg {
		return nil, &PlanError{Construct: name, Message: "aggregate function is not allowed here"}
	}

	call := &FuncCall{Name: name, Distinct: e.Distinct}

	// COUNT(*) carries no arguments.
	if !e.Star {
		for _, arg := range e.Args {
			bound, err := b.bindExpr(arg, sc, allowAgg && f.Kind != FunctionAggregate)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, bound)
		}
		if err := checkArity(f, len(call.Args)); err != nil {
			return nil, err
		}
	} else if f.Kind != FunctionAggregate {
		return nil, &PlanError{Construct: name + "(*)", Message: "star argument requires an aggregate"}
	}

	return call, nil
}

func (b *planBuilder) bindCase(e *parser.CaseExpr, sc *scope, allowAgg bool) (Expr, error) {
	out := &CaseExpr{}

	// Rewrite the shorthand form into the searched form.
	var operand Expr
	if e.Operand != nil {
		bound, err := b.bindExpr(e.Operand, sc, allowAgg)
		if err != nil {
			return nil, err
		}
		operand = bound
	}

	for _, w := range e.Whens {
		when, err := b.bindExpr(w.Condition, sc, allowAgg)
		if err != nil {
			return nil, err
		}
		if operand != nil {
			when = &BinaryExpr{Op: OpEq, Left: operand, Right: when}
		}
		then, err := b.bindExpr(w.Result, sc, allowAgg)
		if err != nil {
			return nil, err
		}
		out.Whens = append(out.Whens, WhenClause{When: when, Then: then})
	}

	if e.Else != nil {
		els, err := b.bindExpr(e.Else, sc, allowAgg)
		if err != nil {
			return nil, err
		}
		out.Else = els
	}

	return out, nil
}

func (b *planBuilder) bindIn(e *parser.InExpr, sc *scope, allowAgg bool) (Expr, error) {
	operand, err := b.bindExpr(e.Expr, sc, allowAgg)
	if err != nil {
		return nil, err
	}
	if len(e.Values) == 0 {
		return nil, &PlanError{Construct: "IN", Message: "empty value list"}
	}

	// IN (a, b, c) desugars to an OR chain of equality tests.
	var out Expr
	for _, v := range e.Values {
		val, err := b.bindExpr(v, sc, allowAgg)
		if err != nil {
			return nil, err
		}
		eq := Expr(&BinaryExpr{Op: OpEq, Left: operand, Right: val})
		if out == nil {
			out = eq
		} else {
			out = &BinaryExpr{Op: OpOr, Left: out, Right: eq}
		}
	}

	if e.Not {
		return &UnaryExpr{Op: OpNot, Input: out}, nil
	}
	return out, nil
}

// ---------- Aggregate Collection ----------

// collectAggregates returns the distinct aggregate calls appearing in the
// expressions, in first-appearance order.
func collectAggregates(sess *Session, exprs []Expr) []*FuncCall {
	var out []*FuncCall
	seen := map[string]bool{}
	for _, e := range exprs {
		walkExpr(e, func(n Expr) {
			call, ok := n.(*FuncCall)
			if !ok {
				return
			}
			f, err := sess.Function(call.Name)
			if err != nil || f.Kind != FunctionAggregate {
				return
			}
			if key := call.String(); !seen[key] {
				seen[key] = true
				out = append(out, call)
			}
		})
	}
	return out
}

func mergeAggregates(a, b []*FuncCall) []*FuncCall {
	seen := map[string]bool{}
	for _, c := range a {
		seen[c.String()] = true
	}
	for _, c := range b {
		if !seen[c.String()] {
			seen[c.String()] = true
			a = append(a, c)
		}
	}
	return a
}

// walkExpr visits every node of an expression tree.
func walkExpr(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch e := e.(type) {
	case *BinaryExpr:
		walkExpr(e.Left, visit)
		walkExpr(e.Right, visit)
	case *UnaryExpr:
		walkExpr(e.Input, visit)
	case *FuncCall:
		for _, a := range e.Args {
			walkExpr(a, visit)
		}
	case *CastExpr:
		walkExpr(e.Input, visit)
	case *CaseExpr:
		for _, w := range e.Whens {
			walkExpr(w.When, visit)
			walkExpr(w.Then, visit)
		}
		walkExpr(e.Else, visit)
	}
}

// literalInt extracts a non-negative integer literal for LIMIT/OFFSET.
func literalInt(e parser.Expr, clause string) (int64, error) {
	lit, ok := e.(*parser.Literal)
	if !ok || lit.Type != parser.LiteralNumber {
		return 0, fmt.Errorf("%s requires an integer literal", clause)
	}
	v, err := strconv.ParseInt(lit.Value, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s requires a non-negative integer, got %q", clause, lit.Value)
	}
	return v, nil
}

package logical

import (
	"fmt"
	"strings"
)

// Plan represents a node of the logical query plan. Plans are immutable
// once built; the planner and the interchange consumer are the only
// constructors.
type Plan interface {
	planNode()
	// Schema returns the output schema of this node.
	Schema() *Schema
	// Children returns the input plans, outermost first.
	Children() []Plan
	String() string
}

// ---------- Leaf Nodes ----------

// Scan reads a named table from the catalog.
type Scan struct {
	Table  string
	schema *Schema
}

// NewScan creates a table scan with the table's schema.
func NewScan(table string, schema *Schema) *Scan {
	return &Scan{Table: table, schema: schema}
}

func (*Scan) planNode() {}

// Schema returns the scanned table's schema.
func (s *Scan) Schema() *Schema { return s.schema }

// Children returns no inputs; Scan is a leaf.
func (s *Scan) Children() []Plan { return nil }

func (s *Scan) String() string { return fmt.Sprintf("Scan: %s", s.Table) }

// Values produces literal rows without reading a table. A single empty row
// carries FROM-less queries such as SELECT 1.
type Values struct {
	Rows   [][]Expr
	schema *Schema
}

// NewValues creates a literal row source.
func NewValues(rows [][]Expr, schema *Schema) *Values {
	return &Values{Rows: rows, schema: schema}
}

func (*Values) planNode() {}

// Schema returns the value rows' schema.
func (v *Values) Schema() *Schema { return v.schema }

// Children returns no inputs; Values is a leaf.
func (v *Values) Children() []Plan { return nil }

func (v *Values) String() string { return fmt.Sprintf("Values: %d rows", len(v.Rows)) }

// ---------- Unary Nodes ----------

// Filter keeps input rows for which Predicate evaluates to true.
type Filter struct {
	Input     Plan
	Predicate Expr
}

func (*Filter) planNode() {}

// Schema returns the input schema unchanged.
func (f *Filter) Schema() *Schema { return f.Input.Schema() }

// Children returns the single input.
func (f *Filter) Children() []Plan { return []Plan{f.Input} }

func (f *Filter) String() string { return fmt.Sprintf("Filter: %s", f.Predicate) }

// Projection computes one output column per expression.
type Projection struct {
	Input  Plan
	Exprs  []Expr
	Names  []string
	schema *Schema
}

// NewProjection creates a projection. Names and Exprs run in parallel and
// determine the output schema together with the expression types.
func NewProjection(input Plan, exprs []Expr, names []string) *Projection {
	fields := make([]Field, len(exprs))
	for i, e := range exprs {
		fields[i] = Field{Name: names[i], Type: TypeOf(e, input.Schema())}
	}
	return &Projection{Input: input, Exprs: exprs, Names: names, schema: NewSchema(fields...)}
}

func (*Projection) planNode() {}

// Schema returns the projected schema.
func (p *Projection) Schema() *Schema { return p.schema }

// Children returns the single input.
func (p *Projection) Children() []Plan { return []Plan{p.Input} }

func (p *Projection) String() string {
	parts := make([]string, len(p.Exprs))
	for i, e := range p.Exprs {
		parts[i] = fmt.Sprintf("%s AS %s", e, p.Names[i])
	}
	return fmt.Sprintf("Projection: %s", strings.Join(parts, ", "))
}

// Aggregate groups rows and computes aggregate measures. The output schema
// is the grouping expressions followed by the measures.
type Aggregate struct {
	Input   Plan
	GroupBy []Expr
	Aggs    []*FuncCall
	schema  *Schema
}

// NewAggregate creates an aggregation node. Group columns are named after
// their expression (plain column names stay as-is); measures are named by
// their rendered call, for example "sum(amount)".
func NewAggregate(input Plan, groupBy []Expr, aggs []*FuncCall, types []Type) *Aggregate {
	fields := make([]Field, 0, len(groupBy)+len(aggs))
	for _, g := range groupBy {
		fields = append(fields, Field{Name: g.String(), Type: TypeOf(g, input.Schema())})
	}
	for i, a := range aggs {
		fields = append(fields, Field{Name: a.String(), Type: types[i]})
	}
	return &Aggregate{Input: input, GroupBy: groupBy, Aggs: aggs, schema: NewSchema(fields...)}
}

func (*Aggregate) planNode() {}

// Schema returns grouping columns followed by measures.
func (a *Aggregate) Schema() *Schema { return a.schema }

// Children returns the single input.
func (a *Aggregate) Children() []Plan { return []Plan{a.Input} }

func (a *Aggregate) String() string {
	groups := make([]string, len(a.GroupBy))
	for i, g := range a.GroupBy {
		groups[i] = g.String()
	}
	aggs := make([]string, len(a.Aggs))
	for i, m := range a.Aggs {
		aggs[i] = m.String()
	}
	return fmt.Sprintf("Aggregate: groupBy=[%s], aggs=[%s]",
		strings.Join(groups, ", "), strings.Join(aggs, ", "))
}

// SortKey orders by one expression.
type SortKey struct {
	Expr       Expr
	Desc       bool
	NullsFirst bool
}

// Sort orders input rows by the given keys.
type Sort struct {
	Input Plan
	Keys  []SortKey
}

func (*Sort) planNode() {}

// Schema returns the input schema unchanged.
func (s *Sort) Schema() *Schema { return s.Input.Schema() }

// Children returns the single input.
func (s *Sort) Children() []Plan { return []Plan{s.Input} }

func (s *Sort) String() string {
	keys := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		dir := "asc"
		if k.Desc {
			dir = "desc"
		}
		keys[i] = fmt.Sprintf("%s %s", k.Expr, dir)
	}
	return fmt.Sprintf("Sort: %s", strings.Join(keys, ", "))
}

// Limit passes through at most Count rows after skipping Offset rows.
// Count -1 means no row limit (OFFSET without LIMIT).
type Limit struct {
	Input  Plan
	Offset int64
	Count  int64
}

func (*Limit) planNode() {}

// Schema returns the input schema unchanged.
func (l *Limit) Schema() *Schema { return l.Input.Schema() }

// Children returns the single input.
func (l *Limit) Children() []Plan { return []Plan{l.Input} }

func (l *Limit) String() string {
	return fmt.Sprintf("Limit: offset=%d count=%d", l.Offset, l.Count)
}

// ---------- Binary Nodes ----------

// JoinKind identifies the join type.
type JoinKind int

// JoinKind constants for the supported join types.
const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
)

// String returns the SQL name of the join kind.
func (k JoinKind) String() string {
	switch k {
	case JoinInner:
		return "INNER"
	case JoinLeft:
		return "LEFT"
	case JoinRight:
		return "RIGHT"
	case JoinFull:
		return "FULL"
	case JoinCross:
		return "CROSS"
	default:
		return fmt.Sprintf("JOIN(%d)", k)
	}
}

// Join combines two inputs. The output schema is the left fields followed
// by the right fields; On is nil for cross joins.
type Join struct {
	Left   Plan
	Right  Plan
	Kind   JoinKind
	On     Expr
	schema *Schema
}

// NewJoin creates a join whose schema is the concatenation of both inputs.
func NewJoin(left, right Plan, kind JoinKind, on Expr) *Join {
	fields := append(left.Schema().Fields(), right.Schema().Fields()...)
	return &Join{Left: left, Right: right, Kind: kind, On: on, schema: NewSchema(fields...)}
}

func (*Join) planNode() {}

// Schema returns left fields followed by right fields.
func (j *Join) Schema() *Schema { return j.schema }

// Children returns left and right inputs.
func (j *Join) Children() []Plan { return []Plan{j.Left, j.Right} }

func (j *Join) String() string {
	if j.On == nil {
		return fmt.Sprintf("Join: %s", j.Kind)
	}
	return fmt.Sprintf("Join: %s on %s", j.Kind, j.On)
}

// FormatPlan renders a plan tree as indented text, one node per line.
func FormatPlan(p Plan) string {
	var b strings.Builder
	formatPlan(&b, p, 0)
	return b.String()
}

func formatPlan(b *strings.Builder, p Plan, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(p.String())
	b.WriteByte('\n')
	for _, c := range p.Children() {
		formatPlan(b, c, depth+1)
	}
}

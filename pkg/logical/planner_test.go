package logical_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/planwire/pkg/logical"
)

// ---------- Fixtures ----------

func testSession() *logical.Session {
	sess := logical.NewSession()
	sess.RegisterTable("orders", logical.NewSchema(
		logical.Field{Name: "id", Type: logical.Type{Kind: logical.TypeInt64}},
		logical.Field{Name: "amount", Type: logical.Type{Kind: logical.TypeFloat64}},
		logical.Field{Name: "region", Type: logical.Type{Kind: logical.TypeString, Nullable: true}},
	))
	sess.RegisterTable("customers", logical.NewSchema(
		logical.Field{Name: "id", Type: logical.Type{Kind: logical.TypeInt64}},
		logical.Field{Name: "name", Type: logical.Type{Kind: logical.TypeString}},
	))
	return sess
}

func mustPlan(t *testing.T, sql string) logical.Plan {
	t.Helper()
	plan, err := testSession().Plan(context.Background(), sql)
	require.NoError(t, err)
	return plan
}

// ---------- Plan Shapes ----------

func TestPlanShapes(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "simple projection",
			sql:  "SELECT id, amount FROM orders",
			want: "Projection: id AS id, amount AS amount\n" +
				"  Scan: orders\n",
		},
		{
			name: "star expansion",
			sql:  "SELECT * FROM orders",
			want: "Projection: id AS id, amount AS amount, region AS region\n" +
				"  Scan: orders\n",
		},
		{
			name: "filter with alias",
			sql:  "SELECT id AS order_id FROM orders WHERE amount > 10",
			want: "Projection: id AS order_id\n" +
				"  Filter: amount > 10\n" +
				"    Scan: orders\n",
		},
		{
			name: "without from",
			sql:  "SELECT 1",
			want: "Projection: 1 AS 1\n" +
				"  Values: 1 rows\n",
		},
		{
			name: "group by with measure",
			sql:  "SELECT region, SUM(amount) FROM orders GROUP BY region",
			want: "Projection: region AS region, sum(amount) AS sum(amount)\n" +
				"  Aggregate: groupBy=[region], aggs=[sum(amount)]\n" +
				"    Scan: orders\n",
		},
		{
			name: "having becomes filter over aggregate",
			sql:  "SELECT region FROM orders GROUP BY region HAVING SUM(amount) > 100",
			want: "Projection: region AS region\n" +
				"  Filter: sum(amount) > 100\n" +
				"    Aggregate: groupBy=[region], aggs=[sum(amount)]\n" +
				"      Scan: orders\n",
		},
		{
			name: "aggregate without group by",
			sql:  "SELECT COUNT(*) FROM orders",
			want: "Projection: count() AS count()\n" +
				"  Aggregate: groupBy=[], aggs=[count()]\n" +
				"    Scan: orders\n",
		},
		{
			name: "order by position with limit",
			sql:  "SELECT id FROM orders ORDER BY 1 DESC LIMIT 5 OFFSET 2",
			want: "Limit: offset=2 count=5\n" +
				"  Sort: id desc\n" +
				"    Projection: id AS id\n" +
				"      Scan: orders\n",
		},
		{
			name: "offset without limit",
			sql:  "SELECT id FROM orders OFFSET 3",
			want: "Limit: offset=3 count=-1\n" +
				"  Projection: id AS id\n" +
				"    Scan: orders\n",
		},
		{
			name: "inner join",
			sql:  "SELECT o.id, c.name FROM orders AS o INNER JOIN customers AS c ON o.id = c.id",
			want: "Projection: id AS id, name AS name\n" +
				"  Join: INNER on id = id\n" +
				"    Scan: orders\n" +
				"    Scan: customers\n",
		},
		{
			name: "cross join",
			sql:  "SELECT o.id FROM orders o CROSS JOIN customers c",
			want: "Projection: id AS id\n" +
				"  Join: CROSS\n" +
				"    Scan: orders\n" +
				"    Scan: customers\n",
		},
		{
			name: "derived table",
			sql:  "SELECT t.id FROM (SELECT id FROM orders) AS t",
			want: "Projection: id AS id\n" +
				"  Projection: id AS id\n" +
				"    Scan: orders\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := mustPlan(t, tt.sql)
			assert.Equal(t, tt.want, logical.FormatPlan(plan))
		})
	}
}

func TestPlanSortKeyDefaults(t *testing.T) {
	tests := []struct {
		name       string
		sql        string
		desc       bool
		nullsFirst bool
	}{
		{"ascending defaults to nulls last", "SELECT amount FROM orders ORDER BY amount", false, false},
		{"descending defaults to nulls first", "SELECT amount FROM orders ORDER BY amount DESC", true, true},
		{"explicit nulls first", "SELECT amount FROM orders ORDER BY amount NULLS FIRST", false, true},
		{"explicit nulls last", "SELECT amount FROM orders ORDER BY amount DESC NULLS LAST", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := mustPlan(t, tt.sql)
			sort, ok := plan.(*logical.Sort)
			require.True(t, ok, "expected *logical.Sort, got %T", plan)
			require.Len(t, sort.Keys, 1)
			assert.Equal(t, tt.desc, sort.Keys[0].Desc)
			assert.Equal(t, tt.nullsFirst, sort.Keys[0].NullsFirst)
		})
	}
}

func TestPlanJoinSchema(t *testing.T) {
	plan := mustPlan(t, "SELECT o.id FROM orders o LEFT JOIN customers c ON o.id = c.id")

	proj, ok := plan.(*logical.Projection)
	require.True(t, ok)
	join, ok := proj.Input.(*logical.Join)
	require.True(t, ok)

	assert.Equal(t, logical.JoinLeft, join.Kind)
	assert.Equal(t, "id int64, amount float64, region string?, id int64, name string", join.Schema().String())
}

func TestPlanAggregateSchema(t *testing.T) {
	plan := mustPlan(t, "SELECT region, SUM(amount), COUNT(*) FROM orders GROUP BY region")

	proj, ok := plan.(*logical.Projection)
	require.True(t, ok)
	agg, ok := proj.Input.(*logical.Aggregate)
	require.True(t, ok)

	assert.Equal(t, "region string?, sum(amount) float64?, count() int64", agg.Schema().String())
	assert.Equal(t, agg.Schema().String(), proj.Schema().String())
}

// ---------- Expression Binding ----------

func TestPlanExprDesugar(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"between", "amount BETWEEN 1 AND 5", "amount >= 1 AND amount <= 5"},
		{"not between", "amount NOT BETWEEN 1 AND 5", "NOT amount >= 1 AND amount <= 5"},
		{"in list", "region IN ('a', 'b')", "region = 'a' OR region = 'b'"},
		{"not in list", "region NOT IN ('a')", "NOT region = 'a'"},
		{"like", "region LIKE 'x%'", "like(region, 'x%')"},
		{"not like", "region NOT LIKE 'x%'", "NOT like(region, 'x%')"},
		{"case shorthand", "CASE region WHEN 'a' THEN 1 ELSE 0 END", "case when region = 'a' then 1 else 0 end"},
		{"searched case", "CASE WHEN amount > 1 THEN 'hi' END", "case when amount > 1 then 'hi' end"},
		{"is null", "id IS NULL", "id IS NULL"},
		{"is not null", "id IS NOT NULL", "id IS NOT NULL"},
		{"paren unwrap", "NOT (amount > 1)", "NOT amount > 1"},
		{"unary plus unwrap", "+id", "id"},
		{"negate", "-id", "- id"},
		{"concat", "region || 'x'", "region || 'x'"},
		{"cast", "CAST(id AS string)", "cast(id as string?)"},
		{"null literal", "null", "null"},
		{"function lowercased", "UPPER(region)", "upper(region)"},
	}

	sess := testSession()
	orders, err := sess.Table(context.Background(), "orders")
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := sess.PlanExpr(context.Background(), tt.sql, orders.Schema)
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr.String())
		})
	}
}

func TestPlanExprBindsIndexes(t *testing.T) {
	sess := testSession()
	orders, err := sess.Table(context.Background(), "orders")
	require.NoError(t, err)

	expr, err := sess.PlanExpr(context.Background(), "amount", orders.Schema)
	require.NoError(t, err)

	col, ok := expr.(*logical.ColumnRef)
	require.True(t, ok)
	assert.Equal(t, "amount", col.Name)
	assert.Equal(t, 1, col.Index)
}

func TestPlanExprRejectsAggregates(t *testing.T) {
	sess := testSession()
	orders, err := sess.Table(context.Background(), "orders")
	require.NoError(t, err)

	_, err = sess.PlanExpr(context.Background(), "SUM(amount)", orders.Schema)
	var planErr *logical.PlanError
	require.ErrorAs(t, err, &planErr)
	assert.Equal(t, "sum", planErr.Construct)
}

// ---------- Errors ----------

func TestPlanErrors(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "distinct",
			sql:  "SELECT DISTINCT id FROM orders",
			want: "cannot plan SELECT DISTINCT",
		},
		{
			name: "unknown table",
			sql:  "SELECT id FROM missing",
			want: `unknown table "missing"`,
		},
		{
			name: "unknown column",
			sql:  "SELECT nope FROM orders",
			want: `unknown column "nope"`,
		},
		{
			name: "unknown qualified column",
			sql:  "SELECT o.nope FROM orders o",
			want: `unknown column "o.nope"`,
		},
		{
			name: "ambiguous column",
			sql:  "SELECT id FROM orders o JOIN customers c ON o.id = c.id",
			want: `ambiguous column reference "id"`,
		},
		{
			name: "column outside group by",
			sql:  "SELECT amount FROM orders GROUP BY region",
			want: `column "amount" must appear in the GROUP BY clause or be used in an aggregate function`,
		},
		{
			name: "having without aggregates",
			sql:  "SELECT id FROM orders HAVING id > 1",
			want: "cannot plan HAVING: HAVING requires GROUP BY or aggregates",
		},
		{
			name: "order by position out of range",
			sql:  "SELECT id FROM orders ORDER BY 3",
			want: "ORDER BY position 3 is out of range",
		},
		{
			name: "limit requires literal",
			sql:  "SELECT id FROM orders LIMIT amount",
			want: "LIMIT requires an integer literal",
		},
		{
			name: "aggregate in where",
			sql:  "SELECT id FROM orders WHERE SUM(amount) > 1",
			want: "cannot plan sum: aggregate function is not allowed here",
		},
		{
			name: "star argument on scalar function",
			sql:  "SELECT UPPER(*) FROM orders",
			want: "cannot plan upper(*): star argument requires an aggregate",
		},
		{
			name: "unknown function",
			sql:  "SELECT frobnicate(id) FROM orders",
			want: `unknown function "frobnicate"`,
		},
	}

	sess := testSession()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sess.Plan(context.Background(), tt.sql)
			require.Error(t, err)
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestPlanResolutionErrorKind(t *testing.T) {
	_, err := testSession().Plan(context.Background(), "SELECT id FROM missing")

	var resErr *logical.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "table", resErr.Kind)
	assert.Equal(t, "missing", resErr.Name)
}

func TestPlanContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testSession().Plan(ctx, "SELECT id FROM orders")
	assert.True(t, errors.Is(err, context.Canceled))
}

package parser_test

import (
	"testing"

	"github.com/leapstack-labs/planwire/pkg/parser"
	"github.com/leapstack-labs/planwire/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------- SELECT Core ----------

func TestParseSelectList(t *testing.T) {
	stmt, err := parser.Parse("SELECT id, amount AS total, o.name, *, o.* FROM orders o")
	require.NoError(t, err)
	require.Len(t, stmt.Columns, 5)

	ref, ok := stmt.Columns[0].Expr.(*parser.ColumnRef)
	require.True(t, ok)
	assert.Equal(t, "id", ref.Column)
	assert.Empty(t, ref.Table)

	assert.Equal(t, "total", stmt.Columns[1].Alias)

	qualified, ok := stmt.Columns[2].Expr.(*parser.ColumnRef)
	require.True(t, ok)
	assert.Equal(t, "o", qualified.Table)
	assert.Equal(t, "name", qualified.Column)

	assert.True(t, stmt.Columns[3].Star)
	assert.Equal(t, "o", stmt.Columns[4].TableStar)
}

func TestParseImplicitAlias(t *testing.T) {
	stmt, err := parser.Parse("SELECT amount total FROM orders")
	require.NoError(t, err)
	require.Len(t, stmt.Columns, 1)
	assert.Equal(t, "total", stmt.Columns[0].Alias)
}

func TestParseDistinct(t *testing.T) {
	stmt, err := parser.Parse("SELECT DISTINCT id FROM orders")
	require.NoError(t, err)
	assert.True(t, stmt.Distinct)

	stmt, err = parser.Parse("SELECT ALL id FROM orders")
	require.NoError(t, err)
	assert.False(t, stmt.Distinct)
}

func TestParseWithoutFrom(t *testing.T) {
	stmt, err := parser.Parse("SELECT 1")
	require.NoError(t, err)
	assert.Nil(t, stmt.From)
	require.Len(t, stmt.Columns, 1)

	lit, ok := stmt.Columns[0].Expr.(*parser.Literal)
	require.True(t, ok)
	assert.Equal(t, parser.LiteralNumber, lit.Type)
	assert.Equal(t, "1", lit.Value)
}

func TestParseClauses(t *testing.T) {
	stmt, err := parser.Parse(`
		SELECT region, sum(amount)
		FROM orders
		WHERE amount > 10
		GROUP BY region
		HAVING sum(amount) > 100
		ORDER BY region DESC NULLS LAST
		LIMIT 5 OFFSET 2`)
	require.NoError(t, err)

	require.NotNil(t, stmt.Where)
	require.Len(t, stmt.GroupBy, 1)
	require.NotNil(t, stmt.Having)

	require.Len(t, stmt.OrderBy, 1)
	assert.True(t, stmt.OrderBy[0].Desc)
	require.NotNil(t, stmt.OrderBy[0].NullsFirst)
	assert.False(t, *stmt.OrderBy[0].NullsFirst)

	require.NotNil(t, stmt.Limit)
	require.NotNil(t, stmt.Offset)
}

// ---------- FROM and Joins ----------

func TestParseJoins(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		wantType parser.JoinType
		wantOn   bool
	}{
		{"bare join", "SELECT * FROM a JOIN b ON a.id = b.id", parser.JoinInner, true},
		{"inner join", "SELECT * FROM a INNER JOIN b ON a.id = b.id", parser.JoinInner, true},
		{"left join", "SELECT * FROM a LEFT JOIN b ON a.id = b.id", parser.JoinLeft, true},
		{"left outer join", "SELECT * FROM a LEFT OUTER JOIN b ON a.id = b.id", parser.JoinLeft, true},
		{"right join", "SELECT * FROM a RIGHT JOIN b ON a.id = b.id", parser.JoinRight, true},
		{"full join", "SELECT * FROM a FULL OUTER JOIN b ON a.id = b.id", parser.JoinFull, true},
		{"cross join", "SELECT * FROM a CROSS JOIN b", parser.JoinCross, false},
		{"comma join", "SELECT * FROM a, b", parser.JoinCross, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := parser.Parse(tt.sql)
			require.NoError(t, err)
			require.NotNil(t, stmt.From)
			require.Len(t, stmt.From.Joins, 1)

			join := stmt.From.Joins[0]
			assert.Equal(t, tt.wantType, join.Type)
			if tt.wantOn {
				assert.NotNil(t, join.Condition)
			} else {
				assert.Nil(t, join.Condition)
			}
		})
	}
}

func TestParseDerivedTable(t *testing.T) {
	stmt, err := parser.Parse("SELECT * FROM (SELECT id FROM orders) AS sub")
	require.NoError(t, err)

	derived, ok := stmt.From.Source.(*parser.DerivedTable)
	require.True(t, ok)
	assert.Equal(t, "sub", derived.Alias)
	require.NotNil(t, derived.Select)
}

func TestParseDerivedTableRequiresAlias(t *testing.T) {
	_, err := parser.Parse("SELECT * FROM (SELECT id FROM orders)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alias")
}

func TestParseTableAlias(t *testing.T) {
	stmt, err := parser.Parse("SELECT * FROM orders AS o")
	require.NoError(t, err)
	tbl, ok := stmt.From.Source.(*parser.TableName)
	require.True(t, ok)
	assert.Equal(t, "orders", tbl.Name)
	assert.Equal(t, "o", tbl.Alias)
}

// ---------- Expressions ----------

func TestParseExprPrecedence(t *testing.T) {
	expr, err := parser.ParseExpr("a + b * c")
	require.NoError(t, err)

	add, ok := expr.(*parser.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.PLUS, add.Op)

	mul, ok := add.Right.(*parser.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.STAR, mul.Op)
}

func TestParseExprLogical(t *testing.T) {
	expr, err := parser.ParseExpr("a = 1 OR b = 2 AND c = 3")
	require.NoError(t, err)

	// AND binds tighter than OR.
	or, ok := expr.(*parser.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.OR, or.Op)

	and, ok := or.Right.(*parser.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.AND, and.Op)
}

func TestParseExprForms(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"unary minus", "-a"},
		{"not", "NOT a = 1"},
		{"concat", "first || ' ' || last"},
		{"in list", "status IN ('a', 'b')"},
		{"not in list", "status NOT IN ('a', 'b')"},
		{"between", "amount BETWEEN 1 AND 10"},
		{"not between", "amount NOT BETWEEN 1 AND 10"},
		{"is null", "a IS NULL"},
		{"is not null", "a IS NOT NULL"},
		{"like", "name LIKE 'a%'"},
		{"not like", "name NOT LIKE 'a%'"},
		{"case searched", "CASE WHEN a > 1 THEN 'big' ELSE 'small' END"},
		{"case shorthand", "CASE status WHEN 'a' THEN 1 WHEN 'b' THEN 2 END"},
		{"cast", "CAST(amount AS int64)"},
		{"nested parens", "((a + b)) * 2"},
		{"function", "round(amount, 2)"},
		{"count star", "count(*)"},
		{"distinct agg", "count(DISTINCT region)"},
		{"string with quote", "'it''s'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.ParseExpr(tt.sql)
			require.NoError(t, err)
		})
	}
}

func TestParseFuncCall(t *testing.T) {
	expr, err := parser.ParseExpr("Sum(amount)")
	require.NoError(t, err)

	fn, ok := expr.(*parser.FuncCall)
	require.True(t, ok)
	assert.Equal(t, "SUM", fn.Name)
	require.Len(t, fn.Args, 1)
	assert.False(t, fn.Star)
}

func TestParseCountStar(t *testing.T) {
	expr, err := parser.ParseExpr("count(*)")
	require.NoError(t, err)

	fn, ok := expr.(*parser.FuncCall)
	require.True(t, ok)
	assert.True(t, fn.Star)
	assert.Empty(t, fn.Args)
}

func TestParseIsBool(t *testing.T) {
	// IS TRUE lowers to an equality against a boolean literal.
	expr, err := parser.ParseExpr("active IS TRUE")
	require.NoError(t, err)

	eq, ok := expr.(*parser.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.EQ, eq.Op)

	lit, ok := eq.Right.(*parser.Literal)
	require.True(t, ok)
	assert.Equal(t, parser.LiteralBool, lit.Type)
	assert.Equal(t, "true", lit.Value)
}

// ---------- Errors ----------

func TestParseUnsupported(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"with clause", "WITH cte AS (SELECT 1) SELECT * FROM cte", "WITH clause is not supported"},
		{"union", "SELECT 1 UNION SELECT 2", "set operation UNION is not supported"},
		{"intersect", "SELECT 1 INTERSECT SELECT 2", "set operation INTERSECT is not supported"},
		{"except", "SELECT 1 EXCEPT SELECT 2", "set operation EXCEPT is not supported"},
		{"exists", "SELECT * FROM t WHERE EXISTS (SELECT 1)", "EXISTS is not supported"},
		{"window", "SELECT sum(a) OVER () FROM t", "window function (OVER) is not supported"},
		{"scalar subquery", "SELECT (SELECT 1)", "scalar subquery is not supported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(tt.sql)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"empty", ""},
		{"not a select", "INSERT INTO t VALUES (1)"},
		{"trailing input", "SELECT 1 2foo"},
		{"unterminated string", "SELECT 'abc"},
		{"missing from table", "SELECT * FROM"},
		{"join without on", "SELECT * FROM a JOIN b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(tt.sql)
			require.Error(t, err)
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := parser.Parse("SELECT 'abc")
	require.Error(t, err)

	var lexErr *parser.LexError
	if assert.ErrorAs(t, err, &lexErr) {
		assert.Equal(t, 1, lexErr.Pos.Line)
	}
}

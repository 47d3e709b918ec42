package bridge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/planwire/pkg/bridge"
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

// ---------- Plan Round Trips ----------

func TestPlanRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"projection", "SELECT id, amount FROM orders"},
		{"filter", "SELECT id FROM orders WHERE amount > 10 AND region = 'west'"},
		{"aliases", "SELECT id AS order_id, amount * 2 AS doubled FROM orders"},
		{"without from", "SELECT 1, 'x'"},
		{"aggregate", "SELECT region, SUM(amount), COUNT(*) FROM orders GROUP BY region"},
		{"distinct aggregate", "SELECT COUNT(DISTINCT region) FROM orders"},
		{"having", "SELECT region FROM orders GROUP BY region HAVING SUM(amount) > 100"},
		{"sort and fetch", "SELECT id, amount FROM orders ORDER BY amount DESC, id LIMIT 10 OFFSET 5"},
		{"join", "SELECT o.id, c.name FROM orders o JOIN customers c ON o.id = c.id"},
		{"cross join", "SELECT o.id FROM orders o CROSS JOIN customers c"},
		{"case and cast", "SELECT CASE WHEN amount > 1 THEN 'hi' ELSE 'lo' END, CAST(id AS string) FROM orders"},
		{"functions", "SELECT UPPER(region), COALESCE(region, 'none') FROM orders WHERE region LIKE 'w%'"},
		{"null handling", "SELECT id FROM orders WHERE region IS NULL OR region IS NOT NULL"},
	}

	sess := testSession()
	ctx := context.Background()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original, err := sess.Plan(ctx, tt.sql)
			require.NoError(t, err)

			carrier, err := bridge.ToWirePlan(original, sess)
			require.NoError(t, err)

			data, err := carrier.Encode()
			require.NoError(t, err)

			s := bridge.NewSerializer(nil)
			decoded, err := s.DeserializeBytes(data)
			require.NoError(t, err)

			// Re-encoding a decoded payload reproduces it exactly.
			again, err := decoded.Encode()
			require.NoError(t, err)
			assert.Equal(t, data, again)

			restored, err := bridge.FromWirePlan(ctx, sess, decoded)
			require.NoError(t, err)
			assert.Equal(t, logical.FormatPlan(original), logical.FormatPlan(restored))
			assert.Equal(t, original.Schema().String(), restored.Schema().String())
		})
	}
}

func TestPlanRoundTripExact(t *testing.T) {
	sess := testSession()
	ctx := context.Background()

	original, err := sess.Plan(ctx, "SELECT id AS order_id FROM orders WHERE amount > 10")
	require.NoError(t, err)

	carrier, err := bridge.ToWirePlan(original, sess)
	require.NoError(t, err)

	restored, err := bridge.FromWirePlan(ctx, sess, carrier)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestToWirePlanRootNames(t *testing.T) {
	sess := testSession()

	plan, err := sess.Plan(context.Background(), "SELECT id AS order_id, amount FROM orders")
	require.NoError(t, err)

	carrier, err := bridge.ToWirePlan(plan, sess)
	require.NoError(t, err)

	msg := carrier.Message()
	require.Len(t, msg.Relations, 1)
	assert.Equal(t, []string{"order_id", "amount"}, msg.Relations[0].Root.Names)
}

func TestToWirePlanFunctionAnchors(t *testing.T) {
	sess := testSession()

	plan, err := sess.Plan(context.Background(),
		"SELECT SUM(amount) FROM orders WHERE amount > 1 AND amount < 9")
	require.NoError(t, err)

	carrier, err := bridge.ToWirePlan(plan, sess)
	require.NoError(t, err)

	msg := carrier.Message()
	seen := map[string]int{}
	for _, f := range msg.Functions {
		require.NotZero(t, f.Anchor, "anchors start at 1")
		seen[f.Name]++
	}
	// Each function is declared once no matter how often it is used.
	assert.Equal(t, map[string]int{"gt": 1, "lt": 1, "and": 1, "sum": 1}, seen)
}

// ---------- Expression Round Trips ----------

func TestExpressionRoundTrip(t *testing.T) {
	schema := logical.NewSchema(
		logical.Field{Name: "a", Type: logical.Type{Kind: logical.TypeInt64}},
		logical.Field{Name: "b", Type: logical.Type{Kind: logical.TypeInt64}},
	)
	sess := logical.NewSession()

	tests := []struct {
		name string
		sql  string
	}{
		{"arithmetic", "a + b"},
		{"comparison", "a >= b AND b != 0"},
		{"function", "abs(a - b)"},
		{"case", "CASE WHEN a > b THEN a ELSE b END"},
		{"cast", "CAST(a AS float)"},
		{"null literal", "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original, err := sess.PlanExpr(context.Background(), tt.sql, schema)
			require.NoError(t, err)

			carrier, err := bridge.ToWireExpression(original, "out", schema)
			require.NoError(t, err)

			data, err := carrier.Encode()
			require.NoError(t, err)

			s := bridge.NewSerializer(nil)
			decoded, err := s.DeserializeExpressionBytes(data)
			require.NoError(t, err)

			again, err := decoded.Encode()
			require.NoError(t, err)
			assert.Equal(t, data, again)

			restored, restoredSchema, err := bridge.FromWireExpression(decoded)
			require.NoError(t, err)
			assert.Equal(t, original, restored)
			assert.Equal(t, schema.String(), restoredSchema.String())
		})
	}
}

func TestToWireExpressionDefaultName(t *testing.T) {
	schema := logical.NewSchema(logical.Field{Name: "a", Type: logical.Type{Kind: logical.TypeInt64}})

	carrier, err := bridge.ToWireExpression(logical.NewColumnRef("a"), "", schema)
	require.NoError(t, err)
	assert.Equal(t, []string{"expression"}, carrier.Message().Referred[0].Names)
}

// ---------- Producer Errors ----------

func TestToWireExpressionUnboundField(t *testing.T) {
	schema := logical.NewSchema(logical.Field{Name: "a", Type: logical.Type{Kind: logical.TypeInt64}})

	_, err := bridge.ToWireExpression(logical.NewColumnRef("missing"), "out", schema)

	var fieldErr *bridge.FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "missing", fieldErr.Name)
}

func TestToWirePlanDistinctScalarCall(t *testing.T) {
	sess := testSession()

	plan, err := sess.Plan(context.Background(), "SELECT UPPER(DISTINCT region) FROM orders")
	require.NoError(t, err)

	_, err = bridge.ToWirePlan(plan, sess)
	var unsupported *bridge.UnsupportedError
	require.ErrorAs(t, err, &unsupported)
	assert.Contains(t, unsupported.Construct, "upper")
}

// ---------- Consumer Errors ----------

func TestFromWirePlanUnknownTable(t *testing.T) {
	sess := testSession()
	ctx := context.Background()

	plan, err := sess.Plan(ctx, "SELECT id FROM orders")
	require.NoError(t, err)
	carrier, err := bridge.ToWirePlan(plan, sess)
	require.NoError(t, err)

	_, err = bridge.FromWirePlan(ctx, logical.NewSession(), carrier)

	var resolveErr *bridge.ResolveError
	require.ErrorAs(t, err, &resolveErr)
	assert.Equal(t, "table", resolveErr.Kind)
	assert.Equal(t, "orders", resolveErr.Name)
}

func TestFromWirePlanSchemaMismatch(t *testing.T) {
	sess := testSession()
	ctx := context.Background()

	plan, err := sess.Plan(ctx, "SELECT id FROM orders")
	require.NoError(t, err)
	carrier, err := bridge.ToWirePlan(plan, sess)
	require.NoError(t, err)

	// Same table name but a different column layout.
	other := logical.NewSession()
	other.RegisterTable("orders", logical.NewSchema(
		logical.Field{Name: "id", Type: logical.Type{Kind: logical.TypeString}},
	))

	_, err = bridge.FromWirePlan(ctx, other, carrier)
	var resolveErr *bridge.ResolveError
	require.ErrorAs(t, err, &resolveErr)
	assert.Equal(t, "table", resolveErr.Kind)
}

func TestFromWirePlanUnknownFunction(t *testing.T) {
	sess := testSession()
	ctx := context.Background()

	plan, err := sess.Plan(ctx, "SELECT SUM(amount) FROM orders")
	require.NoError(t, err)
	carrier, err := bridge.ToWirePlan(plan, sess)
	require.NoError(t, err)

	carrier.Message().Functions[0].Name = "bogus"

	_, err = bridge.FromWirePlan(ctx, sess, carrier)
	var resolveErr *bridge.ResolveError
	require.ErrorAs(t, err, &resolveErr)
	assert.Equal(t, "function", resolveErr.Kind)
	assert.Equal(t, "bogus", resolveErr.Name)
}

func TestFromWireExpressionUnboundSelection(t *testing.T) {
	schema := logical.NewSchema(logical.Field{Name: "a", Type: logical.Type{Kind: logical.TypeInt64}})
	sess := logical.NewSession()

	expr, err := sess.PlanExpr(context.Background(), "a", schema)
	require.NoError(t, err)
	carrier, err := bridge.ToWireExpression(expr, "out", schema)
	require.NoError(t, err)

	// Point the selection past the envelope schema.
	carrier.Message().Referred[0].Expression.Selection.Field = 5

	_, _, err = bridge.FromWireExpression(carrier)
	var fieldErr *bridge.FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "$5", fieldErr.Name)
}

func TestFromWirePlanContextCanceled(t *testing.T) {
	sess := testSession()

	plan, err := sess.Plan(context.Background(), "SELECT id FROM orders")
	require.NoError(t, err)
	carrier, err := bridge.ToWirePlan(plan, sess)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = bridge.FromWirePlan(ctx, sess, carrier)
	assert.ErrorIs(t, err, context.Canceled)
}

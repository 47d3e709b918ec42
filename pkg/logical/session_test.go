package logical_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/planwire/pkg/logical"
)

func TestSessionTableLookup(t *testing.T) {
	sess := testSession()

	tbl, err := sess.Table(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", tbl.Name)
	assert.Equal(t, 3, tbl.Schema.Len())

	_, err = sess.Table(context.Background(), "missing")
	var resErr *logical.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "table", resErr.Kind)
}

func TestSessionTablesSorted(t *testing.T) {
	sess := logical.NewSession()
	schema := logical.NewSchema(logical.Field{Name: "x", Type: logical.Type{Kind: logical.TypeInt64}})
	sess.RegisterTable("bravo", schema)
	sess.RegisterTable("alpha", schema)
	sess.RegisterTable("charlie", schema)

	var names []string
	for _, tbl := range sess.Tables() {
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, names)
}

func TestSessionRegisterTableReplaces(t *testing.T) {
	sess := logical.NewSession()
	sess.RegisterTable("t", logical.NewSchema(
		logical.Field{Name: "a", Type: logical.Type{Kind: logical.TypeInt64}},
	))
	sess.RegisterTable("t", logical.NewSchema(
		logical.Field{Name: "a", Type: logical.Type{Kind: logical.TypeInt64}},
		logical.Field{Name: "b", Type: logical.Type{Kind: logical.TypeString}},
	))

	tbl, err := sess.Table(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Schema.Len())
}

func TestSessionFunctionLookup(t *testing.T) {
	sess := logical.NewSession()

	f, err := sess.Function("sum")
	require.NoError(t, err)
	assert.Equal(t, logical.FunctionAggregate, f.Kind)

	f, err = sess.Function("upper")
	require.NoError(t, err)
	assert.Equal(t, logical.FunctionScalar, f.Kind)

	_, err = sess.Function("nope")
	var resErr *logical.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "function", resErr.Kind)
}

func TestSessionRegisterFunction(t *testing.T) {
	sess := testSession()
	sess.RegisterFunction(&logical.Function{
		Name:    "double",
		Kind:    logical.FunctionScalar,
		MinArgs: 1,
		MaxArgs: 1,
		Result: func(args []logical.Type) logical.Type {
			return logical.Type{Kind: logical.TypeFloat64, Nullable: true}
		},
	})

	plan, err := sess.Plan(context.Background(), "SELECT double(amount) FROM orders")
	require.NoError(t, err)
	assert.Equal(t, "double(amount) float64?", plan.Schema().String())
}

func TestSessionFunctionArity(t *testing.T) {
	sess := testSession()

	_, err := sess.Plan(context.Background(), "SELECT SUM(amount, id) FROM orders")
	assert.EqualError(t, err, `function "sum" expects at most 1 arguments, got 2`)

	_, err = sess.Plan(context.Background(), "SELECT CONCAT() FROM orders")
	assert.EqualError(t, err, `function "concat" expects at least 1 arguments, got 0`)
}

func TestSessionConcurrentUse(t *testing.T) {
	sess := testSession()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, err := sess.Plan(context.Background(), "SELECT region, SUM(amount) FROM orders GROUP BY region")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}

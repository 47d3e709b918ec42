package wire_test

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/planwire/pkg/wire"
)

// ---------- Fixtures ----------

func sel(field int32) wire.Expression {
	return wire.Expression{Selection: &wire.FieldReference{Field: field}}
}

func i64Lit(v int64) wire.Expression {
	return wire.Expression{Literal: &wire.Literal{I64: &v}}
}

func samplePlan() *wire.Plan {
	return &wire.Plan{
		Version: wire.Version{
			Major:    wire.FormatMajor,
			Minor:    wire.FormatMinor,
			Patch:    wire.FormatPatch,
			Producer: "test",
		},
		Functions: []wire.FunctionDecl{{Anchor: 1, Name: "gt"}},
		Relations: []wire.PlanRel{{
			Root: &wire.RelRoot{
				Names: []string{"id"},
				Input: &wire.Rel{
					Project: &wire.ProjectRel{
						Names:       []string{"id"},
						Expressions: []wire.Expression{sel(0)},
						Input: &wire.Rel{
							Filter: &wire.FilterRel{
								Condition: &wire.Expression{
									ScalarFunction: &wire.ScalarFunction{
										FunctionRef: 1,
										Arguments:   []wire.Expression{sel(1), i64Lit(10)},
										OutputType:  wire.Type{Kind: wire.KindBool, Nullable: true},
									},
								},
								Input: &wire.Rel{
									Read: &wire.ReadRel{
										BaseSchema: wire.NamedStruct{
											Names: []string{"id", "amount"},
											Types: []wire.Type{
												{Kind: wire.KindI64},
												{Kind: wire.KindFp64},
											},
										},
										NamedTable: &wire.NamedTable{Names: []string{"orders"}},
									},
								},
							},
						},
					},
				},
			},
		}},
	}
}

func sampleExtendedExpression() *wire.ExtendedExpression {
	return &wire.ExtendedExpression{
		Version:   wire.Version{Major: wire.FormatMajor, Minor: wire.FormatMinor, Producer: "test"},
		Functions: []wire.FunctionDecl{{Anchor: 1, Name: "add"}},
		Referred: []wire.ExpressionReference{{
			Names: []string{"total"},
			Expression: wire.Expression{
				ScalarFunction: &wire.ScalarFunction{
					FunctionRef: 1,
					Arguments:   []wire.Expression{sel(0), sel(1)},
					OutputType:  wire.Type{Kind: wire.KindI64, Nullable: true},
				},
			},
		}},
		BaseSchema: wire.NamedStruct{
			Names: []string{"a", "b"},
			Types: []wire.Type{{Kind: wire.KindI64}, {Kind: wire.KindI64}},
		},
	}
}

// ---------- Plans ----------

func TestPlanRoundTrip(t *testing.T) {
	plan := samplePlan()

	data, err := wire.EncodePlan(plan)
	require.NoError(t, err)

	decoded, err := wire.DecodePlan(data)
	require.NoError(t, err)
	assert.Equal(t, plan, decoded)
}

func TestPlanEncodeDeterministic(t *testing.T) {
	plan := samplePlan()

	first, err := wire.EncodePlan(plan)
	require.NoError(t, err)
	second, err := wire.EncodePlan(plan)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	decoded, err := wire.DecodePlan(first)
	require.NoError(t, err)
	again, err := wire.EncodePlan(decoded)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestEncodePlanRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		plan *wire.Plan
		want string
	}{
		{
			name: "missing root",
			plan: &wire.Plan{Relations: []wire.PlanRel{{}}},
			want: "missing root",
		},
		{
			name: "empty relation variant",
			plan: &wire.Plan{Relations: []wire.PlanRel{{
				Root: &wire.RelRoot{Input: &wire.Rel{}},
			}}},
			want: "exactly one variant",
		},
		{
			name: "two relation variants",
			plan: &wire.Plan{Relations: []wire.PlanRel{{
				Root: &wire.RelRoot{Input: &wire.Rel{
					Read: &wire.ReadRel{NamedTable: &wire.NamedTable{Names: []string{"t"}}},
					Sort: &wire.SortRel{},
				}},
			}}},
			want: "exactly one variant",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wire.EncodePlan(tt.plan)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodePlanRejectsGarbage(t *testing.T) {
	_, err := wire.DecodePlan([]byte("definitely not cbor"))
	assert.Error(t, err)
}

func TestDecodePlanRejectsUnknownField(t *testing.T) {
	data, err := cbor.Marshal(map[int]any{99: true})
	require.NoError(t, err)

	_, err = wire.DecodePlan(data)
	assert.Error(t, err)
}

func TestDecodePlanRejectsInvalidStructure(t *testing.T) {
	// Structurally well-formed CBOR holding a relation with no variant
	// set must fail validation on decode.
	invalid := &wire.Plan{Relations: []wire.PlanRel{{
		Root: &wire.RelRoot{Input: &wire.Rel{}},
	}}}
	data, err := cbor.Marshal(invalid)
	require.NoError(t, err)

	_, err = wire.DecodePlan(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one variant")
}

// ---------- Extended Expressions ----------

func TestExtendedExpressionRoundTrip(t *testing.T) {
	x := sampleExtendedExpression()

	data, err := wire.EncodeExtendedExpression(x)
	require.NoError(t, err)

	decoded, err := wire.DecodeExtendedExpression(data)
	require.NoError(t, err)
	assert.Equal(t, x, decoded)

	again, err := wire.EncodeExtendedExpression(decoded)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestEncodeExtendedExpressionRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		expr *wire.ExtendedExpression
		want string
	}{
		{
			name: "no referred expressions",
			expr: &wire.ExtendedExpression{},
			want: "no referred expressions",
		},
		{
			name: "schema arity mismatch",
			expr: &wire.ExtendedExpression{
				Referred:   []wire.ExpressionReference{{Names: []string{"x"}, Expression: sel(0)}},
				BaseSchema: wire.NamedStruct{Names: []string{"a"}},
			},
			want: "1 names for 0 types",
		},
		{
			name: "missing output name",
			expr: &wire.ExtendedExpression{
				Referred: []wire.ExpressionReference{{Expression: sel(0)}},
			},
			want: "missing output name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wire.EncodeExtendedExpression(tt.expr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

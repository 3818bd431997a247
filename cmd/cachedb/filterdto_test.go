package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/planner"
)

func filterTestSchema() cachetypes.Schema {
	return cachetypes.Schema{
		Fields: []cachetypes.FieldDefinition{
			{Name: "id", Type: cachetypes.Int},
			{Name: "name", Type: cachetypes.String},
			{Name: "active", Type: cachetypes.Boolean},
		},
		PrimaryIndex: []int{0},
	}
}

func TestToExprSimpleComparison(t *testing.T) {
	schema := filterTestSchema()
	dto := filterDTO{Kind: "cmp", Field: "id", Op: "eq", Value: float64(7)}

	expr, err := toExpr(schema, dto)
	require.NoError(t, err)
	require.Equal(t, planner.ExprComparison, expr.Kind)
	assert.Equal(t, 0, expr.FieldPosition)
	assert.Equal(t, planner.Eq, expr.Op)
	v, ok := expr.Value.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(7), v)
}

func TestToExprAndNode(t *testing.T) {
	schema := filterTestSchema()
	dto := filterDTO{
		Kind: "and",
		Children: []filterDTO{
			{Kind: "cmp", Field: "id", Op: "gte", Value: float64(1)},
			{Kind: "cmp", Field: "active", Op: "eq", Value: true},
		},
	}

	expr, err := toExpr(schema, dto)
	require.NoError(t, err)
	require.Equal(t, planner.ExprAnd, expr.Kind)
	assert.Len(t, expr.Children, 2)
}

func TestToExprMatchesAnyOf(t *testing.T) {
	schema := filterTestSchema()
	dto := filterDTO{Kind: "cmp", Field: "name", Op: "any", Values: []interface{}{"a", "b"}}

	expr, err := toExpr(schema, dto)
	require.NoError(t, err)
	require.Equal(t, planner.ExprComparison, expr.Kind)
	assert.Equal(t, planner.MatchesAny, expr.Op)
	assert.Len(t, expr.Values, 2)
}

func TestToExprUnknownFieldFails(t *testing.T) {
	schema := filterTestSchema()
	dto := filterDTO{Kind: "cmp", Field: "nonexistent", Op: "eq", Value: float64(1)}

	_, err := toExpr(schema, dto)
	assert.Error(t, err)
}

func TestToExprUnknownOpFails(t *testing.T) {
	schema := filterTestSchema()
	dto := filterDTO{Kind: "cmp", Field: "id", Op: "bogus", Value: float64(1)}

	_, err := toExpr(schema, dto)
	assert.Error(t, err)
}

func TestToExprAndRequiresChildren(t *testing.T) {
	schema := filterTestSchema()
	_, err := toExpr(schema, filterDTO{Kind: "and"})
	assert.Error(t, err)
}

func TestToFieldTypeMismatchFails(t *testing.T) {
	_, err := toField(cachetypes.Int, "not a number")
	assert.Error(t, err)
}

func TestFieldStringRendersNull(t *testing.T) {
	assert.Equal(t, "<null>", fieldString(cachetypes.Field{}))
}

func TestFieldStringRendersValues(t *testing.T) {
	assert.Equal(t, "7", fieldString(cachetypes.NewInt(7)))
	assert.Equal(t, "true", fieldString(cachetypes.NewBool(true)))
	assert.Equal(t, "hello", fieldString(cachetypes.NewString("hello")))
}

package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
)

// Schema for tests: 0=id (int), 1=tenant (string), 2=age (int), 3=bio (text).

func sortedOn(fields ...cachetypes.SortField) cachetypes.IndexDefinition {
	return cachetypes.NewSortedInverted(fields...)
}

func TestPlanEqualityPrefixUsesIndex(t *testing.T) {
	idx := NamedIndex{ID: "by_tenant_age", Def: sortedOn(
		cachetypes.SortField{FieldPosition: 1, Direction: cachetypes.Asc},
		cachetypes.SortField{FieldPosition: 2, Direction: cachetypes.Asc},
	)}
	q := Query{Filter: ptr(Comparison(1, Eq, cachetypes.NewString("acme")))}

	plan, err := Select([]NamedIndex{idx}, q)
	require.NoError(t, err)
	assert.False(t, plan.SeqScan)
	require.Len(t, plan.Scans, 1)
	assert.Equal(t, "by_tenant_age", plan.Scans[0].IndexID)
	assert.Nil(t, plan.Residual)
}

func TestPlanEqualityPlusRangeAppendsRangeLeaf(t *testing.T) {
	idx := NamedIndex{ID: "by_tenant_age", Def: sortedOn(
		cachetypes.SortField{FieldPosition: 1, Direction: cachetypes.Asc},
		cachetypes.SortField{FieldPosition: 2, Direction: cachetypes.Asc},
	)}
	q := Query{Filter: ptr(And(
		Comparison(1, Eq, cachetypes.NewString("acme")),
		Comparison(2, Gte, cachetypes.NewInt(21)),
	))}

	plan, err := Select([]NamedIndex{idx}, q)
	require.NoError(t, err)
	require.Len(t, plan.Scans, 1)
	require.Len(t, plan.Scans[0].Filters, 2)
	assert.Equal(t, Eq, plan.Scans[0].Filters[0].Op)
	assert.Equal(t, Gte, plan.Scans[0].Filters[1].Op)
	assert.Nil(t, plan.Residual)
}

func TestPlanNoMatchingIndexFallsBackToSeqScan(t *testing.T) {
	idx := NamedIndex{ID: "by_age", Def: sortedOn(cachetypes.SortField{FieldPosition: 2, Direction: cachetypes.Asc})}
	q := Query{Filter: ptr(Comparison(1, Eq, cachetypes.NewString("acme")))}

	plan, err := Select([]NamedIndex{idx}, q)
	require.NoError(t, err)
	assert.True(t, plan.SeqScan)
	require.NotNil(t, plan.Residual)
}

func TestPlanFullTextAlwaysAddsScan(t *testing.T) {
	idx := NamedIndex{ID: "bio_text", Def: cachetypes.NewFullText(3)}
	q := Query{Filter: ptr(Comparison(3, Contains, cachetypes.NewString("engineer")))}

	plan, err := Select([]NamedIndex{idx}, q)
	require.NoError(t, err)
	require.Len(t, plan.Scans, 1)
	assert.Equal(t, "bio_text", plan.Scans[0].IndexID)
	assert.Nil(t, plan.Residual)
}

func TestPlanOrIsRejected(t *testing.T) {
	q := Query{Filter: ptr(Or(
		Comparison(1, Eq, cachetypes.NewString("a")),
		Comparison(1, Eq, cachetypes.NewString("b")),
	))}

	_, err := Select(nil, q)
	require.Error(t, err)
	assert.True(t, cacheerr.Is(err, cacheerr.PlanRejected))
}

func TestPlanPreSortedWhenOrderMatchesTrailingFields(t *testing.T) {
	idx := NamedIndex{ID: "by_tenant_age", Def: sortedOn(
		cachetypes.SortField{FieldPosition: 1, Direction: cachetypes.Asc},
		cachetypes.SortField{FieldPosition: 2, Direction: cachetypes.Asc},
	)}
	q := Query{
		Filter:  ptr(Comparison(1, Eq, cachetypes.NewString("acme"))),
		OrderBy: []OrderTerm{{FieldPosition: 2, Direction: cachetypes.Asc}},
	}

	plan, err := Select([]NamedIndex{idx}, q)
	require.NoError(t, err)
	assert.True(t, plan.PreSorted)
}

func TestPlanNotPreSortedWhenOrderDoesNotMatch(t *testing.T) {
	idx := NamedIndex{ID: "by_tenant_age", Def: sortedOn(
		cachetypes.SortField{FieldPosition: 1, Direction: cachetypes.Asc},
		cachetypes.SortField{FieldPosition: 2, Direction: cachetypes.Asc},
	)}
	q := Query{
		Filter:  ptr(Comparison(1, Eq, cachetypes.NewString("acme"))),
		OrderBy: []OrderTerm{{FieldPosition: 0, Direction: cachetypes.Asc}},
	}

	plan, err := Select([]NamedIndex{idx}, q)
	require.NoError(t, err)
	assert.False(t, plan.PreSorted)
}

func TestPlanResidualCarriesUncoveredLeaf(t *testing.T) {
	idx := NamedIndex{ID: "by_tenant", Def: sortedOn(cachetypes.SortField{FieldPosition: 1, Direction: cachetypes.Asc})}
	q := Query{Filter: ptr(And(
		Comparison(1, Eq, cachetypes.NewString("acme")),
		Comparison(2, Ne, cachetypes.NewInt(0)),
	))}

	plan, err := Select([]NamedIndex{idx}, q)
	require.NoError(t, err)
	require.Len(t, plan.Scans, 1)
	require.NotNil(t, plan.Residual)
	assert.Equal(t, Ne, plan.Residual.Op)
}

func TestPlanNoFilterMatchesEverythingViaSeqScan(t *testing.T) {
	plan, err := Select(nil, Query{})
	require.NoError(t, err)
	assert.True(t, plan.SeqScan)
	assert.Nil(t, plan.Residual)
}

func ptr(e Expr) *Expr { return &e }

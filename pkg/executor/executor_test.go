package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/codec"
	"github.com/cuemby/cachedb/pkg/indexenv"
	"github.com/cuemby/cachedb/pkg/kv"
	"github.com/cuemby/cachedb/pkg/mainenv"
	"github.com/cuemby/cachedb/pkg/planner"
)

// fields: 0=id (int, primary), 1=tenant (string), 2=age (int), 3=bio (text).
func testSchema() cachetypes.Schema {
	return cachetypes.Schema{
		Fields: []cachetypes.FieldDefinition{
			{Name: "id", Type: cachetypes.Int},
			{Name: "tenant", Type: cachetypes.String},
			{Name: "age", Type: cachetypes.Int},
			{Name: "bio", Type: cachetypes.Text},
		},
		PrimaryIndex: []int{0},
	}
}

func rec(id int64, tenant string, age int64, bio string) cachetypes.Record {
	return cachetypes.Record{Values: []cachetypes.Field{
		cachetypes.NewInt(id), cachetypes.NewString(tenant), cachetypes.NewInt(age), cachetypes.NewText(bio),
	}}
}

type fixture struct {
	ex         *Executor
	sortedDef  cachetypes.IndexDefinition
	textDef    cachetypes.IndexDefinition
	sortedName string
	textName   string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	schema := testSchema()

	main, err := mainenv.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = main.Close() })

	sortedDef := cachetypes.NewSortedInverted(
		cachetypes.SortField{FieldPosition: 1, Direction: cachetypes.Asc},
		cachetypes.SortField{FieldPosition: 2, Direction: cachetypes.Asc},
	)
	sortedEnv, err := indexenv.Open(t.TempDir(), "by_tenant_age", sortedDef)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sortedEnv.Close() })

	textDef := cachetypes.NewFullText(3)
	textEnv, err := indexenv.Open(t.TempDir(), "bio_text", textDef)
	require.NoError(t, err)
	t.Cleanup(func() { _ = textEnv.Close() })

	rows := []cachetypes.Record{
		rec(1, "acme", 25, "senior engineer"),
		rec(2, "acme", 30, "data engineer"),
		rec(3, "acme", 40, "manager"),
		rec(4, "beta", 22, "engineer intern"),
	}

	err = main.Update(func(txn kv.Txn) error {
		for i, r := range rows {
			if err := main.Apply(txn, schema, cachetypes.InsertOp(r), uint64(i)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = sortedEnv.Update(func(txn kv.Txn) error {
		for _, r := range rows {
			pk := codec.EncodePrimaryKey(schema.PrimaryKeyValues(r))
			key := codec.EncodeSortKey(sortedDef, []cachetypes.Field{r.Values[1], r.Values[2]}, pk)
			if err := sortedEnv.Insert(txn, key); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = textEnv.Update(func(txn kv.Txn) error {
		for _, r := range rows {
			pk := codec.EncodePrimaryKey(schema.PrimaryKeyValues(r))
			bio, _ := r.Values[3].AsString()
			if err := textEnv.AddTokens(txn, pk, bio); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	ex := New(main, map[string]*indexenv.Env{
		"by_tenant_age": sortedEnv,
		"bio_text":      textEnv,
	}, schema, 2)

	return fixture{ex: ex, sortedDef: sortedDef, textDef: textDef, sortedName: "by_tenant_age", textName: "bio_text"}
}

func (f fixture) indexes() []planner.NamedIndex {
	return []planner.NamedIndex{
		{ID: f.sortedName, Def: f.sortedDef},
		{ID: f.textName, Def: f.textDef},
	}
}

func tenants(rows []cachetypes.Record) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i], _ = r.Values[1].AsString()
	}
	return out
}

func ages(rows []cachetypes.Record) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i], _ = r.Values[2].AsInt()
	}
	return out
}

func TestExecuteEqualityPrefixUsesIndex(t *testing.T) {
	f := newFixture(t)
	q := planner.Query{Filter: ptr(planner.Comparison(1, planner.Eq, cachetypes.NewString("acme")))}
	plan, err := planner.Select(f.indexes(), q)
	require.NoError(t, err)
	require.False(t, plan.SeqScan)

	rows, err := f.ex.Execute(context.Background(), plan, q, time.Now())
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	for _, r := range rows {
		name, _ := r.Values[1].AsString()
		assert.Equal(t, "acme", name)
	}
}

func TestExecuteEqualityPlusRange(t *testing.T) {
	f := newFixture(t)
	q := planner.Query{Filter: ptr(planner.And(
		planner.Comparison(1, planner.Eq, cachetypes.NewString("acme")),
		planner.Comparison(2, planner.Gte, cachetypes.NewInt(30)),
	))}
	plan, err := planner.Select(f.indexes(), q)
	require.NoError(t, err)

	rows, err := f.ex.Execute(context.Background(), plan, q, time.Now())
	require.NoError(t, err)
	gotAges := ages(rows)
	assert.ElementsMatch(t, []int64{30, 40}, gotAges)
}

func TestExecuteFullTextQuery(t *testing.T) {
	f := newFixture(t)
	q := planner.Query{Filter: ptr(planner.Comparison(3, planner.Contains, cachetypes.NewString("engineer")))}
	plan, err := planner.Select(f.indexes(), q)
	require.NoError(t, err)

	rows, err := f.ex.Execute(context.Background(), plan, q, time.Now())
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestExecuteSeqScanFallbackAppliesResidual(t *testing.T) {
	f := newFixture(t)
	q := planner.Query{Filter: ptr(planner.Comparison(2, planner.Ne, cachetypes.NewInt(25)))}
	plan, err := planner.Select(f.indexes(), q)
	require.NoError(t, err)
	require.True(t, plan.SeqScan)

	rows, err := f.ex.Execute(context.Background(), plan, q, time.Now())
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	for _, r := range rows {
		age, _ := r.Values[2].AsInt()
		assert.NotEqual(t, int64(25), age)
	}
}

func TestExecutePreSortedOrderingMatchesIndex(t *testing.T) {
	f := newFixture(t)
	q := planner.Query{
		Filter:  ptr(planner.Comparison(1, planner.Eq, cachetypes.NewString("acme"))),
		OrderBy: []planner.OrderTerm{{FieldPosition: 2, Direction: cachetypes.Asc}},
	}
	plan, err := planner.Select(f.indexes(), q)
	require.NoError(t, err)
	require.True(t, plan.PreSorted)

	rows, err := f.ex.Execute(context.Background(), plan, q, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []int64{25, 30, 40}, ages(rows))
}

func TestExecuteLimitAndSkipOffset(t *testing.T) {
	f := newFixture(t)
	limit := uint64(1)
	q := planner.Query{
		Filter:  ptr(planner.Comparison(1, planner.Eq, cachetypes.NewString("acme"))),
		OrderBy: []planner.OrderTerm{{FieldPosition: 2, Direction: cachetypes.Asc}},
		Skip:    planner.Skip{Kind: planner.SkipOffset, Offset: 1},
		Limit:   &limit,
	}
	plan, err := planner.Select(f.indexes(), q)
	require.NoError(t, err)

	rows, err := f.ex.Execute(context.Background(), plan, q, time.Now())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []int64{30}, ages(rows))
}

func TestExecuteSingleSortedScanPreservesIndexOrderWithNoOrderBy(t *testing.T) {
	f := newFixture(t)
	// acme rows by age ascending should come back in that order even
	// though there is no explicit ORDER BY — PreSorted is true here
	// because checkPreSorted treats an empty OrderBy as trivially
	// satisfied by any scan order, so the executor must walk the
	// driving index in its natural order rather than collect survivors
	// from the intersection's dedup map, whose iteration order Go does
	// not guarantee.
	q := planner.Query{Filter: ptr(planner.Comparison(1, planner.Eq, cachetypes.NewString("acme")))}
	plan, err := planner.Select(f.indexes(), q)
	require.NoError(t, err)
	require.True(t, plan.PreSorted)
	require.Empty(t, q.OrderBy)

	for i := 0; i < 20; i++ {
		rows, err := f.ex.Execute(context.Background(), plan, q, time.Now())
		require.NoError(t, err)
		assert.Equal(t, []int64{25, 30, 40}, ages(rows))
	}
}

func TestCountMatchesExecuteLenWithIndexPlan(t *testing.T) {
	f := newFixture(t)
	q := planner.Query{Filter: ptr(planner.And(
		planner.Comparison(1, planner.Eq, cachetypes.NewString("acme")),
		planner.Comparison(2, planner.Gte, cachetypes.NewInt(30)),
	))}
	plan, err := planner.Select(f.indexes(), q)
	require.NoError(t, err)

	rows, err := f.ex.Execute(context.Background(), plan, q, time.Now())
	require.NoError(t, err)

	n, err := f.ex.Count(context.Background(), plan, q, time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint64(len(rows)), n)
	assert.Equal(t, uint64(2), n)
}

func TestCountMatchesExecuteLenWithSeqScan(t *testing.T) {
	f := newFixture(t)
	q := planner.Query{Filter: ptr(planner.Comparison(2, planner.Ne, cachetypes.NewInt(25)))}
	plan, err := planner.Select(f.indexes(), q)
	require.NoError(t, err)
	require.True(t, plan.SeqScan)

	n, err := f.ex.Count(context.Background(), plan, q, time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestCountIgnoresLimitAndSkip(t *testing.T) {
	f := newFixture(t)
	limit := uint64(1)
	q := planner.Query{
		Filter: ptr(planner.Comparison(1, planner.Eq, cachetypes.NewString("acme"))),
		Skip:   planner.Skip{Kind: planner.SkipOffset, Offset: 1},
		Limit:  &limit,
	}
	plan, err := planner.Select(f.indexes(), q)
	require.NoError(t, err)

	n, err := f.ex.Count(context.Background(), plan, q, time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func ptr(e planner.Expr) *planner.Expr { return &e }

// Package e2e drives a cache the same way cmd/cachedb does: through
// manager.Manager, an operation log tailed by applyloop.Loop, a pool of
// indexworker.Worker instances, and planner/executor for reads. Each
// test reproduces one of the end-to-end scenarios a complete
// implementation of this engine is expected to satisfy.
package e2e

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/cachedb/pkg/applyloop"
	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/codec"
	"github.com/cuemby/cachedb/pkg/executor"
	"github.com/cuemby/cachedb/pkg/indexworker"
	"github.com/cuemby/cachedb/pkg/kv"
	"github.com/cuemby/cachedb/pkg/logreader"
	"github.com/cuemby/cachedb/pkg/manager"
	"github.com/cuemby/cachedb/pkg/planner"
)

// harness opens a fresh cache under a temp root, wires an applyloop
// over a hand-written operation log, and starts an indexworker per
// registered index — the same assembly cmd/cachedb's serve command
// performs, minus the socket.
type harness struct {
	t            *testing.T
	version      *manager.Version
	logPath      string
	logFile      *os.File
	loop         *applyloop.Loop
	workers      map[string]*indexworker.Worker
	writtenBytes uint64
}

func newHarness(t *testing.T, schema cachetypes.Schema, indexes []codec.NamedIndexDef) *harness {
	t.Helper()
	root := t.TempDir()
	mgr := manager.New(root)
	version, err := mgr.Create("scenarios", schema, indexes)
	require.NoError(t, err)

	logPath := filepath.Join(root, "scenarios.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	workers := make(map[string]*indexworker.Worker, len(version.Indexes))
	for id, env := range version.Indexes {
		w := indexworker.NewWorker(env, schema, 64, 1, time.Hour, nil)
		w.Start()
		workers[id] = w
	}

	reader, err := logreader.Open(logPath, schema, 0)
	require.NoError(t, err)

	loop := applyloop.New("scenarios", version.Main, schema, reader, workers)
	loop.Start()

	h := &harness{t: t, version: version, logPath: logPath, logFile: f, loop: loop, workers: workers}
	t.Cleanup(h.close)
	return h
}

func (h *harness) close() {
	h.loop.Stop()
	for _, w := range h.workers {
		w.Stop()
	}
	_ = h.logFile.Close()
	_ = h.version.Close()
}

// append writes op to the tailed log and blocks until it is durably
// observable through a read: the main environment's commit_state has
// advanced past it AND every registered index's advance marker has too.
// Reader.Offset() alone is not a valid sync point — Reader.Next moves it
// before applyOne commits to the main env or submits to index workers —
// so waiting on it races with every scenario's subsequent read.
func (h *harness) append(op cachetypes.Operation) {
	h.t.Helper()
	payload := codec.EncodeOperation(op)
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))
	_, err := h.logFile.Write(lenBuf[:])
	require.NoError(h.t, err)
	_, err = h.logFile.Write(payload)
	require.NoError(h.t, err)
	require.NoError(h.t, h.logFile.Sync())

	h.writtenBytes += uint64(len(lenBuf)) + uint64(len(payload))
	target := h.writtenBytes

	deadline := time.Now().Add(2 * time.Second)
	for {
		if h.caughtUpTo(target) {
			return
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("applyloop did not catch up to offset %d", target)
		}
		time.Sleep(time.Millisecond)
	}
}

// caughtUpTo reports whether the main environment's commit_state and
// every registered index's advance marker have both reached target.
func (h *harness) caughtUpTo(target uint64) bool {
	var commitOffset uint64
	require.NoError(h.t, h.version.Main.View(func(txn kv.Txn) error {
		state, err := h.version.Main.GetCommitState(txn)
		if err != nil {
			return err
		}
		commitOffset = state.OffsetApplied
		return nil
	}))
	if commitOffset < target {
		return false
	}

	for _, env := range h.version.Indexes {
		var marker uint64
		require.NoError(h.t, env.View(func(txn kv.Txn) error {
			m, err := env.AdvanceMarker(txn)
			if err != nil {
				return err
			}
			marker = m
			return nil
		}))
		if marker < target {
			return false
		}
	}
	return true
}

func idSchema() cachetypes.Schema {
	return cachetypes.Schema{
		Fields: []cachetypes.FieldDefinition{
			{Name: "id", Type: cachetypes.Int},
			{Name: "name", Type: cachetypes.String},
		},
		PrimaryIndex: []int{0},
	}
}

func rec(id int64, name string) cachetypes.Record {
	return cachetypes.Record{Values: []cachetypes.Field{cachetypes.NewInt(id), cachetypes.NewString(name)}}
}

// TestScenarioAInsertThenGet: insert (1, "x") and read it back by
// primary key with version 1.
func TestScenarioAInsertThenGet(t *testing.T) {
	schema := idSchema()
	h := newHarness(t, schema, nil)

	h.append(cachetypes.InsertOp(rec(1, "x")))

	ex := executor.New(h.version.Main, h.version.Indexes, schema, 1024)
	plan, err := planner.Select(nil, planner.Query{})
	require.NoError(t, err)
	results, err := ex.Execute(context.Background(), plan, planner.Query{}, time.Now())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(1), results[0].Version)
	name, _ := results[0].Values[1].AsString()
	assert.Equal(t, "x", name)
}

// TestScenarioBDeleteThenReinsert: delete the scenario A record, then
// insert id=1 again with a different name; the new record reads back
// at version 3 (insert=1, delete=2, reinsert=3).
func TestScenarioBDeleteThenReinsert(t *testing.T) {
	schema := idSchema()
	h := newHarness(t, schema, nil)

	h.append(cachetypes.InsertOp(rec(1, "x")))
	h.append(cachetypes.DeleteOp(rec(1, "x")))
	h.append(cachetypes.InsertOp(rec(1, "y")))

	ex := executor.New(h.version.Main, h.version.Indexes, schema, 1024)
	plan, err := planner.Select(nil, planner.Query{})
	require.NoError(t, err)
	results, err := ex.Execute(context.Background(), plan, planner.Query{}, time.Now())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(3), results[0].Version)
	name, _ := results[0].Values[1].AsString()
	assert.Equal(t, "y", name)
}

// TestScenarioCSortedIndexRange: a SortedInverted index over b returns
// records in ascending order for a range filter, skipping the one
// below the range.
func TestScenarioCSortedIndexRange(t *testing.T) {
	schema := cachetypes.Schema{
		Fields: []cachetypes.FieldDefinition{
			{Name: "a", Type: cachetypes.Int},
			{Name: "b", Type: cachetypes.String},
		},
		PrimaryIndex: []int{0},
	}
	indexes := []codec.NamedIndexDef{
		{ID: "by_b", Def: cachetypes.NewSortedInverted(cachetypes.SortField{FieldPosition: 1, Direction: cachetypes.Asc})},
	}
	h := newHarness(t, schema, indexes)

	h.append(cachetypes.InsertOp(cachetypes.Record{Values: []cachetypes.Field{cachetypes.NewInt(1), cachetypes.NewString("a")}}))
	h.append(cachetypes.InsertOp(cachetypes.Record{Values: []cachetypes.Field{cachetypes.NewInt(2), cachetypes.NewString("b")}}))
	h.append(cachetypes.InsertOp(cachetypes.Record{Values: []cachetypes.Field{cachetypes.NewInt(3), cachetypes.NewString("c")}}))

	named := []planner.NamedIndex{{ID: "by_b", Def: indexes[0].Def}}
	query := planner.Query{
		Filter: exprPtr(planner.Comparison(1, planner.Gte, cachetypes.NewString("b"))),
	}
	plan, err := planner.Select(named, query)
	require.NoError(t, err)

	ex := executor.New(h.version.Main, h.version.Indexes, schema, 1024)
	results, err := ex.Execute(context.Background(), plan, query, time.Now())
	require.NoError(t, err)
	require.Len(t, results, 2)
	n0, _ := results[0].Values[1].AsString()
	n1, _ := results[1].Values[1].AsString()
	assert.Equal(t, "b", n0)
	assert.Equal(t, "c", n1)
}

// TestScenarioDFullTextSearch: a FullText index over a Text field
// returns both records for a token both contain, and only the matching
// one for a token only one contains.
func TestScenarioDFullTextSearch(t *testing.T) {
	schema := cachetypes.Schema{
		Fields: []cachetypes.FieldDefinition{
			{Name: "id", Type: cachetypes.Int},
			{Name: "text", Type: cachetypes.Text},
		},
		PrimaryIndex: []int{0},
	}
	indexes := []codec.NamedIndexDef{
		{ID: "by_text", Def: cachetypes.NewFullText(1)},
	}
	h := newHarness(t, schema, indexes)

	h.append(cachetypes.InsertOp(cachetypes.Record{Values: []cachetypes.Field{cachetypes.NewInt(1), cachetypes.NewText("hello world")}}))
	h.append(cachetypes.InsertOp(cachetypes.Record{Values: []cachetypes.Field{cachetypes.NewInt(2), cachetypes.NewText("hello there")}}))

	named := []planner.NamedIndex{{ID: "by_text", Def: indexes[0].Def}}
	ex := executor.New(h.version.Main, h.version.Indexes, schema, 1024)

	helloQuery := planner.Query{Filter: exprPtr(planner.Comparison(1, planner.Contains, cachetypes.NewText("hello")))}
	plan, err := planner.Select(named, helloQuery)
	require.NoError(t, err)
	results, err := ex.Execute(context.Background(), plan, helloQuery, time.Now())
	require.NoError(t, err)
	assert.Len(t, results, 2)

	worldQuery := planner.Query{Filter: exprPtr(planner.Comparison(1, planner.Contains, cachetypes.NewText("world")))}
	plan, err = planner.Select(named, worldQuery)
	require.NoError(t, err)
	results, err = ex.Execute(context.Background(), plan, worldQuery, time.Now())
	require.NoError(t, err)
	require.Len(t, results, 1)
	id, _ := results[0].Values[0].AsInt()
	assert.Equal(t, int64(1), id)
}

// TestScenarioEIdempotentUpdate: an update whose new content hashes
// identically to the old does not bump the record version or change
// the record count.
func TestScenarioEIdempotentUpdate(t *testing.T) {
	schema := idSchema()
	h := newHarness(t, schema, nil)

	h.append(cachetypes.InsertOp(rec(1, "x")))
	h.append(cachetypes.UpdateOp(rec(1, "x"), rec(1, "x")))

	ex := executor.New(h.version.Main, h.version.Indexes, schema, 1024)
	plan, err := planner.Select(nil, planner.Query{})
	require.NoError(t, err)
	results, err := ex.Execute(context.Background(), plan, planner.Query{}, time.Now())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(1), results[0].Version)
}

// TestScenarioFPlannerPicksCompositeIndex: given three candidate
// indexes, an equality filter on both of a composite index's fields
// produces a plan with exactly one IndexScan over the composite index.
func TestScenarioFPlannerPicksCompositeIndex(t *testing.T) {
	i1 := cachetypes.NewSortedInverted(cachetypes.SortField{FieldPosition: 0})
	i2 := cachetypes.NewSortedInverted(cachetypes.SortField{FieldPosition: 1})
	i3 := cachetypes.NewSortedInverted(
		cachetypes.SortField{FieldPosition: 0},
		cachetypes.SortField{FieldPosition: 1},
	)
	named := []planner.NamedIndex{
		{ID: "i1", Def: i1},
		{ID: "i2", Def: i2},
		{ID: "i3", Def: i3},
	}
	query := planner.Query{
		Filter: exprPtr(planner.And(
			planner.Comparison(0, planner.Eq, cachetypes.NewInt(1)),
			planner.Comparison(1, planner.Eq, cachetypes.NewString("t")),
		)),
	}
	plan, err := planner.Select(named, query)
	require.NoError(t, err)
	require.False(t, plan.SeqScan)
	require.Len(t, plan.Scans, 1)
	assert.Equal(t, "i3", plan.Scans[0].IndexID)
}

func exprPtr(e planner.Expr) *planner.Expr { return &e }

package indexworker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/codec"
	"github.com/cuemby/cachedb/pkg/indexenv"
	"github.com/cuemby/cachedb/pkg/kv"
)

func testSchema() cachetypes.Schema {
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

func TestWorkerBatchesByCountAndAdvancesMarker(t *testing.T) {
	def := cachetypes.NewSortedInverted(cachetypes.SortField{FieldPosition: 1, Direction: cachetypes.Asc})
	env, err := indexenv.Open(t.TempDir(), "by_name", def)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })

	w := NewWorker(env, testSchema(), 16, 2, time.Hour, nil)
	w.Start()
	t.Cleanup(w.Stop)

	require.NoError(t, w.Submit(Job{LogOffset: 1, Op: cachetypes.InsertOp(rec(1, "a"))}))
	require.NoError(t, w.Submit(Job{LogOffset: 2, Op: cachetypes.InsertOp(rec(2, "b"))}))

	require.Eventually(t, func() bool {
		var marker uint64
		_ = env.View(func(txn kv.Txn) error {
			var err error
			marker, err = env.AdvanceMarker(txn)
			return err
		})
		return marker == 2
	}, time.Second, 5*time.Millisecond)

	var names []string
	err = env.View(func(txn kv.Txn) error {
		return env.Range(txn, nil, nil, func(key []byte) error {
			values, _, err := codec.DecodeSortKey(def, key)
			if err != nil {
				return err
			}
			name, _ := values[0].AsString()
			names = append(names, name)
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestWorkerFlushesOnTimer(t *testing.T) {
	def := cachetypes.NewSortedInverted(cachetypes.SortField{FieldPosition: 1, Direction: cachetypes.Asc})
	env, err := indexenv.Open(t.TempDir(), "by_name", def)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })

	w := NewWorker(env, testSchema(), 16, 100, 10*time.Millisecond, nil)
	w.Start()
	t.Cleanup(w.Stop)

	require.NoError(t, w.Submit(Job{LogOffset: 5, Op: cachetypes.InsertOp(rec(1, "solo"))}))

	require.Eventually(t, func() bool {
		var marker uint64
		_ = env.View(func(txn kv.Txn) error {
			var err error
			marker, err = env.AdvanceMarker(txn)
			return err
		})
		return marker == 5
	}, time.Second, 5*time.Millisecond)
}

func TestWorkerStopDrainsBufferedJobs(t *testing.T) {
	def := cachetypes.NewFullText(1)
	env, err := indexenv.Open(t.TempDir(), "text", def)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })

	w := NewWorker(env, testSchema(), 16, 100, time.Hour, nil)
	w.Start()

	require.NoError(t, w.Submit(Job{LogOffset: 1, Op: cachetypes.InsertOp(rec(1, "hello world"))}))
	w.Stop()

	var pks []string
	err = env.View(func(txn kv.Txn) error {
		return env.ForEachPK(txn, "hello", func(pk []byte) error {
			pks = append(pks, string(pk))
			return nil
		})
	})
	require.NoError(t, err)
	assert.Len(t, pks, 1)
}

func TestPoolBroadcastFansOutToAllIndexes(t *testing.T) {
	pool := NewPool(2)
	defer pool.Stop()

	sortDef := cachetypes.NewSortedInverted(cachetypes.SortField{FieldPosition: 1, Direction: cachetypes.Asc})
	sortEnv, err := indexenv.Open(t.TempDir(), "by_name", sortDef)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sortEnv.Close() })

	textDef := cachetypes.NewFullText(1)
	textEnv, err := indexenv.Open(t.TempDir(), "text", textDef)
	require.NoError(t, err)
	t.Cleanup(func() { _ = textEnv.Close() })

	pool.Register(sortEnv, testSchema(), 16, 1, time.Hour)
	pool.Register(textEnv, testSchema(), 16, 1, time.Hour)

	job := Job{LogOffset: 1, Op: cachetypes.InsertOp(rec(1, "widget"))}
	require.NoError(t, pool.Broadcast(job))

	require.Eventually(t, func() bool {
		var sortMarker, textMarker uint64
		_ = sortEnv.View(func(txn kv.Txn) error {
			var err error
			sortMarker, err = sortEnv.AdvanceMarker(txn)
			return err
		})
		_ = textEnv.View(func(txn kv.Txn) error {
			var err error
			textMarker, err = textEnv.AdvanceMarker(txn)
			return err
		})
		return sortMarker == 1 && textMarker == 1
	}, time.Second, 5*time.Millisecond)
}

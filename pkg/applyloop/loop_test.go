package applyloop

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/codec"
	"github.com/cuemby/cachedb/pkg/indexenv"
	"github.com/cuemby/cachedb/pkg/indexworker"
	"github.com/cuemby/cachedb/pkg/kv"
	"github.com/cuemby/cachedb/pkg/logreader"
	"github.com/cuemby/cachedb/pkg/mainenv"
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
	return cachetypes.Record{Values: []cachetypes.Field{
		cachetypes.NewInt(id), cachetypes.NewString(name),
	}}
}

func writeLog(t *testing.T, path string, ops []cachetypes.Operation) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for _, op := range ops {
		payload := codec.EncodeOperation(op)
		var lenBuf [8]byte
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))
		_, err := f.Write(lenBuf[:])
		require.NoError(t, err)
		_, err = f.Write(payload)
		require.NoError(t, err)
	}
}

func TestLoopAppliesOperationsAndAdvancesCommitOffset(t *testing.T) {
	schema := testSchema()
	dir := t.TempDir()

	main, err := mainenv.Open(filepath.Join(dir, "main"))
	require.NoError(t, err)
	defer main.Close()

	idxDir := filepath.Join(dir, "indexes")
	require.NoError(t, os.MkdirAll(idxDir, 0o755))
	sortedDef := cachetypes.NewSortedInverted(cachetypes.SortField{FieldPosition: 0, Direction: cachetypes.Asc})
	idxEnv, err := indexenv.Open(idxDir, "by_id", sortedDef)
	require.NoError(t, err)
	defer idxEnv.Close()

	worker := indexworker.NewWorker(idxEnv, schema, 16, 1, time.Hour, nil)
	worker.Start()
	defer worker.Stop()

	logPath := filepath.Join(dir, "ops.log")
	writeLog(t, logPath, []cachetypes.Operation{
		cachetypes.InsertOp(rec(1, "alpha")),
		cachetypes.InsertOp(rec(2, "beta")),
	})

	reader, err := logreader.Open(logPath, schema, 0)
	require.NoError(t, err)
	defer reader.Close()

	loop := New("widgets", main, schema, reader, map[string]*indexworker.Worker{"by_id": worker})
	loop.Start()

	deadline := time.Now().Add(2 * time.Second)
	var state mainenv.CommitState
	for time.Now().Before(deadline) {
		require.NoError(t, main.View(func(txn kv.Txn) error {
			s, err := main.GetCommitState(txn)
			if err != nil {
				return err
			}
			state = s
			return nil
		}))
		if state.OffsetApplied > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	loop.Stop()

	assert.Greater(t, state.OffsetApplied, uint64(0))

	var count int
	require.NoError(t, main.View(func(txn kv.Txn) error {
		return main.ScanPrimaryKeys(txn, func(_ []byte, m mainenv.RecordMetadata) error {
			if m.Kind == mainenv.Present {
				count++
			}
			return nil
		})
	}))
	assert.Equal(t, 2, count)
}

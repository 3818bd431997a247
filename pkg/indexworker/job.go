package indexworker

import (
	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/codec"
	"github.com/cuemby/cachedb/pkg/indexenv"
	"github.com/cuemby/cachedb/pkg/kv"
)

// Job is one unit of index maintenance work: an operation the main
// writer committed at LogOffset, destined for one index.
type Job struct {
	LogOffset uint64
	Op        cachetypes.Operation
}

// applyJob mutates env according to op, per the index's Kind. Called
// with env's write transaction already open; the caller commits and
// advances the marker once a whole batch has been applied.
func applyJob(txn kv.Txn, env *indexenv.Env, schema cachetypes.Schema, job Job) error {
	switch job.Op.Kind {
	case cachetypes.OpInsert:
		return indexRecord(txn, env, schema, *job.Op.New)
	case cachetypes.OpDelete:
		return deindexRecord(txn, env, schema, *job.Op.Old)
	case cachetypes.OpUpdate:
		if err := deindexRecord(txn, env, schema, *job.Op.Old); err != nil {
			return err
		}
		return indexRecord(txn, env, schema, *job.Op.New)
	case cachetypes.OpBatchInsert:
		for _, rec := range job.Op.Batch {
			if err := indexRecord(txn, env, schema, rec); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

func indexRecord(txn kv.Txn, env *indexenv.Env, schema cachetypes.Schema, rec cachetypes.Record) error {
	pk := codec.EncodePrimaryKey(schema.PrimaryKeyValues(rec))
	switch env.Def.Kind {
	case cachetypes.SortedInverted:
		key := codec.EncodeSortKey(env.Def, sortValues(env.Def, rec), pk)
		return env.Insert(txn, key)
	case cachetypes.FullText:
		text, _ := rec.Values[env.Def.TextField].AsString()
		return env.AddTokens(txn, pk, text)
	default:
		return nil
	}
}

func deindexRecord(txn kv.Txn, env *indexenv.Env, schema cachetypes.Schema, rec cachetypes.Record) error {
	pk := codec.EncodePrimaryKey(schema.PrimaryKeyValues(rec))
	switch env.Def.Kind {
	case cachetypes.SortedInverted:
		key := codec.EncodeSortKey(env.Def, sortValues(env.Def, rec), pk)
		return env.Delete(txn, key)
	case cachetypes.FullText:
		text, _ := rec.Values[env.Def.TextField].AsString()
		return env.RemoveTokens(txn, pk, text)
	default:
		return nil
	}
}

func sortValues(def cachetypes.IndexDefinition, rec cachetypes.Record) []cachetypes.Field {
	values := make([]cachetypes.Field, len(def.SortFields))
	for i, sf := range def.SortFields {
		values[i] = rec.Values[sf.FieldPosition]
	}
	return values
}

package mainenv

import (
	"bytes"

	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/codec"
	"github.com/cuemby/cachedb/pkg/kv"
)

// Get loads the current record for an encoded primary key, following
// PrimaryKeyMetadata to the operation log entry it points at. ok is
// false if the key has never been observed or is currently a tombstone
// (callers distinguish "never seen" from "deleted" via
// GetRecordMetadata if they need that detail).
func (e *Env) Get(txn kv.Txn, schema cachetypes.Schema, pk []byte) (cachetypes.Record, bool, error) {
	meta, found, err := e.GetRecordMetadata(txn, pk)
	if err != nil {
		return cachetypes.Record{}, false, err
	}
	if !found || meta.Kind != Present {
		return cachetypes.Record{}, false, nil
	}
	payload, ok, err := e.GetLogEntry(txn, meta.Offset)
	if err != nil {
		return cachetypes.Record{}, false, err
	}
	if !ok {
		return cachetypes.Record{}, false, cacheerr.Wrap(cacheerr.NotFound, "mainenv.Get", "log offset %d missing for pk", meta.Offset)
	}
	op, err := codec.DecodeOperation(payload, len(schema.Fields))
	if err != nil {
		return cachetypes.Record{}, false, err
	}
	rec, err := recordFromOperation(op, schema, pk)
	if err != nil {
		return cachetypes.Record{}, false, err
	}
	// The log entry was encoded before Apply assigned a version, so the
	// current version comes from the record's metadata.
	rec.Version = meta.Version
	return rec, true, nil
}

// recordFromOperation extracts the record matching pk from the
// operation log entry a RecordMetadata.Offset points at. A BatchInsert
// entry holds several records under one shared offset, so its members
// are searched by re-deriving each one's primary key.
func recordFromOperation(op cachetypes.Operation, schema cachetypes.Schema, pk []byte) (cachetypes.Record, error) {
	switch op.Kind {
	case cachetypes.OpInsert:
		return *op.New, nil
	case cachetypes.OpUpdate:
		return *op.New, nil
	case cachetypes.OpBatchInsert:
		for _, rec := range op.Batch {
			if bytes.Equal(codec.EncodePrimaryKey(schema.PrimaryKeyValues(rec)), pk) {
				return rec, nil
			}
		}
		return cachetypes.Record{}, cacheerr.Wrap(cacheerr.NotFound, "mainenv.recordFromOperation", "primary key not found in batch at log offset")
	default:
		return cachetypes.Record{}, cacheerr.Wrap(cacheerr.Codec, "mainenv.recordFromOperation", "offset does not point at a live record")
	}
}

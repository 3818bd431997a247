package mainenv

import (
	"encoding/binary"

	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/codec"
	"github.com/cuemby/cachedb/pkg/kv"
)

func hashKey(h uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], h)
	return b[:]
}

func hashValue(version uint32, pk []byte) []byte {
	v := make([]byte, 4+len(pk))
	binary.BigEndian.PutUint32(v[:4], version)
	copy(v[4:], pk)
	return v
}

// Apply executes the insert/delete/update decision table for a single
// Operation at log_offset, under the write transaction txn. The operation is always
// appended to the log, even when its effect on PrimaryKeyMetadata is a
// no-op, so the log remains a complete record of everything the writer
// processed.
func (e *Env) Apply(txn kv.Txn, schema cachetypes.Schema, op cachetypes.Operation, offset uint64) error {
	if err := e.putLogEntry(txn, offset, codec.EncodeOperation(op)); err != nil {
		return err
	}
	switch op.Kind {
	case cachetypes.OpInsert:
		_, err := e.applyInsert(txn, schema, *op.New, offset)
		return err
	case cachetypes.OpDelete:
		return e.applyDelete(txn, schema, *op.Old, offset)
	case cachetypes.OpUpdate:
		return e.applyUpdate(txn, schema, *op.Old, *op.New, offset)
	case cachetypes.OpBatchInsert:
		for _, rec := range op.Batch {
			if _, err := e.applyInsert(txn, schema, rec, offset); err != nil {
				return err
			}
		}
		return nil
	default:
		return cacheerr.Wrap(cacheerr.Schema, "mainenv.Apply", "unknown operation kind %v", op.Kind)
	}
}

// applyInsert handles the Insert row of the decision table and also
// backs the "treat as Insert" branches of Update|none and
// Update|Deleted. It returns the version assigned (0 if the insert was
// a deduped no-op).
func (e *Env) applyInsert(txn kv.Txn, schema cachetypes.Schema, rec cachetypes.Record, offset uint64) (uint32, error) {
	pk := codec.EncodePrimaryKey(schema.PrimaryKeyValues(rec))
	cur, found, err := e.GetRecordMetadata(txn, pk)
	if err != nil {
		return 0, err
	}
	hash := codec.ContentHash(rec)

	switch {
	case !found:
		rec.Version = 1
	case cur.Kind == Deleted:
		rec.Version = cur.Version + 1
	default: // Present
		if hash == cur.ContentHash {
			return 0, nil
		}
		return 0, cacheerr.Wrap(cacheerr.Schema, "mainenv.applyInsert", "primary key already present with different content")
	}

	if err := e.writePresent(txn, pk, rec, offset, hash); err != nil {
		return 0, err
	}
	return rec.Version, nil
}

// applyDelete handles the Delete row of the decision table.
func (e *Env) applyDelete(txn kv.Txn, schema cachetypes.Schema, rec cachetypes.Record, offset uint64) error {
	pk := codec.EncodePrimaryKey(schema.PrimaryKeyValues(rec))
	cur, found, err := e.GetRecordMetadata(txn, pk)
	if err != nil {
		return err
	}
	if !found || cur.Kind == Deleted {
		return nil
	}
	return e.putRecordMetadata(txn, pk, RecordMetadata{
		Kind:    Deleted,
		Version: cur.Version + 1,
		Offset:  offset,
	})
}

// applyUpdate handles the Update row of the decision table.
func (e *Env) applyUpdate(txn kv.Txn, schema cachetypes.Schema, old, newRec cachetypes.Record, offset uint64) error {
	pk := codec.EncodePrimaryKey(schema.PrimaryKeyValues(old))
	cur, found, err := e.GetRecordMetadata(txn, pk)
	if err != nil {
		return err
	}
	if !found || cur.Kind == Deleted {
		_, err := e.applyInsert(txn, schema, newRec, offset)
		return err
	}

	hash := codec.ContentHash(newRec)
	if hash == cur.ContentHash {
		return nil
	}
	newRec.Version = cur.Version + 1
	return e.writePresent(txn, pk, newRec, offset, hash)
}

func (e *Env) writePresent(txn kv.Txn, pk []byte, rec cachetypes.Record, offset uint64, hash uint64) error {
	m := RecordMetadata{Kind: Present, Version: rec.Version, Offset: offset, ContentHash: hash}
	if err := e.putRecordMetadata(txn, pk, m); err != nil {
		return err
	}
	return e.hashIdx.Put(txn, hashKey(hash), hashValue(rec.Version, pk))
}

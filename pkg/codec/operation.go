package codec

import (
	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
)

// EncodeOperation serializes op as a one-byte OpKind discriminator
// followed by its EncodeRecord payload (one record for Insert/Delete,
// old-then-new for Update, a u32 count then that many records for
// BatchInsert). This is the payload the operation log stores at each
// log_offset.
func EncodeOperation(op cachetypes.Operation) []byte {
	dst := []byte{byte(op.Kind)}
	switch op.Kind {
	case cachetypes.OpInsert:
		return append(dst, EncodeRecord(*op.New)...)
	case cachetypes.OpDelete:
		return append(dst, EncodeRecord(*op.Old)...)
	case cachetypes.OpUpdate:
		dst = append(dst, EncodeRecord(*op.Old)...)
		return append(dst, EncodeRecord(*op.New)...)
	case cachetypes.OpBatchInsert:
		dst = appendUint32(dst, uint32(len(op.Batch)))
		for _, r := range op.Batch {
			dst = append(dst, EncodeRecord(r)...)
		}
		return dst
	default:
		panic("codec: unknown operation kind")
	}
}

// DecodeOperation reverses EncodeOperation. n is the schema's field
// count, needed by the underlying record decoder.
func DecodeOperation(src []byte, n int) (cachetypes.Operation, error) {
	if len(src) < 1 {
		return cachetypes.Operation{}, cacheerr.Wrap(cacheerr.Codec, "codec.DecodeOperation", "empty input")
	}
	kind := cachetypes.OpKind(src[0])
	rest := src[1:]

	switch kind {
	case cachetypes.OpInsert:
		rec, _, err := DecodeRecord(rest, n)
		if err != nil {
			return cachetypes.Operation{}, err
		}
		return cachetypes.InsertOp(rec), nil
	case cachetypes.OpDelete:
		rec, _, err := DecodeRecord(rest, n)
		if err != nil {
			return cachetypes.Operation{}, err
		}
		return cachetypes.DeleteOp(rec), nil
	case cachetypes.OpUpdate:
		old, tail, err := DecodeRecord(rest, n)
		if err != nil {
			return cachetypes.Operation{}, err
		}
		newRec, _, err := DecodeRecord(tail, n)
		if err != nil {
			return cachetypes.Operation{}, err
		}
		return cachetypes.UpdateOp(old, newRec), nil
	case cachetypes.OpBatchInsert:
		if len(rest) < 4 {
			return cachetypes.Operation{}, cacheerr.Wrap(cacheerr.Codec, "codec.DecodeOperation", "short batch count")
		}
		count := takeUint32(rest[:4])
		rest = rest[4:]
		batch := make([]cachetypes.Record, 0, count)
		for i := uint32(0); i < count; i++ {
			var rec cachetypes.Record
			var err error
			rec, rest, err = DecodeRecord(rest, n)
			if err != nil {
				return cachetypes.Operation{}, cacheerr.Wrap(cacheerr.Codec, "codec.DecodeOperation", "batch item %d: %v", i, err)
			}
			batch = append(batch, rec)
		}
		return cachetypes.BatchInsertOp(batch), nil
	default:
		return cachetypes.Operation{}, cacheerr.Wrap(cacheerr.Codec, "codec.DecodeOperation", "unknown op kind %d", kind)
	}
}

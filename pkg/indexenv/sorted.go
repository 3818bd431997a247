package indexenv

import (
	"bytes"

	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/codec"
	"github.com/cuemby/cachedb/pkg/kv"
)

// Insert adds one SortedInverted entry: key is the composite encoding
// from codec.EncodeSortKey (sort field values, Desc fields
// bit-complemented, then the primary key). The value is always empty;
// existence of the key is the fact being recorded.
func (e *Env) Insert(txn kv.Txn, key []byte) error {
	if e.Def.Kind != cachetypes.SortedInverted {
		return cacheerr.Wrap(cacheerr.Schema, "indexenv.Insert", "index %s is not SortedInverted", e.IndexID)
	}
	return e.entries.Put(txn, key, []byte{})
}

// Delete removes the exact SortedInverted entry.
func (e *Env) Delete(txn kv.Txn, key []byte) error {
	if e.Def.Kind != cachetypes.SortedInverted {
		return cacheerr.Wrap(cacheerr.Schema, "indexenv.Delete", "index %s is not SortedInverted", e.IndexID)
	}
	return e.entries.Delete(txn, key)
}

// Range walks entries between lower and upper (both inclusive of a
// matching key, nil meaning unbounded on that side) in ascending byte
// order, invoking fn with each full composite key. Since Desc sort
// fields are pre-complemented at encode time, ascending byte order here
// always matches the index's requested logical order. Callers recover
// the record's primary key from the tail of a match via
// codec.DecodeSortKey.
func (e *Env) Range(txn kv.Txn, lower, upper []byte, fn func(key []byte) error) error {
	if e.Def.Kind != cachetypes.SortedInverted {
		return cacheerr.Wrap(cacheerr.Schema, "indexenv.Range", "index %s is not SortedInverted", e.IndexID)
	}
	cur, err := e.entries.Cursor(txn)
	if err != nil {
		return err
	}
	var k []byte
	if lower == nil {
		k, _ = cur.First()
	} else {
		k, _ = cur.Seek(lower)
	}
	for ; k != nil; k, _ = cur.Next() {
		if upper != nil && bytes.Compare(k, upper) > 0 {
			break
		}
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}

// EntriesCursor returns a raw pull-based cursor over this index's
// entries bucket, for callers (the executor's chunked scan streams)
// that need to advance a bounded number of keys at a time rather than
// receive the whole range via Range's callback in one call.
func (e *Env) EntriesCursor(txn kv.Txn) (*kv.Cursor, error) {
	if e.Def.Kind != cachetypes.SortedInverted {
		return nil, cacheerr.Wrap(cacheerr.Schema, "indexenv.EntriesCursor", "index %s is not SortedInverted", e.IndexID)
	}
	return e.entries.Cursor(txn)
}

// PrimaryKey recovers the primary key suffix of a SortedInverted entry
// key produced by codec.EncodeSortKey.
func (e *Env) PrimaryKey(key []byte) ([]byte, error) {
	_, pk, err := codec.DecodeSortKey(e.Def, key)
	if err != nil {
		return nil, err
	}
	return pk, nil
}

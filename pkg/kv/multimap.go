package kv

import (
	"bytes"
	"encoding/binary"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/cachedb/pkg/cacheerr"
)

// MultiMap is a sorted set of values per key, used where the original
// engine relied on LMDB's MDB_DUPSORT duplicate-key buckets: the
// FullText index (token -> primary key) and the main environment's
// content-hash index (hash -> version and primary key). bbolt has no native duplicate-key support, so
// each (key, value) pair is stored as its own bucket entry under a
// composite key that makes every entry for a given key sort together
// and lets the suffix be recovered unambiguously regardless of key
// contents: a 4-byte big-endian length of key, then key, then value.
type MultiMap struct {
	name []byte
}

func NewMultiMap(name string) MultiMap { return MultiMap{name: []byte(name)} }

func (m MultiMap) bucket(txn Txn) (*bolt.Bucket, error) {
	b := txn.tx.Bucket(m.name)
	if b == nil {
		return nil, cacheerr.Wrap(cacheerr.Storage, "kv.MultiMap", "bucket %q not initialized", m.name)
	}
	return b, nil
}

func compositeKey(key, value []byte) []byte {
	out := make([]byte, 4+len(key)+len(value))
	binary.BigEndian.PutUint32(out[:4], uint32(len(key)))
	copy(out[4:], key)
	copy(out[4+len(key):], value)
	return out
}

func keyPrefix(key []byte) []byte {
	out := make([]byte, 4+len(key))
	binary.BigEndian.PutUint32(out[:4], uint32(len(key)))
	copy(out[4:], key)
	return out
}

// Put inserts (key, value); inserting the same pair twice is a no-op.
func (m MultiMap) Put(txn Txn, key, value []byte) error {
	b, err := m.bucket(txn)
	if err != nil {
		return err
	}
	if err := b.Put(compositeKey(key, value), []byte{}); err != nil {
		return cacheerr.Wrap(cacheerr.Storage, "kv.MultiMap.Put", "%v", err)
	}
	return nil
}

// Delete removes exactly (key, value); absent pairs are a no-op.
func (m MultiMap) Delete(txn Txn, key, value []byte) error {
	b, err := m.bucket(txn)
	if err != nil {
		return err
	}
	if err := b.Delete(compositeKey(key, value)); err != nil {
		return cacheerr.Wrap(cacheerr.Storage, "kv.MultiMap.Delete", "%v", err)
	}
	return nil
}

// Contains reports whether (key, value) is present.
func (m MultiMap) Contains(txn Txn, key, value []byte) (bool, error) {
	b, err := m.bucket(txn)
	if err != nil {
		return false, err
	}
	return b.Get(compositeKey(key, value)) != nil, nil
}

// ForEach visits every value stored under key, in sorted value order,
// stopping early if fn returns an error.
func (m MultiMap) ForEach(txn Txn, key []byte, fn func(value []byte) error) error {
	b, err := m.bucket(txn)
	if err != nil {
		return err
	}
	prefix := keyPrefix(key)
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		if err := fn(k[len(prefix):]); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of values stored under key.
func (m MultiMap) Count(txn Txn, key []byte) (int, error) {
	n := 0
	err := m.ForEach(txn, key, func([]byte) error { n++; return nil })
	return n, err
}

// Cursor returns a pull-based iterator over the values stored under
// key, in sorted order, for callers that need to advance a bounded
// number of items at a time rather than visiting the whole set in one
// ForEach call (the executor's chunked intersection rounds).
func (m MultiMap) Cursor(txn Txn, key []byte) (*MultiMapCursor, error) {
	b, err := m.bucket(txn)
	if err != nil {
		return nil, err
	}
	return &MultiMapCursor{c: b.Cursor(), prefix: keyPrefix(key)}, nil
}

// MultiMapCursor walks the values under one MultiMap key.
type MultiMapCursor struct {
	c      *bolt.Cursor
	prefix []byte
}

func (mc *MultiMapCursor) First() (value []byte, ok bool) {
	k, _ := mc.c.Seek(mc.prefix)
	return mc.match(k)
}

func (mc *MultiMapCursor) Next() (value []byte, ok bool) {
	k, _ := mc.c.Next()
	return mc.match(k)
}

func (mc *MultiMapCursor) match(k []byte) ([]byte, bool) {
	if k == nil || !bytes.HasPrefix(k, mc.prefix) {
		return nil, false
	}
	v := k[len(mc.prefix):]
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true
}

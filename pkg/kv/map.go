package kv

import (
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/cachedb/pkg/cacheerr"
)

// Map is a single-value-per-key bucket: Put overwrites, Get returns the
// current value. It mirrors the LMDB "Database" the original cache
// engine keyed records, primary-key metadata, and schema blobs by.
type Map struct {
	name []byte
}

func NewMap(name string) Map { return Map{name: []byte(name)} }

func (m Map) bucket(txn Txn) (*bolt.Bucket, error) {
	b := txn.tx.Bucket(m.name)
	if b == nil {
		return nil, cacheerr.Wrap(cacheerr.Storage, "kv.Map", "bucket %q not initialized", m.name)
	}
	return b, nil
}

// Get returns a copy of the stored value, or ok=false if key is absent.
// The copy is required: bbolt's returned slice is only valid for the
// life of the transaction.
func (m Map) Get(txn Txn, key []byte) ([]byte, bool, error) {
	b, err := m.bucket(txn)
	if err != nil {
		return nil, false, err
	}
	v := b.Get(key)
	if v == nil {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (m Map) Put(txn Txn, key, value []byte) error {
	b, err := m.bucket(txn)
	if err != nil {
		return err
	}
	if err := b.Put(key, value); err != nil {
		return cacheerr.Wrap(cacheerr.Storage, "kv.Map.Put", "%v", err)
	}
	return nil
}

func (m Map) Delete(txn Txn, key []byte) error {
	b, err := m.bucket(txn)
	if err != nil {
		return err
	}
	if err := b.Delete(key); err != nil {
		return cacheerr.Wrap(cacheerr.Storage, "kv.Map.Delete", "%v", err)
	}
	return nil
}

// ForEach visits every (key, value) pair in key order. The slices passed
// to fn are only valid for the duration of the call.
func (m Map) ForEach(txn Txn, fn func(key, value []byte) error) error {
	b, err := m.bucket(txn)
	if err != nil {
		return err
	}
	return b.ForEach(fn)
}

// Cursor returns a cursor over this bucket, positioned before the first
// entry.
func (m Map) Cursor(txn Txn) (*Cursor, error) {
	b, err := m.bucket(txn)
	if err != nil {
		return nil, err
	}
	return &Cursor{c: b.Cursor()}, nil
}

// Cursor walks a Map or MultiMap bucket in key order.
type Cursor struct {
	c *bolt.Cursor
}

func (c *Cursor) First() (key, value []byte) { return c.c.First() }
func (c *Cursor) Last() (key, value []byte)  { return c.c.Last() }
func (c *Cursor) Next() (key, value []byte)  { return c.c.Next() }
func (c *Cursor) Prev() (key, value []byte)  { return c.c.Prev() }
func (c *Cursor) Seek(key []byte) (k, v []byte) { return c.c.Seek(key) }

package kv

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/cachedb/pkg/cacheerr"
)

// Env is a single bbolt database file. One Env backs one environment
// directory (the main environment, or one secondary index environment).
type Env struct {
	db   *bolt.DB
	path string
}

// Open opens (creating if absent) the bbolt file at path and ensures
// every named top-level bucket exists.
func Open(path string, buckets ...[]byte) (*Env, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, cacheerr.Wrap(cacheerr.Storage, "kv.Open", "%s: %v", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, cacheerr.Wrap(cacheerr.Storage, "kv.Open", "%s: %v", path, err)
	}
	return &Env{db: db, path: path}, nil
}

func (e *Env) Path() string { return e.path }

func (e *Env) Close() error {
	if err := e.db.Close(); err != nil {
		return cacheerr.Wrap(cacheerr.Storage, "kv.Env.Close", "%s: %v", e.path, err)
	}
	return nil
}

// Txn is a bbolt transaction, read-only or read-write depending on how
// it was opened.
type Txn struct {
	tx *bolt.Tx
}

// Update runs fn inside a single read-write transaction, committing on a
// nil return and rolling back otherwise.
func (e *Env) Update(fn func(Txn) error) error {
	err := e.db.Update(func(tx *bolt.Tx) error {
		return fn(Txn{tx: tx})
	})
	if err != nil {
		if ce, ok := err.(*cacheerr.Error); ok {
			return ce
		}
		return cacheerr.Wrap(cacheerr.Storage, "kv.Env.Update", "%v", err)
	}
	return nil
}

// View runs fn inside a read-only transaction.
func (e *Env) View(fn func(Txn) error) error {
	err := e.db.View(func(tx *bolt.Tx) error {
		return fn(Txn{tx: tx})
	})
	if err != nil {
		if ce, ok := err.(*cacheerr.Error); ok {
			return ce
		}
		return cacheerr.Wrap(cacheerr.Storage, "kv.Env.View", "%v", err)
	}
	return nil
}

// Sync forces the database file to disk.
func (e *Env) Sync() error {
	return e.db.Sync()
}

package mainenv

import (
	"encoding/binary"
	"path/filepath"

	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/kv"
)

const (
	bucketOperationLog       = "operation_log"
	bucketPrimaryKeyMetadata = "primary_key_metadata"
	bucketHashMetadata       = "hash_metadata"
	bucketCommitState        = "commit_state"
)

const commitStateKey = "commit_state"

// Env is the main environment: one bbolt file holding the four
// sub-databases (OperationLog, PrimaryKeyMetadata,
// HashMetadata, CommitState).
type Env struct {
	kv *kv.Env

	log     kv.Map
	pkMeta  kv.Map
	hashIdx kv.MultiMap
	commit  kv.Option
}

// Open opens (creating if absent) the main environment file at
// <dir>/main.db.
func Open(dir string) (*Env, error) {
	path := filepath.Join(dir, "main.db")
	env, err := kv.Open(path,
		[]byte(bucketOperationLog),
		[]byte(bucketPrimaryKeyMetadata),
		[]byte(bucketHashMetadata),
		[]byte(bucketCommitState),
	)
	if err != nil {
		return nil, err
	}
	return &Env{
		kv:      env,
		log:     kv.NewMap(bucketOperationLog),
		pkMeta:  kv.NewMap(bucketPrimaryKeyMetadata),
		hashIdx: kv.NewMultiMap(bucketHashMetadata),
		commit:  kv.NewOption(bucketCommitState, commitStateKey),
	}, nil
}

func (e *Env) Close() error { return e.kv.Close() }

// Update runs fn inside one read-write transaction over the whole main
// environment: the operation-log append, the metadata write, and the
// commit-state advance for one log segment all happen atomically, per
// invariant 5.
func (e *Env) Update(fn func(kv.Txn) error) error { return e.kv.Update(fn) }

// View runs fn inside one read-only, snapshot-isolated transaction.
func (e *Env) View(fn func(kv.Txn) error) error { return e.kv.View(fn) }

func offsetKey(offset uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], offset)
	return b[:]
}

// GetCommitState returns the durable commit cursor, or the zero value
// if the environment has never committed a segment.
func (e *Env) GetCommitState(txn kv.Txn) (CommitState, error) {
	b, ok, err := e.commit.Get(txn)
	if err != nil {
		return CommitState{}, err
	}
	if !ok {
		return CommitState{Sources: cachetypes.SourceStates{}}, nil
	}
	return decodeCommitState(b)
}

// PutCommitState overwrites the durable commit cursor.
func (e *Env) PutCommitState(txn kv.Txn, s CommitState) error {
	return e.commit.Set(txn, encodeCommitState(s))
}

// GetRecordMetadata returns the current metadata for an encoded primary
// key, or ok=false if the key has never been observed.
func (e *Env) GetRecordMetadata(txn kv.Txn, pk []byte) (RecordMetadata, bool, error) {
	b, ok, err := e.pkMeta.Get(txn, pk)
	if err != nil || !ok {
		return RecordMetadata{}, false, err
	}
	m, err := decodeRecordMetadata(b)
	return m, err == nil, err
}

func (e *Env) putRecordMetadata(txn kv.Txn, pk []byte, m RecordMetadata) error {
	return e.pkMeta.Put(txn, pk, m.Encode())
}

// GetLogEntry returns the raw operation bytes stored at offset.
func (e *Env) GetLogEntry(txn kv.Txn, offset uint64) ([]byte, bool, error) {
	return e.log.Get(txn, offsetKey(offset))
}

func (e *Env) putLogEntry(txn kv.Txn, offset uint64, payload []byte) error {
	return e.log.Put(txn, offsetKey(offset), payload)
}

// ScanPrimaryKeys walks PrimaryKeyMetadata in key order, used by the
// planner's SeqScan fallback when no index covers any predicate.
func (e *Env) ScanPrimaryKeys(txn kv.Txn, fn func(pk []byte, m RecordMetadata) error) error {
	return e.pkMeta.ForEach(txn, func(k, v []byte) error {
		m, err := decodeRecordMetadata(v)
		if err != nil {
			return cacheerr.Wrap(cacheerr.Codec, "mainenv.ScanPrimaryKeys", "%v", err)
		}
		return fn(k, m)
	})
}

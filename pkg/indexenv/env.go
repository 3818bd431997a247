package indexenv

import (
	"encoding/binary"
	"path/filepath"

	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/kv"
)

const (
	entriesBucket = "entries"
	markerBucket  = "advance_marker"
	markerKey     = "offset"
)

// Env is one secondary index's on-disk environment: a bucket of entries
// shaped according to Def.Kind, plus an advance_marker counter recording
// the highest log_offset the indexworker has applied.
type Env struct {
	Def    cachetypes.IndexDefinition
	IndexID string

	kv      *kv.Env
	entries kv.Map      // SortedInverted: sort key -> empty
	tokens  kv.MultiMap // FullText: token -> pk
	marker  kv.Option
}

// Open opens (creating if absent) the index environment file at
// <dir>/<indexID>.db.
func Open(dir, indexID string, def cachetypes.IndexDefinition) (*Env, error) {
	path := filepath.Join(dir, indexID+".db")
	env, err := kv.Open(path, []byte(entriesBucket), []byte(markerBucket))
	if err != nil {
		return nil, err
	}
	return &Env{
		Def:     def,
		IndexID: indexID,
		kv:      env,
		entries: kv.NewMap(entriesBucket),
		tokens:  kv.NewMultiMap(entriesBucket),
		marker:  kv.NewOption(markerBucket, markerKey),
	}, nil
}

func (e *Env) Close() error { return e.kv.Close() }

func (e *Env) Update(fn func(kv.Txn) error) error { return e.kv.Update(fn) }
func (e *Env) View(fn func(kv.Txn) error) error   { return e.kv.View(fn) }

// AdvanceMarker returns the highest log_offset this index has applied,
// or 0 if it has never been advanced.
func (e *Env) AdvanceMarker(txn kv.Txn) (uint64, error) {
	v, ok, err := e.marker.Get(txn)
	if err != nil || !ok {
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

// SetAdvanceMarker publishes offset as the highest applied log_offset.
// It never moves the marker backward, matching the commit-state
// restoration discipline of the main environment's counters.
func (e *Env) SetAdvanceMarker(txn kv.Txn, offset uint64) error {
	cur, err := e.AdvanceMarker(txn)
	if err != nil {
		return err
	}
	if offset <= cur {
		return nil
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], offset)
	return e.marker.Set(txn, b[:])
}

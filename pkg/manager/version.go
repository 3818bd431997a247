package manager

import (
	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/codec"
	"github.com/cuemby/cachedb/pkg/indexenv"
	"github.com/cuemby/cachedb/pkg/mainenv"
)

// Version is one opened version of one named cache: its main
// environment, every secondary index environment its schema.bin names,
// and the directory lock held for its lifetime.
type Version struct {
	Name string
	ID   string
	Dir  string

	Schema    cachetypes.Schema
	IndexDefs []codec.NamedIndexDef
	Main      *mainenv.Env
	Indexes   map[string]*indexenv.Env // keyed by index id

	lock *Lock
}

// Close closes every environment this version opened and releases the
// directory lock, in that order. It reports the first error
// encountered but always attempts every close so a failure on one
// environment doesn't leak the others.
func (v *Version) Close() error {
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if v.Main != nil {
		note(v.Main.Close())
	}
	for _, env := range v.Indexes {
		note(env.Close())
	}
	if v.lock != nil {
		note(v.lock.Release())
	}
	return firstErr
}

package manager

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/codec"
	"github.com/cuemby/cachedb/pkg/indexenv"
	"github.com/cuemby/cachedb/pkg/mainenv"
)

const (
	aliasFileName  = "alias"
	schemaFileName = "schema.bin"
	mainSubdir     = "main"
	indexesSubdir  = "indexes"
)

// Manager roots one on-disk tree of named caches.
type Manager struct {
	Root string
}

// New returns a Manager rooted at root. The directory is created lazily,
// per cache name, the first time it's needed.
func New(root string) *Manager {
	return &Manager{Root: root}
}

func (m *Manager) cacheDir(name string) string { return filepath.Join(m.Root, name) }
func (m *Manager) aliasPath(name string) string { return filepath.Join(m.cacheDir(name), aliasFileName) }
func (m *Manager) versionDir(name, versionID string) string {
	return filepath.Join(m.cacheDir(name), versionID)
}

// Create makes a new version of the named cache — a fresh version
// directory holding schema.bin and empty main/index environments — and
// atomically swaps the cache's alias onto it. Calling Create again for
// a name that already exists starts a new version (the only way to
// change a cache's index set, per the "removing an index requires
// creating a new cache and aliasing" rule); the previous version's
// files are left on disk, untouched, for any reader still using it.
//
// The returned Version holds the cache's exclusive writer lock; callers
// must Close it when done writing.
func (m *Manager) Create(name string, schema cachetypes.Schema, indexes []codec.NamedIndexDef) (v *Version, err error) {
	lock, err := lockCacheDir(m.cacheDir(name), true)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = lock.Release()
		}
	}()

	versionID, err := newVersionID()
	if err != nil {
		return nil, cacheerr.Wrap(cacheerr.Storage, "manager.Create", "%v", err)
	}
	dir := m.versionDir(name, versionID)

	mainDir := filepath.Join(dir, mainSubdir)
	idxDir := filepath.Join(dir, indexesSubdir)
	if err := os.MkdirAll(mainDir, 0o755); err != nil {
		return nil, cacheerr.Wrap(cacheerr.Storage, "manager.Create", "%v", err)
	}
	if err := os.MkdirAll(idxDir, 0o755); err != nil {
		return nil, cacheerr.Wrap(cacheerr.Storage, "manager.Create", "%v", err)
	}

	bundle := codec.EncodeSchemaBundle(schema, indexes)
	if err := os.WriteFile(filepath.Join(dir, schemaFileName), bundle, 0o644); err != nil {
		return nil, cacheerr.Wrap(cacheerr.Storage, "manager.Create", "%v", err)
	}

	mainEnv, err := mainenv.Open(mainDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = mainEnv.Close()
		}
	}()

	idxEnvs := make(map[string]*indexenv.Env, len(indexes))
	defer func() {
		if err != nil {
			for _, env := range idxEnvs {
				_ = env.Close()
			}
		}
	}()
	for _, ni := range indexes {
		env, oerr := indexenv.Open(idxDir, ni.ID, ni.Def)
		if oerr != nil {
			err = oerr
			return nil, err
		}
		idxEnvs[ni.ID] = env
	}

	if err := m.swapAlias(name, versionID); err != nil {
		return nil, err
	}

	return &Version{
		Name: name, ID: versionID, Dir: dir,
		Schema: schema, IndexDefs: indexes,
		Main: mainEnv, Indexes: idxEnvs,
		lock: lock,
	}, nil
}

// OpenWriter acquires the cache's exclusive writer lock and opens the
// version its alias currently names, for a writer resuming after a
// restart rather than creating a new version.
func (m *Manager) OpenWriter(name string) (*Version, error) {
	return m.openLatest(name, true)
}

// OpenReader acquires a shared lock and opens the version the cache's
// alias currently names. Any number of readers may hold this
// concurrently with each other, but not while an OpenWriter holds the
// exclusive lock.
func (m *Manager) OpenReader(name string) (*Version, error) {
	return m.openLatest(name, false)
}

func (m *Manager) openLatest(name string, exclusive bool) (v *Version, err error) {
	lock, err := lockCacheDir(m.cacheDir(name), exclusive)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = lock.Release()
		}
	}()

	versionID, err := m.ResolveAlias(name)
	if err != nil {
		return nil, err
	}
	v, err = m.openVersion(name, versionID)
	if err != nil {
		return nil, err
	}
	v.lock = lock
	return v, nil
}

// openVersion opens an existing version's environments without taking
// any lock; callers attach one afterward.
func (m *Manager) openVersion(name, versionID string) (*Version, error) {
	dir := m.versionDir(name, versionID)

	bundle, err := os.ReadFile(filepath.Join(dir, schemaFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cacheerr.Wrap(cacheerr.NotFound, "manager.openVersion", "cache %s has no version %s", name, versionID)
		}
		return nil, cacheerr.Wrap(cacheerr.Storage, "manager.openVersion", "%v", err)
	}
	schema, indexes, err := codec.DecodeSchemaBundle(bundle)
	if err != nil {
		return nil, err
	}

	mainEnv, err := mainenv.Open(filepath.Join(dir, mainSubdir))
	if err != nil {
		return nil, err
	}

	idxDir := filepath.Join(dir, indexesSubdir)
	idxEnvs := make(map[string]*indexenv.Env, len(indexes))
	for _, ni := range indexes {
		env, err := indexenv.Open(idxDir, ni.ID, ni.Def)
		if err != nil {
			_ = mainEnv.Close()
			for _, e := range idxEnvs {
				_ = e.Close()
			}
			return nil, err
		}
		idxEnvs[ni.ID] = env
	}

	return &Version{
		Name: name, ID: versionID, Dir: dir,
		Schema: schema, IndexDefs: indexes,
		Main: mainEnv, Indexes: idxEnvs,
	}, nil
}

// ResolveAlias reads the version id a cache name currently points to.
func (m *Manager) ResolveAlias(name string) (string, error) {
	data, err := os.ReadFile(m.aliasPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", cacheerr.Wrap(cacheerr.NotFound, "manager.ResolveAlias", "cache %s does not exist", name)
		}
		return "", cacheerr.Wrap(cacheerr.Storage, "manager.ResolveAlias", "%v", err)
	}
	return string(data), nil
}

// AliasFilePath returns the on-disk path of name's alias file, for
// tooling that needs to back it up before a manual version swap.
func (m *Manager) AliasFilePath(name string) string { return m.aliasPath(name) }

// SwapTo repoints name's alias at an already-existing versionID, for
// migration tooling that needs to move a cache between two versions
// both already present on disk (as opposed to Create, which always
// swaps onto a version it just built). It validates the target
// version's schema.bin exists before swapping so a typo'd version id
// fails before any alias mutation.
func (m *Manager) SwapTo(name, versionID string) error {
	schemaPath := filepath.Join(m.versionDir(name, versionID), schemaFileName)
	if _, err := os.Stat(schemaPath); err != nil {
		if os.IsNotExist(err) {
			return cacheerr.Wrap(cacheerr.NotFound, "manager.SwapTo", "cache %s has no version %s", name, versionID)
		}
		return cacheerr.Wrap(cacheerr.Storage, "manager.SwapTo", "%v", err)
	}
	return m.swapAlias(name, versionID)
}

// swapAlias points name's alias file at versionID via write-then-rename,
// so a reader never observes a half-written pointer: the rename is the
// only operation visible to anyone resolving the alias concurrently.
func (m *Manager) swapAlias(name, versionID string) error {
	dir := m.cacheDir(name)
	tmp := filepath.Join(dir, aliasFileName+".tmp")
	if err := os.WriteFile(tmp, []byte(versionID), 0o644); err != nil {
		return cacheerr.Wrap(cacheerr.Storage, "manager.swapAlias", "%v", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, aliasFileName)); err != nil {
		return cacheerr.Wrap(cacheerr.Storage, "manager.swapAlias", "%v", err)
	}
	return nil
}

// newVersionID produces a sortable-by-creation-time, collision-resistant
// directory name: a nanosecond timestamp plus a random UUID suffix, so
// two versions created in the same process in the same nanosecond
// still can't collide.
func newVersionID() (string, error) {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString()), nil
}

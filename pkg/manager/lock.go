package manager

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/cuemby/cachedb/pkg/cacheerr"
)

// lockFileName is the flock target inside a cache's directory; it holds
// no content, it exists only to be locked.
const lockFileName = ".lock"

// Lock is a held advisory lock on one cache's directory.
type Lock struct {
	f         *os.File
	exclusive bool
}

// lockCacheDir acquires a shared or exclusive advisory lock on
// <root>/<name>/.lock, blocking until it is available.
func lockCacheDir(dir string, exclusive bool) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, cacheerr.Wrap(cacheerr.Storage, "manager.lockCacheDir", "%v", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, lockFileName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, cacheerr.Wrap(cacheerr.Storage, "manager.lockCacheDir", "%v", err)
	}

	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		_ = f.Close()
		return nil, cacheerr.Wrap(cacheerr.Storage, "manager.lockCacheDir", "flock %s: %v", dir, err)
	}
	return &Lock{f: f, exclusive: exclusive}, nil
}

// Release drops the lock and closes the underlying file handle.
func (l *Lock) Release() error {
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	if err := l.f.Close(); err != nil {
		return cacheerr.Wrap(cacheerr.Storage, "manager.Lock.Release", "%v", err)
	}
	return nil
}

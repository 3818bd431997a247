package migrate

import (
	"fmt"
	"io"
	"os"

	"github.com/cuemby/cachedb/pkg/log"
	"github.com/cuemby/cachedb/pkg/manager"
)

// Options describes one alias-repointing migration.
type Options struct {
	Root       string // manager.Manager root directory
	CacheName  string
	ToVersion  string // target version id, already present on disk
	BackupPath string // defaults to "<root>/<cache>/alias.backup" if empty
	DryRun     bool
}

// Result reports what Run did or would do.
type Result struct {
	PreviousVersion string
	NewVersion      string
	BackupPath      string
	DryRun          bool
}

// Run backs up name's current alias file, then repoints it at
// opts.ToVersion. In dry-run mode it resolves and reports the current
// version without writing anything.
func Run(opts Options) (Result, error) {
	m := manager.New(opts.Root)

	previous, err := m.ResolveAlias(opts.CacheName)
	if err != nil {
		return Result{}, fmt.Errorf("resolve current alias for %s: %w", opts.CacheName, err)
	}

	result := Result{PreviousVersion: previous, NewVersion: opts.ToVersion, DryRun: opts.DryRun}
	logger := log.WithCacheName(opts.CacheName)
	logger.Info().Str("version", previous).Msg("migrate: resolved current version")

	if opts.DryRun {
		logger.Info().Str("from", previous).Str("to", opts.ToVersion).Msg("migrate: dry run, no changes made")
		return result, nil
	}

	backupPath := opts.BackupPath
	if backupPath == "" {
		backupPath = m.AliasFilePath(opts.CacheName) + ".backup"
	}
	if err := copyFile(m.AliasFilePath(opts.CacheName), backupPath); err != nil {
		return result, fmt.Errorf("backup alias for %s: %w", opts.CacheName, err)
	}
	result.BackupPath = backupPath
	logger.Info().Str("backup", backupPath).Msg("migrate: backed up alias")

	if err := m.SwapTo(opts.CacheName, opts.ToVersion); err != nil {
		return result, fmt.Errorf("swap %s to version %s: %w", opts.CacheName, opts.ToVersion, err)
	}
	logger.Info().Str("from", previous).Str("to", opts.ToVersion).Msg("migrate: alias repointed")

	return result, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

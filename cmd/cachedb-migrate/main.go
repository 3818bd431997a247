// Command cachedb-migrate repoints a cache's alias at a different,
// already-built version directory, backing up the alias file first.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cuemby/cachedb/pkg/migrate"
)

var (
	root       = flag.String("root", "./cachedb-data", "cache manager root directory")
	cacheName  = flag.String("cache", "", "cache name to migrate (required)")
	toVersion  = flag.String("to-version", "", "target version id, already present on disk (required)")
	backupPath = flag.String("backup", "", "path to back up the alias file before migrating (default: <root>/<cache>/alias.backup)")
	dryRun     = flag.Bool("dry-run", false, "show what would change without making changes")
)

func main() {
	flag.Parse()

	fmt.Println("cachedb alias migration tool")
	fmt.Println("=============================")

	if *cacheName == "" || *toVersion == "" {
		fmt.Fprintln(os.Stderr, "Error: --cache and --to-version are required")
		flag.Usage()
		os.Exit(1)
	}

	fmt.Printf("Root:       %s\n", *root)
	fmt.Printf("Cache:      %s\n", *cacheName)
	fmt.Printf("To version: %s\n", *toVersion)
	fmt.Printf("Dry run:    %v\n", *dryRun)
	fmt.Println()

	result, err := migrate.Run(migrate.Options{
		Root:       *root,
		CacheName:  *cacheName,
		ToVersion:  *toVersion,
		BackupPath: *backupPath,
		DryRun:     *dryRun,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: migration failed: %v\n", err)
		os.Exit(1)
	}

	if result.DryRun {
		fmt.Printf("\n[DRY RUN] Would repoint %s from %s to %s. No changes made.\n", *cacheName, result.PreviousVersion, result.NewVersion)
		return
	}

	fmt.Printf("\n✓ Migration completed successfully!\n")
	fmt.Printf("  Backup: %s\n", result.BackupPath)
	fmt.Printf("  %s: %s → %s\n", *cacheName, result.PreviousVersion, result.NewVersion)
}

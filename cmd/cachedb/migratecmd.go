package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/cachedb/pkg/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Repoint a cache's alias at a different, already-built version",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().String("cache", "", "cache name (required)")
	migrateCmd.Flags().String("root", "./cachedb-data", "cache manager root directory")
	migrateCmd.Flags().String("to-version", "", "target version id, already present on disk (required)")
	migrateCmd.Flags().String("backup", "", "path to back up the alias file before migrating (default: <root>/<cache>/alias.backup)")
	migrateCmd.Flags().Bool("dry-run", false, "show what would change without making changes")
	_ = migrateCmd.MarkFlagRequired("cache")
	_ = migrateCmd.MarkFlagRequired("to-version")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cacheName, _ := cmd.Flags().GetString("cache")
	root, _ := cmd.Flags().GetString("root")
	toVersion, _ := cmd.Flags().GetString("to-version")
	backupPath, _ := cmd.Flags().GetString("backup")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	result, err := migrate.Run(migrate.Options{
		Root:       root,
		CacheName:  cacheName,
		ToVersion:  toVersion,
		BackupPath: backupPath,
		DryRun:     dryRun,
	})
	if err != nil {
		return fmt.Errorf("migrate %s: %w", cacheName, err)
	}

	if result.DryRun {
		fmt.Printf("[DRY RUN] would repoint %s from %s to %s; no changes made\n", cacheName, result.PreviousVersion, result.NewVersion)
		return nil
	}
	fmt.Printf("migrated %s: %s -> %s (backup: %s)\n", cacheName, result.PreviousVersion, result.NewVersion, result.BackupPath)
	return nil
}

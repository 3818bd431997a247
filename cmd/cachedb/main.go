// Command cachedb hosts the materialized-view cache engine: serving a
// local socket over an already-built cache, running one-shot queries,
// inspecting a cache's on-disk state, and migrating a cache's alias.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cuemby/cachedb/pkg/config"
	"github.com/cuemby/cachedb/pkg/log"
)

var (
	// Version is set via -ldflags at build time.
	Version = "dev"
)

var cfg = config.Default()

var rootCmd = &cobra.Command{
	Use:     "cachedb",
	Short:   "cachedb - an embedded materialized-view cache engine",
	Version: Version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (see pkg/config)")

	config.BindFlags(rootCmd.PersistentFlags(), &cfg)

	cobra.OnInitialize(initLogging, loadConfigFile)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(migrateCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

// loadConfigFile overlays a YAML config file onto cfg's current
// (flag-or-default) values whenever --config is set. Flags are parsed
// before cobra.OnInitialize runs, so a value the user passed on the
// command line would be overwritten here; cachedb instead treats
// --config as the base and earlier-bound flags as the override by
// re-applying any flags the user explicitly set after the file loads.
func loadConfigFile() {
	path, _ := rootCmd.PersistentFlags().GetString("config")
	if path == "" {
		return
	}
	fileCfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading --config %s: %v\n", path, err)
		os.Exit(1)
	}
	changed := make(map[string]bool)
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = true
		}
	})
	merged := fileCfg
	if changed["max-db-size"] {
		merged.MaxDBSize = cfg.MaxDBSize
	}
	if changed["max-readers"] {
		merged.MaxReaders = cfg.MaxReaders
	}
	if changed["intersection-chunk-size"] {
		merged.IntersectionChunkSize = cfg.IntersectionChunkSize
	}
	if changed["persist-queue-capacity"] {
		merged.PersistQueueCapacity = cfg.PersistQueueCapacity
	}
	if changed["file-buffer-capacity"] {
		merged.FileBufferCapacity = cfg.FileBufferCapacity
	}
	if changed["index-worker-count"] {
		merged.IndexWorkerCount = cfg.IndexWorkerCount
	}
	cfg = merged
}

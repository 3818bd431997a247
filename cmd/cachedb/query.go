package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/cachedb/pkg/accessfilter"
	"github.com/cuemby/cachedb/pkg/executor"
	"github.com/cuemby/cachedb/pkg/manager"
	"github.com/cuemby/cachedb/pkg/planner"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a one-shot query against an already-built cache",
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().String("cache", "", "cache name (required)")
	queryCmd.Flags().String("root", "./cachedb-data", "cache manager root directory")
	queryCmd.Flags().String("filter", "", "JSON-encoded filter expression (see filterDTO)")
	queryCmd.Flags().Uint64("limit", 0, "maximum number of records to return (0 means unlimited)")
	queryCmd.Flags().Bool("count", false, "print only the number of matching records, ignoring --limit")
	queryCmd.Flags().Bool("phase", false, "print the cache's Phase (streaming/snapshotting) and exit, ignoring --filter/--limit")
	_ = queryCmd.MarkFlagRequired("cache")
}

// runQuery opens the cache read-only, builds an Executor directly over
// its already-persisted main environment and index environments, and
// prints matching records (or, with --count/--phase, the corresponding
// Query API result instead). It does not go through serve's socket —
// this is for operational inspection of a cache the caller already
// knows is at rest, not for querying a running writer.
func runQuery(cmd *cobra.Command, args []string) error {
	cacheName, _ := cmd.Flags().GetString("cache")
	root, _ := cmd.Flags().GetString("root")
	filterJSON, _ := cmd.Flags().GetString("filter")
	limit, _ := cmd.Flags().GetUint64("limit")
	countOnly, _ := cmd.Flags().GetBool("count")
	phaseOnly, _ := cmd.Flags().GetBool("phase")

	mgr := manager.New(root)
	version, err := mgr.OpenReader(cacheName)
	if err != nil {
		return fmt.Errorf("open cache %s for reading: %w", cacheName, err)
	}
	defer version.Close()

	ex := executor.New(version.Main, version.Indexes, version.Schema, cfg.IntersectionChunkSize)
	reader := accessfilter.New(ex, version.Schema, accessfilter.AccessFilter{})

	if phaseOnly {
		phase, err := reader.Phase()
		if err != nil {
			return fmt.Errorf("compute phase: %w", err)
		}
		fmt.Println(phase)
		return nil
	}

	query := planner.Query{}
	if limit > 0 {
		query.Limit = &limit
	}
	if filterJSON != "" {
		var dto filterDTO
		if err := json.Unmarshal([]byte(filterJSON), &dto); err != nil {
			return fmt.Errorf("parse --filter: %w", err)
		}
		expr, err := toExpr(version.Schema, dto)
		if err != nil {
			return fmt.Errorf("resolve --filter: %w", err)
		}
		query.Filter = &expr
	}

	indexes := make([]planner.NamedIndex, 0, len(version.IndexDefs))
	for _, def := range version.IndexDefs {
		indexes = append(indexes, planner.NamedIndex{ID: def.ID, Def: def.Def})
	}

	if countOnly {
		n, err := reader.Count(context.Background(), indexes, query, time.Now())
		if err != nil {
			return fmt.Errorf("count query: %w", err)
		}
		fmt.Println(n)
		return nil
	}

	records, err := reader.Query(context.Background(), indexes, query, time.Now())
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}

	for _, rec := range records {
		row := make([]string, len(rec.Values))
		for i, v := range rec.Values {
			row[i] = fieldString(v)
		}
		fmt.Println(row)
	}
	fmt.Printf("%d record(s)\n", len(records))
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/cachedb/pkg/accessfilter"
	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/executor"
	"github.com/cuemby/cachedb/pkg/kv"
	"github.com/cuemby/cachedb/pkg/manager"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print a cache's schema, index definitions, and commit state",
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().String("cache", "", "cache name (required)")
	inspectCmd.Flags().String("root", "./cachedb-data", "cache manager root directory")
	_ = inspectCmd.MarkFlagRequired("cache")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cacheName, _ := cmd.Flags().GetString("cache")
	root, _ := cmd.Flags().GetString("root")

	mgr := manager.New(root)
	version, err := mgr.OpenReader(cacheName)
	if err != nil {
		return fmt.Errorf("open cache %s for reading: %w", cacheName, err)
	}
	defer version.Close()

	fmt.Printf("cache:   %s\n", version.Name)
	fmt.Printf("version: %s\n", version.ID)
	fmt.Println()

	fmt.Println("schema:")
	for i, f := range version.Schema.Fields {
		primary := ""
		for _, p := range version.Schema.PrimaryIndex {
			if p == i {
				primary = " (primary)"
			}
		}
		fmt.Printf("  [%d] %s %s%s\n", i, f.Name, f.Type, primary)
	}
	if version.Schema.SyntheticRowID {
		fmt.Println("  (synthetic rowid primary key)")
	}
	fmt.Println()

	var offsetApplied uint64
	if err := version.Main.View(func(txn kv.Txn) error {
		state, err := version.Main.GetCommitState(txn)
		if err != nil {
			return err
		}
		offsetApplied = state.OffsetApplied
		return nil
	}); err != nil {
		return fmt.Errorf("read commit state: %w", err)
	}
	fmt.Printf("commit offset applied: %d\n", offsetApplied)
	fmt.Println()

	fmt.Println("indexes:")
	for _, def := range version.IndexDefs {
		fmt.Printf("  %s: %s\n", def.ID, indexKindString(def.Def))
		env, ok := version.Indexes[def.ID]
		if !ok {
			fmt.Println("    (no running environment)")
			continue
		}
		var marker uint64
		if err := env.View(func(txn kv.Txn) error {
			m, err := env.AdvanceMarker(txn)
			if err != nil {
				return err
			}
			marker = m
			return nil
		}); err != nil {
			fmt.Printf("    advance marker: error: %v\n", err)
			continue
		}
		fmt.Printf("    advance marker: %d", marker)
		if offsetApplied > marker {
			fmt.Printf(" (lagging by %d)", offsetApplied-marker)
		}
		fmt.Println()
	}
	fmt.Println()

	ex := executor.New(version.Main, version.Indexes, version.Schema, cfg.IntersectionChunkSize)
	reader := accessfilter.New(ex, version.Schema, accessfilter.AccessFilter{})
	phase, err := reader.Phase()
	if err != nil {
		return fmt.Errorf("compute phase: %w", err)
	}
	fmt.Printf("phase: %s\n", phase)
	return nil
}

func indexKindString(def cachetypes.IndexDefinition) string {
	switch def.Kind {
	case cachetypes.SortedInverted:
		fields := make([]string, len(def.SortFields))
		for i, sf := range def.SortFields {
			dir := "asc"
			if sf.Direction == cachetypes.Desc {
				dir = "desc"
			}
			fields[i] = fmt.Sprintf("%d/%s", sf.FieldPosition, dir)
		}
		return fmt.Sprintf("sorted_inverted%v", fields)
	case cachetypes.FullText:
		return fmt.Sprintf("full_text(field %d)", def.TextField)
	default:
		return "unknown"
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"ork/internal/paths"
	"ork/pkg/config"
	"ork/pkg/pipeline"

	"github.com/spf13/cobra"
)

// newCleanupCmd creates the "ork cleanup" subcommand. It runs the same
// housekeeping the hook performs at session end, on demand.
func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Prune old runs, checkpoints, and session scratch state",
		Long: `Idempotently clears transient session state and prunes finished
pipeline runs and checkpoint snapshots past the retention window.

Safe to run anytime. If nothing is stale, reports "nothing to clean".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			cfg, err := config.Load(p.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			retention := time.Duration(cfg.Checkpoint.RetentionDays) * 24 * time.Hour

			return runCleanup(cmd.Context(), cmd.OutOrStdout(), p, store, retention)
		},
	}
}

// runCleanup performs best-effort housekeeping. Each step continues on
// error, reporting warnings. Returns nil even if individual steps warned.
func runCleanup(ctx context.Context, w io.Writer, p *paths.Paths, store *pipeline.Store, retention time.Duration) error {
	cleaned := false

	if _, err := os.Stat(p.SessionDir); err == nil {
		if err := os.RemoveAll(p.SessionDir); err != nil {
			fmt.Fprintf(w, "warning: clear session dir: %v\n", err)
		} else {
			fmt.Fprintln(w, "cleared session scratch dir")
			cleaned = true
		}
	}

	n, err := store.PruneOlderThan(ctx, retention)
	if err != nil {
		fmt.Fprintf(w, "warning: prune pipeline runs: %v\n", err)
	} else if n > 0 {
		fmt.Fprintf(w, "pruned %d finished pipeline run(s)\n", n)
		cleaned = true
	}

	n, err = pipeline.PruneCheckpoints(p.CheckpointDir, retention)
	if err != nil {
		fmt.Fprintf(w, "warning: prune checkpoints: %v\n", err)
	} else if n > 0 {
		fmt.Fprintf(w, "pruned %d checkpoint snapshot(s)\n", n)
		cleaned = true
	}

	if !cleaned {
		fmt.Fprintln(w, "nothing to clean")
	}
	return nil
}

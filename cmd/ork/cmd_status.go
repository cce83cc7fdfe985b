package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"ork/internal/paths"
	"ork/pkg/calibrate"
	"ork/pkg/pipeline"
	"ork/pkg/usage"

	"github.com/spf13/cobra"
)

// newStatusCmd creates the "ork status" subcommand.
func newStatusCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show runtime state summary",
		Long:  "Displays active pipeline runs, calibration factors, and recent\nusage activity from the ork state directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if err := renderStatus(cmd.Context(), w); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			p, err := paths.Resolve()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			ch, stop, err := pipeline.Watch(p.OrkHome)
			if err != nil {
				return fmt.Errorf("watch state dir: %w", err)
			}
			defer stop()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ch:
					fmt.Fprintln(w)
					if err := renderStatus(cmd.Context(), w); err != nil {
						return err
					}
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-render when state files change")

	return cmd
}

// renderStatus writes one full status snapshot.
func renderStatus(ctx context.Context, w io.Writer) error {
	p, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	theme := DefaultTheme()

	fmt.Fprintln(w, theme.headerStyle().Render("Pipeline runs"))
	runs, err := store.List(ctx, "")
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for _, run := range runs {
		done := len(run.State.CompletedPhases)
		total := done + len(run.State.RemainingPhases)
		current := "-"
		if run.State.CurrentPhase != nil {
			current = run.State.CurrentPhase.ID
		}
		fmt.Fprintf(w, "  %s  %s  %d/%d phases  current: %s  %s\n",
			shortID(run.RunID), theme.statusStyle(run.Status).Render(fmt.Sprintf("%-9s", run.Status)),
			done, total, current, run.Task)
	}

	fmt.Fprintln(w, theme.headerStyle().Render("Calibration"))
	rec, err := calibrate.NewStore(p.CalibrationPath).Load()
	if err != nil {
		fmt.Fprintf(w, "  unreadable, starting fresh: %v\n", err)
	} else if rec.Stats.TotalDispatches == 0 {
		fmt.Fprintln(w, "  no dispatch history")
	} else {
		fmt.Fprintf(w, "  %d dispatches, %.0f%% success\n", rec.Stats.TotalDispatches, rec.Stats.SuccessRate*100)
		for _, adj := range rec.Adjustments {
			fmt.Fprintf(w, "  %-24s %.2f\n", adj.Agent, adj.Factor)
		}
	}

	fmt.Fprintln(w, theme.headerStyle().Render("Usage (last 24h)"))
	recs, err := usage.Query(p.UsageDir, usage.QueryOpts{Since: time.Now().Add(-24 * time.Hour)})
	if err != nil {
		return fmt.Errorf("query usage: %w", err)
	}
	fmt.Fprintf(w, "  %d records\n", len(recs))

	return nil
}

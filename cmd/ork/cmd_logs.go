package main

import (
	"fmt"
	"io"
	"time"

	"ork/internal/paths"
	"ork/pkg/usage"

	"github.com/spf13/cobra"
)

// logsConfig holds configuration for the logs command.
type logsConfig struct {
	tail  int
	since time.Duration
}

// newLogsCmd creates the "ork logs" subcommand.
func newLogsCmd() *cobra.Command {
	var cfg logsConfig

	cmd := &cobra.Command{
		Use:   "logs [kind]",
		Short: "Query the anonymous usage log",
		Long:  "Displays recent usage records, newest first.\nOptionally filter by kind: agent, skill, hook, task, or team.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind usage.Kind
			if len(args) == 1 {
				kind = usage.Kind(args[0])
				if !kind.Valid() {
					return fmt.Errorf("unknown kind %q (want one of %v)", args[0], usage.Kinds)
				}
			}

			p, err := paths.Resolve()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}

			opts := usage.QueryOpts{Kind: kind, Limit: cfg.tail}
			if cfg.since > 0 {
				opts.Since = time.Now().Add(-cfg.since)
			}
			recs, err := usage.Query(p.UsageDir, opts)
			if err != nil {
				return fmt.Errorf("query usage: %w", err)
			}

			w := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(w, "no usage records")
				return nil
			}
			for _, rec := range recs {
				formatRecord(cmd.OutOrStdout(), rec)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&cfg.tail, "tail", 20, "number of recent records to show")
	cmd.Flags().DurationVar(&cfg.since, "since", 0, "only records newer than this age (e.g. 24h)")

	return cmd
}

// formatRecord writes one usage record in a human-readable line.
func formatRecord(w io.Writer, rec usage.Record) {
	outcome := ""
	if rec.Success != nil {
		if *rec.Success {
			outcome = "ok"
		} else {
			outcome = "fail"
		}
	}
	fmt.Fprintf(w, "%s | %-20s | %-24s | %-4s | %dms\n",
		rec.Timestamp.Format("2006-01-02 15:04:05"), rec.Event, rec.Name, outcome, rec.DurationMS)
}

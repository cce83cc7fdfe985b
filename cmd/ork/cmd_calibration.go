package main

import (
	"fmt"

	"ork/internal/paths"
	"ork/pkg/calibrate"

	"github.com/spf13/cobra"
)

// newCalibrationCmd creates the "ork calibration" command group.
func newCalibrationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibration",
		Short: "Inspect and reset agent calibration state",
	}
	cmd.AddCommand(
		newCalibrationShowCmd(),
		newCalibrationResetCmd(),
	)
	return cmd
}

func newCalibrationShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show adjustment factors and dispatch stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := paths.Resolve()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}

			rec, err := calibrate.NewStore(p.CalibrationPath).Load()
			if err != nil {
				return fmt.Errorf("load calibration: %w", err)
			}

			w := cmd.OutOrStdout()
			if rec.Stats.TotalDispatches == 0 {
				fmt.Fprintln(w, "no dispatch history")
				return nil
			}

			fmt.Fprintf(w, "dispatches: %d  success rate: %.0f%%  updated: %s\n",
				rec.Stats.TotalDispatches, rec.Stats.SuccessRate*100,
				rec.UpdatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintln(w, "\nAdjustments:")
			for _, adj := range rec.Adjustments {
				fmt.Fprintf(w, "  %-24s %.2f\n", adj.Agent, adj.Factor)
			}
			if len(rec.Stats.TopAgents) > 0 {
				fmt.Fprintln(w, "\nTop agents:")
				for _, st := range rec.Stats.TopAgents {
					fmt.Fprintf(w, "  %-24s %d dispatches  %.0f%% success\n",
						st.Agent, st.Dispatches, st.SuccessRate*100)
				}
			}
			return nil
		},
	}
}

func newCalibrationResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset calibration to the neutral baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := paths.Resolve()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			if err := p.EnsureHome(); err != nil {
				return err
			}
			if err := calibrate.NewStore(p.CalibrationPath).Reset(); err != nil {
				return fmt.Errorf("reset calibration: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "calibration reset to neutral")
			return nil
		},
	}
}

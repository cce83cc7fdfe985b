package main

import (
	"fmt"

	"ork/internal/buildinfo"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root ork command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ork",
		Short:         "Ork hook runtime manager",
		Long:          "ork inspects and manages the state the ork-hook runtime accumulates:\npipeline runs, calibration factors, and the usage log.",
		Version:       fmt.Sprintf("ork %s", buildinfo.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newInitCmd(),
		newStatusCmd(),
		newPipelineCmd(),
		newCalibrationCmd(),
		newLogsCmd(),
		newCleanupCmd(),
	)

	return cmd
}

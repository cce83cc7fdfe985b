package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"ork/internal/paths"
	"ork/pkg/pipeline"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// shortID truncates a run id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// resumeConfig holds injectable dependencies for the interactive resume flow.
type resumeConfig struct {
	in    io.Reader
	out   io.Writer
	isTTY func() bool // injectable for testing
}

// newPipelineCmd creates the "ork pipeline" command group.
func newPipelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Inspect and steer task pipeline runs",
	}
	cmd.AddCommand(
		newPipelineListCmd(),
		newPipelineShowCmd(),
		newPipelineResumeCmd(),
		newPipelineRestartCmd(),
		newPipelineAbandonCmd(),
	)
	return cmd
}

func newPipelineListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), status)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			w := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(w, "no pipeline runs")
				return nil
			}
			for _, run := range runs {
				fmt.Fprintf(w, "%s  %-9s  %s  checkpoints: %d\n",
					run.RunID, run.Status, run.Task, run.Checkpoints)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by run status (active, completed, abandoned)")

	return cmd
}

func newPipelineShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run's phases and event trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			printRun(w, run)

			events, err := store.Events(cmd.Context(), run.RunID)
			if err != nil {
				return fmt.Errorf("load events: %w", err)
			}
			if len(events) > 0 {
				fmt.Fprintln(w, "\nEvents:")
				for _, ev := range events {
					fmt.Fprintf(w, "  %s  %-10s  %s\n", ev.CreatedAt.Format("2006-01-02 15:04:05"), ev.Event, ev.PhaseID)
				}
			}
			return nil
		},
	}
}

// printRun writes the phase breakdown for one run.
func printRun(w io.Writer, run *pipeline.Run) {
	fmt.Fprintf(w, "%s  %s  %s\n", run.RunID, run.Status, run.Task)
	for _, ph := range run.State.CompletedPhases {
		fmt.Fprintf(w, "  [x] %s  %s\n", ph.ID, ph.Title)
	}
	for _, ph := range run.State.RemainingPhases {
		marker := "[ ]"
		if run.State.CurrentPhase != nil && ph.ID == run.State.CurrentPhase.ID {
			marker = "[>]"
		}
		fmt.Fprintf(w, "  %s %s  %s\n", marker, ph.ID, ph.Title)
	}
}

func newPipelineResumeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "resume <run-id>",
		Short: "Resume an interrupted run",
		Long:  "Assesses an interrupted run and surfaces the available actions.\nInteractive unless --yes, which resumes without asking.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &resumeConfig{
				in:    cmd.InOrStdin(),
				out:   cmd.OutOrStdout(),
				isTTY: stdinIsTTY,
			}
			return runResume(cmd, args[0], yes, cfg)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "resume without prompting")

	return cmd
}

// runResume surfaces the resume decision and acts on the chosen action.
func runResume(cmd *cobra.Command, runID string, yes bool, cfg *resumeConfig) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	ctrl := newController(store)

	decision, err := ctrl.Assess(cmd.Context(), runID)
	if err != nil {
		return err
	}

	action := pipeline.ActionResume
	if !yes {
		if !cfg.isTTY() {
			return fmt.Errorf("resume is interactive; re-run with --yes or from a terminal")
		}
		action, err = promptAction(cfg, decision)
		if err != nil {
			return err
		}
	}

	switch action {
	case pipeline.ActionResume:
		run, err := ctrl.Resume(cmd.Context(), runID)
		if err != nil {
			return err
		}
		current := "-"
		if run.State.CurrentPhase != nil {
			current = run.State.CurrentPhase.ID
		}
		fmt.Fprintf(cfg.out, "resumed %s at phase %s\n", shortID(runID), current)
	case pipeline.ActionRestart:
		completed := decision.Run.State.CompletedPhases
		last := completed[len(completed)-1]
		if _, err := ctrl.RestartPhase(cmd.Context(), runID, last.ID); err != nil {
			return err
		}
		fmt.Fprintf(cfg.out, "restarted %s from phase %s\n", shortID(runID), last.ID)
	case pipeline.ActionAbandon:
		if err := ctrl.Abandon(cmd.Context(), runID); err != nil {
			return err
		}
		fmt.Fprintf(cfg.out, "abandoned %s\n", shortID(runID))
	}
	return nil
}

// promptAction shows the decision and reads one action choice from stdin.
func promptAction(cfg *resumeConfig, decision *pipeline.ResumeDecision) (pipeline.ResumeAction, error) {
	printRun(cfg.out, decision.Run)
	names := make([]string, len(decision.Actions))
	for i, a := range decision.Actions {
		names[i] = string(a)
	}
	fmt.Fprintf(cfg.out, "action [%s]: ", strings.Join(names, "/"))

	line, err := bufio.NewReader(cfg.in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read action: %w", err)
	}
	choice := strings.TrimSpace(line)
	for _, a := range decision.Actions {
		if choice == string(a) {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", choice)
}

func newPipelineRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart <run-id> <phase-id>",
		Short: "Push a completed phase back onto the remaining list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := newController(store).RestartPhase(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}
}

func newPipelineAbandonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abandon <run-id>",
		Short: "Mark a run abandoned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := newController(store).Abandon(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "abandoned %s\n", shortID(args[0]))
			return nil
		},
	}
}

// newController builds a pipeline controller over store with the CLI's
// checkpoint settings.
func newController(store *pipeline.Store) *pipeline.Controller {
	p, err := paths.Resolve()
	if err != nil {
		return pipeline.NewController(store)
	}
	return pipeline.NewController(store,
		pipeline.WithCheckpointer(pipeline.NewFileCheckpointer(p.CheckpointDir)),
	)
}

// stdinIsTTY reports whether stdin is an interactive terminal.
func stdinIsTTY() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

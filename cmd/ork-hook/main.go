// Binary ork-hook is the per-event entry point the host assistant invokes for
// every hook event. It is named in the host's hook config as
//
//	ork-hook <bundle-prefix>/<handler-id>
//
// reads one JSON event from stdin, dispatches it through the bundle registry,
// and writes exactly one JSON response to stdout.
//
// Protocol: reads JSON from stdin, writes JSON to stdout.
//   - No opinion (silent success): {"continue":true,"suppressOutput":true}
//   - Deny (blocking events only): {"continue":true,"decision":"deny","reason":"..."}
//
// Design: fail-open. Every error path -- bad args, unreadable stdin, missing
// config, a broken store -- degrades to silent success and exit 0. A broken
// hook must never block the user's session.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"ork/internal/paths"
	"ork/pkg/bundle"
	"ork/pkg/calibrate"
	"ork/pkg/config"
	"ork/pkg/hook"
	"ork/pkg/pipeline"
	"ork/pkg/usage"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run handles one hook invocation end to end. It always returns 0.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "ork-hook: missing event name argument")
		writeOut(stdout, stderr, hook.Silent())
		return 0
	}
	eventName := args[0]

	p, err := paths.Resolve()
	if err != nil {
		fmt.Fprintf(stderr, "ork-hook: resolve paths: %v\n", err)
		writeOut(stdout, stderr, hook.Silent())
		return 0
	}

	cfg, err := config.Load(p.ConfigPath)
	if err != nil {
		// A malformed config must not take the session down with it.
		fmt.Fprintf(stderr, "ork-hook: load config: %v (using defaults)\n", err)
		cfg = config.Default()
	}

	ev := hook.Read(stdin, time.Duration(cfg.StdinWaitMS)*time.Millisecond)

	reg, closeDeps := buildRegistry(p, cfg, projectPath(ev), stderr)
	defer closeDeps()

	resp := reg.Dispatch(context.Background(), eventName, ev)
	writeOut(stdout, stderr, resp)
	return 0
}

// projectPath picks the path to derive the anonymous project id from:
// the event's working directory when present, the process cwd otherwise.
func projectPath(ev hook.Event) string {
	if ev.Cwd != "" {
		return ev.Cwd
	}
	wd, err := os.Getwd()
	if err != nil {
		return "unknown"
	}
	return wd
}

// buildRegistry assembles the shipped bundles with whatever dependencies can
// be brought up. Each store that fails to open is logged and left nil, which
// disables only the handlers that need it. The returned func releases the
// pipeline store.
func buildRegistry(p *paths.Paths, cfg config.Config, project string, stderr io.Writer) (*bundle.Registry, func()) {
	if err := p.EnsureHome(); err != nil {
		fmt.Fprintf(stderr, "ork-hook: %v\n", err)
	}

	deps := bundle.Deps{}

	if cfg.Usage.Enabled {
		deps.Usage = usage.NewSink(p.UsageDir, project)
	}

	engine := calibrate.NewEngine(calibrate.NewStore(p.CalibrationPath),
		calibrate.WithEnabled(cfg.Calibration.Enabled),
		calibrate.WithHalfLife(time.Duration(cfg.Calibration.HalfLifeDays)*24*time.Hour),
		calibrate.WithRetention(time.Duration(cfg.Calibration.RetentionDays)*24*time.Hour),
		calibrate.WithErrorLog(stderr),
	)
	deps.Calibration = engine

	closeDeps := func() {}
	store, err := pipeline.Open(p.StateDBPath)
	if err != nil {
		fmt.Fprintf(stderr, "ork-hook: open pipeline store: %v (pipeline handlers disabled)\n", err)
	} else {
		closeDeps = func() {
			if cerr := store.Close(); cerr != nil {
				fmt.Fprintf(stderr, "ork-hook: close pipeline store: %v\n", cerr)
			}
		}
		deps.Pipeline = pipeline.NewController(store,
			pipeline.WithCheckpointer(pipeline.NewFileCheckpointer(p.CheckpointDir)),
			pipeline.WithInterval(cfg.Checkpoint.Interval),
			pipeline.WithErrorLog(stderr),
		)
		deps.Cleanup = cleanupTasks(p, cfg, store)
	}

	reg := bundle.DefaultRegistry(deps)
	reg.SetErrorLog(stderr)

	bundles, err := config.LoadBundles(p.BundlesPath)
	if err != nil {
		fmt.Fprintf(stderr, "ork-hook: load bundles: %v (using shipped set)\n", err)
		return reg, closeDeps
	}
	if err := bundles.Validate(); err != nil {
		fmt.Fprintf(stderr, "ork-hook: invalid bundle config: %v (using shipped set)\n", err)
		return reg, closeDeps
	}
	bundles.Apply(reg)
	return reg, closeDeps
}

// cleanupTasks is the mandatory session-end housekeeping list. These run on
// every stop event regardless of calibration state.
func cleanupTasks(p *paths.Paths, cfg config.Config, store *pipeline.Store) []calibrate.CleanupTask {
	retention := time.Duration(cfg.Checkpoint.RetentionDays) * 24 * time.Hour
	return []calibrate.CleanupTask{
		{Name: "clear session dir", Run: func() error {
			if err := os.RemoveAll(p.SessionDir); err != nil {
				return fmt.Errorf("remove %s: %w", p.SessionDir, err)
			}
			return nil
		}},
		{Name: "prune pipeline runs", Run: func() error {
			_, err := store.PruneOlderThan(context.Background(), retention)
			return err
		}},
		{Name: "prune checkpoints", Run: func() error {
			_, err := pipeline.PruneCheckpoints(p.CheckpointDir, retention)
			return err
		}},
	}
}

// writeOut writes the response to stdout, logging any write error to stderr.
func writeOut(stdout, stderr io.Writer, resp hook.Response) {
	if err := resp.Write(stdout); err != nil {
		fmt.Fprintf(stderr, "ork-hook: stdout write error: %v\n", err)
	}
}

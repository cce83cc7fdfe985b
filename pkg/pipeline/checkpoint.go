package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileCheckpointer writes mini-checkpoints as sequence-numbered markdown
// files under <dir>/<run-id>/. The snapshots are a human-inspectable
// recovery trail independent of the state database: after a crash, the
// latest snapshot shows what had finished without any tooling.
type FileCheckpointer struct {
	dir string

	now func() time.Time // injectable for tests
}

// NewFileCheckpointer creates a checkpointer writing under dir, typically
// $ORK_HOME/checkpoints.
func NewFileCheckpointer(dir string) *FileCheckpointer {
	return &FileCheckpointer{dir: dir, now: time.Now}
}

// Write renders one snapshot. Files are never rewritten: each trigger
// produces checkpoint-<seq>.md.
func (f *FileCheckpointer) Write(run *Run, seq int) error {
	runDir := filepath.Join(f.dir, run.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	path := filepath.Join(runDir, fmt.Sprintf("checkpoint-%03d.md", seq))
	return os.WriteFile(path, []byte(f.render(run, seq)), 0o644)
}

func (f *FileCheckpointer) render(run *Run, seq int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Checkpoint %d — %s\n\n", seq, run.Task)
	fmt.Fprintf(&b, "- run: %s\n", run.RunID)
	fmt.Fprintf(&b, "- written: %s\n", f.now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- status: %s\n\n", run.Status)

	b.WriteString("## Completed\n\n")
	if len(run.State.CompletedPhases) == 0 {
		b.WriteString("(none)\n")
	}
	for _, p := range run.State.CompletedPhases {
		fmt.Fprintf(&b, "- [x] %s", p.ID)
		if p.Title != "" {
			fmt.Fprintf(&b, " — %s", p.Title)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Remaining\n\n")
	if len(run.State.RemainingPhases) == 0 {
		b.WriteString("(none)\n")
	}
	for _, p := range run.State.RemainingPhases {
		marker := " "
		if run.State.CurrentPhase != nil && p.ID == run.State.CurrentPhase.ID {
			marker = ">"
		}
		fmt.Fprintf(&b, "- [%s] %s", marker, p.ID)
		if p.Title != "" {
			fmt.Fprintf(&b, " — %s", p.Title)
		}
		b.WriteString("\n")
	}

	if len(run.State.ContextSummary) > 0 {
		b.WriteString("\n## Context\n\n")
		for k, v := range run.State.ContextSummary {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}
	return b.String()
}

// PruneCheckpoints removes snapshot directories whose newest file is older
// than age. Part of mandatory session cleanup.
func PruneCheckpoints(dir string, age time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read checkpoint dir: %w", err)
	}

	cutoff := time.Now().Add(-age)
	pruned := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		runDir := filepath.Join(dir, entry.Name())
		if newestModTime(runDir).After(cutoff) {
			continue
		}
		if err := os.RemoveAll(runDir); err != nil {
			return pruned, fmt.Errorf("prune %s: %w", entry.Name(), err)
		}
		pruned++
	}
	return pruned, nil
}

func newestModTime(dir string) time.Time {
	var newest time.Time
	entries, err := os.ReadDir(dir)
	if err != nil {
		return newest
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	return newest
}

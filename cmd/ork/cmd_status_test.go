package main

import (
	"strings"
	"testing"
)

func TestStatusCmd_EmptyState(t *testing.T) {
	t.Setenv("ORK_HOME", t.TempDir())

	out, err := execRoot(t, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	for _, want := range []string{"Pipeline runs", "none", "no dispatch history", "0 records"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusCmd_ShowsStateSummary(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ORK_HOME", home)
	seedRun(t, home, twoPhases())
	seedCalibration(t, home)
	seedUsage(t, home)

	out, err := execRoot(t, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	for _, want := range []string{"ship feature", "0/2 phases", "current: design", "2 dispatches", "refactorer", "3 records"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ork/pkg/calibrate"
)

// seedCalibration writes a calibration record with one agent's history.
func seedCalibration(t *testing.T, home string) {
	t.Helper()
	store := calibrate.NewStore(filepath.Join(home, "calibration.json"))
	engine := calibrate.NewEngine(store, calibrate.WithEnabled(true))
	engine.RecordDispatch("refactorer", true, 2*time.Second)
	engine.RecordDispatch("refactorer", true, 3*time.Second)
	engine.SessionEnd(nil)
}

func TestCalibrationShowCmd_Empty(t *testing.T) {
	t.Setenv("ORK_HOME", t.TempDir())

	out, err := execRoot(t, "calibration", "show")
	if err != nil {
		t.Fatalf("calibration show failed: %v", err)
	}
	if !strings.Contains(out, "no dispatch history") {
		t.Errorf("output = %q, want 'no dispatch history'", out)
	}
}

func TestCalibrationShowCmd_WithHistory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ORK_HOME", home)
	seedCalibration(t, home)

	out, err := execRoot(t, "calibration", "show")
	if err != nil {
		t.Fatalf("calibration show failed: %v", err)
	}
	if !strings.Contains(out, "dispatches: 2") {
		t.Errorf("output = %q, want dispatch count", out)
	}
	if !strings.Contains(out, "refactorer") {
		t.Errorf("output = %q, want agent adjustment line", out)
	}
}

func TestCalibrationResetCmd(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ORK_HOME", home)
	seedCalibration(t, home)

	if _, err := execRoot(t, "calibration", "reset"); err != nil {
		t.Fatalf("calibration reset failed: %v", err)
	}

	out, err := execRoot(t, "calibration", "show")
	if err != nil {
		t.Fatalf("calibration show failed: %v", err)
	}
	if !strings.Contains(out, "no dispatch history") {
		t.Errorf("reset did not clear history, output: %q", out)
	}
}

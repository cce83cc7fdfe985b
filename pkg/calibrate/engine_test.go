package calibrate

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *Store, *bytes.Buffer) {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "calibration.json"))
	var logBuf bytes.Buffer
	opts = append([]Option{WithErrorLog(&logBuf)}, opts...)
	return NewEngine(store, opts...), store, &logBuf
}

func TestRecordDispatchAndSessionEnd(t *testing.T) {
	engine, store, _ := newTestEngine(t)

	engine.RecordDispatch("code-reviewer", true, 1500*time.Millisecond)
	engine.RecordDispatch("code-reviewer", false, 300*time.Millisecond)
	engine.SessionEnd(nil)

	rec, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Stats.TotalDispatches != 2 {
		t.Errorf("TotalDispatches = %d, want 2", rec.Stats.TotalDispatches)
	}
	if len(rec.Adjustments) != 1 {
		t.Fatalf("Adjustments = %d, want 1", len(rec.Adjustments))
	}
	if rec.Adjustments[0].Agent != "code-reviewer" {
		t.Errorf("adjustment agent = %q", rec.Adjustments[0].Agent)
	}
}

func TestDisabledCalibrationStillRunsCleanup(t *testing.T) {
	engine, store, _ := newTestEngine(t, WithEnabled(false))

	ran := []string{}
	cleanup := []CleanupTask{
		{Name: "clear-session-state", Run: func() error { ran = append(ran, "clear"); return nil }},
		{Name: "prune-old-states", Run: func() error { ran = append(ran, "states"); return nil }},
		{Name: "prune-old-tasks", Run: func() error { ran = append(ran, "tasks"); return nil }},
	}
	engine.SessionEnd(cleanup)

	if len(ran) != 3 {
		t.Errorf("cleanup ran %d tasks %v, want all 3", len(ran), ran)
	}
	// Disabled calibration writes nothing.
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Errorf("disabled calibration touched the store: %v", err)
	}
}

func TestDisabledEngineSkipsRecordDispatch(t *testing.T) {
	engine, store, _ := newTestEngine(t, WithEnabled(false))
	engine.RecordDispatch("a", true, 0)
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Errorf("disabled calibration wrote a record: %v", err)
	}
}

func TestCorruptStoreResetsToNeutral(t *testing.T) {
	engine, store, logBuf := newTestEngine(t)

	if err := os.MkdirAll(filepath.Dir(store.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	engine.SessionEnd(nil)

	if !strings.Contains(logBuf.String(), "calibration load") {
		t.Errorf("corrupt load not logged with stage marker: %q", logBuf.String())
	}

	rec, err := store.Load()
	if err != nil {
		t.Fatalf("store not repaired: %v", err)
	}
	if rec.Stats.TotalDispatches != 0 {
		t.Errorf("reset record has %d dispatches, want 0", rec.Stats.TotalDispatches)
	}
}

func TestCleanupRunsDespiteCalibrationFailure(t *testing.T) {
	// Make the save step fail by replacing the store path's parent with a
	// plain file after the store exists.
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocked, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewStore(filepath.Join(blocked, "calibration.json"))
	var logBuf bytes.Buffer
	engine := NewEngine(store, WithErrorLog(&logBuf))

	cleanupRan := false
	engine.SessionEnd([]CleanupTask{
		{Name: "clear-session-state", Run: func() error { cleanupRan = true; return nil }},
	})

	if !cleanupRan {
		t.Error("cleanup skipped when calibration failed")
	}
	if logBuf.Len() == 0 {
		t.Error("calibration failure was not logged")
	}
}

func TestCleanupErrorsAreIsolated(t *testing.T) {
	engine, _, logBuf := newTestEngine(t)

	ran := []string{}
	engine.SessionEnd([]CleanupTask{
		{Name: "first", Run: func() error { ran = append(ran, "first"); return os.ErrPermission }},
		{Name: "second", Run: func() error { ran = append(ran, "second"); return nil }},
	})

	if len(ran) != 2 {
		t.Errorf("ran %v, want both tasks despite first failing", ran)
	}
	if !strings.Contains(logBuf.String(), "cleanup first") {
		t.Errorf("failed task not logged: %q", logBuf.String())
	}
}

func TestSessionEndDecayStageDistinguishable(t *testing.T) {
	engine, store, logBuf := newTestEngine(t)

	engine.RecordDispatch("a", true, 0)
	engine.SessionEnd(nil)
	if strings.Contains(logBuf.String(), "calibration decay") {
		t.Errorf("healthy run logged a decay error: %q", logBuf.String())
	}

	// Stage messages use distinct prefixes per the degraded-state contract.
	for _, stage := range []string{"calibration load", "calibration decay", "calibration save"} {
		if strings.Contains(logBuf.String(), stage) {
			t.Errorf("unexpected %q in healthy-run log", stage)
		}
	}
	_ = store
}

func TestUpdateSerializesWriters(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "calibration.json"))

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			done <- store.Update(func(rec *Record) error {
				rec.Records = append(rec.Records, DispatchRecord{
					Timestamp: time.Now().UTC(), Agent: "a", Success: true,
				})
				return nil
			})
		}()
	}
	for i := 0; i < 10; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	rec, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rec.Records) != 10 {
		t.Errorf("got %d records, want 10 (lost update)", len(rec.Records))
	}
}

func TestStaleLockTakeover(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "calibration.json"))

	// Plant a stale lock from a dead process.
	lockPath := store.Path() + ".lock"
	if err := os.WriteFile(lockPath, []byte("99999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * staleLockAge)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatal(err)
	}

	err := store.Update(func(rec *Record) error { return nil })
	if err != nil {
		t.Fatalf("Update did not take over stale lock: %v", err)
	}
}

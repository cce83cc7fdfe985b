package calibrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Lock acquisition parameters. The lock only guards the short load-mutate-
// save window, so a holder older than staleLockAge is assumed dead.
const (
	lockRetryInterval = 25 * time.Millisecond
	lockTimeout       = 3 * time.Second
	staleLockAge      = 30 * time.Second
)

// ErrCorrupt marks a store whose contents failed to parse. Callers reset to
// the neutral baseline rather than propagating it.
var ErrCorrupt = errors.New("calibration store corrupt")

// Store persists the calibration Record as a single JSON file with an
// advisory lock file serializing the read-modify-write cycle across
// concurrent hook processes.
type Store struct {
	path string
}

// NewStore creates a store at path (e.g. $ORK_HOME/calibration.json).
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the store's file path.
func (s *Store) Path() string { return s.path }

// Load reads the record. A missing file returns the neutral baseline; an
// unparseable file returns the neutral baseline and ErrCorrupt so the
// caller can log the reset.
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRecord(), nil
		}
		return NewRecord(), fmt.Errorf("read calibration store: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return NewRecord(), fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if rec.Records == nil {
		rec.Records = []DispatchRecord{}
	}
	if rec.Adjustments == nil {
		rec.Adjustments = []Adjustment{}
	}
	return &rec, nil
}

// Save writes the record atomically: temp file in the same directory, then
// rename. A reader never observes a half-written store.
func (s *Store) Save(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal calibration record: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create calibration dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".calibration-*.json")
	if err != nil {
		return fmt.Errorf("create temp calibration file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write calibration record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp calibration file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename calibration file: %w", err)
	}
	return nil
}

// Update runs fn inside the advisory lock: load, mutate, save. This is the
// only safe way for concurrent processes to append records, since the
// process-per-event model leaves no in-memory mutex to share.
func (s *Store) Update(fn func(*Record) error) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	rec, err := s.Load()
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return err
	}
	// Corrupt store: fn operates on the neutral baseline.
	if err := fn(rec); err != nil {
		return err
	}
	return s.Save(rec)
}

// Reset removes the store file, returning the environment to the neutral
// baseline. Only explicit configuration (ork calibration reset) calls this.
func (s *Store) Reset() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reset calibration store: %w", err)
	}
	return nil
}

// lock acquires the advisory lock file next to the store, taking over locks
// older than staleLockAge. Returns the release function.
func (s *Store) lock() (func(), error) {
	lockPath := s.path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create calibration dir: %w", err)
	}

	deadline := time.Now().Add(lockTimeout)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%s\n", strconv.Itoa(os.Getpid()))
			f.Close()
			return func() { os.Remove(lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("acquire calibration lock: %w", err)
		}

		// Held by someone else: take over if stale, otherwise wait.
		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > staleLockAge {
			os.Remove(lockPath)
			continue
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("acquire calibration lock: timed out after %s", lockTimeout)
		}
		time.Sleep(lockRetryInterval)
	}
}

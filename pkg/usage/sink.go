package usage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Sink appends usage records to the per-kind JSONL files under its
// directory. It is safe for concurrent use across processes: each record is
// written with a single O_APPEND write, so full lines never interleave.
//
// Writes are fire-and-forget with respect to the caller's own contract: a
// failed append is logged to stderr and must never change what a handler
// reports to the host.
type Sink struct {
	dir string
	pid string

	now  func() time.Time // injectable for rotation tests
	errw *log.Logger
}

// NewSink creates a sink writing under dir, stamping every record with the
// hashed identifier of projectPath. The directory is created lazily on
// first append.
func NewSink(dir, projectPath string) *Sink {
	return &Sink{
		dir:  dir,
		pid:  HashProject(projectPath),
		now:  time.Now,
		errw: log.New(os.Stderr, "usage: ", 0),
	}
}

// Append writes one record of the given kind. The record's Timestamp and
// PID are stamped here; any values the caller set are overwritten so a
// buggy caller cannot smuggle a raw path into the pid field.
func (s *Sink) Append(kind Kind, rec Record) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown usage kind %q", kind)
	}

	rec.Timestamp = s.now().UTC()
	rec.PID = s.pid

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal usage record: %w", err)
	}
	line = append(line, '\n')

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create usage dir: %w", err)
	}

	path := filepath.Join(s.dir, s.fileName(kind, rec.Timestamp))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open usage file: %w", err)
	}
	defer f.Close()

	// One write per line: O_APPEND keeps concurrent hook processes from
	// interleaving partial records.
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append usage record: %w", err)
	}
	return nil
}

// Try appends a record and swallows any failure after logging it. Handlers
// use this form so a dead disk cannot change their response to the host.
func (s *Sink) Try(kind Kind, rec Record) {
	if err := s.Append(kind, rec); err != nil {
		s.errw.Printf("append %s record: %v", kind, err)
	}
}

// fileName returns the calendar-rotated file name for a record, e.g.
// "hook-2026-08.jsonl".
func (s *Sink) fileName(kind Kind, ts time.Time) string {
	return fmt.Sprintf("%s-%s.jsonl", kind, ts.Format("2006-01"))
}

package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Run statuses.
const (
	RunActive    = "active"
	RunCompleted = "completed"
	RunAbandoned = "abandoned"
)

// ErrNotFound is returned when no run exists for the given id.
var ErrNotFound = errors.New("pipeline run not found")

// Run is one stored task run: the durable metadata plus the mutable state
// record.
type Run struct {
	RunID       string
	Task        string
	SessionID   string
	Status      string
	State       *State
	Checkpoints int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store persists pipeline runs in SQLite. All mutation goes through Mutate,
// which wraps the read-modify-write cycle in an immediate transaction so
// concurrent hook processes serialize instead of losing updates.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the pipeline database at dbPath with WAL and a
// busy timeout, and applies the schema.
func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open pipeline db: %w", err)
	}
	if _, err := db.Exec(SchemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pipeline schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database connection. Safe to call multiple times.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Create inserts a new active run with the given initial state.
func (s *Store) Create(ctx context.Context, run Run) error {
	stateJSON, err := json.Marshal(run.State)
	if err != nil {
		return fmt.Errorf("marshal pipeline state: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, task, session_id, status, state, checkpoints, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		run.RunID, run.Task, run.SessionID, RunActive, string(stateJSON), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Get loads one run by id.
func (s *Store) Get(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, task, session_id, status, state, checkpoints, created_at, updated_at
		 FROM runs WHERE run_id = ?`, runID)
	return scanRun(row)
}

// List returns runs filtered by status (empty = all), newest first.
func (s *Store) List(ctx context.Context, status string) ([]*Run, error) {
	query := `SELECT run_id, task, session_id, status, state, checkpoints, created_at, updated_at
		 FROM runs`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Mutate applies fn to a run's state inside an immediate transaction. The
// write lock is taken before the read, so two processes completing
// different phases of the same run serialize: the second sees the first's
// completion instead of overwriting it. fn returning an error rolls back.
//
// The phase event, status change, and state rewrite commit atomically; the
// state write for phase N is durable before any caller can observe N+1 as
// startable.
func (s *Store) Mutate(ctx context.Context, runID string, fn func(run *Run) error) (*Run, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	// BEGIN IMMEDIATE takes the write lock up front; database/sql's BeginTx
	// would start a deferred transaction and upgrade on first write, which
	// can deadlock-and-fail under contention instead of queueing.
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return nil, fmt.Errorf("begin immediate: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
		}
	}()

	row := conn.QueryRowContext(ctx,
		`SELECT run_id, task, session_id, status, state, checkpoints, created_at, updated_at
		 FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	if err := fn(run); err != nil {
		return nil, err
	}

	stateJSON, err := json.Marshal(run.State)
	if err != nil {
		return nil, fmt.Errorf("marshal pipeline state: %w", err)
	}
	run.UpdatedAt = time.Now().UTC()
	_, err = conn.ExecContext(ctx,
		`UPDATE runs SET status = ?, state = ?, checkpoints = ?, updated_at = ? WHERE run_id = ?`,
		run.Status, string(stateJSON), run.Checkpoints, run.UpdatedAt.Format(time.RFC3339Nano), runID)
	if err != nil {
		return nil, fmt.Errorf("update run: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return run, nil
}

// AppendEvent records one phase transition in the append-only log. Called
// inside the same logical operation as Mutate by the controller; kept as a
// separate statement because the trail is diagnostic, not authoritative.
func (s *Store) AppendEvent(ctx context.Context, runID, phaseID, event string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO phase_events (run_id, phase_id, event, created_at) VALUES (?, ?, ?, ?)`,
		runID, phaseID, event, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append phase event: %w", err)
	}
	return nil
}

// Events returns the transition trail for a run, oldest first.
func (s *Store) Events(ctx context.Context, runID string) ([]PhaseEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT phase_id, event, created_at FROM phase_events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query phase events: %w", err)
	}
	defer rows.Close()

	var events []PhaseEvent
	for rows.Next() {
		var ev PhaseEvent
		var createdAt string
		if err := rows.Scan(&ev.PhaseID, &ev.Event, &createdAt); err != nil {
			return nil, fmt.Errorf("scan phase event: %w", err)
		}
		ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// PhaseEvent is one row of the transition trail.
type PhaseEvent struct {
	PhaseID   string
	Event     string
	CreatedAt time.Time
}

// Delete removes a run and its transition trail.
func (s *Store) Delete(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM phase_events WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete phase events: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// PruneOlderThan deletes non-active runs whose last update is older than
// age, returning how many were removed. Session cleanup calls this.
func (s *Store) PruneOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-age).Format(time.RFC3339Nano)
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id FROM runs WHERE status != ? AND updated_at < ?`, RunActive, cutoff)
	if err != nil {
		return 0, fmt.Errorf("query prunable runs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// scanner abstracts sql.Row / sql.Rows for scanRun.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var stateJSON, createdAt, updatedAt string
	var sessionID sql.NullString
	err := row.Scan(&run.RunID, &run.Task, &sessionID, &run.Status, &stateJSON,
		&run.Checkpoints, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.SessionID = sessionID.String

	run.State = &State{}
	if err := json.Unmarshal([]byte(stateJSON), run.State); err != nil {
		return nil, fmt.Errorf("parse pipeline state: %w", err)
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	run.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &run, nil
}

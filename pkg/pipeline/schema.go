package pipeline

// SchemaDDL defines the SQLite schema for the pipeline state store.
// Tables: runs (one row per multi-phase task run), phase_events (append-only
// transition log). Execute against a SQLite database with: db.Exec(SchemaDDL)
const SchemaDDL = `
-- One row per multi-phase task run. The state column holds the full
-- pipeline record (completed/current/remaining phases + context summary)
-- as JSON; it is rewritten inside a single transaction on every phase
-- transition, never batched.
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    task TEXT NOT NULL,
    session_id TEXT,
    status TEXT NOT NULL DEFAULT 'active',
    state TEXT NOT NULL,
    checkpoints INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

-- Append-only phase transition log: a human- and tool-inspectable trail of
-- every started/completed/restarted/resumed transition, independent of the
-- mutable state column.
CREATE TABLE IF NOT EXISTS phase_events (
    id INTEGER PRIMARY KEY,
    run_id TEXT NOT NULL,
    phase_id TEXT NOT NULL,
    event TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_phase_events_run ON phase_events(run_id);
`

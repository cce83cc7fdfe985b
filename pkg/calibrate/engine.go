package calibrate

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// CleanupTask is one unit of mandatory session-end housekeeping: clearing
// transient session state, pruning old pipeline records, pruning old task
// records. Cleanup is independent of calibration and runs even when
// calibration is disabled or every calibration stage fails.
type CleanupTask struct {
	Name string
	Run  func() error
}

// Engine drives calibration at session boundaries.
type Engine struct {
	store   *Store
	enabled bool

	halfLife  time.Duration
	retention time.Duration

	now  func() time.Time // injectable for decay tests
	errw *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithEnabled toggles calibration. Disabling it skips the load/decay/save
// batch but never the cleanup tasks.
func WithEnabled(enabled bool) Option {
	return func(e *Engine) { e.enabled = enabled }
}

// WithHalfLife overrides the decay half-life.
func WithHalfLife(d time.Duration) Option {
	return func(e *Engine) { e.halfLife = d }
}

// WithRetention overrides how long raw dispatch records are kept.
func WithRetention(d time.Duration) Option {
	return func(e *Engine) { e.retention = d }
}

// WithClock overrides the engine's clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithErrorLog redirects the engine's degraded-state diagnostics.
func WithErrorLog(w io.Writer) Option {
	return func(e *Engine) { e.errw = log.New(w, "calibrate: ", 0) }
}

// NewEngine creates an engine over the given store. Calibration is enabled
// by default.
func NewEngine(store *Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		enabled:   true,
		halfLife:  DefaultHalfLife,
		retention: DefaultRetention,
		now:       time.Now,
		errw:      log.New(os.Stderr, "calibrate: ", 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RecordDispatch appends one dispatch outcome under the store lock. Called
// from the subagent-stop handler; failures are logged and swallowed so the
// handler's response to the host is unchanged.
func (e *Engine) RecordDispatch(agent string, success bool, duration time.Duration) {
	if !e.enabled || agent == "" {
		return
	}
	err := e.store.Update(func(rec *Record) error {
		rec.Records = append(rec.Records, DispatchRecord{
			Timestamp:  e.now().UTC(),
			Agent:      agent,
			Success:    success,
			DurationMS: duration.Milliseconds(),
		})
		return nil
	})
	if err != nil {
		e.errw.Printf("record dispatch for %s: %v", agent, err)
	}
}

// SessionEnd runs the end-of-session batch: load, decay + recompute, save —
// then the mandatory cleanup tasks. Every sub-step failure is caught and
// logged with a stage-distinguishable message; nothing propagates to the
// caller, whose external contract is silent success regardless.
func (e *Engine) SessionEnd(cleanup []CleanupTask) {
	if e.enabled {
		e.recalibrate()
	}

	for _, task := range cleanup {
		if task.Run == nil {
			continue
		}
		if err := task.Run(); err != nil {
			e.errw.Printf("cleanup %s: %v (continuing)", task.Name, err)
		}
	}
}

// recalibrate performs the load → decay → save batch, degrading stage by
// stage: a corrupt load resets to the neutral baseline, a decay panic is
// contained, a failed save leaves the previous store in place.
func (e *Engine) recalibrate() {
	unlock, err := e.store.lock()
	if err != nil {
		e.errw.Printf("calibration lock: %v (skipping recompute)", err)
		return
	}
	defer unlock()

	rec, err := e.store.Load()
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			e.errw.Printf("calibration load: %v (reset to neutral baseline)", err)
		} else {
			e.errw.Printf("calibration load: %v (using neutral baseline)", err)
		}
	}

	if err := e.decay(rec); err != nil {
		e.errw.Printf("calibration decay: %v (keeping undecayed record)", err)
	}

	if err := e.store.Save(rec); err != nil {
		e.errw.Printf("calibration save: %v (previous store retained)", err)
	}
}

// decay runs the batch recompute, containing any panic from malformed data.
func (e *Engine) decay(rec *Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recompute panic: %v", r)
		}
	}()
	rec.Recompute(e.now().UTC(), e.halfLife, e.retention)
	return nil
}

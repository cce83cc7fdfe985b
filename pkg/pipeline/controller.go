package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
)

// DefaultCheckpointInterval is N in "mini-checkpoint every N completed
// phases".
const DefaultCheckpointInterval = 3

// Phase transition event names recorded in the trail.
const (
	EventStarted   = "started"
	EventCompleted = "completed"
	EventRestarted = "restarted"
	EventResumed   = "resumed"
	EventAbandoned = "abandoned"
)

// Checkpointer writes the coarse-grained recovery snapshots that accompany
// the per-phase state writes. Implementations must be safe to call from
// concurrent processes; the file checkpointer achieves this by writing a
// sequence-numbered file per snapshot.
type Checkpointer interface {
	Write(run *Run, seq int) error
}

// Controller drives the phase state machine over the store: it linearizes
// phase completions, persists state immediately on every transition, and
// triggers a mini-checkpoint every N completed phases.
type Controller struct {
	store      *Store
	checkpoint Checkpointer
	interval   int

	now  func() time.Time
	errw *log.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithCheckpointer sets the mini-checkpoint writer. Without one, only the
// per-phase state writes happen.
func WithCheckpointer(cp Checkpointer) ControllerOption {
	return func(c *Controller) { c.checkpoint = cp }
}

// WithInterval sets N for the every-N-completed-phases checkpoint trigger.
func WithInterval(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.interval = n
		}
	}
}

// WithClock overrides the controller's clock.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// WithErrorLog redirects degraded-state diagnostics.
func WithErrorLog(w io.Writer) ControllerOption {
	return func(c *Controller) { c.errw = log.New(w, "pipeline: ", 0) }
}

// NewController creates a controller over the store.
func NewController(store *Store, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:    store,
		interval: DefaultCheckpointInterval,
		now:      time.Now,
		errw:     log.New(os.Stderr, "pipeline: ", 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Begin creates a new run from a planned phase list. Phases are reordered
// by the recovery-cost policy (hard-to-redo work first) within dependency
// constraints before the run is persisted.
func (c *Controller) Begin(ctx context.Context, task, sessionID string, phases []Phase) (*Run, error) {
	if len(phases) == 0 {
		return nil, fmt.Errorf("begin run: no phases")
	}
	run := Run{
		RunID:     uuid.New().String(),
		Task:      task,
		SessionID: sessionID,
		Status:    RunActive,
		State:     NewState(OrderPhases(phases), c.now().UTC()),
	}
	if err := c.store.Create(ctx, run); err != nil {
		return nil, err
	}
	return c.store.Get(ctx, run.RunID)
}

// StartPhase marks an eligible phase in_progress and persists immediately.
func (c *Controller) StartPhase(ctx context.Context, runID, phaseID string) (*Run, error) {
	run, err := c.store.Mutate(ctx, runID, func(run *Run) error {
		if run.Status != RunActive {
			return fmt.Errorf("run %s is %s", runID, run.Status)
		}
		return run.State.Start(phaseID, c.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	c.logEvent(ctx, runID, phaseID, EventStarted)
	return run, nil
}

// CompletePhase records a phase completion. The state write commits before
// this returns, so phase N is durable before anything can treat N+1 as
// startable. Completions of concurrently running phases land in arrival
// order; each is validated against the dependency sets only, never against
// declaration order.
//
// Every interval-th completion also writes a mini-checkpoint. The trigger
// is purely the completed-phase count — a run two phases from done still
// checkpoints on schedule.
func (c *Controller) CompletePhase(ctx context.Context, runID, phaseID string) (*Run, error) {
	checkpointSeq := 0
	run, err := c.store.Mutate(ctx, runID, func(run *Run) error {
		if run.Status != RunActive {
			return fmt.Errorf("run %s is %s", runID, run.Status)
		}
		if err := run.State.Complete(phaseID, c.now().UTC()); err != nil {
			return err
		}
		if run.State.Done() {
			run.Status = RunCompleted
		}
		if len(run.State.CompletedPhases)%c.interval == 0 {
			run.Checkpoints++
			checkpointSeq = run.Checkpoints
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logEvent(ctx, runID, phaseID, EventCompleted)

	if checkpointSeq > 0 && c.checkpoint != nil {
		// Snapshot failure degrades the recovery trail, not the run.
		if err := c.checkpoint.Write(run, checkpointSeq); err != nil {
			c.errw.Printf("mini-checkpoint %d for run %s: %v", checkpointSeq, runID, err)
		}
	}
	return run, nil
}

// ResumeAction is one choice offered when an interrupted run is found.
type ResumeAction string

// Resume actions. Assess never picks one itself; the decision is always
// surfaced to the caller.
const (
	ActionResume  ResumeAction = "resume"
	ActionRestart ResumeAction = "restart"
	ActionAbandon ResumeAction = "abandon"
)

// ResumeDecision describes an interrupted run and the choices available.
type ResumeDecision struct {
	Run     *Run
	Actions []ResumeAction
}

// Assess looks up an active run and returns the resume decision for the
// caller to surface. A finished or missing run returns ErrNotFound.
func (c *Controller) Assess(ctx context.Context, runID string) (*ResumeDecision, error) {
	run, err := c.store.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != RunActive {
		return nil, fmt.Errorf("%w: run %s is %s", ErrNotFound, runID, run.Status)
	}
	d := &ResumeDecision{Run: run, Actions: []ResumeAction{ActionResume, ActionAbandon}}
	if len(run.State.CompletedPhases) > 0 {
		d.Actions = []ResumeAction{ActionResume, ActionRestart, ActionAbandon}
	}
	return d, nil
}

// Resume marks the current phase in_progress and records the resumption.
func (c *Controller) Resume(ctx context.Context, runID string) (*Run, error) {
	var phaseID string
	run, err := c.store.Mutate(ctx, runID, func(run *Run) error {
		if run.Status != RunActive {
			return fmt.Errorf("run %s is %s", runID, run.Status)
		}
		if run.State.CurrentPhase == nil {
			return fmt.Errorf("run %s has no startable phase", runID)
		}
		phaseID = run.State.CurrentPhase.ID
		return run.State.Start(phaseID, c.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	c.logEvent(ctx, runID, phaseID, EventResumed)
	return run, nil
}

// RestartPhase moves a completed phase back to pending, for when its output
// was lost or wrong despite being recorded as done.
func (c *Controller) RestartPhase(ctx context.Context, runID, phaseID string) (*Run, error) {
	run, err := c.store.Mutate(ctx, runID, func(run *Run) error {
		if run.Status != RunActive {
			return fmt.Errorf("run %s is %s", runID, run.Status)
		}
		return run.State.Restart(phaseID, c.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	c.logEvent(ctx, runID, phaseID, EventRestarted)
	return run, nil
}

// Abandon marks a run abandoned. Its record survives until pruned.
func (c *Controller) Abandon(ctx context.Context, runID string) error {
	_, err := c.store.Mutate(ctx, runID, func(run *Run) error {
		run.Status = RunAbandoned
		return nil
	})
	if err != nil {
		return err
	}
	c.logEvent(ctx, runID, "", EventAbandoned)
	return nil
}

// logEvent appends to the diagnostic trail; failures are logged, never
// propagated, because the trail is not authoritative.
func (c *Controller) logEvent(ctx context.Context, runID, phaseID, event string) {
	if err := c.store.AppendEvent(ctx, runID, phaseID, event); err != nil {
		c.errw.Printf("append %s event for run %s: %v", event, runID, err)
	}
}

// Package pipeline implements the checkpoint/resume state machine for long
// multi-phase agent tasks. A run's state is persisted to SQLite immediately
// after every phase transition, so an interruption (rate limit, crash) loses
// at most the phase in flight; every N completed phases an additional
// human-inspectable recovery snapshot is written.
//
// Several hook processes may complete phases of the same run concurrently.
// The store serializes each read-modify-write in an immediate transaction,
// so two disjoint phases completing near-simultaneously both land — the
// explicit alternative to last-write-wins.
package pipeline

import (
	"fmt"
	"time"
)

// PhaseStatus is one state of the phase machine.
type PhaseStatus string

// Phase states. The only legal transitions are pending → in_progress and
// in_progress → completed; an explicit operator restart moves a phase back
// to pending.
const (
	PhasePending    PhaseStatus = "pending"
	PhaseInProgress PhaseStatus = "in_progress"
	PhaseCompleted  PhaseStatus = "completed"
)

// RecoveryCost classifies how painful a phase is to redo after an
// interruption. It drives the planning-time ordering policy: hard-to-redo
// work (externally visible side effects such as issue creation or commits)
// runs before work cheaply reconstructed from context.
type RecoveryCost string

// Recovery cost classes.
const (
	RecoveryHard RecoveryCost = "hard"
	RecoveryEasy RecoveryCost = "easy"
)

// Phase is one unit of a multi-phase task.
type Phase struct {
	ID          string       `json:"id"`
	Title       string       `json:"title,omitempty"`
	Status      PhaseStatus  `json:"status"`
	BlockedBy   []string     `json:"blocked_by,omitempty"`
	Recovery    RecoveryCost `json:"recovery,omitempty"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// State is the mutable pipeline record for one run. CompletedPhases only
// grows during normal operation; CurrentPhase is always the next unit of
// work; RemainingPhases holds everything not yet completed, in planned
// order.
type State struct {
	CompletedPhases []Phase           `json:"completed_phases"`
	CurrentPhase    *Phase            `json:"current_phase,omitempty"`
	RemainingPhases []Phase           `json:"remaining_phases"`
	ContextSummary  map[string]string `json:"context_summary,omitempty"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// NewState builds the initial record from a planned phase list.
func NewState(phases []Phase, now time.Time) *State {
	s := &State{
		CompletedPhases: []Phase{},
		RemainingPhases: make([]Phase, len(phases)),
		UpdatedAt:       now,
	}
	for i, p := range phases {
		if p.Status == "" {
			p.Status = PhasePending
		}
		s.RemainingPhases[i] = p
	}
	s.advance()
	return s
}

// Done reports whether every phase has completed.
func (s *State) Done() bool {
	return len(s.RemainingPhases) == 0
}

// IsCompleted reports whether the phase with the given id has completed.
func (s *State) IsCompleted(phaseID string) bool {
	for _, p := range s.CompletedPhases {
		if p.ID == phaseID {
			return true
		}
	}
	return false
}

// Eligible returns the remaining phases whose dependency sets are fully
// completed, in planned order. Phases with disjoint dependencies may be
// eligible simultaneously; the controller accepts their completions in
// whichever order they arrive.
func (s *State) Eligible() []Phase {
	var out []Phase
	for _, p := range s.RemainingPhases {
		if s.depsSatisfied(p) {
			out = append(out, p)
		}
	}
	return out
}

// Start marks an eligible phase in_progress.
func (s *State) Start(phaseID string, now time.Time) error {
	p := s.remaining(phaseID)
	if p == nil {
		if s.IsCompleted(phaseID) {
			return fmt.Errorf("phase %s already completed", phaseID)
		}
		return fmt.Errorf("unknown phase %s", phaseID)
	}
	if !s.depsSatisfied(*p) {
		return fmt.Errorf("phase %s blocked by %v", phaseID, s.unmetDeps(*p))
	}
	p.Status = PhaseInProgress
	t := now
	p.StartedAt = &t
	s.UpdatedAt = now
	s.advance()
	return nil
}

// Complete moves a phase to the completed list. The phase's dependencies
// must all be completed; the phase itself need not have been explicitly
// started (a runner may report only completions).
func (s *State) Complete(phaseID string, now time.Time) error {
	if s.IsCompleted(phaseID) {
		return fmt.Errorf("phase %s already completed", phaseID)
	}
	p := s.remaining(phaseID)
	if p == nil {
		return fmt.Errorf("unknown phase %s", phaseID)
	}
	if !s.depsSatisfied(*p) {
		return fmt.Errorf("phase %s blocked by %v", phaseID, s.unmetDeps(*p))
	}

	done := *p
	done.Status = PhaseCompleted
	t := now
	done.CompletedAt = &t
	s.CompletedPhases = append(s.CompletedPhases, done)

	kept := s.RemainingPhases[:0]
	for _, rp := range s.RemainingPhases {
		if rp.ID != phaseID {
			kept = append(kept, rp)
		}
	}
	s.RemainingPhases = kept

	s.UpdatedAt = now
	s.advance()
	return nil
}

// Restart moves a completed phase back to the head of the remaining list as
// pending. This is an explicit operator decision surfaced by the resume
// flow, the one sanctioned exception to append-only completions.
func (s *State) Restart(phaseID string, now time.Time) error {
	idx := -1
	for i, p := range s.CompletedPhases {
		if p.ID == phaseID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("phase %s is not completed", phaseID)
	}

	p := s.CompletedPhases[idx]
	p.Status = PhasePending
	p.StartedAt = nil
	p.CompletedAt = nil
	s.CompletedPhases = append(s.CompletedPhases[:idx], s.CompletedPhases[idx+1:]...)
	s.RemainingPhases = append([]Phase{p}, s.RemainingPhases...)
	s.UpdatedAt = now
	s.advance()
	return nil
}

// advance recomputes CurrentPhase: the first in_progress phase if any,
// otherwise the first eligible pending phase.
func (s *State) advance() {
	s.CurrentPhase = nil
	for i := range s.RemainingPhases {
		if s.RemainingPhases[i].Status == PhaseInProgress {
			s.CurrentPhase = &s.RemainingPhases[i]
			return
		}
	}
	for i := range s.RemainingPhases {
		if s.depsSatisfied(s.RemainingPhases[i]) {
			s.CurrentPhase = &s.RemainingPhases[i]
			return
		}
	}
}

func (s *State) remaining(phaseID string) *Phase {
	for i := range s.RemainingPhases {
		if s.RemainingPhases[i].ID == phaseID {
			return &s.RemainingPhases[i]
		}
	}
	return nil
}

// depsSatisfied treats a dependency as met when it has completed or when it
// names a phase outside this run (consistent with OrderPhases).
func (s *State) depsSatisfied(p Phase) bool {
	return len(s.unmetDeps(p)) == 0
}

func (s *State) unmetDeps(p Phase) []string {
	var out []string
	for _, dep := range p.BlockedBy {
		if !s.IsCompleted(dep) && s.remaining(dep) != nil {
			out = append(out, dep)
		}
	}
	return out
}

// OrderPhases returns the phases in execution-plan order: a topological
// sort over BlockedBy where, among simultaneously ready phases,
// hard-to-recover work is scheduled before cheaply redone work and
// declaration order breaks ties. Phases in a dependency cycle are appended
// in declaration order at the end so planning never drops work.
func OrderPhases(phases []Phase) []Phase {
	byID := make(map[string]int, len(phases))
	for i, p := range phases {
		byID[p.ID] = i
	}

	indegree := make([]int, len(phases))
	dependents := make(map[int][]int)
	for i, p := range phases {
		for _, dep := range p.BlockedBy {
			j, ok := byID[dep]
			if !ok {
				continue // dep outside this plan; treated as satisfied
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	scheduled := make([]bool, len(phases))
	out := make([]Phase, 0, len(phases))
	for len(out) < len(phases) {
		pick := -1
		for i, p := range phases {
			if scheduled[i] || indegree[i] > 0 {
				continue
			}
			if pick == -1 {
				pick = i
				continue
			}
			// Hard-recovery work preempts easy-recovery work; otherwise
			// declaration order stands.
			if p.Recovery == RecoveryHard && phases[pick].Recovery != RecoveryHard {
				pick = i
			}
		}
		if pick == -1 {
			// Cycle: emit whatever is left in declaration order.
			for i, p := range phases {
				if !scheduled[i] {
					out = append(out, p)
					scheduled[i] = true
				}
			}
			break
		}
		out = append(out, phases[pick])
		scheduled[pick] = true
		for _, dep := range dependents[pick] {
			indegree[dep]--
		}
	}
	return out
}

// Package usage implements the append-only local usage log. Every component
// of the runtime writes through it: one JSONL line per record, partitioned
// by record kind, rotated by calendar month.
//
// Privacy contract: a record carries a timestamp and an irreversible hashed
// project identifier, never a raw filesystem path, username, environment
// value, or file content. Agent, skill, and hook names are not sensitive
// and are logged verbatim.
package usage

import (
	"time"
)

// Kind partitions the usage log into separate file families.
type Kind string

// Usage record kinds.
const (
	KindAgent Kind = "agent" // sub-agent dispatches
	KindSkill Kind = "skill" // skill activations
	KindHook  Kind = "hook"  // hook timing
	KindTask  Kind = "task"  // multi-phase task progress
	KindTeam  Kind = "team"  // parallel task-runner activity
)

// Kinds lists every record kind, in display order.
var Kinds = []Kind{KindAgent, KindSkill, KindHook, KindTask, KindTeam}

// Valid reports whether k is a known record kind.
func (k Kind) Valid() bool {
	switch k {
	case KindAgent, KindSkill, KindHook, KindTask, KindTeam:
		return true
	}
	return false
}

// Record is one immutable usage-log line. Timestamp and PID are stamped by
// the sink; callers fill only the fields that apply to their kind.
type Record struct {
	Timestamp time.Time `json:"ts"`
	PID       string    `json:"pid"` // hashed project identifier, never a path

	Name       string `json:"name,omitempty"`     // agent/skill/hook name, verbatim
	Event      string `json:"event,omitempty"`    // event name for hook-timing records
	SessionID  string `json:"session,omitempty"`  // host session identifier
	DurationMS int64  `json:"ms,omitempty"`       // wall time where measured
	Success    *bool  `json:"ok,omitempty"`       // dispatch outcome, when known
	Decision   string `json:"decision,omitempty"` // allow/deny for gating records
	Phase      string `json:"phase,omitempty"`    // pipeline phase for task records
	Count      int    `json:"count,omitempty"`    // batch size for team records
}

// Bool returns a pointer for Record.Success literals.
func Bool(v bool) *bool { return &v }

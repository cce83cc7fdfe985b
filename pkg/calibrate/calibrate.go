// Package calibrate tracks the historical outcome of automated sub-agent
// dispatches and maintains decayed adjustment factors that bias future
// routing. Outcomes are appended during a session; at session end the full
// record is loaded, decayed, summarized, and saved in one batch recompute.
//
// The store is a single JSON file guarded by an advisory lock file, because
// several hook processes may reach session end near-simultaneously and no
// in-memory mutex can span separate invocations.
package calibrate

import (
	"math"
	"sort"
	"time"
)

// Neutral is the adjustment factor that applies no bias.
const Neutral = 1.0

// DefaultHalfLife is the age at which a record's influence on an adjustment
// factor has decayed to half.
const DefaultHalfLife = 14 * 24 * time.Hour

// DefaultRetention bounds how long raw dispatch records are kept before the
// batch recompute drops them.
const DefaultRetention = 30 * 24 * time.Hour

// DispatchRecord is one observed sub-agent dispatch outcome.
type DispatchRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Agent      string    `json:"agent"`
	Success    bool      `json:"success"`
	DurationMS int64     `json:"duration_ms,omitempty"`
}

// Adjustment is a decayed routing weight for one agent. Factor trends
// toward Neutral as the contributing records age; it is recomputed from the
// records on every load, never accumulated.
type Adjustment struct {
	Agent  string  `json:"agent"`
	Factor float64 `json:"factor"`
}

// AgentStat summarizes one agent's dispatch history.
type AgentStat struct {
	Agent       string  `json:"agent"`
	Dispatches  int     `json:"dispatches"`
	SuccessRate float64 `json:"successRate"`
}

// Stats is the aggregate summary persisted alongside the raw records.
type Stats struct {
	TotalDispatches int         `json:"totalDispatches"`
	SuccessRate     float64     `json:"successRate"`
	TopAgents       []AgentStat `json:"topAgents,omitempty"`
}

// Record is the full durable calibration state: raw dispatch outcomes, the
// derived adjustments, and the aggregate stats.
type Record struct {
	Records     []DispatchRecord `json:"records"`
	Adjustments []Adjustment     `json:"adjustments"`
	Stats       Stats            `json:"stats"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NewRecord returns the neutral baseline: no history, no bias. Corrupt or
// empty stores reset to this rather than failing.
func NewRecord() *Record {
	return &Record{
		Records:     []DispatchRecord{},
		Adjustments: []Adjustment{},
	}
}

// Recompute derives adjustments and stats from the raw records as of now,
// dropping records older than retention. This is the batch recompute run at
// session end: the previous adjustments are discarded, not merged.
func (r *Record) Recompute(now time.Time, halfLife, retention time.Duration) {
	if halfLife <= 0 {
		halfLife = DefaultHalfLife
	}
	if retention <= 0 {
		retention = DefaultRetention
	}

	kept := r.Records[:0]
	for _, rec := range r.Records {
		if now.Sub(rec.Timestamp) <= retention {
			kept = append(kept, rec)
		}
	}
	r.Records = kept

	type agg struct {
		total   int
		success int
		latest  time.Time
	}
	perAgent := make(map[string]*agg)
	totalSuccess := 0
	for _, rec := range r.Records {
		a := perAgent[rec.Agent]
		if a == nil {
			a = &agg{}
			perAgent[rec.Agent] = a
		}
		a.total++
		if rec.Success {
			a.success++
			totalSuccess++
		}
		if rec.Timestamp.After(a.latest) {
			a.latest = rec.Timestamp
		}
	}

	r.Adjustments = r.Adjustments[:0]
	for agent, a := range perAgent {
		r.Adjustments = append(r.Adjustments, Adjustment{
			Agent:  agent,
			Factor: decayedFactor(a.success, a.total, now.Sub(a.latest), halfLife),
		})
	}
	sort.Slice(r.Adjustments, func(i, j int) bool {
		return r.Adjustments[i].Agent < r.Adjustments[j].Agent
	})

	r.Stats = Stats{TotalDispatches: len(r.Records)}
	if len(r.Records) > 0 {
		r.Stats.SuccessRate = float64(totalSuccess) / float64(len(r.Records))
	}
	for agent, a := range perAgent {
		r.Stats.TopAgents = append(r.Stats.TopAgents, AgentStat{
			Agent:       agent,
			Dispatches:  a.total,
			SuccessRate: float64(a.success) / float64(a.total),
		})
	}
	sort.Slice(r.Stats.TopAgents, func(i, j int) bool {
		a, b := r.Stats.TopAgents[i], r.Stats.TopAgents[j]
		if a.SuccessRate != b.SuccessRate {
			return a.SuccessRate > b.SuccessRate
		}
		if a.Dispatches != b.Dispatches {
			return a.Dispatches > b.Dispatches
		}
		return a.Agent < b.Agent
	})
	if len(r.Stats.TopAgents) > 5 {
		r.Stats.TopAgents = r.Stats.TopAgents[:5]
	}

	r.UpdatedAt = now
}

// Factor returns the current adjustment factor for an agent, Neutral if the
// agent has no history.
func (r *Record) Factor(agent string) float64 {
	for _, adj := range r.Adjustments {
		if adj.Agent == agent {
			return adj.Factor
		}
	}
	return Neutral
}

// decayedFactor computes an agent's adjustment. The raw bias maps success
// rate into [0.5, 1.5] (1.0 at a 50% success rate), then exponential decay
// pulls it toward Neutral as the most recent contributing record ages.
func decayedFactor(success, total int, age, halfLife time.Duration) float64 {
	if total == 0 {
		return Neutral
	}
	rawBias := 0.5 + float64(success)/float64(total)
	if age < 0 {
		age = 0
	}
	weight := math.Exp2(-age.Hours() / halfLife.Hours())
	return Neutral + (rawBias-Neutral)*weight
}

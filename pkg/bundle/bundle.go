// Package bundle implements the event-dispatch core: the router that maps
// an event name prefix to a handler bundle, the static blocking/non-blocking
// execution contract per category, and the dispatcher that runs matching
// handlers with per-handler failure isolation.
//
// Design: fail-open. An unknown bundle, a missing handler, or a handler
// blowing up must never block the host — every such path resolves to the
// silent-success response and exit code 0. The only way to block an action
// is an explicit deny from a handler in a blocking category.
package bundle

import (
	"fmt"
)

// Category identifies one handler bundle by its event-name prefix.
type Category string

// The fixed bundle set.
const (
	PostTool     Category = "post-tool"
	PreTool      Category = "pre-tool"
	Lifecycle    Category = "lifecycle"
	Stop         Category = "stop"
	SubagentStop Category = "subagent-stop"
	Notification Category = "notification"
	Permission   Category = "permission"
	Setup        Category = "setup"
	Prompt       Category = "prompt"
)

// Categories lists every bundle, in display order.
var Categories = []Category{
	PostTool, PreTool, Lifecycle, Stop, SubagentStop,
	Notification, Permission, Setup, Prompt,
}

// Mode is a category's execution contract with the host.
type Mode string

// Execution modes. Blocking categories run synchronously: the host waits
// for the response and honors a deny. NonBlocking categories are
// fire-and-forget: the host launches the process and moves on.
const (
	Blocking    Mode = "blocking"
	NonBlocking Mode = "non-blocking"
)

// Contract is the static execution contract of one category, fixed at
// configuration time — never decided per dispatch.
type Contract struct {
	Mode Mode

	// CanDeny marks categories whose handlers may veto an action. A
	// CanDeny category must be Blocking: a race between "host proceeded"
	// and "handler denied" is unacceptable.
	CanDeny bool

	// DefaultAllow is the explicit fallback decision for blocking
	// categories when no handler voices an opinion (including when every
	// handler failed). Error fallthrough never chooses it implicitly.
	DefaultAllow bool
}

// contracts is the shipped execution-contract table.
var contracts = map[Category]Contract{
	PreTool:      {Mode: Blocking, CanDeny: true, DefaultAllow: true},
	Permission:   {Mode: Blocking, CanDeny: true, DefaultAllow: true},
	PostTool:     {Mode: NonBlocking},
	Lifecycle:    {Mode: NonBlocking},
	Stop:         {Mode: NonBlocking},
	SubagentStop: {Mode: NonBlocking},
	Notification: {Mode: NonBlocking},
	Setup:        {Mode: NonBlocking},
	Prompt:       {Mode: NonBlocking},
}

// ContractFor returns the execution contract of a category.
func ContractFor(cat Category) (Contract, bool) {
	c, ok := contracts[cat]
	return c, ok
}

// ValidateContracts checks a contract table for the one configuration error
// that cannot be tolerated at runtime: a denial-capable category marked
// non-blocking. Run once at load time, and by tests against the shipped
// table.
func ValidateContracts(table map[Category]Contract) error {
	for cat, c := range table {
		if c.CanDeny && c.Mode != Blocking {
			return fmt.Errorf("category %s can deny but is marked %s", cat, c.Mode)
		}
	}
	return nil
}

// ShippedContracts returns a copy of the built-in table, for validation and
// for emitting host hook configuration.
func ShippedContracts() map[Category]Contract {
	out := make(map[Category]Contract, len(contracts))
	for k, v := range contracts {
		out[k] = v
	}
	return out
}

package bundle

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"

	"ork/pkg/hook"
)

// Outcome is a handler's tagged result: either an opinion (a response the
// dispatcher should fold in) or explicit silence. Handlers communicate only
// through values — an error or panic counts as no opinion, never as a
// decision in either direction.
type Outcome struct {
	Opinion  bool
	Response hook.Response
}

// NoOpinion is the silent outcome.
func NoOpinion() Outcome { return Outcome{} }

// Respond wraps a response as an opinionated outcome.
func Respond(resp hook.Response) Outcome {
	return Outcome{Opinion: true, Response: resp}
}

// HandlerFunc is one handler's business logic.
type HandlerFunc func(ctx context.Context, ev hook.Event) (Outcome, error)

// registration binds a handler function to its bundle, id, and tool-name
// matcher.
type registration struct {
	id      string
	matcher string
	fn      HandlerFunc
}

// Registry holds every registered handler, grouped by bundle. Registration
// order within a bundle is execution order.
type Registry struct {
	bundles map[Category][]registration
	errw    *log.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bundles: make(map[Category][]registration),
		errw:    log.New(os.Stderr, "dispatch: ", 0),
	}
}

// SetErrorLog redirects handler-failure diagnostics (stderr by default;
// never stdout, which belongs to the wire).
func (r *Registry) SetErrorLog(w io.Writer) {
	r.errw = log.New(w, "dispatch: ", 0)
}

// Register adds a handler to a bundle. matcher is a path.Match pattern
// tested against the event's tool name; empty matches every event. Multiple
// registrations may share a handler id with overlapping matchers.
func (r *Registry) Register(cat Category, id, matcher string, fn HandlerFunc) {
	r.bundles[cat] = append(r.bundles[cat], registration{id: id, matcher: matcher, fn: fn})
}

// Unregister removes every registration with the given bundle and id.
// Bundle configuration uses this to disable shipped handlers.
func (r *Registry) Unregister(cat Category, id string) {
	regs := r.bundles[cat]
	kept := regs[:0]
	for _, reg := range regs {
		if reg.id != id {
			kept = append(kept, reg)
		}
	}
	r.bundles[cat] = kept
}

// SetMatcher replaces the tool-name pattern on every registration with the
// given bundle and id. Bundle configuration uses this to widen or narrow a
// shipped handler without touching its logic.
func (r *Registry) SetMatcher(cat Category, id, matcher string) {
	regs := r.bundles[cat]
	for i := range regs {
		if regs[i].id == id {
			regs[i].matcher = matcher
		}
	}
}

// Handlers returns the distinct handler ids registered in a bundle, in
// registration order.
func (r *Registry) Handlers(cat Category) []string {
	var ids []string
	seen := map[string]bool{}
	for _, reg := range r.bundles[cat] {
		if !seen[reg.id] {
			seen[reg.id] = true
			ids = append(ids, reg.id)
		}
	}
	return ids
}

// Dispatch resolves eventName and runs the matching handlers against the
// event, producing exactly one response. Unknown prefixes, unknown handler
// ids, and events whose tool name matches nothing all yield silent success.
//
// Handlers run in registration order. Each invocation is isolated: an error
// or panic is logged and treated as no opinion, and sibling handlers still
// run. For blocking categories the category's explicit default stands until
// a handler voices an opinion; a deny, once voiced, is not overridden by a
// later allow.
func (r *Registry) Dispatch(ctx context.Context, eventName string, ev hook.Event) hook.Response {
	cat, handlerID, ok := Route(eventName)
	if !ok {
		return hook.Silent()
	}

	var matched []registration
	for _, reg := range r.bundles[cat] {
		if reg.id != handlerID {
			continue
		}
		if !matches(reg.matcher, ev.ToolName) {
			continue
		}
		matched = append(matched, reg)
	}
	if len(matched) == 0 {
		return hook.Silent()
	}

	contract := contracts[cat]
	resp := hook.Silent()
	decided := false
	denied := false

	for _, reg := range matched {
		outcome, err := r.invoke(ctx, reg, ev)
		if err != nil {
			r.errw.Printf("%s/%s: %v (treated as no opinion)", cat, reg.id, err)
			continue
		}
		if !outcome.Opinion || denied {
			continue
		}
		resp = outcome.Response
		decided = true
		if outcome.Response.PermissionDecision == hook.DecisionDeny || !outcome.Response.Continue {
			denied = true
		}
	}

	if !decided && contract.Mode == Blocking {
		// No handler had an opinion: the category's explicit default
		// applies. DefaultAllow=false would surface as an intentional deny
		// here, never by accident.
		if contract.CanDeny && !contract.DefaultAllow {
			return hook.Deny(fmt.Sprintf("%s: no handler approved (default deny)", cat))
		}
		return hook.Silent()
	}
	return resp
}

// invoke runs one handler, converting a panic into an error at the
// dispatcher boundary so nothing raised ever crosses it.
func (r *Registry) invoke(ctx context.Context, reg registration, ev hook.Event) (outcome Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = NoOpinion()
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return reg.fn(ctx, ev)
}

// matches tests a tool-name pattern. An empty pattern matches everything,
// including events that carry no tool name. A malformed pattern matches
// nothing (fail-open for the event, closed for the pattern).
func matches(pattern, toolName string) bool {
	if pattern == "" {
		return true
	}
	ok, err := path.Match(pattern, toolName)
	return err == nil && ok
}

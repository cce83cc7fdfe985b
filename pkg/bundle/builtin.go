package bundle

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"ork/pkg/calibrate"
	"ork/pkg/hook"
	"ork/pkg/pipeline"
	"ork/pkg/usage"
)

// Deps carries the stores the shipped handlers write through. Any nil field
// disables the handlers that need it.
type Deps struct {
	Usage       *usage.Sink
	Calibration *calibrate.Engine
	Pipeline    *pipeline.Controller
	Cleanup     []calibrate.CleanupTask
}

// DefaultRegistry builds the shipped bundle set wired to deps.
func DefaultRegistry(deps Deps) *Registry {
	r := NewRegistry()

	if deps.Usage != nil {
		r.Register(PostTool, "track-usage", "", trackUsage(deps.Usage))
		r.Register(Lifecycle, "session-start", "", sessionStart(deps.Usage))
		r.Register(Notification, "notify", "", notify(deps.Usage))
		r.Register(Prompt, "track-prompt", "", trackPrompt(deps.Usage))
	}
	if deps.Pipeline != nil {
		r.Register(PostTool, "phase-complete", "", phaseComplete(deps.Pipeline, deps.Usage))
	}
	r.Register(PreTool, "guard-destructive", "Bash", guardDestructive(deps.Usage))
	r.Register(Permission, "gate", "", permissionGate(deps.Usage))
	if deps.Calibration != nil {
		r.Register(SubagentStop, "record-outcome", "", recordOutcome(deps.Calibration, deps.Usage))
		r.Register(Stop, "session-end", "", sessionEnd(deps.Calibration, deps.Cleanup, deps.Usage))
	}
	r.Register(Setup, "install-check", "", installCheck())

	return r
}

// trackUsage appends one hook-timing record per observed tool use.
func trackUsage(sink *usage.Sink) HandlerFunc {
	return func(ctx context.Context, ev hook.Event) (Outcome, error) {
		rec := usage.Record{Name: ev.ToolName, Event: ev.EventName, SessionID: ev.SessionID}
		if ms, ok := extraInt(ev, "duration_ms"); ok {
			rec.DurationMS = ms
		}
		sink.Try(usage.KindHook, rec)
		return NoOpinion(), nil
	}
}

// phasePayload is the phase-completion marker a task runner embeds in its
// tool input.
type phasePayload struct {
	Run   string `json:"pipeline_run"`
	Phase string `json:"phase"`
}

// phaseComplete advances the checkpoint controller when a tool input
// carries a phase-completion marker. Events without the marker are not this
// handler's business.
func phaseComplete(ctrl *pipeline.Controller, sink *usage.Sink) HandlerFunc {
	return func(ctx context.Context, ev hook.Event) (Outcome, error) {
		if len(ev.ToolInput) == 0 {
			return NoOpinion(), nil
		}
		var p phasePayload
		if err := json.Unmarshal(ev.ToolInput, &p); err != nil || p.Run == "" || p.Phase == "" {
			return NoOpinion(), nil
		}

		if _, err := ctrl.CompletePhase(ctx, p.Run, p.Phase); err != nil {
			return NoOpinion(), err
		}
		if sink != nil {
			sink.Try(usage.KindTask, usage.Record{Phase: p.Phase, SessionID: ev.SessionID})
		}
		return NoOpinion(), nil
	}
}

// destructivePatterns match Bash commands that destroy work that no
// handler downstream could recover. Deliberately narrow: the guard exists
// to stop catastrophes, not to supervise ordinary commands.
var destructivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+(-[a-zA-Z]*r[a-zA-Z]*f|-[a-zA-Z]*f[a-zA-Z]*r)[a-zA-Z]*\s+(/|~|\$HOME)(\s|$)`),
	regexp.MustCompile(`\bgit\s+push\s+(\S+\s+)*--force(\s|$)`),
	regexp.MustCompile(`\bgit\s+reset\s+--hard\b.*@\{u\}`),
	regexp.MustCompile(`\bmkfs\b|\bdd\s+if=.*\bof=/dev/`),
}

// guardDestructive is a blocking pre-tool handler: it denies Bash commands
// matching the destructive patterns and stays silent otherwise.
func guardDestructive(sink *usage.Sink) HandlerFunc {
	return func(ctx context.Context, ev hook.Event) (Outcome, error) {
		var input struct {
			Command string `json:"command"`
		}
		if len(ev.ToolInput) == 0 || json.Unmarshal(ev.ToolInput, &input) != nil || input.Command == "" {
			return NoOpinion(), nil
		}

		for _, pat := range destructivePatterns {
			if pat.MatchString(input.Command) {
				if sink != nil {
					sink.Try(usage.KindHook, usage.Record{
						Name: ev.ToolName, Event: ev.EventName,
						SessionID: ev.SessionID, Decision: hook.DecisionDeny,
					})
				}
				return Respond(hook.Deny("blocked destructive command: " + summarizePattern(pat))), nil
			}
		}
		return NoOpinion(), nil
	}
}

// summarizePattern names a destructive pattern without echoing the user's
// command, which may embed paths.
func summarizePattern(pat *regexp.Regexp) string {
	s := pat.String()
	switch {
	case strings.Contains(s, "rm"):
		return "recursive force-remove of a root or home directory"
	case strings.Contains(s, "push"):
		return "force push"
	case strings.Contains(s, "reset"):
		return "hard reset discarding upstream state"
	default:
		return "destructive disk operation"
	}
}

// permissionGate is the blocking permission handler. The shipped rule set
// only records that the gate ran; the explicit category default (allow)
// stands unless configuration adds deny rules.
func permissionGate(sink *usage.Sink) HandlerFunc {
	return func(ctx context.Context, ev hook.Event) (Outcome, error) {
		if sink != nil {
			sink.Try(usage.KindHook, usage.Record{
				Name: ev.ToolName, Event: ev.EventName,
				SessionID: ev.SessionID, Decision: hook.DecisionAllow,
			})
		}
		return NoOpinion(), nil
	}
}

// outcomePayload is what a finishing sub-agent reports.
type outcomePayload struct {
	Success    *bool `json:"success"`
	DurationMS int64 `json:"duration_ms"`
}

// recordOutcome appends a calibration dispatch record when a sub-agent
// stops.
func recordOutcome(engine *calibrate.Engine, sink *usage.Sink) HandlerFunc {
	return func(ctx context.Context, ev hook.Event) (Outcome, error) {
		if ev.SubagentType == "" {
			return NoOpinion(), nil
		}

		var payload outcomePayload
		if len(ev.ToolResponse) > 0 {
			_ = json.Unmarshal(ev.ToolResponse, &payload)
		}
		success := payload.Success == nil || *payload.Success

		engine.RecordDispatch(ev.SubagentType, success, time.Duration(payload.DurationMS)*time.Millisecond)
		if sink != nil {
			sink.Try(usage.KindAgent, usage.Record{
				Name: ev.SubagentType, SessionID: ev.SessionID,
				DurationMS: payload.DurationMS, Success: usage.Bool(success),
			})
		}
		return NoOpinion(), nil
	}
}

// sessionEnd runs the calibration batch and the mandatory cleanup. It
// always stays silent: session-end bookkeeping has no opinion to voice.
func sessionEnd(engine *calibrate.Engine, cleanup []calibrate.CleanupTask, sink *usage.Sink) HandlerFunc {
	return func(ctx context.Context, ev hook.Event) (Outcome, error) {
		engine.SessionEnd(cleanup)
		if sink != nil {
			sink.Try(usage.KindTeam, usage.Record{SessionID: ev.SessionID, Event: "session-end"})
		}
		return NoOpinion(), nil
	}
}

// sessionStart records the session boundary.
func sessionStart(sink *usage.Sink) HandlerFunc {
	return func(ctx context.Context, ev hook.Event) (Outcome, error) {
		sink.Try(usage.KindHook, usage.Record{Event: "session-start", SessionID: ev.SessionID})
		return NoOpinion(), nil
	}
}

// notify records that a notification fired. The message text is not
// logged: host notifications routinely embed file paths.
func notify(sink *usage.Sink) HandlerFunc {
	return func(ctx context.Context, ev hook.Event) (Outcome, error) {
		sink.Try(usage.KindHook, usage.Record{Event: "notification", SessionID: ev.SessionID})
		return NoOpinion(), nil
	}
}

// trackPrompt records that a prompt was submitted, content excluded.
func trackPrompt(sink *usage.Sink) HandlerFunc {
	return func(ctx context.Context, ev hook.Event) (Outcome, error) {
		sink.Try(usage.KindHook, usage.Record{Event: "prompt", SessionID: ev.SessionID})
		return NoOpinion(), nil
	}
}

// installCheck is the setup handler; heavier verification lives in the CLI
// where output is allowed to be chatty.
func installCheck() HandlerFunc {
	return func(ctx context.Context, ev hook.Event) (Outcome, error) {
		return NoOpinion(), nil
	}
}

// extraInt reads an integer field from the event's unmodeled extras.
func extraInt(ev hook.Event, key string) (int64, bool) {
	raw, ok := ev.Extra[key]
	if !ok {
		return 0, false
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

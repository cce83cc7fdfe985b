package hook

import (
	"encoding/json"
	"io"
)

// Permission decision values for blocking categories.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
	DecisionAsk   = "ask"
)

// Response is the single JSON object a hook process writes to stdout.
// Continue is always serialized; everything else is category-specific.
// Silence never means deny: the only way to block the host is an explicit
// Decision or PermissionDecision field.
type Response struct {
	Continue                 bool           `json:"continue"`
	SuppressOutput           bool           `json:"suppressOutput,omitempty"`
	StopReason               string         `json:"stopReason,omitempty"`
	Decision                 string         `json:"decision,omitempty"`
	Reason                   string         `json:"reason,omitempty"`
	PermissionDecision       string         `json:"permissionDecision,omitempty"`
	PermissionDecisionReason string         `json:"permissionDecisionReason,omitempty"`
	HookSpecificOutput       map[string]any `json:"hookSpecificOutput,omitempty"`
}

// Silent is the canonical fail-open response: the host proceeds and shows
// nothing. Unknown bundles, missing handlers, and internal errors all
// resolve to this.
func Silent() Response {
	return Response{Continue: true, SuppressOutput: true}
}

// Allow is the plain pass-through response.
func Allow() Response {
	return Response{Continue: true}
}

// Deny builds an explicit permission denial with the given reason.
func Deny(reason string) Response {
	return Response{
		Continue:                 true,
		PermissionDecision:       DecisionDeny,
		PermissionDecisionReason: reason,
	}
}

// Write emits the response as one JSON object followed by a newline. A
// marshal failure falls back to the silent-success literal so the host
// always receives valid JSON.
func (r Response) Write(w io.Writer) error {
	data, err := json.Marshal(r)
	if err != nil {
		data = []byte(`{"continue":true,"suppressOutput":true}`)
	}
	data = append(data, '\n')
	_, werr := w.Write(data)
	return werr
}

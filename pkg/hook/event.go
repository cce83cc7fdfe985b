// Package hook implements the wire contract between the host agent and a
// hook process: event decoding and field-name normalization on the way in,
// and the always-well-formed JSON response on the way out.
//
// Protocol: one JSON object on stdin (possibly absent or malformed), one
// JSON object on stdout, exit code 0. Nothing in this package returns an
// error for bad input; bad input resolves to the empty event.
package hook

import (
	"bytes"
	"encoding/json"
)

// Event is the canonical, normalized form of one inbound host event.
// Field names follow the current snake_case convention; legacy camelCase
// payloads are accepted by Normalize and folded into this shape.
type Event struct {
	EventCategory  string          `json:"event_category,omitempty"`
	EventName      string          `json:"event_name,omitempty"`
	SessionID      string          `json:"session_id,omitempty"`
	ToolName       string          `json:"tool_name,omitempty"`
	ToolInput      json.RawMessage `json:"tool_input,omitempty"`
	ToolResponse   json.RawMessage `json:"tool_response,omitempty"`
	SubagentType   string          `json:"subagent_type,omitempty"`
	Message        string          `json:"message,omitempty"`
	TranscriptPath string          `json:"transcript_path,omitempty"`
	Cwd            string          `json:"cwd,omitempty"`

	// Extra holds fields the runtime does not model. They are preserved so
	// handlers can inspect host fields added after this binary was built.
	Extra map[string]json.RawMessage `json:"-"`
}

// IsEmpty reports whether the event carries no payload at all. Malformed
// input, absent input, and a literal "{}" all normalize to an empty event.
func (e Event) IsEmpty() bool {
	return e.EventCategory == "" && e.EventName == "" && e.SessionID == "" &&
		e.ToolName == "" && len(e.ToolInput) == 0 && len(e.ToolResponse) == 0 &&
		e.SubagentType == "" && e.Message == "" && e.TranscriptPath == "" &&
		e.Cwd == "" && len(e.Extra) == 0
}

// legacyAliases maps historical camelCase field names to their canonical
// snake_case equivalents. When both spellings are present in one payload,
// the canonical one wins.
var legacyAliases = map[string]string{
	"hookEventName":  "event_name",
	"eventName":      "event_name",
	"eventCategory":  "event_category",
	"sessionId":      "session_id",
	"toolName":       "tool_name",
	"toolInput":      "tool_input",
	"toolResponse":   "tool_response",
	"subagentType":   "subagent_type",
	"transcriptPath": "transcript_path",
	// hook_event_name predates event_name but is already snake_case.
	"hook_event_name": "event_name",
}

// Normalize decodes raw JSON into a canonical Event. It never fails: parse
// errors, non-object payloads, and empty input all yield the empty event.
func Normalize(raw []byte) Event {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Event{}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Event{}
	}

	// Fold legacy spellings into canonical keys; canonical wins on conflict.
	for legacy, canonical := range legacyAliases {
		v, ok := fields[legacy]
		if !ok {
			continue
		}
		delete(fields, legacy)
		if _, exists := fields[canonical]; !exists {
			fields[canonical] = v
		}
	}

	var e Event
	takeString(fields, "event_category", &e.EventCategory)
	takeString(fields, "event_name", &e.EventName)
	takeString(fields, "session_id", &e.SessionID)
	takeString(fields, "tool_name", &e.ToolName)
	takeRaw(fields, "tool_input", &e.ToolInput)
	takeRaw(fields, "tool_response", &e.ToolResponse)
	takeString(fields, "subagent_type", &e.SubagentType)
	takeString(fields, "message", &e.Message)
	takeString(fields, "transcript_path", &e.TranscriptPath)
	takeString(fields, "cwd", &e.Cwd)

	if len(fields) > 0 {
		e.Extra = fields
	}
	return e
}

// takeString moves a string-valued field out of the map into dst. A field
// that is present but not a JSON string is left in the map untouched, so it
// survives in Extra rather than being silently dropped.
func takeString(fields map[string]json.RawMessage, key string, dst *string) {
	v, ok := fields[key]
	if !ok {
		return
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return
	}
	*dst = s
	delete(fields, key)
}

// takeRaw moves a field out of the map as raw JSON.
func takeRaw(fields map[string]json.RawMessage, key string, dst *json.RawMessage) {
	v, ok := fields[key]
	if !ok {
		return
	}
	*dst = v
	delete(fields, key)
}

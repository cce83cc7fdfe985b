package hook

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNormalizeCanonicalFields(t *testing.T) {
	raw := []byte(`{
		"event_category": "post-tool",
		"event_name": "post-tool/track-usage",
		"session_id": "s1",
		"tool_name": "Bash",
		"tool_input": {"command": "echo hi"},
		"cwd": "/tmp/project"
	}`)

	e := Normalize(raw)

	if e.EventCategory != "post-tool" {
		t.Errorf("EventCategory = %q, want %q", e.EventCategory, "post-tool")
	}
	if e.EventName != "post-tool/track-usage" {
		t.Errorf("EventName = %q, want %q", e.EventName, "post-tool/track-usage")
	}
	if e.SessionID != "s1" {
		t.Errorf("SessionID = %q, want %q", e.SessionID, "s1")
	}
	if e.ToolName != "Bash" {
		t.Errorf("ToolName = %q, want %q", e.ToolName, "Bash")
	}

	var input struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(e.ToolInput, &input); err != nil {
		t.Fatalf("unmarshal tool_input: %v", err)
	}
	if input.Command != "echo hi" {
		t.Errorf("tool_input.command = %q, want %q", input.Command, "echo hi")
	}
}

func TestNormalizeLegacyAliases(t *testing.T) {
	// The same event expressed in the legacy camelCase convention must
	// normalize to the identical canonical form.
	canonical := Normalize([]byte(`{
		"event_name": "pre-tool/guard-destructive",
		"session_id": "s2",
		"tool_name": "Write",
		"tool_input": {"file_path": "a.txt"},
		"subagent_type": "reviewer",
		"transcript_path": "/t/x.jsonl"
	}`))
	legacy := Normalize([]byte(`{
		"hookEventName": "pre-tool/guard-destructive",
		"sessionId": "s2",
		"toolName": "Write",
		"toolInput": {"file_path": "a.txt"},
		"subagentType": "reviewer",
		"transcriptPath": "/t/x.jsonl"
	}`))

	if legacy.EventName != canonical.EventName {
		t.Errorf("EventName: legacy %q != canonical %q", legacy.EventName, canonical.EventName)
	}
	if legacy.SessionID != canonical.SessionID {
		t.Errorf("SessionID: legacy %q != canonical %q", legacy.SessionID, canonical.SessionID)
	}
	if legacy.ToolName != canonical.ToolName {
		t.Errorf("ToolName: legacy %q != canonical %q", legacy.ToolName, canonical.ToolName)
	}
	if string(legacy.ToolInput) != string(canonical.ToolInput) {
		t.Errorf("ToolInput: legacy %s != canonical %s", legacy.ToolInput, canonical.ToolInput)
	}
	if legacy.SubagentType != canonical.SubagentType {
		t.Errorf("SubagentType: legacy %q != canonical %q", legacy.SubagentType, canonical.SubagentType)
	}
	if legacy.TranscriptPath != canonical.TranscriptPath {
		t.Errorf("TranscriptPath: legacy %q != canonical %q", legacy.TranscriptPath, canonical.TranscriptPath)
	}
}

func TestNormalizeCanonicalWinsOverLegacy(t *testing.T) {
	e := Normalize([]byte(`{"tool_name": "Read", "toolName": "Bash"}`))
	if e.ToolName != "Read" {
		t.Errorf("ToolName = %q, want canonical %q to win", e.ToolName, "Read")
	}
}

func TestNormalizeBadInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace", "  \n\t "},
		{"truncated object", `{"tool_name": "Ba`},
		{"not json", "this is not json"},
		{"json array", `[1,2,3]`},
		{"json scalar", `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Normalize([]byte(tt.raw))
			if !e.IsEmpty() {
				t.Errorf("Normalize(%q) = %+v, want empty event", tt.raw, e)
			}
		})
	}
}

func TestNormalizeKeepsUnknownFields(t *testing.T) {
	e := Normalize([]byte(`{"session_id": "s1", "permission_mode": "plan"}`))
	if len(e.Extra) != 1 {
		t.Fatalf("Extra has %d entries, want 1", len(e.Extra))
	}
	if string(e.Extra["permission_mode"]) != `"plan"` {
		t.Errorf("Extra[permission_mode] = %s, want %q", e.Extra["permission_mode"], `"plan"`)
	}
}

func TestNormalizeWrongTypeSurvivesInExtra(t *testing.T) {
	// A field with the right name but wrong type is not silently dropped.
	e := Normalize([]byte(`{"tool_name": 42}`))
	if e.ToolName != "" {
		t.Errorf("ToolName = %q, want empty", e.ToolName)
	}
	if string(e.Extra["tool_name"]) != "42" {
		t.Errorf("Extra[tool_name] = %s, want 42", e.Extra["tool_name"])
	}
}

func TestReadTimeout(t *testing.T) {
	// A reader that never produces data must resolve to the empty event
	// within the bounded wait, not hang.
	done := make(chan Event, 1)
	go func() {
		done <- Read(blockingReader{}, 50*time.Millisecond)
	}()

	select {
	case e := <-done:
		if !e.IsEmpty() {
			t.Errorf("Read on silent input = %+v, want empty event", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not return within bounded wait")
	}
}

func TestReadNormalInput(t *testing.T) {
	e := Read(strings.NewReader(`{"session_id":"s9"}`), time.Second)
	if e.SessionID != "s9" {
		t.Errorf("SessionID = %q, want %q", e.SessionID, "s9")
	}
}

// blockingReader blocks forever, simulating a hook invoked with an open but
// silent stdin.
type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	select {}
}

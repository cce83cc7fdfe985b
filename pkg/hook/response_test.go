package hook

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestResponseWriteAlwaysHasContinue(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want map[string]any
	}{
		{
			name: "silent success",
			resp: Silent(),
			want: map[string]any{"continue": true, "suppressOutput": true},
		},
		{
			name: "plain allow",
			resp: Allow(),
			want: map[string]any{"continue": true},
		},
		{
			name: "zero value still serializes continue",
			resp: Response{},
			want: map[string]any{"continue": false},
		},
		{
			name: "deny carries decision and reason",
			resp: Deny("rm -rf outside workspace"),
			want: map[string]any{
				"continue":                 true,
				"permissionDecision":       "deny",
				"permissionDecisionReason": "rm -rf outside workspace",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.resp.Write(&buf); err != nil {
				t.Fatalf("Write: %v", err)
			}

			var got map[string]any
			if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
				t.Fatalf("output is not valid JSON: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Errorf("got %d fields %v, want %d fields %v", len(got), got, len(tt.want), tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("field %q = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

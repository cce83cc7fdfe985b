package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ork/pkg/bundle"
	"ork/pkg/hook"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Checkpoint.Interval != 3 {
		t.Errorf("Checkpoint.Interval = %d, want default 3", cfg.Checkpoint.Interval)
	}
	if !cfg.Calibration.Enabled {
		t.Error("Calibration disabled by default")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	want := Default()
	want.Calibration.Enabled = false
	want.Checkpoint.Interval = 5

	if err := Write(path, want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Calibration.Enabled {
		t.Error("Calibration.Enabled lost in round trip")
	}
	if got.Checkpoint.Interval != 5 {
		t.Errorf("Checkpoint.Interval = %d, want 5", got.Checkpoint.Interval)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("calibration = {{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed config accepted, want error")
	}
}

func TestLoadNormalizesNonsenseValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("stdin_wait_ms = -5\n[checkpoint]\ninterval = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StdinWaitMS <= 0 || cfg.Checkpoint.Interval <= 0 {
		t.Errorf("nonsense values not normalized: %+v", cfg)
	}
}

func TestLoadBundlesMissingFile(t *testing.T) {
	b, err := LoadBundles(filepath.Join(t.TempDir(), "bundles.yaml"))
	if err != nil {
		t.Fatalf("LoadBundles: %v", err)
	}
	if len(b.Bundles) != 0 {
		t.Errorf("missing file produced %d bundles, want 0", len(b.Bundles))
	}
}

func writeBundles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundles.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadBundlesValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			name: "valid disable",
			content: `bundles:
  post-tool:
    handlers:
      - id: track-usage
        enabled: false
`,
		},
		{
			name: "mode restated consistently",
			content: `bundles:
  permission:
    mode: blocking
`,
		},
		{
			name: "unknown bundle",
			content: `bundles:
  midnight-tool:
    handlers: []
`,
			wantErr: true,
		},
		{
			name: "unknown mode",
			content: `bundles:
  post-tool:
    mode: sometimes
`,
			wantErr: true,
		},
		{
			name: "deny-capable bundle demoted to non-blocking",
			content: `bundles:
  permission:
    mode: non-blocking
`,
			wantErr: true,
		},
		{
			name: "handler without id",
			content: `bundles:
  post-tool:
    handlers:
      - matcher: Bash
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBundles(writeBundles(t, tt.content))
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadBundles error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDisablesAndRetargets(t *testing.T) {
	reg := bundle.NewRegistry()
	ran := map[string]bool{}
	reg.Register(bundle.PostTool, "track-usage", "", func(context.Context, hook.Event) (bundle.Outcome, error) {
		ran["track-usage"] = true
		return bundle.NoOpinion(), nil
	})
	reg.Register(bundle.PreTool, "guard-destructive", "Bash", func(context.Context, hook.Event) (bundle.Outcome, error) {
		ran["guard"] = true
		return bundle.NoOpinion(), nil
	})

	b, err := LoadBundles(writeBundles(t, `bundles:
  post-tool:
    handlers:
      - id: track-usage
        enabled: false
  pre-tool:
    handlers:
      - id: guard-destructive
        matcher: "*"
`))
	if err != nil {
		t.Fatalf("LoadBundles: %v", err)
	}
	b.Apply(reg)

	ctx := context.Background()
	reg.Dispatch(ctx, "post-tool/track-usage", hook.Event{ToolName: "Bash"})
	if ran["track-usage"] {
		t.Error("disabled handler ran")
	}

	// The widened matcher now catches non-Bash tools.
	reg.Dispatch(ctx, "pre-tool/guard-destructive", hook.Event{ToolName: "Write"})
	if !ran["guard"] {
		t.Error("matcher override not applied")
	}
}

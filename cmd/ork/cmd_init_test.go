package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitCmd_WritesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ORK_HOME", home)

	out, err := execRoot(t, "init")
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if !strings.Contains(out, "wrote") {
		t.Errorf("output = %q, want 'wrote' lines", out)
	}

	for _, name := range []string{"config.toml", "bundles.yaml"} {
		if _, err := os.Stat(filepath.Join(home, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestInitCmd_KeepsExistingFiles(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ORK_HOME", home)

	custom := []byte("stdin_wait_ms = 1234\n")
	if err := os.WriteFile(filepath.Join(home, "config.toml"), custom, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execRoot(t, "init")
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if !strings.Contains(out, "kept existing") {
		t.Errorf("output = %q, want 'kept existing' for config.toml", out)
	}

	got, err := os.ReadFile(filepath.Join(home, "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(custom) {
		t.Error("init overwrote an existing config.toml")
	}
}

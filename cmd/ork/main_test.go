package main

import (
	"bytes"
	"strings"
	"testing"
)

// execRoot runs the root command with args against an isolated state dir
// already configured via t.Setenv, returning stdout and the Execute error.
func execRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCmdVersion(t *testing.T) {
	out, err := execRoot(t, "--version")
	if err != nil {
		t.Fatalf("--version failed: %v", err)
	}
	if !strings.HasPrefix(out, "ork ") {
		t.Errorf("version output = %q, want 'ork <version>'", out)
	}
}

func TestRootCmdUnknownSubcommand(t *testing.T) {
	_, err := execRoot(t, "no-such-command")
	if err == nil {
		t.Error("unknown subcommand should return an error")
	}
}

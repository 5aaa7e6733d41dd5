package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckResolvesPath(t *testing.T) {
	binDir := t.TempDir()
	tool := filepath.Join(binDir, "transcriber")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	status := Requirement{Name: "Transcriber", Command: tool}.Check()
	if !status.Available {
		t.Fatalf("expected available, got %#v", status)
	}
	if status.Detail != tool {
		t.Fatalf("expected resolved path %q in detail, got %q", tool, status.Detail)
	}
}

func TestCheckMissingBinary(t *testing.T) {
	status := Requirement{Name: "Cutter", Command: "no-such-audio-cutter"}.Check()
	if status.Available {
		t.Fatal("expected missing binary to be unavailable")
	}
	if status.Detail == "" {
		t.Fatal("expected detail for missing binary")
	}
}

func TestCheckUnconfigured(t *testing.T) {
	status := Requirement{Name: "Blank", Command: "   "}.Check()
	if status.Available {
		t.Fatal("expected blank command to be unavailable")
	}
	if status.Detail != "command not configured" {
		t.Fatalf("unexpected detail: %s", status.Detail)
	}
}

func TestMissingRequired(t *testing.T) {
	statuses := CheckAll([]Requirement{
		{Name: "Required", Command: "no-such-required-tool"},
		{Name: "Optional", Command: "no-such-optional-tool", Optional: true},
	})
	missing := MissingRequired(statuses)
	if len(missing) != 1 || missing[0] != "Required" {
		t.Fatalf("unexpected missing set: %#v", missing)
	}
}

package main

import (
	"strings"
	"testing"
)

func TestSettingsRoundTripOffline(t *testing.T) {
	env := setupOfflineCLIEnv(t)

	out, _, err := runCLI(t, []string{"settings", "set", "feed.poll_minutes", "30"},
		env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("settings set: %v", err)
	}
	requireContains(t, out, "Setting feed.poll_minutes saved")

	out, _, err = runCLI(t, []string{"settings", "get", "feed.poll_minutes"},
		env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("settings get: %v", err)
	}
	requireContains(t, out, "30")

	out, _, err = runCLI(t, []string{"settings", "set", "feed.poll_minutes", "45"},
		env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("settings update: %v", err)
	}
	requireContains(t, out, "Setting feed.poll_minutes saved")

	out, _, err = runCLI(t, []string{"settings", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("settings list: %v", err)
	}
	requireContains(t, out, "feed.poll_minutes")
	requireContains(t, out, "45")

	out, _, err = runCLI(t, []string{"settings", "unset", "feed.poll_minutes"},
		env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("settings unset: %v", err)
	}
	requireContains(t, out, "Setting feed.poll_minutes removed")

	_, _, err = runCLI(t, []string{"settings", "get", "feed.poll_minutes"},
		env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestSettingsListEmptyOffline(t *testing.T) {
	env := setupOfflineCLIEnv(t)

	out, _, err := runCLI(t, []string{"settings", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("settings list: %v", err)
	}
	requireContains(t, out, "No settings stored")
}

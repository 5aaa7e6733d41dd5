package main

import (
	"testing"

	"podscrub/internal/store"
	"podscrub/internal/testsupport"
)

func TestStartAgainstRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"start"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireContains(t, out, "Daemon already running")
}

func TestStopOffline(t *testing.T) {
	env := setupOfflineCLIEnv(t)

	out, _, err := runCLI(t, []string{"stop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestStatusViaDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.SeedPost(t, env.store, "guid-status")
	testsupport.SeedJob(t, env.store, "guid-status", store.StatusCompleted)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "Running (pid")
	requireContains(t, out, "Job Worker")
	requireContains(t, out, "== Dependencies ==")
	requireContains(t, out, "== LLM Budget ==")
	requireContains(t, out, "== Jobs ==")
	requireContains(t, out, "Completed")
}

func TestStatusOffline(t *testing.T) {
	env := setupOfflineCLIEnv(t)
	testsupport.SeedPost(t, env.store, "guid-offline")
	testsupport.SeedJob(t, env.store, "guid-offline", store.StatusFailed)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "== Dependencies ==")
	requireContains(t, out, "Failed")
}

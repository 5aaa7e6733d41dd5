package main

import (
	"strings"
	"testing"
)

func TestFeedsAddListRemoveOffline(t *testing.T) {
	env := setupOfflineCLIEnv(t)

	out, _, err := runCLI(t, []string{
		"feeds", "add", "https://example.com/feed.xml", "--title", "Example Cast",
	}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("feeds add: %v", err)
	}
	requireContains(t, out, "Feed 1 added")

	out, _, err = runCLI(t, []string{"feeds", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("feeds list: %v", err)
	}
	requireContains(t, out, "https://example.com/feed.xml")
	requireContains(t, out, "Example Cast")

	out, _, err = runCLI(t, []string{"feeds", "remove", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("feeds remove: %v", err)
	}
	requireContains(t, out, "Feed 1 removed")

	out, _, err = runCLI(t, []string{"feeds", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("feeds list after remove: %v", err)
	}
	requireContains(t, out, "No feeds found")
}

func TestFeedsRemoveInvalidID(t *testing.T) {
	env := setupOfflineCLIEnv(t)

	_, _, err := runCLI(t, []string{"feeds", "remove", "abc"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "invalid feed id") {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}

func TestFeedsRemoveMissing(t *testing.T) {
	env := setupOfflineCLIEnv(t)

	_, _, err := runCLI(t, []string{"feeds", "remove", "42"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown feed id")
	}
}

// Package main hosts the podscrub CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC calls
// against the daemon: queueing posts for ad removal, inspecting jobs, managing
// posts/feeds/settings, tailing logs, and daemon lifecycle control. It
// centralizes configuration resolution and socket discovery so subcommands can
// focus on user experience instead of wiring.
//
// When the daemon is down, read commands fall back to opening the database
// directly and write commands run through a local command client, so the CLI
// stays usable for inspection and bookkeeping without a running daemon.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main

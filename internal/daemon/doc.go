// Package daemon coordinates the long-running podscrub process.
//
// It wires configuration, the SQLite store, the single-writer command queue,
// the rate-limited LLM client, and the job scheduler into one lifecycle with
// flock-based locking to prevent multiple instances per data directory. On
// startup it runs the settling sweeps (optional clean slate, stale pending
// cleanup, eligible post enqueue) before the worker claims its first job.
//
// Keep orchestration logic here: job execution lives in scheduler and
// processor while the daemon focuses on startup, shutdown, and the status
// surface the IPC layer serves.
package daemon

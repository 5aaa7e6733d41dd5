// Package scheduler drives job execution. A single worker goroutine claims
// pending jobs through the writer's dequeue action, which refuses a claim
// while any job is running, so at most one job executes at a time across the
// process.
//
// Producers (IPC handlers, the CLI, startup sweeps) enqueue work and nudge
// the worker through a coalescing wake channel; the worker also polls on a
// timer so missed nudges only delay work, never lose it.
//
// Cancellation is cooperative. Cancelling a job flips its row to cancelled;
// the pipeline notices at its next stage boundary and backs out. Shutdown
// cancels the worker context and waits for the in-flight job to reach that
// same boundary.
package scheduler

// Package actions implements the writer-side command executor: a static
// registry of CRUD model handlers (post, feed, setting) and named actions
// covering the job and run lifecycle. Job rows are mutated exclusively
// through named actions, never through generic CRUD.
//
// Every handler runs inside the single write transaction the writer (or the
// local command client) opened for the command; handlers read, mutate, and
// recompute run counters without committing themselves. Handlers are pure
// functions over the persisted state plus their params.
package actions

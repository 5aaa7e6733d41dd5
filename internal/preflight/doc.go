// Package preflight provides readiness checks for the external services,
// tool binaries, and filesystem paths podscrub depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll once at startup and logs the outcome. A failed
//     check never aborts startup; jobs that hit the broken prerequisite fail
//     individually with a clearer message.
//   - The CLI "podscrub status" command uses individual check functions
//     (CheckLLM, CheckDirectoryAccess, CheckSystemDeps) to display health.
package preflight

// Package services defines shared utilities consumed by the scheduler,
// pipeline steps, and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, post GUIDs, step names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures classify
//     consistently (validation vs transient vs external tool).
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform across components.
package services

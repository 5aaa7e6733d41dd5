// Package api defines wire-format types and converters for the IPC layer.
// It translates internal store models into transport-friendly DTOs so the
// CLI can render daemon state without coupling to internal types.
//
// # Converters
//
// FromJob/FromPost/FromFeed/FromSetting map store rows to their views;
// plural variants return nil for empty slices so JSON payloads stay small.
//
// FromRun flattens the singleton run row and its counters; FromRateStats
// snapshots LLM token budget consumption.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums (store.JobStatus) are exposed
// as lowercase strings. Timestamps use RFC3339 with milliseconds; zero and
// nil times render as absent fields.
package api

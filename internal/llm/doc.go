// Package llm provides an OpenAI-compatible chat client for ad detection.
//
// This package is used by:
//   - Detect stage: locate advertisement segments in a transcript
//   - Preflight: verify the API key and model are usable
//
// # Detection Logic
//
// The client sends a timestamped transcript to a configured LLM model with
// a structured prompt requesting JSON output. The response contains ad
// segments with start/end seconds, a confidence score (0-1), and reasoning.
// Segments are normalized (sorted, merged, clamped) before callers see them.
//
// # Admission
//
// When a Limiter is attached, every attempt passes the per-call token
// ceiling, waits out the trailing token window, and holds a concurrency
// slot for the duration of the HTTP call. Actual usage reported by the
// provider reconciles against the estimate afterwards. Admission failures
// (ceiling, gate timeout) are definitive and never retried.
//
// # Configuration
//
// Requires api_key, model, and optionally base_url, referer, title,
// timeout. When unconfigured, callers should fall back to sensible
// defaults.
//
// # Retry Behaviour
//
// Rate-limit and server-side errors (408/429/5xx) retry on a long backoff
// (base 60s, max 5m), honoring Retry-After when present. Network timeouts
// and empty-content responses retry on a short backoff (base 1s, max 10s).
// Other 4xx errors fail immediately. Context cancellation aborts retries.
package llm

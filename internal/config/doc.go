// Package config loads, normalizes, and validates podscrub configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PODSCRUB_LLM_API_KEY. The Config type centralizes every knob the daemon and
// CLI need, allowing staging/library directories, rate-limit budgets, and
// external command templates to be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

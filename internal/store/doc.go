// Package store owns podscrub persistence: the embedded SQLite database, its
// schema, typed row models, and the guard policies every mutation passes
// through.
//
// Reads are safe for concurrent use (WAL mode permits readers alongside the
// writer). All mutations flow through WithWriteTx, which serializes writers
// behind an exclusive lock and retries commits that hit SQLite busy/locked
// contention with bounded exponential backoff. Nothing outside this package
// issues raw SQL against the database.
package store

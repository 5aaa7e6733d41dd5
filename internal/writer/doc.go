// Package writer runs the single goroutine that owns all database
// mutations. Producers submit WriteCommands through a channel; the loop
// applies them one at a time inside guarded transactions and answers over
// per-command reply channels. Serializing every mutation through one
// goroutine is what lets the rest of the daemon treat SQLite as if it had
// row-level concurrency control.
package writer

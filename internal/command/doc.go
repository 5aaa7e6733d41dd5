// Package command defines the write-command envelope and the client used to
// submit mutations to the single writer.
//
// Every mutation in the system travels as a WriteCommand: generic CRUD
// against a registered model, a named action, or an ordered transaction of
// sub-commands. Results come back as WriteResult values correlated by
// command id. The client blocks for a reply with a bounded timeout, or runs
// the command locally under the store's write guard when no writer queue is
// attached.
package command

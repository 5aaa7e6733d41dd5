// Package logs tails the daemon log file for the CLI and the IPC LogTail
// method. A negative offset reads the trailing N lines via a backward scan;
// non-negative offsets resume from a previous result, which is how follow
// mode advances without replaying lines.
package logs

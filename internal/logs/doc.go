// Package logs reads treegift's log file for the `treegift logs` command.
//
// Tail returns the last N lines along with the byte offset reached, and
// Follow polls from an offset and hands each new line to a callback until
// the context is cancelled.
package logs

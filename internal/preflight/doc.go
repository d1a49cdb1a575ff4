// Package preflight runs environment checks before treegift talks to its
// backing services: local directories, the remote data service, object
// storage, and the ntfy topic.
//
// Each check returns a Result rather than an error so the CLI can render a
// full report even when several checks fail.
package preflight

// Package notifications delivers operator events via ntfy.
//
// The default implementation publishes to the ntfy topic configured in
// config.toml and degrades to a no-op when no topic is set. Events cover
// submission outcomes and ingestion failures; the notifications section of
// the config toggles each group independently.
//
// Callers depend only on the Service interface.
package notifications

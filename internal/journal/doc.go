// Package journal records submission attempts in SQLite.
//
// Every call to the submission orchestrator opens an attempt row, appends one
// step row per stage it reaches (logo, payment, callback), and closes the
// attempt as completed or failed with the error kind. Operators read the
// journal through `treegift journal list|show` to see which stage of a
// partially failed submission needs attention.
//
// The journal is an audit trail, not a retry queue: nothing replays failed
// attempts. Schema changes bump schemaVersion in schema.go; users delete
// journal.db to adopt the new schema.
package journal

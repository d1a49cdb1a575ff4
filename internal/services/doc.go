// Package services defines shared utilities consumed by the wizard engine and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp gift request IDs, wizard step keys, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures as
//     user input, ingestion, or remote service errors.
//
// Use these helpers when wiring new engine code so operational behaviour (error
// classification, observability) stays uniform across components.
package services

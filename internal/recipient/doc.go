// Package recipient defines the normalized gift/donation recipient record that
// every ingestion source (manual entry, CSV upload, persisted requests) emits.
//
// Records carry their own derived validation flag; call Revalidate after any
// mutation so HasValidationError always reflects the current contact fields.
// List holds the ordered recipient list and the edit helpers the wizard uses.
package recipient

// Package ingest turns operator input into recipient records and keeps the
// request's image candidate pool current.
//
// Producers:
//   - Manual: a single validated form entry (add or edit by key)
//   - CSVImporter: bulk upload with all-or-nothing semantics
//   - Scraper: harvests photos from an event web page into the pool
//   - ImageUploader: pushes local photos into the request's image namespace
//
// Manual and CSV produce recipient lists that the caller hands to the wizard's
// SetRecipients. Scraper and ImageUploader never touch recipients; they only
// refresh the ImagePool, and the wizard re-runs the matcher when the pool
// changes.
package ingest

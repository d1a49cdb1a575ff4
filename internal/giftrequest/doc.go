// Package giftrequest persists a completed submission as a gift request and
// its recipient rows on the remote data service. Persister.Persist is the
// completion callback the CLI hands to the submission orchestrator.
package giftrequest

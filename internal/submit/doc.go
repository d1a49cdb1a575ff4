// Package submit turns a finished wizard session into persisted records.
//
// Orchestrator.Submit waits for a pending logo upload, validates the whole
// aggregate without touching the network, pushes a changed logo to the
// sponsoring group, creates or partially updates the payment, and hands the
// result to the caller's completion callback. Any failure leaves the wizard
// state intact, adds a notice, records the failed stage in the journal, and
// notifies operators. A fully successful submission closes the session.
//
// Nothing is retried automatically; the user resubmits once the cause is
// fixed, and already-applied stages are no-ops the second time around.
package submit

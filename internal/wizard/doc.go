// Package wizard owns the gift/donation request wizard state.
//
// The step list is data (Step values with an Enabled predicate and a
// Validate function) and is filtered by request type, so assignment-only
// requests never see the payment step. All mutation goes through
// Controller.Update, which applies Patch functions under the controller lock
// and then re-derives everything that depends on them: the amount, the
// planted-by default, the active step list, photo matching, and the logo
// upload effect.
//
// Asynchronous work (logo uploads, image pool loads, debounced lookups) runs
// in goroutines and re-enters through the controller. Each effect carries the
// key it was started with; results whose key no longer matches the state, or
// that arrive after Close, are discarded.
package wizard

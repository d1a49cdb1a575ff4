// Package matcher reconciles a pool of candidate image URLs against recipient
// names.
//
// Match is a pure function: it never mutates its inputs and holds no state, so
// re-running it on the same pool and records is idempotent. A recipient gets an
// image only when the evidence is unambiguous; ties and multi-candidate cases
// are left for manual assignment so a photo is never mis-attributed.
package matcher

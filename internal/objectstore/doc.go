// Package objectstore uploads request assets (recipient photos, sponsor logos)
// to the object storage service and answers existence checks against the
// public bucket URL.
//
// Keys are laid out as <namespace>/<request id>/<file name>. Uploads go to the
// authenticated storage endpoint; existence checks are plain HEAD requests on
// the public URL so they reflect exactly what recipients will see.
package objectstore

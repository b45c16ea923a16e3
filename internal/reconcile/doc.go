// Package reconcile merges staged metadata bundles into the persistent
// per-package records and the published asset layout.
//
// Bundles are matched back to package identifiers through the identity
// mapping; unmatched bundles are skipped but still deleted, so no staging
// state ever outlives a cycle.
package reconcile

// Package pkgmeta persists per-package descriptive metadata records.
//
// Records are the YAML documents shared with the external build tool: its
// skeleton pass materializes and normalizes them, the reconciler then
// overwrites individual fields with harvested content. The Record type wraps
// the raw field map so fields owned by the build tool survive round-trips.
package pkgmeta

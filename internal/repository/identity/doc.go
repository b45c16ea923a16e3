// Package identity persists the mapping from upstream sources to resolved
// package identifiers.
//
// The mapping is created incrementally as artifacts are first inspected and
// is treated as append-only: an existing entry is authoritative. Persistence
// uses write-then-rename so readers never see a partial document, and a
// missing or corrupt file degrades to an empty mapping instead of an error.
package identity

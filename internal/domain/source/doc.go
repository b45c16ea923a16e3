// Package source contains the core domain type for upstream projects.
//
// A Source names a GitHub owner/project pair and derives the identifiers
// used elsewhere: the canonical slug, the filesystem-safe key used for
// staged metadata bundles, and the repository/issue-tracker URLs.
package source

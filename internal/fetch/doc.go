// Package fetch pulls new release artifacts from upstream sources into the
// repository directory and resolves artifact-to-package identity.
//
// Fetches are idempotent per artifact filename and failures are isolated
// per source, so a retried cycle naturally resumes where it left off.
package fetch

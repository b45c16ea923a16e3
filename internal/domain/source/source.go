package source

import (
	"errors"
	"fmt"
	"strings"
)

// errInvalidSlug is returned when a source slug is not in owner/project form.
var errInvalidSlug = errors.New("source must be in owner/project form")

// Source identifies an upstream GitHub project whose releases and
// descriptive metadata are pulled into the repository.
type Source struct {
	// Owner is the GitHub account or organization name.
	Owner string
	// Project is the repository name under the owner.
	Project string
}

// Parse builds a Source from an "owner/project" slug.
func Parse(slug string) (Source, error) {
	owner, project, found := strings.Cut(strings.TrimSpace(slug), "/")
	if !found || owner == "" || project == "" || strings.Contains(project, "/") {
		return Source{}, fmt.Errorf("%q: %w", slug, errInvalidSlug)
	}

	return Source{Owner: owner, Project: project}, nil
}

// Slug returns the canonical "owner/project" form.
func (s Source) Slug() string {
	return s.Owner + "/" + s.Project
}

// Key returns the filesystem-safe form of the slug with "/" replaced by "_".
// Keys are matched back to sources by whole-string comparison: GitHub owners
// may contain "-" and projects may contain "_", so splitting a key is ambiguous.
func (s Source) Key() string {
	return s.Owner + "_" + s.Project
}

// RepoURL returns the project's GitHub page, used for source and website links.
func (s Source) RepoURL() string {
	return "https://github.com/" + s.Slug()
}

// IssuesURL returns the project's issue tracker URL.
func (s Source) IssuesURL() string {
	return s.RepoURL() + "/issues"
}

// String implements fmt.Stringer for log output.
func (s Source) String() string {
	return s.Slug()
}

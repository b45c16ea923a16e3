package version

import "fmt"

// Build metadata, overridden at link time via -ldflags "-X ...".
var (
	// Version is the release version of the tracker binary.
	Version = "0.1.0"
	// Commit is the short git SHA of the build, "none" for local builds.
	Commit = "none"
	// BuildTime is the UTC timestamp the binary was built at.
	BuildTime = "unknown"
)

// Short returns just the release version.
func Short() string {
	return Version
}

// Full returns the release version together with commit and build time.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}

// Package config defines tracker settings and provides helpers to load
// them in YAML format with deployment defaults and environment overrides.
//
// It also loads the upstream source list, a JSON array of "owner/project"
// slugs read once per process start.
package config

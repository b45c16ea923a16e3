// Package resources mirrors a static resource tree into the data directory
// before each skeleton build, so deployment-provided files (repo icons,
// web assets) end up alongside the generated index.
package resources

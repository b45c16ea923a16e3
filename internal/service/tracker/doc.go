// Package tracker is the scheduler driving the full update pipeline.
//
// Each cycle fetches new release artifacts, harvests fastlane metadata for
// the processed sources, copies static resources, runs the unsigned skeleton
// build, reconciles harvested metadata into the materialized records, and
// runs the signed final build. The cycle body is wrapped in a failure
// boundary so a recoverable error abandons the cycle, never the process.
package tracker

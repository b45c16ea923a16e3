// Package harvest stages optional descriptive metadata bundles from
// upstream source branches.
//
// For each active source it probes a fixed, ordered list of branch
// candidates for the mandatory title document; the first hit is
// authoritative. Everything else in a bundle (summaries, icon,
// screenshots) is best effort. Bundles are transient: the reconciler
// consumes and deletes them within the same cycle.
package harvest

// Package upstream talks to the two upstream hosts: the release host
// (latest-release queries and artifact downloads) and the raw-content host
// (fastlane metadata files on source branches).
//
// Base URLs are injectable so tests can point both clients at httptest
// servers. Raw-content fetches return explicit present/absent results so
// callers can tell "absent by design" from a failed request.
package upstream

// Package inspect resolves package identifiers from downloaded release
// artifacts by parsing the binary Android manifest.
package inspect

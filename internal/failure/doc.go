// Package failure declares the error taxonomy shared by the sort engine.
//
// Every per-file fault is tagged with one of the exported sentinels so the
// coordinator can classify it into a report outcome without string matching.
// Wrap keeps both the marker and the underlying cause reachable through
// errors.Is.
package failure

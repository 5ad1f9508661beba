// Package preflight provides readiness checks for the filesystem paths a sort
// run depends on.
//
// The sort command calls RunAll before enumerating files and refuses to start
// when a check fails, so an unreadable source or a full target is reported
// once instead of once per file. Checks that only matter for a feature (the
// quarantine directory, writable sources when moving) run only when that
// feature is in use.
package preflight

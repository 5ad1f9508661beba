// Package destination derives where a sorted file goes.
//
// A Builder resolves each sort-order entry into one directory level below the
// target root and resolves the filename template into the base name.
// Unresolvable directory entries become a placeholder segment and an
// unresolvable filename falls back to the source base name, so building a
// destination never fails for metadata reasons.
//
// Every destination is claimed through a Reservations set shared by all
// workers. A claim appends the collision suffix until the path is neither on
// disk nor claimed by another worker, which closes the window in which two
// workers could pick the same free name.
package destination

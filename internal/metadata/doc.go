// Package metadata exposes field lookup over a decoded record.
//
// An Accessor answers Get for both raw fields and a fixed set of derived
// pseudo-fields (image-type classification, file extension, series label and
// patient age). Derived fields are computed on demand from the raw record and
// take precedence over raw fields with the same name, so callers never need to
// know which kind of field they are asking for.
package metadata

// Package template expands %(FieldName)TypeChar tokens against a field source.
//
// The syntax follows printf-style mapping keys: an optional run of flags
// (-, +, space, #, 0), an optional width, an optional .precision, and a
// conversion character (s, r, d, i, u, x, X, o, e, E, f, F, g, G, c). A
// literal percent sign is written as %%.
//
// Expansion is repeated so a field value may itself contain tokens, but the
// number of passes is bounded by the count of % characters in the original
// template, which guarantees termination even for self-referencing values.
package template

// Package textutil provides text helpers for turning metadata values into
// safe filesystem names.
//
// Template output may contain spaces, separators or characters that are not
// legal in path components on common filesystems; the helpers here collapse
// whitespace and replace or drop such characters.
package textutil

// Package ledger records sort runs and the outcome of every file in a SQLite
// database (modernc.org/sqlite, no cgo).
//
// A run row is inserted when sorting starts, one outcome row is appended per
// enumerated file as workers finish it, and the run is closed with its final
// counts. The history command reads the same tables back.
//
// The schema is created on first open and versioned in schema_version. A
// database written by a different schema version is rejected with
// ErrSchemaMismatch; delete it to start over.
package ledger

// Package main hosts the dicomsort CLI.
//
// The Cobra command tree loads configuration once per invocation, applies
// flag overrides, runs preflight checks and hands a sort job to
// internal/sorter. Run history is read back from the ledger by the history
// command. Sorting logic belongs in the internal packages; commands here only
// translate flags and render results.
package main

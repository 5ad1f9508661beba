// Package sorter drives a sort run: it enumerates source files, fans them out
// to a bounded worker pool, and aggregates each file's outcome into a Report.
//
// Every worker takes the next file from a shared index without blocking and
// runs it through the same steps: decode, filter, anonymize, build the
// destination, persist. A failure is confined to its file; the pool keeps
// going and the failure is reported, logged, recorded in the ledger and, when
// a quarantine directory is configured, the source is copied there.
//
// Cancelling the context stops workers from starting new files; files that
// were never started are reported as cancelled.
package sorter

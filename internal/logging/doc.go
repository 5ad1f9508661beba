// Package logging assembles structured slog loggers for dicomsort.
//
// The console handler writes one readable line per record to stderr. The
// daily JSON log file lifts component, run_id, worker and source to the top
// of every line so a run can be filtered with a single key. Context helpers
// carry those fields from the sorter's workers into each line.
package logging

package sorter

import (
	"time"

	"dicomsort/internal/failure"
	"dicomsort/internal/ledger"
)

// Counts tallies outcomes.
type Counts struct {
	Enumerated int
	Persisted  int
	Planned    int
	Skipped    int
	Filtered   int
	Failed     int
	Cancelled  int
}

func (c *Counts) add(outcome failure.Outcome) {
	switch outcome {
	case failure.OutcomePersisted:
		c.Persisted++
	case failure.OutcomePlanned:
		c.Planned++
	case failure.OutcomeSkipped:
		c.Skipped++
	case failure.OutcomeFiltered:
		c.Filtered++
	case failure.OutcomeCancelled:
		c.Cancelled++
	default:
		c.Failed++
	}
}

func (c Counts) ledger() ledger.Counts {
	return ledger.Counts(c)
}

// FileFailure describes one file that could not be sorted.
type FileFailure struct {
	Source     string
	Err        error
	Quarantine string
}

// Planned pairs a source with the destination chosen for it.
type Planned struct {
	Source      string
	Destination string
}

// Report summarizes a run.
type Report struct {
	RunID    string
	DryRun   bool
	Started  time.Time
	Finished time.Time
	Counts   Counts
	Failures []FileFailure
	// Destinations lists persisted or planned files in enumeration order.
	Destinations []Planned
}

// Duration is the wall time of the run.
func (r Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Progress is emitted once per finished file.
type Progress struct {
	Current     int
	Total       int
	Source      string
	Destination string
	Outcome     failure.Outcome
}

// Listener observes progress. OnProgress is called from worker goroutines and
// must be safe for concurrent use.
type Listener interface {
	OnProgress(Progress)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Progress)

// OnProgress calls f.
func (f ListenerFunc) OnProgress(p Progress) { f(p) }

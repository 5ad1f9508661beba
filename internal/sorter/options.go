package sorter

import (
	"context"
	"log/slog"

	"dicomsort/internal/ledger"
	"dicomsort/internal/record"
)

// DefaultWorkers is used when Options.Workers is not positive.
const DefaultWorkers = 2

// Options describes one sort run. Maps are copied by New.
type Options struct {
	Sources []string
	Target  string
	// FilenameTemplate names destination files; empty keeps source names.
	FilenameTemplate string
	// SortOrder lists directory levels; empty mirrors the source layout.
	SortOrder       []string
	SeriesFirst     bool
	KeepOriginal    bool
	DryRun          bool
	Workers         int
	CollisionSuffix string
	Placeholder     string

	Anonymization   map[string]any
	Ignore          map[string]any
	IgnoreAllExcept map[string]any

	// QuarantineDir receives copies of files that failed. Empty disables it.
	QuarantineDir string
	// LockDir holds the per-target run lock. Empty disables locking.
	LockDir string
}

// Decoder reads a source file into a record. Files that are not in a
// recognized format must return an error matching failure.ErrNotRecognized.
type Decoder interface {
	Decode(ctx context.Context, path string) (*record.Record, error)
}

// Persister places files at their destination. Create operations must fail
// rather than replace an existing file.
type Persister interface {
	MakeDirectories(path string) error
	WriteRecord(rec *record.Record, dst string) error
	CopyFile(src, dst string) error
	MoveFile(src, dst string) error
	RemoveFile(path string) error
}

// Quarantiner is implemented by persisters that can set failed files aside.
type Quarantiner interface {
	Quarantine(src, dst string) error
}

// Ledger receives run and per-file records.
type Ledger interface {
	BeginRun(ctx context.Context, run ledger.Run) error
	RecordOutcome(ctx context.Context, runID string, outcome ledger.FileOutcome) error
	FinishRun(ctx context.Context, runID string, status ledger.RunStatus, counts ledger.Counts, runErr error) error
}

// Option overrides a Sorter dependency.
type Option func(*Sorter)

// WithDecoder sets the file decoder.
func WithDecoder(d Decoder) Option {
	return func(s *Sorter) { s.decoder = d }
}

// WithPersister sets the persistence backend.
func WithPersister(p Persister) Option {
	return func(s *Sorter) { s.persister = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sorter) { s.logger = l }
}

// WithLedger records the run in l.
func WithLedger(l Ledger) Option {
	return func(s *Sorter) { s.ledger = l }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(s *Sorter) { s.runID = id }
}

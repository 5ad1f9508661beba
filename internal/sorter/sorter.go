package sorter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"dicomsort/internal/anonymize"
	"dicomsort/internal/destination"
	"dicomsort/internal/dicomfile"
	"dicomsort/internal/failure"
	"dicomsort/internal/filter"
	"dicomsort/internal/ledger"
	"dicomsort/internal/logging"
	"dicomsort/internal/metadata"
	"dicomsort/internal/persist"
	"dicomsort/internal/template"
)

// Sorter runs sort jobs for one immutable set of options.
type Sorter struct {
	opts       Options
	decoder    Decoder
	persister  Persister
	logger     *slog.Logger
	ledger     Ledger
	runID      string
	policy     *filter.Policy
	anonymizer *anonymize.Anonymizer
	meta       metadata.Options
}

// New validates opts and wires dependencies. Configuration problems are
// reported as failure.ErrConfiguration.
func New(opts Options, deps ...Option) (*Sorter, error) {
	opts = cloneOptions(opts)
	if err := normalizeOptions(&opts); err != nil {
		return nil, err
	}

	include, err := filter.ParseSpec("ignore_all_except", opts.IgnoreAllExcept)
	if err != nil {
		return nil, err
	}
	exclude, err := filter.ParseSpec("ignore", opts.Ignore)
	if err != nil {
		return nil, err
	}
	rules, err := anonymize.ParseRules(opts.Anonymization)
	if err != nil {
		return nil, err
	}

	s := &Sorter{
		opts:       opts,
		policy:     filter.NewPolicy(include, exclude),
		anonymizer: anonymize.New(rules),
		meta:       metadata.Options{SeriesFirst: opts.SeriesFirst},
	}
	for _, dep := range deps {
		if dep != nil {
			dep(s)
		}
	}
	if s.decoder == nil {
		s.decoder = dicomfile.New()
	}
	if s.persister == nil {
		codec, ok := s.decoder.(persist.Encoder)
		if !ok {
			codec = dicomfile.New()
		}
		s.persister = persist.NewLocal(codec)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.logger = logging.NewComponentLogger(s.logger, "sorter")
	return s, nil
}

func cloneOptions(in Options) Options {
	out := in
	out.Sources = append([]string(nil), in.Sources...)
	out.SortOrder = append([]string(nil), in.SortOrder...)
	out.Anonymization = cloneMap(in.Anonymization)
	out.Ignore = cloneMap(in.Ignore)
	out.IgnoreAllExcept = cloneMap(in.IgnoreAllExcept)
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case []string:
			out[k] = append([]string(nil), val...)
		case []any:
			out[k] = append([]any(nil), val...)
		default:
			out[k] = v
		}
	}
	return out
}

func normalizeOptions(opts *Options) error {
	if strings.TrimSpace(opts.Target) == "" {
		return fmt.Errorf("%w: target directory is required", failure.ErrConfiguration)
	}
	target, err := filepath.Abs(opts.Target)
	if err != nil {
		return fmt.Errorf("%w: target: %w", failure.ErrConfiguration, err)
	}
	opts.Target = target

	if len(opts.Sources) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("%w: resolve working directory: %w", failure.ErrConfiguration, err)
		}
		opts.Sources = []string{cwd}
	}
	for i, src := range opts.Sources {
		abs, err := filepath.Abs(src)
		if err != nil {
			return fmt.Errorf("%w: source %q: %w", failure.ErrConfiguration, src, err)
		}
		opts.Sources[i] = abs
	}
	if opts.QuarantineDir != "" {
		if opts.QuarantineDir, err = filepath.Abs(opts.QuarantineDir); err != nil {
			return fmt.Errorf("%w: quarantine: %w", failure.ErrConfiguration, err)
		}
	}

	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if err := template.Validate(opts.FilenameTemplate); err != nil {
		return err
	}
	for _, entry := range opts.SortOrder {
		if err := template.Validate(entry); err != nil {
			return err
		}
	}
	if strings.ContainsAny(opts.CollisionSuffix, `/\`) {
		return fmt.Errorf("%w: collision suffix %q contains a path separator", failure.ErrConfiguration, opts.CollisionSuffix)
	}
	return nil
}

// Options returns a copy of the effective options.
func (s *Sorter) Options() Options {
	return cloneOptions(s.opts)
}

// run carries the state of one Run call.
type run struct {
	id       string
	entries  []Entry
	results  []fileResult
	builder  *destination.Builder
	res      *destination.Reservations
	done     atomic.Int64
	listener Listener
	ledger   Ledger
}

// Run sorts every file under the configured sources. The returned error is
// non-nil when the run could not start or was cancelled; per-file failures
// are only reported in the Report.
func (s *Sorter) Run(ctx context.Context, listener Listener) (Report, error) {
	runID := s.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, s.logger)
	report := Report{RunID: runID, DryRun: s.opts.DryRun, Started: time.Now()}

	if s.opts.LockDir != "" && !s.opts.DryRun {
		lock, err := acquireTargetLock(s.opts.LockDir, s.opts.Target)
		if err != nil {
			return report, err
		}
		defer func() {
			if err := lock.release(); err != nil {
				logging.WarnWithContext(logger, "release target lock failed", "lock_release_failed",
					logging.String("lock", lock.path),
					logging.Error(err),
					logging.String(logging.FieldImpact, "lock file stays until the process exits"),
				)
			}
		}()
	}

	entries, unreadable, err := Enumerate(s.opts.Sources, s.opts.Target, s.opts.QuarantineDir)
	if err != nil {
		return report, err
	}
	report.Counts.Enumerated = len(entries) + len(unreadable)

	res := destination.NewReservations()
	r := &run{
		id:      runID,
		entries: entries,
		results: make([]fileResult, len(entries)),
		res:     res,
		builder: destination.NewBuilder(destination.Options{
			Root:             s.opts.Target,
			SortOrder:        s.opts.SortOrder,
			FilenameTemplate: s.opts.FilenameTemplate,
			Placeholder:      s.opts.Placeholder,
			CollisionSuffix:  s.opts.CollisionSuffix,
		}, res),
		listener: listener,
		ledger:   s.ledger,
	}

	if r.ledger != nil {
		err := r.ledger.BeginRun(ctx, ledger.Run{
			ID:        runID,
			StartedAt: report.Started,
			Target:    s.opts.Target,
			Sources:   s.opts.Sources,
			DryRun:    s.opts.DryRun,
		})
		if err != nil {
			logging.WarnWithContext(logger, "ledger unavailable; run will not be recorded", "ledger_begin_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check ledger.path permissions or delete a ledger with an old schema"),
				logging.String(logging.FieldImpact, "history will not list this run"),
			)
			r.ledger = nil
		}
	}

	for _, u := range unreadable {
		logging.WarnWithContext(logger, "source path unreadable; skipped", "source_unreadable",
			logging.String(logging.FieldSource, u.Path),
			logging.Error(u.Err),
			logging.String(logging.FieldErrorHint, "check read and execute permissions on the source"),
			logging.String(logging.FieldImpact, "files below this path were not sorted"),
		)
		result := fileResult{outcome: failure.Classify(u.Err), err: u.Err}
		report.Counts.add(result.outcome)
		report.Failures = append(report.Failures, FileFailure{Source: u.Path, Err: u.Err})
		s.record(ctx, r, Entry{Path: u.Path}, result)
	}

	workers := min(s.opts.Workers, len(entries))
	logger.Info("sort started",
		logging.String("target", s.opts.Target),
		logging.Int("files", len(entries)),
		logging.Int("workers", workers),
		logging.Bool("dry_run", s.opts.DryRun),
		logging.String(logging.FieldEventType, "sort_started"),
	)

	var next atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := range workers {
		go func(worker int) {
			defer wg.Done()
			s.work(logging.WithWorker(ctx, worker), r, &next)
		}(w)
	}
	wg.Wait()

	for i, result := range r.results {
		report.Counts.add(result.outcome)
		switch result.outcome {
		case failure.OutcomePersisted, failure.OutcomePlanned:
			report.Destinations = append(report.Destinations, Planned{Source: entries[i].Path, Destination: result.destination})
		case failure.OutcomeFailed:
			report.Failures = append(report.Failures, FileFailure{Source: entries[i].Path, Err: result.err, Quarantine: result.quarantine})
		}
	}
	report.Finished = time.Now()

	runErr := ctx.Err()
	status := ledger.RunCompleted
	if runErr != nil {
		status = ledger.RunCancelled
	}
	if r.ledger != nil {
		if err := r.ledger.FinishRun(context.WithoutCancel(ctx), runID, status, report.Counts.ledger(), runErr); err != nil {
			logging.WarnWithContext(logger, "ledger finish failed", "ledger_finish_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "history shows this run as running"),
			)
		}
	}

	logger.Info("sort finished",
		logging.Int("persisted", report.Counts.Persisted),
		logging.Int("planned", report.Counts.Planned),
		logging.Int("skipped", report.Counts.Skipped),
		logging.Int("filtered", report.Counts.Filtered),
		logging.Int("failed", report.Counts.Failed),
		logging.Int("cancelled", report.Counts.Cancelled),
		logging.Duration("duration", report.Duration()),
		logging.String(logging.FieldEventType, "sort_finished"),
	)

	if runErr != nil {
		return report, fmt.Errorf("sort cancelled: %w", runErr)
	}
	return report, nil
}

// work pulls entries off the shared index until none remain.
func (s *Sorter) work(ctx context.Context, r *run, next *atomic.Int64) {
	for {
		idx := int(next.Add(1) - 1)
		if idx >= len(r.entries) {
			return
		}
		entry := r.entries[idx]
		var result fileResult
		if ctx.Err() != nil {
			result = fileResult{outcome: failure.OutcomeCancelled, err: ctx.Err()}
		} else {
			result = s.processFile(logging.WithSource(ctx, entry.Path), r, entry)
		}
		r.results[idx] = result
		s.record(ctx, r, entry, result)

		current := int(r.done.Add(1))
		if r.listener != nil {
			r.listener.OnProgress(Progress{
				Current:     current,
				Total:       len(r.entries),
				Source:      entry.Path,
				Destination: result.destination,
				Outcome:     result.outcome,
			})
		}
	}
}

func (s *Sorter) record(ctx context.Context, r *run, entry Entry, result fileResult) {
	if r.ledger == nil {
		return
	}
	var message string
	if result.err != nil && result.outcome == failure.OutcomeFailed {
		message = result.err.Error()
	}
	err := r.ledger.RecordOutcome(context.WithoutCancel(ctx), r.id, ledger.FileOutcome{
		Source:      entry.Path,
		Destination: result.destination,
		Outcome:     string(result.outcome),
		Error:       message,
		Quarantine:  result.quarantine,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("ledger outcome not recorded", logging.String(logging.FieldSource, entry.Path), logging.Error(err))
	}
}

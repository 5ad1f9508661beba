package sorter

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"dicomsort/internal/failure"
	"dicomsort/internal/logging"
	"dicomsort/internal/metadata"
	"dicomsort/internal/record"
)

type fileResult struct {
	outcome     failure.Outcome
	destination string
	quarantine  string
	err         error
}

// processFile runs one entry through decode, filter, anonymize, destination
// and persistence.
func (s *Sorter) processFile(ctx context.Context, r *run, entry Entry) fileResult {
	logger := logging.WithContext(ctx, s.logger)

	rec, err := s.decoder.Decode(ctx, entry.Path)
	if err != nil {
		return s.conclude(ctx, r, entry, decodeError(entry.Path, err))
	}

	acc := metadata.New(rec, s.meta)
	if decision := s.policy.Evaluate(acc); !decision.Accept {
		logger.Debug("file filtered",
			logging.String("field", decision.Field),
			logging.String("reason", decision.Reason),
		)
		return s.conclude(ctx, r, entry, failure.Wrap(failure.ErrFilterRejected, "filter", decision.Field, decision.Reason, nil))
	}

	changed, err := s.anonymizer.Apply(acc)
	if err != nil {
		return s.conclude(ctx, r, entry, err)
	}

	dst, err := r.builder.Build(acc, entry.Relative)
	if err != nil {
		return s.conclude(ctx, r, entry, err)
	}

	if s.opts.DryRun {
		logger.Debug("file planned", logging.String("destination", dst))
		return fileResult{outcome: failure.OutcomePlanned, destination: dst}
	}

	if err := s.persist(ctx, entry, dst, len(changed) > 0, rec); err != nil {
		r.builder.Release(dst)
		return s.conclude(ctx, r, entry, err)
	}
	logger.Debug("file sorted",
		logging.String("destination", dst),
		logging.Int("rewritten_fields", len(changed)),
	)
	return fileResult{outcome: failure.OutcomePersisted, destination: dst}
}

// conclude turns a processing error into the file's result.
func (s *Sorter) conclude(ctx context.Context, r *run, entry Entry, err error) fileResult {
	outcome := failure.Classify(err)
	switch outcome {
	case failure.OutcomeFailed:
		return s.fail(ctx, r, entry, err)
	case failure.OutcomeSkipped:
		logging.WithContext(ctx, s.logger).Debug("file skipped",
			logging.String("reason", "not a recognized file"),
			logging.Error(err),
		)
	}
	return fileResult{outcome: outcome, err: err}
}

// decodeError tags decoder faults that carry no outcome marker of their own.
func decodeError(path string, err error) error {
	if failure.Classify(err) != failure.OutcomeFailed {
		return err
	}
	return failure.Wrap(failure.ErrPersistence, "decode", "read file", path, err)
}

func (s *Sorter) persist(ctx context.Context, entry Entry, dst string, rewrite bool, rec *record.Record) error {
	if err := s.persister.MakeDirectories(filepath.Dir(dst)); err != nil {
		return err
	}
	switch {
	case !rewrite && s.opts.KeepOriginal:
		return s.persister.CopyFile(entry.Path, dst)
	case !rewrite:
		return s.persister.MoveFile(entry.Path, dst)
	}
	if err := s.persister.WriteRecord(rec, dst); err != nil {
		return err
	}
	if s.opts.KeepOriginal {
		return nil
	}
	if err := s.persister.RemoveFile(entry.Path); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "source not removed after rewrite", "source_remove_failed",
			logging.String("destination", dst),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the source manually once the destination is verified"),
			logging.String(logging.FieldImpact, "file exists in both source and target"),
		)
	}
	return nil
}

// fail logs a per-file failure and copies the source to the quarantine
// directory when one is configured.
func (s *Sorter) fail(ctx context.Context, r *run, entry Entry, err error) fileResult {
	result := fileResult{outcome: failure.OutcomeFailed, err: err}
	logger := logging.WithContext(ctx, s.logger)
	if s.opts.QuarantineDir != "" && !s.opts.DryRun {
		result.quarantine = s.quarantine(logger, r, entry)
	}
	attrs := []logging.Attr{
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hintFor(err)),
		logging.String(logging.FieldImpact, "file left in source"),
	}
	if result.quarantine != "" {
		attrs = append(attrs, logging.String("quarantine", result.quarantine))
	}
	logging.WarnWithContext(logger, "file not sorted", "file_failed", attrs...)
	return result
}

func (s *Sorter) quarantine(logger *slog.Logger, r *run, entry Entry) string {
	q, ok := s.persister.(Quarantiner)
	if !ok {
		return ""
	}
	planned := filepath.Join(s.opts.QuarantineDir, filepath.Base(entry.Root), entry.Relative)
	dst, err := r.res.Claim(planned, s.opts.CollisionSuffix)
	if err == nil {
		err = q.Quarantine(entry.Path, dst)
	}
	if err != nil {
		r.res.Release(dst)
		logging.WarnWithContext(logger, "quarantine copy failed", "quarantine_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.quarantine_dir permissions"),
			logging.String(logging.FieldImpact, "failed file is only available in the source"),
		)
		return ""
	}
	return dst
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, failure.ErrAnonymization):
		return "check that anonymization templates only reference fields present in every file"
	case errors.Is(err, failure.ErrDestinationInvalid):
		return "too many files map to the same destination; refine sort_order or filename_template"
	case errors.Is(err, failure.ErrPersistence):
		return "check target permissions and free space"
	default:
		return "check logs for details"
	}
}

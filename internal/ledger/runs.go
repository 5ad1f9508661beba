package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunFailed    RunStatus = "failed"
)

// Counts tallies file outcomes for a run.
type Counts struct {
	Enumerated int
	Persisted  int
	Planned    int
	Skipped    int
	Filtered   int
	Failed     int
	Cancelled  int
}

// Run is one invocation of the sorter.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     RunStatus
	Target     string
	Sources    []string
	DryRun     bool
	Counts     Counts
	Error      string
}

// FileOutcome is the terminal state of one file within a run.
type FileOutcome struct {
	Source      string
	Destination string
	Outcome     string
	Error       string
	Quarantine  string
	RecordedAt  time.Time
}

// BeginRun inserts a run in the running state.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("begin run: empty run id")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	sources, err := json.Marshal(run.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	_, err = s.exec(ctx,
		`INSERT INTO runs (id, started_at, status, target, sources_json, dry_run)
         VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.StartedAt), RunRunning, run.Target, string(sources), boolToInt(run.DryRun),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordOutcome appends the outcome of one file.
func (s *Store) RecordOutcome(ctx context.Context, runID string, outcome FileOutcome) error {
	if outcome.RecordedAt.IsZero() {
		outcome.RecordedAt = time.Now()
	}
	_, err := s.exec(ctx,
		`INSERT INTO outcomes (run_id, source_path, destination_path, outcome, error_message, quarantine_path, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID,
		outcome.Source,
		nullableString(outcome.Destination),
		outcome.Outcome,
		nullableString(outcome.Error),
		nullableString(outcome.Quarantine),
		formatTime(outcome.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// FinishRun closes a run with its final status and counts.
func (s *Store) FinishRun(ctx context.Context, runID string, status RunStatus, counts Counts, runErr error) error {
	var message string
	if runErr != nil {
		message = runErr.Error()
	}
	res, err := s.exec(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, enumerated = ?, persisted = ?, planned = ?,
             skipped = ?, filtered = ?, failed = ?, cancelled = ?, error_message = ?
         WHERE id = ?`,
		formatTime(time.Now()), status,
		counts.Enumerated, counts.Persisted, counts.Planned,
		counts.Skipped, counts.Filtered, counts.Failed, counts.Cancelled,
		nullableString(message), runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, status, target, sources_json, dry_run,
    enumerated, persisted, planned, skipped, filtered, failed, cancelled, error_message`

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun fetches a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// Outcomes returns the recorded file outcomes of a run in insertion order.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]FileOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_path, destination_path, outcome, error_message, quarantine_path, recorded_at
         FROM outcomes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var out []FileOutcome
	for rows.Next() {
		var (
			o                               FileOutcome
			dest, errMsg, quarantine, taken sql.NullString
		)
		if err := rows.Scan(&o.Source, &dest, &o.Outcome, &errMsg, &quarantine, &taken); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Destination = dest.String
		o.Error = errMsg.String
		o.Quarantine = quarantine.String
		o.RecordedAt = parseTime(taken)
		out = append(out, o)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run               Run
		started, finished sql.NullString
		status            string
		sources           string
		dryRun            int
		errMsg            sql.NullString
	)
	err := row.Scan(&run.ID, &started, &finished, &status, &run.Target, &sources, &dryRun,
		&run.Counts.Enumerated, &run.Counts.Persisted, &run.Counts.Planned,
		&run.Counts.Skipped, &run.Counts.Filtered, &run.Counts.Failed, &run.Counts.Cancelled, &errMsg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	run.Status = RunStatus(status)
	run.DryRun = dryRun != 0
	run.Error = errMsg.String
	if err := json.Unmarshal([]byte(sources), &run.Sources); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	return &run, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

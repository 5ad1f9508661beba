package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dicomsort/internal/config"
	"dicomsort/internal/failure"
	"dicomsort/internal/logging"
	"dicomsort/internal/preflight"
	"dicomsort/internal/sorter"
)

type sortFlags struct {
	target       string
	filename     string
	keepFilename bool
	sortOrder    []string
	seriesFirst  bool
	move         bool
	dryRun       bool
	workers      int
	quarantine   string
	noLedger     bool
	quiet        bool
	verbose      bool
}

func newSortCommand(ctx *commandContext) *cobra.Command {
	var flags sortFlags

	cmd := &cobra.Command{
		Use:   "sort [source...]",
		Short: "Sort DICOM files from the source directories into the target tree",
		Long: `Sort walks every source, reads each DICOM file, applies the configured
filters and anonymization rules, and copies (or, with --move, moves) the
file to a path built from sort_order and filename_template under the target
directory.

Sources given on the command line replace sort.sources from the config file.
With no sources at all the current directory is sorted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applySortFlags(cmd, cfg, &flags, args); err != nil {
				return err
			}
			return runSort(cmd, ctx, cfg, flags)
		},
	}

	bindSortFlags(cmd, &flags)
	return cmd
}

func bindSortFlags(cmd *cobra.Command, flags *sortFlags) {
	f := cmd.Flags()
	f.StringVarP(&flags.target, "target", "t", "", "Target directory (overrides sort.target)")
	f.StringVarP(&flags.filename, "filename", "f", "", "Filename template (overrides sort.filename_template)")
	f.BoolVar(&flags.keepFilename, "keep-filename", false, "Keep source file names instead of applying a template")
	f.StringSliceVarP(&flags.sortOrder, "sort-order", "s", nil, "Comma-separated directory levels (overrides sort.sort_order)")
	f.BoolVar(&flags.seriesFirst, "series-first", false, "Name series folders Series0003_Description")
	f.BoolVar(&flags.move, "move", false, "Move files instead of copying them (overrides sort.keep_original)")
	f.BoolVarP(&flags.dryRun, "dry-run", "n", false, "Report planned destinations without touching files")
	f.IntVarP(&flags.workers, "workers", "w", 0, "Concurrent workers (overrides sort.workers)")
	f.StringVar(&flags.quarantine, "quarantine", "", "Copy failed files into this directory")
	f.BoolVar(&flags.noLedger, "no-ledger", false, "Do not record this run in the ledger")
	f.BoolVarP(&flags.quiet, "quiet", "q", false, "Disable the progress bar")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "Print every planned destination and passing preflight checks")
	cmd.MarkFlagsMutuallyExclusive("filename", "keep-filename")
}

// applySortFlags folds explicitly set flags into cfg and revalidates it.
func applySortFlags(cmd *cobra.Command, cfg *config.Config, flags *sortFlags, args []string) error {
	changed := cmd.Flags().Changed
	if len(args) > 0 {
		sources := make([]string, 0, len(args))
		for _, arg := range args {
			path, err := config.ExpandPath(strings.TrimSpace(arg))
			if err != nil {
				return fmt.Errorf("resolve source %q: %w", arg, err)
			}
			sources = append(sources, path)
		}
		cfg.Sort.Sources = sources
	}
	if len(cfg.Sort.Sources) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		cfg.Sort.Sources = []string{cwd}
	}
	if changed("target") {
		target, err := config.ExpandPath(strings.TrimSpace(flags.target))
		if err != nil {
			return fmt.Errorf("resolve target: %w", err)
		}
		cfg.Sort.Target = target
	}
	if changed("filename") {
		cfg.Sort.FilenameTemplate = strings.TrimSpace(flags.filename)
	}
	if flags.keepFilename {
		cfg.Sort.FilenameTemplate = ""
	}
	if changed("sort-order") {
		order := make([]string, 0, len(flags.sortOrder))
		for _, entry := range flags.sortOrder {
			if entry = strings.TrimSpace(entry); entry != "" {
				order = append(order, entry)
			}
		}
		cfg.Sort.SortOrder = order
	}
	if changed("series-first") {
		cfg.Sort.SeriesFirst = flags.seriesFirst
	}
	if changed("move") {
		cfg.Sort.KeepOriginal = !flags.move
	}
	if changed("dry-run") {
		cfg.Sort.DryRun = flags.dryRun
	}
	if changed("workers") {
		cfg.Sort.Workers = flags.workers
	}
	if changed("quarantine") {
		dir, err := config.ExpandPath(strings.TrimSpace(flags.quarantine))
		if err != nil {
			return fmt.Errorf("resolve quarantine: %w", err)
		}
		cfg.Paths.QuarantineDir = dir
	}
	if flags.noLedger {
		cfg.Ledger.Enabled = false
	}
	if strings.TrimSpace(cfg.Sort.Target) == "" {
		return fmt.Errorf("%w: no target directory; pass --target or set sort.target", failure.ErrConfiguration)
	}
	return cfg.Validate()
}

func runSort(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, flags sortFlags) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	results := preflight.RunAll(cmd.Context(), cfg)
	printPreflight(errOut, results, flags.verbose)
	if err := preflight.Err(results); err != nil {
		return err
	}

	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	opts := []sorter.Option{sorter.WithLogger(logger)}
	store, err := ctx.openLedger()
	if err != nil {
		logging.WarnWithContext(logger, "ledger unavailable; run will not be recorded", "ledger_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ledger.path or disable the ledger"),
		)
	} else if store != nil {
		defer store.Close()
		opts = append(opts, sorter.WithLedger(store))
	}

	s, err := sorter.New(sorter.Options{
		Sources:          cfg.Sort.Sources,
		Target:           cfg.Sort.Target,
		FilenameTemplate: cfg.Sort.FilenameTemplate,
		SortOrder:        cfg.Sort.SortOrder,
		SeriesFirst:      cfg.Sort.SeriesFirst,
		KeepOriginal:     cfg.Sort.KeepOriginal,
		DryRun:           cfg.Sort.DryRun,
		Workers:          cfg.Sort.Workers,
		CollisionSuffix:  cfg.Sort.CollisionSuffix,
		Placeholder:      cfg.Sort.Placeholder,
		Anonymization:    cfg.Anonymization,
		Ignore:           cfg.Filter.Ignore,
		IgnoreAllExcept:  cfg.Filter.IgnoreAllExcept,
		QuarantineDir:    cfg.Paths.QuarantineDir,
		LockDir:          cfg.LockDir(),
	}, opts...)
	if err != nil {
		return err
	}

	progress := newProgressReporter(errOut, logger, flags.quiet)
	report, runErr := s.Run(cmd.Context(), progress)
	progress.finish()

	printReport(out, report, cfg.Sort.Target, flags.verbose || report.DryRun)
	if runErr != nil {
		return runErr
	}
	if n := report.Counts.Failed; n > 0 {
		return fmt.Errorf("%d file(s) could not be sorted; see the failures above", n)
	}
	return nil
}

func printReport(w io.Writer, report sorter.Report, target string, listDestinations bool) {
	if listDestinations && len(report.Destinations) > 0 {
		rows := make([][]string, 0, len(report.Destinations))
		for _, p := range report.Destinations {
			rows = append(rows, []string{p.Source, relativeTo(target, p.Destination)})
		}
		title := "Sorted"
		if report.DryRun {
			title = "Planned"
		}
		fmt.Fprintln(w, renderTable([]string{"Source", title + " destination"}, rows, nil))
	}

	if len(report.Failures) > 0 {
		rows := make([][]string, 0, len(report.Failures))
		for _, f := range report.Failures {
			rows = append(rows, []string{f.Source, failureMessage(f.Err), f.Quarantine})
		}
		fmt.Fprintln(w, renderTable([]string{"Failed file", "Error", "Quarantine"}, rows, nil))
	}

	c := report.Counts
	rows := [][]string{
		{"Enumerated", strconv.Itoa(c.Enumerated)},
		{"Persisted", strconv.Itoa(c.Persisted)},
		{"Planned", strconv.Itoa(c.Planned)},
		{"Skipped", strconv.Itoa(c.Skipped)},
		{"Filtered", strconv.Itoa(c.Filtered)},
		{"Failed", strconv.Itoa(c.Failed)},
		{"Cancelled", strconv.Itoa(c.Cancelled)},
	}
	fmt.Fprintln(w, renderTable([]string{"Outcome", "Files"}, rows, []columnAlignment{alignLeft, alignRight}))
	fmt.Fprintf(w, "Run %s finished in %s (dry run: %s)\n", report.RunID, report.Duration().Round(time.Millisecond), yesNo(report.DryRun))
}

func relativeTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

func failureMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

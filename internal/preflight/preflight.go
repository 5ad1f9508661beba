package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dicomsort/internal/config"
	"dicomsort/internal/failure"
)

// MinFreeBytes is the free space RunAll requires on the target filesystem.
const MinFreeBytes = 100 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	moving := !cfg.Sort.KeepOriginal && !cfg.Sort.DryRun
	for _, src := range cfg.Sort.Sources {
		if ctx.Err() != nil {
			return results
		}
		if moving {
			results = append(results, CheckDirectoryAccess("Source directory", src))
		} else {
			results = append(results, CheckReadableDirectory("Source directory", src))
		}
	}

	if !cfg.Sort.DryRun {
		results = append(results, CheckCreatable("Target directory", cfg.Sort.Target))
		results = append(results, CheckFreeSpace("Target free space", cfg.Sort.Target, MinFreeBytes))
	}

	if cfg.Paths.QuarantineDir != "" && !cfg.Sort.DryRun {
		results = append(results, CheckCreatable("Quarantine directory", cfg.Paths.QuarantineDir))
	}
	results = append(results, CheckCreatable("State directory", cfg.Paths.StateDir))
	return results
}

// Err joins the failed results into one configuration error, or returns nil
// when every check passed.
func Err(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: preflight failed: %s", failure.ErrConfiguration, strings.Join(failed, "; "))
}

var errNoAncestor = errors.New("no existing parent directory")

package main

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"dicomsort/internal/logging"
	"dicomsort/internal/sorter"
)

// progressReporter draws a bar on interactive terminals and falls back to
// sampled log lines everywhere else.
type progressReporter struct {
	mu      sync.Mutex
	out     io.Writer
	bar     *progressbar.ProgressBar
	tty     bool
	sampler *logging.ProgressSampler
	logger  *slog.Logger
}

func newProgressReporter(out io.Writer, logger *slog.Logger, quiet bool) *progressReporter {
	return &progressReporter{
		out:     out,
		tty:     !quiet && isTerminal(out),
		sampler: logging.NewProgressSampler(10),
		logger:  logger,
	}
}

func (p *progressReporter) OnProgress(ev sorter.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty {
		if p.bar == nil {
			p.bar = progressbar.NewOptions(ev.Total,
				progressbar.OptionSetWriter(p.out),
				progressbar.OptionSetDescription("Sorting"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionThrottle(65*time.Millisecond),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = p.bar.Add(1)
		return
	}
	if ev.Total <= 0 {
		return
	}
	if p.sampler.ShouldLog(ev.Current, ev.Total) {
		p.logger.Info("sort progress",
			logging.Int("current", ev.Current),
			logging.Int("total", ev.Total),
			logging.Float64("percent", float64(ev.Current)/float64(ev.Total)*100),
			logging.String(logging.FieldEventType, "sort_progress"),
		)
	}
}

func (p *progressReporter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewTeeHandlerCollapses(t *testing.T) {
	if _, ok := newTeeHandler(nil, nil).(NoopHandler); !ok {
		t.Error("expected NoopHandler when every sink is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newTeeHandler(nil, inner); h != inner {
		t.Error("expected a single sink to be returned unwrapped")
	}
}

func TestTeeHandlerRespectsEachLevel(t *testing.T) {
	var console, file bytes.Buffer
	h := newTeeHandler(
		newConsoleHandler(&console, slog.LevelWarn, false),
		newFileHandler(&file, slog.LevelDebug, false),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected tee enabled when any sink accepts the level")
	}
	logger := slog.New(h)
	logger.Debug("file only")
	logger.Warn("both")

	if strings.Contains(console.String(), "file only") {
		t.Error("debug line reached the warn-level console")
	}
	if !strings.Contains(console.String(), "both") || !strings.Contains(file.String(), "both") {
		t.Error("warn line missing from a sink")
	}
	if !strings.Contains(file.String(), "file only") {
		t.Error("debug line missing from the file sink")
	}
}

func TestTeeHandlerWithAttrsAndGroup(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(newTeeHandler(slog.NewJSONHandler(&a, nil), slog.NewJSONHandler(&b, nil)))
	logger.With("run_id", "r1").WithGroup("file").Info("sorted", "outcome", "persisted")

	for _, out := range []string{a.String(), b.String()} {
		if !strings.Contains(out, `"run_id":"r1"`) || !strings.Contains(out, `"file":{"outcome":"persisted"}`) {
			t.Fatalf("attrs or group missing: %s", out)
		}
	}
}

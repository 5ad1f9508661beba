package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dicomsort/internal/config"
	"dicomsort/internal/logging"
)

func TestNewFromConfigWritesDailyJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("sort started", logging.String(logging.FieldRunID, "run-1"))

	content, err := os.ReadFile(logging.LogFilePath(cfg.Paths.LogDir, time.Now()))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("log file is not JSON lines: %v (%q)", err, content)
	}
	if entry["msg"] != "sort started" || entry["run_id"] != "run-1" || entry["level"] != "info" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, err := time.Parse(time.RFC3339, entry["ts"].(string)); err != nil {
		t.Fatalf("ts = %v: %v", entry["ts"], err)
	}
}

func TestJSONLinesPromoteRunFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")
	base, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatal(err)
	}
	ctx := logging.WithRunID(context.Background(), "run-7")
	ctx = logging.WithWorker(ctx, 3)
	ctx = logging.WithSource(ctx, "/in/IM0001")

	logger := logging.WithContext(ctx, logging.NewComponentLogger(base, "sorter"))
	logger.InfoContext(ctx, "file sorted", logging.String("destination", "/out/DOE/IM0001"))
	logging.NewComponentLogger(base, "sorter").InfoContext(ctx, "from context only")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	for _, line := range lines {
		for _, key := range []string{`"component"`, `"run_id"`, `"worker"`, `"source"`} {
			if n := strings.Count(line, key); n != 1 {
				t.Fatalf("%s appears %d times in %s", key, n, line)
			}
		}
		msg := strings.Index(line, `"msg"`)
		component := strings.Index(line, `"component"`)
		run := strings.Index(line, `"run_id"`)
		worker := strings.Index(line, `"worker"`)
		source := strings.Index(line, `"source"`)
		if !(msg < component && component < run && run < worker && worker < source) {
			t.Fatalf("promoted keys out of order: %s", line)
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if entry["run_id"] != "run-7" || entry["worker"] != float64(3) || entry["source"] != "/in/IM0001" {
			t.Fatalf("entry = %v", entry)
		}
	}
	if dst := strings.Index(lines[0], `"destination"`); dst < strings.Index(lines[0], `"source"`) {
		t.Fatalf("call attrs precede promoted keys: %s", lines[0])
	}
}

func TestJSONLinesLaterValueWins(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "override.log")
	base, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatal(err)
	}
	base.With(logging.String(logging.FieldSource, "/in/old")).Info("moved", logging.String(logging.FieldSource, "/in/new"))

	content, _ := os.ReadFile(logPath)
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("decode: %v (%q)", err, content)
	}
	if entry["source"] != "/in/new" {
		t.Fatalf("source = %v", entry["source"])
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")

	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller", logging.String("path", "/in/a b"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
	if !strings.Contains(string(content), `path="/in/a b"`) {
		t.Fatalf("expected quoted value, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")

	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestComponentPrefix(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "component.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatal(err)
	}
	logging.NewComponentLogger(logger, "sorter").Info("worker pool started")
	content, _ := os.ReadFile(logPath)
	if !strings.Contains(string(content), "INFO  sorter: worker pool started") {
		t.Fatalf("expected component prefix, got %q", content)
	}
}

func TestConsoleLoggerLeavesRunIDToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-run.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatal(err)
	}
	ctx := logging.WithRunID(context.Background(), "run-9")
	logging.WithContext(ctx, logger).Warn("file not sorted", logging.String(logging.FieldSource, "/in/a.dcm"))

	content, _ := os.ReadFile(logPath)
	line := string(content)
	if strings.Contains(line, "run-9") {
		t.Fatalf("console line carries the run id: %q", line)
	}
	if !strings.Contains(line, "WARN  file not sorted source=/in/a.dcm") {
		t.Fatalf("unexpected console line %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = logging.WithRunID(ctx, "run-xyz")
	ctx = logging.WithWorker(ctx, 2)
	ctx = logging.WithSource(ctx, "/in/IM0001")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WithContext(ctx, logger).Info("contextual log")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[logging.FieldRunID] != "run-xyz" {
		t.Fatalf("run_id = %v", entry[logging.FieldRunID])
	}
	if entry[logging.FieldWorker] != float64(2) {
		t.Fatalf("worker = %v", entry[logging.FieldWorker])
	}
	if entry[logging.FieldSource] != "/in/IM0001" {
		t.Fatalf("source = %v", entry[logging.FieldSource])
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WarnWithContext(logger, "quarantine copy failed", "quarantine_failed", logging.String(logging.FieldImpact, "file stays in source"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[logging.FieldEventType] != "quarantine_failed" {
		t.Fatalf("event_type = %v", entry[logging.FieldEventType])
	}
	if entry[logging.FieldErrorHint] == nil {
		t.Fatal("expected default error_hint")
	}
	if entry[logging.FieldImpact] != "file stays in source" {
		t.Fatalf("impact overridden: %v", entry[logging.FieldImpact])
	}
}

func TestPruneLogs(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
	old := filepath.Join(dir, "dicomsort-20260101.log")
	recent := filepath.Join(dir, "dicomsort-20260308.log")
	today := logging.LogFilePath(dir, now)
	unrelated := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, recent, today, unrelated} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stale := now.AddDate(0, 0, -30)
	for _, p := range []string{old, today, unrelated} {
		if err := os.Chtimes(p, stale, stale); err != nil {
			t.Fatal(err)
		}
	}
	fresh := now.AddDate(0, 0, -2)
	if err := os.Chtimes(recent, fresh, fresh); err != nil {
		t.Fatal(err)
	}

	if n := logging.PruneLogs(logging.NewNop(), dir, 7, now); n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log pruned, stat err=%v", err)
	}
	for _, p := range []string{recent, today, unrelated} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s kept: %v", filepath.Base(p), err)
		}
	}
	if n := logging.PruneLogs(logging.NewNop(), dir, 0, now); n != 0 {
		t.Fatalf("retention 0 removed %d files", n)
	}
}

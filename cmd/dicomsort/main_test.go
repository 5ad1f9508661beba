package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"dicomsort/internal/config"
	"dicomsort/internal/failure"
	"dicomsort/internal/ledger"
	"dicomsort/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	baseDir    string
	sourceDir  string
	targetDir  string
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	return &cliTestEnv{
		cfg:        cfg,
		baseDir:    base,
		sourceDir:  cfg.Sort.Sources[0],
		targetDir:  cfg.Sort.Target,
		configPath: testsupport.WriteConfig(t, cfg, filepath.Join(base, "config.toml")),
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("HOME", t.TempDir())

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.targetDir)

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("config init overwrote an existing file without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("sample config does not validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateRejectsBadTemplate(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("baseline validate: %v", err)
	}
	bad := filepath.Join(env.baseDir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[sort]\nfilename_template = \"%(Broken\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err = runCLI(t, []string{"config", "validate"}, bad)
	if !errors.Is(err, failure.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

func TestSortDryRunAndHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WritePlainFiles(t, env.sourceDir, "readme.txt", "nested/notes.txt")

	out, _, err := runCLI(t, []string{"sort", "--dry-run", "--quiet"}, env.configPath)
	if err != nil {
		t.Fatalf("sort --dry-run: %v", err)
	}
	requireContains(t, out, "Skipped")
	requireContains(t, out, "dry run: yes")
	if _, err := os.Stat(env.targetDir); !os.IsNotExist(err) {
		t.Fatalf("dry run created target: %v", err)
	}

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "completed")
	requireContains(t, out, env.targetDir)

	_, _, err = runCLI(t, []string{"history", "--run", "missing"}, env.configPath)
	if !errors.Is(err, ledger.ErrRunNotFound) {
		t.Fatalf("history --run missing: %v", err)
	}
}

func TestSortSourceArgumentsOverrideConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	other := filepath.Join(env.baseDir, "other")
	testsupport.WritePlainFiles(t, other, "a.txt")
	testsupport.WritePlainFiles(t, env.sourceDir, "b.txt", "c.txt")
	out, _, err := runCLI(t, []string{"sort", "-n", "-q", "--no-ledger", other}, env.configPath)
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	if !regexp.MustCompile(`Enumerated\s*│\s*1\s*│`).MatchString(out) {
		t.Fatalf("expected one enumerated file:\n%s", out)
	}
}

func TestSortRequiresTarget(t *testing.T) {
	base := t.TempDir()
	configPath := filepath.Join(base, "config.yaml")
	body := fmt.Sprintf("paths:\n  state_dir: %q\nlogging:\n  level: error\n", filepath.Join(base, "state"))
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCLI(t, []string{"sort", "--dry-run", base}, configPath)
	if !errors.Is(err, failure.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

func TestSortRejectsConflictingFilenameFlags(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"sort", "--filename", "%(PatientID)s", "--keep-filename"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for --filename with --keep-filename")
	}
}

func TestFieldsWithoutDicomFiles(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WritePlainFiles(t, env.sourceDir, "a.txt")
	_, _, err := runCLI(t, []string{"fields"}, env.configPath)
	if !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestHistoryWithLedgerDisabled(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithLedgerDisabled())
	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "Ledger is disabled")
}

func TestConfigValidateWarnsOnUnknownFields(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Originals:   copied")
	if strings.Contains(out, "Warning:") {
		t.Fatalf("default config produced warnings:\n%s", out)
	}

	env.cfg.Sort.FilenameTemplate = "%(PatientNmae)s%(FileExtension)s"
	env.cfg.Sort.SortOrder = []string{"StudyDate", "ScannerColour"}
	env.cfg.Anonymization = map[string]any{"PatientName": "%(PatientID)s"}
	path := testsupport.WriteConfig(t, env.cfg, filepath.Join(env.baseDir, "typo.toml"))
	out, _, err = runCLI(t, []string{"config", "validate"}, path)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, `Warning: field "PatientNmae"`)
	requireContains(t, out, `Warning: field "ScannerColour"`)
	for _, known := range []string{"StudyDate", "FileExtension", "PatientName", "PatientID"} {
		if strings.Contains(out, fmt.Sprintf("%q", known)) {
			t.Fatalf("known field %s reported:\n%s", known, out)
		}
	}
	requireContains(t, out, "Configuration valid")
}

func TestSortMoveFlagOverridesKeepOriginal(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{name: "default copies", want: true},
		{name: "move", args: []string{"--move"}, want: false},
		{name: "move disabled", args: []string{"--move=false"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			cmd := &cobra.Command{Use: "sort"}
			var flags sortFlags
			bindSortFlags(cmd, &flags)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("parse flags: %v", err)
			}
			if err := applySortFlags(cmd, cfg, &flags, nil); err != nil {
				t.Fatalf("applySortFlags: %v", err)
			}
			if cfg.Sort.KeepOriginal != tt.want {
				t.Fatalf("keep_original = %v, want %v", cfg.Sort.KeepOriginal, tt.want)
			}
		})
	}
}

package destination

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"dicomsort/internal/metadata"
	"dicomsort/internal/record"
)

func accessor(path string, fields map[string]any) *metadata.Accessor {
	rec := record.New(path)
	for _, name := range []string{"PatientName", "StudyDate", "SeriesNumber", "SeriesDescription", "InstanceNumber", "ImageType", "ProtocolName"} {
		if v, ok := fields[name]; ok {
			rec.Add(name, v)
		}
	}
	return metadata.New(rec, metadata.Options{})
}

func TestNormalizeSortOrderMovesSeriesLabelLast(t *testing.T) {
	tests := []struct {
		name  string
		order []string
		want  []string
	}{
		{"already last", []string{"PatientName", "SeriesDescription"}, []string{"PatientName", "SeriesDescription"}},
		{"first", []string{"SeriesDescription", "PatientName", "StudyDate"}, []string{"PatientName", "StudyDate", "SeriesDescription"}},
		{"token form", []string{"%(SeriesDescription)s", "PatientName"}, []string{"PatientName", "%(SeriesDescription)s"}},
		{"absent", []string{"PatientName", " ", "StudyDate"}, []string{"PatientName", "StudyDate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeSortOrder(tt.order)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlanBuildsSegmentsAndFilename(t *testing.T) {
	root := t.TempDir()
	b := NewBuilder(Options{
		Root:             root,
		SortOrder:        []string{"SeriesDescription", "PatientName", "StudyDate"},
		FilenameTemplate: DefaultFilenameTemplate,
	}, nil)
	acc := accessor("/in/a/IM0001", map[string]any{
		"PatientName":       "DOE^JANE",
		"StudyDate":         "20240102",
		"SeriesNumber":      3,
		"SeriesDescription": "T1 AX",
		"InstanceNumber":    7,
		"ImageType":         []string{"ORIGINAL", "PRIMARY", "M", "FFE"},
	})
	got := b.Plan(acc, "a/IM0001")
	want := filepath.Join(root, "DOE^JANE", "20240102", "T1_AX_Series0003", "Mag_(0007).dcm")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPlanUsesPlaceholderForMissingSegment(t *testing.T) {
	root := t.TempDir()
	b := NewBuilder(Options{Root: root, SortOrder: []string{"PatientName", "ProtocolName"}}, nil)
	acc := accessor("/in/IM0002", map[string]any{"PatientName": "DOE"})
	got := b.Plan(acc, "IM0002")
	want := filepath.Join(root, "DOE", DefaultPlaceholder, "IM0002")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFilenameFallsBackToSourceName(t *testing.T) {
	b := NewBuilder(Options{Root: "/out", SortOrder: []string{"PatientName"}, FilenameTemplate: "%(Missing)s.dcm"}, nil)
	acc := accessor("/in/deep/IM0003", map[string]any{"PatientName": "DOE"})
	if got := b.Filename(acc); got != "IM0003" {
		t.Fatalf("got %q, want IM0003", got)
	}
}

func TestSegmentsAreSanitized(t *testing.T) {
	b := NewBuilder(Options{Root: "/out", SortOrder: []string{"PatientName"}}, nil)
	acc := accessor("/in/x", map[string]any{"PatientName": "../etc/passwd"})
	got := b.Directory(acc)
	if got != filepath.Join("/out", "..-etc-passwd") {
		t.Fatalf("unexpected directory %q", got)
	}
}

func TestMirrorModeKeepsRelativeLayout(t *testing.T) {
	b := NewBuilder(Options{Root: "/out"}, nil)
	acc := accessor("/in/study/series/IM1", nil)
	if got := b.Plan(acc, "study/series/IM1"); got != filepath.Join("/out", "study", "series", "IM1") {
		t.Fatalf("got %q", got)
	}
	if got := b.Plan(acc, "../escape/IM1"); got != filepath.Join("/out", "IM1") {
		t.Fatalf("escaping relative path not contained: %q", got)
	}
}

func TestBuildAppendsCollisionSuffixRepeatedly(t *testing.T) {
	root := t.TempDir()
	b := NewBuilder(Options{Root: root, SortOrder: []string{"PatientName"}}, nil)
	acc := accessor("/in/IM0001", map[string]any{"PatientName": "DOE"})
	dir := filepath.Join(root, "DOE")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	base := filepath.Join(dir, "IM0001")
	for _, p := range []string{base, base + ".copy"} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := b.Build(acc, "IM0001")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got != base+".copy.copy" {
		t.Fatalf("got %q", got)
	}
	again, err := b.Build(acc, "IM0001")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if again != base+".copy.copy.copy" {
		t.Fatalf("claimed path reused: %q", again)
	}
}

func TestReservationsUniqueUnderConcurrency(t *testing.T) {
	res := NewReservations()
	target := filepath.Join(t.TempDir(), "same")
	const workers = 16
	results := make([]string, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := res.Claim(target, ".copy")
			if err != nil {
				t.Errorf("Claim: %v", err)
				return
			}
			results[i] = p
		}(i)
	}
	wg.Wait()
	seen := make(map[string]bool, workers)
	for _, p := range results {
		if seen[p] {
			t.Fatalf("duplicate claim %q", p)
		}
		seen[p] = true
	}
	if res.Len() != workers {
		t.Fatalf("expected %d claims, got %d", workers, res.Len())
	}
}

func TestReleaseFreesClaim(t *testing.T) {
	res := NewReservations()
	target := filepath.Join(t.TempDir(), "f")
	first, _ := res.Claim(target, "")
	res.Release(first)
	second, err := res.Claim(target, "")
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Fatalf("expected released path to be reusable, got %q", second)
	}
}

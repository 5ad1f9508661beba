package template

import (
	"errors"
	"reflect"
	"testing"

	"dicomsort/internal/failure"
)

type mapSource map[string]any

func (m mapSource) Get(field string) (any, error) {
	v, ok := m[field]
	if !ok {
		return nil, failure.ErrNotFound
	}
	return v, nil
}

type countingSource struct {
	mapSource
	calls int
}

func (c *countingSource) Get(field string) (any, error) {
	c.calls++
	return c.mapSource.Get(field)
}

func TestResolve(t *testing.T) {
	src := mapSource{
		"ImageType":      "Mag",
		"InstanceNumber": 7,
		"FileExtension":  ".dcm",
		"PatientName":    "DOE JANE",
		"Slice":          1.26,
		"Text":           "42",
	}
	tests := []struct {
		tmpl string
		want string
	}{
		{"%(ImageType)s_(%(InstanceNumber)04d)%(FileExtension)s", "Mag_(0007).dcm"},
		{"%(PatientName)s", "DOE_JANE"},
		{"Image_(%(InstanceNumber)04d)", "Image_(0007)"},
		{"%(Slice).1f", "1.3"},
		{"%(Text)03d", "042"},
		{"%(InstanceNumber)x", "7"},
		{"100%% done", "100%_done"},
		{"plain", "plain"},
		{"50% off", "50%_off"},
		{"%(ImageType)-5s|", "Mag_|"},
	}
	for _, tt := range tests {
		got, err := Resolve(tt.tmpl, src)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.tmpl, err)
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.tmpl, got, tt.want)
		}
	}
}

func TestResolveExpandsNestedTokens(t *testing.T) {
	src := mapSource{
		"Label":  "%(Study)s-%(Series)s",
		"Study":  "S1",
		"Series": "Ax",
	}
	got, err := Resolve("%(Label)s", src)
	if err != nil {
		t.Fatal(err)
	}
	// One % in the template allows a single pass.
	if got != "%(Study)s-%(Series)s" {
		t.Fatalf("single pass expected, got %q", got)
	}
	got, err = Resolve("%(Label)s%%", src)
	if err != nil {
		t.Fatal(err)
	}
	if got != "S1-Ax%" {
		t.Fatalf("nested expansion = %q", got)
	}
}

func TestResolveTerminatesOnSelfReference(t *testing.T) {
	src := &countingSource{mapSource: mapSource{"A": "%(A)s%(A)s"}}
	got, err := Resolve("%(A)s %(A)s", src)
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Fatal("expected output")
	}
	// Two % characters bound the expansion to two passes: 2 lookups, then 4.
	if src.calls != 6 {
		t.Fatalf("lookups = %d, want 6", src.calls)
	}
}

func TestResolveUnresolvableToken(t *testing.T) {
	_, err := Resolve("%(Missing)s", mapSource{})
	if !errors.Is(err, failure.ErrUnresolvableToken) {
		t.Fatalf("expected ErrUnresolvableToken, got %v", err)
	}
	if !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("expected lookup cause to be kept, got %v", err)
	}
	_, err = Resolve("%(Name)d", mapSource{"Name": "abc"})
	if !errors.Is(err, failure.ErrUnresolvableToken) {
		t.Fatalf("expected format failure to be unresolvable, got %v", err)
	}
}

func TestExpandKeepsWhitespace(t *testing.T) {
	got, err := Expand("%(A)s", mapSource{"A": "x  y"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "x  y" {
		t.Fatalf("got %q", got)
	}
}

func TestFieldsAndValidate(t *testing.T) {
	tmpl := "%(ImageType)s_(%(InstanceNumber)04d)%%%(FileExtension)s"
	want := []string{"ImageType", "InstanceNumber", "FileExtension"}
	if got := Fields(tmpl); !reflect.DeepEqual(got, want) {
		t.Fatalf("Fields() = %v, want %v", got, want)
	}
	if err := Validate(tmpl); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, bad := range []string{"%(Unclosed", "%(Name)q", "%(Name)"} {
		if err := Validate(bad); !errors.Is(err, failure.ErrConfiguration) {
			t.Errorf("Validate(%q) = %v, want configuration error", bad, err)
		}
	}
	if err := Validate("50% off"); err != nil {
		t.Fatalf("lone percent should be accepted: %v", err)
	}
}

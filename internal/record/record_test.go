package record

import (
	"reflect"
	"testing"
	"time"
)

func TestRecordSetOnlyOverwritesExistingFields(t *testing.T) {
	rec := New("/src/a.dcm")
	rec.Add("PatientName", "DOE^JANE")
	rec.Add("PatientID", "SUBJ001")

	if rec.Set("PatientBirthDate", "") {
		t.Fatal("expected Set to refuse a missing field")
	}
	if rec.Has("PatientBirthDate") {
		t.Fatal("missing field must not be created")
	}
	if !rec.Set("PatientName", "SUBJ001") {
		t.Fatal("expected Set to overwrite existing field")
	}
	if got, _ := rec.Get("PatientName"); got != "SUBJ001" {
		t.Fatalf("PatientName = %v", got)
	}
	if want := []string{"PatientName"}; !reflect.DeepEqual(rec.Modified(), want) {
		t.Fatalf("Modified() = %v, want %v", rec.Modified(), want)
	}
}

func TestRecordAddKeepsOrderAndIsNotModification(t *testing.T) {
	rec := New("x")
	rec.Add("B", 1)
	rec.Add("A", 2)
	rec.Add("B", 3)
	if want := []string{"B", "A"}; !reflect.DeepEqual(rec.Names(), want) {
		t.Fatalf("Names() = %v, want %v", rec.Names(), want)
	}
	if rec.IsModified() {
		t.Fatal("Add must not mark the record modified")
	}
}

func TestRecordCloneIsIndependent(t *testing.T) {
	rec := New("x")
	rec.Add("ImageType", []string{"ORIGINAL", "PRIMARY"})
	rec.SetHandle("dataset")

	clone := rec.Clone()
	tags, _ := clone.Get("ImageType")
	tags.([]string)[0] = "DERIVED"
	clone.Set("ImageType", []string{"P"})

	orig, _ := rec.Get("ImageType")
	if orig.([]string)[0] != "ORIGINAL" {
		t.Fatalf("clone shares slice storage with original: %v", orig)
	}
	if rec.IsModified() {
		t.Fatal("modifying the clone must not mark the original")
	}
	if clone.Handle() != "dataset" {
		t.Fatalf("clone handle = %v", clone.Handle())
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"abc", "abc"},
		{[]string{"ORIGINAL", "PRIMARY", "M"}, `ORIGINAL\PRIMARY\M`},
		{7, "7"},
		{int64(12), "12"},
		{2.5, "2.5"},
		{[]int{1, 2}, `1\2`},
		{time.Date(2021, 8, 1, 0, 0, 0, 0, time.UTC), "20210801"},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIntAndStrings(t *testing.T) {
	if n, ok := Int(" 42 "); !ok || n != 42 {
		t.Fatalf("Int(text) = %d, %v", n, ok)
	}
	if n, ok := Int([]int{5, 6}); !ok || n != 5 {
		t.Fatalf("Int([]int) = %d, %v", n, ok)
	}
	if _, ok := Int("abc"); ok {
		t.Fatal("expected non-numeric text to fail")
	}
	if got := Strings(`FFE\M`); !reflect.DeepEqual(got, []string{"FFE", "M"}) {
		t.Fatalf("Strings(split) = %v", got)
	}
	if got := Strings(""); got != nil {
		t.Fatalf("Strings(empty) = %v", got)
	}
}

func TestRecordPutCreatesField(t *testing.T) {
	rec := New("x")
	rec.Put("InstanceNumber", 4)
	if v, ok := rec.Get("InstanceNumber"); !ok || v != 4 {
		t.Fatalf("InstanceNumber = %v, %v", v, ok)
	}
	if !rec.IsModified() {
		t.Fatal("Put must mark the record modified")
	}
}

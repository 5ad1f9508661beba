package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ax T1", "Ax T1"},
		{" a/b\\c:d*e ", "a-b-c-d-e"},
		{`what?"<>|`, "what"},
		{"tab\tname", "tabname"},
		{"..", ""},
		{".", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.in); got != tt.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCollapseWhitespace(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ax T1  mapping", "Ax_T1_mapping"},
		{" lead\t\ntrail ", "_lead_trail_"},
		{"none", "none"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CollapseWhitespace(tt.in, "_"); got != tt.want {
			t.Errorf("CollapseWhitespace(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("  "); got != "unknown" {
		t.Fatalf("got %q", got)
	}
	if got := SanitizeToken("/media/CDROM/a"); got != "media_cdrom_a" {
		t.Fatalf("got %q", got)
	}
}

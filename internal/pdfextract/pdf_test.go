package pdfextract

import "testing"

func TestCleanPageText_CollapsesBlankRuns(t *testing.T) {
	in := "line one\n\n\n\nline two"
	got := cleanPageText(in)
	want := "line one\n\nline two"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCleanPageText_TrimsTrailingSpaces(t *testing.T) {
	in := "line one   \nline two"
	got := cleanPageText(in)
	want := "line one\nline two"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

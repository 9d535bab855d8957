package extract

import "testing"

func TestDetectFormat_PDF(t *testing.T) {
	got, err := DetectFormat([]byte("%PDF-1.4\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "pdf" {
		t.Errorf("got %q, want pdf", got)
	}
}

func TestExtractPlain_UnrecognizedInput(t *testing.T) {
	_, err := ExtractPlain([]byte("just some random bytes"))
	if err == nil {
		t.Error("expected error for unrecognized input")
	}
}

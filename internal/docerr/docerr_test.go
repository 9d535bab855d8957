package docerr

import (
	"errors"
	"testing"
)

func TestError_MessageWithCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindArchive, cause, "open %s", "part.xml")
	want := "docscribe: archive: open part.xml: boom"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestError_MessageWithoutCause(t *testing.T) {
	err := New(KindDocument, "missing %s stream", "WordDocument")
	want := "docscribe: document: missing WordDocument stream"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestEncrypted(t *testing.T) {
	err := Encrypted("doc")
	if err.Kind != KindDocument {
		t.Errorf("got Kind=%v, want KindDocument", err.Kind)
	}
	if err.Error() != "docscribe: document: doc document is encrypted" {
		t.Errorf("got %q", err.Error())
	}
}

func TestUnsupported(t *testing.T) {
	if Unsupported().Kind != KindDocument {
		t.Error("expected Unsupported to use KindDocument")
	}
}

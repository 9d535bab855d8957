package dispatch

import "testing"

func TestDetect_PDF(t *testing.T) {
	got, err := Detect([]byte("%PDF-1.7\n..."))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != FormatPDF {
		t.Errorf("got %v, want %v", got, FormatPDF)
	}
}

func TestDetect_UnrecognizedSignature(t *testing.T) {
	_, err := Detect([]byte("not a document"))
	if err == nil {
		t.Error("expected error for unrecognized signature")
	}
}

func TestFormat_String(t *testing.T) {
	cases := map[Format]string{
		FormatDOC:  "doc",
		FormatDOCX: "docx",
		FormatXLS:  "xls",
		FormatXLSX: "xlsx",
		FormatPPTX: "pptx",
		FormatPDF:  "pdf",
		Unknown:    "unknown",
	}
	for f, want := range cases {
		if got := f.String(); got != want {
			t.Errorf("Format(%d).String() = %q, want %q", f, got, want)
		}
	}
}

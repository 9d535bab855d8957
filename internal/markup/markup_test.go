package markup

import (
	"strings"
	"testing"
)

type testRun struct {
	text   string
	bold   bool
	italic bool
	link   string
}

func (r testRun) Text() string    { return r.text }
func (r testRun) Bold() bool      { return r.bold }
func (r testRun) Italic() bool    { return r.italic }
func (r testRun) LinkURL() string { return r.link }

func TestFormatRunInline(t *testing.T) {
	cases := []struct {
		run  testRun
		want string
	}{
		{testRun{text: "plain"}, "plain"},
		{testRun{text: "bold", bold: true}, "**bold**"},
		{testRun{text: "italic", italic: true}, "*italic*"},
		{testRun{text: "both", bold: true, italic: true}, "***both***"},
		{testRun{text: "   "}, "   "},
	}
	for _, c := range cases {
		var out strings.Builder
		FormatRunInline(c.run, &out)
		if got := out.String(); got != c.want {
			t.Errorf("FormatRunInline(%+v) = %q, want %q", c.run, got, c.want)
		}
	}
}

func TestRenderRunsMarkdown_GroupsAdjacentLinks(t *testing.T) {
	runs := []InlineRun{
		testRun{text: "click "},
		testRun{text: "here", link: "https://example.com"},
		testRun{text: " now", link: "https://example.com"},
		testRun{text: "."},
	}
	got := RenderRunsMarkdown(runs)
	want := "click [here now](https://example.com)."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderRunsMarkdown_SkipsWhitespaceOnlyLinkGroup(t *testing.T) {
	runs := []InlineRun{
		testRun{text: "  ", link: "https://example.com"},
	}
	if got := RenderRunsMarkdown(runs); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestDetectImageMIME(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want string
		ok   bool
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg", true},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A}, "image/png", true},
		{"gif", []byte("GIF89a"), "image/gif", true},
		{"bmp", []byte("BM\x00\x00"), "image/bmp", true},
		{"svg", []byte("<?xml version=\"1.0\"?><svg xmlns='x'></svg>"), "image/svg+xml", true},
		{"unknown", []byte{0x00, 0x01, 0x02}, "", false},
	}
	for _, c := range cases {
		mime, ok := DetectImageMIME(c.data)
		if ok != c.ok || mime != c.want {
			t.Errorf("%s: got (%q, %v), want (%q, %v)", c.name, mime, ok, c.want, c.ok)
		}
	}
}

func TestImageToBase64Ref(t *testing.T) {
	data := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	ref, ok := ImageToBase64Ref(data, "img1")
	if !ok {
		t.Fatal("expected ok=true for PNG data")
	}
	if ref.Inline != "![][img1]" {
		t.Errorf("got inline %q", ref.Inline)
	}
	if ref.Definition == "" {
		t.Error("expected non-empty definition")
	}
}

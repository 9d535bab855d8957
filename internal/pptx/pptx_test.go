package pptx

import (
	"strings"
	"testing"
)

func TestRenderPlain_MultipleSlides(t *testing.T) {
	slides := []Slide{
		{Shapes: []Shape{{Paragraphs: []Paragraph{{Runs: []TextRun{{text: "Title"}}}}}}},
		{Shapes: []Shape{{Paragraphs: []Paragraph{{Runs: []TextRun{{text: "Body"}}}}}}},
	}
	got := renderPlain(slides)
	want := "--- Slide 1 ---\nTitle\n\n--- Slide 2 ---\nBody"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderPlain_SingleSlideNoBanner(t *testing.T) {
	slides := []Slide{
		{Shapes: []Shape{{Paragraphs: []Paragraph{{Runs: []TextRun{{text: "Only"}}}}}}},
	}
	got := renderPlain(slides)
	if got != "Only" {
		t.Errorf("got %q", got)
	}
}

func TestRenderMarkdown_BulletAndNumbered(t *testing.T) {
	slides := []Slide{
		{Shapes: []Shape{{Paragraphs: []Paragraph{
			{Bullet: true, ListLevel: 1, Runs: []TextRun{{text: "first"}}},
			{Bullet: true, Numbered: true, ListLevel: 1, Runs: []TextRun{{text: "second"}}},
		}}}},
	}
	got := renderMarkdown(slides)
	if !strings.Contains(got, "- first") || !strings.Contains(got, "1. second") {
		t.Errorf("got %q", got)
	}
}

func TestRenderMarkdown_SingleSlideSubBullet(t *testing.T) {
	slides := []Slide{
		{Shapes: []Shape{{Paragraphs: []Paragraph{
			{Bullet: true, ListLevel: 1, Runs: []TextRun{{text: "Sub"}}},
		}}}},
	}
	got := renderMarkdown(slides)
	want := "  - Sub"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderMarkdown_HeadingFromFontSize(t *testing.T) {
	cases := []struct {
		font int
		want int
	}{
		{2800, 1},
		{2400, 2},
		{2000, 3},
		{1999, 0},
	}
	for _, c := range cases {
		p := Paragraph{Runs: []TextRun{{text: "Title", fontSize: c.font}}}
		hl := headingLevelForTest(p.Runs)
		if hl != c.want {
			t.Errorf("font %d: got heading level %d, want %d", c.font, hl, c.want)
		}
	}
}

func TestRenderMarkdown_HeadingLevelOffsetByTwo(t *testing.T) {
	slides := []Slide{
		{Shapes: []Shape{{Paragraphs: []Paragraph{{HeadingLevel: 3, Runs: []TextRun{{text: "Big"}}}}}}},
	}
	got := renderMarkdown(slides)
	if !strings.HasPrefix(got, "##### Big") {
		t.Errorf("got %q, want level-5 heading (3+2)", got)
	}
}

func TestRenderMarkdown_NoSlideHeaderForSingleSlide(t *testing.T) {
	slides := []Slide{
		{Shapes: []Shape{{Paragraphs: []Paragraph{{Runs: []TextRun{{text: "Body"}}}}}}},
	}
	got := renderMarkdown(slides)
	if strings.Contains(got, "## Slide") {
		t.Errorf("single-slide deck should not emit a slide header, got %q", got)
	}
}

func TestRenderMarkdown_SlideHeaderForMultipleSlides(t *testing.T) {
	slides := []Slide{
		{Shapes: []Shape{{Paragraphs: []Paragraph{{Runs: []TextRun{{text: "One"}}}}}}},
		{Shapes: []Shape{{Paragraphs: []Paragraph{{Runs: []TextRun{{text: "Two"}}}}}}},
	}
	got := renderMarkdown(slides)
	if !strings.Contains(got, "## Slide 1") || !strings.Contains(got, "## Slide 2") {
		t.Errorf("got %q", got)
	}
}

// headingLevelForTest mirrors decodeParagraph's font-size-to-heading-level
// thresholds, exercised directly since the real computation happens
// inline during XML decoding.
func headingLevelForTest(runs []TextRun) int {
	maxFont := 0
	for _, r := range runs {
		if r.fontSize > maxFont {
			maxFont = r.fontSize
		}
	}
	switch {
	case maxFont >= heading1MinFontPt100:
		return 1
	case maxFont >= heading2MinFontPt100:
		return 2
	case maxFont >= heading3MinFontPt100:
		return 3
	default:
		return 0
	}
}

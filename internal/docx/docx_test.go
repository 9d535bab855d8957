package docx

import "testing"

func TestHeadingLevelFromStyle(t *testing.T) {
	cases := map[string]int{
		"Heading1": 1,
		"heading2": 2,
		"Heading9": 6,
		"Title":    1,
		"Normal":   0,
		"":         0,
	}
	for in, want := range cases {
		if got := headingLevelFromStyle(in); got != want {
			t.Errorf("headingLevelFromStyle(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestRenderPlain_ParagraphsAndTable(t *testing.T) {
	blocks := []Block{
		{Paragraph: &Paragraph{Runs: []Run{{text: "Hello"}}}},
		{Table: &Table{Rows: [][]TableCell{
			{{Paragraphs: []Paragraph{{Runs: []Run{{text: "a"}}}}}, {Paragraphs: []Paragraph{{Runs: []Run{{text: "b"}}}}}},
		}}},
	}
	got := renderPlain(blocks)
	want := "Hello\na\tb"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderMarkdown_Heading(t *testing.T) {
	blocks := []Block{
		{Paragraph: &Paragraph{HeadingLevel: 2, Runs: []Run{{text: "Background"}}}},
	}
	got := renderMarkdown(blocks)
	if got != "## Background" {
		t.Errorf("got %q", got)
	}
}

func TestRenderMarkdown_ListItem(t *testing.T) {
	blocks := []Block{
		{Paragraph: &Paragraph{HasList: true, ListLevel: 1, Runs: []Run{{text: "Sub item"}}}},
	}
	got := renderMarkdown(blocks)
	want := "  - Sub item"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderMarkdown_BoldLink(t *testing.T) {
	blocks := []Block{
		{Paragraph: &Paragraph{Runs: []Run{{text: "click here", bold: true, link: "https://example.com"}}}},
	}
	got := renderMarkdown(blocks)
	want := "[**click here**](https://example.com)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

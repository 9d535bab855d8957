package xlsx

import "testing"

func TestParseCellRef(t *testing.T) {
	cases := []struct {
		ref      string
		row, col int
	}{
		{"A1", 0, 0},
		{"C7", 6, 2},
		{"AA1", 0, 26},
	}
	for _, c := range cases {
		row, col := parseCellRef(c.ref)
		if row != c.row || col != c.col {
			t.Errorf("parseCellRef(%q) = (%d,%d), want (%d,%d)", c.ref, row, col, c.row, c.col)
		}
	}
}

func TestResolveCellValue_SharedString(t *testing.T) {
	sst := []string{"Alpha", "Beta"}
	got := resolveCellValue("1", "s", 0, sst, nil)
	if got != "Beta" {
		t.Errorf("got %q, want Beta", got)
	}
}

func TestResolveCellValue_Boolean(t *testing.T) {
	if got := resolveCellValue("1", "b", 0, nil, nil); got != "TRUE" {
		t.Errorf("got %q, want TRUE", got)
	}
	if got := resolveCellValue("0", "b", 0, nil, nil); got != "FALSE" {
		t.Errorf("got %q, want FALSE", got)
	}
}

func TestResolveCellValue_DateStyle(t *testing.T) {
	dateStyles := []bool{false, true}
	got := resolveCellValue("1", "", 1, nil, dateStyles)
	if got != "1900-01-01" {
		t.Errorf("got %q, want 1900-01-01", got)
	}
}

func TestResolveCellValue_PlainNumber(t *testing.T) {
	got := resolveCellValue("42.5", "", 0, nil, []bool{false})
	if got != "42.5" {
		t.Errorf("got %q, want 42.5", got)
	}
}

func TestLoadSharedStrings(t *testing.T) {
	xmlData := []byte(`<?xml version="1.0"?><sst><si><t>Hello</t></si><si><t>World</t></si></sst>`)
	got, err := loadSharedStrings(xmlData)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "Hello" || got[1] != "World" {
		t.Errorf("got %v", got)
	}
}

func TestApplyHyperlinks_WrapsExistingValue(t *testing.T) {
	sheetXML := []byte(`<worksheet><hyperlinks><hyperlink ref="A1" r:id="rId1"/></hyperlinks></worksheet>`)
	rels := map[string]string{"rId1": "https://example.com"}
	grid := [][]string{{"Click"}}
	applyHyperlinks(sheetXML, rels, grid)
	if grid[0][0] != "[Click](https://example.com)" {
		t.Errorf("got %q", grid[0][0])
	}
}

func TestApplyHyperlinks_SkipsEmptyCell(t *testing.T) {
	sheetXML := []byte(`<worksheet><hyperlinks><hyperlink ref="B1" r:id="rId1"/></hyperlinks></worksheet>`)
	rels := map[string]string{"rId1": "https://example.com"}
	grid := [][]string{{"", ""}}
	applyHyperlinks(sheetXML, rels, grid)
	if grid[0][1] != "" {
		t.Errorf("expected empty cell left untouched, got %q", grid[0][1])
	}
}

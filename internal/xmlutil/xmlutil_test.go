package xmlutil

import "testing"

func TestParseRelsXML_ExtractsHyperlinks(t *testing.T) {
	data := []byte(`<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com" TargetMode="External"/>
  <Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/>
</Relationships>`)
	rels, err := ParseRelsXML(data)
	if err != nil {
		t.Fatalf("ParseRelsXML: %v", err)
	}
	if rels["rId1"] != "https://example.com" {
		t.Errorf("got %q", rels["rId1"])
	}
	if _, ok := rels["rId2"]; ok {
		t.Error("image relationship should not be included")
	}
}

func TestParseImageRelsXML(t *testing.T) {
	data := []byte(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../media/image1.png"/>
</Relationships>`)
	rels, err := ParseImageRelsXML(data)
	if err != nil {
		t.Fatalf("ParseImageRelsXML: %v", err)
	}
	if rels["rId1"] != "../media/image1.png" {
		t.Errorf("got %q", rels["rId1"])
	}
}

func TestParseAllRelsXML_IncludesEveryType(t *testing.T) {
	data := []byte(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="slideMasters/slideMaster1.xml"/>
  <Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide1.xml"/>
</Relationships>`)
	rels, err := ParseAllRelsXML(data)
	if err != nil {
		t.Fatalf("ParseAllRelsXML: %v", err)
	}
	if rels["rId1"] != "slideMasters/slideMaster1.xml" || rels["rId2"] != "slides/slide1.xml" {
		t.Errorf("got %+v", rels)
	}
}

func TestRelsPath(t *testing.T) {
	cases := map[string]string{
		"xl/worksheets/sheet1.xml": "xl/worksheets/_rels/sheet1.xml.rels",
		"word/document.xml":        "word/_rels/document.xml.rels",
		"document.xml":             "_rels/document.xml.rels",
	}
	for in, want := range cases {
		if got := RelsPath(in); got != want {
			t.Errorf("RelsPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeZipPath(t *testing.T) {
	cases := []struct{ base, target, want string }{
		{"xl/worksheets", "../media/image1.png", "xl/media/image1.png"},
		{"xl/drawings", "/xl/media/image1.png", "xl/media/image1.png"},
		{"", "xl/workbook.xml", "xl/workbook.xml"},
	}
	for _, c := range cases {
		if got := NormalizeZipPath(c.base, c.target); got != c.want {
			t.Errorf("NormalizeZipPath(%q, %q) = %q, want %q", c.base, c.target, got, c.want)
		}
	}
}

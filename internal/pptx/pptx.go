// Package pptx extracts text from Office Open XML PresentationML
// (.pptx) slide decks: a ZIP archive whose ppt/presentation.xml lists
// slides in presentation order, each a tree of shapes containing
// paragraphs of text runs.
package pptx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"docscribe/internal/docerr"
	"docscribe/internal/markup"
	"docscribe/internal/xmlutil"
)

const presentationPart = "ppt/presentation.xml"

// Font-size thresholds (hundredths of a point) a paragraph's largest
// run must meet to be inferred as a heading of the given level.
const (
	heading1MinFontPt100 = 2800
	heading2MinFontPt100 = 2400
	heading3MinFontPt100 = 2000
)

// TextRun is a run of text within a slide paragraph, implementing
// markup.InlineRun for shared rendering with docx.Run.
type TextRun struct {
	text     string
	bold     bool
	italic   bool
	link     string
	fontSize int // hundredths of a point, 0 if unspecified
}

func (r TextRun) Text() string    { return r.text }
func (r TextRun) Bold() bool      { return r.bold }
func (r TextRun) Italic() bool    { return r.italic }
func (r TextRun) LinkURL() string { return r.link }

// Paragraph is one <a:p> inside a shape's text body. Bullet/Numbered
// and HeadingLevel are mutually exclusive: a heading paragraph always
// has Bullet=Numbered=false regardless of any list marker present.
type Paragraph struct {
	Runs         []TextRun
	Bullet       bool
	Numbered     bool
	ListLevel    int
	HeadingLevel int
}

// Shape is one text-bearing shape on a slide.
type Shape struct {
	Paragraphs []Paragraph
}

// Slide is an ordered list of shapes, in document (z-order) sequence.
type Slide struct {
	Shapes []Shape
}

// ExtractPlain renders all slides as plain text, one slide per
// paragraph block, shapes and runs flattened in order.
func ExtractPlain(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = docerr.New(docerr.KindDocument, "panic while parsing .pptx: %v", r)
		}
	}()
	slides, err := parse(data)
	if err != nil {
		return "", err
	}
	return renderPlain(slides), nil
}

// ExtractMarkdown renders all slides as markdown: paragraphs whose
// largest run meets a font-size threshold become headings, bullet and
// numbered paragraphs render as markdown lists. The images parameter
// is accepted for API parity with the other formats; PresentationML
// picture shapes (p:pic/p:blipFill) are a distinct shape kind from the
// text shapes this package parses and are not embedded.
func ExtractMarkdown(data []byte, images bool) (markdown string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = docerr.New(docerr.KindDocument, "panic while parsing .pptx: %v", r)
		}
	}()
	slides, err := parse(data)
	if err != nil {
		return "", err
	}
	return renderMarkdown(slides), nil
}

// parse discovers slide parts from ppt/presentation.xml's sldIdLst (in
// presentation order) resolved through ppt/_rels/presentation.xml.rels,
// rather than trusting slide part filenames to sort in display order.
func parse(data []byte) ([]Slide, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, docerr.Wrap(docerr.KindArchive, err, "open .pptx as ZIP")
	}

	slideParts, err := orderedSlideParts(zr)
	if err != nil {
		return nil, err
	}
	if len(slideParts) == 0 {
		return nil, docerr.New(docerr.KindDocument, "no slides found")
	}

	var slides []Slide
	for _, part := range slideParts {
		f, err := zr.Open(part)
		if err != nil {
			return nil, docerr.Wrap(docerr.KindArchive, err, "open slide part")
		}
		raw, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, docerr.Wrap(docerr.KindArchive, err, "read slide part")
		}
		rels, err := xmlutil.LoadRels(zr, part)
		if err != nil {
			return nil, err
		}
		slide, err := parseSlide(raw, rels)
		if err != nil {
			return nil, err
		}
		slides = append(slides, slide)
	}
	return slides, nil
}

// orderedSlideParts reads the sldId r:id sequence from
// ppt/presentation.xml and resolves each against the presentation's
// own relationships to get slide part paths in presentation order.
func orderedSlideParts(zr *zip.Reader) ([]string, error) {
	f, err := zr.Open(presentationPart)
	if err != nil {
		return nil, docerr.Wrap(docerr.KindDocument, err, "missing ppt/presentation.xml")
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return nil, docerr.Wrap(docerr.KindArchive, err, "read presentation.xml")
	}

	rels, err := xmlutil.LoadAllRels(zr, presentationPart)
	if err != nil {
		return nil, err
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	var rIDs []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, docerr.Wrap(docerr.KindDocument, err, "parse presentation.xml")
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sldId" {
			continue
		}
		if rid := xmlutil.GetAttr(se, "id"); rid != "" {
			rIDs = append(rIDs, rid)
		}
	}

	var parts []string
	for _, rid := range rIDs {
		target, ok := rels[rid]
		if !ok {
			continue
		}
		parts = append(parts, xmlutil.NormalizeZipPath("ppt", target))
	}
	return parts, nil
}

func parseSlide(data []byte, rels xmlutil.Rels) (Slide, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var slide Slide
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return slide, docerr.Wrap(docerr.KindDocument, err, "parse slide XML")
		}
		se, ok := tok.(xml.StartElement)
		if !ok || (se.Name.Local != "sp" && se.Name.Local != "graphicFrame") {
			continue
		}
		shape, err := decodeShape(dec, se.Name.Local, rels)
		if err != nil {
			return slide, err
		}
		if len(shape.Paragraphs) > 0 {
			slide.Shapes = append(slide.Shapes, shape)
		}
	}
	return slide, nil
}

func decodeShape(dec *xml.Decoder, closeTag string, rels xmlutil.Rels) (Shape, error) {
	var shape Shape
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return shape, nil
		}
		if err != nil {
			return shape, docerr.Wrap(docerr.KindDocument, err, "parse shape")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "p" {
				para, err := decodeParagraph(dec, rels)
				if err != nil {
					return shape, err
				}
				if len(para.Runs) > 0 {
					shape.Paragraphs = append(shape.Paragraphs, para)
				}
			}
		case xml.EndElement:
			if t.Name.Local == closeTag {
				return shape, nil
			}
		}
	}
}

// decodeParagraph walks one <a:p>, tracking the pPr-declared list
// level and bullet marker (an explicit buNone always wins over any
// buChar/buBlip/buFont/buAutoNum seen, and a bare lvl with no marker
// never implies a bullet), then infers a heading level from the
// largest run font size. A heading paragraph always wins over any
// list marker.
func decodeParagraph(dec *xml.Decoder, rels xmlutil.Rels) (Paragraph, error) {
	var p Paragraph
	lvl := 0
	sawMarker := false
	sawNone := false
	numbered := false
	maxFont := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return p, docerr.Wrap(docerr.KindDocument, err, "parse paragraph")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr":
				if v := xmlutil.GetAttr(t, "lvl"); v != "" {
					if n, err := strconv.Atoi(v); err == nil && n >= 0 {
						lvl = n
					}
				}
			case "buNone":
				sawNone = true
			case "buChar", "buBlip", "buFont":
				sawMarker = true
			case "buAutoNum":
				sawMarker = true
				numbered = true
			case "r", "fld":
				run, err := decodeRun(dec, t.Name.Local, rels)
				if err != nil {
					return p, err
				}
				if run.text != "" {
					p.Runs = append(p.Runs, run)
					if run.fontSize > maxFont {
						maxFont = run.fontSize
					}
				}
			case "br":
				p.Runs = append(p.Runs, TextRun{text: "\n"})
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				goto done
			}
		}
	}
done:
	if !sawNone && sawMarker {
		p.Bullet = true
		p.Numbered = numbered
		p.ListLevel = lvl
	}

	switch {
	case maxFont >= heading1MinFontPt100:
		p.HeadingLevel = 1
	case maxFont >= heading2MinFontPt100:
		p.HeadingLevel = 2
	case maxFont >= heading3MinFontPt100:
		p.HeadingLevel = 3
	}
	if p.HeadingLevel > 0 {
		p.Bullet = false
		p.Numbered = false
	}
	return p, nil
}

// decodeRun parses a run-like element (<a:r> or <a:fld>, both carry an
// rPr and an a:t) until closeTag's matching end element.
func decodeRun(dec *xml.Decoder, closeTag string, rels xmlutil.Rels) (TextRun, error) {
	var run TextRun
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return run, nil
		}
		if err != nil {
			return run, docerr.Wrap(docerr.KindDocument, err, "parse run")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "rPr":
				if v := xmlutil.GetAttr(t, "b"); v == "1" {
					run.bold = true
				}
				if v := xmlutil.GetAttr(t, "i"); v == "1" {
					run.italic = true
				}
				if v := xmlutil.GetAttr(t, "sz"); v != "" {
					run.fontSize, _ = strconv.Atoi(v)
				}
				link, err := findHlinkClick(dec, rels)
				if err != nil {
					return run, err
				}
				run.link = link
			case "t":
				var s string
				if err := dec.DecodeElement(&s, &t); err != nil {
					return run, docerr.Wrap(docerr.KindDocument, err, "parse run text")
				}
				run.text = s
			}
		case xml.EndElement:
			if t.Name.Local == closeTag {
				return run, nil
			}
		}
	}
}

// findHlinkClick scans forward within an <a:rPr> element for a nested
// <a:hlinkClick r:id="..."/> and resolves it against rels, returning
// once </a:rPr> closes.
func findHlinkClick(dec *xml.Decoder, rels xmlutil.Rels) (string, error) {
	link := ""
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return link, nil
		}
		if err != nil {
			return link, docerr.Wrap(docerr.KindDocument, err, "parse run properties")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "hlinkClick" {
				rid := xmlutil.GetAttr(t, "id")
				if rid != "" {
					link = rels[rid]
				}
			}
		case xml.EndElement:
			if t.Name.Local == "rPr" {
				return link, nil
			}
		}
	}
}

func renderPlain(slides []Slide) string {
	var out strings.Builder
	multi := len(slides) > 1
	for i, s := range slides {
		if multi {
			fmt.Fprintf(&out, "--- Slide %d ---\n", i+1)
		}
		for _, shape := range s.Shapes {
			for _, p := range shape.Paragraphs {
				for _, r := range p.Runs {
					out.WriteString(r.text)
				}
				out.WriteByte('\n')
			}
		}
		if multi {
			out.WriteByte('\n')
		}
	}
	return strings.TrimRight(out.String(), "\n")
}

func renderMarkdown(slides []Slide) string {
	var out strings.Builder
	multi := len(slides) > 1
	prevKind := ""
	for i, s := range slides {
		if multi {
			fmt.Fprintf(&out, "## Slide %d\n\n", i+1)
			prevKind = ""
		}
		for _, shape := range s.Shapes {
			for _, p := range shape.Paragraphs {
				runs := make([]markup.InlineRun, len(p.Runs))
				for j, r := range p.Runs {
					runs[j] = r
				}
				text := markup.RenderRunsMarkdown(runs)
				if text == "" {
					continue
				}
				kind := "normal"
				if p.HeadingLevel > 0 {
					kind = "heading"
				} else if p.Bullet || p.Numbered {
					kind = "list"
				}
				if prevKind != "" && prevKind != kind {
					ensureBlankSeparator(&out)
				}
				prevKind = kind
				switch kind {
				case "heading":
					level := p.HeadingLevel + 2
					if level > 6 {
						level = 6
					}
					fmt.Fprintf(&out, "%s %s\n\n", strings.Repeat("#", level), text)
				case "list":
					if p.Numbered {
						fmt.Fprintf(&out, "%s1. %s\n", strings.Repeat("  ", p.ListLevel), text)
					} else {
						fmt.Fprintf(&out, "%s- %s\n", strings.Repeat("  ", p.ListLevel), text)
					}
				default:
					out.WriteString(text + "\n\n")
				}
			}
		}
	}
	return strings.TrimRight(out.String(), "\n")
}

// ensureBlankSeparator guarantees out ends with a blank line, used
// when transitioning between a tight list block and a heading or
// normal paragraph block that otherwise wouldn't leave one.
func ensureBlankSeparator(out *strings.Builder) {
	s := out.String()
	if strings.HasSuffix(s, "\n\n") || !strings.HasSuffix(s, "\n") {
		return
	}
	out.WriteByte('\n')
}

// Package docx extracts text and structure from Office Open XML
// WordprocessingML (.docx) documents: a ZIP archive containing
// word/document.xml plus relationship parts that resolve hyperlinks
// and embedded images.
package docx

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

const (
	documentPart = "word/document.xml"
	documentDir  = "word"
)

// imageContext resolves w:drawing/a:blip embeds to reference-style
// markdown images while walking the document, collecting the
// definitions to append once at the end of the rendered output.
type imageContext struct {
	enabled bool
	zr      *zip.Reader
	rels    xmlutil.Rels
	defs    []string
	counter int
}

// resolve returns the inline markdown marker for the image embed
// relationship id, or "" if images are disabled, the relationship is
// missing, or the image format isn't markdown-renderable.
func (ic *imageContext) resolve(rID string) string {
	if ic == nil || !ic.enabled || rID == "" {
		return ""
	}
	target, ok := ic.rels[rID]
	if !ok {
		return ""
	}
	data, err := xmlutil.ReadImageFromZip(ic.zr, target, documentDir)
	if err != nil {
		return ""
	}
	ic.counter++
	ref, ok := markup.ImageToBase64Ref(data, fmt.Sprintf("docx-img-%d", ic.counter))
	if !ok {
		return ""
	}
	ic.defs = append(ic.defs, ref.Definition)
	return ref.Inline
}

// Run is one contiguous span of text sharing the same formatting
// within a paragraph. It implements markup.InlineRun so the shared
// rendering helpers in the markup package can be reused unchanged.
type Run struct {
	text   string
	bold   bool
	italic bool
	link   string
}

func (r Run) Text() string    { return r.text }
func (r Run) Bold() bool      { return r.bold }
func (r Run) Italic() bool    { return r.italic }
func (r Run) LinkURL() string { return r.link }

// Block is either a Paragraph or a Table, in document order.
type Block struct {
	Paragraph *Paragraph
	Table     *Table
}

// Paragraph holds a heading level (0 for body text), an optional list
// nesting level, and its runs.
type Paragraph struct {
	HeadingLevel int
	HasList      bool
	ListLevel    int
	Runs         []Run
}

// Table is a grid of cells, each cell itself a slice of paragraphs.
type Table struct {
	Rows [][]TableCell
}

// TableCell holds the paragraphs inside one table cell.
type TableCell struct {
	Paragraphs []Paragraph
}

// ExtractPlain renders the document body as plain text, one paragraph
// per line and tab-joined table rows.
func ExtractPlain(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = docerr.New(docerr.KindDocument, "panic while parsing .docx: %v", r)
		}
	}()
	blocks, _, err := parse(data, false)
	if err != nil {
		return "", err
	}
	return renderPlain(blocks), nil
}

// ExtractMarkdown renders the document body as markdown: headings
// become #-prefixed lines, bold/italic/hyperlink runs use inline
// markdown syntax, and tables render as GFM pipe tables. When images
// is true, inline drawings are embedded as base64 reference images.
func ExtractMarkdown(data []byte, images bool) (markdown string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = docerr.New(docerr.KindDocument, "panic while parsing .docx: %v", r)
		}
	}()
	blocks, defs, err := parse(data, images)
	if err != nil {
		return "", err
	}
	out := renderMarkdown(blocks)
	if len(defs) > 0 {
		out += "\n\n" + strings.Join(defs, "\n")
	}
	return out, nil
}

func parse(data []byte, images bool) ([]Block, []string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, docerr.Wrap(docerr.KindArchive, err, "open .docx as ZIP")
	}

	rels, err := xmlutil.LoadRels(zr, documentPart)
	if err != nil {
		return nil, nil, err
	}
	ic := &imageContext{enabled: images, zr: zr}
	if images {
		imgRels, err := xmlutil.LoadImageRels(zr, documentPart)
		if err != nil {
			return nil, nil, err
		}
		ic.rels = imgRels
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == documentPart {
			rc, err := f.Open()
			if err != nil {
				return nil, nil, docerr.Wrap(docerr.KindArchive, err, "open document.xml")
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, nil, docerr.Wrap(docerr.KindArchive, err, "read document.xml")
			}
			break
		}
	}
	if docXML == nil {
		return nil, nil, docerr.New(docerr.KindDocument, "missing word/document.xml")
	}

	blocks, err := parseBody(docXML, rels, ic)
	return blocks, ic.defs, err
}

// parseBody walks the flat token stream of <w:body>, building Block
// values for top-level <w:p> and <w:tbl> elements.
func parseBody(data []byte, rels xmlutil.Rels, ic *imageContext) ([]Block, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var blocks []Block
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, docerr.Wrap(docerr.KindDocument, err, "parse document.xml")
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "p":
			p, err := decodeParagraph(dec, se, rels, ic)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, Block{Paragraph: &p})
		case "tbl":
			tbl, err := decodeTable(dec, se, rels, ic)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, Block{Table: &tbl})
		}
	}
	return blocks, nil
}

func decodeParagraph(dec *xml.Decoder, start xml.StartElement, rels xmlutil.Rels, ic *imageContext) (Paragraph, error) {
	var p Paragraph
	depth := 0
	var currentLink string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return p, nil
		}
		if err != nil {
			return p, docerr.Wrap(docerr.KindDocument, err, "parse paragraph")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pStyle":
				if lvl := headingLevelFromStyle(xmlutil.GetAttr(t, "val")); lvl > 0 {
					p.HeadingLevel = lvl
				}
			case "ilvl":
				if n, err := strconv.Atoi(xmlutil.GetAttr(t, "val")); err == nil && n >= 0 {
					p.HasList = true
					p.ListLevel = n
				}
			case "hyperlink":
				rid := xmlutil.GetAttr(t, "id")
				currentLink = rels[rid]
				inner, err := decodeRuns(dec, "hyperlink", currentLink, ic)
				if err != nil {
					return p, err
				}
				p.Runs = append(p.Runs, inner...)
				currentLink = ""
			case "r":
				run, err := decodeRun(dec, currentLink, ic)
				if err != nil {
					return p, err
				}
				if run.text != "" {
					p.Runs = append(p.Runs, run)
				}
			case "p":
				depth++
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				if depth == 0 {
					return p, nil
				}
				depth--
			}
		}
	}
}

// decodeRuns decodes all <w:r> runs until the matching end of
// container (e.g. </w:hyperlink>), attaching link to each.
func decodeRuns(dec *xml.Decoder, containerLocal, link string, ic *imageContext) ([]Run, error) {
	var runs []Run
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return runs, nil
		}
		if err != nil {
			return runs, docerr.Wrap(docerr.KindDocument, err, "parse hyperlink")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "r" {
				run, err := decodeRun(dec, link, ic)
				if err != nil {
					return runs, err
				}
				if run.text != "" {
					runs = append(runs, run)
				}
			}
		case xml.EndElement:
			if t.Name.Local == containerLocal {
				return runs, nil
			}
		}
	}
}

func decodeRun(dec *xml.Decoder, link string, ic *imageContext) (Run, error) {
	run := Run{link: link}
	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			run.text = text.String()
			return run, nil
		}
		if err != nil {
			return run, docerr.Wrap(docerr.KindDocument, err, "parse run")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "b":
				if xmlutil.GetAttr(t, "val") != "false" && xmlutil.GetAttr(t, "val") != "0" {
					run.bold = true
				}
			case "i":
				if xmlutil.GetAttr(t, "val") != "false" && xmlutil.GetAttr(t, "val") != "0" {
					run.italic = true
				}
			case "t":
				var s string
				if err := dec.DecodeElement(&s, &t); err != nil {
					return run, docerr.Wrap(docerr.KindDocument, err, "parse run text")
				}
				text.WriteString(s)
			case "tab":
				text.WriteByte('\t')
			case "br":
				text.WriteByte('\n')
			case "blip":
				text.WriteString(ic.resolve(xmlutil.GetAttr(t, "embed")))
			}
		case xml.EndElement:
			if t.Name.Local == "r" {
				run.text = text.String()
				return run, nil
			}
		}
	}
}

func decodeTable(dec *xml.Decoder, start xml.StartElement, rels xmlutil.Rels, ic *imageContext) (Table, error) {
	var tbl Table
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return tbl, nil
		}
		if err != nil {
			return tbl, docerr.Wrap(docerr.KindDocument, err, "parse table")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "tr" {
				row, err := decodeTableRow(dec, rels, ic)
				if err != nil {
					return tbl, err
				}
				tbl.Rows = append(tbl.Rows, row)
			}
		case xml.EndElement:
			if t.Name.Local == "tbl" {
				return tbl, nil
			}
		}
	}
}

func decodeTableRow(dec *xml.Decoder, rels xmlutil.Rels, ic *imageContext) ([]TableCell, error) {
	var row []TableCell
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return row, nil
		}
		if err != nil {
			return row, docerr.Wrap(docerr.KindDocument, err, "parse table row")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "tc" {
				cell, err := decodeTableCell(dec, rels, ic)
				if err != nil {
					return row, err
				}
				row = append(row, cell)
			}
		case xml.EndElement:
			if t.Name.Local == "tr" {
				return row, nil
			}
		}
	}
}

func decodeTableCell(dec *xml.Decoder, rels xmlutil.Rels, ic *imageContext) (TableCell, error) {
	var cell TableCell
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return cell, nil
		}
		if err != nil {
			return cell, docerr.Wrap(docerr.KindDocument, err, "parse table cell")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "p" {
				p, err := decodeParagraph(dec, t, rels, ic)
				if err != nil {
					return cell, err
				}
				cell.Paragraphs = append(cell.Paragraphs, p)
			}
		case xml.EndElement:
			if t.Name.Local == "tc" {
				return cell, nil
			}
		}
	}
}

// headingLevelFromStyle maps a pStyle value (Heading1, heading2, ...)
// to a numeric level, returning 0 for any non-heading style.
func headingLevelFromStyle(style string) int {
	lower := strings.ToLower(style)
	if !strings.HasPrefix(lower, "heading") && !strings.HasPrefix(lower, "title") {
		return 0
	}
	if lower == "title" {
		return 1
	}
	suffix := strings.TrimPrefix(lower, "heading")
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 1 {
		return 0
	}
	if n > 6 {
		n = 6
	}
	return n
}

func renderPlain(blocks []Block) string {
	var out strings.Builder
	for _, b := range blocks {
		switch {
		case b.Paragraph != nil:
			out.WriteString(plainParagraph(*b.Paragraph))
			out.WriteByte('\n')
		case b.Table != nil:
			out.WriteString(plainTable(*b.Table))
		}
	}
	return strings.TrimRight(out.String(), "\n")
}

func plainParagraph(p Paragraph) string {
	var sb strings.Builder
	for _, r := range p.Runs {
		sb.WriteString(r.text)
	}
	return sb.String()
}

func plainTable(t Table) string {
	var sb strings.Builder
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = plainCellText(c)
		}
		sb.WriteString(strings.Join(cells, "\t"))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func plainCellText(c TableCell) string {
	parts := make([]string, len(c.Paragraphs))
	for i, p := range c.Paragraphs {
		parts[i] = plainParagraph(p)
	}
	return strings.Join(parts, " ")
}

func renderMarkdown(blocks []Block) string {
	var out strings.Builder
	for _, b := range blocks {
		switch {
		case b.Paragraph != nil:
			p := *b.Paragraph
			text := renderRunsText(p)
			if text == "" {
				continue
			}
			switch {
			case p.HeadingLevel > 0:
				fmt.Fprintf(&out, "%s %s\n\n", strings.Repeat("#", p.HeadingLevel), text)
			case p.HasList:
				fmt.Fprintf(&out, "%s- %s\n", strings.Repeat("  ", p.ListLevel), text)
			default:
				out.WriteString(text)
				out.WriteString("\n\n")
			}
		case b.Table != nil:
			out.WriteString(markdownTable(*b.Table))
			out.WriteByte('\n')
		}
	}
	return strings.TrimRight(out.String(), "\n")
}

// renderRunsText renders a paragraph's runs as inline markdown with no
// heading/list decoration.
func renderRunsText(p Paragraph) string {
	runs := make([]markup.InlineRun, len(p.Runs))
	for i, r := range p.Runs {
		runs[i] = r
	}
	return markup.RenderRunsMarkdown(runs)
}

// markdownParagraph renders a paragraph for use inside a table cell,
// where heading styling still applies but list bullets are left flat.
func markdownParagraph(p Paragraph) string {
	text := renderRunsText(p)
	if text == "" {
		return ""
	}
	if p.HeadingLevel > 0 {
		return fmt.Sprintf("%s %s", strings.Repeat("#", p.HeadingLevel), text)
	}
	return text
}

func markdownTable(t Table) string {
	if len(t.Rows) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = markdownCellText(c)
		}
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		if i == 0 {
			sep := make([]string, len(row))
			for j := range sep {
				sep[j] = "---"
			}
			sb.WriteString("| " + strings.Join(sep, " | ") + " |\n")
		}
	}
	return sb.String()
}

func markdownCellText(c TableCell) string {
	parts := make([]string, 0, len(c.Paragraphs))
	for _, p := range c.Paragraphs {
		if line := markdownParagraph(p); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.ReplaceAll(strings.Join(parts, " "), "|", "\\|")
}

// Package xlsx extracts worksheet grids from Office Open XML
// SpreadsheetML (.xlsx) workbooks: a ZIP archive whose xl/worksheets
// parts hold sparse cell references resolved against shared strings
// and number-format styles.
package xlsx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"docscribe/internal/dateconv"
	"docscribe/internal/docerr"
	"docscribe/internal/markup"
	"docscribe/internal/sheet"
	"docscribe/internal/xmlutil"
)

const (
	workbookPart = "xl/workbook.xml"
	sstPart      = "xl/sharedStrings.xml"
	stylesPart   = "xl/styles.xml"
)

// ExtractPlain renders every worksheet as tab-separated plain text.
func ExtractPlain(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = docerr.New(docerr.KindDocument, "panic while parsing .xlsx: %v", r)
		}
	}()
	sheets, _, _, err := decode(data, false)
	if err != nil {
		return "", err
	}
	return sheet.RenderPlain(sheets), nil
}

// ExtractMarkdown renders every worksheet as a markdown table. When
// images is true, pictures anchored to each sheet via its drawing
// relationships are converted to reference-style markdown images and
// appended after the tables.
func ExtractMarkdown(data []byte, images bool) (markdown string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = docerr.New(docerr.KindDocument, "panic while parsing .xlsx: %v", r)
		}
	}()
	sheets, inlines, defs, err := decode(data, images)
	if err != nil {
		return "", err
	}
	out := sheet.RenderMarkdown(sheets)
	if len(inlines) > 0 {
		out += "\n\n" + strings.Join(inlines, "\n")
	}
	if len(defs) > 0 {
		out += "\n\n" + strings.Join(defs, "\n")
	}
	return out, nil
}

func decode(data []byte, images bool) (sheets []sheet.Sheet, inlines, defs []string, err error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, nil, docerr.Wrap(docerr.KindArchive, err, "open .xlsx as ZIP")
	}
	files := indexFiles(zr)

	sst, err := loadSharedStrings(files[sstPart])
	if err != nil {
		return nil, nil, nil, err
	}
	dateStyles, err := loadDateStyles(files[stylesPart])
	if err != nil {
		return nil, nil, nil, err
	}
	sheetNames, sheetParts, err := loadWorkbookSheets(zr, files)
	if err != nil {
		return nil, nil, nil, err
	}

	var imgCounter int
	for i, part := range sheetParts {
		raw, ok := files[part]
		if !ok {
			continue
		}
		grid, err := parseWorksheet(raw, sst, dateStyles)
		if err != nil {
			return nil, nil, nil, err
		}
		sheetRels, err := xmlutil.LoadRels(zr, part)
		if err != nil {
			return nil, nil, nil, err
		}
		applyHyperlinks(raw, sheetRels, grid)

		if images {
			imgInlines, imgDefs, err := collectSheetImages(zr, files, part, &imgCounter)
			if err != nil {
				return nil, nil, nil, err
			}
			inlines = append(inlines, imgInlines...)
			defs = append(defs, imgDefs...)
		}

		name := fmt.Sprintf("Sheet%d", i+1)
		if i < len(sheetNames) {
			name = sheetNames[i]
		}
		sheets = append(sheets, sheet.Sheet{Name: name, Rows: grid})
	}
	return sheets, inlines, defs, nil
}

// applyHyperlinks runs a second pass over a worksheet's XML looking
// for <hyperlinks><hyperlink ref="A1" r:id="..."/>, wrapping the
// referenced cell's existing value as a markdown link when non-empty.
// Cells populated only by the hyperlink (no cached value) are left
// untouched.
func applyHyperlinks(data []byte, rels xmlutil.Rels, grid [][]string) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return
		}
		if err != nil {
			return
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "hyperlink" {
			continue
		}
		ref := xmlutil.GetAttr(se, "ref")
		rid := relationshipID(se)
		if ref == "" || rid == "" {
			continue
		}
		url, ok := rels[rid]
		if !ok {
			continue
		}
		row, col := parseCellRef(ref)
		if row < 0 || row >= len(grid) || col < 0 || col >= len(grid[row]) {
			continue
		}
		if grid[row][col] == "" {
			continue
		}
		grid[row][col] = fmt.Sprintf("[%s](%s)", grid[row][col], url)
	}
}

// collectSheetImages discovers the worksheet's drawing part (if any),
// walks its blips, and converts each resolvable image to a
// reference-style markdown definition.
func collectSheetImages(zr *zip.Reader, files map[string][]byte, sheetPart string, counter *int) (inlines, defs []string, err error) {
	sheetRels, err := xmlutil.LoadAllRels(zr, sheetPart)
	if err != nil {
		return nil, nil, err
	}
	var drawingPart string
	for _, target := range sheetRels {
		resolved := xmlutil.NormalizeZipPath("xl/worksheets", target)
		if strings.Contains(resolved, "/drawings/") {
			drawingPart = resolved
			break
		}
	}
	if drawingPart == "" {
		return nil, nil, nil
	}
	drawingXML, ok := files[drawingPart]
	if !ok {
		return nil, nil, nil
	}
	drawingRels, err := xmlutil.LoadImageRels(zr, drawingPart)
	if err != nil {
		return nil, nil, err
	}

	dec := xml.NewDecoder(bytes.NewReader(drawingXML))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return inlines, defs, docerr.Wrap(docerr.KindDocument, err, "parse drawing XML")
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "blip" {
			continue
		}
		rid := relationshipID(se)
		target, ok := drawingRels[rid]
		if !ok {
			continue
		}
		raw, err := xmlutil.ReadImageFromZip(zr, target, path.Dir(drawingPart))
		if err != nil {
			continue
		}
		*counter++
		ref, ok := markup.ImageToBase64Ref(raw, fmt.Sprintf("xlsx-img-%d", *counter))
		if !ok {
			continue
		}
		inlines = append(inlines, ref.Inline)
		defs = append(defs, ref.Definition)
	}
	return inlines, defs, nil
}

func indexFiles(zr *zip.Reader) map[string][]byte {
	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		out[f.Name] = data
	}
	return out
}

func loadSharedStrings(data []byte) ([]string, error) {
	if data == nil {
		return nil, nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var sst []string
	var cur strings.Builder
	inSI := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, docerr.Wrap(docerr.KindDocument, err, "parse sharedStrings.xml")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "si" {
				inSI = true
				cur.Reset()
			}
		case xml.CharData:
			if inSI {
				cur.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "si" {
				sst = append(sst, cur.String())
				inSI = false
			}
		}
	}
	return sst, nil
}

// loadDateStyles parses styles.xml into a dense slice of per-cellXf
// date/non-date flags, resolving both built-in and custom numFmt IDs
// via the dateconv package.
func loadDateStyles(data []byte) ([]bool, error) {
	if data == nil {
		return nil, nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	customFormats := map[uint16]string{}
	var cellXfFmtIDs []uint16
	inCellXfs := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, docerr.Wrap(docerr.KindDocument, err, "parse styles.xml")
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			if ee, ok2 := tok.(xml.EndElement); ok2 && ee.Name.Local == "cellXfs" {
				inCellXfs = false
			}
			continue
		}
		switch se.Name.Local {
		case "numFmt":
			id, _ := strconv.Atoi(xmlutil.GetAttr(se, "numFmtId"))
			customFormats[uint16(id)] = xmlutil.GetAttr(se, "formatCode")
		case "cellXfs":
			inCellXfs = true
		case "xf":
			if inCellXfs {
				id, _ := strconv.Atoi(xmlutil.GetAttr(se, "numFmtId"))
				cellXfFmtIDs = append(cellXfFmtIDs, uint16(id))
			}
		}
	}
	return dateconv.ResolveDateStyles(cellXfFmtIDs, customFormats), nil
}

func loadWorkbookSheets(zr *zip.Reader, files map[string][]byte) (names []string, parts []string, err error) {
	data, ok := files[workbookPart]
	if !ok {
		return nil, nil, docerr.New(docerr.KindDocument, "missing xl/workbook.xml")
	}
	rels, err := xmlutil.LoadAllRels(zr, workbookPart)
	if err != nil {
		return nil, nil, err
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, docerr.Wrap(docerr.KindDocument, err, "parse workbook.xml")
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sheet" {
			continue
		}
		state := xmlutil.GetAttr(se, "state")
		if state == "hidden" || state == "veryHidden" {
			continue
		}
		names = append(names, xmlutil.GetAttr(se, "name"))
		rid := relationshipID(se)
		target := rels[rid]
		parts = append(parts, xmlutil.NormalizeZipPath("xl", target))
	}
	return names, parts, nil
}

// relationshipID extracts the r:id attribute, whose namespace prefix
// varies by producer (r:id vs the full relationships namespace URI).
func relationshipID(se xml.StartElement) string {
	for _, a := range se.Attr {
		if a.Name.Local == "id" {
			return a.Value
		}
	}
	return ""
}

type cellRef struct {
	row, col int
}

func parseWorksheet(data []byte, sst []string, dateStyles []bool) ([][]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	values := map[cellRef]string{}
	maxRow, maxCol := -1, -1

	var curRef cellRef
	var curType string
	var curStyle int
	var curText strings.Builder
	inValue := false
	inInlineStr := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, docerr.Wrap(docerr.KindDocument, err, "parse worksheet XML")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "c":
				ref := xmlutil.GetAttr(t, "r")
				row, col := parseCellRef(ref)
				curRef = cellRef{row, col}
				curType = xmlutil.GetAttr(t, "t")
				curStyle, _ = strconv.Atoi(xmlutil.GetAttr(t, "s"))
				curText.Reset()
			case "v":
				inValue = true
			case "is":
				inInlineStr = true
			case "t":
				if inInlineStr {
					inValue = true
				}
			}
		case xml.CharData:
			if inValue {
				curText.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "v", "t":
				inValue = false
			case "is":
				inInlineStr = false
			case "c":
				if curText.Len() == 0 {
					continue
				}
				val := resolveCellValue(curText.String(), curType, curStyle, sst, dateStyles)
				values[curRef] = val
				if curRef.row > maxRow {
					maxRow = curRef.row
				}
				if curRef.col > maxCol {
					maxCol = curRef.col
				}
			}
		}
	}

	if maxRow < 0 || maxCol < 0 {
		return nil, nil
	}
	grid := make([][]string, maxRow+1)
	for r := range grid {
		grid[r] = make([]string, maxCol+1)
	}
	for ref, v := range values {
		grid[ref.row][ref.col] = v
	}
	return grid, nil
}

func resolveCellValue(raw, cellType string, styleIdx int, sst []string, dateStyles []bool) string {
	switch cellType {
	case "s":
		idx, err := strconv.Atoi(raw)
		if err == nil && idx >= 0 && idx < len(sst) {
			return sst[idx]
		}
		return ""
	case "str", "inlineStr":
		return raw
	case "b":
		if raw == "1" {
			return "TRUE"
		}
		return "FALSE"
	case "e":
		return raw
	default:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw
		}
		if styleIdx < len(dateStyles) && dateStyles[styleIdx] {
			return dateconv.SerialToISO(v)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
}

// parseCellRef splits a reference like "C7" into zero-based row/col.
func parseCellRef(ref string) (row, col int) {
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		i++
	}
	col = sheet.ColRefToIndex(ref[:i])
	row = sheet.MustAtoi(ref[i:]) - 1
	return row, col
}

// Package xls decodes legacy Excel 97-2003 binary (.xls) workbooks:
// an OLE2 compound file containing a Workbook (or Book) stream framed
// as a flat BIFF8 record stream.
package xls

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"strconv"

	"github.com/richardlehane/mscfb"

	"docscribe/internal/codepage"
	"docscribe/internal/dateconv"
	"docscribe/internal/docerr"
	"docscribe/internal/sheet"
)

// BIFF8 record type constants.
const (
	recBOF        = 0x0809
	recEOF        = 0x000A
	recBoundSheet = 0x0085
	recSST        = 0x00FC
	recContinue   = 0x003C
	recLabelSST   = 0x00FD
	recLabel      = 0x0204
	recRString    = 0x00D6
	recNumber     = 0x0203
	recRK         = 0x027E
	recMulRK      = 0x00BD
	recFormula    = 0x0006
	recString     = 0x0207
	recBoolErr    = 0x0205
	recFilePass   = 0x002F
	recFormat     = 0x041E
	recXF         = 0x00E0
	recCodepage   = 0x0042

	maxRecords = 2_000_000
)

// record is one {type, payload} unit of the flat BIFF8 stream.
// CONTINUE records stay separate records; parseWorkbookGlobals merges
// those that follow an SST before handing the buffer to parseSST.
type record struct {
	typ     uint16
	payload []byte
}

// ExtractPlain renders all visible worksheets of an .xls workbook as
// tab-separated plain text.
func ExtractPlain(data []byte) (string, error) {
	sheets, err := decode(data)
	if err != nil {
		return "", err
	}
	return sheet.RenderPlain(sheets), nil
}

// ExtractMarkdown renders all visible worksheets as markdown tables.
func ExtractMarkdown(data []byte) (string, error) {
	sheets, err := decode(data)
	if err != nil {
		return "", err
	}
	return sheet.RenderMarkdown(sheets), nil
}

func decode(data []byte) (result []sheet.Sheet, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = docerr.New(docerr.KindDocument, "panic while parsing .xls: %v", r)
		}
	}()

	stream, err := readWorkbookStream(data)
	if err != nil {
		return nil, err
	}
	records, err := parseRecords(stream)
	if err != nil {
		return nil, err
	}

	wb, err := parseWorkbookGlobals(records)
	if err != nil {
		return nil, err
	}

	var sheets []sheet.Sheet
	for _, bs := range wb.boundSheets {
		if bs.sheetType != 0 {
			continue // chart/macro/VB sheet
		}
		if bs.visibility != 0 {
			continue // hidden or very-hidden worksheet
		}
		grid := parseSheetCells(records, bs.bofOffset, wb)
		sheets = append(sheets, sheet.Sheet{Name: bs.name, Rows: grid})
	}
	return sheets, nil
}

func readWorkbookStream(data []byte) ([]byte, error) {
	r, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, docerr.Wrap(docerr.KindArchive, err, "open OLE2 container")
	}
	for entry, walkErr := r.Next(); walkErr == nil; entry, walkErr = r.Next() {
		if entry.Name == "Workbook" || entry.Name == "Book" {
			buf := make([]byte, entry.Size)
			if _, err := io.ReadFull(entry, buf); err != nil {
				return nil, docerr.Wrap(docerr.KindArchive, err, "read Workbook stream")
			}
			return buf, nil
		}
	}
	return nil, docerr.New(docerr.KindDocument, "missing Workbook/Book stream")
}

func parseRecords(stream []byte) ([]record, error) {
	var records []record
	off := 0
	for off+4 <= len(stream) {
		typ := binary.LittleEndian.Uint16(stream[off:])
		length := int(binary.LittleEndian.Uint16(stream[off+2:]))
		off += 4
		if off+length > len(stream) {
			break
		}
		records = append(records, record{typ: typ, payload: stream[off : off+length]})
		off += length
		if len(records) > maxRecords {
			return nil, docerr.New(docerr.KindDocument, "record count exceeds safety limit")
		}
		if typ == recFilePass {
			return nil, docerr.Encrypted("xls")
		}
	}
	return records, nil
}

type boundSheet struct {
	bofOffset  uint32
	visibility byte
	sheetType  byte
	name       string
}

type workbookGlobals struct {
	sst         []string
	boundSheets []boundSheet
	codepage    uint16
	dateStyles  []bool // indexed by XF record order
}

func parseWorkbookGlobals(records []record) (*workbookGlobals, error) {
	wb := &workbookGlobals{codepage: 1252}
	var customFormats = map[uint16]string{}
	var xfFmtIDs []uint16

	// SST may span multiple records interleaved with CONTINUE; collect
	// the SST record plus any immediately following CONTINUE records.
	for i := 0; i < len(records); i++ {
		rec := records[i]
		switch rec.typ {
		case recCodepage:
			if len(rec.payload) >= 2 {
				wb.codepage = binary.LittleEndian.Uint16(rec.payload)
			}
		case recBoundSheet:
			bs, err := parseBoundSheet(rec.payload, wb.codepage)
			if err == nil {
				wb.boundSheets = append(wb.boundSheets, bs)
			}
		case recFormat:
			if len(rec.payload) >= 2 {
				id := binary.LittleEndian.Uint16(rec.payload)
				s, _ := readBIFF8String(rec.payload[2:], wb.codepage, nil)
				customFormats[id] = s
			}
		case recXF:
			if len(rec.payload) >= 4 {
				xfFmtIDs = append(xfFmtIDs, binary.LittleEndian.Uint16(rec.payload[2:]))
			}
		case recSST:
			var buf []byte
			buf = append(buf, rec.payload...)
			boundaries := []int{len(rec.payload)}
			j := i + 1
			for j < len(records) && records[j].typ == recContinue {
				boundaries = append(boundaries, len(buf))
				buf = append(buf, records[j].payload...)
				j++
			}
			sst, err := parseSST(buf, wb.codepage, boundaries)
			if err == nil {
				wb.sst = sst
			}
			i = j - 1
		}
	}
	wb.dateStyles = dateconv.ResolveDateStyles(xfFmtIDs, customFormats)
	return wb, nil
}

func parseBoundSheet(p []byte, cp uint16) (boundSheet, error) {
	if len(p) < 8 {
		return boundSheet{}, docerr.New(docerr.KindDocument, "BOUNDSHEET record too short")
	}
	bofOffset := binary.LittleEndian.Uint32(p)
	visibility := p[4]
	sheetType := p[5]
	nameLen := int(p[6])
	options := p[7]
	var name string
	if options&0x01 != 0 {
		name = decodeUTF16LE(p[8 : 8+nameLen*2])
	} else {
		name = decode8Bit(p[8:8+nameLen], cp)
	}
	return boundSheet{bofOffset: bofOffset, visibility: visibility, sheetType: sheetType, name: name}, nil
}

// parseSST parses the Shared String Table: 4-byte total refs, 4-byte
// unique count, then that many BIFF8 strings, with CONTINUE-boundary
// re-read of the grbit byte for each string that crosses a boundary.
func parseSST(buf []byte, cp uint16, boundaries []int) ([]string, error) {
	if len(buf) < 8 {
		return nil, docerr.New(docerr.KindDocument, "SST record too short")
	}
	uniqueCount := binary.LittleEndian.Uint32(buf[4:8])
	off := 8
	var out []string
	for i := uint32(0); i < uniqueCount && off < len(buf); i++ {
		s, n := readBIFF8StringAt(buf, off, cp, boundaries)
		out = append(out, s)
		off += n
	}
	return out, nil
}

// decode8Bit decodes a compressed (1 byte/char) BIFF8 string under cp.
func decode8Bit(b []byte, cp uint16) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = codepage.DecodeByte(c, cp)
	}
	return string(runes)
}

func decodeUTF16LE(b []byte) string {
	var out []rune
	for i := 0; i+1 < len(b); i += 2 {
		out = append(out, rune(binary.LittleEndian.Uint16(b[i:])))
	}
	return string(out)
}

// readBIFF8String decodes a standalone BIFF8 unicode string (char
// count + flags + optional rich/ext headers + char data) with no
// CONTINUE-boundary handling.
func readBIFF8String(b []byte, cp uint16, _ []int) (string, error) {
	s, _ := readBIFF8StringAt(b, 0, cp, nil)
	return s, nil
}

// readBIFF8StringAt reads one BIFF8 string starting at offset off in
// buf, consulting boundaries (absolute offsets where a fresh CONTINUE
// record begins) to re-read the grbit encoding-selector byte whenever
// the string's character data crosses one.
func readBIFF8StringAt(buf []byte, off int, cp uint16, boundaries []int) (string, int) {
	start := off
	if off+3 > len(buf) {
		return "", len(buf) - off
	}
	charCount := int(binary.LittleEndian.Uint16(buf[off:]))
	flags := buf[off+2]
	off += 3
	unicode := flags&0x01 != 0
	hasExt := flags&0x04 != 0
	hasRich := flags&0x08 != 0

	var richRunCount uint16
	if hasRich {
		richRunCount = binary.LittleEndian.Uint16(buf[off:])
		off += 2
	}
	var extLen uint32
	if hasExt {
		extLen = binary.LittleEndian.Uint32(buf[off:])
		off += 4
	}

	var runes []rune
	remaining := charCount
	for remaining > 0 && off < len(buf) {
		// Re-check encoding if we've crossed a CONTINUE boundary.
		if boundaries != nil {
			for _, b := range boundaries {
				if off == b && off < len(buf) {
					grbit := buf[off]
					unicode = grbit&0x01 != 0
					off++
				}
			}
		}
		if unicode {
			if off+1 >= len(buf) {
				break
			}
			runes = append(runes, rune(binary.LittleEndian.Uint16(buf[off:])))
			off += 2
		} else {
			runes = append(runes, codepage.DecodeByte(buf[off], cp))
			off++
		}
		remaining--
	}

	if hasRich {
		off += int(richRunCount) * 4
	}
	if hasExt {
		off += int(extLen)
	}
	return string(runes), off - start
}

// decodeRK decodes a BIFF8 RK-compressed number.
func decodeRK(raw uint32) float64 {
	var v float64
	if raw&0x02 != 0 {
		v = float64(int32(raw) >> 2)
	} else {
		bits := uint64(raw&0xFFFFFFFC) << 32
		v = math.Float64frombits(bits)
	}
	if raw&0x01 != 0 {
		v /= 100
	}
	return v
}

func formatNumber(v float64, isDate bool) string {
	if isDate {
		return dateconv.SerialToISO(v)
	}
	return formatFloat(v)
}

// formatFloat renders a cell number the way a spreadsheet displays an
// unformatted General-style numeric value: integral values with no
// trailing ".0", everything else at minimal round-trip precision.
func formatFloat(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// parseSheetCells walks the record stream starting at the sheet's BOF
// offset and builds a dense grid from the cell records encountered
// before the matching EOF.
func parseSheetCells(records []record, bofOffset uint32, wb *workbookGlobals) [][]string {
	// Records carry no absolute stream offset after parseRecords; BOF
	// offsets in BOUNDSHEET are stream-relative, so re-walk with a
	// running offset counter to find the right starting record index.
	type cellAt struct {
		row, col int
		val      string
	}
	var cells []cellAt
	maxRow, maxCol := -1, -1

	runningOffset := uint32(0)
	startIdx := -1
	for i, rec := range records {
		if rec.typ == recBOF && runningOffset == bofOffset {
			startIdx = i
			break
		}
		runningOffset += 4 + uint32(len(rec.payload))
	}
	if startIdx < 0 {
		return nil
	}

	var pendingStringRow, pendingStringCol int
	var pendingString bool
	var xfIndexByCell = map[[2]int]uint16{}

	set := func(row, col int, val string) {
		cells = append(cells, cellAt{row, col, val})
		if row > maxRow {
			maxRow = row
		}
		if col > maxCol {
			maxCol = col
		}
	}

	for i := startIdx + 1; i < len(records); i++ {
		rec := records[i]
		if rec.typ == recEOF {
			break
		}
		// A string-valued FORMULA's pending cell is only resolved by an
		// immediately following STRING record; any other intervening
		// record (CONTINUE excepted) abandons it.
		if pendingString && rec.typ != recString && rec.typ != recContinue {
			pendingString = false
		}
		switch rec.typ {
		case recLabelSST:
			if len(rec.payload) >= 10 {
				row := int(binary.LittleEndian.Uint16(rec.payload))
				col := int(binary.LittleEndian.Uint16(rec.payload[2:]))
				xf := binary.LittleEndian.Uint16(rec.payload[4:])
				idx := binary.LittleEndian.Uint32(rec.payload[6:])
				xfIndexByCell[[2]int{row, col}] = xf
				if int(idx) < len(wb.sst) {
					set(row, col, wb.sst[idx])
				}
			}
		case recLabel, recRString:
			if len(rec.payload) >= 6 {
				row := int(binary.LittleEndian.Uint16(rec.payload))
				col := int(binary.LittleEndian.Uint16(rec.payload[2:]))
				s, _ := readBIFF8StringAt(rec.payload, 6, wb.codepage, nil)
				set(row, col, s)
			}
		case recNumber:
			if len(rec.payload) >= 14 {
				row := int(binary.LittleEndian.Uint16(rec.payload))
				col := int(binary.LittleEndian.Uint16(rec.payload[2:]))
				xf := binary.LittleEndian.Uint16(rec.payload[4:])
				bits := binary.LittleEndian.Uint64(rec.payload[6:])
				v := math.Float64frombits(bits)
				isDate := isDateXF(wb, xf)
				set(row, col, formatNumber(v, isDate))
			}
		case recRK:
			if len(rec.payload) >= 10 {
				row := int(binary.LittleEndian.Uint16(rec.payload))
				col := int(binary.LittleEndian.Uint16(rec.payload[2:]))
				xf := binary.LittleEndian.Uint16(rec.payload[4:])
				raw := binary.LittleEndian.Uint32(rec.payload[6:])
				v := decodeRK(raw)
				isDate := isDateXF(wb, xf)
				set(row, col, formatNumber(v, isDate))
			}
		case recMulRK:
			if len(rec.payload) >= 6 {
				row := int(binary.LittleEndian.Uint16(rec.payload))
				firstCol := int(binary.LittleEndian.Uint16(rec.payload[2:]))
				body := rec.payload[4 : len(rec.payload)-2]
				lastCol := int(binary.LittleEndian.Uint16(rec.payload[len(rec.payload)-2:]))
				col := firstCol
				for off := 0; off+6 <= len(body) && col <= lastCol; off += 6 {
					xf := binary.LittleEndian.Uint16(body[off:])
					raw := binary.LittleEndian.Uint32(body[off+2:])
					v := decodeRK(raw)
					isDate := isDateXF(wb, xf)
					set(row, col, formatNumber(v, isDate))
					col++
				}
			}
		case recFormula:
			if len(rec.payload) >= 14 {
				row := int(binary.LittleEndian.Uint16(rec.payload))
				col := int(binary.LittleEndian.Uint16(rec.payload[2:]))
				result := rec.payload[6:14]
				if result[6] == 0xFF && result[7] == 0xFF {
					switch result[0] {
					case 0: // string result follows in next STRING record
						pendingString = true
						pendingStringRow, pendingStringCol = row, col
					case 1:
						b := "FALSE"
						if result[2] != 0 {
							b = "TRUE"
						}
						set(row, col, b)
					case 3:
						set(row, col, "")
					}
				} else {
					bits := binary.LittleEndian.Uint64(result)
					v := math.Float64frombits(bits)
					set(row, col, formatFloat(v))
				}
			}
		case recString:
			if pendingString {
				s, _ := readBIFF8StringAt(rec.payload, 0, wb.codepage, nil)
				set(pendingStringRow, pendingStringCol, s)
				pendingString = false
			}
		case recBoolErr:
			if len(rec.payload) >= 8 {
				row := int(binary.LittleEndian.Uint16(rec.payload))
				col := int(binary.LittleEndian.Uint16(rec.payload[2:]))
				isErr := rec.payload[7] == 1
				if !isErr {
					b := "FALSE"
					if rec.payload[6] != 0 {
						b = "TRUE"
					}
					set(row, col, b)
				}
			}
		}
	}

	if maxRow < 0 || maxCol < 0 {
		return nil
	}
	grid := make([][]string, maxRow+1)
	for r := range grid {
		grid[r] = make([]string, maxCol+1)
	}
	for _, c := range cells {
		grid[c.row][c.col] = c.val
	}
	return grid
}

func isDateXF(wb *workbookGlobals, xf uint16) bool {
	if int(xf) < len(wb.dateStyles) {
		return wb.dateStyles[xf]
	}
	return false
}

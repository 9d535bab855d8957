// Package legacydoc extracts text from legacy Word 97-2003 binary
// (.doc) documents: an OLE2 compound file containing a WordDocument
// stream whose File Information Block (FIB) locates the main text
// range.
package legacydoc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/richardlehane/mscfb"
	"github.com/richardlehane/msoleps"

	"docscribe/internal/codepage"
	"docscribe/internal/docerr"
	"docscribe/internal/heuristic"
)

const (
	fibFlagsOffset  = 10
	fibLidOffset    = 6
	fibFcMinOffset  = 24
	fibFcMacOffset  = 28
	flagEncrypted   = 0x0100
	flagExtChar     = 0x1000
)

// ExtractPlain returns the plain text content of a .doc document.
func ExtractPlain(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = docerr.New(docerr.KindDocument, "panic while parsing .doc: %v", r)
		}
	}()
	raw, lid, extChar, err := readWordDocumentStream(data)
	if err != nil {
		return "", err
	}
	cp := codepage.LidToCodepage(lid)
	return charsToText(raw, cp, extChar, false), nil
}

// ExtractMarkdown returns a markdown rendering of a .doc document,
// inferring headings/tables from the plain text via the heuristic
// package (legacy .doc carries no style metadata of its own). The
// images parameter is accepted for signature parity with the other
// formats; Word 97-2003 binary documents store pictures in a
// separate, independently-compressed Data stream this package does
// not parse, so it has no effect here.
func ExtractMarkdown(data []byte, images bool) (markdown string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = docerr.New(docerr.KindDocument, "panic while parsing .doc: %v", r)
		}
	}()
	raw, lid, extChar, err := readWordDocumentStream(data)
	if err != nil {
		return "", err
	}
	cp := codepage.LidToCodepage(lid)
	plain := charsToText(raw, cp, extChar, true)
	return heuristic.PlainToMarkdown(plain), nil
}

// readWordDocumentStream opens the OLE2 container, reads the
// WordDocument stream, parses the FIB, and returns the raw character
// bytes for the main text range, the document's declared lid, and
// whether fExtChar (mixed Unicode/8-bit text) is set.
func readWordDocumentStream(data []byte) (raw []byte, lid uint16, extChar bool, err error) {
	r, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, 0, false, docerr.Wrap(docerr.KindArchive, err, "open OLE2 container")
	}

	var wordDoc []byte
	var summaryInfo []byte
	for entry, walkErr := r.Next(); walkErr == nil; entry, walkErr = r.Next() {
		switch entry.Name {
		case "WordDocument":
			buf := make([]byte, entry.Size)
			if _, err := io.ReadFull(entry, buf); err != nil {
				return nil, 0, false, docerr.Wrap(docerr.KindArchive, err, "read WordDocument stream")
			}
			wordDoc = buf
		case "\x05SummaryInformation":
			buf := make([]byte, entry.Size)
			io.ReadFull(entry, buf)
			summaryInfo = buf
		}
	}
	if wordDoc == nil {
		return nil, 0, false, docerr.New(docerr.KindDocument, "missing WordDocument stream")
	}
	if len(wordDoc) < 32 {
		return nil, 0, false, docerr.New(docerr.KindDocument, "WordDocument stream too short for FIB")
	}

	flags := binary.LittleEndian.Uint16(wordDoc[fibFlagsOffset:])
	if flags&flagEncrypted != 0 {
		return nil, 0, false, docerr.Encrypted("doc")
	}

	lid = binary.LittleEndian.Uint16(wordDoc[fibLidOffset:])
	if lid == 0 && summaryInfo != nil {
		lid = lidFromSummaryInfo(summaryInfo)
	}

	fcMin := binary.LittleEndian.Uint32(wordDoc[fibFcMinOffset:])
	fcMac := binary.LittleEndian.Uint32(wordDoc[fibFcMacOffset:])
	if uint64(fcMin) >= uint64(len(wordDoc)) || uint64(fcMac) > uint64(len(wordDoc)) || fcMin >= fcMac {
		return nil, 0, false, docerr.New(docerr.KindDocument, "invalid text boundaries in FIB")
	}

	extChar = flags&flagExtChar != 0
	return wordDoc[fcMin:fcMac], lid, extChar, nil
}

// lidFromSummaryInfo reads the locale hint from the OLE2 property-set
// stream when the FIB's own lid field is zero. Real documents almost
// always carry the FIB lid, so this is a best-effort enrichment.
func lidFromSummaryInfo(data []byte) uint16 {
	defer func() { recover() }()
	doc, err := msoleps.New(bytes.NewReader(data))
	if err != nil {
		return 0
	}
	for _, prop := range doc.PropertySets {
		for _, p := range prop.Properties {
			if p.ID == 0x13 { // PIDSI_LOCALE
				if v, ok := p.Value().(uint32); ok {
					return uint16(v)
				}
			}
		}
	}
	return 0
}

// detectUnicodeBlock scans a 256-byte block's 2-byte-aligned pairs; if
// any pair looks like a Latin/ASCII character with a zero high byte,
// the block is UTF-16LE, otherwise it's 8-bit codepage text.
func detectUnicodeBlock(block []byte) bool {
	for i := 0; i+1 < len(block); i += 2 {
		low, high := block[i], block[i+1]
		if high != 0x00 {
			continue
		}
		if low == 0x20 || low == 0x0D || (low >= 0x21 && low <= 0x7E) {
			return true
		}
	}
	return false
}

const blockSize = 256

// charsToText converts the raw FIB text range to a string, processing
// field codes (in markdown mode a HYPERLINK field becomes a link; other
// fields keep their display text; a field with no separator is dropped)
// and control characters.
func charsToText(raw []byte, cp uint16, extChar, markdown bool) string {
	var out bytes.Buffer
	var para bytes.Buffer

	type fieldState struct {
		kind string // "instruction" or "display"
		buf  bytes.Buffer
		url  string
	}
	var stack []*fieldState

	flush := func() {
		text := para.String()
		if text != "" {
			out.WriteString(text)
			out.WriteByte('\n')
		}
		para.Reset()
	}

	writeRune := func(r rune) {
		if len(stack) > 0 {
			stack[len(stack)-1].buf.WriteRune(r)
			return
		}
		para.WriteRune(r)
	}

	runes := decodeRaw(raw, cp, extChar)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch r {
		case 0x0013: // field begin
			stack = append(stack, &fieldState{kind: "instruction"})
		case 0x0014: // field separator
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				instr := top.buf.String()
				top.kind = "display"
				top.buf.Reset()
				if markdown {
					top.url = extractHyperlinkURL(instr)
				}
			}
		case 0x0015: // field end
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.kind == "display" {
					dest := &para
					if len(stack) > 0 {
						dest = &stack[len(stack)-1].buf
					}
					if markdown && top.url != "" {
						fmt.Fprintf(dest, "[%s](%s)", top.buf.String(), top.url)
					} else {
						dest.WriteString(top.buf.String())
					}
				}
				// kind == "instruction" with no separator seen: fully suppressed
			}
		case 0x000B, 0x000C, 0x000D: // line break / page break / paragraph mark
			flush()
		case 0x0007, 0x0009: // cell marker, tab
			writeRune('\t')
		case 0x001E: // non-breaking hyphen
			writeRune('-')
		case 0x001F, 0x0002, 0xFEFF: // optional hyphen, footnote ref, BOM
			// skip
		default:
			if r >= 0xD800 && r <= 0xDBFF && i+1 < len(runes) && runes[i+1] >= 0xDC00 && runes[i+1] <= 0xDFFF {
				combined := 0x10000 + (r-0xD800)<<10 + (runes[i+1] - 0xDC00)
				writeRune(combined)
				i++
			} else if r >= 0xD800 && r <= 0xDFFF {
				writeRune(0xFFFD)
			} else {
				writeRune(r)
			}
		}
		i++
	}
	flush()

	result := out.String()
	// Trim trailing whitespace per paragraph line, drop empty paragraphs.
	lines := bytes.Split([]byte(result), []byte("\n"))
	var kept [][]byte
	for _, line := range lines {
		trimmed := bytes.TrimRight(line, " \t")
		if len(bytes.TrimSpace(trimmed)) == 0 {
			continue
		}
		kept = append(kept, trimmed)
	}
	return string(bytes.Join(kept, []byte("\n")))
}

// decodeRaw decodes the FIB text range into runes. When extChar
// (fExtChar) is set, the range alternates encoding per 256-byte block,
// detected independently for each block; when clear, the entire range
// is 8-bit codepage text with no block detection at all.
func decodeRaw(raw []byte, cp uint16, extChar bool) []rune {
	if !extChar {
		out := make([]rune, 0, len(raw))
		for _, b := range raw {
			out = append(out, codepage.DecodeByte(b, cp))
		}
		return out
	}
	var out []rune
	for off := 0; off < len(raw); off += blockSize {
		end := off + blockSize
		if end > len(raw) {
			end = len(raw)
		}
		block := raw[off:end]
		if detectUnicodeBlock(block) {
			out = append(out, decodeUTF16LEBlock(block)...)
		} else {
			for _, b := range block {
				out = append(out, codepage.DecodeByte(b, cp))
			}
		}
	}
	return out
}

func decodeUTF16LEBlock(block []byte) []rune {
	var out []rune
	for i := 0; i+1 < len(block); i += 2 {
		out = append(out, rune(binary.LittleEndian.Uint16(block[i:])))
	}
	return out
}

// extractHyperlinkURL extracts the URL token from a Word HYPERLINK
// field instruction, handling both quoted and unquoted forms.
func extractHyperlinkURL(instr string) string {
	upper := []byte(instr)
	idx := indexCaseInsensitive(upper, "HYPERLINK")
	if idx < 0 {
		return ""
	}
	rest := instr[idx+len("HYPERLINK"):]
	i := 0
	for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t') {
		i++
	}
	if i >= len(rest) {
		return ""
	}
	if rest[i] == '"' {
		end := i + 1
		for end < len(rest) && rest[end] != '"' {
			end++
		}
		return rest[i+1 : end]
	}
	end := i
	for end < len(rest) && rest[end] != ' ' && rest[end] != '\t' && rest[end] != '\\' {
		end++
	}
	return rest[i:end]
}

func indexCaseInsensitive(data []byte, substr string) int {
	lower := bytes.ToUpper(data)
	return bytes.Index(lower, []byte(substr))
}

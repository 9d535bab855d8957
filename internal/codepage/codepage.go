// Package codepage maps Windows codepage identifiers and Word language
// IDs to Go text encodings, for decoding the 8-bit text runs found in
// legacy .doc and .xls documents.
package codepage

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// codepageToEncoding maps a Windows codepage ID to its decoder.
//
// cp437 is mapped to charmap.CodePage437 rather than IBM866 — DOS
// United States text has a real, accurate decoder available in the Go
// ecosystem, so we use it instead of reaching for a near-miss substitute.
var codepageToEncoding = map[uint16]encoding.Encoding{
	437:   charmap.CodePage437,
	874:   charmap.Windows874,
	932:   japanese.ShiftJIS,
	936:   simplifiedchinese.GBK,
	949:   korean.EUCKR,
	950:   traditionalchinese.Big5,
	1250:  charmap.Windows1250,
	1251:  charmap.Windows1251,
	1252:  charmap.Windows1252,
	1253:  charmap.Windows1253,
	1254:  charmap.Windows1254,
	1255:  charmap.Windows1255,
	1256:  charmap.Windows1256,
	1257:  charmap.Windows1257,
	1258:  charmap.Windows1258,
	10000: charmap.Macintosh,
	20866: charmap.KOI8R,
	21866: charmap.KOI8U,
	28592: charmap.ISO8859_2,
	28595: charmap.ISO8859_5,
	28597: charmap.ISO8859_7,
	28598: charmap.ISO8859_8,
	// A lone 0x80+ byte is never a complete UTF-8 sequence, so under
	// 65001 DecodeByte yields U+FFFD for it.
	65001: unicode.UTF8,
}

// defaultCodepage is used when the requested codepage has no mapping.
const defaultCodepage = 1252

// DecodeByte decodes a single 8-bit byte under the given Windows
// codepage. Bytes below 0x80 are ASCII and pass through unchanged.
func DecodeByte(b byte, cp uint16) rune {
	if b < 0x80 {
		return rune(b)
	}
	enc, ok := codepageToEncoding[cp]
	if !ok {
		enc = codepageToEncoding[defaultCodepage]
	}
	r, _ := decodeSingleByte(enc, b)
	return r
}

func decodeSingleByte(enc encoding.Encoding, b byte) (rune, error) {
	dst := make([]byte, 4)
	n, _, err := enc.NewDecoder().Transform(dst, []byte{b}, true)
	if err != nil || n == 0 {
		return 0xFFFD, err
	}
	r := []rune(string(dst[:n]))
	if len(r) == 0 {
		return 0xFFFD, nil
	}
	return r[0], nil
}

// LidToCodepage maps a Word/Excel language ID (lid) to its typical
// codepage, stripping the sublanguage bits first.
func LidToCodepage(lid uint16) uint16 {
	if lid == 0x0404 {
		// Chinese (Traditional) shares primary ID 0x0004 with
		// Simplified, so it is matched on the full lid.
		return 950
	}
	primary := lid & 0x03FF
	switch primary {
	case 0x0004:
		return 936 // Chinese (Simplified)
	case 0x0011:
		return 932 // Japanese
	case 0x0012:
		return 949 // Korean
	case 0x0019, 0x0022, 0x0023, 0x0002:
		return 1251 // Russian, Ukrainian, Belarusian, Bulgarian
	case 0x001A, 0x0005, 0x000E, 0x0015, 0x001B, 0x0024:
		return 1250 // Central European family
	case 0x0025, 0x0026, 0x0027:
		return 1257 // Baltic
	case 0x0008:
		return 1253 // Greek
	case 0x001F:
		return 1254 // Turkish
	case 0x000D:
		return 1255 // Hebrew
	case 0x0001, 0x0029:
		return 1256 // Arabic, Farsi
	case 0x002A:
		return 1258 // Vietnamese
	case 0x001E:
		return 874 // Thai
	default:
		return 1252
	}
}

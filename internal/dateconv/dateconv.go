// Package dateconv converts Excel/Lotus serial date numbers to ISO-8601
// strings and resolves which XF/numFmt style indices represent dates.
package dateconv

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// excelEpoch is day 0 in the Excel serial date system: December 31, 1899.
var excelEpoch = time.Date(1899, time.December, 31, 0, 0, 0, 0, time.UTC)

// maxSerial is the largest serial that still maps to a representable
// date (year 9999 cap); anything past it falls back to a plain number.
const maxSerial = 2_958_465

// fracEpsilon is how close a fractional day has to be to zero before
// it's treated as having no time-of-day component.
const fracEpsilon = 1e-10

// SerialToISO converts an Excel serial date number to an ISO-8601-ish
// "YYYY-MM-DD HH:MM:SS" string. Replicates the Lotus 1-2-3 1900
// leap-year bug: serial 60 is treated as the fictitious February 29,
// 1900, and all serials above it are shifted back by one day relative
// to a true Gregorian count from the epoch. Serials that can't denote
// a real date (negative, non-finite, beyond the year-9999 cap) fall
// back to a plain number rendering, as does 0 itself; a serial with no
// integral day part (0 < serial < 1) renders as a bare time-of-day.
func SerialToISO(serial float64) string {
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial < 0 || serial > maxSerial {
		return formatFallback(serial)
	}

	days := int(serial)
	frac := serial - float64(days)

	if days == 0 {
		if frac <= fracEpsilon {
			return formatFallback(serial)
		}
		h, m, s := fracToClock(frac)
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}

	var t time.Time
	if days >= 60 {
		t = excelEpoch.AddDate(0, 0, days-1)
	} else {
		t = excelEpoch.AddDate(0, 0, days)
	}
	date := t.Format("2006-01-02")
	if days == 60 {
		// time.Date would normalise the fictitious day to March 1.
		date = "1900-02-29"
	}

	if frac <= fracEpsilon {
		return date
	}

	h, m, s := fracToClock(frac)
	if h >= 24 {
		t = t.AddDate(0, 0, 1)
		date = t.Format("2006-01-02")
		h -= 24
	}
	return fmt.Sprintf("%s %02d:%02d:%02d", date, h, m, s)
}

// fracToClock converts a fractional day into hour/minute/second.
func fracToClock(frac float64) (h, m, s int) {
	secondsTotal := int(frac*86400 + 0.5)
	h = secondsTotal / 3600
	m = (secondsTotal % 3600) / 60
	s = secondsTotal % 60
	return h, m, s
}

// formatFallback renders a serial that can't be interpreted as a date
// the way General-style numeric formatting would: integral values with
// no trailing ".0", everything else at minimal round-trip precision.
func formatFallback(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// isBuiltInDateFormatID reports whether id is one of the numFmtId
// values Excel reserves for built-in date/time formats.
func isBuiltInDateFormatID(id uint16) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36:
		return true
	case id >= 45 && id <= 47:
		return true
	case id >= 50 && id <= 58:
		return true
	default:
		return false
	}
}

// IsDateFormatString reports whether a custom number-format string
// represents a date or time: it has at least one unquoted/unbracketed
// date token (y/d/h/s/m in either case) and no unquoted/unbracketed
// number token (0, #, ?).
func IsDateFormatString(s string) bool {
	inQuote := false
	inBracket := false
	hasDateToken := false
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case r == '[' && !inQuote:
			inBracket = true
		case r == ']' && !inQuote:
			inBracket = false
		case inQuote || inBracket:
			// skip
		case strings.ContainsRune("0#?", r):
			return false
		case strings.ContainsRune("dDmMyYhHsS", r):
			hasDateToken = true
		}
	}
	return hasDateToken
}

// ResolveDateStyles maps each cell-format (XF) record's numFmtId to
// whether it represents a date, given the custom format strings table
// (numFmtId >= 164 by convention, though any non-built-in ID is looked
// up the same way).
func ResolveDateStyles(xfFmtIDs []uint16, customFormats map[uint16]string) []bool {
	out := make([]bool, len(xfFmtIDs))
	for i, id := range xfFmtIDs {
		if isBuiltInDateFormatID(id) {
			out[i] = true
			continue
		}
		if fmtStr, ok := customFormats[id]; ok {
			out[i] = IsDateFormatString(fmtStr)
		}
	}
	return out
}

// Package sheet renders the 2D grid model shared by the xls and xlsx
// decoders into plain text (TSV) or GitHub-flavored markdown tables.
package sheet

import (
	"strconv"
	"strings"
)

// Sheet is a single named worksheet as a rectangular grid of string
// cell values (already date/number formatted by the caller).
type Sheet struct {
	Name string
	Rows [][]string
}

// RenderPlain renders all sheets as tab-separated text, one block per
// non-empty sheet, skipping entirely-empty sheets and trailing
// whitespace on each row.
func RenderPlain(sheets []Sheet) string {
	var nonEmpty []Sheet
	for _, s := range sheets {
		if !isEmptySheet(s) {
			nonEmpty = append(nonEmpty, s)
		}
	}

	var out strings.Builder
	for i, s := range nonEmpty {
		if i > 0 {
			out.WriteString("\n\n")
		}
		if len(nonEmpty) > 1 {
			out.WriteString("--- " + s.Name + " ---\n")
		}
		rows := stripTrailingEmptyRows(s.Rows)
		for r, row := range rows {
			if r > 0 {
				out.WriteByte('\n')
			}
			line := strings.TrimRight(strings.Join(row, "\t"), " \t")
			out.WriteString(line)
		}
	}
	return out.String()
}

// RenderMarkdown renders all sheets as markdown tables, each preceded
// by a heading, with trailing all-empty rows and leading/trailing
// all-empty columns trimmed and pipe characters escaped. Leading
// all-empty rows are kept.
func RenderMarkdown(sheets []Sheet) string {
	var out strings.Builder
	first := true
	for _, s := range sheets {
		if isEmptySheet(s) {
			continue
		}
		rows := stripTrailingEmptyRows(s.Rows)
		rows = stripEmptyCols(rows)
		if len(rows) == 0 {
			continue
		}
		if !first {
			out.WriteString("\n\n")
		}
		first = false
		out.WriteString("## " + s.Name + "\n\n")

		cols := len(rows[0])
		writeMarkdownRow(&out, rows[0], cols)
		out.WriteByte('\n')
		for c := 0; c < cols; c++ {
			out.WriteString("| --- ")
		}
		out.WriteString("|\n")
		for _, row := range rows[1:] {
			writeMarkdownRow(&out, row, cols)
			out.WriteByte('\n')
		}
	}
	return strings.TrimRight(out.String(), "\n")
}

func writeMarkdownRow(out *strings.Builder, row []string, cols int) {
	out.WriteByte('|')
	for c := 0; c < cols; c++ {
		var cell string
		if c < len(row) {
			cell = row[c]
		}
		out.WriteByte(' ')
		out.WriteString(escapePipe(cell))
		out.WriteString(" |")
	}
}

func escapePipe(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func isEmptySheet(s Sheet) bool {
	for _, row := range s.Rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				return false
			}
		}
	}
	return true
}

func stripTrailingEmptyRows(rows [][]string) [][]string {
	end := len(rows)
	for end > 0 && isEmptyRow(rows[end-1]) {
		end--
	}
	return rows[:end]
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func stripEmptyCols(rows [][]string) [][]string {
	if len(rows) == 0 {
		return rows
	}
	maxCols := 0
	for _, row := range rows {
		if len(row) > maxCols {
			maxCols = len(row)
		}
	}
	leading := 0
	for c := 0; c < maxCols; c++ {
		if !colEmpty(rows, c) {
			break
		}
		leading++
	}
	trailing := maxCols
	for trailing > leading && colEmpty(rows, trailing-1) {
		trailing--
	}
	if leading == 0 && trailing == maxCols {
		return rows
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		end := trailing
		if end > len(row) {
			end = len(row)
		}
		start := leading
		if start > end {
			start = end
		}
		out[i] = row[start:end]
	}
	return out
}

func colEmpty(rows [][]string, c int) bool {
	for _, row := range rows {
		if c < len(row) && strings.TrimSpace(row[c]) != "" {
			return false
		}
	}
	return true
}

// ColRefToIndex converts a spreadsheet column reference like "A", "Z",
// "AA" to a 0-based column index.
func ColRefToIndex(ref string) int {
	idx := 0
	for _, r := range ref {
		if r < 'A' || r > 'Z' {
			continue
		}
		idx = idx*26 + int(r-'A'+1)
	}
	return idx - 1
}

// IndexToColRef is the inverse of ColRefToIndex, used for diagnostics.
func IndexToColRef(idx int) string {
	idx++
	var out []byte
	for idx > 0 {
		idx--
		out = append([]byte{byte('A' + idx%26)}, out...)
		idx /= 26
	}
	return string(out)
}

// MustAtoi parses an integer, returning 0 on failure (used for
// best-effort row/col reference parsing where the source file may be
// malformed).
func MustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

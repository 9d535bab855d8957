// Package heuristic infers markdown structure (headings, tables) from
// plain text extracted by formats that carry no style information of
// their own, such as legacy .doc text and PDF text layers.
package heuristic

import (
	"regexp"
	"strings"
)

var (
	numberedHeadingRe = regexp.MustCompile(`^(\d+(\.\d+)*)\.?\s+(\S.*)$`)
	romanHeadingRe     = regexp.MustCompile(`^([IVXLCDM]+)\.\s+(\S.*)$`)
	sectionPrefixRe    = regexp.MustCompile(`^(\d+(\.\d+)*)\.?\s+`)
)

// TryStripSectionNumber removes a leading "1.", "1.2.3", or "IV." style
// section number prefix from a line, returning the remainder and true
// if one was found.
func TryStripSectionNumber(line string) (string, bool) {
	if m := sectionPrefixRe.FindStringSubmatchIndex(line); m != nil {
		return line[m[1]:], true
	}
	if m := romanHeadingRe.FindStringSubmatch(line); m != nil {
		return m[2], true
	}
	return line, false
}

// DetectNumberedHeading reports whether line looks like a numbered
// heading ("1. Introduction", "2.3 Background", "IV. Conclusion") and
// returns its nesting depth (number of dotted segments) if so.
func DetectNumberedHeading(line string) (depth int, text string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return 0, "", false
	}
	if m := numberedHeadingRe.FindStringSubmatch(trimmed); m != nil {
		depth = strings.Count(m[1], ".") + 1
		return depth, strings.TrimSpace(m[3]), true
	}
	if m := romanHeadingRe.FindStringSubmatch(trimmed); m != nil {
		return 1, strings.TrimSpace(m[2]), true
	}
	return 0, "", false
}

// IsLikelySubheading reports whether a short, standalone line is
// likely a subheading rather than body text: short, no terminal
// punctuation, and not itself a sentence fragment ending mid-clause.
func IsLikelySubheading(line string, prevBlank, nextBlank bool) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if len(trimmed) > 80 {
		return false
	}
	if strings.HasSuffix(trimmed, ".") || strings.HasSuffix(trimmed, ",") ||
		strings.HasSuffix(trimmed, ";") {
		return false
	}
	wordCount := len(strings.Fields(trimmed))
	if wordCount == 0 || wordCount > 12 {
		return false
	}
	return prevBlank && nextBlank
}

// DetectColumnCount guesses the number of tab/multi-space-delimited
// columns in a block of lines, returning 0 if the block does not look
// tabular (inconsistent column counts across lines).
func DetectColumnCount(lines []string) int {
	var counts []int
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := splitColumns(line)
		if len(cols) > 1 {
			counts = append(counts, len(cols))
		}
	}
	if len(counts) < 2 {
		return 0
	}
	first := counts[0]
	for _, c := range counts[1:] {
		if c != first {
			return 0
		}
	}
	return first
}

var multiSpaceRe = regexp.MustCompile(`\t|  +`)

func splitColumns(line string) []string {
	parts := multiSpaceRe.Split(strings.TrimRight(line, " \t"), -1)
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

// PlainToMarkdown converts unstyled extracted text to markdown,
// inferring headings from numbered-section prefixes and short
// standalone lines, and reconstructing tables from consistently
// columnar blocks of tab-separated text.
func PlainToMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			out = append(out, "")
			i++
			continue
		}

		if depth, headingText, ok := DetectNumberedHeading(trimmed); ok {
			level := depth
			if level > 6 {
				level = 6
			}
			out = append(out, strings.Repeat("#", level)+" "+headingText)
			i++
			continue
		}

		prevBlank := len(out) == 0 || out[len(out)-1] == ""
		nextBlank := i+1 >= len(lines) || strings.TrimSpace(lines[i+1]) == ""
		if IsLikelySubheading(trimmed, prevBlank, nextBlank) {
			out = append(out, "## "+trimmed)
			i++
			continue
		}

		// Look ahead for a tabular block.
		block, consumed := collectTableBlock(lines, i)
		if consumed > 1 {
			out = append(out, renderTableBlock(block)...)
			i += consumed
			continue
		}

		out = append(out, trimmed)
		i++
	}
	return strings.Join(out, "\n")
}

func collectTableBlock(lines []string, start int) ([]string, int) {
	end := start
	for end < len(lines) && strings.TrimSpace(lines[end]) != "" && strings.ContainsAny(lines[end], "\t") {
		end++
	}
	block := lines[start:end]
	if DetectColumnCount(block) == 0 {
		return nil, 0
	}
	return block, end - start
}

func renderTableBlock(lines []string) []string {
	if len(lines) == 0 {
		return nil
	}
	cols := len(splitColumns(lines[0]))
	var out []string
	header := splitColumns(lines[0])
	out = append(out, "| "+strings.Join(header, " | ")+" |")
	sep := make([]string, cols)
	for i := range sep {
		sep[i] = "---"
	}
	out = append(out, "| "+strings.Join(sep, " | ")+" |")
	for _, line := range lines[1:] {
		row := splitColumns(line)
		out = append(out, "| "+strings.Join(row, " | ")+" |")
	}
	return out
}

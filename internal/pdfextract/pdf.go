// Package pdfextract pulls the text layer out of PDF documents via
// github.com/ledongthuc/pdf, normalizing the per-page text stream
// into clean paragraphs.
package pdfextract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"docscribe/internal/docerr"
	"docscribe/internal/heuristic"
)

// ExtractPlain returns the concatenated text of every page, pages
// separated by a blank line.
func ExtractPlain(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = docerr.New(docerr.KindDocument, "panic while parsing PDF: %v", r)
		}
	}()
	pages, err := readPages(data)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n\n"), nil
}

// ExtractMarkdown runs the heuristic heading/table inference over the
// PDF's plain text, since the text layer carries no style metadata.
func ExtractMarkdown(data []byte) (markdown string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = docerr.New(docerr.KindDocument, "panic while parsing PDF: %v", r)
		}
	}()
	pages, err := readPages(data)
	if err != nil {
		return "", err
	}
	var out []string
	for _, p := range pages {
		out = append(out, heuristic.PlainToMarkdown(p))
	}
	return strings.Join(out, "\n\n"), nil
}

func readPages(data []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if strings.Contains(err.Error(), "password") || strings.Contains(err.Error(), "encrypt") {
			return nil, docerr.Encrypted("pdf")
		}
		return nil, docerr.Wrap(docerr.KindDocument, err, "open PDF")
	}

	var pages []string
	n := r.NumPage()
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		cleaned := cleanPageText(content)
		if cleaned != "" {
			pages = append(pages, cleaned)
		}
	}
	if len(pages) == 0 {
		return nil, docerr.New(docerr.KindDocument, "no extractable text layer")
	}
	return pages, nil
}

var (
	multiBlankRe = regexp.MustCompile(`\n{3,}`)
	trailingWSRe = regexp.MustCompile(`[ \t]+\n`)
)

// cleanPageText collapses the PDF library's raw glyph-positioned text
// stream into readable paragraphs: trims trailing run-of-spaces before
// newlines and caps blank-line runs at one.
func cleanPageText(s string) string {
	s = trailingWSRe.ReplaceAllString(s, "\n")
	s = multiBlankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Package extract wires format detection to each document decoder,
// exposing the three entry points the command-line tool and HTTP
// endpoint call: plain-text extraction, markdown extraction, and
// standalone format detection.
package extract

import (
	"docscribe/internal/dispatch"
	"docscribe/internal/docerr"
	"docscribe/internal/docx"
	"docscribe/internal/legacydoc"
	"docscribe/internal/pdfextract"
	"docscribe/internal/pptx"
	"docscribe/internal/xls"
	"docscribe/internal/xlsx"
)

// DetectFormat identifies a document's format from its content,
// independent of any file extension the caller may have on hand.
func DetectFormat(data []byte) (string, error) {
	f, err := dispatch.Detect(data)
	if err != nil {
		return "", err
	}
	return f.String(), nil
}

// ExtractPlain detects the document format and returns its plain text
// content.
func ExtractPlain(data []byte) (string, error) {
	f, err := dispatch.Detect(data)
	if err != nil {
		return "", err
	}
	switch f {
	case dispatch.FormatDOC:
		return legacydoc.ExtractPlain(data)
	case dispatch.FormatDOCX:
		return docx.ExtractPlain(data)
	case dispatch.FormatXLS:
		return xls.ExtractPlain(data)
	case dispatch.FormatXLSX:
		return xlsx.ExtractPlain(data)
	case dispatch.FormatPPTX:
		return pptx.ExtractPlain(data)
	case dispatch.FormatPDF:
		return pdfextract.ExtractPlain(data)
	default:
		return "", docerr.Unsupported()
	}
}

// ExtractMarkdown detects the document format and returns a markdown
// rendering of its content. When images is true, formats that carry
// embedded pictures (currently docx and xlsx) convert them to
// reference-style markdown images appended at the document end.
func ExtractMarkdown(data []byte, images bool) (string, error) {
	f, err := dispatch.Detect(data)
	if err != nil {
		return "", err
	}
	switch f {
	case dispatch.FormatDOC:
		return legacydoc.ExtractMarkdown(data, images)
	case dispatch.FormatDOCX:
		return docx.ExtractMarkdown(data, images)
	case dispatch.FormatXLS:
		return xls.ExtractMarkdown(data)
	case dispatch.FormatXLSX:
		return xlsx.ExtractMarkdown(data, images)
	case dispatch.FormatPPTX:
		return pptx.ExtractMarkdown(data, images)
	case dispatch.FormatPDF:
		return pdfextract.ExtractMarkdown(data)
	default:
		return "", docerr.Unsupported()
	}
}

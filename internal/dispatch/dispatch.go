// Package dispatch identifies a document's container format from its
// leading bytes, disambiguating the two compound container formats
// (OLE2 and ZIP) by peeking at the streams/parts they carry.
package dispatch

import (
	"archive/zip"
	"bytes"

	"github.com/richardlehane/mscfb"

	"docscribe/internal/docerr"
)

// Format identifies which decoder package owns a document.
type Format int

const (
	Unknown Format = iota
	FormatDOC
	FormatDOCX
	FormatXLS
	FormatXLSX
	FormatPPTX
	FormatPDF
)

func (f Format) String() string {
	switch f {
	case FormatDOC:
		return "doc"
	case FormatDOCX:
		return "docx"
	case FormatXLS:
		return "xls"
	case FormatXLSX:
		return "xlsx"
	case FormatPPTX:
		return "pptx"
	case FormatPDF:
		return "pdf"
	default:
		return "unknown"
	}
}

var (
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	zipMagic  = []byte{0x50, 0x4B, 0x03, 0x04}
	pdfMagic  = []byte("%PDF-")
)

// Detect inspects data's magic bytes and, for the two compound
// container formats, looks inside for a format-identifying member.
func Detect(data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, pdfMagic):
		return FormatPDF, nil
	case bytes.HasPrefix(data, ole2Magic):
		return detectOLE2(data)
	case bytes.HasPrefix(data, zipMagic):
		return detectZIP(data)
	default:
		return Unknown, docerr.New(docerr.KindDocument, "unrecognized file signature")
	}
}

func detectOLE2(data []byte) (Format, error) {
	r, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return Unknown, docerr.Wrap(docerr.KindArchive, err, "open OLE2 container")
	}
	for entry, walkErr := r.Next(); walkErr == nil; entry, walkErr = r.Next() {
		switch entry.Name {
		case "WordDocument":
			return FormatDOC, nil
		case "Workbook", "Book":
			return FormatXLS, nil
		}
	}
	return Unknown, docerr.New(docerr.KindDocument, "OLE2 container has no recognized document stream")
}

func detectZIP(data []byte) (Format, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Unknown, docerr.Wrap(docerr.KindArchive, err, "open ZIP container")
	}
	var hasDoc, hasXl, hasPpt bool
	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			hasDoc = true
		case "xl/workbook.xml":
			hasXl = true
		case "ppt/presentation.xml":
			hasPpt = true
		}
	}
	switch {
	case hasDoc:
		return FormatDOCX, nil
	case hasXl:
		return FormatXLSX, nil
	case hasPpt:
		return FormatPPTX, nil
	default:
		return Unknown, docerr.New(docerr.KindDocument, "ZIP container has no recognized OOXML part")
	}
}

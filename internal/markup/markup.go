// Package markup provides the inline-formatting and image-embedding
// helpers shared by the docx and pptx renderers.
package markup

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
)

// InlineRun is a run of text carrying inline formatting, implemented
// separately by docx.Run and pptx.TextRun so the rendering logic below
// is shared without coupling the two format packages.
type InlineRun interface {
	Text() string
	Bold() bool
	Italic() bool
	LinkURL() string // "" if not a hyperlink
}

// RenderRunsMarkdown renders a slice of runs as inline markdown,
// grouping consecutive runs that share a link URL into a single
// markdown link and skipping bold/italic wrapping for whitespace-only
// runs.
func RenderRunsMarkdown(runs []InlineRun) string {
	var out strings.Builder
	i := 0
	for i < len(runs) {
		link := runs[i].LinkURL()
		if link == "" {
			FormatRunInline(runs[i], &out)
			i++
			continue
		}
		j := i
		var text strings.Builder
		for j < len(runs) && runs[j].LinkURL() == link {
			var buf strings.Builder
			FormatRunInline(runs[j], &buf)
			text.WriteString(buf.String())
			j++
		}
		trimmed := strings.TrimSpace(text.String())
		if trimmed != "" {
			fmt.Fprintf(&out, "[%s](%s)", trimmed, link)
		}
		i = j
	}
	return out.String()
}

// FormatRunInline writes a single run's text to out, wrapped in
// markdown bold/italic markers. Whitespace-only runs are written
// unwrapped so "**  **" artifacts never appear.
func FormatRunInline(run InlineRun, out *strings.Builder) {
	text := run.Text()
	if strings.TrimSpace(text) == "" {
		out.WriteString(text)
		return
	}
	bold, italic := run.Bold(), run.Italic()
	switch {
	case bold && italic:
		out.WriteString("***")
		out.WriteString(text)
		out.WriteString("***")
	case bold:
		out.WriteString("**")
		out.WriteString(text)
		out.WriteString("**")
	case italic:
		out.WriteString("*")
		out.WriteString(text)
		out.WriteString("*")
	default:
		out.WriteString(text)
	}
}

// DetectImageMIME sniffs an image's MIME type from its leading bytes.
// Formats without browser-renderable markdown support (EMF, WMF,
// TIFF, ...) return ok=false.
func DetectImageMIME(data []byte) (mime string, ok bool) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg", true
	case bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47}):
		return "image/png", true
	case bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")):
		return "image/gif", true
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp", true
	case bytes.HasPrefix(data, []byte("BM")):
		return "image/bmp", true
	case looksLikeSVG(data):
		return "image/svg+xml", true
	default:
		return "", false
	}
}

func looksLikeSVG(data []byte) bool {
	prefix := data
	if len(prefix) > 256 {
		prefix = prefix[:256]
	}
	trimmed := bytes.TrimLeft(prefix, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return false
	}
	return bytes.Contains(prefix, []byte("<svg"))
}

// ImageRef is a reference-style markdown image: an inline marker plus
// a definition placed elsewhere in the document (end of output), to
// keep embedded base64 data from bloating inline text flow.
type ImageRef struct {
	Inline     string
	Definition string
}

// ImageToBase64Ref builds a reference-style markdown image for data,
// identified by id. Returns ok=false if the image format is not
// markdown-renderable.
func ImageToBase64Ref(data []byte, id string) (ImageRef, bool) {
	mime, ok := DetectImageMIME(data)
	if !ok {
		return ImageRef{}, false
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	return ImageRef{
		Inline:     fmt.Sprintf("![][%s]", id),
		Definition: fmt.Sprintf("[%s]: <data:%s;base64,%s>", id, mime, encoded),
	}, true
}

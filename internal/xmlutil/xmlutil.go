// Package xmlutil holds the OOXML relationship-file and ZIP-path
// helpers shared by the docx, xlsx, and pptx decoders.
package xmlutil

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// GetAttr returns the value of attribute name on a start element, or
// "" if absent. name may be a bare local name ("id") or include a
// prefix ("r:id"), matched against the attribute's local name.
func GetAttr(se xml.StartElement, name string) string {
	local := name
	if i := strings.IndexByte(name, ':'); i >= 0 {
		local = name[i+1:]
	}
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// Rels maps relationship IDs ("rId1") to resolved targets.
type Rels map[string]string

// ParseRelsXML extracts hyperlink relationships from a .rels part:
// entries whose Type ends in "/hyperlink" or whose TargetMode is
// "External".
func ParseRelsXML(data []byte) (Rels, error) {
	return parseRelsFiltered(data, func(relType, mode string) bool {
		return mode == "External" || strings.HasSuffix(relType, "/hyperlink")
	})
}

// ParseImageRelsXML extracts only image relationships (Type ends in
// "/image") from a .rels part.
func ParseImageRelsXML(data []byte) (Rels, error) {
	return parseRelsFiltered(data, func(relType, mode string) bool {
		return strings.HasSuffix(relType, "/image")
	})
}

// ParseAllRelsXML extracts every relationship in a .rels part
// regardless of Type, for callers (e.g. presentation.xml.rels slide
// ordering) that already know which relationship ids they need.
func ParseAllRelsXML(data []byte) (Rels, error) {
	return parseRelsFiltered(data, func(relType, mode string) bool { return true })
}

func parseRelsFiltered(data []byte, keep func(relType, mode string) bool) (Rels, error) {
	out := make(Rels)
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse rels xml: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Relationship" {
			continue
		}
		id := GetAttr(se, "Id")
		target := GetAttr(se, "Target")
		relType := GetAttr(se, "Type")
		mode := GetAttr(se, "TargetMode")
		if id == "" || target == "" {
			continue
		}
		if keep(relType, mode) {
			out[id] = target
		}
	}
	return out, nil
}

// RelsPath computes the .rels path for a given ZIP-internal part path,
// e.g. "xl/worksheets/sheet1.xml" -> "xl/worksheets/_rels/sheet1.xml.rels".
func RelsPath(partPath string) string {
	dir := path.Dir(partPath)
	base := path.Base(partPath)
	if dir == "." {
		return "_rels/" + base + ".rels"
	}
	return dir + "/_rels/" + base + ".rels"
}

// NormalizeZipPath resolves ".." segments in a path joined against a
// base directory, returning a clean ZIP-internal path with no leading
// slash.
func NormalizeZipPath(base, target string) string {
	if strings.HasPrefix(target, "/") {
		return path.Clean(target)[1:]
	}
	joined := path.Join(base, target)
	return strings.TrimPrefix(path.Clean(joined), "/")
}

// LoadRels reads and parses the hyperlink relationships for partPath
// from archive, returning an empty map if no .rels file exists.
func LoadRels(archive *zip.Reader, partPath string) (Rels, error) {
	return loadRelsWith(archive, partPath, ParseRelsXML)
}

// LoadImageRels reads and parses the image relationships for partPath.
func LoadImageRels(archive *zip.Reader, partPath string) (Rels, error) {
	return loadRelsWith(archive, partPath, ParseImageRelsXML)
}

// LoadAllRels reads and parses every relationship for partPath.
func LoadAllRels(archive *zip.Reader, partPath string) (Rels, error) {
	return loadRelsWith(archive, partPath, ParseAllRelsXML)
}

func loadRelsWith(archive *zip.Reader, partPath string, parse func([]byte) (Rels, error)) (Rels, error) {
	relsPath := RelsPath(partPath)
	f, err := archive.Open(relsPath)
	if err != nil {
		return Rels{}, nil
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relsPath, err)
	}
	return parse(data)
}

// ReadImageFromZip reads the bytes of an image relationship target,
// resolving relative targets against baseDir.
func ReadImageFromZip(archive *zip.Reader, target, baseDir string) ([]byte, error) {
	p := NormalizeZipPath(baseDir, target)
	f, err := archive.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", p, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

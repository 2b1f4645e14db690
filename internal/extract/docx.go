package extract

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

const (
	wordDefaultPart     = "word/document.xml"
	contentTypesPart    = "[Content_Types].xml"
	wordMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

// wordText captures the body of each <w:t> run, whatever its attributes.
var wordText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// packageManifest is [Content_Types].xml. Only overrides name the main part.
type packageManifest struct {
	Overrides []struct {
		PartName    string `xml:"PartName,attr"`
		ContentType string `xml:"ContentType,attr"`
	} `xml:"Override"`
}

// wordMainPart returns the zip entry holding the document body. A part named
// in the manifest wins over the default.
func wordMainPart(a *archive) string {
	raw, err := a.read(contentTypesPart)
	if err != nil || raw == nil {
		return wordDefaultPart
	}
	var ct packageManifest
	if err := xml.Unmarshal(raw, &ct); err != nil {
		return wordDefaultPart
	}
	for _, o := range ct.Overrides {
		if o.ContentType == wordMainContentType && o.PartName != "" {
			return strings.TrimPrefix(o.PartName, "/")
		}
	}
	return wordDefaultPart
}

func extractDOCX(content []byte, limit int64) (string, map[string]string, error) {
	zr, err := openZip(content, limit)
	if err != nil {
		return "", nil, fmt.Errorf("docx: %w", err)
	}
	part := wordMainPart(zr)
	body, err := zr.read(part)
	switch {
	case err != nil:
		return "", nil, fmt.Errorf("docx: %w", err)
	case body == nil:
		return "", nil, fmt.Errorf("docx: missing %s", part)
	}
	return joinMatches(wordText.FindAllStringSubmatch(string(body), -1)), ooxmlMetadata(zr), nil
}

package extract

import (
	"fmt"
	"regexp"
)

// odfContentPath is the main content part of every OpenDocument package.
const odfContentPath = "content.xml"

// OpenDocument text elements. Opening and closing tags are matched separately per element.
var (
	odfTextP    = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odfTextSpan = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
	odfTextH    = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)
)

func odfContent(content []byte, limit int64, kind string) (string, map[string]string, error) {
	zr, err := openZip(content, limit)
	if err != nil {
		return "", nil, fmt.Errorf("extract %s: %w", kind, err)
	}
	raw, err := zr.read(odfContentPath)
	if err != nil {
		return "", nil, fmt.Errorf("extract %s: %w", kind, err)
	}
	if raw == nil {
		return "", nil, fmt.Errorf("extract %s: %s not found", kind, odfContentPath)
	}
	return string(raw), odfMetadata(zr), nil
}

// extractODP collects text:p, text:span and text:h elements, in that order.
func extractODP(content []byte, limit int64) (string, map[string]string, error) {
	s, meta, err := odfContent(content, limit, "ODP")
	if err != nil {
		return "", nil, err
	}
	text := joinMatches(
		odfTextP.FindAllStringSubmatch(s, -1),
		odfTextSpan.FindAllStringSubmatch(s, -1),
		odfTextH.FindAllStringSubmatch(s, -1),
	)
	return text, meta, nil
}

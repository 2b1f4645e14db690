package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// pptxSlidePathPrefix is the path prefix for slide XML files inside a .pptx zip.
const pptxSlidePathPrefix = "ppt/slides/slide"

// atTag matches <a:t>text</a:t> with any attributes.
var atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

// extractPPTX reads the <a:t> nodes of every slide, in slide-number order.
func extractPPTX(content []byte, limit int64) (string, map[string]string, error) {
	zr, err := openZip(content, limit)
	if err != nil {
		return "", nil, fmt.Errorf("pptx: %w", err)
	}
	var slides []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, pptxSlidePathPrefix) && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f.Name)
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slideNumber(slides[i]) < slideNumber(slides[j]) })

	var groups [][][]string
	for _, name := range slides {
		raw, err := zr.read(name)
		if err != nil {
			return "", nil, fmt.Errorf("pptx: %w", err)
		}
		groups = append(groups, atTag.FindAllStringSubmatch(string(raw), -1))
	}
	return joinMatches(groups...), ooxmlMetadata(zr), nil
}

// slideNumber parses N out of ppt/slides/slideN.xml; unparsable names sort last.
func slideNumber(name string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, pptxSlidePathPrefix), ".xml"))
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

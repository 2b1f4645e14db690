// Package extract provides text and metadata extraction from various document formats.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnsupportedFormat is returned for content no extractor understands.
var ErrUnsupportedFormat = errors.New("unsupported format")

// MetaContentType is the metadata key every extraction reports.
const MetaContentType = "Content-Type"

// Extraction is the text and metadata pulled out of one file.
type Extraction struct {
	Text     string
	Metadata map[string]string
}

// ContentExtractor turns raw file bytes into text and metadata.
// typeHint is the lower-case file extension including the dot (e.g. ".pdf"), or "".
type ContentExtractor interface {
	Extract(ctx context.Context, content []byte, typeHint string) (*Extraction, error)
}

// ExtractionError records why a single file could not be extracted.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor is the default ContentExtractor.
type Extractor struct {
	maxUnpacked int64
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxUnpackedSize caps how many bytes an office package may inflate to
// across all the entries read from it. Zero or less means no cap.
func WithMaxUnpackedSize(n int64) Option {
	return func(e *Extractor) {
		e.maxUnpacked = n
	}
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var plainExtensions = map[string]bool{
	".txt": true, ".md": true, ".rst": true, ".csv": true,
	".json": true, ".xml": true, ".html": true, ".htm": true, "": true,
}

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".odt":  "application/vnd.oasis.opendocument.text",
	".odp":  "application/vnd.oasis.opendocument.presentation",
	".ods":  "application/vnd.oasis.opendocument.spreadsheet",
	".rtf":  "application/rtf",
	".doc":  "application/msword",
}

// Extract dispatches on typeHint. Unknown hints are sniffed; text is read as
// plain text and anything else fails with ErrUnsupportedFormat.
func (e *Extractor) Extract(ctx context.Context, content []byte, typeHint string) (*Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ext := strings.ToLower(typeHint)
	var (
		text string
		meta map[string]string
		err  error
	)
	switch ext {
	case ".pdf":
		text, meta, err = extractPDF(ctx, content)
	case ".docx":
		text, meta, err = extractDOCX(content, e.maxUnpacked)
	case ".xlsx":
		text, meta, err = extractExcel(ctx, content)
	case ".pptx":
		text, meta, err = extractPPTX(content, e.maxUnpacked)
	case ".odp":
		text, meta, err = extractODP(content, e.maxUnpacked)
	case ".ods":
		text, meta, err = extractODS(content, e.maxUnpacked)
	case ".odt", ".rtf", ".doc":
		text, err = extractCat(content)
	default:
		if !plainExtensions[ext] {
			sniffed := http.DetectContentType(content)
			if !strings.HasPrefix(sniffed, "text/") {
				return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, ext, sniffed)
			}
		}
		text = decodePlain(content)
	}
	if err != nil {
		return nil, err
	}
	if meta == nil {
		meta = make(map[string]string)
	}
	meta[MetaContentType] = contentType(ext, content)
	return &Extraction{Text: text, Metadata: meta}, nil
}

func contentType(ext string, content []byte) string {
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return http.DetectContentType(content)
}

// Package document turns extracted text and metadata into index documents.
package document

import (
	"sort"
	"strings"
	"unicode"

	"github.com/hyperjump/docsearch/internal/models"
)

// Assemble builds the Document for the file at path. It does no I/O.
//
// Metadata keys are lower-cased and visited in sorted order. Blank values are
// dropped. A title is stored verbatim; keywords are split on commas and
// whitespace into one stored field per keyword. Every other key becomes an
// indexed-only field whose value is the document path rather than the
// metadata value, so a search such as author:/docs/report.pdf finds files
// that carry an author at all. Keys named like the reserved path and body
// fields are ignored.
func Assemble(path, text string, metadata map[string]string) *models.Document {
	doc := &models.Document{Path: path, Body: text}

	sourceKeys := make([]string, 0, len(metadata))
	for k := range metadata {
		sourceKeys = append(sourceKeys, k)
	}
	sort.Strings(sourceKeys)

	// Source keys differing only in case collapse to one name; the first in sorted order wins.
	keys := make([]string, 0, len(sourceKeys))
	values := make(map[string]string, len(sourceKeys))
	for _, k := range sourceKeys {
		v := metadata[k]
		name := strings.ToLower(strings.TrimSpace(k))
		if name == "" || strings.TrimSpace(v) == "" {
			continue
		}
		if _, dup := values[name]; dup {
			continue
		}
		keys = append(keys, name)
		values[name] = v
	}
	sort.Strings(keys)

	for _, name := range keys {
		value := values[name]
		switch name {
		case models.FieldPath, models.FieldBody:
			continue
		case models.FieldTitle:
			doc.Fields = append(doc.Fields, models.Field{Name: name, Value: value, Mode: models.Stored})
		case models.FieldKeywords:
			for _, kw := range SplitKeywords(value) {
				doc.Fields = append(doc.Fields, models.Field{Name: name, Value: kw, Mode: models.Stored})
			}
		default:
			doc.Fields = append(doc.Fields, models.Field{Name: name, Value: path, Mode: models.IndexedOnly})
		}
	}
	if strings.TrimSpace(doc.Body) == "" {
		doc.Body = ""
	}
	return doc
}

// SplitKeywords splits a keywords value on runs of commas and whitespace.
func SplitKeywords(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

package extract

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
)

var pdfInfoKeys = []string{MetaTitle, MetaAuthor, MetaSubject, MetaKeywords, MetaCreator, MetaProducer}

func extractPDF(ctx context.Context, content []byte) (string, map[string]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", nil, fmt.Errorf("open PDF: %w", err)
	}
	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 0; i < numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", nil, fmt.Errorf("extract page %d: %w", i+1, err)
		}
		buf.WriteString(text)
		if i < numPages-1 {
			buf.WriteByte('\n')
		}
	}
	return buf.String(), pdfInfo(r), nil
}

func pdfInfo(r *pdf.Reader) map[string]string {
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return nil
	}
	meta := make(map[string]string, len(pdfInfoKeys))
	for _, k := range pdfInfoKeys {
		if v := info.Key(k); !v.IsNull() {
			meta[k] = v.Text()
		}
	}
	return compact(meta)
}

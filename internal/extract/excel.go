package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

func extractExcel(ctx context.Context, content []byte) (string, map[string]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var buf strings.Builder
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
	}

	var meta map[string]string
	if props, err := f.GetDocProps(); err == nil && props != nil {
		meta = compact(map[string]string{
			MetaTitle:       props.Title,
			MetaSubject:     props.Subject,
			MetaAuthor:      props.Creator,
			MetaKeywords:    props.Keywords,
			MetaDescription: props.Description,
		})
	}
	return strings.TrimSpace(buf.String()), meta, nil
}

package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrArchiveTooLarge is returned when an office package inflates past the
// extractor's unpacked size limit.
var ErrArchiveTooLarge = errors.New("archive exceeds unpacked size limit")

// archive is an office package whose entries share one decompression budget.
type archive struct {
	*zip.Reader
	remaining int64 // < 0 means unlimited
}

func openZip(content []byte, limit int64) (*archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("not a zip: %w", err)
	}
	if limit <= 0 {
		limit = -1
	}
	return &archive{Reader: zr, remaining: limit}, nil
}

// read returns the bytes of the named entry, or nil if it is absent.
func (a *archive) read(name string) ([]byte, error) {
	for _, f := range a.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		var r io.Reader = rc
		if a.remaining >= 0 {
			r = io.LimitReader(rc, a.remaining+1)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(r); err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		if a.remaining >= 0 {
			if int64(buf.Len()) > a.remaining {
				return nil, fmt.Errorf("read %s: %w", f.Name, ErrArchiveTooLarge)
			}
			a.remaining -= int64(buf.Len())
		}
		return buf.Bytes(), nil
	}
	return nil, nil
}

// joinMatches joins the trimmed first capture of every match with single spaces.
func joinMatches(groups ...[][]string) string {
	parts := make([]string, 0, 16)
	for _, matches := range groups {
		for _, m := range matches {
			if t := strings.TrimSpace(m[1]); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " ")
}

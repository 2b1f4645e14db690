package index

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/docsearch/internal/analysis"
	"github.com/hyperjump/docsearch/internal/models"
)

func TestPostingsCodec(t *testing.T) {
	tests := []PostingList{
		{},
		{{DocID: 0, Freq: 1}},
		{{DocID: 3, Freq: 2}, {DocID: 4, Freq: 1}, {DocID: 1000000, Freq: 300}},
	}
	for _, pl := range tests {
		got, err := decodePostings(encodePostings(nil, pl))
		if err != nil {
			t.Fatalf("decode %v: %v", pl, err)
		}
		if len(got) != len(pl) || (len(pl) > 0 && !reflect.DeepEqual(got, pl)) {
			t.Errorf("got %v, want %v", got, pl)
		}
	}
}

func TestDecodePostings_corrupt(t *testing.T) {
	tests := map[string][]byte{
		"empty":         {},
		"count too big": {0x7f, 0x01},
		"truncated":     {0x02, 0x01, 0x01, 0x01},
		"duplicate doc": {0x02, 0x01, 0x01, 0x00, 0x01},
	}
	for name, b := range tests {
		if _, err := decodePostings(b); !errors.Is(err, ErrCorruptSegment) {
			t.Errorf("%s: err = %v, want ErrCorruptSegment", name, err)
		}
	}
}

func writeTestSegment(t *testing.T) string {
	t.Helper()
	mem := NewMemoryIndex(analysis.MustNew(), 2)
	mem.AddDocument(&models.Document{ID: 0, Path: "/one", Body: "shared first"})
	mem.AddDocument(&models.Document{ID: 1, Path: "/two", Body: "shared second second"})
	path := filepath.Join(t.TempDir(), SegmentFileName)
	if _, err := WriteSegment(path, mem); err != nil {
		t.Fatalf("WriteSegment: %v", err)
	}
	return path
}

func TestSegment_roundTrip(t *testing.T) {
	r, err := OpenSegment(writeTestSegment(t))
	if err != nil {
		t.Fatalf("OpenSegment: %v", err)
	}
	defer r.Close()

	pl, err := r.Postings("body", "shared")
	if err != nil {
		t.Fatal(err)
	}
	want := PostingList{{DocID: 0, Freq: 1}, {DocID: 1, Freq: 1}}
	if !reflect.DeepEqual(pl, want) {
		t.Errorf("shared = %v, want %v", pl, want)
	}
	pl, _ = r.Postings("body", "second")
	if !reflect.DeepEqual(pl, PostingList{{DocID: 1, Freq: 2}}) {
		t.Errorf("second = %v", pl)
	}
	if r.DocFreq("body", "shared") != 2 || r.DocFreq("title", "shared") != 0 {
		t.Error("DocFreq mismatch")
	}
	if r.FieldLength("body", 1) != 3 || r.AvgFieldLength("body") != 2.5 {
		t.Errorf("norms: %d %v", r.FieldLength("body", 1), r.AvgFieldLength("body"))
	}
	if r.DocCount() != 2 {
		t.Errorf("DocCount = %d", r.DocCount())
	}
}

func TestOpenSegment_validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"bad magic", func(b []byte) []byte { b[0] ^= 0xff; return b }},
		{"bad version", func(b []byte) []byte { b[4] = 9; return b }},
		{"flipped dictionary byte", func(b []byte) []byte {
			h := decodeHeader(b)
			b[h.DictOffset+2] ^= 0x01
			return b
		}},
		{"truncated", func(b []byte) []byte { return b[:len(b)-5] }},
		{"too short", func(b []byte) []byte { return b[:10] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTestSegment(t)
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(path, tt.mutate(data), 0644); err != nil {
				t.Fatal(err)
			}
			r, err := OpenSegment(path)
			if err == nil {
				r.Close()
			}
			if !errors.Is(err, ErrCorruptSegment) {
				t.Errorf("err = %v, want ErrCorruptSegment", err)
			}
		})
	}
}

func TestSegment_fieldTerms(t *testing.T) {
	r, err := OpenSegment(writeTestSegment(t))
	if err != nil {
		t.Fatalf("OpenSegment: %v", err)
	}
	defer r.Close()

	var got []string
	freq := map[string]int{}
	for _, e := range r.FieldTerms(models.FieldBody) {
		got = append(got, e.Term)
		freq[e.Term] = e.DocFreq
	}
	want := []string{"first", "second", "shared"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("body terms = %v, want %v", got, want)
	}
	if freq["shared"] != 2 || freq["second"] != 1 {
		t.Errorf("doc freqs = %v", freq)
	}
	if terms := r.FieldTerms("missing"); len(terms) != 0 {
		t.Errorf("missing field terms = %v", terms)
	}
}

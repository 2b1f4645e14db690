package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/docsearch/internal/analysis"
	"github.com/hyperjump/docsearch/internal/config"
	"github.com/hyperjump/docsearch/internal/extract"
	"github.com/hyperjump/docsearch/internal/index"
	"github.com/hyperjump/docsearch/internal/metrics"
	"github.com/hyperjump/docsearch/internal/models"
	"github.com/hyperjump/docsearch/internal/search"
)

type fixture struct {
	handle  *index.Handle
	indexer *Indexer
	engine  *search.Engine
}

func newFixture(t *testing.T, extractor extract.ContentExtractor) *fixture {
	t.Helper()
	h, err := index.Open(filepath.Join(t.TempDir(), "index"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	an := analysis.MustNew()
	m := metrics.New()
	idx := NewIndexer(h, an, extractor, &config.IndexConfig{Workers: 2}, WithMetrics(m))
	eng, err := search.NewEngine(h, an, &config.SearchConfig{
		DefaultLimit: 10, MaxLimit: 100, OverFetchFactor: 10, CacheSize: 8,
	}, search.WithMetrics(m))
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{handle: h, indexer: idx, engine: eng}
}

func (f *fixture) search(t *testing.T, q string) *models.SearchResponse {
	t.Helper()
	resp, err := f.engine.Search(context.Background(), &models.SearchRequest{Query: q, Limit: 50})
	if err != nil {
		t.Fatalf("Search(%q): %v", q, err)
	}
	return resp
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestIndexDirectory_alphaBetaGamma(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.txt")
	b := filepath.Join(root, "b.txt")
	writeFile(t, a, "alpha beta")
	writeFile(t, b, "beta gamma")

	f := newFixture(t, nil)
	stats, err := f.indexer.IndexDirectory(context.Background(), root)
	if err != nil {
		t.Fatalf("IndexDirectory: %v", err)
	}
	if stats.Documents != 2 || stats.Failed != 0 || stats.BuildID == "" || stats.Generation == "" {
		t.Errorf("stats = %+v", stats)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"alpha", []string{a}},
		{"beta", []string{a, b}},
		{"gamma", []string{b}},
		{"omega", []string{}},
	}
	for _, tt := range tests {
		if got := f.search(t, tt.query).Paths(); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: paths = %v, want %v", tt.query, got, tt.want)
		}
	}
}

// failingExtractor fails every file with the given extension and delegates the rest.
type failingExtractor struct {
	ext   string
	inner extract.ContentExtractor
}

func (e *failingExtractor) Extract(ctx context.Context, content []byte, hint string) (*extract.Extraction, error) {
	if hint == e.ext {
		return nil, errors.New("injected failure")
	}
	return e.inner.Extract(ctx, content, hint)
}

func TestIndexDirectory_extractionFailureIsAbsorbed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "one.txt"), "uniqueone")
	writeFile(t, filepath.Join(root, "two.md"), "uniquetwo")
	writeFile(t, filepath.Join(root, "sub", "three.txt"), "uniquethree")
	broken := filepath.Join(root, "broken.pdf")
	writeFile(t, broken, "%PDF-1.4 garbage")

	f := newFixture(t, &failingExtractor{ext: ".pdf", inner: extract.NewExtractor()})
	stats, err := f.indexer.IndexDirectory(context.Background(), root)
	if err != nil {
		t.Fatalf("IndexDirectory: %v", err)
	}
	if stats.Documents != 3 || stats.Failed != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Failures[0].Path != broken || stats.Failures[0].Reason == "" {
		t.Errorf("failure = %+v", stats.Failures[0])
	}
	for _, term := range []string{"uniqueone", "uniquetwo", "uniquethree"} {
		if got := f.search(t, term).Paths(); len(got) != 1 {
			t.Errorf("%s: paths = %v", term, got)
		}
	}
}

func TestIndexDirectory_idempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "report alpha alpha")
	writeFile(t, filepath.Join(root, "b.txt"), "report beta")
	writeFile(t, filepath.Join(root, "c", "d.txt"), "report gamma alpha")

	f := newFixture(t, nil)
	ctx := context.Background()
	first, err := f.indexer.IndexDirectory(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	before := f.search(t, "report OR alpha")

	second, err := f.indexer.IndexDirectory(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	after := f.search(t, "report OR alpha")

	if first.Generation == second.Generation {
		t.Errorf("rebuild reused generation %s", first.Generation)
	}
	if first.Terms != second.Terms || first.Documents != second.Documents {
		t.Errorf("stats differ: %+v vs %+v", first, second)
	}
	if len(before.Hits) != len(after.Hits) {
		t.Fatalf("hit counts differ: %d vs %d", len(before.Hits), len(after.Hits))
	}
	for i := range before.Hits {
		b, a := before.Hits[i], after.Hits[i]
		if b.Path != a.Path || b.Score != a.Score || b.DocID != a.DocID {
			t.Errorf("hit %d: %+v vs %+v", i, b, a)
		}
	}
}

func TestIndexDirectory_spreadsheetKeywords(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "budget.xlsx")
	x := excelize.NewFile()
	x.SetCellValue("Sheet1", "A1", "Quarterly spreadsheet figures")
	if err := x.SetDocProps(&excelize.DocProperties{
		Title:    "Budget Plan",
		Keywords: "red, green blue",
		Creator:  "Finance",
	}); err != nil {
		t.Fatal(err)
	}
	if err := x.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	x.Close()

	f := newFixture(t, nil)
	if _, err := f.indexer.IndexDirectory(context.Background(), root); err != nil {
		t.Fatal(err)
	}

	resp := f.search(t, "keywords:green")
	if got := resp.Paths(); !reflect.DeepEqual(got, []string{path}) {
		t.Fatalf("paths = %v", got)
	}
	hit := resp.Hits[0]
	if want := []string{"red", "green", "blue"}; !reflect.DeepEqual(hit.Fields["keywords"], want) {
		t.Errorf("keywords = %v, want %v", hit.Fields["keywords"], want)
	}
	if hit.Fields.First("title") != "Budget Plan" {
		t.Errorf("title = %q", hit.Fields.First("title"))
	}
	if _, ok := hit.Fields["author"]; ok {
		t.Error("author must not be stored")
	}
	for _, q := range []string{"keywords:red", "keywords:blue", "title:budget", "spreadsheet"} {
		if got := f.search(t, q).Paths(); !reflect.DeepEqual(got, []string{path}) {
			t.Errorf("%s: paths = %v", q, got)
		}
	}
}

func TestIndexDirectory_badRootKeepsPrevious(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "alpha")

	f := newFixture(t, nil)
	ctx := context.Background()
	stats, err := f.indexer.IndexDirectory(ctx, root)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.indexer.IndexDirectory(ctx, filepath.Join(root, "missing"))
	var ie *index.IndexError
	if !errors.As(err, &ie) || ie.Op != "collect" {
		t.Fatalf("err = %v, want collect IndexError", err)
	}
	if f.handle.CurrentID() != stats.Generation {
		t.Errorf("current = %s, want %s", f.handle.CurrentID(), stats.Generation)
	}
	if got := f.search(t, "alpha").Paths(); len(got) != 1 {
		t.Errorf("paths = %v", got)
	}
}

func TestIndexDirectory_cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "alpha")

	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.indexer.IndexDirectory(ctx, root)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if _, err := f.handle.Acquire(); !errors.Is(err, index.ErrNoGeneration) {
		t.Errorf("Acquire: %v, want ErrNoGeneration", err)
	}
}

func TestIndexDirectory_emptyDirectory(t *testing.T) {
	f := newFixture(t, nil)
	stats, err := f.indexer.IndexDirectory(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("IndexDirectory: %v", err)
	}
	if stats.Documents != 0 {
		t.Errorf("documents = %d", stats.Documents)
	}
	if got := f.search(t, "anything").Paths(); len(got) != 0 {
		t.Errorf("paths = %v", got)
	}
}

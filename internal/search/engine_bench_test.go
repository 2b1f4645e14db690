package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/docsearch/internal/analysis"
	"github.com/hyperjump/docsearch/internal/config"
	"github.com/hyperjump/docsearch/internal/index"
	"github.com/hyperjump/docsearch/internal/models"
)

var benchTopics = []string{
	"python programming language for web development and data science",
	"kubernetes container orchestration automates deployment and scaling",
	"react hooks and components build user interfaces",
	"go concurrency with goroutines and channels",
	"postgresql relational database supports full text search",
	"docker container images are portable across environments",
	"machine learning algorithms learn patterns from data",
	"neural network deep learning powers modern models",
}

func benchDocs(n int) []*models.Document {
	docs := make([]*models.Document, n)
	for i := range docs {
		topic := benchTopics[i%len(benchTopics)]
		docs[i] = &models.Document{
			Path: fmt.Sprintf("/corpus/doc-%04d.txt", i),
			Body: fmt.Sprintf("%s document %d %s", topic, i, benchTopics[(i*7)%len(benchTopics)]),
			Fields: []models.Field{
				{Name: models.FieldTitle, Value: fmt.Sprintf("Document %d", i), Mode: models.Stored},
			},
		}
	}
	return docs
}

func newBenchEngine(b *testing.B, cfg *config.SearchConfig) *Engine {
	b.Helper()
	h, err := index.Open(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { h.Close() })
	an := analysis.MustNew()
	if _, err := index.NewBuilder(h, an).Build(context.Background(), benchDocs(2000)); err != nil {
		b.Fatal(err)
	}
	e, err := NewEngine(h, an, cfg)
	if err != nil {
		b.Fatal(err)
	}
	return e
}

func BenchmarkEngine_Search(b *testing.B) {
	queries := []string{
		"container",
		"container AND orchestration",
		`"deep learning" OR goroutines`,
		"data -python",
	}
	for _, cacheSize := range []int{0, 64} {
		cfg := testSearchConfig()
		cfg.CacheSize = cacheSize
		e := newBenchEngine(b, cfg)
		for _, q := range queries {
			b.Run(fmt.Sprintf("cache=%d/%s", cacheSize, q), func(b *testing.B) {
				req := &models.SearchRequest{Query: q, Limit: 10, Offset: 20}
				for i := 0; i < b.N; i++ {
					if _, err := e.Search(context.Background(), req); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkBuilder_Build(b *testing.B) {
	an := analysis.MustNew()
	docs := benchDocs(2000)
	h, err := index.Open(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	defer h.Close()
	builder := index.NewBuilder(h, an)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := builder.Build(context.Background(), docs); err != nil {
			b.Fatal(err)
		}
	}
}

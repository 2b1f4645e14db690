// Package analysis tokenizes field values for indexing and querying.
//
// Both sides use bleve's standard analyzer: Unicode word segmentation,
// lower-casing, and English stop-word removal. There is no stemming, so
// "report" does not match "reports".
package analysis

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/registry"
)

// Name is the name of the analyzer used for every field.
const Name = standard.Name

type tokenStreamer interface {
	Analyze([]byte) analysis.TokenStream
}

// Analyzer turns text into terms. It is safe for concurrent use.
type Analyzer struct {
	inner tokenStreamer
}

// New returns the standard analyzer.
func New() (*Analyzer, error) {
	a, err := registry.NewCache().AnalyzerNamed(Name)
	if err != nil {
		return nil, fmt.Errorf("load %s analyzer: %w", Name, err)
	}
	return &Analyzer{inner: a}, nil
}

// MustNew is like New but panics on error. The standard analyzer is
// registered at init time, so this only fails on a broken build.
func MustNew() *Analyzer {
	a, err := New()
	if err != nil {
		panic(err)
	}
	return a
}

// Terms returns the terms of text in order of appearance, duplicates included.
// Invalid UTF-8 is replaced with U+FFFD first, which separates words.
func (a *Analyzer) Terms(text string) []string {
	if text == "" {
		return nil
	}
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}
	stream := a.inner.Analyze([]byte(text))
	terms := make([]string, 0, len(stream))
	for _, tok := range stream {
		if len(tok.Term) == 0 {
			continue
		}
		terms = append(terms, string(tok.Term))
	}
	return terms
}

// Frequencies returns each distinct term of text with its count, and the
// total number of terms (the field length).
func (a *Analyzer) Frequencies(text string) (map[string]int, int) {
	terms := a.Terms(text)
	freqs := make(map[string]int, len(terms))
	for _, t := range terms {
		freqs[t]++
	}
	return freqs, len(terms)
}

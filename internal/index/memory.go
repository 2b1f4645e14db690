package index

import (
	"sort"
	"strings"

	"github.com/hyperjump/docsearch/internal/analysis"
	"github.com/hyperjump/docsearch/internal/models"
)

type termKey struct {
	field string
	term  string
}

// MemoryIndex accumulates the postings and field norms of one build.
// Documents must be added in ascending id order; it is not safe for
// concurrent use.
type MemoryIndex struct {
	analyzer *analysis.Analyzer
	terms    map[termKey]PostingList
	norms    map[string][]uint32
	docCount int
}

// NewMemoryIndex returns an accumulator for docCount documents.
func NewMemoryIndex(analyzer *analysis.Analyzer, docCount int) *MemoryIndex {
	return &MemoryIndex{
		analyzer: analyzer,
		terms:    make(map[termKey]PostingList),
		norms:    make(map[string][]uint32),
		docCount: docCount,
	}
}

// AddDocument tokenizes every field of doc and appends one posting per
// (field, term). Repeated fields such as keywords share a posting.
func (m *MemoryIndex) AddDocument(doc *models.Document) {
	type fieldStats struct {
		freqs  map[string]int
		length int
	}
	perField := make(map[string]*fieldStats)
	var order []string
	for _, f := range doc.AllFields() {
		freqs, n := m.analyzer.Frequencies(f.Value)
		if f.Name == models.FieldPath && n == 0 {
			// A path made only of stop words still has to be findable.
			freqs, n = map[string]int{strings.ToLower(strings.ToValidUTF8(f.Value, "\uFFFD")): 1}, 1
		}
		fs, ok := perField[f.Name]
		if !ok {
			fs = &fieldStats{freqs: make(map[string]int)}
			perField[f.Name] = fs
			order = append(order, f.Name)
		}
		for t, c := range freqs {
			fs.freqs[t] += c
		}
		fs.length += n
	}

	for _, field := range order {
		fs := perField[field]
		norms, ok := m.norms[field]
		if !ok {
			norms = make([]uint32, m.docCount)
			m.norms[field] = norms
		}
		if int(doc.ID) < len(norms) {
			norms[doc.ID] = uint32(fs.length)
		}
		for term, freq := range fs.freqs {
			k := termKey{field: field, term: term}
			m.terms[k] = append(m.terms[k], Posting{DocID: doc.ID, Freq: uint32(freq)})
		}
	}
}

// Postings returns the accumulated list for (field, term), or nil.
func (m *MemoryIndex) Postings(field, term string) PostingList {
	return m.terms[termKey{field: field, term: term}]
}

// TermCount returns the number of distinct (field, term) pairs.
func (m *MemoryIndex) TermCount() int {
	return len(m.terms)
}

// DocCount returns the number of documents the index was sized for.
func (m *MemoryIndex) DocCount() int {
	return m.docCount
}

// Norms returns the per-field document lengths indexed by doc id.
func (m *MemoryIndex) Norms() map[string][]uint32 {
	return m.norms
}

// Snapshot returns every term sorted by (field, term).
func (m *MemoryIndex) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(m.terms))
	for k, pl := range m.terms {
		entries = append(entries, TermEntry{Field: k.field, Term: k.term, Postings: pl})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Field != entries[j].Field {
			return entries[i].Field < entries[j].Field
		}
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// IndexedDocs returns the set of doc ids that occur in at least one posting
// of any of the given fields.
func (m *MemoryIndex) IndexedDocs(fields ...string) map[uint32]struct{} {
	want := make(map[string]bool, len(fields))
	for _, f := range fields {
		want[f] = true
	}
	seen := make(map[uint32]struct{})
	for k, pl := range m.terms {
		if !want[k.field] {
			continue
		}
		for _, p := range pl {
			seen[p.DocID] = struct{}{}
		}
	}
	return seen
}

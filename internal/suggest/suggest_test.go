package suggest

import (
	"reflect"
	"sort"
	"testing"

	"github.com/hyperjump/docsearch/internal/analysis"
	"github.com/hyperjump/docsearch/internal/index"
	"github.com/hyperjump/docsearch/internal/models"
	"github.com/hyperjump/docsearch/internal/query"
)

type fakeDict map[string][]index.DictEntry

func (d fakeDict) FieldTerms(field string) []index.DictEntry { return d[field] }

func (d fakeDict) DocFreq(field, token string) int {
	for _, e := range d[field] {
		if e.Term == token {
			return e.DocFreq
		}
	}
	return 0
}

func entries(field string, freqs map[string]int) []index.DictEntry {
	out := make([]index.DictEntry, 0, len(freqs))
	for term, df := range freqs {
		out = append(out, index.DictEntry{Field: field, Term: term, DocFreq: df})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Term < out[j].Term })
	return out
}

func testDict() fakeDict {
	return fakeDict{
		models.FieldBody: entries(models.FieldBody, map[string]int{
			"act": 4, "apple": 3, "budget": 6, "cat": 1,
			"quarterly": 2, "repart": 1, "report": 5, "resort": 2,
		}),
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"abc", "abc", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"teh", "the", 1},
		{"ab", "ba", 1},
		{"ca", "abc", 3},
		{"héllo", "hello", 1},
	}
	for _, tt := range tests {
		if got := Distance(tt.a, tt.b); got != tt.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := Distance(tt.b, tt.a); got != tt.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", tt.b, tt.a, got, tt.want)
		}
	}
}

func terms(s []Suggestion) []string {
	out := make([]string, len(s))
	for i, x := range s {
		out[i] = x.Term
	}
	return out
}

func TestSuggest(t *testing.T) {
	s := New(analysis.MustNew())
	d := testDict()

	tests := []struct {
		name  string
		token string
		n     int
		want  []string
	}{
		{"ranked by distance then frequency", "reprot", 3, []string{"report", "resort", "repart"}},
		{"limit", "reprot", 1, []string{"report"}},
		{"short token allows one edit", "cta", 5, []string{"cat"}},
		{"exact match excluded", "report", 1, []string{"resort"}},
		{"nothing close", "zzzzzz", 5, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := terms(s.Suggest(d, models.FieldBody, tt.token, tt.n))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Suggest(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}

	if got := s.Suggest(d, models.FieldTitle, "reprot", 5); len(got) != 0 {
		t.Errorf("empty field suggested %v", got)
	}
}

func TestSuggest_options(t *testing.T) {
	d := testDict()

	s := New(analysis.MustNew(), WithMinFrequency(2))
	got := terms(s.Suggest(d, models.FieldBody, "reprot", 5))
	if want := []string{"report", "resort"}; !reflect.DeepEqual(got, want) {
		t.Errorf("min frequency 2: %v, want %v", got, want)
	}

	s = New(analysis.MustNew(), WithMaxDistance(1))
	got = terms(s.Suggest(d, models.FieldBody, "reprot", 5))
	if want := []string{"report"}; !reflect.DeepEqual(got, want) {
		t.Errorf("max distance 1: %v, want %v", got, want)
	}
}

func TestCorrect(t *testing.T) {
	s := New(analysis.MustNew())
	d := testDict()

	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"reprot AND budget", "report AND budget", true},
		{"reprot -budgte", "report OR NOT budgte", true},
		{`"quartely reprot"`, `"quarterly report"`, true},
		{"budget", "budget", false},
		{"zzzzzz", "zzzzzz", false},
		{"title:reprot", "title:reprot", false},
		{"the", "the", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			n, err := query.Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			fixed, ok := s.Correct(d, n)
			if ok != tt.ok {
				t.Errorf("ok = %v, want %v", ok, tt.ok)
			}
			if got := query.Format(fixed); got != tt.want {
				t.Errorf("Correct = %q, want %q", got, tt.want)
			}
		})
	}
}

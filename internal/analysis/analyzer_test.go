package analysis

import (
	"reflect"
	"testing"
	"unicode/utf8"
)

func TestTerms(t *testing.T) {
	a := MustNew()
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lower-cases", "Alpha BETA", []string{"alpha", "beta"}},
		{"splits punctuation", "alpha,beta;gamma", []string{"alpha", "beta", "gamma"}},
		{"drops stop words", "the alpha and the beta", []string{"alpha", "beta"}},
		{"keeps duplicates", "beta beta", []string{"beta", "beta"}},
		{"no stemming", "reports", []string{"reports"}},
		{"empty", "", nil},
		{"only punctuation", "--- !!!", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Terms(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Terms(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFrequencies(t *testing.T) {
	a := MustNew()
	freqs, length := a.Frequencies("beta gamma beta")
	if length != 3 {
		t.Errorf("length = %d, want 3", length)
	}
	if freqs["beta"] != 2 || freqs["gamma"] != 1 {
		t.Errorf("freqs = %v", freqs)
	}
}

func TestTerms_invalidUTF8(t *testing.T) {
	a := MustNew()
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"latin-1 body", "hello caf\xe9 world report", []string{"world", "report"}},
		{"latin-1 path", "/home/u/r\xe9sum\xe9/quarterly.txt", []string{"home", "quarterly.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Terms(tt.in)
			seen := make(map[string]bool, len(got))
			for _, term := range got {
				if !utf8.ValidString(term) {
					t.Errorf("term %q is not valid UTF-8", term)
				}
				seen[term] = true
			}
			for _, w := range tt.want {
				if !seen[w] {
					t.Errorf("Terms(%q) = %q, missing %q", tt.in, got, w)
				}
			}
		})
	}
}

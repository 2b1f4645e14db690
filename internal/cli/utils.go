// Package cli provides output helpers for the docsearch command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/docsearch/internal/models"
	"github.com/hyperjump/docsearch/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputPaths prints one result path per line (default).
	OutputPaths SearchOutputFormat = "paths"
	// OutputText is human-readable text with scores and stored fields.
	OutputText SearchOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (SearchOutputFormat, error) {
	switch f := SearchOutputFormat(strings.ToLower(s)); f {
	case OutputPaths, OutputText, OutputJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q; use paths, text, or json", s)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputText:
		writeSearchResultsText(w, response)
		return nil
	default:
		for _, hit := range response.Hits {
			if _, err := fmt.Fprintln(w, hit.Path); err != nil {
				return err
			}
		}
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms (showing %d from offset %d, generation %s)\n\n",
		response.Total, response.QueryTime, len(response.Hits), response.Offset, response.Generation)
	if response.Suggestion != "" {
		fmt.Fprintf(w, "Did you mean: %s\n\n", response.Suggestion)
	}
	for _, hit := range response.Hits {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | Doc: %d\n", hit.Rank, hit.Score, hit.DocID)
		fmt.Fprintf(w, "Path: %s\n", hit.Path)
		names := make([]string, 0, len(hit.Fields))
		for name := range hit.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "%s: %s\n", name, utils.Truncate(strings.Join(hit.Fields[name], ", "), 200))
		}
		fmt.Fprintln(w)
	}
}

// WriteIndexStats reports a finished build, listing files that were skipped.
func WriteIndexStats(w io.Writer, stats *models.IndexStats, format SearchOutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "Indexed %d document(s) from %s into %s (%d terms, %s)\n",
		stats.Documents, stats.Root, stats.Generation, stats.Terms, stats.Elapsed.Round(1e6))
	if stats.Failed > 0 {
		fmt.Fprintf(w, "Skipped %d file(s):\n", stats.Failed)
		for _, f := range stats.Failures {
			fmt.Fprintf(w, "  %s: %s\n", f.Path, f.Reason)
		}
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

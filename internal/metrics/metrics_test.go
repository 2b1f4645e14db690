package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func assertContains(t *testing.T, out string, lines ...string) {
	t.Helper()
	for _, l := range lines {
		if !strings.Contains(out, l) {
			t.Errorf("scrape output missing %q", l)
		}
	}
}

func TestMetrics_independentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a, b := New(), New()
	a.ObserveBuild(nil, 3, 10, 1, time.Second)
	assertContains(t, scrape(t, a), "docsearch_documents_indexed 3", "docsearch_index_terms 10")
	assertContains(t, scrape(t, b), "docsearch_documents_indexed 0")
}

func TestMetrics_observe(t *testing.T) {
	m := New()
	m.ObserveSearch("hit", true, 4, time.Millisecond)
	m.ObserveSearch("zero_result", false, 0, time.Millisecond)
	m.ObserveSearchError("syntax_error")
	m.ObserveBuild(errors.New("boom"), 0, 0, 2, time.Second)
	m.ObserveHTTP("POST", "/api/v1/search", 200, time.Millisecond)

	assertContains(t, scrape(t, m),
		"docsearch_window_cache_hits_total 1",
		"docsearch_window_cache_misses_total 1",
		`docsearch_search_queries_total{outcome="syntax_error"} 1`,
		`docsearch_index_builds_total{status="error"} 1`,
		"docsearch_extraction_failures_total 2",
		`docsearch_http_requests_total{method="POST",route="/api/v1/search",status="OK"} 1`,
	)
}

func TestMetrics_nilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSearch("hit", false, 1, time.Millisecond)
	m.ObserveSearchError("error")
	m.ObserveBuild(nil, 1, 1, 0, time.Second)
	m.ObserveHTTP("GET", "/health", 200, time.Millisecond)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("status = %d", rec.Code)
	}
}

package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/hyperjump/docsearch/internal/analysis"
	"github.com/hyperjump/docsearch/internal/config"
	"github.com/hyperjump/docsearch/internal/index"
	"github.com/hyperjump/docsearch/internal/indexer"
	"github.com/hyperjump/docsearch/internal/metrics"
	"github.com/hyperjump/docsearch/internal/models"
	"github.com/hyperjump/docsearch/internal/search"
)

type testServer struct {
	*Server
	root string
	http *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	root := t.TempDir()
	for name, body := range map[string]string{
		"a.txt": "alpha beta",
		"b.txt": "beta gamma",
	} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(body), 0600); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.Default()
	cfg.Storage.IndexPath = filepath.Join(t.TempDir(), "index")
	cfg.Index.Root = root

	h, err := index.Open(cfg.Storage.IndexPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close() })
	an := analysis.MustNew()
	m := metrics.New()
	eng, err := search.NewEngine(h, an, &cfg.Search, search.WithMetrics(m))
	if err != nil {
		t.Fatal(err)
	}
	idx := indexer.NewIndexer(h, an, nil, &cfg.Index, indexer.WithMetrics(m))

	srv := NewServer(eng, idx, h, cfg, m, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: srv, root: root, http: ts}
}

func (ts *testServer) post(t *testing.T, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(ts.http.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, out
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(ts.http.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, out
}

func TestHandleSearch_beforeIndex(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.post(t, "/api/v1/search", models.SearchRequest{Query: "alpha"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestHandleIndexThenSearch(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.post(t, "/api/v1/index", indexRequest{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("index status = %d: %s", resp.StatusCode, body)
	}
	var stats models.IndexStats
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 2 || stats.Root != ts.root {
		t.Errorf("stats = %+v", stats)
	}

	resp, body = ts.post(t, "/api/v1/search", models.SearchRequest{Query: "beta", Limit: 1, Offset: 1})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d: %s", resp.StatusCode, body)
	}
	var sr models.SearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(ts.root, "b.txt")}
	if got := sr.Paths(); len(got) != 1 || got[0] != want[0] {
		t.Errorf("paths = %v, want %v", got, want)
	}
	if sr.Total != 2 || sr.Hits[0].Rank != 2 {
		t.Errorf("total = %d, rank = %d", sr.Total, sr.Hits[0].Rank)
	}
}

func TestHandleSearch_suggestion(t *testing.T) {
	ts := newTestServer(t)
	if resp, body := ts.post(t, "/api/v1/index", indexRequest{}); resp.StatusCode != http.StatusOK {
		t.Fatalf("index status = %d: %s", resp.StatusCode, body)
	}
	resp, body := ts.post(t, "/api/v1/search", models.SearchRequest{Query: "zzzzzz"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d: %s", resp.StatusCode, body)
	}
	var sr models.SearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		t.Fatal(err)
	}
	if sr.Total != 0 || sr.Suggestion != "" {
		t.Errorf("total = %d, suggestion = %q", sr.Total, sr.Suggestion)
	}

	_, body = ts.post(t, "/api/v1/search", models.SearchRequest{Query: "gamam"})
	if err := json.Unmarshal(body, &sr); err != nil {
		t.Fatal(err)
	}
	if sr.Total != 0 || sr.Suggestion != "gamma" {
		t.Errorf("total = %d, suggestion = %q", sr.Total, sr.Suggestion)
	}
}

func TestHandleSearch_errors(t *testing.T) {
	ts := newTestServer(t)
	if resp, body := ts.post(t, "/api/v1/index", indexRequest{Path: ts.root}); resp.StatusCode != http.StatusOK {
		t.Fatalf("index status = %d: %s", resp.StatusCode, body)
	}

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"syntax", models.SearchRequest{Query: "field:"}, http.StatusBadRequest},
		{"empty", models.SearchRequest{Query: ""}, http.StatusBadRequest},
		{"negative offset", models.SearchRequest{Query: "alpha", Offset: -1}, http.StatusBadRequest},
		{"bad body", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.post(t, "/api/v1/search", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, tt.want, body)
			}
		})
	}

	_, body := ts.post(t, "/api/v1/search", models.SearchRequest{Query: "alpha AND"})
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		t.Fatal(err)
	}
	if er.Position == nil || er.Error == "" {
		t.Errorf("syntax error body = %s", body)
	}
}

func TestHandleIndex_errors(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.post(t, "/api/v1/index", indexRequest{Path: filepath.Join(ts.root, "missing")})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("missing root: status = %d", resp.StatusCode)
	}

	lock := flock.New(filepath.Join(ts.handle.Dir(), index.LockFileName))
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	defer lock.Unlock()
	resp, _ = ts.post(t, "/api/v1/index", indexRequest{Path: ts.root})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("locked: status = %d, want 409", resp.StatusCode)
	}
}

func TestHandleIndex_inProgress(t *testing.T) {
	ts := newTestServer(t)
	ts.building.Store(true)
	resp, _ := ts.post(t, "/api/v1/index", indexRequest{Path: ts.root})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestHandleStatus(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.get(t, "/api/v1/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out["generation"] != nil {
		t.Errorf("generation before build = %v", out["generation"])
	}

	ts.post(t, "/api/v1/index", indexRequest{})
	_, body = ts.get(t, "/api/v1/status")
	out = nil
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out["generation"] != ts.handle.CurrentID() || out["documents"] != float64(2) {
		t.Errorf("status = %v", out)
	}
	if n, _ := out["disk_usage_bytes"].(float64); n <= 0 {
		t.Errorf("disk_usage_bytes = %v", out["disk_usage_bytes"])
	}
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.get(t, "/health")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "ok") {
		t.Errorf("status = %d, body = %s", resp.StatusCode, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.post(t, "/api/v1/index", indexRequest{})
	ts.post(t, "/api/v1/search", models.SearchRequest{Query: "alpha"})

	resp, body := ts.get(t, "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, want := range []string{"docsearch_search_queries_total", "docsearch_http_requests_total", "/api/v1/search"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

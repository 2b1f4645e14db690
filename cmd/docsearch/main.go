// Package main is the docsearch CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docsearch/internal/analysis"
	"github.com/hyperjump/docsearch/internal/cli"
	"github.com/hyperjump/docsearch/internal/config"
	"github.com/hyperjump/docsearch/internal/index"
	"github.com/hyperjump/docsearch/internal/indexer"
	"github.com/hyperjump/docsearch/internal/metrics"
	"github.com/hyperjump/docsearch/internal/models"
	"github.com/hyperjump/docsearch/internal/query"
	"github.com/hyperjump/docsearch/internal/search"
	"github.com/hyperjump/docsearch/internal/server"
	"github.com/hyperjump/docsearch/internal/storage"
	"github.com/hyperjump/docsearch/internal/watcher"
	"github.com/hyperjump/docsearch/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/docsearch/config.yaml"

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// loadConfig loads config from path. When path is the default, config.yaml
// in the current directory wins if it exists, and a missing default file
// means built-in defaults. Returns the config and the path actually loaded
// ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitUsage
	}
	command, rest := args[0], args[1:]
	switch command {
	case "index":
		return runIndex(rest, stdout, stderr)
	case "search":
		return runSearch(rest, stdout, stderr)
	case "server":
		return runServer(rest, stderr)
	case "watch":
		return runWatch(rest, stdout, stderr)
	case "status":
		return runStatus(rest, stdout, stderr)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "docsearch version %s\n", version)
		return exitOK
	case "help", "--help", "-h":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return exitUsage
	}
}

// Components holds the wired application.
type Components struct {
	Config   *config.Config
	Logger   *zap.Logger
	Handle   *index.Handle
	Metrics  *metrics.Metrics
	Engine   *search.Engine
	Indexer  *indexer.Indexer
	Analyzer *analysis.Analyzer
}

// Close releases the index handle and flushes the logger.
func (c *Components) Close() {
	if c.Handle != nil {
		_ = c.Handle.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

func initializeComponents(cfg *config.Config, debug bool) (*Components, error) {
	logger, err := utils.NewLogger(cfg.Debug || debug, zap.String("version", version))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	analyzer, err := analysis.New()
	if err != nil {
		return nil, err
	}
	handle, err := index.Open(cfg.Storage.IndexPath, index.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	m := metrics.New()
	engine, err := search.NewEngine(handle, analyzer, &cfg.Search,
		search.WithLogger(logger), search.WithMetrics(m))
	if err != nil {
		handle.Close()
		return nil, err
	}
	idx := indexer.NewIndexer(handle, analyzer, nil, &cfg.Index,
		indexer.WithLogger(logger), indexer.WithMetrics(m))
	return &Components{
		Config:   cfg,
		Logger:   logger,
		Handle:   handle,
		Metrics:  m,
		Engine:   engine,
		Indexer:  idx,
		Analyzer: analyzer,
	}, nil
}

// setup loads config and wires components, reporting failures to stderr.
func setup(configPath string, debug bool, stderr io.Writer) (*Components, bool) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return nil, false
	}
	c, err := initializeComponents(cfg, debug)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize: %v\n", err)
		return nil, false
	}
	return c, true
}

func runIndex(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("index", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	outputFormat := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	c, ok := setup(*configPath, *debug, stderr)
	if !ok {
		return exitFailure
	}
	defer c.Close()

	root := c.Config.Index.Root
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}
	if root == "" {
		fmt.Fprintln(stderr, "Usage: docsearch index [flags] <rootPath>")
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	stats, err := c.Indexer.IndexDirectory(ctx, root)
	if err != nil {
		fmt.Fprintf(stderr, "Indexing failed: %v\n", err)
		return exitFailure
	}
	if err := cli.WriteIndexStats(stdout, stats, format); err != nil {
		fmt.Fprintf(stderr, "Output failed: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: docsearch search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Query syntax:
  words are OR'd; AND, OR and NOT (or a leading -) combine clauses
  field:word limits a word to a field (default field: body)
  "quoted text" requires every word; parentheses group clauses

Examples:
  docsearch search alpha
  docsearch search "quarterly report" AND NOT draft
  docsearch search title:budget keywords:finance
  docsearch search --limit 20 --offset 20 --output json report
`)
}

func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchFlags lists the search flags and whether each takes a value.
var searchFlags = map[string]bool{
	"config": true, "limit": true, "offset": true, "output": true, "server": true,
	"debug": false, "h": false, "help": false,
}

// searchArgsReorder moves flags given among the query words in front of
// them, keeping the words in order. Anything else starting with "-" is a
// negated query word such as "-draft".
func searchArgsReorder(args []string) []string {
	var flags, words []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		name := strings.TrimLeft(a, "-")
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			name = name[:eq]
		}
		takesValue, isFlag := searchFlags[name]
		if !strings.HasPrefix(a, "-") || !isFlag {
			words = append(words, a)
			continue
		}
		flags = append(flags, a)
		if takesValue && !strings.Contains(a, "=") && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	if len(words) == 0 {
		return flags
	}
	return append(append(flags, "--"), words...)
}

func runSearch(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	serverURL := fs.String("server", "", "server URL (empty = search the local index directly)")
	limit := fs.Int("limit", 0, "number of results (0 = configured default)")
	offset := fs.Int("offset", 0, "number of results to skip")
	outputFormat := fs.String("output", "paths", "output format: paths (one per line), text, or json")
	fs.Usage = func() { printSearchUsage(fs) }
	if err := fs.Parse(searchArgsReorder(args)); err != nil {
		return exitUsage
	}
	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		return exitUsage
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	req := &models.SearchRequest{Query: queryStr, Limit: *limit, Offset: *offset}

	var response *models.SearchResponse
	if *serverURL != "" {
		response, err = searchViaHTTP(*serverURL, req)
	} else {
		c, ok := setup(*configPath, *debug, stderr)
		if !ok {
			return exitFailure
		}
		defer c.Close()
		response, err = c.Engine.Search(context.Background(), req)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Search failed: %v\n", err)
		var syn *query.SyntaxError
		var he *httpError
		switch {
		case errors.As(err, &syn), errors.Is(err, search.ErrInvalidRequest):
			return exitUsage
		case errors.As(err, &he) && he.Status == http.StatusBadRequest:
			return exitUsage
		case errors.Is(err, index.ErrNoGeneration):
			fmt.Fprintln(stderr, "Run \"docsearch index <rootPath>\" first.")
		}
		return exitFailure
	}
	if err := cli.WriteSearchResults(stdout, response, format); err != nil {
		fmt.Fprintf(stderr, "Output failed: %v\n", err)
		return exitFailure
	}
	if format == cli.OutputPaths && response.Suggestion != "" {
		fmt.Fprintf(stderr, "No matches. Did you mean: %s\n", response.Suggestion)
	}
	return exitOK
}

// httpError is a non-200 answer from the server.
type httpError struct {
	Status  int
	Message string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func readHTTPError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	b, _ := io.ReadAll(resp.Body)
	msg := strings.TrimSpace(string(b))
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &httpError{Status: resp.StatusCode, Message: msg}
}

func searchViaHTTP(serverURL string, req *models.SearchRequest) (*models.SearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, readHTTPError(resp)
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runServer(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	c, ok := setup(*configPath, *debug, stderr)
	if !ok {
		return exitFailure
	}
	defer c.Close()
	logger := c.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Config.Watch.Enabled && c.Config.Index.Root != "" {
		w := newRebuildWatcher(c, c.Config.Index.Root)
		if err := w.Start(ctx); err != nil {
			logger.Error("Failed to start watcher", zap.Error(err))
			return exitFailure
		}
		defer w.Stop()
	}

	srv := server.NewServer(c.Engine, c.Indexer, c.Handle, c.Config, c.Metrics, logger)
	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", zap.Error(err))
			return exitFailure
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
	return exitOK
}

func newRebuildWatcher(c *Components, root string) *watcher.Watcher {
	rebuild := func(ctx context.Context) error {
		stats, err := c.Indexer.IndexDirectory(ctx, root)
		if err != nil {
			return err
		}
		c.Logger.Info("Rebuilt index",
			zap.String("generation", stats.Generation),
			zap.Int("documents", stats.Documents),
			zap.Int("failed", stats.Failed))
		return nil
	}
	return watcher.NewWatcher(root, c.Config.Index.Extensions, rebuild,
		watcher.WithLogger(c.Logger),
		watcher.WithDebounce(c.Config.Watch.Debounce),
		watcher.WithIgnore(c.Handle.Dir()))
}

func runWatch(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	c, ok := setup(*configPath, *debug, stderr)
	if !ok {
		return exitFailure
	}
	defer c.Close()

	root := c.Config.Index.Root
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}
	if root == "" {
		fmt.Fprintln(stderr, "Usage: docsearch watch [flags] <rootPath>")
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := c.Indexer.IndexDirectory(ctx, root)
	if err != nil {
		fmt.Fprintf(stderr, "Indexing failed: %v\n", err)
		return exitFailure
	}
	_ = cli.WriteIndexStats(stdout, stats, cli.OutputText)

	w := newRebuildWatcher(c, root)
	if err := w.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "Failed to start watcher: %v\n", err)
		return exitFailure
	}
	defer w.Stop()
	fmt.Fprintf(stdout, "Watching %s for changes (Ctrl+C to stop)\n", w.Root())
	<-ctx.Done()
	return exitOK
}

// statusResponse mirrors GET /api/v1/status.
type statusResponse struct {
	IndexPath      string                 `json:"index_path"`
	Root           string                 `json:"root,omitempty"`
	Generation     *string                `json:"generation"`
	Documents      int                    `json:"documents,omitempty"`
	Terms          int                    `json:"terms,omitempty"`
	CreatedAt      *time.Time             `json:"created_at,omitempty"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read the local index directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	var status *statusResponse
	var err error
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		c, ok := setup(*configPath, false, stderr)
		if !ok {
			return exitFailure
		}
		defer c.Close()
		status, err = localStatus(c)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Status failed: %v\n", err)
		return exitFailure
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(stderr, "Output failed: %v\n", err)
			return exitFailure
		}
	case "text":
		writeStatusText(stdout, status)
	default:
		fmt.Fprintf(stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		return exitUsage
	}
	return exitOK
}

func localStatus(c *Components) (*statusResponse, error) {
	status := &statusResponse{IndexPath: c.Handle.Dir(), Root: c.Config.Index.Root}
	gen, err := c.Handle.Acquire()
	switch {
	case errors.Is(err, index.ErrNoGeneration):
	case err != nil:
		return nil, err
	default:
		defer gen.Release()
		id := gen.ID()
		created := gen.CreatedAt()
		status.Generation = &id
		status.Documents = gen.DocCount()
		status.Terms = gen.TermCount()
		status.CreatedAt = &created
	}
	if n, err := storage.DiskUsageBytes(c.Handle.Dir()); err == nil {
		status.DiskUsageBytes = &n
	}
	return status, nil
}

func writeStatusText(w io.Writer, s *statusResponse) {
	fmt.Fprintf(w, "index_path:        %s\n", s.IndexPath)
	if s.Root != "" {
		fmt.Fprintf(w, "root:              %s\n", s.Root)
	}
	if s.Generation == nil {
		fmt.Fprintf(w, "generation:        none   # run \"docsearch index\" first\n")
	} else {
		fmt.Fprintf(w, "generation:        %s\n", *s.Generation)
		fmt.Fprintf(w, "documents:         %d\n", s.Documents)
		fmt.Fprintf(w, "terms:             %d\n", s.Terms)
		if s.CreatedAt != nil {
			fmt.Fprintf(w, "created_at:        %s\n", s.CreatedAt.Format(time.RFC3339))
		}
	}
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:  %d\n", *s.DiskUsageBytes)
	}
	if len(s.Config) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		keys := make([]string, 0, len(s.Config))
		for k := range s.Config {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%-18s %v\n", k+":", s.Config[k])
		}
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, readHTTPError(resp)
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `docsearch - keyword search over a directory of documents

Usage:
  docsearch index [--config path] [--output text|json] [<rootPath>]
  docsearch search [--config path] [--limit n] [--offset n] [--output paths|text|json] [--server url] <query...>
  docsearch server [--config path] [--debug]
  docsearch watch [--config path] [<rootPath>]
  docsearch status [--config path] [--server url] [--output text|json]
  docsearch version
  docsearch help

Exit codes: 0 success (including zero hits), 1 I/O or index failure,
2 usage or query syntax error.
`)
}

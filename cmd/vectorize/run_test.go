package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/vectorize/internal/config"
	"github.com/nao1215/vectorize/internal/model"
	"github.com/nao1215/vectorize/internal/pipeline"
	"github.com/nao1215/vectorize/internal/session"
)

// TestNewRunCmd tests the run command creation.
func TestNewRunCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRunCmd()

	t.Run("requires one argument", func(t *testing.T) {
		t.Parallel()
		if err := cmd.Args(cmd, []string{}); err == nil {
			t.Error("expected error without a URL")
		}
		if err := cmd.Args(cmd, []string{"https://example.com/"}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	flags := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"max-pages", "p", "20"},
		{"same-domain", "", "true"},
		{"delay", "", "1s"},
		{"timeout", "t", "10s"},
		{"extractor", "", "text"},
		{"provider", "", "gemini"},
		{"method", "", "both"},
		{"dims", "", "both"},
		{"no-jitter", "", "false"},
		{"config", "c", ""},
		{"json", "j", "false"},
		{"markdown", "m", "false"},
		{"csv", "", "false"},
		{"output", "o", ""},
		{"html", "", ""},
	}
	for _, tt := range flags {
		t.Run("has "+tt.name+" flag", func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

// writeConfigFile writes a config file into a temporary directory.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".vectorize")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const testConfigFile = `
defaults:
  maxPages: 50
  delay: 2s
  extractor: readability
sites:
  docs.example.com:
    maxPages: 7
    headers:
      Cookie: "session=abc"
embedding:
  provider: gemini
  model: text-embedding-004
`

// TestBuildRunConfig tests layering of defaults, file and flags.
func TestBuildRunConfig(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, testConfigFile)

	tests := []struct {
		name   string
		args   []string
		target string
		check  func(t *testing.T, cfg *config.Config)
	}{
		{
			name:   "site entry overrides defaults",
			args:   []string{"-c", path},
			target: "https://docs.example.com/start",
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.MaxPages != 7 {
					t.Errorf("expected 7 pages, got %d", cfg.MaxPages)
				}
				if cfg.CrawlDelay != 2*time.Second {
					t.Errorf("expected 2s delay, got %s", cfg.CrawlDelay)
				}
				if cfg.Headers["Cookie"] != "session=abc" {
					t.Errorf("expected site cookie, got %v", cfg.Headers)
				}
				if cfg.EmbeddingModel != "text-embedding-004" {
					t.Errorf("expected model from file, got %q", cfg.EmbeddingModel)
				}
			},
		},
		{
			name:   "other hosts get defaults",
			args:   []string{"-c", path},
			target: "https://blog.example.com/",
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.MaxPages != 50 {
					t.Errorf("expected 50 pages, got %d", cfg.MaxPages)
				}
				if cfg.Extractor != config.ExtractorReadability {
					t.Errorf("expected readability, got %q", cfg.Extractor)
				}
			},
		},
		{
			name:   "explicit flags win over file",
			args:   []string{"-c", path, "-p", "3", "--delay", "0s", "--extractor", "text", "--same-domain=false"},
			target: "https://docs.example.com/",
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.MaxPages != 3 {
					t.Errorf("expected 3 pages, got %d", cfg.MaxPages)
				}
				if cfg.CrawlDelay != 0 {
					t.Errorf("expected no delay, got %s", cfg.CrawlDelay)
				}
				if cfg.Extractor != config.ExtractorText {
					t.Errorf("expected text extractor, got %q", cfg.Extractor)
				}
				if cfg.SameDomainOnly {
					t.Error("expected same-domain disabled")
				}
			},
		},
		{
			name:   "selectors and report flags",
			args:   []string{"-c", path, "--method", "pca", "--dims", "3", "--no-jitter", "--csv", "-o", "./out/pages.csv"},
			target: "https://example.com/",
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Method != config.MethodPCA || cfg.Dims != config.Dims3D {
					t.Errorf("unexpected selectors %q %q", cfg.Method, cfg.Dims)
				}
				if cfg.Jitter {
					t.Error("expected jitter disabled")
				}
				if !cfg.CSVReport {
					t.Error("expected CSV report")
				}
				if cfg.ReportFile != "./out/pages.csv" {
					t.Errorf("expected path kept, got %q", cfg.ReportFile)
				}
			},
		},
		{
			name:   "bare html name goes to data directory",
			args:   []string{"-c", path, "--html", "plot.html"},
			target: "https://example.com/",
			check: func(t *testing.T, cfg *config.Config) {
				want := filepath.Join(config.XDGDataDir(), "plot.html")
				if cfg.HTMLFile != want {
					t.Errorf("expected %q, got %q", want, cfg.HTMLFile)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewRunCmd()
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("failed to parse flags: %v", err)
			}
			cfg, err := buildRunConfig(cmd, []string{tt.target})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Target != tt.target {
				t.Errorf("expected target %q, got %q", tt.target, cfg.Target)
			}
			tt.check(t, cfg)
		})
	}

	t.Run("missing explicit config is an error", func(t *testing.T) {
		t.Parallel()

		cmd := NewRunCmd()
		missing := filepath.Join(t.TempDir(), "missing.yaml")
		if err := cmd.ParseFlags([]string{"-c", missing}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		_, err := buildRunConfig(cmd, []string{"https://example.com/"})
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})
}

// TestBuildRunConfig_Environment tests that the environment sits between
// the file and the flags.
func TestBuildRunConfig_Environment(t *testing.T) {
	path := writeConfigFile(t, testConfigFile)
	t.Setenv("VECTORIZE_PROVIDER", "tei")
	t.Setenv("VECTORIZE_TEI_URL", "http://localhost:8081")

	t.Run("environment overrides file", func(t *testing.T) {
		cmd := NewRunCmd()
		if err := cmd.ParseFlags([]string{"-c", path}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		cfg, err := buildRunConfig(cmd, []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Provider != config.ProviderTEI {
			t.Errorf("expected tei, got %q", cfg.Provider)
		}
		if cfg.TEIURL != "http://localhost:8081" {
			t.Errorf("unexpected TEI URL %q", cfg.TEIURL)
		}
	})

	t.Run("flag overrides environment", func(t *testing.T) {
		cmd := NewRunCmd()
		if err := cmd.ParseFlags([]string{"-c", path, "--provider", "gemini"}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		cfg, err := buildRunConfig(cmd, []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Provider != config.ProviderGemini {
			t.Errorf("expected gemini, got %q", cfg.Provider)
		}
	})
}

// TestResolveOutputPath tests placement of bare file names.
func TestResolveOutputPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"", ""},
		{"plot.html", filepath.Join(config.XDGDataDir(), "plot.html")},
		{"./plot.html", "./plot.html"},
		{filepath.Join("out", "pages.json"), filepath.Join("out", "pages.json")},
	}
	for _, tt := range tests {
		if got := resolveOutputPath(tt.path); got != tt.want {
			t.Errorf("resolveOutputPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

// newTestSite serves three linked HTML pages.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"/":     `<html><head><title>Home</title></head><body><p>Welcome to the test site.</p><a href="/docs">Docs</a> <a href="/blog">Blog</a></body></html>`,
		"/docs": `<html><head><title>Docs</title></head><body><p>Installation and configuration guide for the tool.</p><a href="/">Home</a></body></html>`,
		"/blog": `<html><head><title>Blog</title></head><body><p>Release notes, stories and announcements.</p></body></html>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newTestTEI answers /embed with a vector derived from each input.
func newTestTEI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Inputs []string `json:"inputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := make([][]float32, len(req.Inputs))
		for i, in := range req.Inputs {
			out[i] = []float32{float32(len(in)), float32(strings.Count(in, "e")), float32(in[0]), 1}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestRunVectorize runs a whole crawl against local servers.
func TestRunVectorize(t *testing.T) {
	t.Parallel()

	site := newTestSite(t)
	tei := newTestTEI(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	newConfig := func() *config.Config {
		cfg := config.NewConfig()
		cfg.Target = site.URL + "/"
		cfg.CrawlDelay = 0
		cfg.Provider = config.ProviderTEI
		cfg.TEIURL = tei.URL
		cfg.EmbeddingDimensions = 4
		return cfg
	}

	t.Run("writes JSON report and plot page", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		cfg := newConfig()
		cfg.Method = config.MethodPCA
		cfg.Dims = config.Dims2D
		cfg.JSONReport = true
		cfg.ReportFile = filepath.Join(dir, "reports", "pages.json")
		cfg.HTMLFile = filepath.Join(dir, "plot.html")

		var stdout, progress bytes.Buffer
		if err := runVectorize(t.Context(), cfg, logger, &stdout, &progress); err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, progress.String())
		}
		if stdout.Len() != 0 {
			t.Errorf("expected nothing on stdout, got %q", stdout.String())
		}

		data, err := os.ReadFile(cfg.ReportFile)
		if err != nil {
			t.Fatalf("report not written: %v", err)
		}
		var resp struct {
			Status string `json:"status"`
			Data   []struct {
				URL   string `json:"url"`
				Title string `json:"title"`
			} `json:"data"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(resp.Data) != 3 {
			t.Fatalf("expected 3 pages, got %d", len(resp.Data))
		}
		if resp.Data[0].Title != "Home" {
			t.Errorf("expected seed first, got %q", resp.Data[0].Title)
		}

		info, err := os.Stat(cfg.ReportFile)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("expected 0600, got %o", perm)
		}

		page, err := os.ReadFile(cfg.HTMLFile)
		if err != nil {
			t.Fatalf("plot page not written: %v", err)
		}
		if !strings.Contains(string(page), "Website Content Embeddings (PCA)") {
			t.Error("expected PCA figure title in plot page")
		}

		for _, want := range []string{"Crawling [", "Embedded 3 pages", "Plot written to"} {
			if !strings.Contains(progress.String(), want) {
				t.Errorf("expected %q in progress output:\n%s", want, progress.String())
			}
		}
	})

	t.Run("default report goes to stdout", func(t *testing.T) {
		t.Parallel()

		cfg := newConfig()
		cfg.Method = config.MethodPCA
		cfg.Dims = config.Dims2D

		var stdout, progress bytes.Buffer
		if err := runVectorize(t.Context(), cfg, logger, &stdout, &progress); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout.String(), "WEBSITE CONTENT EMBEDDINGS") {
			t.Errorf("expected simple report on stdout:\n%s", stdout.String())
		}
	})

	t.Run("unreachable seed fails", func(t *testing.T) {
		t.Parallel()

		cfg := newConfig()
		cfg.Target = site.URL + "/missing"

		var stdout, progress bytes.Buffer
		err := runVectorize(t.Context(), cfg, logger, &stdout, &progress)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), errNothingCrawled.Error()) {
			t.Errorf("expected %v, got %v", errNothingCrawled, err)
		}
	})

	t.Run("invalid seed fails before crawling", func(t *testing.T) {
		t.Parallel()

		cfg := newConfig()
		cfg.Target = "ftp://example.com/"

		var stdout, progress bytes.Buffer
		if err := runVectorize(t.Context(), cfg, logger, &stdout, &progress); err == nil {
			t.Fatal("expected error")
		}
		if progress.Len() != 0 {
			t.Errorf("expected no progress output, got %q", progress.String())
		}
	})
}

// interruptStep stores records and then cancels the run, like a Ctrl-C
// arriving mid-crawl.
type interruptStep struct {
	records []*model.PageRecord
	cancel  context.CancelFunc
}

func (s *interruptStep) Name() string { return "crawl" }

func (s *interruptStep) Do(ctx context.Context, run *session.Run) error {
	run.Records = s.records
	s.cancel()
	return ctx.Err()
}

// TestExecute_Cancelled tests that an interrupted run still writes its report.
func TestExecute_Cancelled(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("reports crawled pages before returning", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		cfg := config.NewConfig()
		cfg.Target = "https://example.com/"
		cfg.JSONReport = true
		cfg.ReportFile = filepath.Join(dir, "pages.json")
		cfg.HTMLFile = filepath.Join(dir, "plot.html")

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()
		step := &interruptStep{
			records: []*model.PageRecord{
				model.NewPageRecord("https://example.com/", "Home", "welcome"),
				model.NewPageRecord("https://example.com/a", "A", "first page"),
			},
			cancel: cancel,
		}

		var stdout, progress bytes.Buffer
		err := execute(ctx, cfg, logger, &stdout, &progress, []pipeline.Step{step})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}

		data, err := os.ReadFile(cfg.ReportFile)
		if err != nil {
			t.Fatalf("report not written: %v", err)
		}
		for _, want := range []string{"https://example.com/", "https://example.com/a"} {
			if !strings.Contains(string(data), want) {
				t.Errorf("expected %q in report:\n%s", want, data)
			}
		}
		if _, err := os.Stat(cfg.HTMLFile); !os.IsNotExist(err) {
			t.Errorf("expected no plot page after interruption, got %v", err)
		}
		if !strings.Contains(progress.String(), "Interrupted: reporting 2 crawled pages") {
			t.Errorf("expected interruption notice, got %q", progress.String())
		}
	})

	t.Run("nothing crawled writes no report", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Target = "https://example.com/"

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()
		step := &interruptStep{cancel: cancel}

		var stdout, progress bytes.Buffer
		err := execute(ctx, cfg, logger, &stdout, &progress, []pipeline.Step{step})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if stdout.Len() != 0 {
			t.Errorf("expected no report, got %q", stdout.String())
		}
	})
}

// TestProgressPrinter tests the terminal progress lines.
func TestProgressPrinter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := &progressPrinter{w: &buf, maxPages: 5}
	p.PageStarted("https://example.com/", 1)
	p.PageFailed("https://example.com/x", fmt.Errorf("status 404"))
	p.CrawlFinished(1)

	want := "Crawling [1/5] https://example.com/\n  skipped https://example.com/x: status 404\nCrawled 1 pages\n"
	if buf.String() != want {
		t.Errorf("unexpected output:\n%q\nwant\n%q", buf.String(), want)
	}
}

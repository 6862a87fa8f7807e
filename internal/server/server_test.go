package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/vectorize/internal/model"
	"github.com/nao1215/vectorize/internal/monitoring"
	"github.com/nao1215/vectorize/internal/pipeline"
	"github.com/nao1215/vectorize/internal/reduce"
	"github.com/nao1215/vectorize/internal/session"
)

// fakeCrawler returns n pages under the seed, after waiting on gate if set.
type fakeCrawler struct {
	n        int
	gate     chan struct{}
	started  chan struct{}
	maxPages int
}

func (f *fakeCrawler) Crawl(ctx context.Context, seed string) ([]*model.PageRecord, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	out := make([]*model.PageRecord, 0, f.n)
	for i := range min(f.n, f.maxPages) {
		out = append(out, model.NewPageRecord(
			fmt.Sprintf("%spage%d", seed, i),
			fmt.Sprintf("Page %d", i),
			strings.Repeat("word ", 10+i),
		))
	}
	return out, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedMany(_ context.Context, records []*model.PageRecord) ([]*model.PageRecord, error) {
	out := make([]*model.PageRecord, 0, len(records))
	for i, r := range records {
		e := *r
		e.Vector = []float32{float32(i), float32(i * i), float32(i % 2), 1}
		out = append(out, &e)
	}
	return out, nil
}

type testServer struct {
	*httptest.Server
	crawler *fakeCrawler
	metrics *monitoring.Metrics
}

func newTestServer(t *testing.T, pages int) *testServer {
	t.Helper()

	fc := &fakeCrawler{n: pages}
	metrics := monitoring.NewMetrics()
	store := session.NewStore(time.Hour, session.WithHooks(metrics.SessionOpened, metrics.SessionClosed))
	srv := New(store,
		func(_ string, maxPages int, _ bool) pipeline.Crawler {
			fc.maxPages = maxPages
			return fc
		},
		fakeEmbedder{},
		reduce.NewReducer(reduce.DefaultOptions()),
		WithMetrics(metrics),
		WithMaxPages(20, 100),
	)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, crawler: fc, metrics: metrics}
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), method, ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(data)
}

func (ts *testServer) createSession(t *testing.T) string {
	t.Helper()

	resp, body := ts.do(t, http.MethodPost, "/api/sessions", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: status %d: %s", resp.StatusCode, body)
	}
	var sr SessionResponse
	if err := json.Unmarshal([]byte(body), &sr); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return sr.SessionID
}

func TestServer_FullFlow(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 6)
	id := ts.createSession(t)
	base := "/api/sessions/" + id

	resp, body := ts.do(t, http.MethodPost, base+"/crawl", `{"url":"https://example.com/","max_pages":5}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("crawl: status %d: %s", resp.StatusCode, body)
	}
	var cr CrawlResponse
	if err := json.Unmarshal([]byte(body), &cr); err != nil || cr.Pages != 5 || cr.Status != "success" {
		t.Fatalf("unexpected crawl response %s (%v)", body, err)
	}
	if ts.crawler.maxPages != 5 {
		t.Errorf("expected max_pages passed through, got %d", ts.crawler.maxPages)
	}

	resp, body = ts.do(t, http.MethodPost, base+"/vectorize", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("vectorize: status %d: %s", resp.StatusCode, body)
	}
	var vr VectorizeResponse
	if err := json.Unmarshal([]byte(body), &vr); err != nil || vr.Embedded != 5 || vr.Degraded != 0 {
		t.Fatalf("unexpected vectorize response %s (%v)", body, err)
	}

	resp, body = ts.do(t, http.MethodGet, base+"/visualize", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("visualize: status %d: %s", resp.StatusCode, body)
	}
	var vis struct {
		Status  string `json:"status"`
		Figures map[string]struct {
			Title  string `json:"title"`
			Method string `json:"method"`
			Points []struct {
				URL string `json:"url"`
			} `json:"points"`
		} `json:"figures"`
	}
	if err := json.Unmarshal([]byte(body), &vis); err != nil {
		t.Fatalf("decode figures: %v", err)
	}
	for _, key := range []string{"pca_2d", "pca_3d", "umap_2d", "umap_3d"} {
		fig, ok := vis.Figures[key]
		if !ok {
			t.Errorf("missing figure %s", key)
			continue
		}
		if len(fig.Points) != 5 {
			t.Errorf("%s: expected 5 points, got %d", key, len(fig.Points))
		}
	}
	if vis.Figures["umap_2d"].Method != "umap" {
		t.Errorf("expected UMAP for 5 pages, got %s", vis.Figures["umap_2d"].Method)
	}

	resp, body = ts.do(t, http.MethodGet, base+"/export", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export: status %d: %s", resp.StatusCode, body)
	}
	var export struct {
		Status string            `json:"status"`
		Data   []model.ExportRow `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &export); err != nil || export.Status != "success" || len(export.Data) != 5 {
		t.Fatalf("unexpected export %s (%v)", body, err)
	}
	if export.Data[0].URL != "https://example.com/page0" {
		t.Errorf("unexpected first row %+v", export.Data[0])
	}

	resp, body = ts.do(t, http.MethodGet, base+"/export?format=csv", "")
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(body, "url,title,content_preview") {
		t.Errorf("unexpected CSV export %d: %s", resp.StatusCode, body)
	}

	resp, body = ts.do(t, http.MethodGet, base+"/export?format=markdown", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "# Website Content Embeddings") {
		t.Errorf("unexpected Markdown export %d: %s", resp.StatusCode, body)
	}

	resp, body = ts.do(t, http.MethodGet, base+"/plot", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("plot: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.Contains(body, "Website Content Embeddings (UMAP)") {
		t.Error("expected UMAP figure title in page")
	}

	resp, _ = ts.do(t, http.MethodDelete, base, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp, _ = ts.do(t, http.MethodGet, base+"/export", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestServer_Errors(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 3)
	id := ts.createSession(t)
	base := "/api/sessions/" + id

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown session", http.MethodPost, "/api/sessions/00000000-0000-0000-0000-000000000000/crawl", `{"url":"https://example.com/"}`, http.StatusNotFound},
		{"malformed session id", http.MethodGet, "/api/sessions/nope/export", "", http.StatusNotFound},
		{"invalid body", http.MethodPost, base + "/crawl", `{`, http.StatusBadRequest},
		{"missing url", http.MethodPost, base + "/crawl", `{}`, http.StatusBadRequest},
		{"unsupported scheme", http.MethodPost, base + "/crawl", `{"url":"ftp://example.com/"}`, http.StatusBadRequest},
		{"zero max pages", http.MethodPost, base + "/crawl", `{"url":"https://example.com/","max_pages":0}`, http.StatusBadRequest},
		{"too many pages", http.MethodPost, base + "/crawl", `{"url":"https://example.com/","max_pages":1000}`, http.StatusBadRequest},
		{"vectorize before crawl", http.MethodPost, base + "/vectorize", "", http.StatusConflict},
		{"visualize before crawl", http.MethodGet, base + "/visualize", "", http.StatusConflict},
		{"export before crawl", http.MethodGet, base + "/export", "", http.StatusConflict},
		{"delete unknown session", http.MethodDelete, "/api/sessions/00000000-0000-0000-0000-000000000000", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		resp, body := ts.do(t, tt.method, tt.path, tt.body)
		if resp.StatusCode != tt.want {
			t.Errorf("%s: expected %d, got %d: %s", tt.name, tt.want, resp.StatusCode, body)
		}
		if !strings.Contains(body, `"status":"error"`) && resp.StatusCode >= 400 {
			t.Errorf("%s: expected error envelope, got %s", tt.name, body)
		}
	}

	if resp, _ := ts.do(t, http.MethodPost, base+"/crawl", `{"url":"https://example.com/"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("crawl: status %d", resp.StatusCode)
	}
	if resp, body := ts.do(t, http.MethodGet, base+"/visualize", ""); resp.StatusCode != http.StatusConflict {
		t.Errorf("visualize before vectorize: expected 409, got %d: %s", resp.StatusCode, body)
	}
	if resp, _ := ts.do(t, http.MethodGet, base+"/export?format=xml", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown format: expected 400, got %d", resp.StatusCode)
	}
}

func TestServer_BusySession(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 2)
	ts.crawler.gate = make(chan struct{})
	ts.crawler.started = make(chan struct{})
	id := ts.createSession(t)
	base := "/api/sessions/" + id

	done := make(chan int)
	go func() {
		resp, err := ts.Client().Post(ts.URL+base+"/crawl", "application/json", strings.NewReader(`{"url":"https://example.com/"}`))
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()
	<-ts.crawler.started

	if resp, _ := ts.do(t, http.MethodPost, base+"/vectorize", ""); resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 while crawling, got %d", resp.StatusCode)
	}

	close(ts.crawler.gate)
	if code := <-done; code != http.StatusOK {
		t.Errorf("expected crawl to finish with 200, got %d", code)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, 1)
	resp, body := ts.do(t, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"ok"`) {
		t.Errorf("unexpected health response %d: %s", resp.StatusCode, body)
	}

	ts.createSession(t)
	_, body = ts.do(t, http.MethodGet, "/metrics", "")
	for _, want := range []string{
		"vectorize_sessions_active 1",
		`route="/healthz"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics", want)
		}
	}
}

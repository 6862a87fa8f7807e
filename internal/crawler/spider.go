package crawler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/vectorize/internal/model"
)

// Default crawl limits.
const (
	DefaultMaxPages    = 20
	DefaultDelay       = 1 * time.Second
	DefaultTimeout     = 10 * time.Second
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB
	DefaultUserAgent   = "vectorize/1.0"
)

// Observer receives crawl progress. All methods are called from the
// goroutine running Crawl. A nil Observer is allowed.
type Observer interface {
	// PageStarted is called before each fetch with the number of URLs
	// visited so far, including this one.
	PageStarted(pageURL string, visited int)

	// PageFailed is called when a URL is skipped.
	PageFailed(pageURL string, err error)

	// CrawlFinished is called once with the number of records returned.
	CrawlFinished(pages int)
}

// Spider crawls a website breadth-first and returns one model.PageRecord
// per usable page.
//
// A Spider only holds configuration. Frontier, visited set and records are
// created by each Crawl call, so a Spider can run several crawls
// concurrently without them seeing each other's state.
type Spider struct {
	client *http.Client

	// maxPages bounds the number of URLs visited, including failed ones
	// and redirect targets.
	maxPages int

	// sameDomainOnly restricts candidates to the seed's host.
	sameDomainOnly bool

	// delay is the flat politeness interval between fetches.
	delay time.Duration

	timeout     time.Duration
	userAgent   string
	headers     map[string]string
	maxBodySize int64
	extractor   Extractor

	// ignorePatterns are URL path globs never enqueued, e.g. "*.pdf".
	ignorePatterns []string

	observer Observer
	logger   *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxPages sets the crawl budget.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithSameDomainOnly restricts the crawl to the seed's host.
func WithSameDomainOnly(same bool) SpiderOption {
	return func(s *Spider) {
		s.sameDomainOnly = same
	}
}

// WithDelay sets the delay between requests. Zero disables it.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.timeout = d
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) SpiderOption {
	return func(s *Spider) {
		s.userAgent = ua
	}
}

// WithHeaders sets extra request headers.
func WithHeaders(headers map[string]string) SpiderOption {
	return func(s *Spider) {
		s.headers = headers
	}
}

// WithMaxBodySize sets the maximum response body size.
func WithMaxBodySize(size int64) SpiderOption {
	return func(s *Spider) {
		s.maxBodySize = size
	}
}

// WithExtractor selects the text extractor.
func WithExtractor(e Extractor) SpiderOption {
	return func(s *Spider) {
		s.extractor = e
	}
}

// WithIgnorePatterns sets URL path patterns that are never enqueued.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithObserver sets the progress observer.
func WithObserver(o Observer) SpiderOption {
	return func(s *Spider) {
		s.observer = o
	}
}

// WithLogger sets the logger. Fetch failures are logged at Warn.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider. A nil client means http.DefaultClient.
func NewSpider(client *http.Client, opts ...SpiderOption) *Spider {
	s := &Spider{
		client:         client,
		maxPages:       DefaultMaxPages,
		sameDomainOnly: true,
		delay:          DefaultDelay,
		timeout:        DefaultTimeout,
		userAgent:      DefaultUserAgent,
		maxBodySize:    DefaultMaxBodySize,
		extractor:      ExtractText,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxPages < 1 {
		s.maxPages = 1
	}

	return s
}

// ParseSeed validates a seed URL: it must be absolute http or https with a host.
func ParseSeed(seedURL string) (*url.URL, error) {
	if strings.TrimSpace(seedURL) == "" {
		return nil, &InvalidSeedError{URL: seedURL, Reason: "empty"}
	}
	u, err := url.Parse(strings.TrimSpace(seedURL))
	if err != nil {
		return nil, &InvalidSeedError{URL: seedURL, Reason: err.Error()}
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, &InvalidSeedError{URL: seedURL, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return nil, &InvalidSeedError{URL: seedURL, Reason: "missing host"}
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u, nil
}

// errAlreadyVisited reports a redirect to a page the crawl already has.
var errAlreadyVisited = errors.New("redirect target already visited")

// crawlState is the per-Crawl frontier, visited set and output.
// Invariant: a URL key is never in queued and visited at the same time.
type crawlState struct {
	frontier []string
	queued   map[string]struct{}
	visited  map[string]struct{}
	records  []*model.PageRecord
}

func newCrawlState(seed string) *crawlState {
	return &crawlState{
		frontier: []string{seed},
		queued:   map[string]struct{}{normalizeURL(seed): {}},
		visited:  make(map[string]struct{}),
		records:  make([]*model.PageRecord, 0),
	}
}

// pop removes the next URL from the frontier and marks it visited.
// It reports false when the URL had already been visited.
func (st *crawlState) pop() (string, bool) {
	next := st.frontier[0]
	st.frontier = st.frontier[1:]

	key := normalizeURL(next)
	delete(st.queued, key)
	if _, ok := st.visited[key]; ok {
		return next, false
	}
	st.visited[key] = struct{}{}
	return next, true
}

// claim marks a redirect target visited and drops it from the queue.
// It reports false when the target had already been visited.
func (st *crawlState) claim(target string) bool {
	key := normalizeURL(target)
	if _, ok := st.visited[key]; ok {
		return false
	}
	delete(st.queued, key)
	st.visited[key] = struct{}{}
	return true
}

// push enqueues link unless it was already visited or queued.
func (st *crawlState) push(link string) {
	key := normalizeURL(link)
	if _, ok := st.visited[key]; ok {
		return
	}
	if _, ok := st.queued[key]; ok {
		return
	}
	st.queued[key] = struct{}{}
	st.frontier = append(st.frontier, link)
}

// Crawl crawls breadth-first from seedURL until the frontier is empty or
// the page budget is spent, and returns the records in discovery order.
//
// An invalid seed returns an *InvalidSeedError before any request. Pages
// that fail to fetch or parse are skipped; an unreachable seed therefore
// yields an empty result. When ctx is cancelled the records collected so
// far are returned together with ctx.Err().
func (s *Spider) Crawl(ctx context.Context, seedURL string) ([]*model.PageRecord, error) {
	seed, err := ParseSeed(seedURL)
	if err != nil {
		return []*model.PageRecord{}, err
	}

	var fetchOpts []FetcherOption
	if s.sameDomainOnly {
		fetchOpts = append(fetchOpts, WithAllowedHost(seed.Host))
	}
	fetcher := NewFetcher(s.client, s.timeout, s.userAgent, s.headers, s.maxBodySize, fetchOpts...)
	links := NewLinkExtractor(seed, s.sameDomainOnly)
	state := newCrawlState(seed.String())

	// Burst 1: the first fetch goes out immediately, later ones are spaced
	// by delay.
	var limiter *rate.Limiter
	if s.delay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.delay), 1)
	}

	s.logger.Info("starting crawl", "seed", seed.String(), "max_pages", s.maxPages, "same_domain_only", s.sameDomainOnly)

	for len(state.frontier) > 0 && len(state.visited) < s.maxPages {
		if err := ctx.Err(); err != nil {
			s.finish(state)
			return state.records, err
		}

		next, fresh := state.pop()
		if !fresh {
			continue
		}
		if s.observer != nil {
			s.observer.PageStarted(next, len(state.visited))
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				s.finish(state)
				return state.records, err
			}
		}

		record, found, err := s.visit(ctx, fetcher, links, state, next)
		if errors.Is(err, errAlreadyVisited) {
			s.logger.Debug("redirect target already visited", "url", next)
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				s.finish(state)
				return state.records, ctx.Err()
			}
			s.logger.Warn("skipping page", "url", next, "error", err)
			if s.observer != nil {
				s.observer.PageFailed(next, err)
			}
			continue
		}

		state.records = append(state.records, record)
		for _, link := range found {
			if s.shouldCrawl(link) {
				state.push(link)
			}
		}
	}

	s.finish(state)
	return state.records, nil
}

func (s *Spider) finish(state *crawlState) {
	s.logger.Info("crawl complete", "pages", len(state.records), "visited", len(state.visited))
	if s.observer != nil {
		s.observer.CrawlFinished(len(state.records))
	}
}

// visit fetches and parses one page, returning its record and candidate links.
// After a redirect the record and the links belong to the final URL, which
// is claimed in state; errAlreadyVisited is returned if it was seen before.
func (s *Spider) visit(ctx context.Context, fetcher *Fetcher, links *LinkExtractor, state *crawlState, pageURL string) (*model.PageRecord, []string, error) {
	resp, err := fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}
	if normalizeURL(resp.URL) != normalizeURL(pageURL) && !state.claim(resp.URL) {
		return nil, nil, errAlreadyVisited
	}
	pageURL = resp.URL

	parser, err := NewParser(pageURL, s.extractor)
	if err != nil {
		return nil, nil, &FetchError{URL: pageURL, Kind: FetchErrorBody, Err: err}
	}
	result, err := parser.Parse(resp.Body)
	if err != nil {
		return nil, nil, &FetchError{URL: pageURL, Kind: FetchErrorBody, Err: err}
	}

	s.logger.Debug("fetched page", "url", pageURL, "title", result.Title, "text_length", len(result.Text))

	return model.NewPageRecord(pageURL, result.Title, result.Text),
		links.Extract(result.Document, result.Document.Url),
		nil
}

// shouldCrawl reports whether a candidate passes the ignore patterns.
func (s *Spider) shouldCrawl(targetURL string) bool {
	if len(s.ignorePatterns) == 0 {
		return true
	}
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}
	return true
}

// matchPattern checks if a path matches a glob pattern.
//
//   - "/admin/*" matches "/admin" and everything below it
//   - "*.pdf" matches any path ending in ".pdf"
//   - other patterns go through filepath.Match, against the whole path and,
//     for patterns without a slash, against the last path element
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}

	return false
}

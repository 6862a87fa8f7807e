package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nao1215/vectorize/internal/config"
	"github.com/nao1215/vectorize/internal/monitoring"
	"github.com/nao1215/vectorize/internal/pipeline"
	"github.com/nao1215/vectorize/internal/session"
)

// Timeouts of the HTTP server. There is no write timeout: a crawl of
// max_pages pages with the politeness delay can take minutes.
const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 10 * time.Second
	sweepInterval     = time.Minute
)

// maxRequestBody limits JSON request bodies.
const maxRequestBody = 1 << 20

// CrawlerFactory builds a crawler for one crawl request. seedURL has
// already been validated.
type CrawlerFactory func(seedURL string, maxPages int, sameDomainOnly bool) pipeline.Crawler

// Server holds the dependencies for the HTTP API.
type Server struct {
	store      *session.Store
	newCrawler CrawlerFactory
	embedder   pipeline.Embedder
	reducer    pipeline.Reducer

	metrics *monitoring.Metrics
	logger  *slog.Logger

	defaultMaxPages int
	maxPagesLimit   int
	visualizeOpts   []pipeline.VisualizeOption

	router http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics enables /metrics and request counting.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMaxPages sets the crawl budget used when a request gives none, and
// the largest budget a request may ask for.
func WithMaxPages(defaultPages, limit int) Option {
	return func(s *Server) {
		if defaultPages > 0 {
			s.defaultMaxPages = defaultPages
		}
		if limit > 0 {
			s.maxPagesLimit = limit
		}
	}
}

// WithVisualizeOptions configures the figures built by /visualize.
func WithVisualizeOptions(opts ...pipeline.VisualizeOption) Option {
	return func(s *Server) {
		s.visualizeOpts = opts
	}
}

// New creates a Server.
func New(store *session.Store, newCrawler CrawlerFactory, embedder pipeline.Embedder, reducer pipeline.Reducer, opts ...Option) *Server {
	s := &Server{
		store:           store,
		newCrawler:      newCrawler,
		embedder:        embedder,
		reducer:         reducer,
		logger:          slog.Default(),
		defaultMaxPages: config.DefaultMaxPages,
		maxPagesLimit:   500,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.setupRouter()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully. Expired sessions are swept in the background.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	go s.store.Janitor(ctx, sweepInterval)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

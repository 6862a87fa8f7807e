package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/nao1215/vectorize/internal/config"
	"github.com/nao1215/vectorize/internal/crawler"
	"github.com/nao1215/vectorize/internal/embedding"
	"github.com/nao1215/vectorize/internal/pipeline"
	"github.com/nao1215/vectorize/internal/reduce"
)

// teiTimeout bounds a single call to a text-embeddings-inference server.
const teiTimeout = 30 * time.Second

// newSpider creates a crawler from the configuration.
// A nil observer is allowed.
func newSpider(cfg *config.Config, logger *slog.Logger, observer crawler.Observer) *crawler.Spider {
	opts := []crawler.SpiderOption{
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithSameDomainOnly(cfg.SameDomainOnly),
		crawler.WithDelay(cfg.CrawlDelay),
		crawler.WithTimeout(cfg.Timeout),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithExtractor(crawler.Extractor(cfg.Extractor)),
		crawler.WithLogger(logger),
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, crawler.WithHeaders(cfg.Headers))
	}
	if len(cfg.IgnorePatterns) > 0 {
		opts = append(opts, crawler.WithIgnorePatterns(cfg.IgnorePatterns))
	}
	if observer != nil {
		opts = append(opts, crawler.WithObserver(observer))
	}
	return crawler.NewSpider(&http.Client{}, opts...)
}

// newProcessor creates the embedding processor for the configured
// provider. The returned cleanup function must be called when done.
func newProcessor(ctx context.Context, cfg *config.Config, logger *slog.Logger, recorder embedding.Recorder) (*embedding.Processor, func(), error) {
	var (
		e       embedding.Embedder
		cleanup = func() {}
	)

	switch cfg.Provider {
	case config.ProviderGemini:
		g, err := embedding.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		e = g
		cleanup = func() {
			if err := g.Close(); err != nil {
				logger.Warn("failed to close Gemini client", "error", err)
			}
		}
	case config.ProviderTEI:
		e = embedding.NewTEIEmbedder(cfg.TEIURL, &http.Client{Timeout: teiTimeout})
	default:
		return nil, nil, config.ErrUnknownProvider
	}

	client := embedding.NewClient(e,
		embedding.WithProvider(cfg.Provider),
		embedding.WithClientLogger(logger),
	)

	opts := []embedding.ProcessorOption{
		embedding.WithDimensions(cfg.EmbeddingDimensions),
		embedding.WithMaxChars(cfg.MaxEmbedChars),
		embedding.WithLogger(logger),
	}
	if recorder != nil {
		opts = append(opts, embedding.WithRecorder(recorder))
	}
	return embedding.NewProcessor(client, opts...), cleanup, nil
}

// newReducer creates the dimensionality reducer. A nil recorder is allowed.
func newReducer(cfg *config.Config, logger *slog.Logger, recorder reduce.Recorder) *reduce.Reducer {
	return reduce.NewReducer(reduce.Options{
		Seed:     cfg.Seed,
		Jitter:   cfg.Jitter,
		Logger:   logger,
		Recorder: recorder,
	})
}

// visualizeOptions converts the method and dims selectors into
// VisualizeStep options.
func visualizeOptions(cfg *config.Config, logger *slog.Logger) ([]pipeline.VisualizeOption, error) {
	methods := make([]reduce.Method, 0, 2)
	for _, name := range cfg.Methods() {
		m, err := reduce.ParseMethod(name)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return []pipeline.VisualizeOption{
		pipeline.WithMethods(methods...),
		pipeline.WithDims(cfg.Dimensions()...),
		pipeline.WithVisualizeLogger(logger),
	}, nil
}

// resolveOutputPath places a bare file name in the XDG data directory.
// Paths with a directory component are used as given.
func resolveOutputPath(path string) string {
	if path == "" || filepath.Base(path) != path {
		return path
	}
	return filepath.Join(config.XDGDataDir(), path)
}

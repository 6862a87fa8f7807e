package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers match them with errors.Is.
var (
	// ErrNoTarget is returned when no seed URL is given.
	ErrNoTarget = errors.New("no target specified: provide a seed URL")

	// ErrInvalidMaxPages is returned when the page budget is below one.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be at least 1")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrUnknownExtractor is returned for an extractor other than text or readability.
	ErrUnknownExtractor = errors.New("unknown extractor: use text or readability")

	// ErrUnknownMethod is returned for a reduction method other than pca, umap or both.
	ErrUnknownMethod = errors.New("unknown method: use pca, umap or both")

	// ErrUnknownDims is returned for a dimensionality other than 2, 3 or both.
	ErrUnknownDims = errors.New("unknown dims: use 2, 3 or both")

	// ErrUnknownProvider is returned for an embedding provider other than gemini or tei.
	ErrUnknownProvider = errors.New("unknown embedding provider: use gemini or tei")

	// ErrMissingAPIKey is returned when the Gemini provider has no key.
	ErrMissingAPIKey = errors.New("missing Gemini API key: set GEMINI_API_KEY")

	// ErrMissingTEIURL is returned when the TEI provider has no base URL.
	ErrMissingTEIURL = errors.New("missing TEI URL: set VECTORIZE_TEI_URL or embedding.teiURL")

	// ErrInvalidEmbeddingDimensions is returned when the vector length is below one.
	ErrInvalidEmbeddingDimensions = errors.New("invalid embedding dimensions: must be positive")

	// ErrConflictingReportFormats is returned when more than one of
	// --json, --markdown and --csv is given.
	ErrConflictingReportFormats = errors.New("conflicting report formats: use only one of --json, --markdown, --csv")
)

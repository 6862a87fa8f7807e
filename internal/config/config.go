package config

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "vectorize"

	// DefaultMaxPages is the crawl budget when none is given.
	DefaultMaxPages = 20

	// DefaultTimeout is the hard per-request timeout for page fetches.
	DefaultTimeout = 10 * time.Second

	// DefaultCrawlDelay is the flat delay applied before each fetch.
	DefaultCrawlDelay = 1 * time.Second

	// DefaultUserAgent identifies vectorize in HTTP requests.
	DefaultUserAgent = "vectorize/1.0 (+https://github.com/nao1215/vectorize)"

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultProvider is the embedding provider.
	DefaultProvider = ProviderGemini

	// DefaultEmbeddingModel is the Gemini embedding model.
	DefaultEmbeddingModel = "embedding-001"

	// DefaultEmbeddingDimensions is the output size of DefaultEmbeddingModel.
	// It sizes the zero vector substituted for failed embedding calls.
	DefaultEmbeddingDimensions = 768

	// DefaultMaxEmbedChars is how much page text goes into an embedding request.
	DefaultMaxEmbedChars = 1000

	// DefaultSeed seeds UMAP and the PCA overlap jitter.
	DefaultSeed = 42

	// DefaultServerAddr is the listen address of `vectorize serve`.
	DefaultServerAddr = ":8080"

	// DefaultSessionTTL is how long an idle server session is kept in memory.
	DefaultSessionTTL = 30 * time.Minute
)

// Embedding providers.
const (
	ProviderGemini = "gemini"
	ProviderTEI    = "tei"
)

// Text extractors.
const (
	ExtractorText        = "text"
	ExtractorReadability = "readability"
)

// Reduction method selectors.
const (
	MethodPCA  = "pca"
	MethodUMAP = "umap"
	MethodBoth = "both"
)

// Plot dimension selectors.
const (
	Dims2D   = "2"
	Dims3D   = "3"
	DimsBoth = "both"
)

// Config holds all configuration options for vectorize.
// It is populated from CLI flags, the YAML config file, and the environment,
// then passed through the application explicitly.
type Config struct {
	// Target is the seed URL of the crawl.
	Target string

	// MaxPages is the crawl budget. Must be at least 1.
	MaxPages int

	// SameDomainOnly restricts the crawl to the seed's host.
	SameDomainOnly bool

	// CrawlDelay is the flat delay applied before each fetch.
	CrawlDelay time.Duration

	// Timeout is the hard per-request timeout.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with page fetches.
	UserAgent string

	// MaxBodySize is the maximum response body size read per page.
	MaxBodySize int64

	// Extractor selects how page text is extracted: "text" keeps all visible
	// text, "readability" keeps only the main article content.
	Extractor string

	// Headers are extra request headers sent with page fetches.
	Headers map[string]string

	// IgnorePatterns are URL path glob patterns that are never crawled.
	IgnorePatterns []string

	// Provider selects the embedding service: "gemini" or "tei".
	Provider string

	// GeminiAPIKey authenticates against the Gemini API.
	// Only read from the environment, never from the config file.
	GeminiAPIKey string

	// EmbeddingModel is the model name passed to the provider.
	EmbeddingModel string

	// EmbeddingDimensions is the model's vector length.
	EmbeddingDimensions int

	// TEIURL is the base URL of a text-embeddings-inference server.
	TEIURL string

	// MaxEmbedChars is the number of page text characters embedded per page.
	MaxEmbedChars int

	// Method selects the reduction: "pca", "umap" or "both".
	Method string

	// Dims selects the plot dimensionality: "2", "3" or "both".
	Dims string

	// Jitter enables the cosmetic overlap jitter on PCA output.
	Jitter bool

	// Seed seeds UMAP and the jitter.
	Seed uint64

	// JSONReport writes the export as JSON.
	JSONReport bool

	// MarkdownReport writes the export as Markdown.
	MarkdownReport bool

	// CSVReport writes the export as CSV.
	CSVReport bool

	// ReportFile is where the export is written. Empty means stdout.
	ReportFile string

	// HTMLFile is where the interactive plot page is written. Empty disables it.
	HTMLFile string

	// ServerAddr is the listen address of the HTTP API.
	ServerAddr string

	// SessionTTL is the idle lifetime of an HTTP API session.
	SessionTTL time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the explicit config file path, if any.
	ConfigFilePath string

	// SiteConfigs holds the parsed config file.
	SiteConfigs *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxPages:            DefaultMaxPages,
		SameDomainOnly:      true,
		CrawlDelay:          DefaultCrawlDelay,
		Timeout:             DefaultTimeout,
		UserAgent:           DefaultUserAgent,
		MaxBodySize:         DefaultMaxBodySize,
		Extractor:           ExtractorText,
		Provider:            DefaultProvider,
		EmbeddingModel:      DefaultEmbeddingModel,
		EmbeddingDimensions: DefaultEmbeddingDimensions,
		MaxEmbedChars:       DefaultMaxEmbedChars,
		Method:              MethodBoth,
		Dims:                DimsBoth,
		Jitter:              true,
		Seed:                DefaultSeed,
		ServerAddr:          DefaultServerAddr,
		SessionTTL:          DefaultSessionTTL,
	}
}

// XDGDataDir returns the XDG data directory for vectorize.
// Exported reports and plot pages default to this directory when a bare
// file name is given.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for vectorize.
// It is searched for a config file after the current and home directories.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Methods expands the Method selector.
func (c *Config) Methods() []string {
	if c.Method == MethodBoth {
		return []string{MethodPCA, MethodUMAP}
	}
	return []string{c.Method}
}

// Dimensions expands the Dims selector.
func (c *Config) Dimensions() []int {
	switch c.Dims {
	case Dims2D:
		return []int{2}
	case Dims3D:
		return []int{3}
	default:
		return []int{2, 3}
	}
}

// Validate checks the configuration and returns the first problem found.
// The seed URL itself is validated by the crawler.
func (c *Config) Validate() error {
	if c.MaxPages < 1 {
		return ErrInvalidMaxPages
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if !slices.Contains([]string{ExtractorText, ExtractorReadability}, c.Extractor) {
		return ErrUnknownExtractor
	}
	if !slices.Contains([]string{MethodPCA, MethodUMAP, MethodBoth}, c.Method) {
		return ErrUnknownMethod
	}
	if !slices.Contains([]string{Dims2D, Dims3D, DimsBoth}, c.Dims) {
		return ErrUnknownDims
	}
	if c.EmbeddingDimensions < 1 {
		return ErrInvalidEmbeddingDimensions
	}
	switch c.Provider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return ErrMissingAPIKey
		}
	case ProviderTEI:
		if c.TEIURL == "" {
			return ErrMissingTEIURL
		}
	default:
		return ErrUnknownProvider
	}
	if boolCount(c.JSONReport, c.MarkdownReport, c.CSVReport) > 1 {
		return ErrConflictingReportFormats
	}
	return nil
}

// ValidateRun is Validate plus the checks specific to a single CLI run.
func (c *Config) ValidateRun() error {
	if c.Target == "" {
		return ErrNoTarget
	}
	return c.Validate()
}

func boolCount(bs ...bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nao1215/vectorize/internal/model"
	"github.com/nao1215/vectorize/internal/plot"
	"github.com/nao1215/vectorize/internal/reduce"
	"github.com/nao1215/vectorize/internal/session"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNoRecords is returned by EmbedStep when the crawl found nothing.
	ErrNoRecords = errors.New("no crawled pages to embed")

	// ErrNoEmbeddings is returned by VisualizeStep when nothing was embedded.
	ErrNoEmbeddings = errors.New("no embedded pages to visualize")
)

// Crawler is implemented by *crawler.Spider.
type Crawler interface {
	Crawl(ctx context.Context, seedURL string) ([]*model.PageRecord, error)
}

// Embedder is implemented by *embedding.Processor.
type Embedder interface {
	EmbedMany(ctx context.Context, records []*model.PageRecord) ([]*model.PageRecord, error)
}

// Reducer is implemented by *reduce.Reducer.
type Reducer interface {
	Reduce(m *mat.Dense, k int, method reduce.Method) (*reduce.Result, error)
}

// CrawlStep crawls run.Target into run.Records.
type CrawlStep struct {
	crawler Crawler
}

// NewCrawlStep creates a crawl step.
func NewCrawlStep(c Crawler) *CrawlStep {
	return &CrawlStep{crawler: c}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do crawls the target. Records found before an error are kept.
func (s *CrawlStep) Do(ctx context.Context, run *session.Run) error {
	records, err := s.crawler.Crawl(ctx, run.Target)
	run.Records = records
	run.ResetEmbeddings()
	return err
}

// EmbedStep embeds run.Records into run.Embedded.
type EmbedStep struct {
	embedder Embedder
}

// NewEmbedStep creates an embedding step.
func NewEmbedStep(e Embedder) *EmbedStep {
	return &EmbedStep{embedder: e}
}

// Name returns the step name.
func (s *EmbedStep) Name() string {
	return "embed"
}

// Do embeds the crawled records, replacing any earlier embeddings and
// figures. Records the embedder hands back without a vector are dropped.
func (s *EmbedStep) Do(ctx context.Context, run *session.Run) error {
	if len(run.Records) == 0 {
		return ErrNoRecords
	}
	run.ResetEmbeddings()
	embedded, err := s.embedder.EmbedMany(ctx, run.Records)
	run.Embedded = model.Embedded(embedded)
	return err
}

// VisualizeStep reduces run.Embedded with every configured method and
// dimensionality and stores the figures in run.Figures.
type VisualizeStep struct {
	reducer Reducer
	methods []reduce.Method
	dims    []int
	logger  *slog.Logger
}

// VisualizeOption configures a VisualizeStep.
type VisualizeOption func(*VisualizeStep)

// WithMethods sets the reduction methods. The default is PCA and UMAP.
func WithMethods(methods ...reduce.Method) VisualizeOption {
	return func(s *VisualizeStep) {
		if len(methods) > 0 {
			s.methods = methods
		}
	}
}

// WithDims sets the plot dimensionalities. The default is 2 and 3.
func WithDims(dims ...int) VisualizeOption {
	return func(s *VisualizeStep) {
		if len(dims) > 0 {
			s.dims = dims
		}
	}
}

// WithVisualizeLogger sets a custom logger for the step.
func WithVisualizeLogger(logger *slog.Logger) VisualizeOption {
	return func(s *VisualizeStep) {
		s.logger = logger
	}
}

// NewVisualizeStep creates a visualization step.
func NewVisualizeStep(r Reducer, opts ...VisualizeOption) *VisualizeStep {
	s := &VisualizeStep{
		reducer: r,
		methods: []reduce.Method{reduce.PCA, reduce.UMAP},
		dims:    []int{2, 3},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *VisualizeStep) Name() string {
	return "visualize"
}

// Do builds one figure per method and dimensionality. The reductions are
// independent and run concurrently. Figures that succeed are stored even
// when another fails.
func (s *VisualizeStep) Do(ctx context.Context, run *session.Run) error {
	if len(run.Embedded) == 0 {
		return ErrNoEmbeddings
	}
	m, err := model.EmbeddingMatrix(run.Embedded)
	if err != nil {
		return fmt.Errorf("build embedding matrix: %w", err)
	}

	var (
		mu      sync.Mutex
		figures = make(map[string]*plot.Figure)
	)
	var g errgroup.Group
	for _, method := range s.methods {
		for _, dims := range s.dims {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				fig, err := s.figure(m, run.Embedded, dims, method)
				if err != nil {
					return fmt.Errorf("%s: %w", plot.Key(method, dims), err)
				}
				mu.Lock()
				figures[plot.Key(method, dims)] = fig
				mu.Unlock()
				return nil
			})
		}
	}
	err = g.Wait()

	run.Figures = figures
	return err
}

func (s *VisualizeStep) figure(m *mat.Dense, records []*model.PageRecord, dims int, method reduce.Method) (*plot.Figure, error) {
	res, err := s.reducer.Reduce(m, dims, method)
	if err != nil {
		return nil, err
	}
	if res.Fallback() {
		s.logger.Info("figure built with fallback method", "requested", res.Requested, "used", res.Used, "dims", dims)
	}
	return plot.Build(res.Coords, records, dims, res.Used)
}

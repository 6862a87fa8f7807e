package embedding

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nao1215/vectorize/internal/model"
)

// Defaults for Processor.
const (
	DefaultDimensions = 768
	DefaultMaxChars   = 1000
)

// Outcome is the result of embedding one record.
type Outcome string

// Embedding outcomes. The values double as metric labels.
const (
	OutcomeOK       Outcome = "ok"
	OutcomeDegraded Outcome = "degraded"
	OutcomeSkipped  Outcome = "skipped"
)

// Recorder is notified of each record's outcome.
type Recorder interface {
	EmbeddingDone(provider string, outcome Outcome)
}

// Processor embeds the records of a crawl.
type Processor struct {
	client     *Client
	dimensions int
	maxChars   int
	recorder   Recorder
	logger     *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithDimensions sets the length of the zero vector used before any call
// has succeeded. Once a call succeeds its length is used instead.
func WithDimensions(n int) ProcessorOption {
	return func(p *Processor) {
		p.dimensions = n
	}
}

// WithMaxChars sets how many characters of page text are embedded.
func WithMaxChars(n int) ProcessorOption {
	return func(p *Processor) {
		p.maxChars = n
	}
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) ProcessorOption {
	return func(p *Processor) {
		p.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// NewProcessor creates a Processor using client.
func NewProcessor(client *Client, opts ...ProcessorOption) *Processor {
	p := &Processor{
		client:     client,
		dimensions: DefaultDimensions,
		maxChars:   DefaultMaxChars,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.dimensions < 1 {
		p.dimensions = DefaultDimensions
	}
	return p
}

// Text returns the string embedded for a record: the title, a space, and
// the first maxChars characters of the page text.
func (p *Processor) Text(r *model.PageRecord) string {
	text := r.Text
	if p.maxChars > 0 {
		if runes := []rune(text); len(runes) > p.maxChars {
			text = string(runes[:p.maxChars])
		}
	}
	return r.Title + " " + text
}

// EmbedMany embeds records in order and returns copies with Vector set.
//
// Records with blank text are skipped. A failed call yields a zero vector
// and Degraded=true; all zero vectors take the length of the successful
// ones. If ctx is cancelled the records processed so far are returned with
// ctx.Err(). The input records are not modified.
func (p *Processor) EmbedMany(ctx context.Context, records []*model.PageRecord) ([]*model.PageRecord, error) {
	out := make([]*model.PageRecord, 0, len(records))
	dims := 0

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return p.finish(out, dims), err
		}

		if strings.TrimSpace(r.Text) == "" {
			p.logger.Info("skipping page without text", "url", r.URL)
			p.record(OutcomeSkipped)
			continue
		}

		embedded := *r
		v, err := p.client.Embed(ctx, p.Text(r))
		if err != nil {
			if ctx.Err() != nil {
				return p.finish(out, dims), ctx.Err()
			}
			p.logger.Warn("embedding failed, using zero vector", "url", r.URL, "error", err)
			embedded.Vector = nil
			embedded.Degraded = true
			p.record(OutcomeDegraded)
		} else {
			if dims == 0 {
				dims = len(v)
			}
			embedded.Vector = v
			embedded.Degraded = false
			p.record(OutcomeOK)
		}
		out = append(out, &embedded)
	}

	return p.finish(out, dims), nil
}

// finish gives degraded records their zero vector.
func (p *Processor) finish(out []*model.PageRecord, dims int) []*model.PageRecord {
	if dims == 0 {
		dims = p.dimensions
	}
	for _, r := range out {
		if r.Degraded {
			r.Vector = make([]float32, dims)
		}
	}
	return out
}

func (p *Processor) record(o Outcome) {
	if p.recorder != nil {
		p.recorder.EmbeddingDone(p.client.Provider(), o)
	}
}

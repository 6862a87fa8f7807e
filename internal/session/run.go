package session

import (
	"maps"
	"slices"
	"time"

	"github.com/nao1215/vectorize/internal/model"
	"github.com/nao1215/vectorize/internal/plot"
)

// StepError is a failure recorded by one pipeline step.
type StepError struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	err     error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Message
}

func (e *StepError) Unwrap() error {
	return e.err
}

// Run is the state of one crawl-embed-visualize run. Each session owns at
// most one Run; a CLI invocation creates its own.
type Run struct {
	// Target is the seed URL.
	Target string

	// StartedAt is when the run was created.
	StartedAt time.Time

	// Records are the crawled pages, in crawl order.
	Records []*model.PageRecord

	// Embedded are the records that carry a vector, in crawl order.
	Embedded []*model.PageRecord

	// Figures are keyed by plot.Key of the requested method, so a UMAP
	// figure that fell back to PCA is still found under "umap_2d".
	Figures map[string]*plot.Figure

	// Steps lists the steps that ran, in order.
	Steps []string

	// Errors collects step failures. Partial results stay usable.
	Errors []*StepError

	// Cancelled is set when the context ended the run early.
	Cancelled bool
}

// NewRun creates an empty run for target.
func NewRun(target string) *Run {
	return &Run{
		Target:    target,
		StartedAt: time.Now(),
		Figures:   make(map[string]*plot.Figure),
	}
}

// AddError records a step failure.
func (r *Run) AddError(step string, err error) {
	r.Errors = append(r.Errors, &StepError{Step: step, Message: err.Error(), err: err})
}

// Degraded returns the number of embedded records that carry a zero vector.
func (r *Run) Degraded() int {
	n := 0
	for _, rec := range r.Embedded {
		if rec.Degraded {
			n++
		}
	}
	return n
}

// FigureKeys returns the figure keys in sorted order.
func (r *Run) FigureKeys() []string {
	return slices.Sorted(maps.Keys(r.Figures))
}

// ResetEmbeddings drops everything derived from the crawled records.
func (r *Run) ResetEmbeddings() {
	r.Embedded = nil
	r.Figures = make(map[string]*plot.Figure)
}

package reduce

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Method is a dimensionality reduction method.
type Method string

// Reduction methods.
const (
	PCA  Method = "pca"
	UMAP Method = "umap"
)

// String returns the method name in upper case, as shown in plot titles.
func (m Method) String() string {
	return strings.ToUpper(string(m))
}

// ParseMethod parses "pca" or "umap", case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case PCA:
		return PCA, nil
	case UMAP:
		return UMAP, nil
	default:
		return "", fmt.Errorf("unknown reduction method %q", s)
	}
}

// DefaultSeed seeds UMAP and the PCA jitter.
const DefaultSeed = 42

// ReductionError reports a numerical failure or unusable input.
type ReductionError struct {
	Method Method
	Reason string
	Err    error
}

func (e *ReductionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s reduction failed: %s: %v", e.Method, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s reduction failed: %s", e.Method, e.Reason)
}

func (e *ReductionError) Unwrap() error {
	return e.Err
}

// Recorder is notified of every Reduce call.
type Recorder interface {
	ReductionDone(requested, used Method)
}

// Options configures a Reducer.
type Options struct {
	// Seed seeds UMAP and the jitter.
	Seed uint64

	// Jitter adds Gaussian noise of 1% of each column's standard deviation
	// to PCA output so that near-duplicate pages do not overlap exactly.
	Jitter bool

	// Logger receives fallback warnings. Nil means slog.Default().
	Logger *slog.Logger

	// Recorder receives the method actually used. Optional.
	Recorder Recorder
}

// DefaultOptions returns seeded, jittered options.
func DefaultOptions() Options {
	return Options{Seed: DefaultSeed, Jitter: true}
}

// Reducer runs reductions with fixed options. It holds no mutable state
// and is safe for concurrent use.
type Reducer struct {
	seed     uint64
	jitter   bool
	logger   *slog.Logger
	recorder Recorder
}

// NewReducer creates a Reducer.
func NewReducer(opts Options) *Reducer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reducer{
		seed:     opts.Seed,
		jitter:   opts.Jitter,
		logger:   logger,
		recorder: opts.Recorder,
	}
}

// Result is the output of Reduce.
type Result struct {
	// Coords has one row per input row (two for a single-row input) and
	// k columns.
	Coords *mat.Dense

	// Requested is the method asked for; Used is the one that produced
	// Coords. They differ after a UMAP fallback.
	Requested Method
	Used      Method
}

// Fallback reports whether UMAP was replaced by PCA.
func (r *Result) Fallback() bool {
	return r.Requested != r.Used
}

// Reduce projects m (N×D) to k dimensions with method.
// UMAP falls back to PCA for fewer than MinUMAPSamples rows and on any
// UMAP error. PCA errors are returned.
func (r *Reducer) Reduce(m *mat.Dense, k int, method Method) (*Result, error) {
	res := &Result{Requested: method}

	switch method {
	case PCA:
	case UMAP:
		n := rows(m)
		if n < MinUMAPSamples {
			r.logger.Warn("too few samples for UMAP, falling back to PCA", "samples", n, "min", MinUMAPSamples)
			break
		}
		coords, err := r.UMAP(m, k)
		if err == nil {
			res.Coords, res.Used = coords, UMAP
			r.record(res)
			return res, nil
		}
		r.logger.Warn("UMAP reduction failed, falling back to PCA", "error", err)
	default:
		return nil, fmt.Errorf("unknown reduction method %q", method)
	}

	coords, err := r.PCA(m, k)
	if err != nil {
		return nil, err
	}
	res.Coords, res.Used = coords, PCA
	r.record(res)
	return res, nil
}

func (r *Reducer) record(res *Result) {
	if r.recorder != nil {
		r.recorder.ReductionDone(res.Requested, res.Used)
	}
}

// newRand returns the generator for one reduction. Every call starts from
// the same seed, so equal inputs give equal outputs.
func (r *Reducer) newRand() *rand.Rand {
	return rand.New(rand.NewPCG(r.seed, r.seed^0x9e3779b97f4a7c15))
}

func rows(m *mat.Dense) int {
	if m == nil || m.IsEmpty() {
		return 0
	}
	n, _ := m.Dims()
	return n
}

// checkInput validates a reduction input and target dimension.
func checkInput(method Method, m *mat.Dense, k int) error {
	if rows(m) == 0 {
		return &ReductionError{Method: method, Reason: "empty input"}
	}
	if k < 1 {
		return &ReductionError{Method: method, Reason: fmt.Sprintf("invalid target dimension %d", k)}
	}
	if !allFinite(m) {
		return &ReductionError{Method: method, Reason: "input contains NaN or Inf"}
	}
	return nil
}

func allFinite(m *mat.Dense) bool {
	n, d := m.Dims()
	for i := range n {
		for _, v := range m.RawRowView(i)[:d] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

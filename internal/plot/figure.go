package plot

import (
	"errors"
	"fmt"

	"github.com/nao1215/vectorize/internal/model"
	"github.com/nao1215/vectorize/internal/reduce"
	"gonum.org/v1/gonum/mat"
)

// Marker sizes used by the rendered charts.
const (
	MarkerSize2D = 8
	MarkerSize3D = 5
)

// titleFormat is the figure title; the verb is the upper-case method name.
const titleFormat = "Website Content Embeddings (%s)"

var (
	// ErrUnsupportedDims is returned for a figure that is neither 2D nor 3D.
	ErrUnsupportedDims = errors.New("unsupported plot dimensions: use 2 or 3")

	// ErrRowMismatch is returned when coordinates and records disagree in count.
	ErrRowMismatch = errors.New("coordinate rows do not match records")
)

// Point is one page in a figure.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`

	Title   string `json:"title"`
	URL     string `json:"url"`
	Preview string `json:"preview"`

	// Synthetic marks the offset copy added when only one page was reduced.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Figure is a 2D or 3D scatter plot of reduced embeddings.
type Figure struct {
	Title      string        `json:"title"`
	Method     reduce.Method `json:"method"`
	Dims       int           `json:"dims"`
	MarkerSize int           `json:"marker_size"`
	Points     []Point       `json:"points"`
}

// Key names the figure the way the visualize endpoint does, e.g. "pca_2d".
func (f *Figure) Key() string {
	return Key(f.Method, f.Dims)
}

// Key returns the figure key for a method and dimensionality.
func Key(method reduce.Method, dims int) string {
	return fmt.Sprintf("%s_%dd", string(method), dims)
}

// Build creates a figure from reduced coordinates. Row i of reduced is
// records[i]. A single record reduced to two rows keeps both: the second
// becomes a Synthetic point with the same metadata.
func Build(reduced *mat.Dense, records []*model.PageRecord, dims int, method reduce.Method) (*Figure, error) {
	if dims != 2 && dims != 3 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDims, dims)
	}
	if reduced == nil || reduced.IsEmpty() {
		return nil, fmt.Errorf("%w: no coordinates", ErrRowMismatch)
	}

	n, k := reduced.Dims()
	if k < dims {
		return nil, fmt.Errorf("%w: %d columns for a %dD plot", ErrUnsupportedDims, k, dims)
	}
	synthetic := len(records) == 1 && n == 2
	if n != len(records) && !synthetic {
		return nil, fmt.Errorf("%w: %d rows, %d records", ErrRowMismatch, n, len(records))
	}

	fig := &Figure{
		Title:      fmt.Sprintf(titleFormat, method),
		Method:     method,
		Dims:       dims,
		MarkerSize: MarkerSize2D,
		Points:     make([]Point, n),
	}
	if dims == 3 {
		fig.MarkerSize = MarkerSize3D
	}

	for i := range n {
		rec := records[min(i, len(records)-1)]
		p := Point{
			X:         reduced.At(i, 0),
			Y:         reduced.At(i, 1),
			Title:     rec.Title,
			URL:       rec.URL,
			Preview:   rec.Preview(),
			Synthetic: i >= len(records),
		}
		if dims == 3 {
			p.Z = reduced.At(i, 2)
		}
		fig.Points[i] = p
	}
	return fig, nil
}

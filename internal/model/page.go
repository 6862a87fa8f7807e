package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DefaultTitle is used when a page has no <title> element.
const DefaultTitle = "No Title"

// PreviewLength is the number of characters kept in a content preview.
const PreviewLength = 200

// previewEllipsis is appended to previews that were cut short.
const previewEllipsis = "..."

// ErrNoVectors is returned when an embedding matrix is requested for records
// that carry no vectors.
var ErrNoVectors = errors.New("no embedded records")

// PageRecord is a single crawled page.
// The URL is the identity key: a crawl never yields two records with the same URL.
type PageRecord struct {
	// URL is the canonical, fragment-stripped page address.
	URL string `json:"url"`

	// Title is the text of the <title> element, or DefaultTitle.
	Title string `json:"title"`

	// Text is the visible page text, single-spaced. It may be empty.
	Text string `json:"content"`

	// Vector is the embedding of the page. Nil until the page is embedded.
	// Excluded from JSON so that vectors never leak into exports.
	Vector []float32 `json:"-"`

	// Degraded marks a zero vector substituted after a failed embedding call.
	Degraded bool `json:"degraded,omitempty"`
}

// NewPageRecord creates a record, applying the title fallback.
func NewPageRecord(pageURL, title, text string) *PageRecord {
	if title == "" {
		title = DefaultTitle
	}
	return &PageRecord{
		URL:   pageURL,
		Title: title,
		Text:  text,
	}
}

// HasVector reports whether the record has been embedded.
func (p *PageRecord) HasVector() bool {
	return len(p.Vector) > 0
}

// Preview returns the first PreviewLength characters of the page text,
// followed by "..." when the text was longer.
func (p *PageRecord) Preview() string {
	return Preview(p.Text, PreviewLength)
}

// Preview truncates text to n characters (runes, not bytes) and appends
// an ellipsis when anything was cut.
func Preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + previewEllipsis
}

// EmbeddingMatrix stacks the vectors of records into an N×D matrix.
// Row i is records[i]. Every record must carry a vector of the same length.
func EmbeddingMatrix(records []*PageRecord) (*mat.Dense, error) {
	if len(records) == 0 {
		return nil, ErrNoVectors
	}

	dim := len(records[0].Vector)
	if dim == 0 {
		return nil, ErrNoVectors
	}

	data := make([]float64, 0, len(records)*dim)
	for i, r := range records {
		if len(r.Vector) != dim {
			return nil, fmt.Errorf("record %d (%s): vector length %d, want %d", i, r.URL, len(r.Vector), dim)
		}
		for _, v := range r.Vector {
			data = append(data, float64(v))
		}
	}

	return mat.NewDense(len(records), dim, data), nil
}

// Embedded returns the records that carry a vector, in order.
func Embedded(records []*PageRecord) []*PageRecord {
	out := make([]*PageRecord, 0, len(records))
	for _, r := range records {
		if r.HasVector() {
			out = append(out, r)
		}
	}
	return out
}

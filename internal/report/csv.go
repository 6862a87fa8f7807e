package report

import (
	"encoding/csv"
	"io"
)

// csvHeader is the first line of a CSV export.
var csvHeader = []string{"url", "title", "content_preview"}

// CSVWriter outputs one line per page.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the header and one record per row.
func (w *CSVWriter) Write(export *Export) (int, error) {
	cw := &countingWriter{w: w.output}
	out := csv.NewWriter(cw)

	if err := out.Write(csvHeader); err != nil {
		return cw.n, err
	}
	for _, r := range export.Rows {
		if err := out.Write([]string{r.URL, r.Title, r.ContentPreview}); err != nil {
			return cw.n, err
		}
	}
	out.Flush()
	return cw.n, out.Error()
}

// countingWriter counts bytes passed to the underlying writer.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

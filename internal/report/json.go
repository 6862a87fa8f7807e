package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/vectorize/internal/model"
)

// StatusSuccess is the status field of a successful export response.
const StatusSuccess = "success"

// Response is the JSON shape of an export, shared with the HTTP API.
type Response struct {
	Status string            `json:"status"`
	Data   []model.ExportRow `json:"data"`
}

// NewResponse wraps rows in a success response. A nil slice is written
// as an empty array.
func NewResponse(rows []model.ExportRow) *Response {
	if rows == nil {
		rows = []model.ExportRow{}
	}
	return &Response{Status: StatusSuccess, Data: rows}
}

// JSONWriter outputs exports in JSON format.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the export rows as a success response.
func (w *JSONWriter) Write(export *Export) (int, error) {
	var (
		data []byte
		err  error
	)
	resp := NewResponse(export.Rows)
	if w.indent {
		data, err = json.MarshalIndent(resp, "", "  ")
	} else {
		data, err = json.Marshal(resp)
	}
	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')
	return w.output.Write(data)
}

package report

import (
	"cmp"
	"io"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/vectorize/internal/model"
)

// Export is the data written by every Writer.
type Export struct {
	// Target is the seed URL of the crawl.
	Target string

	// GeneratedAt is when the export was produced.
	GeneratedAt time.Time

	// Rows holds one entry per embedded page, in crawl order.
	Rows []model.ExportRow
}

// NewExport creates an Export from records, stamped with the current time.
func NewExport(target string, records []*model.PageRecord) *Export {
	return &Export{
		Target:      target,
		GeneratedAt: time.Now(),
		Rows:        model.NewExportRows(records),
	}
}

// Writer defines the interface for export output.
type Writer interface {
	// Write outputs the export and returns the number of bytes written.
	Write(export *Export) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Section is the number of pages under one top-level path segment.
type Section struct {
	Name  string
	Pages int
}

// rootSection names pages that sit directly under the site root.
const rootSection = "/"

// Sections groups rows by the first segment of their URL path, largest
// group first.
func Sections(rows []model.ExportRow) []Section {
	counts := make(map[string]int)
	for _, r := range rows {
		counts[sectionOf(r.URL)]++
	}

	out := make([]Section, 0, len(counts))
	for name, n := range counts {
		out = append(out, Section{Name: name, Pages: n})
	}
	slices.SortFunc(out, func(a, b Section) int {
		if c := cmp.Compare(b.Pages, a.Pages); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

func sectionOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return rootSection
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return rootSection
	}
	first, rest, _ := strings.Cut(path, "/")
	if rest == "" && strings.Contains(first, ".") {
		return rootSection
	}
	return "/" + first
}

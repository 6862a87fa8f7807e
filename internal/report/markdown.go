package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/vectorize/internal/model"
)

// MarkdownWriter outputs exports in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs a summary, a section breakdown and the page table.
func (w *MarkdownWriter) Write(export *Export) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, export)
	w.writeSections(md, export.Rows)
	w.writePages(md, export.Rows)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the title and the run summary table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, export *Export) {
	md.H1("Website Content Embeddings")
	md.PlainText("")

	target := "-"
	if export.Target != "" {
		target = "`" + export.Target + "`"
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", target},
			{"Generated", export.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Pages Embedded", strconv.Itoa(len(export.Rows))},
		},
	})
	md.PlainText("")
}

// writeSections writes how the pages spread over the site.
func (w *MarkdownWriter) writeSections(md *markdown.Markdown, rows []model.ExportRow) {
	sections := Sections(rows)
	if len(sections) < 2 {
		return
	}

	md.H2("Site Sections")
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pages per Section"),
		piechart.WithShowData(true),
	)
	tableRows := make([][]string, len(sections))
	for i, s := range sections {
		chart.LabelAndIntValue(s.Name, uint64(s.Pages))
		tableRows[i] = []string{"`" + s.Name + "`", strconv.Itoa(s.Pages)}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Section", "Pages"},
		Rows:   tableRows,
	})
	md.PlainText("")
}

// writePages writes one table row per page.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, rows []model.ExportRow) {
	md.H2("Pages")
	md.PlainText("")

	if len(rows) == 0 {
		md.Note("No pages were embedded.")
		md.PlainText("")
		return
	}

	tableRows := make([][]string, len(rows))
	for i, r := range rows {
		tableRows[i] = []string{
			strconv.Itoa(i + 1),
			cell(r.Title),
			r.URL,
			cell(r.ContentPreview),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Title", "URL", "Preview"},
		Rows:   tableRows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [vectorize](https://github.com/nao1215/vectorize)*")
}

// cell makes page text safe inside a table cell.
func cell(s string) string {
	if s == "" {
		return "-"
	}
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

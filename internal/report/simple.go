package report

import (
	"fmt"
	"io"
	"strings"
)

// ruleWidth is the width of the separator lines.
const ruleWidth = 70

// SimpleWriter outputs a human-readable listing for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds the content preview of every page.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with page previews.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the export in human-readable format.
func (w *SimpleWriter) Write(export *Export) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, export)
	w.writeSections(&sb, export)
	w.writePages(&sb, export)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, export *Export) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                     WEBSITE CONTENT EMBEDDINGS\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Target:         %s\n", export.Target)
	fmt.Fprintf(sb, "Generated:      %s\n", export.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Pages Embedded: %d\n", len(export.Rows))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSections(sb *strings.Builder, export *Export) {
	sections := Sections(export.Rows)
	if len(sections) < 2 {
		return
	}

	writeRule(sb, "SECTIONS")
	for _, s := range sections {
		fmt.Fprintf(sb, "  %-30s %d\n", s.Name, s.Pages)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writePages(sb *strings.Builder, export *Export) {
	writeRule(sb, "PAGES")
	if len(export.Rows) == 0 {
		sb.WriteString("  No pages embedded\n\n")
		return
	}

	for i, r := range export.Rows {
		fmt.Fprintf(sb, "  [%d] %s\n", i+1, r.Title)
		fmt.Fprintf(sb, "      %s\n", r.URL)
		if w.verbose && r.ContentPreview != "" {
			fmt.Fprintf(sb, "      %s\n", r.ContentPreview)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by vectorize\n")
	sb.WriteString("https://github.com/nao1215/vectorize\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}

func writeRule(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

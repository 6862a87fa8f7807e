// Package report writes the export of a vectorize run.
//
// An Export holds one row per embedded page: URL, title and content
// preview. Embedding vectors are never part of an export.
//
// Writers:
//   - SimpleWriter: human-readable text for the terminal
//   - JSONWriter: {"status":"success","data":[...]} for tool integration
//   - MarkdownWriter: summary and page tables for sharing
//   - CSVWriter: one line per page for spreadsheets
package report

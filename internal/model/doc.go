// Package model defines the core data structures shared across vectorize.
//
// This package contains the following main types:
//   - PageRecord: A crawled page with its title, text, and embedding vector
//   - ExportRow: The export form of a page (url, title, content preview)
//
// Models live in their own package so that the crawler, embedding, reduce,
// plot, and report packages can share them without import cycles.
//
// Vectors are kept out of every serialized form. Only ExportRow and the
// JSON encoding of PageRecord leave the process, and neither carries the
// embedding.
package model

// Package embedding turns page text into embedding vectors.
//
// An Embedder talks to one provider: Gemini (GeminiEmbedder) or a
// text-embeddings-inference server (TEIEmbedder). Client adds the input and
// error contract on top of any Embedder, and Processor embeds whole crawls.
//
// # Failure policy
//
// Processor.EmbedMany never sends blank text: records without text are
// skipped and do not appear in the output. A failed call for a record with
// text does not abort the batch; the record gets a zero vector and
// PageRecord.Degraded is set, so it stays distinguishable from a genuine
// embedding downstream.
//
// Calls are issued one at a time.
package embedding

// Package ingestion provides pipeline orchestration for adding and
// removing documents.
//
// The Pipeline type manages the ingestion workflow for documents, including:
//   - Splitting document text into overlapping chunks
//   - Generating embeddings for each chunk, batched across a worker pool
//   - Writing the document and its chunks in a single transaction
//
// Ingestion is all-or-nothing: a failed embedding or write leaves no trace
// of the document in storage. Operations on the same document are mutually
// exclusive, while different documents process in parallel.
package ingestion

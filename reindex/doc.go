// Package reindex rebuilds the chunk vectors of every indexed document
// with the configured embedding model.
//
// Switching embedding models changes vector geometry, so existing chunks
// must be re-embedded before queries against the new model return useful
// results. The package processes chunks in batches with retry and
// exponential backoff around embedding calls, normalizes the resulting
// vectors, and reports progress while it runs.
package reindex

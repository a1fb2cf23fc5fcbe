package storage

import (
	"context"

	"github.com/poiesic/docquery/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// DocumentRepository provides operations for managing document records.
type DocumentRepository interface {
	Repository
	// AddDocument stores a document record.
	// Sets CreatedAt if not already set and returns the stored document.
	AddDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// ListDocuments retrieves all document records, ordered by creation
	// time descending (most recent first).
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// DeleteDocument removes a document record by ID.
	// Returns ErrNotFound if the document doesn't exist.
	// Chunks are not touched; callers remove them separately within the
	// same transaction.
	DeleteDocument(ctx context.Context, id string) error
}

// ChunkRepository provides operations for managing chunk records and
// brute-force similarity search over their vectors.
type ChunkRepository interface {
	Repository
	// AddChunks adds one or more chunk records to storage.
	// The first chunk ever stored pins the index dimensionality; any
	// chunk whose vector length differs afterwards fails with
	// ErrDimensionMismatch and nothing is written.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// UpdateChunks rewrites existing chunk records in place, keyed by
	// document ID and position. All vectors in the batch must share one
	// dimensionality; that dimensionality becomes the pinned index
	// dimensionality, which allows switching embedding models. While a
	// model switch is in flight the index holds mixed dimensionalities
	// and chunks not yet rewritten are excluded from search results.
	UpdateChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// GetChunksByDocument retrieves all chunks belonging to a document,
	// ordered by position ascending.
	GetChunksByDocument(ctx context.Context, documentID string) ([]*core.Chunk, error)

	// DeleteChunksByDocument removes all chunks belonging to a document.
	// Returns the number of chunks removed. Deleting chunks of an unknown
	// document is not an error; it removes zero chunks.
	DeleteChunksByDocument(ctx context.Context, documentID string) (int, error)

	// FindSimilar finds chunks similar to the given vector.
	// Returns candidates with similarity >= minSimilarity, up to limit results.
	// Results are ordered by similarity score (highest first); ties are
	// broken by position ascending, then document ID, so repeated queries
	// return identical orderings.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.Candidate, error)

	// Dimension reports the pinned index dimensionality.
	// Returns 0 with a nil error while the index is still empty.
	Dimension(ctx context.Context) (int, error)
}

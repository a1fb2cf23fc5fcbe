package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error wrapping ErrEmbedding if generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times,
	// but the result is equivalent: embeddings are returned in input order and
	// match what N single calls would produce.
	// Returns an error wrapping ErrEmbedding if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// StreamFunc receives completion tokens as they arrive from the backend.
// Returning an error aborts the stream.
type StreamFunc func(token string) error

// Generator produces streamed completions from a language-model backend.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Healthy performs a lightweight liveness probe against the backend.
	// A nil return means the backend is ready to accept a full request.
	Healthy(ctx context.Context) error

	// GenerateStream requests a completion for prompt and invokes fn for
	// each token in arrival order. It returns once the stream is complete
	// or on the first failure. Errors wrap ErrGeneration.
	GenerateStream(ctx context.Context, prompt string, fn StreamFunc) error
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and Generator instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the completion streaming service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}

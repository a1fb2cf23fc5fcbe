package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/docquery/ai"
	"github.com/poiesic/docquery/core"
	"github.com/poiesic/docquery/storage"
)

const (
	// DefaultTopK is the default maximum number of candidates returned.
	DefaultTopK = 5

	// DefaultThreshold is the default minimum similarity score.
	DefaultThreshold = 0.5
)

// Engine retrieves the chunks most relevant to a question.
//
// Retrieval is best-effort: a failing embedder or index degrades the
// result to zero candidates instead of failing the query. The Monitor
// hooks expose degradations to callers that need to distinguish an empty
// index from a broken one.
type Engine struct {
	chunkRepository storage.ChunkRepository
	embedder        ai.Embedder
	topK            int
	threshold       float32
	logger          *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithTopK sets the default maximum number of candidates.
func WithTopK(k int) Option {
	return func(e *Engine) error {
		if k <= 0 {
			return ErrInvalidTopK
		}
		e.topK = k
		return nil
	}
}

// WithThreshold sets the default minimum similarity score.
func WithThreshold(threshold float32) Option {
	return func(e *Engine) error {
		if threshold < -1 || threshold > 1 {
			return ErrInvalidThreshold
		}
		e.threshold = threshold
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates a new retrieval engine.
func NewEngine(
	chunkRepository storage.ChunkRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Engine, error) {
	if chunkRepository == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	e := &Engine{
		chunkRepository: chunkRepository,
		embedder:        provider.Embedder(),
		topK:            DefaultTopK,
		threshold:       DefaultThreshold,
		logger:          slog.Default().With("component", "retrieval"),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// QueryOption overrides engine defaults for a single query.
type QueryOption func(*querySettings)

type querySettings struct {
	topK      int
	threshold float32
}

// WithQueryTopK overrides the maximum number of candidates for one query.
// Non-positive values fall back to the engine default.
func WithQueryTopK(k int) QueryOption {
	return func(s *querySettings) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithQueryThreshold overrides the similarity threshold for one query.
func WithQueryThreshold(threshold float32) QueryOption {
	return func(s *querySettings) {
		if threshold >= -1 && threshold <= 1 {
			s.threshold = threshold
		}
	}
}

// Retrieve finds the chunks most similar to the question.
// Returns candidates ordered by score descending; equal scores order by
// position, then document ID.
func (e *Engine) Retrieve(ctx context.Context, question string, opts ...QueryOption) ([]*core.Candidate, error) {
	return e.RetrieveWithMonitor(ctx, question, nil, opts...)
}

// RetrieveWithMonitor finds relevant chunks with observation hooks.
// The monitor receives callbacks at each stage of retrieval, including a
// Degraded callback when the embedder or index fails and the query
// continues with zero candidates.
func (e *Engine) RetrieveWithMonitor(ctx context.Context, question string, monitor Monitor, opts ...QueryOption) ([]*core.Candidate, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	if strings.TrimSpace(question) == "" {
		return nil, core.ErrEmptyQuestion
	}

	settings := querySettings{topK: e.topK, threshold: e.threshold}
	for _, opt := range opts {
		opt(&settings)
	}

	monitor.Start(question)

	embedding, err := e.embedder.EmbedText(ctx, question)
	if err != nil {
		// A dead embedder degrades retrieval to zero candidates; the
		// caller still gets an answer path
		e.logger.Warn("embedding failed, retrieval degraded", "err", err)
		monitor.Degraded(StageEmbedding, err)
		monitor.Finish(nil)
		return []*core.Candidate{}, nil
	}
	// Stored vectors are unit length; the query vector must be too, or
	// dot-product scores leave the [0, 1] range
	embedding = ai.NormalizeVector(embedding)
	monitor.AfterEmbedding(embedding)

	candidates, err := e.chunkRepository.FindSimilar(ctx, embedding, settings.threshold, settings.topK)
	if err != nil {
		e.logger.Warn("index search failed, retrieval degraded", "err", err)
		monitor.Degraded(StageSearch, err)
		monitor.Finish(nil)
		return []*core.Candidate{}, nil
	}

	if candidates == nil {
		candidates = []*core.Candidate{}
	}

	e.logger.Debug("retrieved candidates",
		"count", len(candidates),
		"top_k", settings.topK,
		"threshold", settings.threshold)
	monitor.Finish(candidates)

	return candidates, nil
}

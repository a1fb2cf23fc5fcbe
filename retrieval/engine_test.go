package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/docquery/ai/mock"
	"github.com/poiesic/docquery/core"
	"github.com/poiesic/docquery/storage"
	"github.com/poiesic/docquery/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMonitor captures monitor callbacks for assertions.
type recordingMonitor struct {
	started       bool
	embedded      bool
	degradedStage string
	degradedErr   error
	finished      []*core.Candidate
}

func (m *recordingMonitor) Start(_ string)             { m.started = true }
func (m *recordingMonitor) AfterEmbedding(_ []float32) { m.embedded = true }
func (m *recordingMonitor) Degraded(stage string, err error) {
	m.degradedStage = stage
	m.degradedErr = err
}
func (m *recordingMonitor) Finish(candidates []*core.Candidate) { m.finished = candidates }

func newTestEngine(t *testing.T, opts ...Option) (*Engine, storage.ChunkRepository, *mock.MockProvider) {
	t.Helper()

	_, chunkRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		chunkRepo.Close()
		backend.Close()
	})

	provider := mock.NewMockProvider()
	engine, err := NewEngine(chunkRepo, provider, opts...)
	require.NoError(t, err)

	return engine, chunkRepo, provider.(*mock.MockProvider)
}

func seedChunks(t *testing.T, chunkRepo storage.ChunkRepository, chunks ...*core.Chunk) {
	t.Helper()
	_, err := chunkRepo.AddChunks(context.Background(), chunks...)
	require.NoError(t, err)
}

func TestNewEngine_Validation(t *testing.T) {
	_, chunkRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		chunkRepo.Close()
		backend.Close()
	}()

	_, err = NewEngine(nil, mock.NewMockProvider())
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)

	_, err = NewEngine(chunkRepo, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)

	_, err = NewEngine(chunkRepo, mock.NewMockProvider(), WithTopK(0))
	assert.ErrorIs(t, err, ErrInvalidTopK)

	_, err = NewEngine(chunkRepo, mock.NewMockProvider(), WithThreshold(1.5))
	assert.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestRetrieve_EmptyQuestion(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.Retrieve(context.Background(), "   ")
	assert.ErrorIs(t, err, core.ErrEmptyQuestion)
}

func TestRetrieve_RanksByScore(t *testing.T) {
	engine, chunkRepo, provider := newTestEngine(t, WithThreshold(0.1))
	ctx := context.Background()

	seedChunks(t, chunkRepo,
		&core.Chunk{DocumentId: "doc-1", Position: 0, Text: "close match", Vector: []float32{1, 0, 0}},
		&core.Chunk{DocumentId: "doc-1", Position: 1, Text: "partial match", Vector: []float32{0.5, 0.5, 0}},
		&core.Chunk{DocumentId: "doc-1", Position: 2, Text: "unrelated", Vector: []float32{0, 0, 1}},
	)

	provider.GetMockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}

	candidates, err := engine.Retrieve(ctx, "what matches closely?")
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "close match", candidates[0].Chunk.Text)
	assert.Equal(t, "partial match", candidates[1].Chunk.Text)
	assert.Greater(t, candidates[0].Score, candidates[1].Score)
}

func TestRetrieve_NormalizesQueryEmbedding(t *testing.T) {
	engine, chunkRepo, provider := newTestEngine(t)
	ctx := context.Background()

	seedChunks(t, chunkRepo,
		&core.Chunk{DocumentId: "doc-1", Position: 0, Text: "match", Vector: []float32{0.6, 0.8}},
	)

	// A raw, non-unit embedding must not inflate scores past 1
	provider.GetMockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{3, 4}, nil
	}

	candidates, err := engine.Retrieve(ctx, "a question")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.InDelta(t, 1.0, candidates[0].Score, 1e-6)
	assert.LessOrEqual(t, candidates[0].Score, float32(1.0)+1e-6)
}

func TestRetrieve_TopKApplied(t *testing.T) {
	engine, chunkRepo, provider := newTestEngine(t, WithTopK(2), WithThreshold(0.1))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedChunks(t, chunkRepo, &core.Chunk{
			DocumentId: "doc-1", Position: i, Text: "chunk", Vector: []float32{1, 0, 0},
		})
	}

	provider.GetMockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}

	candidates, err := engine.Retrieve(ctx, "anything")
	require.NoError(t, err)
	assert.Len(t, candidates, 2)

	// Per-query override wins over the engine default
	candidates, err = engine.Retrieve(ctx, "anything", WithQueryTopK(4))
	require.NoError(t, err)
	assert.Len(t, candidates, 4)
}

func TestRetrieve_ThresholdFiltersAll(t *testing.T) {
	engine, chunkRepo, provider := newTestEngine(t)
	ctx := context.Background()

	seedChunks(t, chunkRepo,
		&core.Chunk{DocumentId: "doc-1", Position: 0, Text: "unrelated", Vector: []float32{0, 0, 1}},
	)

	provider.GetMockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}

	candidates, err := engine.Retrieve(ctx, "nothing matches this")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestRetrieve_EmbeddingFailureDegrades(t *testing.T) {
	engine, chunkRepo, provider := newTestEngine(t)
	ctx := context.Background()

	seedChunks(t, chunkRepo,
		&core.Chunk{DocumentId: "doc-1", Position: 0, Text: "chunk", Vector: []float32{1, 0, 0}},
	)

	boom := errors.New("embedder down")
	provider.GetMockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, boom
	}

	monitor := &recordingMonitor{}
	candidates, err := engine.RetrieveWithMonitor(ctx, "a question", monitor)
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Equal(t, StageEmbedding, monitor.degradedStage)
	assert.ErrorIs(t, monitor.degradedErr, boom)
}

func TestRetrieve_IndexFailureDegrades(t *testing.T) {
	engine, chunkRepo, provider := newTestEngine(t)
	ctx := context.Background()

	seedChunks(t, chunkRepo,
		&core.Chunk{DocumentId: "doc-1", Position: 0, Text: "chunk", Vector: []float32{1, 0, 0}},
	)

	// A query vector with the wrong dimensionality makes the index fail
	provider.GetMockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}

	monitor := &recordingMonitor{}
	candidates, err := engine.RetrieveWithMonitor(ctx, "a question", monitor)
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Equal(t, StageSearch, monitor.degradedStage)
	assert.ErrorIs(t, monitor.degradedErr, storage.ErrDimensionMismatch)
}

func TestRetrieve_MonitorSequence(t *testing.T) {
	engine, chunkRepo, provider := newTestEngine(t, WithThreshold(0.1))
	ctx := context.Background()

	seedChunks(t, chunkRepo,
		&core.Chunk{DocumentId: "doc-1", Position: 0, Text: "chunk", Vector: []float32{1, 0, 0}},
	)

	provider.GetMockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}

	monitor := &recordingMonitor{}
	candidates, err := engine.RetrieveWithMonitor(ctx, "a question", monitor)
	require.NoError(t, err)

	assert.True(t, monitor.started)
	assert.True(t, monitor.embedded)
	assert.Empty(t, monitor.degradedStage)
	assert.Equal(t, candidates, monitor.finished)
}

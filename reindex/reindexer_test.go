package reindex

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/poiesic/docquery/ai/mock"
	"github.com/poiesic/docquery/core"
	"github.com/poiesic/docquery/storage"
	"github.com/poiesic/docquery/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		BatchSize:      2,
		ReportInterval: 1,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
	}
}

func seedDocument(t *testing.T, docRepo storage.DocumentRepository, chunkRepo storage.ChunkRepository, id string, texts ...string) {
	t.Helper()

	ctx := context.Background()
	_, err := docRepo.AddDocument(ctx, &core.Document{
		Id: id, Name: id + ".txt", FileType: "txt", ChunkCount: len(texts),
	})
	require.NoError(t, err)

	chunks := make([]*core.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &core.Chunk{DocumentId: id, Position: i, Text: text, Vector: []float32{1, 0, 0}}
	}
	_, err = chunkRepo.AddChunks(ctx, chunks...)
	require.NoError(t, err)
}

func TestReindexer_Validation(t *testing.T) {
	docRepo, chunkRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	embedder := mock.NewMockEmbedder()

	_, err = NewReindexer(nil, chunkRepo, embedder, nil, nil)
	assert.ErrorIs(t, err, ErrDocumentRepositoryRequired)

	_, err = NewReindexer(docRepo, nil, embedder, nil, nil)
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)

	_, err = NewReindexer(docRepo, chunkRepo, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestReindexer_EmptyIndex(t *testing.T) {
	docRepo, chunkRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	var buf bytes.Buffer
	r, err := NewReindexer(docRepo, chunkRepo, mock.NewMockEmbedder(), testConfig(), &buf)
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))
	assert.Contains(t, buf.String(), "No chunks found")
}

func TestReindexer_RewritesAllVectors(t *testing.T) {
	docRepo, chunkRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	seedDocument(t, docRepo, chunkRepo, "doc-1", "alpha", "beta", "gamma")
	seedDocument(t, docRepo, chunkRepo, "doc-2", "delta")

	// New model with a wider dimensionality
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{2, 0, 0, 0}
		}
		return out, nil
	}

	var buf bytes.Buffer
	r, err := NewReindexer(docRepo, chunkRepo, embedder, testConfig(), &buf)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	ctx := context.Background()
	dim, err := chunkRepo.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, dim)

	for _, id := range []string{"doc-1", "doc-2"} {
		chunks, err := chunkRepo.GetChunksByDocument(ctx, id)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)
		for _, chunk := range chunks {
			require.Len(t, chunk.Vector, 4)

			// Written vectors are unit length
			var magnitude float64
			for _, v := range chunk.Vector {
				magnitude += float64(v) * float64(v)
			}
			assert.InDelta(t, 1.0, math.Sqrt(magnitude), 1e-6)
		}
	}

	assert.Contains(t, buf.String(), "Reindex complete")
	assert.Contains(t, buf.String(), "4 chunks")
}

func TestReindexer_EmbeddingFailureStopsRun(t *testing.T) {
	docRepo, chunkRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	seedDocument(t, docRepo, chunkRepo, "doc-1", "alpha", "beta")

	boom := errors.New("embedding backend down")
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, boom
	}

	r, err := NewReindexer(docRepo, chunkRepo, embedder, testConfig(), nil)
	require.NoError(t, err)

	err = r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "doc-1")

	// Stored vectors are untouched after the failed run
	chunks, err := chunkRepo.GetChunksByDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	for _, chunk := range chunks {
		assert.Equal(t, []float32{1, 0, 0}, chunk.Vector)
	}
}

func TestReindexer_ContextCancelled(t *testing.T) {
	docRepo, chunkRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	seedDocument(t, docRepo, chunkRepo, "doc-1", "alpha")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := NewReindexer(docRepo, chunkRepo, mock.NewMockEmbedder(), testConfig(), nil)
	require.NoError(t, err)

	err = r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

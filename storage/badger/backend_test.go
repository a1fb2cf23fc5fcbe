package badger

import (
	"context"
	"testing"

	"github.com/poiesic/docquery/core"
	"github.com/poiesic/docquery/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := t.TempDir()
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)

	assert.False(t, backend.IsClosed())

	err = backend.Close()
	require.NoError(t, err)

	assert.True(t, backend.IsClosed())
}

func TestFindSimilar_NoChunks(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	vector := []float32{0.1, 0.2, 0.3}

	results, err := backend.FindSimilar(ctx, vector, 0.5, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilar_InvalidLimit(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	_, err = backend.FindSimilar(context.Background(), []float32{1, 0, 0}, 0.5, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestFindSimilar_WithChunks(t *testing.T) {
	_, chunkRepo, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		chunkRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	chunks := []*core.Chunk{
		{
			DocumentId: "doc-1",
			Position:   0,
			Text:       "first chunk",
			Vector:     []float32{1.0, 0.0, 0.0}, // Very similar to query
		},
		{
			DocumentId: "doc-1",
			Position:   1,
			Text:       "second chunk",
			Vector:     []float32{0.9, 0.1, 0.0}, // Somewhat similar
		},
		{
			DocumentId: "doc-1",
			Position:   2,
			Text:       "third chunk",
			Vector:     []float32{0.0, 0.0, 1.0}, // Not similar
		},
	}

	added, err := chunkRepo.AddChunks(ctx, chunks...)
	require.NoError(t, err)
	require.Len(t, added, 3)

	queryVector := []float32{1.0, 0.0, 0.0}
	results, err := backend.FindSimilar(ctx, queryVector, 0.8, 10)
	require.NoError(t, err)

	// Only the two similar chunks pass the threshold
	require.Len(t, results, 2)
	assert.Equal(t, "first chunk", results[0].Chunk.Text)
	assert.Equal(t, "second chunk", results[1].Chunk.Text)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestFindSimilar_LimitApplied(t *testing.T) {
	_, chunkRepo, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		chunkRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	var chunks []*core.Chunk
	for i := 0; i < 5; i++ {
		chunks = append(chunks, &core.Chunk{
			DocumentId: "doc-1",
			Position:   i,
			Text:       "chunk",
			Vector:     []float32{1.0, 0.0, 0.0},
		})
	}
	_, err = chunkRepo.AddChunks(ctx, chunks...)
	require.NoError(t, err)

	results, err := backend.FindSimilar(ctx, []float32{1.0, 0.0, 0.0}, 0.5, 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestFindSimilar_TieBreakDeterministic(t *testing.T) {
	_, chunkRepo, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		chunkRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	// Identical vectors produce identical scores; ordering must fall
	// back to position, then document ID
	chunks := []*core.Chunk{
		{DocumentId: "doc-b", Position: 1, Text: "b1", Vector: []float32{1, 0, 0}},
		{DocumentId: "doc-a", Position: 1, Text: "a1", Vector: []float32{1, 0, 0}},
		{DocumentId: "doc-a", Position: 0, Text: "a0", Vector: []float32{1, 0, 0}},
	}
	_, err = chunkRepo.AddChunks(ctx, chunks...)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		results, err := backend.FindSimilar(ctx, []float32{1, 0, 0}, 0.5, 10)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "a0", results[0].Chunk.Text)
		assert.Equal(t, "a1", results[1].Chunk.Text)
		assert.Equal(t, "b1", results[2].Chunk.Text)
	}
}

func TestFindSimilar_QueryDimensionMismatch(t *testing.T) {
	_, chunkRepo, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		chunkRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	_, err = chunkRepo.AddChunks(ctx, &core.Chunk{
		DocumentId: "doc-1",
		Position:   0,
		Text:       "chunk",
		Vector:     []float32{1, 0, 0},
	})
	require.NoError(t, err)

	_, err = backend.FindSimilar(ctx, []float32{1, 0}, 0.5, 10)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}

func TestDotProduct(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"identical unit", []float32{1, 0}, []float32{1, 0}, 1},
		{"mixed", []float32{0.5, 0.5}, []float32{0.5, 0.5}, 0.5},
		{"length mismatch uses shorter", []float32{1, 1, 1}, []float32{1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, dotProduct(tt.a, tt.b), 1e-6)
		})
	}
}

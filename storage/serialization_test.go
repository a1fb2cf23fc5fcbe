package storage

import (
	"testing"
	"time"

	"github.com/poiesic/docquery/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotNil(t, data)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.Error(t, err)
}

func TestMarshalUnmarshalDocument(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name string
		doc  *core.Document
	}{
		{
			name: "minimal document",
			doc: &core.Document{
				Id:        "8c5a1f9e-0000-4000-8000-000000000001",
				Name:      "notes.txt",
				FileType:  "txt",
				CreatedAt: now,
			},
		},
		{
			name: "document with chunk count",
			doc: &core.Document{
				Id:         "8c5a1f9e-0000-4000-8000-000000000002",
				Name:       "handbook.md",
				FileType:   "md",
				ChunkCount: 42,
				CreatedAt:  now,
			},
		},
		{
			name: "unicode name",
			doc: &core.Document{
				Id:        "8c5a1f9e-0000-4000-8000-000000000003",
				Name:      "приручение-драконов 🐉.txt",
				FileType:  "txt",
				CreatedAt: now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalDocument(tt.doc)
			require.NotNil(t, data)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalDocument(data)
			require.NoError(t, err)
			require.NotNil(t, decoded)

			assert.Equal(t, tt.doc.Id, decoded.Id)
			assert.Equal(t, tt.doc.Name, decoded.Name)
			assert.Equal(t, tt.doc.FileType, decoded.FileType)
			assert.Equal(t, tt.doc.ChunkCount, decoded.ChunkCount)
			assert.True(t, tt.doc.CreatedAt.Equal(decoded.CreatedAt))
		})
	}
}

func TestMarshalUnmarshalChunk(t *testing.T) {
	tests := []struct {
		name  string
		chunk *core.Chunk
	}{
		{
			name: "chunk without vector",
			chunk: &core.Chunk{
				Id:         core.ID(1),
				DocumentId: "doc-1",
				Position:   0,
				Text:       "The first window of tokens.",
				TokenCount: 5,
			},
		},
		{
			name: "chunk with vector",
			chunk: &core.Chunk{
				Id:         core.ID(2),
				DocumentId: "doc-1",
				Position:   3,
				Text:       "A later window with an embedding attached.",
				TokenCount: 7,
				Vector:     []float32{0.1, 0.2, 0.3, 0.4, 0.5},
			},
		},
		{
			name: "chunk with long vector",
			chunk: &core.Chunk{
				Id:         core.IDFromContent("doc-2:0:long"),
				DocumentId: "doc-2",
				Position:   0,
				Text:       "long",
				TokenCount: 1,
				Vector:     make([]float32, 1536), // typical OpenAI embedding size
			},
		},
		{
			name: "unicode text",
			chunk: &core.Chunk{
				Id:         core.ID(9),
				DocumentId: "doc-3",
				Position:   1,
				Text:       "Hello 世界 🌍 émojis",
				TokenCount: 4,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalChunk(tt.chunk)
			require.NotNil(t, data)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalChunk(data)
			require.NoError(t, err)
			require.NotNil(t, decoded)

			assert.Equal(t, tt.chunk.Id, decoded.Id)
			assert.Equal(t, tt.chunk.DocumentId, decoded.DocumentId)
			assert.Equal(t, tt.chunk.Position, decoded.Position)
			assert.Equal(t, tt.chunk.Text, decoded.Text)
			assert.Equal(t, tt.chunk.TokenCount, decoded.TokenCount)
			// Handle nil vs empty slice
			if len(tt.chunk.Vector) == 0 {
				assert.Empty(t, decoded.Vector)
			} else {
				assert.Equal(t, tt.chunk.Vector, decoded.Vector)
			}
		})
	}
}

func TestUnmarshalChunk_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"partial data", []byte{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalChunk(tt.data)
			assert.Error(t, err)
		})
	}
}

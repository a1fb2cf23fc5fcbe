// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reindex

import (
	"context"

	"github.com/poiesic/docquery/core"
	"github.com/poiesic/docquery/storage"
)

const (
	// DefaultBatchSize is the default number of chunks per embedding call
	DefaultBatchSize = 100
)

// ChunkIterator walks every chunk of every indexed document in batches.
type ChunkIterator struct {
	documents storage.DocumentRepository
	chunks    storage.ChunkRepository
	batchSize int
}

// NewChunkIterator creates a new chunk iterator.
// batchSize: number of chunks per batch (must be > 0)
func NewChunkIterator(documents storage.DocumentRepository, chunks storage.ChunkRepository, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ChunkIterator{
		documents: documents,
		chunks:    chunks,
		batchSize: batchSize,
	}
}

// ForEach iterates over the chunks of all documents, calling fn once per
// batch. Batches never span documents, so a partially failed run leaves
// whole documents either re-embedded or untouched.
// Iteration stops on the first error from fn. Context cancellation is
// checked between batches.
func (it *ChunkIterator) ForEach(ctx context.Context, fn func(doc *core.Document, batch []*core.Chunk) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	docs, err := it.documents.ListDocuments(ctx)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		chunks, err := it.chunks.GetChunksByDocument(ctx, doc.Id)
		if err != nil {
			return err
		}

		for i := 0; i < len(chunks); i += it.batchSize {
			end := i + it.batchSize
			if end > len(chunks) {
				end = len(chunks)
			}

			if err := fn(doc, chunks[i:end]); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
	}

	return nil
}

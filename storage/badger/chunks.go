package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docquery/core"
	"github.com/poiesic/docquery/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	return &ChunkRepository{backend: backend}, nil
}

// Close releases repository resources. The backend owns the database
// handle, so this is a no-op.
func (r *ChunkRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *ChunkRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// FindSimilar delegates to the backend.
func (r *ChunkRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.Candidate, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// AddChunks adds one or more chunk records to storage.
// The first stored vector pins the index dimensionality. A chunk whose
// vector length differs fails the whole call with ErrDimensionMismatch
// before anything is written.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
	}

	err := r.backend.withTx(ctx, func(tx *badger.Txn) error {
		pinned, err := readDimension(tx)
		if err != nil {
			return err
		}

		// Dimension check runs over the full batch before any write
		dim := pinned
		for _, chunk := range chunks {
			if len(chunk.Vector) == 0 {
				continue
			}
			if dim == 0 {
				dim = len(chunk.Vector)
				continue
			}
			if len(chunk.Vector) != dim {
				return fmt.Errorf("%w: chunk %d has %d dimensions, index has %d",
					storage.ErrDimensionMismatch, chunk.Id, len(chunk.Vector), dim)
			}
		}

		// Write the meta key only when pinning for the first time, so
		// steady-state ingests don't contend on it
		if dim != pinned {
			if err := tx.Set(makeVectorDimensionKey(), encodeDimension(dim)); err != nil {
				return err
			}
		}

		for _, chunk := range chunks {
			if chunk.Id == 0 {
				chunk.Id = core.ChunkID(chunk.DocumentId, chunk.Position, chunk.Text)
			}

			key := makeChunkKey(chunk.DocumentId, chunk.Position)
			value := storage.MarshalChunk(chunk)
			if err := tx.Set(key, value); err != nil {
				return err
			}
		}
		return nil
	}, true)

	return chunks, err
}

// UpdateChunks rewrites existing chunk records in place and repins the
// index dimensionality to the batch's. The batch itself must be
// dimension-consistent; nothing is written otherwise.
func (r *ChunkRepository) UpdateChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
	}

	err := r.backend.withTx(ctx, func(tx *badger.Txn) error {
		dim := 0
		for _, chunk := range chunks {
			if len(chunk.Vector) == 0 {
				continue
			}
			if dim == 0 {
				dim = len(chunk.Vector)
				continue
			}
			if len(chunk.Vector) != dim {
				return fmt.Errorf("%w: chunk %d has %d dimensions, batch has %d",
					storage.ErrDimensionMismatch, chunk.Id, len(chunk.Vector), dim)
			}
		}

		if dim != 0 {
			pinned, err := readDimension(tx)
			if err != nil {
				return err
			}
			if dim != pinned {
				if err := tx.Set(makeVectorDimensionKey(), encodeDimension(dim)); err != nil {
					return err
				}
			}
		}

		for _, chunk := range chunks {
			key := makeChunkKey(chunk.DocumentId, chunk.Position)
			if _, err := tx.Get(key); err != nil {
				if err == badger.ErrKeyNotFound {
					return fmt.Errorf("%w: chunk %s/%d", storage.ErrNotFound, chunk.DocumentId, chunk.Position)
				}
				return err
			}
			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}
		}
		return nil
	}, true)

	return chunks, err
}

// GetChunksByDocument retrieves all chunks of a document, ordered by
// position ascending.
func (r *ChunkRepository) GetChunksByDocument(ctx context.Context, documentID string) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.withTx(ctx, func(tx *badger.Txn) error {
		// Keys embed the position in BigEndian order, so prefix iteration
		// already yields position-ascending order
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkDocumentPrefix(documentID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if chunk != nil {
				results = append(results, chunk)
			}
		}
		return nil
	}, false)

	return results, err
}

// DeleteChunksByDocument removes all chunks of a document and reports how
// many were removed.
func (r *ChunkRepository) DeleteChunksByDocument(ctx context.Context, documentID string) (int, error) {
	deleted := 0
	err := r.backend.withTx(ctx, func(tx *badger.Txn) error {
		// Collect keys first; deleting while iterating invalidates the
		// iterator
		var keys [][]byte
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkDocumentPrefix(documentID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)

		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		deleted = len(keys)
		return nil
	}, true)

	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Dimension reports the pinned index dimensionality, or 0 while the index
// is still empty.
func (r *ChunkRepository) Dimension(ctx context.Context) (int, error) {
	var dim int
	err := r.backend.withTx(ctx, func(tx *badger.Txn) error {
		var err error
		dim, err = readDimension(tx)
		return err
	}, false)
	return dim, err
}

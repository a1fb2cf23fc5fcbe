package badger

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/docquery/core"
	"github.com/poiesic/docquery/storage"
)

// maxConflictRetries bounds how many times a write transaction is re-run
// after an optimistic concurrency conflict.
const maxConflictRetries = 5

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// txContextKey carries an ambient transaction through a context so that
// repository calls made inside WithTransaction share a single commit.
type txContextKey struct{}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist.
func OpenBackend(filePath string, inMemory bool) (*Backend, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// Ensure directory exists
		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(filePath, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(filePath)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	opts.Logger = &badgerLoggerAdapter{logger: slog.Default()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:     db,
		logger: slog.Default(),
	}, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// withTx executes a function within a BadgerDB transaction.
// If the context carries an ambient transaction from WithTransaction, fn
// joins it and the outer call owns the commit. Otherwise a fresh
// transaction is created and committed here for writes.
func (b *Backend) withTx(ctx context.Context, fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}

	if tx, ok := ctx.Value(txContextKey{}).(*badger.Txn); ok {
		return fn(tx)
	}

	if !isWrite {
		tx := b.db.NewTransaction(false)
		defer tx.Discard()
		return fn(tx)
	}

	return b.runWrite(fn)
}

// runWrite runs fn in a fresh read-write transaction, retrying on commit
// conflicts. Badger's optimistic concurrency control aborts a commit when
// another transaction wrote a key this one read, so fn must be safe to
// re-run.
func (b *Backend) runWrite(fn func(tx *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = func() error {
			tx := b.db.NewTransaction(true)
			defer tx.Discard()
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit()
		}()
		if err != badger.ErrConflict {
			return err
		}
		b.logger.Debug("retrying conflicting transaction", "attempt", attempt+1)
	}
	return err
}

// WithTransaction executes a function within a single read-write transaction.
// Repository calls made with the context passed to fn share the transaction,
// so either all of their writes commit or none do.
// Implements the storage.Repository transaction contract.
func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}

	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = func() error {
			tx := b.db.NewTransaction(true)
			defer tx.Discard()
			if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
				return err
			}
			return tx.Commit()
		}()
		if err != badger.ErrConflict {
			return err
		}
		b.logger.Debug("retrying conflicting transaction", "attempt", attempt+1)
	}
	return err
}

// FindSimilar finds chunks similar to the given vector.
// Implements the storage.ChunkRepository search contract.
func (b *Backend) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.Candidate, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.Candidate

	err := b.withTx(ctx, func(tx *badger.Txn) error {
		// Reject queries whose dimensionality differs from the index
		dim, err := readDimension(tx)
		if err != nil {
			return err
		}
		if dim != 0 && len(vector) != dim {
			return fmt.Errorf("%w: query has %d dimensions, index has %d",
				storage.ErrDimensionMismatch, len(vector), dim)
		}

		// Iterate through all chunk records
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkRecordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()

			var chunk *core.Chunk
			err := item.Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if chunk == nil {
				continue
			}

			// Skip chunks without embeddings, and chunks whose vectors
			// were produced by a different model during a reindex
			if len(chunk.Vector) != len(vector) {
				continue
			}

			// Cosine similarity reduces to dot product for normalized vectors
			similarity := dotProduct(vector, chunk.Vector)

			if similarity >= minSimilarity {
				results = append(results, &core.Candidate{
					Chunk: chunk,
					Score: similarity,
				})
			}
		}

		return nil
	}, false)

	if err != nil {
		return nil, err
	}

	// Sort by similarity descending. Equal scores fall back to position
	// then document ID so repeated queries return identical orderings.
	slices.SortFunc(results, func(a, b *core.Candidate) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		if a.Chunk.Position != b.Chunk.Position {
			return a.Chunk.Position - b.Chunk.Position
		}
		return bytes.Compare([]byte(a.Chunk.DocumentId), []byte(b.Chunk.DocumentId))
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// readDimension reads the pinned index dimensionality inside a transaction.
// Returns 0 while the index is still empty.
func readDimension(tx *badger.Txn) (int, error) {
	item, err := tx.Get(makeVectorDimensionKey())
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return 0, nil
		}
		return 0, err
	}

	var dim int
	err = item.Value(func(val []byte) error {
		dim = decodeDimension(val)
		return nil
	})
	return dim, err
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

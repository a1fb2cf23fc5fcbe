package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docquery/ai"
	"github.com/poiesic/docquery/chunker"
	"github.com/poiesic/docquery/core"
	"github.com/poiesic/docquery/storage"
)

// defaultBatchSize is the number of chunk texts sent to the embedder in
// one request.
const defaultBatchSize = 32

// Pipeline orchestrates the ingestion and removal of documents.
// Ingestion is all-or-nothing: a document becomes visible only after all
// of its chunks are embedded and stored.
type Pipeline struct {
	documentRepository storage.DocumentRepository
	chunkRepository    storage.ChunkRepository
	embedder           ai.Embedder
	splitter           *chunker.Chunker
	embeddingPool      *ants.Pool
	batchSize          int
	locks              *keyedLocks
	logger             *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding batches.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}

		embeddingPool, err := ants.NewPool(size)
		if err != nil {
			return err
		}

		p.embeddingPool = embeddingPool
		return nil
	}
}

// WithBatchSize sets how many chunk texts go to the embedder per request.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithChunker sets a custom chunker.
// Default is a chunker with default window parameters.
func WithChunker(splitter *chunker.Chunker) Option {
	return func(p *Pipeline) error {
		if splitter != nil {
			p.splitter = splitter
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	documentRepository storage.DocumentRepository,
	chunkRepository storage.ChunkRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if documentRepository == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if chunkRepository == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	embeddingPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	splitter, err := chunker.New()
	if err != nil {
		embeddingPool.Release()
		return nil, err
	}

	p := &Pipeline{
		documentRepository: documentRepository,
		chunkRepository:    chunkRepository,
		embedder:           provider.Embedder(),
		splitter:           splitter,
		embeddingPool:      embeddingPool,
		batchSize:          defaultBatchSize,
		locks:              newKeyedLocks(),
		logger:             slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Ingest splits, embeds and stores a document, returning its record.
// The document and all of its chunks are written in a single transaction
// after every embedding succeeds; a failure anywhere leaves storage
// untouched.
func (p *Pipeline) Ingest(ctx context.Context, name, fileType, text string) (*core.Document, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidDocument, core.ErrEmptyDocumentName)
	}

	pieces := p.splitter.Split(text)
	if len(pieces) == 0 {
		return nil, ErrNoContent
	}

	docID := uuid.NewString()

	p.logger.Info("ingesting document",
		"document_id", docID,
		"name", name,
		"chunks", len(pieces))

	vectors, err := p.embedPieces(ctx, pieces)
	if err != nil {
		return nil, err
	}

	chunks := make([]*core.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &core.Chunk{
			Id:         core.ChunkID(docID, piece.Position, piece.Text),
			DocumentId: docID,
			Position:   piece.Position,
			Text:       piece.Text,
			TokenCount: piece.TokenCount,
			Vector:     vectors[i],
		}
	}

	doc := &core.Document{
		Id:         docID,
		Name:       name,
		FileType:   fileType,
		ChunkCount: len(chunks),
	}

	p.locks.lock(docID)
	defer p.locks.unlock(docID)

	err = p.documentRepository.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := p.chunkRepository.AddChunks(txCtx, chunks...); err != nil {
			return err
		}
		_, err := p.documentRepository.AddDocument(txCtx, doc)
		return err
	})
	if err != nil {
		p.logger.Error("error storing document", "document_id", docID, "err", err)
		return nil, err
	}

	return doc, nil
}

// Delete removes a document and all of its chunks in a single transaction.
// Returns storage.ErrNotFound if the document doesn't exist.
func (p *Pipeline) Delete(ctx context.Context, documentID string) error {
	p.locks.lock(documentID)
	defer p.locks.unlock(documentID)

	return p.documentRepository.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := p.documentRepository.DeleteDocument(txCtx, documentID); err != nil {
			return err
		}

		deleted, err := p.chunkRepository.DeleteChunksByDocument(txCtx, documentID)
		if err != nil {
			return err
		}

		p.logger.Info("deleted document",
			"document_id", documentID,
			"chunks", deleted)
		return nil
	})
}

// embedPieces embeds all pieces, batching requests across the worker pool.
// Vectors come back in piece order. The first failing batch fails the
// whole call.
func (p *Pipeline) embedPieces(ctx context.Context, pieces []chunker.Piece) ([][]float32, error) {
	vectors := make([][]float32, len(pieces))

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		batchErr error
	)

	for start := 0; start < len(pieces); start += p.batchSize {
		end := start + p.batchSize
		if end > len(pieces) {
			end = len(pieces)
		}

		batch := pieces[start:end]
		offset := start

		wg.Add(1)
		submitErr := p.embeddingPool.Submit(func() {
			defer wg.Done()

			texts := make([]string, len(batch))
			for i, piece := range batch {
				texts[i] = piece.Text
			}

			embeddings, err := p.embedder.EmbedTexts(ctx, texts)
			if err != nil {
				errOnce.Do(func() { batchErr = err })
				return
			}
			if len(embeddings) != len(texts) {
				errOnce.Do(func() {
					batchErr = fmt.Errorf("embedding result mismatch. expected %d, received %d",
						len(texts), len(embeddings))
				})
				return
			}

			// Store unit vectors so similarity search can score with
			// a plain dot product
			for i := range embeddings {
				vectors[offset+i] = ai.NormalizeVector(embeddings[i])
			}
		})
		if submitErr != nil {
			wg.Done()
			errOnce.Do(func() { batchErr = submitErr })
			break
		}
	}

	wg.Wait()

	if batchErr != nil {
		p.logger.Error("error generating embeddings", "err", batchErr)
		return nil, batchErr
	}
	return vectors, nil
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}

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


// Package docquery answers natural-language questions over a local corpus
// of ingested documents. Documents are split into overlapping chunks,
// embedded, and stored in BadgerDB; questions are answered by retrieving
// the most similar chunks and streaming a grounded completion from an
// OpenAI-compatible language model.
package docquery

import (
	"io"
	"log/slog"

	"github.com/poiesic/docquery/ai"
	"github.com/poiesic/docquery/ai/openai"
	"github.com/poiesic/docquery/generation"
	"github.com/poiesic/docquery/ingestion"
	"github.com/poiesic/docquery/rag"
	"github.com/poiesic/docquery/reindex"
	"github.com/poiesic/docquery/retrieval"
	"github.com/poiesic/docquery/storage"
	"github.com/poiesic/docquery/storage/badger"
)

// System owns the storage backend, repositories, and AI provider, and
// hands out the pipeline and service components built on top of them.
type System struct {
	backend      *badger.Backend
	documentRepo storage.DocumentRepository
	chunkRepo    storage.ChunkRepository
	provider     ai.AIProvider
	logger       *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	inMemory bool
}

// WithAIConfig sets the AI provider configuration.
func WithAIConfig(config *ai.Config) SystemOption {
	return func(o *systemOptions) {
		o.aiConfig = config
	}
}

// WithProvider supplies a pre-built AI provider instead of constructing
// one from the AI configuration. Used by tests to inject mocks.
func WithProvider(provider ai.AIProvider) SystemOption {
	return func(o *systemOptions) {
		o.provider = provider
	}
}

// WithInMemoryStorage keeps all records in memory instead of on disk.
func WithInMemoryStorage() SystemOption {
	return func(o *systemOptions) {
		o.inMemory = true
	}
}

// Open opens the document index at filePath and wires up repositories
// and the AI provider.
func Open(filePath string, opts ...SystemOption) (*System, error) {
	options := &systemOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	documentRepo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	chunkRepo, err := badger.NewChunkRepository(backend)
	if err != nil {
		documentRepo.Close()
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			chunkRepo.Close()
			documentRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	return &System{
		backend:      backend,
		documentRepo: documentRepo,
		chunkRepo:    chunkRepo,
		provider:     provider,
		logger:       slog.Default(),
	}, nil
}

// Close releases the AI provider, repositories, and storage backend.
func (s *System) Close() error {
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}

	if err := s.chunkRepo.Close(); err != nil {
		s.logger.Error("error closing chunk repository", "err", err)
		return err
	}
	if err := s.documentRepo.Close(); err != nil {
		s.logger.Error("error closing document repository", "err", err)
		return err
	}

	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (s *System) DocumentRepository() storage.DocumentRepository {
	return s.documentRepo
}

func (s *System) ChunkRepository() storage.ChunkRepository {
	return s.chunkRepo
}

func (s *System) Provider() ai.AIProvider {
	return s.provider
}

func (s *System) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(s.documentRepo, s.chunkRepo, s.provider, opts...)
}

func (s *System) NewRetrievalEngine(opts ...retrieval.Option) (*retrieval.Engine, error) {
	return retrieval.NewEngine(s.chunkRepo, s.provider, opts...)
}

func (s *System) NewGenerationClient(opts ...generation.ClientOption) (*generation.Client, error) {
	return generation.NewClient(s.provider.Generator(), opts...)
}

func (s *System) NewAnswerService(
	engine *retrieval.Engine,
	prompts *generation.PromptBuilder,
	client *generation.Client,
	opts ...rag.Option,
) (*rag.Service, error) {
	return rag.NewService(engine, prompts, client, s.documentRepo, opts...)
}

func (s *System) NewReindexer(config *reindex.Config, progress io.Writer) (*reindex.Reindexer, error) {
	return reindex.NewReindexer(s.documentRepo, s.chunkRepo, s.provider.Embedder(), config, progress)
}

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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/docquery"
	"github.com/poiesic/docquery/ai"
	"github.com/poiesic/docquery/chunker"
	"github.com/poiesic/docquery/generation"
	"github.com/poiesic/docquery/ingestion"
	"github.com/poiesic/docquery/rag"
	"github.com/poiesic/docquery/reindex"
	"github.com/poiesic/docquery/retrieval"
	"github.com/poiesic/docquery/server"
	"github.com/urfave/cli/v2"
)

func main() {
	// Optional .env next to the binary; missing file is fine
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "docquery",
		Usage: "Question answering over local documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server",
				Action: serveCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "listen",
						Usage:   "Address to listen on",
						Value:   ":8080",
						EnvVars: []string{"DOCQUERY_LISTEN"},
					},
					&cli.IntFlag{
						Name:    "chunk-size",
						Usage:   "Chunk size in tokens",
						Value:   chunker.DefaultChunkSize,
						EnvVars: []string{"CHUNK_SIZE_TOKENS"},
					},
					&cli.IntFlag{
						Name:    "chunk-overlap",
						Usage:   "Chunk overlap in tokens",
						Value:   chunker.DefaultOverlap,
						EnvVars: []string{"CHUNK_OVERLAP_TOKENS"},
					},
					&cli.IntFlag{
						Name:    "top-k",
						Usage:   "Number of chunks to retrieve per query",
						Value:   retrieval.DefaultTopK,
						EnvVars: []string{"TOP_K"},
					},
					&cli.Float64Flag{
						Name:    "similarity-threshold",
						Usage:   "Minimum similarity score for retrieved chunks",
						Value:   float64(retrieval.DefaultThreshold),
						EnvVars: []string{"SIMILARITY_THRESHOLD"},
					},
					&cli.BoolFlag{
						Name:    "generation-enabled",
						Usage:   "Call the language model for answers",
						Value:   true,
						EnvVars: []string{"GENERATION_ENABLED"},
					},
					&cli.DurationFlag{
						Name:    "generation-timeout",
						Usage:   "Per-attempt generation timeout",
						Value:   generation.DefaultTimeout,
						EnvVars: []string{"GENERATION_TIMEOUT"},
					},
					&cli.IntFlag{
						Name:    "generation-max-retries",
						Usage:   "Generation attempts before falling back",
						Value:   generation.DefaultMaxRetries,
						EnvVars: []string{"GENERATION_MAX_RETRIES"},
					},
					&cli.IntFlag{
						Name:    "max-context-chars",
						Usage:   "Maximum prompt context size in characters",
						Value:   generation.DefaultMaxContextChars,
						EnvVars: []string{"MAX_PROMPT_CONTEXT_SIZE"},
					},
				}, append(dbFlags(), aiFlags()...)...),
			},
			{
				Name:      "ingest",
				Usage:     "Ingest a text file into the index",
				ArgsUsage: "<file>",
				Action:    ingestCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "Document name (defaults to the file name)",
					},
					&cli.IntFlag{
						Name:    "chunk-size",
						Usage:   "Chunk size in tokens",
						Value:   chunker.DefaultChunkSize,
						EnvVars: []string{"CHUNK_SIZE_TOKENS"},
					},
					&cli.IntFlag{
						Name:    "chunk-overlap",
						Usage:   "Chunk overlap in tokens",
						Value:   chunker.DefaultOverlap,
						EnvVars: []string{"CHUNK_OVERLAP_TOKENS"},
					},
				}, append(dbFlags(), aiFlags()...)...),
			},
			{
				Name:      "query",
				Usage:     "Answer a question from the indexed documents",
				ArgsUsage: "<question>",
				Action:    queryCommand,
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Usage:   "Number of chunks to retrieve",
						Value:   retrieval.DefaultTopK,
						EnvVars: []string{"TOP_K"},
					},
					&cli.Float64Flag{
						Name:    "similarity-threshold",
						Usage:   "Minimum similarity score for retrieved chunks",
						Value:   float64(retrieval.DefaultThreshold),
						EnvVars: []string{"SIMILARITY_THRESHOLD"},
					},
				}, append(dbFlags(), aiFlags()...)...),
			},
			{
				Name:  "documents",
				Usage: "Manage indexed documents",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List indexed documents",
						Action: listDocumentsCommand,
						Flags:  dbFlags(),
					},
					{
						Name:      "delete",
						Usage:     "Delete a document and its chunks",
						ArgsUsage: "<document-id>",
						Action:    deleteDocumentCommand,
						Flags:     dbFlags(),
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild all chunk vectors with the configured embedding model",
				Action: reindexCommand,
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed embedding calls",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				}, append(dbFlags(), aiFlags()...)...),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func dbFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to the index directory",
			Value:   "docquery-data",
			EnvVars: []string{"DOCQUERY_DB"},
		},
	}
}

func aiFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "embedding-host",
			Usage:   "Embedding service host URL",
			Value:   "http://localhost:11434/v1",
			EnvVars: []string{"EMBEDDING_HOST"},
		},
		&cli.StringFlag{
			Name:    "generation-host",
			Usage:   "Generation service host URL",
			Value:   "http://localhost:11434/v1",
			EnvVars: []string{"GENERATION_HOST"},
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name",
			Value:   "embeddinggemma",
			EnvVars: []string{"EMBEDDING_MODEL"},
		},
		&cli.StringFlag{
			Name:    "generation-model",
			Usage:   "Generation model name",
			Value:   "qwen2.5:3b",
			EnvVars: []string{"GENERATION_MODEL"},
		},
	}
}

func aiConfigFromFlags(c *cli.Context) (*ai.Config, error) {
	config := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithGenerationHost(c.String("generation-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithGenerationModel(c.String("generation-model")),
	)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return config, nil
}

func openSystem(c *cli.Context) (*docquery.System, error) {
	config, err := aiConfigFromFlags(c)
	if err != nil {
		return nil, err
	}

	system, err := docquery.Open(c.String("db"), docquery.WithAIConfig(config))
	if err != nil {
		return nil, fmt.Errorf("failed to open index at %s: %w", c.String("db"), err)
	}
	return system, nil
}

func newPipeline(c *cli.Context, system *docquery.System) (*ingestion.Pipeline, error) {
	splitter, err := chunker.New(
		chunker.WithChunkSize(c.Int("chunk-size")),
		chunker.WithOverlap(c.Int("chunk-overlap")),
	)
	if err != nil {
		return nil, err
	}
	return system.NewIngestionPipeline(ingestion.WithChunker(splitter))
}

func newAnswerService(c *cli.Context, system *docquery.System, clientOpts ...generation.ClientOption) (*rag.Service, error) {
	engine, err := system.NewRetrievalEngine(
		retrieval.WithTopK(c.Int("top-k")),
		retrieval.WithThreshold(float32(c.Float64("similarity-threshold"))),
	)
	if err != nil {
		return nil, err
	}

	prompts, err := generation.NewPromptBuilder()
	if err != nil {
		return nil, err
	}

	client, err := system.NewGenerationClient(clientOpts...)
	if err != nil {
		return nil, err
	}

	return system.NewAnswerService(engine, prompts, client)
}

func serveCommand(c *cli.Context) error {
	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	pipeline, err := newPipeline(c, system)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	engine, err := system.NewRetrievalEngine(
		retrieval.WithTopK(c.Int("top-k")),
		retrieval.WithThreshold(float32(c.Float64("similarity-threshold"))),
	)
	if err != nil {
		return err
	}

	prompts, err := generation.NewPromptBuilder(
		generation.WithMaxContextChars(c.Int("max-context-chars")))
	if err != nil {
		return err
	}

	client, err := system.NewGenerationClient(
		generation.WithEnabled(c.Bool("generation-enabled")),
		generation.WithTimeout(c.Duration("generation-timeout")),
		generation.WithMaxRetries(c.Int("generation-max-retries")),
	)
	if err != nil {
		return err
	}

	service, err := system.NewAnswerService(engine, prompts, client)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(
		c.String("listen"),
		pipeline,
		service,
		system.DocumentRepository(),
		system.Provider().Generator(),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	if err := <-errCh; err != nil && err != server.ErrServerClosed {
		return err
	}
	return nil
}

func ingestCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("file path is required")
	}

	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	name := c.String("name")
	if name == "" {
		name = filepath.Base(path)
	}
	fileType := strings.TrimPrefix(filepath.Ext(path), ".")

	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	pipeline, err := newPipeline(c, system)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	doc, err := pipeline.Ingest(context.Background(), name, fileType, string(text))
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("Ingested %s: id=%s chunks=%d\n", doc.Name, doc.Id, doc.ChunkCount)
	return nil
}

func queryCommand(c *cli.Context) error {
	question := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("question is required")
	}

	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	service, err := newAnswerService(c, system)
	if err != nil {
		return err
	}

	events, err := service.QueryStream(context.Background(), question)
	if err != nil {
		return err
	}

	var terminal rag.Event
	for event := range events {
		switch event.Type {
		case rag.EventChunk:
			fmt.Print(event.Content)
		default:
			terminal = event
		}
	}
	fmt.Println()

	if terminal.Type == rag.EventError {
		return fmt.Errorf("answer failed: %s", terminal.Content)
	}

	if len(terminal.Sources) > 0 {
		fmt.Fprintln(os.Stderr, "\nSources:")
		for i, source := range terminal.Sources {
			fmt.Fprintf(os.Stderr, "  [%d] %s (chunk %d, score %.3f)\n",
				i+1, source.DocumentName, source.Position, source.Score)
		}
	}

	return nil
}

func listDocumentsCommand(c *cli.Context) error {
	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	docs, err := system.DocumentRepository().ListDocuments(context.Background())
	if err != nil {
		return err
	}

	if len(docs) == 0 {
		fmt.Println("No documents indexed")
		return nil
	}

	for _, doc := range docs {
		fmt.Printf("%s  %-30s  chunks=%-4d  %s\n",
			doc.Id, doc.Name, doc.ChunkCount, doc.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func deleteDocumentCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("document id is required")
	}

	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	pipeline, err := system.NewIngestionPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Release()

	if err := pipeline.Delete(context.Background(), id); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	fmt.Printf("Deleted document %s\n", id)
	return nil
}

func reindexCommand(c *cli.Context) error {
	config := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	reindexer, err := system.NewReindexer(config, os.Stderr)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Index: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := reindexer.Run(context.Background()); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

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


// Package server exposes the document question-answering pipeline over HTTP.
//
// Endpoints:
//
//	POST   /api/ingest          ingest a document
//	POST   /api/query           answer a question (SSE stream)
//	GET    /api/documents       list indexed documents
//	DELETE /api/documents/{id}  remove a document and its chunks
//	GET    /api/health          service liveness and backend status
//
// Query answers stream as Server-Sent Events, one JSON event per frame.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/poiesic/docquery/ai"
	"github.com/poiesic/docquery/ingestion"
	"github.com/poiesic/docquery/rag"
	"github.com/poiesic/docquery/storage"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second

	// healthProbeTimeout bounds the generation backend probe inside the
	// health endpoint.
	healthProbeTimeout = 3 * time.Second
)

// ErrServerClosed is returned by Start after a clean Shutdown.
var ErrServerClosed = http.ErrServerClosed

// Server hosts the HTTP API.
type Server struct {
	pipeline           *ingestion.Pipeline
	answers            *rag.Service
	documentRepository storage.DocumentRepository
	generator          ai.Generator
	httpServer         *http.Server
	logger             *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewServer creates an HTTP server for the given pipeline and services.
func NewServer(
	addr string,
	pipeline *ingestion.Pipeline,
	answers *rag.Service,
	documentRepository storage.DocumentRepository,
	generator ai.Generator,
	opts ...Option,
) (*Server, error) {
	if pipeline == nil {
		return nil, errors.New("ingestion pipeline required")
	}
	if answers == nil {
		return nil, errors.New("answer service required")
	}
	if documentRepository == nil {
		return nil, errors.New("document repository required")
	}
	if generator == nil {
		return nil, errors.New("generator required")
	}

	s := &Server{
		pipeline:           pipeline,
		answers:            answers,
		documentRepository: documentRepository,
		generator:          generator,
		logger:             slog.Default().With("component", "server"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}

	return s, nil
}

// routes builds the request mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ingest", s.handleIngest)
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return mux
}

// Handler returns the server's HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the server until Shutdown is called or the listener fails.
// Returns ErrServerClosed after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

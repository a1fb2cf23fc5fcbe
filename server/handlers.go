package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/poiesic/docquery/core"
	"github.com/poiesic/docquery/ingestion"
	"github.com/poiesic/docquery/retrieval"
	"github.com/poiesic/docquery/storage"
)

// ingestRequest is the payload of POST /api/ingest.
type ingestRequest struct {
	DocumentName string `json:"document_name"`
	FileType     string `json:"file_type"`
	Text         string `json:"text"`
}

// queryRequest is the payload of POST /api/query.
type queryRequest struct {
	Question  string   `json:"question"`
	TopK      int      `json:"top_k,omitempty"`
	Threshold *float32 `json:"similarity_threshold,omitempty"`
}

// documentResponse is the wire form of a document record.
type documentResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	FileType   string    `json:"file_type"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func toDocumentResponse(doc *core.Document) documentResponse {
	return documentResponse{
		ID:         doc.Id,
		Name:       doc.Name,
		FileType:   doc.FileType,
		ChunkCount: doc.ChunkCount,
		CreatedAt:  doc.CreatedAt,
	}
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	doc, err := s.pipeline.Ingest(r.Context(), req.DocumentName, req.FileType, req.Text)
	if err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}

	s.writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	var opts []retrieval.QueryOption
	if req.TopK > 0 {
		opts = append(opts, retrieval.WithQueryTopK(req.TopK))
	}
	if req.Threshold != nil {
		opts = append(opts, retrieval.WithQueryThreshold(*req.Threshold))
	}

	events, err := s.answers.QueryStream(r.Context(), req.Question, opts...)
	if err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}

	s.streamEvents(w, r, events)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documentRepository.ListDocuments(r.Context())
	if err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentResponse(doc))
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("document id required"))
		return
	}

	if err := s.pipeline.Delete(r.Context(), id); err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	probeCtx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	generationStatus := "up"
	if err := s.generator.Healthy(probeCtx); err != nil {
		generationStatus = "down"
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"generation": generationStatus,
	})
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrEmptyQuestion),
		errors.Is(err, core.ErrInvalidDocument),
		errors.Is(err, core.ErrEmptyDocumentName),
		errors.Is(err, ingestion.ErrNoContent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("error writing response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "err", err)
	} else {
		s.logger.Debug("request rejected", "status", status, "err", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for chunk records.
// It is generated deterministically from chunk content and placement.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Document represents an ingested document. It owns an ordered sequence of
// chunks stored in the vector index; deleting a document removes them all.
type Document struct {
	Id         string // UUID assigned at ingestion
	Name       string
	FileType   string // e.g. "txt", "pdf", "docx" (text is extracted upstream)
	ChunkCount int
	CreatedAt  time.Time
}

// Chunk is a bounded contiguous slice of a document's text, the unit of
// retrieval. Chunks are immutable once created. Position defines reading
// order within the document and is unique per document, contiguous from 0.
type Chunk struct {
	Id         ID
	DocumentId string
	Position   int
	Text       string
	TokenCount int
	Vector     []float32 // Embedding; dimension fixed per index collection
}

// ChunkID derives the deterministic ID for a chunk from its document,
// position and text.
func ChunkID(documentID string, position int, text string) ID {
	return IDFromContent(documentID + ":" + strconv.Itoa(position) + ":" + text)
}

// Candidate is a chunk retrieved for a query together with its similarity
// score. Candidates are transient, produced per query, never persisted.
type Candidate struct {
	Chunk *Chunk
	Score float32

	// DocumentName is resolved by callers that have access to the
	// document records; search returns candidates without it.
	DocumentName string
}

// AnswerStatus describes how an answer terminated.
type AnswerStatus string

const (
	// StatusComplete indicates the generation backend produced the answer.
	StatusComplete AnswerStatus = "ok"
	// StatusDegraded indicates the fixed fallback answer was used because
	// the generation backend was disabled or unreachable.
	StatusDegraded AnswerStatus = "degraded"
	// StatusError indicates the request terminated with an error.
	StatusError AnswerStatus = "error"
)

// Answer is the final result of a query: the generated text, the candidates
// used to build the prompt (in prompt order), and the terminal status.
// An Answer is immutable once its status is terminal.
type Answer struct {
	Text    string
	Sources []*Candidate
	Status  AnswerStatus
}

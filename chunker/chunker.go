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


// Package chunker splits document text into overlapping token windows
// sized for embedding.
//
// Tokens are whitespace-delimited words. Consecutive chunks share an
// overlap of tokens so that sentences crossing a window boundary stay
// retrievable from at least one chunk.
package chunker

import (
	"errors"
	"log/slog"
	"strings"
)

const (
	// DefaultChunkSize is the default window size in tokens.
	DefaultChunkSize = 300

	// DefaultOverlap is the default number of tokens shared by
	// consecutive chunks.
	DefaultOverlap = 50
)

var (
	// ErrInvalidChunkSize indicates a non-positive chunk size.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")

	// ErrInvalidOverlap indicates an overlap that is negative or not
	// smaller than the chunk size.
	ErrInvalidOverlap = errors.New("overlap must be non-negative and smaller than chunk size")
)

// Piece is one window of a split document.
type Piece struct {
	// Position is the zero-based index of the piece within the document.
	Position int

	// Text is the token window joined with single spaces.
	Text string

	// TokenCount is the number of tokens in the window.
	TokenCount int
}

// Chunker splits cleaned text into overlapping token windows.
// A Chunker is immutable after construction and safe for concurrent use.
type Chunker struct {
	chunkSize int
	overlap   int
	logger    *slog.Logger
}

// Option is a functional option for configuring a Chunker.
type Option func(*Chunker) error

// WithChunkSize sets the window size in tokens.
func WithChunkSize(size int) Option {
	return func(c *Chunker) error {
		if size <= 0 {
			return ErrInvalidChunkSize
		}
		c.chunkSize = size
		return nil
	}
}

// WithOverlap sets the number of tokens shared by consecutive windows.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) error {
		if overlap < 0 {
			return ErrInvalidOverlap
		}
		c.overlap = overlap
		return nil
	}
}

// New creates a Chunker with the default window parameters and applies
// the provided options.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
		logger:    slog.Default().With("component", "chunker"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.overlap >= c.chunkSize {
		return nil, ErrInvalidOverlap
	}
	return c, nil
}

// ChunkSize returns the configured window size in tokens.
func (c *Chunker) ChunkSize() int {
	return c.chunkSize
}

// Overlap returns the configured overlap in tokens.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Split cleans text and cuts it into overlapping token windows.
// Empty or whitespace-only text yields no pieces. Text shorter than the
// window size yields a single piece.
func (c *Chunker) Split(text string) []Piece {
	tokens := strings.Fields(CleanText(text))
	if len(tokens) == 0 {
		return nil
	}

	stride := c.chunkSize - c.overlap

	var pieces []Piece
	for start := 0; start < len(tokens); start += stride {
		end := start + c.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}

		window := tokens[start:end]
		pieces = append(pieces, Piece{
			Position:   len(pieces),
			Text:       strings.Join(window, " "),
			TokenCount: len(window),
		})

		if end == len(tokens) {
			break
		}
	}

	c.logger.Debug("split text into chunks",
		"tokens", len(tokens),
		"chunks", len(pieces))

	return pieces
}

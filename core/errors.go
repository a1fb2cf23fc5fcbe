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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrEmptyDocumentName indicates the document Name field is empty.
	ErrEmptyDocumentName = errors.New("document name cannot be empty")

	// ErrEmptyDocumentId indicates the document Id field is empty.
	ErrEmptyDocumentId = errors.New("document id cannot be empty")

	// ErrEmptyChunkText indicates the chunk Text field is empty.
	ErrEmptyChunkText = errors.New("chunk text cannot be empty")

	// ErrNegativePosition indicates a chunk Position below zero.
	ErrNegativePosition = errors.New("chunk position cannot be negative")

	// ErrEmptyQuestion indicates a query with an empty question.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrAnswerFailed indicates a query stream ended with a terminal
	// error instead of a complete answer.
	ErrAnswerFailed = errors.New("answer stream failed")
)

package rag

import "errors"

var (
	// ErrEngineRequired is returned when a retrieval engine is not provided.
	ErrEngineRequired = errors.New("retrieval engine required")

	// ErrClientRequired is returned when a generation client is not provided.
	ErrClientRequired = errors.New("generation client required")

	// ErrPromptBuilderRequired is returned when a prompt builder is not provided.
	ErrPromptBuilderRequired = errors.New("prompt builder required")

	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")
)

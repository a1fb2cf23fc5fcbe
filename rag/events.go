package rag

import "github.com/poiesic/docquery/core"

// EventType discriminates the frames of an answer stream.
type EventType string

const (
	// EventChunk carries one token of the generated answer.
	EventChunk EventType = "chunk"

	// EventComplete closes a successful stream and carries the full
	// answer text and its sources.
	EventComplete EventType = "complete"

	// EventError closes a failed stream; Content carries the message.
	EventError EventType = "error"
)

// Source describes one retrieved chunk that grounded the answer.
type Source struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Text         string  `json:"text"`
	Position     int     `json:"position"`
	Score        float32 `json:"score"`
}

// Event is one frame of an answer stream. Content holds the partial text
// of a chunk event, the full answer text of a complete event, or the
// message of an error event.
type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content,omitempty"`

	// Sources and Status are set on complete events only.
	Sources []Source          `json:"sources,omitempty"`
	Status  core.AnswerStatus `json:"status,omitempty"`
}

package generation

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docquery/core"
)

// DefaultMaxContextChars bounds the total size of the context section of
// a prompt. Large enough for a handful of full chunks, small enough to
// stay inside typical local-model context windows.
const DefaultMaxContextChars = 8000

// truncationMarker is appended to a source whose text had to be cut to
// fit the context budget.
const truncationMarker = " [truncated]"

// PromptBuilder assembles generation prompts from a question and
// retrieved chunks.
type PromptBuilder struct {
	maxContextChars int
}

// PromptOption configures a PromptBuilder.
type PromptOption func(*PromptBuilder) error

// WithMaxContextChars sets the character budget for the context section.
func WithMaxContextChars(chars int) PromptOption {
	return func(b *PromptBuilder) error {
		if chars <= 0 {
			return ErrInvalidContextSize
		}
		b.maxContextChars = chars
		return nil
	}
}

// NewPromptBuilder creates a PromptBuilder with the default context budget.
func NewPromptBuilder(opts ...PromptOption) (*PromptBuilder, error) {
	b := &PromptBuilder{maxContextChars: DefaultMaxContextChars}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Build assembles the prompt for a question and its retrieved candidates.
//
// Candidates are included highest-scoring first. When the context budget
// is exceeded, the lowest-scoring candidates are dropped; if even the
// best single candidate exceeds the budget, its text is truncated and
// marked. With no candidates at all, the prompt tells the model to say
// the documents contain no relevant information.
func (b *PromptBuilder) Build(question string, candidates []*core.Candidate) string {
	var sb strings.Builder

	sb.WriteString("You are a helpful assistant that answers questions using excerpts from the user's documents.\n\n")

	if len(candidates) == 0 {
		sb.WriteString("No relevant excerpts were found in the indexed documents.\n\n")
		sb.WriteString("Question: ")
		sb.WriteString(question)
		sb.WriteString("\n\nSay that the documents do not contain information relevant to the question, then answer from general knowledge if you can, making clear it is not grounded in the documents.")
		return sb.String()
	}

	sb.WriteString("Context:\n")
	sb.WriteString(b.renderContext(candidates))
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer using only the context above. If the context does not contain the answer, say so. Cite sources by their number where helpful.")

	return sb.String()
}

// renderContext formats candidates into numbered source blocks within the
// character budget.
func (b *PromptBuilder) renderContext(candidates []*core.Candidate) string {
	// Keep the highest-scoring candidates when trimming
	ordered := make([]*core.Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	kept := ordered
	for len(kept) > 1 && contextSize(kept) > b.maxContextChars {
		kept = kept[:len(kept)-1]
	}

	if len(kept) == 1 && contextSize(kept) > b.maxContextChars {
		overhead := contextSize(kept) - len(kept[0].Chunk.Text)
		budget := b.maxContextChars - overhead - len(truncationMarker)
		if budget < 0 {
			budget = 0
		}
		text := kept[0].Chunk.Text
		if budget < len(text) {
			// Cut on a rune boundary
			for budget > 0 && !utf8.RuneStart(text[budget]) {
				budget--
			}
			text = text[:budget]
		}
		trimmed := *kept[0].Chunk
		trimmed.Text = text + truncationMarker
		kept = []*core.Candidate{{
			Chunk:        &trimmed,
			Score:        kept[0].Score,
			DocumentName: kept[0].DocumentName,
		}}
	}

	var sb strings.Builder
	for i, candidate := range kept {
		writeSource(&sb, i+1, candidate)
	}
	return sb.String()
}

// contextSize is the rendered length of a candidate set.
func contextSize(candidates []*core.Candidate) int {
	var sb strings.Builder
	for i, candidate := range candidates {
		writeSource(&sb, i+1, candidate)
	}
	return sb.Len()
}

func writeSource(sb *strings.Builder, number int, candidate *core.Candidate) {
	name := candidate.DocumentName
	if name == "" {
		name = candidate.Chunk.DocumentId
	}
	fmt.Fprintf(sb, "[Source %d from %s]\n%s\n\n", number, name, candidate.Chunk.Text)
}

package generation

import (
	"strings"
	"testing"

	"github.com/poiesic/docquery/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(text string, score float32) *core.Candidate {
	return &core.Candidate{
		Chunk: &core.Chunk{DocumentId: "doc-1", Text: text},
		Score: score,
	}
}

func TestNewPromptBuilder_InvalidContextSize(t *testing.T) {
	_, err := NewPromptBuilder(WithMaxContextChars(0))
	assert.ErrorIs(t, err, ErrInvalidContextSize)
}

func TestBuild_NoCandidates(t *testing.T) {
	b, err := NewPromptBuilder()
	require.NoError(t, err)

	prompt := b.Build("what is the refund policy?", nil)
	assert.Contains(t, prompt, "No relevant excerpts were found")
	assert.Contains(t, prompt, "what is the refund policy?")
}

func TestBuild_IncludesSourcesAndQuestion(t *testing.T) {
	b, err := NewPromptBuilder()
	require.NoError(t, err)

	prompt := b.Build("how do refunds work?", []*core.Candidate{
		candidate("Refunds are processed within 14 days.", 0.9),
		candidate("Contact support for returns.", 0.7),
	})

	assert.Contains(t, prompt, "[Source 1 from doc-1]")
	assert.Contains(t, prompt, "Refunds are processed within 14 days.")
	assert.Contains(t, prompt, "[Source 2 from doc-1]")
	assert.Contains(t, prompt, "Contact support for returns.")
	assert.Contains(t, prompt, "how do refunds work?")

	// Highest score renders first
	assert.Less(t,
		strings.Index(prompt, "Refunds are processed"),
		strings.Index(prompt, "Contact support"))
}

func TestBuild_DropsLowestScoringWhenOverBudget(t *testing.T) {
	b, err := NewPromptBuilder(WithMaxContextChars(120))
	require.NoError(t, err)

	big := strings.Repeat("x", 80)
	prompt := b.Build("q", []*core.Candidate{
		candidate(big, 0.9),
		candidate("low scoring filler that should be dropped", 0.2),
	})

	assert.Contains(t, prompt, big)
	assert.NotContains(t, prompt, "low scoring filler")
}

func TestBuild_TruncatesSingleOversizedCandidate(t *testing.T) {
	b, err := NewPromptBuilder(WithMaxContextChars(100))
	require.NoError(t, err)

	big := strings.Repeat("y", 500)
	prompt := b.Build("q", []*core.Candidate{candidate(big, 0.9)})

	assert.Contains(t, prompt, "[truncated]")
	assert.NotContains(t, prompt, big)
}

func TestBuild_TruncationKeepsRuneBoundary(t *testing.T) {
	b, err := NewPromptBuilder(WithMaxContextChars(60))
	require.NoError(t, err)

	prompt := b.Build("q", []*core.Candidate{candidate(strings.Repeat("日本語", 200), 0.9)})
	assert.True(t, strings.Contains(prompt, "[truncated]"))
	assert.True(t, isValidUTF8(prompt))
}

func isValidUTF8(s string) bool {
	for _, r := range s {
		if r == '�' {
			return false
		}
	}
	return true
}

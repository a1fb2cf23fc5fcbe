package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTokens(n int) string {
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(tokens, " ")
}

func TestNew_Defaults(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, c.ChunkSize())
	assert.Equal(t, DefaultOverlap, c.Overlap())
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr error
	}{
		{"zero chunk size", []Option{WithChunkSize(0)}, ErrInvalidChunkSize},
		{"negative chunk size", []Option{WithChunkSize(-5)}, ErrInvalidChunkSize},
		{"negative overlap", []Option{WithOverlap(-1)}, ErrInvalidOverlap},
		{"overlap equals chunk size", []Option{WithChunkSize(50), WithOverlap(50)}, ErrInvalidOverlap},
		{"overlap exceeds chunk size", []Option{WithChunkSize(50), WithOverlap(60)}, ErrInvalidOverlap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSplit_Empty(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n\t  "))
}

func TestSplit_ShortText(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	pieces := c.Split("just a few words here")
	require.Len(t, pieces, 1)
	assert.Equal(t, 0, pieces[0].Position)
	assert.Equal(t, "just a few words here", pieces[0].Text)
	assert.Equal(t, 5, pieces[0].TokenCount)
}

func TestSplit_ExactWindow(t *testing.T) {
	c, err := New(WithChunkSize(10), WithOverlap(2))
	require.NoError(t, err)

	pieces := c.Split(makeTokens(10))
	require.Len(t, pieces, 1)
	assert.Equal(t, 10, pieces[0].TokenCount)
}

func TestSplit_OverlapWindows(t *testing.T) {
	// 1000 tokens, window 300, overlap 50: windows start at
	// 0, 250, 500 and 750, giving four chunks
	c, err := New(WithChunkSize(300), WithOverlap(50))
	require.NoError(t, err)

	pieces := c.Split(makeTokens(1000))
	require.Len(t, pieces, 4)

	assert.Equal(t, 300, pieces[0].TokenCount)
	assert.Equal(t, 300, pieces[1].TokenCount)
	assert.Equal(t, 300, pieces[2].TokenCount)
	assert.Equal(t, 250, pieces[3].TokenCount)

	for i, p := range pieces {
		assert.Equal(t, i, p.Position)
	}

	// Consecutive windows share the configured overlap
	first := strings.Fields(pieces[0].Text)
	second := strings.Fields(pieces[1].Text)
	assert.Equal(t, first[250:], second[:50])
}

func TestSplit_NoOverlap(t *testing.T) {
	c, err := New(WithChunkSize(4), WithOverlap(0))
	require.NoError(t, err)

	pieces := c.Split(makeTokens(10))
	require.Len(t, pieces, 3)
	assert.Equal(t, 4, pieces[0].TokenCount)
	assert.Equal(t, 4, pieces[1].TokenCount)
	assert.Equal(t, 2, pieces[2].TokenCount)
}

func TestSplit_EveryTokenCovered(t *testing.T) {
	c, err := New(WithChunkSize(7), WithOverlap(3))
	require.NoError(t, err)

	total := 53
	pieces := c.Split(makeTokens(total))
	require.NotEmpty(t, pieces)

	seen := make(map[string]bool)
	for _, p := range pieces {
		for _, tok := range strings.Fields(p.Text) {
			seen[tok] = true
		}
	}
	assert.Len(t, seen, total)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"windows line endings", "a\r\nb", "a\nb"},
		{"bare carriage returns", "a\rb", "a\nb"},
		{"control characters dropped", "a\x00b\x1bc", "abc"},
		{"tabs kept", "a\tb", "a\tb"},
		{"blank lines collapsed", "a\n\n\n\n\nb", "a\n\nb"},
		{"surrounding whitespace trimmed", "  hello  ", "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

package chunker

import (
	"strings"
	"unicode"
)

// CleanText normalizes raw document text before tokenization.
// It normalizes line endings, drops control characters other than
// newline and tab, and collapses runs of blank lines.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))

	blankRun := 0
	for _, r := range text {
		switch {
		case r == '\n':
			blankRun++
			// At most one blank line between paragraphs
			if blankRun <= 2 {
				b.WriteRune(r)
			}
		case r == '\t' || !unicode.IsControl(r):
			blankRun = 0
			b.WriteRune(r)
		}
	}

	return strings.TrimSpace(b.String())
}

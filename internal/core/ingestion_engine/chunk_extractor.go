package ingestion_engine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/markdave123-py/learnbridge/internal/core"
)

// ChunkText collapses whitespace, splits the text into sentences and packs them greedily
// into chunks of at most maxChars characters. A sentence longer than maxChars becomes its own chunk.
func ChunkText(text string, maxChars int) ([]Chunk, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("%w: maxChars must be positive, got %d", core.ErrInvalidRequest, maxChars)
	}

	var (
		out    []Chunk
		buf    strings.Builder
		bufLen int
	)
	flush := func() {
		if bufLen == 0 {
			return
		}
		out = append(out, Chunk{Pos: len(out), Text: buf.String()})
		buf.Reset()
		bufLen = 0
	}

	for _, s := range splitSentences(normalizeSpace(text)) {
		n := utf8.RuneCountInString(s)
		if bufLen > 0 && bufLen+1+n > maxChars {
			flush()
		}
		if bufLen > 0 {
			buf.WriteByte(' ')
			bufLen++
		}
		buf.WriteString(s)
		bufLen += n
	}
	flush()

	if len(out) == 0 {
		return nil, core.ErrEmptyDocument
	}
	return out, nil
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// splitSentences cuts after '.', '!' or '?' when a space follows. Input must be space-normalized.
func splitSentences(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '.', '!', '?':
			if s[i+1] == ' ' {
				out = append(out, s[start:i+1])
				start = i + 2
			}
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

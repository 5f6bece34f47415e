// Package chunker splits document text into overlapping, retrieval-sized
// spans. Chunk boundaries prefer sentence endings so that embeddings are
// computed over coherent text rather than mid-sentence fragments.
package chunker

import "strings"

// sentenceLookback is how far back from a hard window boundary Chunk searches
// for a sentence-terminal character before giving up and cutting at the
// boundary.
const sentenceLookback = 100

// Chunker produces overlapping chunks of a configured size.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. size is the target chunk length in characters and
// overlap is how many characters consecutive chunks share. Invalid values
// fall back to defaults (size 1000, overlap 200); overlap is clamped below
// size so the window always advances.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 200
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text into ordered chunks. Text no longer than the chunk size
// is returned as a single chunk. Empty or whitespace-only text yields nil.
func (c *Chunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}

		// Prefer a sentence boundary within the lookback window.
		cut := end
		lookback := end - sentenceLookback
		if lookback < start {
			lookback = start
		}
		for i := end - 1; i >= lookback; i-- {
			if isSentenceEnd(runes[i]) {
				cut = i + 1
				break
			}
		}

		chunk := strings.TrimSpace(string(runes[start:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - c.overlap
		// The window must advance every iteration, even when the sentence
		// cut lands inside the overlap region.
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// NormalizeWhitespace collapses runs of whitespace (including newlines and
// tabs) into single spaces and trims the result.
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

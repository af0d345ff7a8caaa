// Package knowledge provides the retrieval index over the course
// knowledge base: a text file chunked into overlapping passages and
// searched by keyword overlap.
package knowledge

import (
	"strings"
	"unicode/utf8"
)

// splitSeparators are tried in order, preferring natural boundaries.
var splitSeparators = []string{"\n\n", "\n", " "}

// chunkText splits text into passages of roughly chunkSize characters with
// the given overlap between adjacent passages. Splitting prefers paragraph
// boundaries, then line boundaries, then word boundaries.
func chunkText(text string, chunkSize, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + chunkSize
		if end >= len(text) {
			chunk := strings.TrimSpace(text[start:])
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		cut := findCut(text, start, end)
		chunk := strings.TrimSpace(text[start:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - overlap
		if next <= start {
			next = cut
		}
		// The overlap rewind can land inside a multibyte sequence.
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}

	return chunks
}

// findCut returns the best split position in text[start:end], looking for
// the last occurrence of each separator in preference order. Falls back to
// the hard limit, backed off to a rune boundary.
func findCut(text string, start, end int) int {
	window := text[start:end]
	for _, sep := range splitSeparators {
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return start + idx + len(sep)
		}
	}
	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	if end == start {
		// Window smaller than one rune; take the whole rune anyway.
		_, size := utf8.DecodeRuneInString(text[start:])
		end = start + size
	}
	return end
}

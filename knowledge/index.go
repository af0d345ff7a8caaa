package knowledge

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Config holds indexing configuration.
type Config struct {
	// Path is the knowledge base text file.
	Path string

	// ChunkSize is the target passage size in characters.
	ChunkSize int

	// ChunkOverlap is the character overlap between adjacent passages.
	ChunkOverlap int
}

// DefaultConfig returns indexing defaults matching the original corpus
// preparation (500-character passages with 50-character overlap).
func DefaultConfig(path string) Config {
	return Config{
		Path:         path,
		ChunkSize:    500,
		ChunkOverlap: 50,
	}
}

// passage is an indexed chunk with its term frequencies.
type passage struct {
	text  string
	terms map[string]int
}

// Index is a keyword-overlap retrieval index over the knowledge base.
// Safe for concurrent Search; Reload swaps passages atomically.
type Index struct {
	config Config
	logger *slog.Logger

	mu       sync.RWMutex
	passages []passage
}

// NewIndex loads the knowledge file and builds the index.
// A missing knowledge file is an initialization failure, not a runtime one.
func NewIndex(cfg Config, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	idx := &Index{config: cfg, logger: logger}
	if err := idx.Reload(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Reload re-reads the knowledge file and rebuilds all passages.
func (idx *Index) Reload() error {
	data, err := os.ReadFile(idx.config.Path)
	if err != nil {
		return fmt.Errorf("read knowledge file: %w", err)
	}

	chunks := chunkText(string(data), idx.config.ChunkSize, idx.config.ChunkOverlap)
	passages := make([]passage, 0, len(chunks))
	for _, chunk := range chunks {
		passages = append(passages, passage{
			text:  chunk,
			terms: termFrequencies(chunk),
		})
	}

	idx.mu.Lock()
	idx.passages = passages
	idx.mu.Unlock()

	idx.logger.Info("Knowledge index built",
		"path", idx.config.Path,
		"passages", len(passages))
	return nil
}

// Len returns the number of indexed passages.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.passages)
}

// Search returns up to k passages ranked by query term overlap.
// Passages with no overlap are excluded.
func (idx *Index) Search(query string, k int) []string {
	if k <= 0 {
		return nil
	}

	queryTerms := termFrequencies(query)
	if len(queryTerms) == 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		text  string
		score float64
		order int
	}

	var results []scored
	for i, p := range idx.passages {
		score := 0.0
		for term := range queryTerms {
			if count, ok := p.terms[term]; ok {
				score += 1.0 + float64(count-1)*0.1
			}
		}
		if score > 0 {
			results = append(results, scored{text: p.text, score: score, order: i})
		}
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].score != results[b].score {
			return results[a].score > results[b].score
		}
		return results[a].order < results[b].order
	})

	if len(results) > k {
		results = results[:k]
	}

	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.text
	}
	return out
}

// stopwords excluded from term matching; overlap on these says nothing
// about topical relevance.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "that": true, "the": true,
	"to": true, "was": true, "what": true, "with": true,
}

// termFrequencies lowercases and tokenizes text into term counts,
// dropping stopwords and single-character tokens.
func termFrequencies(text string) map[string]int {
	terms := make(map[string]int)
	for _, token := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(token) < 2 || stopwords[token] {
			continue
		}
		terms[token]++
	}
	return terms
}

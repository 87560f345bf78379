package domain

import "strings"

const (
	// DefaultMinChunkLength is the minimum chunk length in runes.
	// Shorter fragments are merged with adjacent chunks.
	DefaultMinChunkLength = 80
	// DefaultMaxChunkLength is the maximum chunk length in runes.
	// Longer paragraphs are split at sentence boundaries.
	DefaultMaxChunkLength = 1200
	// DefaultChunkOverlap is how many trailing runes of a split-off chunk
	// are repeated at the start of the next one, at sentence granularity.
	DefaultChunkOverlap = 200
)

// Chunk represents a single piece of a source document.
type Chunk struct {
	Ordinal int    // Sequence number (0-indexed)
	Content string // The actual text content
}

// Chunker defines the interface for splitting document text into chunks.
type Chunker interface {
	Chunk(body string) ([]Chunk, error)
	Version() string
}

type paragraphChunker struct {
	minLen  int
	maxLen  int
	overlap int
}

// NewChunker creates a paragraph-based chunker with the default length bounds
// and overlap.
func NewChunker() Chunker {
	return NewChunkerWithBounds(DefaultMinChunkLength, DefaultMaxChunkLength, DefaultChunkOverlap)
}

// NewChunkerWithBounds creates a chunker with explicit length bounds and
// overlap. Out-of-range bounds fall back to the defaults; overlap must stay
// below the maximum length. Zero overlap produces disjoint chunks.
func NewChunkerWithBounds(minLen, maxLen, overlap int) Chunker {
	if minLen <= 0 {
		minLen = DefaultMinChunkLength
	}
	if maxLen <= minLen {
		maxLen = DefaultMaxChunkLength
	}
	if overlap < 0 || overlap >= maxLen {
		overlap = maxLen / 6
	}
	return &paragraphChunker{minLen: minLen, maxLen: maxLen, overlap: overlap}
}

func (c *paragraphChunker) Version() string {
	return "para-v2"
}

// Chunk splits the body at blank lines, merges fragments shorter than the
// minimum with their neighbors, and splits paragraphs over the maximum at
// sentence boundaries. Ordinals are assigned in document order.
func (c *paragraphChunker) Chunk(body string) ([]Chunk, error) {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	var paragraphs []string
	for _, part := range strings.Split(normalized, "\n\n") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}

	merged := c.mergeShort(paragraphs)
	split := c.splitLong(merged)

	chunks := make([]Chunk, 0, len(split))
	for i, content := range split {
		chunks = append(chunks, Chunk{Ordinal: i, Content: content})
	}
	return chunks, nil
}

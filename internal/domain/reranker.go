package domain

import "context"

// RerankCandidate represents a passage candidate for cross-encoder reranking.
type RerankCandidate struct {
	// ID is the unique identifier for the passage (used to map back results).
	ID string
	// Content is the text content to be scored against the question.
	Content string
	// Score is the fused retrieval score (for debugging/logging).
	Score float32
}

// RerankResult represents a reranked passage with cross-encoder relevance score.
type RerankResult struct {
	// ID matches the candidate ID for result mapping.
	ID string
	// Score is the cross-encoder relevance score. Scores are pairwise
	// estimates and are not comparable across separate requests.
	Score float32
}

// Reranker defines the interface for cross-encoder reranking.
type Reranker interface {
	// Rerank scores candidates against the question.
	// Returns results sorted by score descending.
	// If an error occurs, callers should fall back to the fused ordering.
	Rerank(ctx context.Context, question string, candidates []RerankCandidate) ([]RerankResult, error)

	// ModelName returns the model identifier for logging/debugging.
	ModelName() string
}

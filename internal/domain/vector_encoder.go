package domain

import (
	"context"
)

// VectorEncoder defines the interface for generating embeddings.
// Implementations must be safe for concurrent use; the retrieval pipeline
// fans out multiple probe encodings at once.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}

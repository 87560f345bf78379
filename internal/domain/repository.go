package domain

import (
	"context"
)

// PassageRepository defines the read/write operations over the persisted
// passage corpus. Search must be safe for concurrent invocation: one request
// issues several probe searches in flight at once.
type PassageRepository interface {
	// Search performs a nearest-neighbor search within a collection and
	// returns passages ordered by similarity, best first. Each returned
	// Passage carries its similarity score and source provenance.
	Search(ctx context.Context, queryVector []float32, collection string, limit int) ([]Passage, error)

	// BulkInsertPassages persists passages with their embeddings.
	BulkInsertPassages(ctx context.Context, passages []Passage) error

	// DeleteCollection removes every passage tagged with the collection.
	DeleteCollection(ctx context.Context, collection string) (int64, error)

	// CountCollection reports the number of passages in a collection.
	CountCollection(ctx context.Context, collection string) (int64, error)
}

// TransactionManager defines the interface for handling database transactions.
type TransactionManager interface {
	// RunInTx executes the given function within a transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

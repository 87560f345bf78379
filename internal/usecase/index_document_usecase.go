package usecase

import (
	"context"
	"fmt"
	"time"

	"corpus-qa/internal/domain"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// embedBatchSize bounds the number of chunk texts per embedding call.
const embedBatchSize = 16

// IndexDocumentUsecase persists source documents as searchable passages.
type IndexDocumentUsecase interface {
	// IndexDocument chunks, embeds, and stores one document into the
	// collection. Returns the number of passages written.
	IndexDocument(ctx context.Context, doc domain.SourceDocument, collection string) (int, error)
	// ResetCollection drops every passage in the collection.
	ResetCollection(ctx context.Context, collection string) (int64, error)
}

type indexDocumentUsecase struct {
	passageRepo domain.PassageRepository
	txManager   domain.TransactionManager
	chunker     domain.Chunker
	encoder     domain.VectorEncoder
}

// NewIndexDocumentUsecase wires the ingestion path.
func NewIndexDocumentUsecase(
	passageRepo domain.PassageRepository,
	txManager domain.TransactionManager,
	chunker domain.Chunker,
	encoder domain.VectorEncoder,
) IndexDocumentUsecase {
	return &indexDocumentUsecase{
		passageRepo: passageRepo,
		txManager:   txManager,
		chunker:     chunker,
		encoder:     encoder,
	}
}

func (u *indexDocumentUsecase) IndexDocument(ctx context.Context, doc domain.SourceDocument, collection string) (int, error) {
	chunks, err := u.chunker.Chunk(doc.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to chunk %s: %w", doc.Key, err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	// Batch embedding calls to keep request sizes bounded.
	embeddings := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Content)
		}
		batch, err := u.encoder.Encode(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunks of %s: %w", doc.Key, err)
		}
		if len(batch) != len(texts) {
			return 0, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(batch))
		}
		embeddings = append(embeddings, batch...)
	}

	now := time.Now()
	passages := make([]domain.Passage, len(chunks))
	for i, chunk := range chunks {
		passages[i] = domain.Passage{
			ID:           uuid.New(),
			Collection:   collection,
			SourceBucket: doc.Bucket,
			SourceKey:    doc.Key,
			ChunkOrdinal: chunk.Ordinal,
			Content:      chunk.Content,
			Embedding:    pgvector.NewVector(embeddings[i]),
			CreatedAt:    now,
		}
	}

	err = u.txManager.RunInTx(ctx, func(ctx context.Context) error {
		return u.passageRepo.BulkInsertPassages(ctx, passages)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to persist passages of %s: %w", doc.Key, err)
	}

	return len(passages), nil
}

func (u *indexDocumentUsecase) ResetCollection(ctx context.Context, collection string) (int64, error) {
	deleted, err := u.passageRepo.DeleteCollection(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to reset collection %s: %w", collection, err)
	}
	return deleted, nil
}

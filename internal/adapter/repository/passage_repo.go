package repository

import (
	"context"
	"fmt"

	"corpus-qa/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type passageRepository struct {
	pool *pgxpool.Pool
}

// NewPassageRepository creates a new PassageRepository backed by pgvector.
func NewPassageRepository(pool *pgxpool.Pool) domain.PassageRepository {
	return &passageRepository{pool: pool}
}

type dbExecutor interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *passageRepository) getExecutor(ctx context.Context) dbExecutor {
	tx := ExtractTx(ctx)
	if tx != nil {
		return tx
	}
	return r.pool
}

// Search runs a cosine-distance nearest-neighbor query within a collection.
// Similarity is reported as 1 - distance so higher is better.
func (r *passageRepository) Search(ctx context.Context, queryVector []float32, collection string, limit int) ([]domain.Passage, error) {
	query := `
		SELECT id, collection, source_bucket, source_key, chunk_ordinal, content, embedding,
		       1 - (embedding <=> $1) AS score, created_at
		FROM passages
		WHERE collection = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, pgvector.NewVector(queryVector), collection, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search passages: %w", err)
	}
	defer rows.Close()

	var passages []domain.Passage
	for rows.Next() {
		var p domain.Passage
		if err := rows.Scan(&p.ID, &p.Collection, &p.SourceBucket, &p.SourceKey, &p.ChunkOrdinal,
			&p.Content, &p.Embedding, &p.Score, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return passages, nil
}

func (r *passageRepository) BulkInsertPassages(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(passages))
	for i, p := range passages {
		rows[i] = []interface{}{
			p.ID,
			p.Collection,
			p.SourceBucket,
			p.SourceKey,
			p.ChunkOrdinal,
			p.Content,
			p.Embedding,
			p.CreatedAt,
		}
	}

	_, err := r.getExecutor(ctx).CopyFrom(
		ctx,
		pgx.Identifier{"passages"},
		[]string{"id", "collection", "source_bucket", "source_key", "chunk_ordinal", "content", "embedding", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert passages: %w", err)
	}

	return nil
}

func (r *passageRepository) DeleteCollection(ctx context.Context, collection string) (int64, error) {
	tag, err := r.getExecutor(ctx).Exec(ctx, `DELETE FROM passages WHERE collection = $1`, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to delete collection: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *passageRepository) CountCollection(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := r.getExecutor(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM passages WHERE collection = $1`, collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count collection: %w", err)
	}
	return count, nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Passage is an immutable retrieved unit of the corpus. Content is never
// mutated after ingestion; retrieval only annotates score and rank.
type Passage struct {
	ID           uuid.UUID
	Collection   string
	SourceBucket string
	SourceKey    string
	ChunkOrdinal int
	Content      string
	Embedding    pgvector.Vector
	Score        float32
	CreatedAt    time.Time
}

// HistoryTurn is one prior exchange in a conversation, oldest first.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

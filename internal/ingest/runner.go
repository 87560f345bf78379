package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"corpus-qa/internal/domain"
	"corpus-qa/internal/usecase"
)

// Config holds the ingest run parameters.
type Config struct {
	Collection string
	Prefix     string
	Suffixes   []string
	CursorFile string
	// SaveEvery is the number of processed documents between cursor saves.
	SaveEvery int
}

// DefaultConfig returns the default ingest configuration.
func DefaultConfig() Config {
	return Config{
		Collection: "rag_docs",
		CursorFile: "cursor.json",
		SaveEvery:  10,
	}
}

// Runner walks a storage prefix and indexes every matching document,
// checkpointing progress so an interrupted run resumes where it stopped.
type Runner struct {
	loader  domain.SourceLoader
	indexer usecase.IndexDocumentUsecase
	cursors *CursorManager
	cfg     Config
	logger  *slog.Logger
}

// NewRunner creates a runner and acquires the cursor lock. Call Close to
// release it.
func NewRunner(loader domain.SourceLoader, indexer usecase.IndexDocumentUsecase, cfg Config, logger *slog.Logger) (*Runner, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if cfg.SaveEvery <= 0 {
		cfg.SaveEvery = 10
	}

	cursors := NewCursorManager(cfg.CursorFile)
	if err := cursors.Lock(); err != nil {
		return nil, fmt.Errorf("acquire cursor lock: %w", err)
	}

	return &Runner{
		loader:  loader,
		indexer: indexer,
		cursors: cursors,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Close releases the cursor lock.
func (r *Runner) Close() {
	if err := r.cursors.Unlock(); err != nil {
		r.logger.Warn("failed to release cursor lock", slog.String("error", err.Error()))
	}
}

// GetCursor returns the persisted cursor.
func (r *Runner) GetCursor() (Cursor, error) {
	return r.cursors.Load()
}

// ResetCursor clears the persisted cursor.
func (r *Runner) ResetCursor() error {
	return r.cursors.Reset()
}

// Run processes documents starting after the cursor position. The cursor is
// saved every SaveEvery documents and once more at the end, so at most
// SaveEvery documents are re-indexed after an interruption.
func (r *Runner) Run(ctx context.Context) error {
	cursor, err := r.cursors.Load()
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	if !cursor.IsEmpty() && cursor.Collection != r.cfg.Collection {
		return fmt.Errorf("cursor belongs to collection %q, not %q; run reset-cursor first",
			cursor.Collection, r.cfg.Collection)
	}
	cursor.Collection = r.cfg.Collection

	start := time.Now()
	sinceSave := 0

	r.logger.Info("ingest_started",
		slog.String("collection", r.cfg.Collection),
		slog.String("prefix", r.cfg.Prefix),
		slog.String("start_after", cursor.LastKey))

	walkErr := r.loader.LoadDocuments(ctx, r.cfg.Prefix, cursor.LastKey, r.cfg.Suffixes, func(doc domain.SourceDocument) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		passageCount, err := r.indexer.IndexDocument(ctx, doc, r.cfg.Collection)
		if err != nil {
			return fmt.Errorf("index %s: %w", doc.Key, err)
		}

		cursor.LastKey = doc.Key
		cursor.ProcessedCount++
		cursor.PassageCount += passageCount
		sinceSave++

		r.logger.Debug("document_indexed",
			slog.String("key", doc.Key),
			slog.Int("passage_count", passageCount))

		if sinceSave >= r.cfg.SaveEvery {
			if err := r.cursors.Save(cursor); err != nil {
				return fmt.Errorf("save cursor: %w", err)
			}
			sinceSave = 0
		}
		return nil
	})

	// Persist whatever progress was made, even on interruption.
	if sinceSave > 0 || walkErr == nil {
		if err := r.cursors.Save(cursor); err != nil {
			if walkErr != nil {
				return errors.Join(walkErr, fmt.Errorf("save cursor: %w", err))
			}
			return fmt.Errorf("save cursor: %w", err)
		}
	}
	if walkErr != nil {
		return walkErr
	}

	r.logger.Info("ingest_completed",
		slog.String("collection", r.cfg.Collection),
		slog.Int("processed_count", cursor.ProcessedCount),
		slog.Int("passage_count", cursor.PassageCount),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return nil
}

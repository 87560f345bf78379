package pipeline

import (
	"context"
	"log/slog"
	"time"

	"corpus-qa/internal/domain"
)

// RerankConfig holds reranking stage parameters.
type RerankConfig struct {
	Timeout time.Duration
}

// Rerank applies cross-encoder reranking to the fused candidates against the
// original, user-facing question (Reranking stage), truncating to FinalK.
// When the reranker is disabled (nil) or fails, the pipeline falls back to
// the fused ordering truncated to FinalK; this is never a fatal error.
func Rerank(
	ctx context.Context,
	sc *StageContext,
	reranker domain.Reranker,
	cfg RerankConfig,
	logger *slog.Logger,
) {
	if reranker == nil || len(sc.Candidates) == 0 {
		sc.Candidates = truncate(sc.Candidates, sc.FinalK)
		return
	}

	rerankStart := time.Now()

	candidates := make([]domain.RerankCandidate, len(sc.Candidates))
	for i, cand := range sc.Candidates {
		candidates[i] = domain.RerankCandidate{
			ID:      cand.Passage.ID.String(),
			Content: cand.Passage.Content,
			Score:   float32(cand.FusedScore),
		}
	}

	rerankCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	reranked, err := reranker.Rerank(rerankCtx, sc.Question, candidates)
	cancel()

	rerankDuration := time.Since(rerankStart)

	if err != nil {
		sc.Degrade(StageRerank, err.Error())
		sc.Candidates = truncate(sc.Candidates, sc.FinalK)
		logger.WarnContext(ctx, "reranking_failed_using_fused_order",
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", rerankDuration.Milliseconds()))
		return
	}
	if len(reranked) == 0 {
		sc.Degrade(StageRerank, "empty rerank response")
		sc.Candidates = truncate(sc.Candidates, sc.FinalK)
		logger.WarnContext(ctx, "reranking_returned_empty",
			slog.Int64("duration_ms", rerankDuration.Milliseconds()))
		return
	}

	logger.InfoContext(ctx, "reranking_completed",
		slog.Int("candidate_count", len(candidates)),
		slog.Int("reranked_count", len(reranked)),
		slog.String("model", reranker.ModelName()),
		slog.Int64("duration_ms", rerankDuration.Milliseconds()))

	// Reorder candidates by reranker output (already sorted by score
	// descending); candidates the reranker omitted keep their fused order
	// and fill any remaining slots below the reranked ones.
	byID := make(map[string]Candidate, len(sc.Candidates))
	for _, cand := range sc.Candidates {
		byID[cand.Passage.ID.String()] = cand
	}

	ordered := make([]Candidate, 0, len(sc.Candidates))
	taken := make(map[string]bool, len(reranked))
	for _, r := range reranked {
		cand, ok := byID[r.ID]
		if !ok || taken[r.ID] {
			continue
		}
		score := r.Score
		cand.RerankScore = &score
		ordered = append(ordered, cand)
		taken[r.ID] = true
	}
	for _, cand := range sc.Candidates {
		if !taken[cand.Passage.ID.String()] {
			ordered = append(ordered, cand)
		}
	}

	sc.Candidates = truncate(ordered, sc.FinalK)
}

func truncate(candidates []Candidate, k int) []Candidate {
	if k > 0 && len(candidates) > k {
		return candidates[:k]
	}
	return candidates
}

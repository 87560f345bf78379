package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"corpus-qa/internal/domain"
)

// ProbeLabelStandalone identifies the standalone-question probe. Variants are
// labeled "variant_1".. in generation order; the HyDE probe is "hyde".
const (
	ProbeLabelStandalone = "standalone"
	ProbeLabelHyde       = "hyde"
)

type probe struct {
	Label string
	Text  string
}

// buildProbes assembles the probe set in fixed order: standalone question,
// then variants, then the HyDE passage if present. The fixed order keeps the
// fused output deterministic regardless of search completion order.
func buildProbes(sc *StageContext) []probe {
	probes := make([]probe, 0, 2+len(sc.Variants))
	probes = append(probes, probe{Label: ProbeLabelStandalone, Text: sc.StandaloneQuestion})
	for i, v := range sc.Variants {
		probes = append(probes, probe{Label: fmt.Sprintf("variant_%d", i+1), Text: v})
	}
	if sc.HydeDocument != "" {
		probes = append(probes, probe{Label: ProbeLabelHyde, Text: sc.HydeDocument})
	}
	return probes
}

// FuseProbes runs one embed+search per probe concurrently and merges the
// ranked lists into a deduplicated Candidate set (Retrieving stage).
//
// Fusion is reciprocal-rank based: each probe contributes 1/(rank + K) for
// every passage in its list, rank 0-based, so a passage recovered by several
// independent phrasings outranks one that merely scored highest under a
// single phrasing. Ordering is deterministic: fused score descending, then
// best single-probe rank, then passage ID.
//
// Failure policy: individual probe failures are recorded as degradations and
// fusion proceeds with whatever completed, provided at least one probe
// succeeded. When every probe fails the stage returns a
// RetrievalUnavailableError; this is the only condition the pipeline cannot
// degrade past.
func FuseProbes(
	ctx context.Context,
	sc *StageContext,
	encoder domain.VectorEncoder,
	repo domain.PassageRepository,
	logger *slog.Logger,
) error {
	probes := buildProbes(sc)

	logger.InfoContext(ctx, "probe_searches_started",
		slog.Int("probe_count", len(probes)))

	searchStart := time.Now()

	// Scatter: each probe branch embeds its text and searches, writing to
	// its own pre-allocated slot. No shared mutable state across branches.
	resultLists := make([][]domain.Passage, len(probes))
	probeErrs := make([]error, len(probes))

	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func(idx int, p probe) {
			defer wg.Done()
			embeddings, err := encoder.Encode(ctx, []string{p.Text})
			if err != nil {
				probeErrs[idx] = fmt.Errorf("encode probe %q: %w", p.Label, err)
				return
			}
			if len(embeddings) == 0 {
				probeErrs[idx] = fmt.Errorf("no embedding returned for probe %q", p.Label)
				return
			}
			results, err := repo.Search(ctx, embeddings[0], sc.Collection, sc.TopKPerProbe)
			if err != nil {
				probeErrs[idx] = fmt.Errorf("search probe %q: %w", p.Label, err)
				return
			}
			resultLists[idx] = results
		}(i, p)
	}
	wg.Wait()

	succeeded := 0
	var lastErr error
	attempted := make([]string, len(probes))
	for i, p := range probes {
		attempted[i] = p.Label
		if probeErrs[i] != nil {
			lastErr = probeErrs[i]
			continue
		}
		succeeded++
	}

	if succeeded == 0 {
		logger.ErrorContext(ctx, "all_probe_searches_failed",
			slog.Int("probe_count", len(probes)),
			slog.String("error", lastErr.Error()))
		return &domain.RetrievalUnavailableError{
			Collection: sc.Collection,
			Probes:     attempted,
			LastErr:    lastErr,
		}
	}
	for i, p := range probes {
		if probeErrs[i] != nil {
			sc.Degrade(StageRetrieve, fmt.Sprintf("probe %s: %v", p.Label, probeErrs[i]))
			logger.WarnContext(ctx, "probe_search_failed",
				slog.String("probe", p.Label),
				slog.String("error", probeErrs[i].Error()))
		}
	}

	logger.InfoContext(ctx, "probe_searches_completed",
		slog.Int("succeeded", succeeded),
		slog.Int("failed", len(probes)-succeeded),
		slog.Int64("duration_ms", time.Since(searchStart).Milliseconds()))

	// Gather: merge by passage ID with reciprocal-rank fusion. Probes are
	// walked in fixed order, so Probes labels come out deterministic.
	sc.Candidates = fuseLists(probes, resultLists, sc.RRFK, sc.PreRerankWidth)

	logger.InfoContext(ctx, "fusion_completed",
		slog.Int("candidate_count", len(sc.Candidates)))

	return nil
}

// fuseLists merges per-probe ranked passage lists into one deduplicated,
// deterministically ordered candidate list truncated to width.
func fuseLists(probes []probe, resultLists [][]domain.Passage, rrfK float64, width int) []Candidate {
	merged := make(map[string]*Candidate)

	for i := range probes {
		for rank, passage := range resultLists[i] {
			key := passage.ID.String()
			cand, ok := merged[key]
			if !ok {
				cand = &Candidate{Passage: passage, BestRank: rank}
				merged[key] = cand
			}
			cand.FusedScore += 1.0 / (float64(rank) + rrfK)
			if rank < cand.BestRank {
				cand.BestRank = rank
			}
			cand.Probes = append(cand.Probes, probes[i].Label)
		}
	}

	candidates := make([]Candidate, 0, len(merged))
	for _, cand := range merged {
		candidates = append(candidates, *cand)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].FusedScore != candidates[j].FusedScore {
			return candidates[i].FusedScore > candidates[j].FusedScore
		}
		if candidates[i].BestRank != candidates[j].BestRank {
			return candidates[i].BestRank < candidates[j].BestRank
		}
		return candidates[i].Passage.ID.String() < candidates[j].Passage.ID.String()
	})

	if width > 0 && len(candidates) > width {
		candidates = candidates[:width]
	}
	return candidates
}

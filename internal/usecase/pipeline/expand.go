package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"corpus-qa/internal/domain"

	"golang.org/x/sync/errgroup"
)

// ExpandConfig holds parameters for the two expansion sub-stages.
type ExpandConfig struct {
	VariantCount     int
	VariantTimeout   time.Duration
	VariantMaxTokens int
	HydeTimeout      time.Duration
	HydeMaxTokens    int
}

// ExpandProbes runs variant generation and HyDE generation concurrently
// (Expanding stage). The two sub-stages are independent; either may fail
// without affecting the other, and both failures together still leave the
// standalone question as a valid single probe. A nil client disables the
// corresponding sub-stage without recording a degradation.
//
// Each branch writes only its own slot; degradations are appended after the
// join so the stage context is never touched concurrently.
func ExpandProbes(
	ctx context.Context,
	sc *StageContext,
	variantLLM domain.LLMClient,
	hydeLLM domain.LLMClient,
	cfg ExpandConfig,
	logger *slog.Logger,
) {
	var (
		variants            []string
		hydeDoc             string
		variantDeg, hydeDeg *Degradation
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if variantLLM == nil || cfg.VariantCount <= 0 {
			return nil
		}
		variantStart := time.Now()
		vctx, cancel := context.WithTimeout(gctx, cfg.VariantTimeout)
		defer cancel()

		resp, err := variantLLM.Generate(vctx, buildVariantPrompt(sc.StandaloneQuestion, cfg.VariantCount), cfg.VariantMaxTokens)
		if err != nil {
			variantDeg = &Degradation{Stage: StageVariants, Reason: err.Error()}
			logger.WarnContext(ctx, "variant_generation_failed",
				slog.String("error", err.Error()),
				slog.Int64("duration_ms", time.Since(variantStart).Milliseconds()))
			return nil // non-fatal
		}

		variants = parseVariants(resp.Text, sc.StandaloneQuestion, cfg.VariantCount)
		logger.InfoContext(ctx, "variants_generated",
			slog.Int("count", len(variants)),
			slog.Any("variants", variants),
			slog.Int64("duration_ms", time.Since(variantStart).Milliseconds()))
		return nil
	})

	g.Go(func() error {
		if hydeLLM == nil {
			return nil
		}
		hydeStart := time.Now()
		hctx, cancel := context.WithTimeout(gctx, cfg.HydeTimeout)
		defer cancel()

		resp, err := hydeLLM.Generate(hctx, buildHydePrompt(sc.StandaloneQuestion), cfg.HydeMaxTokens)
		if err != nil {
			hydeDeg = &Degradation{Stage: StageHyde, Reason: err.Error()}
			logger.WarnContext(ctx, "hyde_generation_failed",
				slog.String("error", err.Error()),
				slog.Int64("duration_ms", time.Since(hydeStart).Milliseconds()))
			return nil // non-fatal
		}

		hypo := strings.TrimSpace(resp.Text)
		if hypo == "" {
			hydeDeg = &Degradation{Stage: StageHyde, Reason: "empty hyde response"}
			logger.WarnContext(ctx, "hyde_returned_empty")
			return nil
		}

		hydeDoc = hypo
		logger.InfoContext(ctx, "hyde_generated",
			slog.Int("length", len(hypo)),
			slog.Int64("duration_ms", time.Since(hydeStart).Milliseconds()))
		return nil
	})

	// Both sub-stages are non-fatal; Wait only joins the fan-out.
	_ = g.Wait()

	sc.Variants = variants
	sc.HydeDocument = hydeDoc
	if variantDeg != nil {
		sc.Degradations = append(sc.Degradations, *variantDeg)
	}
	if hydeDeg != nil {
		sc.Degradations = append(sc.Degradations, *hydeDeg)
	}
}

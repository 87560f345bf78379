package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"corpus-qa/internal/domain"
)

// RewriteConfig holds question-rewriting stage parameters.
type RewriteConfig struct {
	Timeout   time.Duration
	MaxTokens int
}

// RewriteQuestion turns (question, history) into a standalone question.
// With empty history the stage is a pure no-op: the input is used verbatim
// and no remote call is made. Any failure degrades to the original question;
// this stage can never fail the request.
func RewriteQuestion(
	ctx context.Context,
	sc *StageContext,
	llm domain.LLMClient,
	cfg RewriteConfig,
	logger *slog.Logger,
) {
	sc.StandaloneQuestion = sc.Question

	if len(sc.History) == 0 {
		return
	}
	if llm == nil {
		// Rewriting disabled at startup; not a degradation.
		return
	}

	rewriteStart := time.Now()
	rewriteCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	resp, err := llm.Generate(rewriteCtx, buildRewritePrompt(sc.Question, sc.History), cfg.MaxTokens)
	if err != nil {
		sc.Degrade(StageRewrite, err.Error())
		logger.WarnContext(ctx, "rewrite_failed_using_original_question",
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", time.Since(rewriteStart).Milliseconds()))
		return
	}

	rewritten := extractResultTag(resp.Text)
	if strings.TrimSpace(rewritten) == "" {
		sc.Degrade(StageRewrite, "empty rewrite response")
		logger.WarnContext(ctx, "rewrite_returned_empty")
		return
	}

	sc.StandaloneQuestion = rewritten
	logger.InfoContext(ctx, "question_rewritten",
		slog.String("standalone", rewritten),
		slog.Int64("duration_ms", time.Since(rewriteStart).Milliseconds()))
}

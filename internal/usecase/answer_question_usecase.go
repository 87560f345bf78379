package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"corpus-qa/internal/domain"
	"corpus-qa/internal/usecase/pipeline"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// AnswerQuestionInput encapsulates the parameters that drive one request.
type AnswerQuestionInput struct {
	Question string
	History  []domain.HistoryTurn
}

// AnswerQuestionOutput is the normalized response returned to API clients.
// It carries the synthesized answer plus the provenance of the retrieval:
// the standalone question used, the variants, the HyDE passage if any, and
// every degradation the pipeline recorded.
type AnswerQuestionOutput struct {
	Question           string
	StandaloneQuestion string
	Answer             string
	Contexts           []pipeline.Candidate
	Variants           []string
	HydeDocument       string
	Degradations       []pipeline.Degradation
}

// AnswerQuestionUsecase defines the contract for generating grounded answers.
type AnswerQuestionUsecase interface {
	Execute(ctx context.Context, input AnswerQuestionInput) (*AnswerQuestionOutput, error)
}

type answerQuestionUsecase struct {
	retrieve      RetrievePassagesUsecase
	promptBuilder AnswerPromptBuilder
	llmClient     domain.LLMClient
	maxTokens     int
	logger        *slog.Logger

	answerCache *lru.LRU[string, *AnswerQuestionOutput]
}

// AnswerQuestionOption configures the usecase.
type AnswerQuestionOption func(*answerQuestionUsecase)

// WithAnswerCache enables an expiring LRU cache keyed by question+history.
// Only requests without degradations are cached so a transient stage failure
// never pins a degraded answer.
func WithAnswerCache(size int, ttl time.Duration) AnswerQuestionOption {
	return func(u *answerQuestionUsecase) {
		if size > 0 && ttl > 0 {
			u.answerCache = lru.NewLRU[string, *AnswerQuestionOutput](size, nil, ttl)
		}
	}
}

// NewAnswerQuestionUsecase wires together retrieval and synthesis.
func NewAnswerQuestionUsecase(
	retrieve RetrievePassagesUsecase,
	promptBuilder AnswerPromptBuilder,
	llmClient domain.LLMClient,
	maxTokens int,
	logger *slog.Logger,
	opts ...AnswerQuestionOption,
) AnswerQuestionUsecase {
	u := &answerQuestionUsecase{
		retrieve:      retrieve,
		promptBuilder: promptBuilder,
		llmClient:     llmClient,
		maxTokens:     maxTokens,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *answerQuestionUsecase) Execute(ctx context.Context, input AnswerQuestionInput) (*AnswerQuestionOutput, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, fmt.Errorf("question is required")
	}

	cacheKey := u.cacheKey(input)
	if u.answerCache != nil {
		if cached, ok := u.answerCache.Get(cacheKey); ok {
			u.logger.Info("answer_cache_hit", slog.String("question", truncate(input.Question, 100)))
			return cached, nil
		}
	}

	ranked, err := u.retrieve.Execute(ctx, RetrievePassagesInput{
		Question: input.Question,
		History:  input.History,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	output := &AnswerQuestionOutput{
		Question:           input.Question,
		StandaloneQuestion: ranked.StandaloneQuestion,
		Contexts:           ranked.Candidates,
		Variants:           ranked.Variants,
		HydeDocument:       ranked.HydeDocument,
		Degradations:       ranked.Degradations,
	}

	if len(ranked.Candidates) == 0 {
		output.Answer = "No relevant information was found in the corpus."
		return output, nil
	}

	prompt, err := u.promptBuilder.Build(ranked.StandaloneQuestion, ranked.Candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	synthStart := time.Now()
	resp, err := u.llmClient.Generate(ctx, prompt, u.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		u.logger.Warn("llm_returned_empty_answer",
			slog.Int("context_count", len(ranked.Candidates)))
		return nil, fmt.Errorf("answer generation returned empty response")
	}

	output.Answer = strings.TrimSpace(resp.Text)
	u.logger.Info("answer_generated",
		slog.Int("context_count", len(ranked.Candidates)),
		slog.Int("answer_length", len(output.Answer)),
		slog.Int64("duration_ms", time.Since(synthStart).Milliseconds()))

	if u.answerCache != nil && len(output.Degradations) == 0 {
		u.answerCache.Add(cacheKey, output)
	}

	return output, nil
}

func (u *answerQuestionUsecase) cacheKey(input AnswerQuestionInput) string {
	h := sha256.New()
	h.Write([]byte(input.Question))
	for _, turn := range input.History {
		h.Write([]byte{0})
		h.Write([]byte(turn.Role))
		h.Write([]byte{0})
		h.Write([]byte(turn.Content))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

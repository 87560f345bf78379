package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"corpus-qa/internal/domain"
	"corpus-qa/internal/infra/logger"
	"corpus-qa/internal/usecase/pipeline"

	"github.com/google/uuid"
)

// RetrievePassagesInput defines the entry point of the retrieval pipeline.
type RetrievePassagesInput struct {
	Question string
	History  []domain.HistoryTurn
}

// RetrievePassagesUsecase runs the full retrieval pipeline: rewrite, expand,
// fuse, rerank. Its output is the RankedResult consumed by answer synthesis.
type RetrievePassagesUsecase interface {
	Execute(ctx context.Context, input RetrievePassagesInput) (*pipeline.RankedResult, error)
}

type retrievePassagesUsecase struct {
	passageRepo domain.PassageRepository
	encoder     domain.VectorEncoder
	llmClient   domain.LLMClient

	// Optional stages, resolved once at construction. A nil field means
	// the stage is disabled; stage code treats nil as a silent no-op.
	rewriteLLM domain.LLMClient
	variantLLM domain.LLMClient
	hydeLLM    domain.LLMClient
	reranker   domain.Reranker

	cfg    RetrievalConfig
	logger *slog.Logger
}

// RetrievePassagesOption configures optional pipeline stages.
type RetrievePassagesOption func(*retrievePassagesUsecase)

// WithReranker enables cross-encoder reranking.
func WithReranker(r domain.Reranker) RetrievePassagesOption {
	return func(u *retrievePassagesUsecase) {
		u.reranker = r
	}
}

// NewRetrievePassagesUsecase wires the pipeline stages. Stage toggles from
// the config are resolved here, once: a disabled stage stays nil for the
// lifetime of the usecase rather than being re-checked per request.
func NewRetrievePassagesUsecase(
	passageRepo domain.PassageRepository,
	encoder domain.VectorEncoder,
	llmClient domain.LLMClient,
	cfg RetrievalConfig,
	logger *slog.Logger,
	opts ...RetrievePassagesOption,
) (RetrievePassagesUsecase, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retrieval config: %w", err)
	}

	u := &retrievePassagesUsecase{
		passageRepo: passageRepo,
		encoder:     encoder,
		llmClient:   llmClient,
		cfg:         cfg,
		logger:      logger,
	}
	if cfg.Rewrite.Enabled {
		u.rewriteLLM = llmClient
	}
	if cfg.Fusion.Enabled {
		u.variantLLM = llmClient
	}
	if cfg.Hyde.Enabled {
		u.hydeLLM = llmClient
	}
	for _, opt := range opts {
		opt(u)
	}
	if !cfg.Rerank.Enabled {
		u.reranker = nil
	}
	return u, nil
}

// Execute drives the request through the pipeline state machine:
// Received -> Rewriting -> Expanding -> Retrieving -> Reranking -> Completed.
// Failed is reachable only from Retrieving; every other stage failure
// transitions forward with a recorded degradation.
func (u *retrievePassagesUsecase) Execute(ctx context.Context, input RetrievePassagesInput) (*pipeline.RankedResult, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, fmt.Errorf("question is empty")
	}

	sc := &pipeline.StageContext{
		RequestID:      uuid.New().String(),
		Question:       input.Question,
		History:        input.History,
		Collection:     u.cfg.Collection,
		State:          pipeline.StateReceived,
		TopKPerProbe:   u.cfg.TopKPerProbe,
		PreRerankWidth: u.cfg.PreRerankWidth,
		FinalK:         u.cfg.FinalK,
		RRFK:           u.cfg.RRFK,
	}

	// Request ID and collection travel in the context from here on; the
	// logger's ContextHandler surfaces them on every record below.
	ctx = logger.WithRequestID(ctx, sc.RequestID)
	ctx = logger.WithCollection(ctx, sc.Collection)

	pipelineStart := time.Now()
	u.logger.InfoContext(ctx, "pipeline_started",
		slog.Int("history_turns", len(sc.History)))

	sc.State = pipeline.StateRewriting
	pipeline.RewriteQuestion(logger.WithStage(ctx, string(sc.State)), sc, u.rewriteLLM, pipeline.RewriteConfig{
		Timeout:   u.cfg.Rewrite.Timeout,
		MaxTokens: u.cfg.Rewrite.MaxTokens,
	}, u.logger)

	sc.State = pipeline.StateExpanding
	pipeline.ExpandProbes(logger.WithStage(ctx, string(sc.State)), sc, u.variantLLM, u.hydeLLM, u.cfg.expandConfig(), u.logger)

	sc.State = pipeline.StateRetrieving
	if err := pipeline.FuseProbes(logger.WithStage(ctx, string(sc.State)), sc, u.encoder, u.passageRepo, u.logger); err != nil {
		sc.State = pipeline.StateFailed
		u.logger.ErrorContext(ctx, "pipeline_failed",
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", time.Since(pipelineStart).Milliseconds()))
		return nil, err
	}

	sc.State = pipeline.StateReranking
	pipeline.Rerank(logger.WithStage(ctx, string(sc.State)), sc, u.reranker, pipeline.RerankConfig{
		Timeout: u.cfg.Rerank.Timeout,
	}, u.logger)

	sc.State = pipeline.StateCompleted
	u.logger.InfoContext(ctx, "pipeline_completed",
		slog.Int("candidate_count", len(sc.Candidates)),
		slog.Int("variant_count", len(sc.Variants)),
		slog.Bool("hyde_used", sc.HydeDocument != ""),
		slog.Int("degradation_count", len(sc.Degradations)),
		slog.Int64("duration_ms", time.Since(pipelineStart).Milliseconds()))

	return sc.Result(), nil
}

package di

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"corpus-qa/internal/adapter/modelclient"
	"corpus-qa/internal/adapter/repository"
	"corpus-qa/internal/domain"
	"corpus-qa/internal/infra/config"
	"corpus-qa/internal/infra/httpclient"
	"corpus-qa/internal/usecase"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	// Repositories
	PassageRepo domain.PassageRepository
	TxManager   domain.TransactionManager

	// Usecases
	RetrieveUsecase usecase.RetrievePassagesUsecase
	AnswerUsecase   usecase.AnswerQuestionUsecase
	IndexUsecase    usecase.IndexDocumentUsecase

	// Adapters exposed for CLI wiring
	Encoder domain.VectorEncoder
	Chunker domain.Chunker
}

// NewApplicationComponents wires all dependencies from config and database pool.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) (*ApplicationComponents, error) {
	// Repositories
	passageRepo := repository.NewPassageRepository(pool)
	txManager := repository.NewPostgresTransactionManager(pool)

	// Shared HTTP clients with connection pooling
	embedderHTTP := httpclient.NewPooledClient(cfg.EmbedTimeout)
	generatorHTTP := httpclient.NewPooledClient(120 * time.Second)
	rerankHTTP := httpclient.NewPooledClient(cfg.RerankTimeout)

	// External clients
	embedder := modelclient.NewEmbedderClient(cfg.ModelURL, cfg.EmbeddingModel, cfg.EmbedTimeout, log, embedderHTTP)
	generator := modelclient.NewGeneratorClient(cfg.ModelURL, cfg.GenerationModel, cfg.GenerationRPS, log, generatorHTTP)

	// Domain services
	chunker := domain.NewChunkerWithBounds(cfg.ChunkMinLength, cfg.ChunkSize, cfg.ChunkOverlap)

	// Retrieval config
	retrievalConfig := usecase.RetrievalConfig{
		Collection:     cfg.Collection,
		TopKPerProbe:   cfg.TopKPerProbe,
		PreRerankWidth: cfg.PreRerankWidth,
		FinalK:         cfg.FinalK,
		RRFK:           cfg.RRFK,
		Rewrite: usecase.RewriteStageConfig{
			Enabled:   cfg.RewriteEnabled,
			Timeout:   cfg.RewriteTimeout,
			MaxTokens: cfg.RewriteMaxTokens,
		},
		Fusion: usecase.FusionStageConfig{
			Enabled:      cfg.FusionEnabled,
			VariantCount: cfg.VariantCount,
			Timeout:      cfg.VariantTimeout,
			MaxTokens:    cfg.VariantMaxTokens,
		},
		Hyde: usecase.HydeStageConfig{
			Enabled:   cfg.HydeEnabled,
			Timeout:   cfg.HydeTimeout,
			MaxTokens: cfg.HydeMaxTokens,
		},
		Rerank: usecase.RerankStageConfig{
			Enabled: cfg.RerankEnabled,
			Timeout: cfg.RerankTimeout,
		},
	}

	// Optional components
	var opts []usecase.RetrievePassagesOption
	if cfg.RerankEnabled {
		rerankerClient := modelclient.NewRerankerClient(
			cfg.RerankerURL,
			cfg.RerankerModel,
			cfg.RerankTimeout,
			log,
			rerankHTTP,
		)
		opts = append(opts, usecase.WithReranker(rerankerClient))
		log.Info("reranker_enabled",
			slog.String("url", cfg.RerankerURL),
			slog.String("model", cfg.RerankerModel))
	}

	// Retrieve usecase
	retrieveUsecase, err := usecase.NewRetrievePassagesUsecase(
		passageRepo, embedder, generator, retrievalConfig, log, opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build retrieve usecase: %w", err)
	}

	// Answer usecase
	promptBuilder := usecase.NewContextBlockPromptBuilder()
	answerUsecase := usecase.NewAnswerQuestionUsecase(
		retrieveUsecase, promptBuilder, generator,
		cfg.AnswerMaxTokens, log,
		usecase.WithAnswerCache(cfg.AnswerCacheSize, cfg.AnswerCacheTTL),
	)

	// Index usecase
	indexUsecase := usecase.NewIndexDocumentUsecase(passageRepo, txManager, chunker, embedder)

	return &ApplicationComponents{
		PassageRepo:     passageRepo,
		TxManager:       txManager,
		RetrieveUsecase: retrieveUsecase,
		AnswerUsecase:   answerUsecase,
		IndexUsecase:    indexUsecase,
		Encoder:         embedder,
		Chunker:         chunker,
	}, nil
}

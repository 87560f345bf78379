package usecase

import (
	"context"
	"io"
	"log/slog"

	"corpus-qa/internal/domain"
	"corpus-qa/internal/usecase/pipeline"

	"github.com/stretchr/testify/mock"
)

type mockLLMClient struct {
	mock.Mock
}

func (m *mockLLMClient) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error) {
	args := m.Called(ctx, prompt, maxTokens)
	if resp := args.Get(0); resp != nil {
		return resp.(*domain.LLMResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLLMClient) Version() string {
	return "mock-llm"
}

type mockVectorEncoder struct {
	mock.Mock
}

func (m *mockVectorEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if embeddings := args.Get(0); embeddings != nil {
		return embeddings.([][]float32), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockVectorEncoder) Version() string {
	return "mock-encoder"
}

type mockPassageRepository struct {
	mock.Mock
}

func (m *mockPassageRepository) Search(ctx context.Context, queryVector []float32, collection string, limit int) ([]domain.Passage, error) {
	args := m.Called(ctx, queryVector, collection, limit)
	if passages := args.Get(0); passages != nil {
		return passages.([]domain.Passage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPassageRepository) BulkInsertPassages(ctx context.Context, passages []domain.Passage) error {
	args := m.Called(ctx, passages)
	return args.Error(0)
}

func (m *mockPassageRepository) DeleteCollection(ctx context.Context, collection string) (int64, error) {
	args := m.Called(ctx, collection)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPassageRepository) CountCollection(ctx context.Context, collection string) (int64, error) {
	args := m.Called(ctx, collection)
	return args.Get(0).(int64), args.Error(1)
}

type mockReranker struct {
	mock.Mock
}

func (m *mockReranker) Rerank(ctx context.Context, question string, candidates []domain.RerankCandidate) ([]domain.RerankResult, error) {
	args := m.Called(ctx, question, candidates)
	if results := args.Get(0); results != nil {
		return results.([]domain.RerankResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReranker) ModelName() string {
	return "mock-reranker"
}

type mockRetrieveUsecase struct {
	mock.Mock
}

func (m *mockRetrieveUsecase) Execute(ctx context.Context, input RetrievePassagesInput) (*pipeline.RankedResult, error) {
	args := m.Called(ctx, input)
	if result := args.Get(0); result != nil {
		return result.(*pipeline.RankedResult), args.Error(1)
	}
	return nil, args.Error(1)
}

// fakeTxManager runs the callback directly without a database.
type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

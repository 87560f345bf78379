package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"corpus-qa/internal/domain"
	"corpus-qa/internal/usecase/pipeline"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func rankedResultWithCandidates() *pipeline.RankedResult {
	return &pipeline.RankedResult{
		StandaloneQuestion: "what indexes does pgvector support?",
		Candidates: []pipeline.Candidate{
			{Passage: domain.Passage{
				ID:        uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001"),
				SourceKey: "docs/pgvector.md",
				Content:   "pgvector supports HNSW and IVFFlat indexes.",
			}},
		},
	}
}

func TestAnswerQuestion_EmptyQuestionFails(t *testing.T) {
	u := NewAnswerQuestionUsecase(new(mockRetrieveUsecase), NewContextBlockPromptBuilder(), new(mockLLMClient), 768, testLogger())

	_, err := u.Execute(context.Background(), AnswerQuestionInput{Question: "  "})
	require.Error(t, err)
}

func TestAnswerQuestion_HappyPath(t *testing.T) {
	retrieve := new(mockRetrieveUsecase)
	retrieve.On("Execute", mock.Anything, mock.Anything).Return(rankedResultWithCandidates(), nil)

	llm := new(mockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything, 768).
		Return(&domain.LLMResponse{Text: "pgvector supports HNSW and IVFFlat.", Done: true}, nil)

	u := NewAnswerQuestionUsecase(retrieve, NewContextBlockPromptBuilder(), llm, 768, testLogger())

	output, err := u.Execute(context.Background(), AnswerQuestionInput{Question: "which indexes?"})
	require.NoError(t, err)

	assert.Equal(t, "pgvector supports HNSW and IVFFlat.", output.Answer)
	assert.Equal(t, "what indexes does pgvector support?", output.StandaloneQuestion)
	require.Len(t, output.Contexts, 1)
	llm.AssertExpectations(t)
}

func TestAnswerQuestion_NoCandidatesSkipsGeneration(t *testing.T) {
	retrieve := new(mockRetrieveUsecase)
	retrieve.On("Execute", mock.Anything, mock.Anything).
		Return(&pipeline.RankedResult{StandaloneQuestion: "q"}, nil)

	llm := new(mockLLMClient)

	u := NewAnswerQuestionUsecase(retrieve, NewContextBlockPromptBuilder(), llm, 768, testLogger())

	output, err := u.Execute(context.Background(), AnswerQuestionInput{Question: "q"})
	require.NoError(t, err)

	assert.Equal(t, "No relevant information was found in the corpus.", output.Answer)
	llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnswerQuestion_RetrievalErrorPropagates(t *testing.T) {
	retrieve := new(mockRetrieveUsecase)
	retrieve.On("Execute", mock.Anything, mock.Anything).
		Return(nil, &domain.RetrievalUnavailableError{Collection: "docs", LastErr: errors.New("db down")})

	u := NewAnswerQuestionUsecase(retrieve, NewContextBlockPromptBuilder(), new(mockLLMClient), 768, testLogger())

	_, err := u.Execute(context.Background(), AnswerQuestionInput{Question: "q"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
}

func TestAnswerQuestion_EmptyGenerationFails(t *testing.T) {
	retrieve := new(mockRetrieveUsecase)
	retrieve.On("Execute", mock.Anything, mock.Anything).Return(rankedResultWithCandidates(), nil)

	llm := new(mockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything, 768).
		Return(&domain.LLMResponse{Text: "   ", Done: true}, nil)

	u := NewAnswerQuestionUsecase(retrieve, NewContextBlockPromptBuilder(), llm, 768, testLogger())

	_, err := u.Execute(context.Background(), AnswerQuestionInput{Question: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestAnswerQuestion_CacheHitSkipsRetrieval(t *testing.T) {
	retrieve := new(mockRetrieveUsecase)
	retrieve.On("Execute", mock.Anything, mock.Anything).Return(rankedResultWithCandidates(), nil).Once()

	llm := new(mockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything, 768).
		Return(&domain.LLMResponse{Text: "HNSW and IVFFlat.", Done: true}, nil).Once()

	u := NewAnswerQuestionUsecase(retrieve, NewContextBlockPromptBuilder(), llm, 768, testLogger(),
		WithAnswerCache(16, time.Minute))

	input := AnswerQuestionInput{Question: "which indexes?"}

	first, err := u.Execute(context.Background(), input)
	require.NoError(t, err)

	second, err := u.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	retrieve.AssertNumberOfCalls(t, "Execute", 1)
	llm.AssertNumberOfCalls(t, "Generate", 1)
}

func TestAnswerQuestion_DegradedOutputIsNotCached(t *testing.T) {
	degraded := rankedResultWithCandidates()
	degraded.Degradations = []pipeline.Degradation{{Stage: pipeline.StageRerank, Reason: "reranker down"}}

	retrieve := new(mockRetrieveUsecase)
	retrieve.On("Execute", mock.Anything, mock.Anything).Return(degraded, nil)

	llm := new(mockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything, 768).
		Return(&domain.LLMResponse{Text: "HNSW and IVFFlat.", Done: true}, nil)

	u := NewAnswerQuestionUsecase(retrieve, NewContextBlockPromptBuilder(), llm, 768, testLogger(),
		WithAnswerCache(16, time.Minute))

	input := AnswerQuestionInput{Question: "which indexes?"}

	_, err := u.Execute(context.Background(), input)
	require.NoError(t, err)
	_, err = u.Execute(context.Background(), input)
	require.NoError(t, err)

	retrieve.AssertNumberOfCalls(t, "Execute", 2)
}

func TestAnswerQuestion_HistoryChangesCacheKey(t *testing.T) {
	retrieve := new(mockRetrieveUsecase)
	retrieve.On("Execute", mock.Anything, mock.Anything).Return(rankedResultWithCandidates(), nil)

	llm := new(mockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything, 768).
		Return(&domain.LLMResponse{Text: "HNSW and IVFFlat.", Done: true}, nil)

	u := NewAnswerQuestionUsecase(retrieve, NewContextBlockPromptBuilder(), llm, 768, testLogger(),
		WithAnswerCache(16, time.Minute))

	_, err := u.Execute(context.Background(), AnswerQuestionInput{Question: "which indexes?"})
	require.NoError(t, err)

	_, err = u.Execute(context.Background(), AnswerQuestionInput{
		Question: "which indexes?",
		History:  []domain.HistoryTurn{{Role: "user", Content: "tell me about pgvector"}},
	})
	require.NoError(t, err)

	retrieve.AssertNumberOfCalls(t, "Execute", 2)
}

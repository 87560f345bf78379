package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"corpus-qa/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func rewriteStageContext(history []domain.HistoryTurn) *StageContext {
	return &StageContext{
		RequestID: "req-1",
		Question:  "and what about indexes?",
		History:   history,
	}
}

func TestRewriteQuestion_EmptyHistorySkipsModelCall(t *testing.T) {
	sc := rewriteStageContext(nil)
	llm := new(mockLLMClient)

	RewriteQuestion(context.Background(), sc, llm, RewriteConfig{Timeout: time.Second, MaxTokens: 256}, testLogger())

	assert.Equal(t, "and what about indexes?", sc.StandaloneQuestion)
	assert.Empty(t, sc.Degradations)
	llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestRewriteQuestion_NilClientIsDisabledNotDegraded(t *testing.T) {
	sc := rewriteStageContext([]domain.HistoryTurn{{Role: "user", Content: "tell me about pgvector"}})

	RewriteQuestion(context.Background(), sc, nil, RewriteConfig{Timeout: time.Second, MaxTokens: 256}, testLogger())

	assert.Equal(t, "and what about indexes?", sc.StandaloneQuestion)
	assert.Empty(t, sc.Degradations)
}

func TestRewriteQuestion_Success(t *testing.T) {
	history := []domain.HistoryTurn{{Role: "user", Content: "tell me about pgvector"}}
	sc := rewriteStageContext(history)

	llm := new(mockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything, 256).
		Return(&domain.LLMResponse{Text: "<result>what indexes does pgvector support?</result>", Done: true}, nil)

	RewriteQuestion(context.Background(), sc, llm, RewriteConfig{Timeout: time.Second, MaxTokens: 256}, testLogger())

	assert.Equal(t, "what indexes does pgvector support?", sc.StandaloneQuestion)
	assert.Empty(t, sc.Degradations)
	llm.AssertExpectations(t)
}

func TestRewriteQuestion_FailureFallsBackToOriginal(t *testing.T) {
	history := []domain.HistoryTurn{{Role: "user", Content: "tell me about pgvector"}}
	sc := rewriteStageContext(history)

	llm := new(mockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything, 256).Return(nil, errors.New("model down"))

	RewriteQuestion(context.Background(), sc, llm, RewriteConfig{Timeout: time.Second, MaxTokens: 256}, testLogger())

	assert.Equal(t, "and what about indexes?", sc.StandaloneQuestion)
	require.Len(t, sc.Degradations, 1)
	assert.Equal(t, StageRewrite, sc.Degradations[0].Stage)
}

func TestRewriteQuestion_EmptyResponseFallsBackToOriginal(t *testing.T) {
	history := []domain.HistoryTurn{{Role: "user", Content: "tell me about pgvector"}}
	sc := rewriteStageContext(history)

	llm := new(mockLLMClient)
	llm.On("Generate", mock.Anything, mock.Anything, 256).
		Return(&domain.LLMResponse{Text: "<result>  </result>", Done: true}, nil)

	RewriteQuestion(context.Background(), sc, llm, RewriteConfig{Timeout: time.Second, MaxTokens: 256}, testLogger())

	assert.Equal(t, "and what about indexes?", sc.StandaloneQuestion)
	require.Len(t, sc.Degradations, 1)
	assert.Equal(t, "empty rewrite response", sc.Degradations[0].Reason)
}

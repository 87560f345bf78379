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

func rerankStageContext(candidates []Candidate) *StageContext {
	return &StageContext{
		RequestID:  "req-1",
		Question:   "what is fusion",
		Candidates: candidates,
		FinalK:     2,
	}
}

func fusedCandidates() []Candidate {
	return []Candidate{
		{Passage: passageWith(idA, "a"), FusedScore: 0.03, BestRank: 0},
		{Passage: passageWith(idB, "b"), FusedScore: 0.02, BestRank: 1},
		{Passage: passageWith(idC, "c"), FusedScore: 0.01, BestRank: 2},
	}
}

func TestRerank_NilRerankerTruncatesFusedOrder(t *testing.T) {
	sc := rerankStageContext(fusedCandidates())

	Rerank(context.Background(), sc, nil, RerankConfig{Timeout: time.Second}, testLogger())

	require.Len(t, sc.Candidates, 2)
	assert.Equal(t, idA, sc.Candidates[0].Passage.ID)
	assert.Equal(t, idB, sc.Candidates[1].Passage.ID)
	assert.Nil(t, sc.Candidates[0].RerankScore)
	assert.Empty(t, sc.Degradations)
}

func TestRerank_ReordersByModelScore(t *testing.T) {
	sc := rerankStageContext(fusedCandidates())

	reranker := new(mockReranker)
	reranker.On("Rerank", mock.Anything, "what is fusion", mock.Anything).
		Return([]domain.RerankResult{
			{ID: idC.String(), Score: 0.9},
			{ID: idA.String(), Score: 0.5},
			{ID: idB.String(), Score: 0.1},
		}, nil)

	Rerank(context.Background(), sc, reranker, RerankConfig{Timeout: time.Second}, testLogger())

	require.Len(t, sc.Candidates, 2)
	assert.Equal(t, idC, sc.Candidates[0].Passage.ID)
	assert.Equal(t, idA, sc.Candidates[1].Passage.ID)
	require.NotNil(t, sc.Candidates[0].RerankScore)
	assert.Equal(t, float32(0.9), *sc.Candidates[0].RerankScore)
	assert.Empty(t, sc.Degradations)
}

func TestRerank_OmittedCandidatesKeepFusedOrderBelowReranked(t *testing.T) {
	sc := rerankStageContext(fusedCandidates())
	sc.FinalK = 3

	reranker := new(mockReranker)
	reranker.On("Rerank", mock.Anything, "what is fusion", mock.Anything).
		Return([]domain.RerankResult{{ID: idB.String(), Score: 0.8}}, nil)

	Rerank(context.Background(), sc, reranker, RerankConfig{Timeout: time.Second}, testLogger())

	require.Len(t, sc.Candidates, 3)
	assert.Equal(t, idB, sc.Candidates[0].Passage.ID)
	assert.Equal(t, idA, sc.Candidates[1].Passage.ID)
	assert.Equal(t, idC, sc.Candidates[2].Passage.ID)
	assert.Nil(t, sc.Candidates[1].RerankScore)
}

func TestRerank_UnknownIDsAreIgnored(t *testing.T) {
	sc := rerankStageContext(fusedCandidates())

	reranker := new(mockReranker)
	reranker.On("Rerank", mock.Anything, "what is fusion", mock.Anything).
		Return([]domain.RerankResult{
			{ID: "not-a-candidate", Score: 0.99},
			{ID: idB.String(), Score: 0.7},
		}, nil)

	Rerank(context.Background(), sc, reranker, RerankConfig{Timeout: time.Second}, testLogger())

	require.Len(t, sc.Candidates, 2)
	assert.Equal(t, idB, sc.Candidates[0].Passage.ID)
	assert.Equal(t, idA, sc.Candidates[1].Passage.ID)
}

func TestRerank_FailureFallsBackToFusedOrder(t *testing.T) {
	sc := rerankStageContext(fusedCandidates())

	reranker := new(mockReranker)
	reranker.On("Rerank", mock.Anything, "what is fusion", mock.Anything).
		Return(nil, errors.New("reranker down"))

	Rerank(context.Background(), sc, reranker, RerankConfig{Timeout: time.Second}, testLogger())

	require.Len(t, sc.Candidates, 2)
	assert.Equal(t, idA, sc.Candidates[0].Passage.ID)
	assert.Equal(t, idB, sc.Candidates[1].Passage.ID)
	require.Len(t, sc.Degradations, 1)
	assert.Equal(t, StageRerank, sc.Degradations[0].Stage)
}

func TestRerank_EmptyResponseFallsBackToFusedOrder(t *testing.T) {
	sc := rerankStageContext(fusedCandidates())

	reranker := new(mockReranker)
	reranker.On("Rerank", mock.Anything, "what is fusion", mock.Anything).
		Return([]domain.RerankResult{}, nil)

	Rerank(context.Background(), sc, reranker, RerankConfig{Timeout: time.Second}, testLogger())

	require.Len(t, sc.Candidates, 2)
	assert.Equal(t, idA, sc.Candidates[0].Passage.ID)
	require.Len(t, sc.Degradations, 1)
	assert.Equal(t, "empty rerank response", sc.Degradations[0].Reason)
}

func TestRerank_EmptyCandidatesIsNoOp(t *testing.T) {
	sc := rerankStageContext(nil)

	reranker := new(mockReranker)

	Rerank(context.Background(), sc, reranker, RerankConfig{Timeout: time.Second}, testLogger())

	assert.Empty(t, sc.Candidates)
	assert.Empty(t, sc.Degradations)
	reranker.AssertNotCalled(t, "Rerank", mock.Anything, mock.Anything, mock.Anything)
}

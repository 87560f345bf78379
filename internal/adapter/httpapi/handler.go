package httpapi

import (
	"context"
	"errors"
	"net/http"

	"corpus-qa/internal/domain"
	"corpus-qa/internal/usecase"
	"corpus-qa/internal/usecase/pipeline"

	"github.com/labstack/echo/v4"
)

// RetrieveRequest is the payload for POST /v1/retrieve.
type RetrieveRequest struct {
	Question string               `json:"question"`
	History  []domain.HistoryTurn `json:"history,omitempty"`
}

// PassageResult is one ranked passage in a retrieval response.
type PassageResult struct {
	ID           string   `json:"id"`
	SourceBucket string   `json:"source_bucket,omitempty"`
	SourceKey    string   `json:"source_key,omitempty"`
	ChunkOrdinal int      `json:"chunk_ordinal"`
	Content      string   `json:"content"`
	FusedScore   float64  `json:"fused_score"`
	RerankScore  *float32 `json:"rerank_score,omitempty"`
	Probes       []string `json:"probes"`
}

// DegradationInfo reports a stage that fell back during the request.
type DegradationInfo struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// RetrieveResponse is the payload for POST /v1/retrieve.
type RetrieveResponse struct {
	StandaloneQuestion string            `json:"standalone_question"`
	Variants           []string          `json:"variants,omitempty"`
	HydeDocument       string            `json:"hyde_document,omitempty"`
	Passages           []PassageResult   `json:"passages"`
	Degradations       []DegradationInfo `json:"degradations,omitempty"`
}

// QueryRequest is the payload for POST /v1/query.
type QueryRequest struct {
	Question string               `json:"question"`
	History  []domain.HistoryTurn `json:"history,omitempty"`
}

// QueryResponse is the payload for POST /v1/query.
type QueryResponse struct {
	Question           string            `json:"question"`
	StandaloneQuestion string            `json:"standalone_question"`
	Answer             string            `json:"answer"`
	Contexts           []PassageResult   `json:"contexts"`
	QueryVariants      []string          `json:"query_variants,omitempty"`
	HydeDocument       string            `json:"hyde_document,omitempty"`
	Degradations       []DegradationInfo `json:"degradations,omitempty"`
}

// Handler exposes the retrieval and answering endpoints over HTTP.
type Handler struct {
	retrieveUsecase usecase.RetrievePassagesUsecase
	answerUsecase   usecase.AnswerQuestionUsecase
	ready           func(ctx context.Context) error
}

// NewHandler constructs the HTTP handler. ready is probed by GET /readyz and
// should check downstream connectivity (nil means always ready).
func NewHandler(
	retrieveUsecase usecase.RetrievePassagesUsecase,
	answerUsecase usecase.AnswerQuestionUsecase,
	ready func(ctx context.Context) error,
) *Handler {
	return &Handler{
		retrieveUsecase: retrieveUsecase,
		answerUsecase:   answerUsecase,
		ready:           ready,
	}
}

// RegisterRoutes mounts all endpoints on the echo instance.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	e.GET("/readyz", h.Readyz)
	e.POST("/v1/retrieve", h.Retrieve)
	e.POST("/v1/query", h.Query)
}

// Healthz reports process liveness.
func (h *Handler) Healthz(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports downstream readiness.
func (h *Handler) Readyz(ctx echo.Context) error {
	if h.ready != nil {
		if err := h.ready(ctx.Request().Context()); err != nil {
			return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
		}
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Retrieve runs the retrieval pipeline without answer synthesis.
// (POST /v1/retrieve)
func (h *Handler) Retrieve(ctx echo.Context) error {
	var req RetrieveRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Question == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "question is required"})
	}

	ranked, err := h.retrieveUsecase.Execute(ctx.Request().Context(), usecase.RetrievePassagesInput{
		Question: req.Question,
		History:  req.History,
	})
	if err != nil {
		if errors.Is(err, domain.ErrRetrievalUnavailable) {
			return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"error": "retrieval backend unavailable"})
		}
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return ctx.JSON(http.StatusOK, RetrieveResponse{
		StandaloneQuestion: ranked.StandaloneQuestion,
		Variants:           ranked.Variants,
		HydeDocument:       ranked.HydeDocument,
		Passages:           toPassageResults(ranked.Candidates),
		Degradations:       toDegradationInfos(ranked.Degradations),
	})
}

// Query runs retrieval followed by answer synthesis.
// (POST /v1/query)
func (h *Handler) Query(ctx echo.Context) error {
	var req QueryRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Question == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "question is required"})
	}

	output, err := h.answerUsecase.Execute(ctx.Request().Context(), usecase.AnswerQuestionInput{
		Question: req.Question,
		History:  req.History,
	})
	if err != nil {
		if errors.Is(err, domain.ErrRetrievalUnavailable) {
			return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"error": "retrieval backend unavailable"})
		}
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return ctx.JSON(http.StatusOK, QueryResponse{
		Question:           output.Question,
		StandaloneQuestion: output.StandaloneQuestion,
		Answer:             output.Answer,
		Contexts:           toPassageResults(output.Contexts),
		QueryVariants:      output.Variants,
		HydeDocument:       output.HydeDocument,
		Degradations:       toDegradationInfos(output.Degradations),
	})
}

func toPassageResults(candidates []pipeline.Candidate) []PassageResult {
	results := make([]PassageResult, 0, len(candidates))
	for _, cand := range candidates {
		results = append(results, PassageResult{
			ID:           cand.Passage.ID.String(),
			SourceBucket: cand.Passage.SourceBucket,
			SourceKey:    cand.Passage.SourceKey,
			ChunkOrdinal: cand.Passage.ChunkOrdinal,
			Content:      cand.Passage.Content,
			FusedScore:   cand.FusedScore,
			RerankScore:  cand.RerankScore,
			Probes:       cand.Probes,
		})
	}
	return results
}

func toDegradationInfos(degradations []pipeline.Degradation) []DegradationInfo {
	if len(degradations) == 0 {
		return nil
	}
	infos := make([]DegradationInfo, 0, len(degradations))
	for _, d := range degradations {
		infos = append(infos, DegradationInfo{Stage: string(d.Stage), Reason: d.Reason})
	}
	return infos
}

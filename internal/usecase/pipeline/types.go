package pipeline

import (
	"corpus-qa/internal/domain"
)

// State identifies where a request currently is in the pipeline.
type State string

const (
	StateReceived   State = "received"
	StateRewriting  State = "rewriting"
	StateExpanding  State = "expanding"
	StateRetrieving State = "retrieving"
	StateReranking  State = "reranking"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Stage names non-essential pipeline stages in degradation records.
type Stage string

const (
	StageRewrite  Stage = "rewrite"
	StageVariants Stage = "variants"
	StageHyde     Stage = "hyde"
	StageRetrieve Stage = "retrieve"
	StageRerank   Stage = "rerank"
)

// Degradation records a stage that failed together with the fallback taken.
// The pipeline never drops a degradation silently; every fallback is visible
// in the final result.
type Degradation struct {
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
}

// Candidate is a Passage annotated with the probes that retrieved it and its
// fused score. Candidates exist only within one pipeline invocation and are
// deduplicated by passage ID.
type Candidate struct {
	Passage domain.Passage
	// FusedScore is the sum of reciprocal-rank contributions across probes.
	FusedScore float64
	// BestRank is the lowest (best) 0-based rank achieved in any probe list.
	BestRank int
	// Probes lists the labels of the probes that retrieved this passage,
	// in fixed probe order.
	Probes []string
	// RerankScore is the cross-encoder score when reranking ran; nil otherwise.
	RerankScore *float32
}

// RankedResult is the pipeline's output contract to answer synthesis.
type RankedResult struct {
	Candidates         []Candidate
	StandaloneQuestion string
	Variants           []string
	HydeDocument       string
	Degradations       []Degradation
}

// StageContext carries data between pipeline stages for one request.
// It is owned by a single invocation and never shared across requests.
type StageContext struct {
	// Input
	RequestID  string
	Question   string // original, user-facing question
	History    []domain.HistoryTurn
	Collection string

	// Rewriting output
	StandaloneQuestion string

	// Expanding outputs
	Variants     []string
	HydeDocument string

	// Retrieving output, already fused, deduplicated, and truncated
	Candidates []Candidate

	// Bookkeeping
	State        State
	Degradations []Degradation

	// Config values (set once at init)
	TopKPerProbe   int
	PreRerankWidth int
	FinalK         int
	RRFK           float64
}

// Degrade records a non-fatal stage failure. It never aborts the request.
func (sc *StageContext) Degrade(stage Stage, reason string) {
	sc.Degradations = append(sc.Degradations, Degradation{Stage: stage, Reason: reason})
}

// Result assembles the output contract from the completed stage context.
func (sc *StageContext) Result() *RankedResult {
	return &RankedResult{
		Candidates:         sc.Candidates,
		StandaloneQuestion: sc.StandaloneQuestion,
		Variants:           sc.Variants,
		HydeDocument:       sc.HydeDocument,
		Degradations:       sc.Degradations,
	}
}

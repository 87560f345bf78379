package usecase

import (
	"fmt"
	"time"

	"corpus-qa/internal/usecase/pipeline"
)

// RewriteStageConfig holds settings for standalone-question rewriting.
type RewriteStageConfig struct {
	// Enabled controls whether follow-up questions are rewritten against
	// the conversation history. Requests with empty history never trigger
	// a rewrite regardless of this flag.
	Enabled bool
	// Timeout is the maximum duration for the rewrite call.
	Timeout time.Duration
	// MaxTokens bounds the rewrite response length.
	MaxTokens int
}

// FusionStageConfig holds settings for multi-query fusion.
type FusionStageConfig struct {
	// Enabled controls whether paraphrase variants are generated. Disabled
	// fusion degrades to single-query retrieval.
	Enabled bool
	// VariantCount is the maximum number of paraphrases to generate.
	VariantCount int
	// Timeout is the maximum duration for variant generation.
	Timeout time.Duration
	// MaxTokens bounds the variant response length.
	MaxTokens int
}

// HydeStageConfig holds settings for hypothetical-document augmentation.
type HydeStageConfig struct {
	// Enabled controls whether a synthetic answer passage is generated and
	// used as an extra retrieval probe. The passage never reaches the user.
	Enabled bool
	// Timeout is the maximum duration for HyDE generation.
	Timeout time.Duration
	// MaxTokens bounds the synthetic passage length.
	MaxTokens int
}

// RerankStageConfig holds settings for cross-encoder reranking.
type RerankStageConfig struct {
	// Enabled controls whether reranking is applied. Disabled reranking
	// falls back to the fused ordering truncated to FinalK.
	Enabled bool
	// Timeout is the maximum duration for the rerank call.
	Timeout time.Duration
}

// RetrievalConfig holds the tunable parameters of the retrieval pipeline.
// It is an immutable snapshot passed into the orchestrator at construction;
// there are no global mutable settings.
type RetrievalConfig struct {
	// Collection is the logical passage collection to search.
	Collection string

	// TopKPerProbe is the number of passages requested per probe search.
	TopKPerProbe int

	// PreRerankWidth is the fused candidate count handed to the reranker.
	// Must be at least FinalK.
	PreRerankWidth int

	// FinalK is the size of the final ranked result.
	FinalK int

	// RRFK is the reciprocal-rank-fusion constant. The standard value is
	// 60, which dampens the dominance of single high ranks.
	RRFK float64

	Rewrite RewriteStageConfig
	Fusion  FusionStageConfig
	Hyde    HydeStageConfig
	Rerank  RerankStageConfig
}

// DefaultRetrievalConfig returns the documented defaults: top-K 8 per probe,
// 3 variants, HyDE off, final 4 after reranking.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		Collection:     "rag_docs",
		TopKPerProbe:   8,
		PreRerankWidth: 24,
		FinalK:         4,
		RRFK:           60.0,
		Rewrite: RewriteStageConfig{
			Enabled:   true,
			Timeout:   20 * time.Second,
			MaxTokens: 256,
		},
		Fusion: FusionStageConfig{
			Enabled:      true,
			VariantCount: 3,
			Timeout:      20 * time.Second,
			MaxTokens:    256,
		},
		Hyde: HydeStageConfig{
			Enabled:   false,
			Timeout:   20 * time.Second,
			MaxTokens: 384,
		},
		Rerank: RerankStageConfig{
			Enabled: true,
			Timeout: 30 * time.Second,
		},
	}
}

// Validate checks the configuration values.
func (c RetrievalConfig) Validate() error {
	if c.Collection == "" {
		return fmt.Errorf("collection must not be empty")
	}
	if c.TopKPerProbe <= 0 {
		return fmt.Errorf("topKPerProbe must be positive, got %d", c.TopKPerProbe)
	}
	if c.FinalK <= 0 {
		return fmt.Errorf("finalK must be positive, got %d", c.FinalK)
	}
	if c.PreRerankWidth < c.FinalK {
		return fmt.Errorf("preRerankWidth (%d) must be at least finalK (%d)", c.PreRerankWidth, c.FinalK)
	}
	if c.RRFK <= 0 {
		return fmt.Errorf("rrfK must be positive, got %f", c.RRFK)
	}
	if c.Fusion.Enabled && c.Fusion.VariantCount <= 0 {
		return fmt.Errorf("fusion variantCount must be positive, got %d", c.Fusion.VariantCount)
	}
	for _, stage := range []struct {
		name    string
		enabled bool
		timeout time.Duration
	}{
		{"rewrite", c.Rewrite.Enabled, c.Rewrite.Timeout},
		{"fusion", c.Fusion.Enabled, c.Fusion.Timeout},
		{"hyde", c.Hyde.Enabled, c.Hyde.Timeout},
		{"rerank", c.Rerank.Enabled, c.Rerank.Timeout},
	} {
		if stage.enabled && stage.timeout <= 0 {
			return fmt.Errorf("%s timeout must be positive when enabled, got %v", stage.name, stage.timeout)
		}
	}
	return nil
}

func (c RetrievalConfig) expandConfig() pipeline.ExpandConfig {
	return pipeline.ExpandConfig{
		VariantCount:     c.Fusion.VariantCount,
		VariantTimeout:   c.Fusion.Timeout,
		VariantMaxTokens: c.Fusion.MaxTokens,
		HydeTimeout:      c.Hyde.Timeout,
		HydeMaxTokens:    c.Hyde.MaxTokens,
	}
}

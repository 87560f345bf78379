package domain

import "context"

// LLMClient defines the capability to send prompts to a generation model and
// receive textual responses. A nil error with empty Text is a valid outcome
// and must stay distinguishable from transport failure or timeout, so that
// degradation decisions upstream are deterministic.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (*LLMResponse, error)
	Version() string
}

// LLMResponse carries the model output and whether the generation finished.
type LLMResponse struct {
	Text string
	Done bool
}

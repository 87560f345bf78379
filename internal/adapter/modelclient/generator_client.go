package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"corpus-qa/internal/domain"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

const generationTemperature = 0.2

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string                 `json:"model"`
	Messages  []chatMessage          `json:"messages"`
	Stream    bool                   `json:"stream"`
	KeepAlive int                    `json:"keep_alive"`
	Options   map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// GeneratorClient sends prompts to an Ollama-compatible chat endpoint and
// returns the assistant message as plain text.
type GeneratorClient struct {
	BaseURL string
	Model   string
	Client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGeneratorClient constructs a generator using the provided endpoint and
// model name. maxRequestsPerSecond bounds the outbound call rate; zero or
// negative disables limiting. If client is nil, a default http.Client with a
// 120s timeout is used.
func NewGeneratorClient(baseURL, model string, maxRequestsPerSecond float64, logger *slog.Logger, client ...*http.Client) *GeneratorClient {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: 120 * time.Second}
	}
	var limiter *rate.Limiter
	if maxRequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(maxRequestsPerSecond), 1)
	}
	return &GeneratorClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  c,
		limiter: limiter,
		logger:  logger,
	}
}

// Generate sends the prompt to the chat endpoint and returns the assistant
// message. Transient failures are retried with exponential backoff.
func (g *GeneratorClient) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	reqBody := chatRequest{
		Model:     g.Model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		Stream:    false,
		KeepAlive: -1,
		Options: map[string]interface{}{
			"temperature": generationTemperature,
		},
	}
	if maxTokens > 0 {
		reqBody.Options["num_predict"] = maxTokens
	}

	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	start := time.Now()
	url := fmt.Sprintf("%s/api/chat", g.BaseURL)

	chatResp, err := backoff.Retry(ctx, func() (*chatResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create chat request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.Client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to call generation endpoint: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("generation endpoint returned %d: %s", resp.StatusCode, string(body))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		var decoded chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return nil, fmt.Errorf("failed to decode generation response: %w", err)
		}
		return &decoded, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
	if err != nil {
		g.logger.Warn("generation_failed",
			slog.String("model", g.Model),
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, err
	}

	g.logger.Info("generation_completed",
		slog.String("model", g.Model),
		slog.Int("response_length", len(chatResp.Message.Content)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return &domain.LLMResponse{
		Text: strings.TrimSpace(chatResp.Message.Content),
		Done: chatResp.Done,
	}, nil
}

// Version returns the wrapped model name.
func (g *GeneratorClient) Version() string {
	return g.Model
}

var _ domain.LLMClient = (*GeneratorClient)(nil)

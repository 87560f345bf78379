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
)

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedderClient implements domain.VectorEncoder via an Ollama-compatible
// embedding endpoint.
type EmbedderClient struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

// NewEmbedderClient constructs an embedder. If client is nil, a default
// http.Client is created with the given timeout.
func NewEmbedderClient(baseURL, model string, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *EmbedderClient {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &EmbedderClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  c,
		logger:  logger,
	}
}

// Encode embeds the given texts in one request. The response must contain
// exactly one vector per input text.
func (e *EmbedderClient) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()

	jsonPayload, err := json.Marshal(embedRequest{Model: e.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	url := fmt.Sprintf("%s/api/embed", e.BaseURL)

	embeddings, err := backoff.Retry(ctx, func() ([][]float32, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create embed request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.Client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to call embed endpoint: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("embed endpoint returned %d: %s", resp.StatusCode, string(body))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		var decoded embedResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return nil, fmt.Errorf("failed to decode embed response: %w", err)
		}
		return decoded.Embeddings, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
	if err != nil {
		e.logger.Warn("embedding_failed",
			slog.String("model", e.Model),
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, err
	}

	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddings))
	}

	e.logger.Info("embedding_completed",
		slog.String("model", e.Model),
		slog.Int("text_count", len(texts)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return embeddings, nil
}

// Version returns the wrapped model name.
func (e *EmbedderClient) Version() string {
	return e.Model
}

var _ domain.VectorEncoder = (*EmbedderClient)(nil)

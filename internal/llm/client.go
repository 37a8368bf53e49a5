// Package llm wraps the OpenAI chat completions API behind a narrow client
// used by the router and the answer synthesizer. Both structured tool calls
// and JSON-schema response formats go through Chat; per-call latency is
// recorded into Stats.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned when no API credential is available. It is
// fatal for the question being asked; callers surface it without retrying.
var ErrNotConfigured = errors.New("llm: no API key configured")

// ChatClient is the model-call boundary. *Client satisfies it; tests stub it.
type ChatClient interface {
	Chat(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client calls the OpenAI chat completions API.
type Client struct {
	api        *openai.Client
	configured bool
	stats      *Stats
	log        *slog.Logger
}

// New builds a Client. An empty apiKey produces a client whose calls fail
// with ErrNotConfigured, so the server can start without a credential and
// fail per question instead.
func New(apiKey, baseURL string, stats *Stats, log *slog.Logger) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:        openai.NewClientWithConfig(cfg),
		configured: apiKey != "",
		stats:      stats,
		log:        log,
	}
}

// Chat issues one chat completion call. Transient failures (429, 5xx,
// transport errors) are classified as *RetryableError so a retry wrapper
// can act on them; everything else is wrapped and propagated as-is.
func (c *Client) Chat(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if !c.configured {
		return openai.ChatCompletionResponse{}, ErrNotConfigured
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if c.stats != nil {
		c.stats.Record(time.Since(start).Milliseconds())
	}
	if err != nil {
		return openai.ChatCompletionResponse{}, classify(err, req.Model)
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionResponse{}, fmt.Errorf("llm: %s returned no choices", req.Model)
	}
	return resp, nil
}

// classify wraps transient API failures in *RetryableError.
func classify(err error, model string) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return &RetryableError{StatusCode: apiErr.HTTPStatusCode, Err: err}
		}
		return fmt.Errorf("llm: %s: %w", model, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500 {
			return &RetryableError{StatusCode: reqErr.HTTPStatusCode, Err: err}
		}
		return fmt.Errorf("llm: %s: %w", model, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// Network-level failure; the service may come back.
		return &RetryableError{Err: err}
	}
	return fmt.Errorf("llm: %s: %w", model, err)
}

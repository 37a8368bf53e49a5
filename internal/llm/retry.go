package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Err        error
}

func (e *RetryableError) Error() string {
	return "retryable llm error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const DefaultMaxAttempts = 3

type retryClient struct {
	inner       ChatClient
	maxAttempts int
}

// WithRetry wraps a ChatClient with bounded retries on transient failures.
// Non-retryable errors, including ErrNotConfigured, pass through on the
// first attempt.
func WithRetry(inner ChatClient, maxAttempts int) ChatClient {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &retryClient{inner: inner, maxAttempts: maxAttempts}
}

func (r *retryClient) Chat(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		resp, err := r.inner.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == r.maxAttempts-1 {
			break
		}
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return openai.ChatCompletionResponse{}, ctx.Err()
		}
	}
	return openai.ChatCompletionResponse{}, lastErr
}

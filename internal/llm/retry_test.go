package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

type failingChat struct {
	errs  []error
	calls int
}

func (c *failingChat) Chat(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var err error
	if c.calls < len(c.errs) {
		err = c.errs[c.calls]
	}
	c.calls++
	return openai.ChatCompletionResponse{}, err
}

func TestWithRetry_SuccessPassesThrough(t *testing.T) {
	inner := &failingChat{}
	client := WithRetry(inner, 3)
	if _, err := client.Chat(context.Background(), openai.ChatCompletionRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call, got %d", inner.calls)
	}
}

func TestWithRetry_NonRetryableFailsImmediately(t *testing.T) {
	inner := &failingChat{errs: []error{errors.New("bad request")}}
	client := WithRetry(inner, 3)
	if _, err := client.Chat(context.Background(), openai.ChatCompletionRequest{}); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("non-retryable error should not be retried, got %d calls", inner.calls)
	}
}

func TestWithRetry_NotConfiguredIsNotRetried(t *testing.T) {
	inner := &failingChat{errs: []error{ErrNotConfigured}}
	client := WithRetry(inner, 3)
	_, err := client.Chat(context.Background(), openai.ChatCompletionRequest{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call, got %d", inner.calls)
	}
}

func TestWithRetry_ExhaustedAttemptsReturnLastError(t *testing.T) {
	transient := &RetryableError{StatusCode: 429, Err: errors.New("rate limited")}
	inner := &failingChat{errs: []error{transient}}
	client := WithRetry(inner, 1)
	_, err := client.Chat(context.Background(), openai.ChatCompletionRequest{})
	if !IsRetryable(err) {
		t.Fatalf("expected the transient error back, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("maxAttempts=1 must not retry, got %d calls", inner.calls)
	}
}

func TestWithRetry_CancelledContextAbortsBackoff(t *testing.T) {
	transient := &RetryableError{StatusCode: 503, Err: errors.New("unavailable")}
	inner := &failingChat{errs: []error{transient, transient, transient}}
	client := WithRetry(inner, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Chat(ctx, openai.ChatCompletionRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected backoff abort after first attempt, got %d calls", inner.calls)
	}
}

func TestIsRetryable_MatchesWrappedErrors(t *testing.T) {
	base := &RetryableError{StatusCode: 500, Err: errors.New("server error")}
	wrapped := fmt.Errorf("route depth 1: %w", base)
	if !IsRetryable(wrapped) {
		t.Error("wrapped RetryableError should be retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain error should not be retryable")
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := Backoff(attempt)
		base := time.Duration(1<<uint(attempt)) * time.Second
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		if d < base || d > base+base/2 {
			t.Errorf("attempt %d: backoff %v outside [%v, %v]", attempt, d, base, base+base/2)
		}
	}
}

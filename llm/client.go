// LLMClient - wrapper around providers with retry on transient failures.
//
// Information Hiding:
// - Retry strategy implementation hidden
// - Backoff algorithm hidden
// - Error classification logic hidden

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Client wraps a Provider with a simple interface.
type Client struct {
	provider   Provider
	maxRetries int
	baseDelay  time.Duration
}

// NewClient creates a new LLM client from a provider. It does not retry
// unless WithRetries is set.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider, baseDelay: 500 * time.Millisecond}
}

// WithRetries sets how many times a transient failure is retried.
func (c *Client) WithRetries(n int) *Client {
	if n < 0 {
		n = 0
	}
	c.maxRetries = n
	return c
}

// Chat sends a chat completion request and returns just the content.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	content, _, err := c.ChatWithUsage(ctx, messages)
	return content, err
}

// ChatWithUsage sends a chat completion request and returns content with token usage.
func (c *Client) ChatWithUsage(ctx context.Context, messages []ChatMessage) (string, *TokenUsage, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}

		response, err := c.provider.Chat(ctx, messages)
		if err == nil {
			return response.Content, response.Usage, nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			break
		}
	}
	return "", nil, lastErr
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}

// String describes the client as provider/model.
func (c *Client) String() string {
	return fmt.Sprintf("%s/%s", c.provider.Name(), c.provider.Model())
}

// backoff returns the delay before the given attempt.
func (c *Client) backoff(attempt int) time.Duration {
	const maxDelay = 10 * time.Second

	delay := c.baseDelay * time.Duration(1<<attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// retryable reports whether err looks transient.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errLower := strings.ToLower(err.Error())

	nonRetryable := []string{"401", "403", "invalid api key", "unauthorized", "permission"}
	for _, s := range nonRetryable {
		if strings.Contains(errLower, s) {
			return false
		}
	}

	retryableHints := []string{"429", "rate limit", "500", "502", "503", "504", "overloaded", "timeout", "connection", "eof"}
	for _, s := range retryableHints {
		if strings.Contains(errLower, s) {
			return true
		}
	}
	return false
}

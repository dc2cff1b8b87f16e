package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

const (
	// promptVersion participates in the cache key so prompt changes
	// invalidate stale responses.
	promptVersion = "v1"

	// Default retry-after for rate limiting when the provider gives none.
	defaultRetryAfterSeconds = 60
)

// ClientConfig configures the OpenAI-backed Service.
type ClientConfig struct {
	APIKey         string
	Model          string
	Temperature    float64
	MaxTokens      int
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	// ParallelCalls bounds concurrent in-flight requests across operations.
	ParallelCalls int
	CacheEnabled  bool
}

func (c *ClientConfig) applyDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.1
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 2000
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.ParallelCalls <= 0 {
		c.ParallelCalls = 4
	}
}

// Client wraps the OpenAI API behind the Service contract: deterministic
// settings, JSON extraction, caching, retry with backoff, a circuit
// breaker, a shared rate limiter, and a bounded in-flight semaphore.
type Client struct {
	api     openai.Client
	config  ClientConfig
	breaker *Breaker
	cache   CacheLayer
	limiter *RateLimiter
	sem     *semaphore.Weighted
}

// NewClient creates a Service backed by the OpenAI API. cache and limiter
// are process-wide objects constructed once at startup and passed in; cache
// may be nil when caching is disabled.
func NewClient(cfg ClientConfig, cache CacheLayer, limiter *RateLimiter) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	cfg.applyDefaults()

	if limiter == nil {
		limiter = NewRateLimiter(60, time.Minute)
	}

	return &Client{
		api:     openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		config:  cfg,
		breaker: NewBreaker(DefaultBreakerConfig()),
		cache:   cache,
		limiter: limiter,
		sem:     semaphore.NewWeighted(int64(cfg.ParallelCalls)),
	}, nil
}

func (c *Client) Enabled() bool { return true }

// Complete invokes the model with the prompt pair and returns the last
// balanced JSON object of the response. See Service for the error contract.
func (c *Client) Complete(ctx context.Context, operation string, p Prompt) (json.RawMessage, error) {
	var cacheKey string
	if c.config.CacheEnabled && c.cache != nil {
		key, err := MakeCacheKey(operation, c.config.Model, promptVersion, p)
		if err == nil {
			cacheKey = key
			if val, ok := c.cache.Get(cacheKey); ok {
				return val, nil
			}
		}
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	var lastErr error
	maxAttempts := 1 + c.config.MaxRetries

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retryDelayFor(attempt, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		// Rate-limiter acquire is a cancellation point.
		if err := c.limiter.Acquire(ctx, c.config.Model); err != nil {
			return nil, err
		}

		if !c.breaker.Allow(c.config.Model) {
			return nil, &FallbackError{Attempts: attempt, Last: ErrAIUnavailable}
		}

		raw, err := c.callOnce(ctx, operation, p, lastErr)
		if err == nil {
			c.breaker.RecordSuccess(c.config.Model)
			if cacheKey != "" {
				c.cache.Set(cacheKey, raw)
			}
			return raw, nil
		}

		lastErr = err
		switch Classify(err) {
		case ErrorCategoryTransient:
			c.breaker.RecordFailure(c.config.Model)
			continue
		case ErrorCategoryFormat:
			// The provider answered; only the payload shape is wrong.
			c.breaker.RecordSuccess(c.config.Model)
			continue
		default:
			return nil, err
		}
	}

	var formatErr *FormatError
	if errors.As(lastErr, &formatErr) {
		return nil, formatErr
	}
	return nil, &FallbackError{Attempts: maxAttempts, Last: lastErr}
}

// callOnce performs a single chat completion. When the previous attempt
// failed on format, a corrective feedback message restating the contract is
// appended to the conversation.
func (c *Client) callOnce(ctx context.Context, operation string, p Prompt, prevErr error) (json.RawMessage, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(p.System),
		openai.UserMessage(p.User),
	}
	var prevFormat *FormatError
	if errors.As(prevErr, &prevFormat) {
		feedback := "Your previous response did not contain a valid JSON object. Respond with exactly one JSON object and nothing else."
		messages = append(messages, openai.UserMessage(feedback))
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	resp, err := c.api.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(c.config.Model),
		Messages:            messages,
		Temperature:         openai.Float(c.config.Temperature),
		MaxCompletionTokens: openai.Int(int64(c.config.MaxTokens)),
	})
	if err != nil {
		return nil, c.translateError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &AIError{Err: ErrAIUnavailable, Message: "no choices in response"}
	}

	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, &AIError{Err: ErrAIRefused, Message: choice.Message.Refusal}
	}
	if choice.FinishReason == "length" {
		slog.Warn("ai response truncated", "operation", operation, "max_tokens", c.config.MaxTokens)
		// Fall through: a truncated response may still hold a balanced object.
	}

	content := choice.Message.Content
	if raw, ok := ExtractJSON(content); ok {
		return raw, nil
	}
	slog.Warn("ai response had no parseable JSON", "operation", operation, "finish_reason", choice.FinishReason)
	return nil, &FormatError{Raw: content, Reason: "no balanced JSON object in response"}
}

func (c *Client) retryDelayFor(attempt int, lastErr error) time.Duration {
	if attempt <= 0 {
		return 0
	}
	base := c.config.RetryBaseDelay * time.Duration(1<<uint(attempt-1))
	var aiErr *AIError
	if errors.As(lastErr, &aiErr) && aiErr.RetryAfter > 0 {
		base = time.Duration(aiErr.RetryAfter) * time.Second
	}
	return base + jitterDuration(base/4)
}

func jitterDuration(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(base) + 1))
}

// translateError converts provider errors to domain errors.
func (c *Client) translateError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return &AIError{Err: ErrAIRateLimited, Message: "rate limited by provider", RetryAfter: defaultRetryAfterSeconds}
		case apiErr.StatusCode >= 500:
			return &AIError{Err: ErrAIUnavailable, Message: fmt.Sprintf("provider server error: %d", apiErr.StatusCode)}
		case apiErr.StatusCode == 408:
			return &AIError{Err: ErrAIUnavailable, Message: "provider timeout"}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return &AIError{Err: ErrAIUnavailable, Message: "request timeout"}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &AIError{Err: ErrAIUnavailable, Message: err.Error()}
}

func isTimeout(err error) bool {
	type timeoutError interface{ Timeout() bool }
	var te timeoutError
	return errors.As(err, &te) && te.Timeout()
}

package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docquery/ai"
	"github.com/poiesic/docquery/core"
)

const (
	// DefaultMaxRetries is the default number of generation attempts.
	DefaultMaxRetries = 3

	// DefaultTimeout is the default per-attempt deadline.
	DefaultTimeout = 60 * time.Second

	// DefaultBaseDelay is the initial backoff between attempts.
	DefaultBaseDelay = 500 * time.Millisecond

	// DefaultMaxDelay caps the exponential backoff.
	DefaultMaxDelay = 5 * time.Second
)

// DefaultFallbackMessage is streamed in place of an answer when the
// generation backend is disabled or unreachable.
const DefaultFallbackMessage = "The language model service is currently unavailable. " +
	"Please ensure the generation backend is running."

// Client drives answer generation against a backend that may be down.
//
// A query never fails because the generator is unreachable: when
// generation is disabled or every attempt fails before producing output,
// the client streams a fallback message and reports a degraded status.
// Only a failure after answer tokens have been forwarded is terminal,
// since delivered output cannot be unsent.
type Client struct {
	generator  ai.Generator
	enabled    bool
	maxRetries int
	timeout    time.Duration
	baseDelay  time.Duration
	maxDelay   time.Duration
	fallback   string
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client) error

// WithEnabled toggles generation. When disabled, every request streams
// the fallback message.
func WithEnabled(enabled bool) ClientOption {
	return func(c *Client) error {
		c.enabled = enabled
		return nil
	}
}

// WithMaxRetries sets the number of generation attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) error {
		if n <= 0 {
			return ErrInvalidMaxRetries
		}
		c.maxRetries = n
		return nil
	}
}

// WithTimeout sets the per-attempt deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return ErrInvalidTimeout
		}
		c.timeout = d
		return nil
	}
}

// WithBackoff sets the initial and maximum delay between attempts.
func WithBackoff(base, max time.Duration) ClientOption {
	return func(c *Client) error {
		if base > 0 {
			c.baseDelay = base
		}
		if max > 0 {
			c.maxDelay = max
		}
		return nil
	}
}

// WithFallbackMessage sets the message streamed when generation is
// unavailable.
func WithFallbackMessage(msg string) ClientOption {
	return func(c *Client) error {
		if msg != "" {
			c.fallback = msg
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewClient creates a generation client around a Generator.
func NewClient(generator ai.Generator, opts ...ClientOption) (*Client, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	c := &Client{
		generator:  generator,
		enabled:    true,
		maxRetries: DefaultMaxRetries,
		timeout:    DefaultTimeout,
		baseDelay:  DefaultBaseDelay,
		maxDelay:   DefaultMaxDelay,
		fallback:   DefaultFallbackMessage,
		logger:     slog.Default().With("component", "generation"),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Enabled reports whether generation is active.
func (c *Client) Enabled() bool {
	return c.enabled
}

// FallbackMessage returns the message streamed when generation is
// unavailable.
func (c *Client) FallbackMessage() string {
	return c.fallback
}

// Stream generates an answer for prompt, forwarding tokens to fn.
//
// The returned status is StatusComplete when the backend answered,
// StatusDegraded when the fallback message was streamed instead, and
// StatusError for terminal failures. Degraded outcomes return a nil
// error; the caller still received a usable (fallback) answer.
func (c *Client) Stream(ctx context.Context, prompt string, fn ai.StreamFunc) (core.AnswerStatus, error) {
	if !c.enabled {
		return c.streamFallback(fn)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return core.StatusError, err
		}

		streamed := false
		forward := func(token string) error {
			streamed = true
			return fn(token)
		}

		err := c.attempt(ctx, prompt, forward)
		if err == nil {
			if attempt > 1 {
				c.logger.Debug("generation succeeded after retry", "attempt", attempt)
			}
			return core.StatusComplete, nil
		}

		if streamed {
			// Tokens already reached the caller; retrying would repeat
			// delivered output
			c.logger.Error("generation failed mid-stream", "attempt", attempt, "err", err)
			return core.StatusError, fmt.Errorf("%w: %w", ErrStreamInterrupted, err)
		}

		lastErr = err
		c.logger.Warn("generation attempt failed",
			"attempt", attempt,
			"max_attempts", c.maxRetries,
			"err", err)

		if attempt == c.maxRetries {
			break
		}

		if err := c.sleep(ctx, attempt); err != nil {
			return core.StatusError, err
		}
	}

	c.logger.Warn("generation attempts exhausted, streaming fallback",
		"err", fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr))
	return c.streamFallback(fn)
}

// attempt runs one health probe plus generation request under the
// per-attempt deadline.
func (c *Client) attempt(ctx context.Context, prompt string, fn ai.StreamFunc) error {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.generator.Healthy(attemptCtx); err != nil {
		return fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}

	if err := c.generator.GenerateStream(attemptCtx, prompt, fn); err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return fmt.Errorf("%w: %w", ErrGenerationTimeout, err)
		}
		return err
	}
	return nil
}

// sleep waits out the exponential backoff for the given attempt, aborting
// early if ctx is cancelled.
func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			delay = c.maxDelay
			break
		}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// streamFallback delivers the fallback message as a single token.
func (c *Client) streamFallback(fn ai.StreamFunc) (core.AnswerStatus, error) {
	if err := fn(c.fallback); err != nil {
		return core.StatusError, err
	}
	return core.StatusDegraded, nil
}

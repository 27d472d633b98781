package resilience

import (
	"context"
	"time"
)

const defaultBackoff = 250 * time.Millisecond

// RetryConfig holds the knobs for [Retry]. The pipeline policy is a single
// retry with fixed backoff; Attempts counts retries after the first call.
type RetryConfig struct {
	// Attempts is the number of retries after the initial call. Default: 1.
	Attempts int

	// Backoff is the pause before each retry. Default: 250ms.
	Backoff time.Duration
}

func (c *RetryConfig) applyDefaults() {
	if c.Attempts <= 0 {
		c.Attempts = 1
	}
	if c.Backoff <= 0 {
		c.Backoff = defaultBackoff
	}
}

// Retry runs fn and, on failure, retries it per cfg with a context-aware
// backoff pause. It returns the last error when all attempts fail, or
// ctx.Err() when cancelled mid-backoff. Cancellation errors from fn itself
// are never retried — a cancelled utterance stays cancelled.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg.applyDefaults()

	err := fn(ctx)
	for attempt := 0; err != nil && attempt < cfg.Attempts; attempt++ {
		if ctx.Err() != nil {
			return err
		}

		select {
		case <-time.After(cfg.Backoff):
		case <-ctx.Done():
			return ctx.Err()
		}

		err = fn(ctx)
	}
	return err
}

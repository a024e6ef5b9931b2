package ingest

import (
	"context"
	"time"
)

// WithRetry runs fn up to attempts times, sleeping a fixed delay between
// attempts. It returns nil on the first success and the last error once
// attempts are exhausted. A cancelled context aborts the wait. Both
// content extraction and other retried external calls share this
// combinator.
func WithRetry(ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

package util

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry calls fn up to maxAttempts times with exponential backoff starting
// at baseDelay. It returns nil on the first success, the last error once
// attempts are exhausted, or the context error if ctx ends first. Wrap an
// error with backoff.Permanent to stop immediately.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = baseDelay
	eb.RandomizationFactor = 0
	eb.Multiplier = 2
	eb.MaxElapsedTime = 0
	eb.Reset()

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxAttempts-1)), ctx)
	return backoff.Retry(fn, b)
}

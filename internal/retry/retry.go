// Package retry provides the bounded retry loop shared by the store
// lifecycle layer and other transient-failure-prone calls.
package retry

import (
	"context"
	"time"
)

// Policy bounds a retry loop by attempt count with a fixed delay
// between attempts.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultPolicy matches the store's open/write behavior: three
// attempts, half a second apart.
var DefaultPolicy = Policy{Attempts: 3, Delay: 500 * time.Millisecond}

// Do runs fn until it succeeds, the attempt budget is exhausted, or the
// context is canceled. It returns the last error when all attempts
// fail; errors are never swallowed.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

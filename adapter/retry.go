package adapter

import (
	"context"
	"fmt"
	"time"
)

// DefaultBackoff is the delay before the first retry. It doubles on each
// further retry.
const DefaultBackoff = 500 * time.Millisecond

// Retry calls attempt up to 1+retries times with exponential backoff between
// calls. It stops early when attempt succeeds, when stop reports the error as
// final, or when ctx ends. name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, backoff time.Duration, stop func(error) bool, attempt func(context.Context) error) error {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			timer := time.NewTimer(time.Duration(1<<uint(i-1)) * backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-timer.C:
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if stop != nil && stop(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}

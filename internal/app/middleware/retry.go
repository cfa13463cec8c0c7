package middleware

import (
	"context"
	"errors"
	"time"

	"rentspot/internal/app/queries"
)

// RetryReads retries a query once when it fails with one of retryable.
func RetryReads(backoff time.Duration, retryable ...error) QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			res, err := nextFn(ctx, q)
			if err == nil || !matchesAny(err, retryable) {
				return res, err
			}
			if backoff > 0 {
				timer := time.NewTimer(backoff)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, errors.Join(err, ctx.Err())
				case <-timer.C:
				}
			}
			return nextFn(ctx, q)
		})
	}
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

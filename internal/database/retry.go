package database

import (
	"context"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// connectWithBackoff retries connect with exponential backoff until it
// succeeds, ctx is done or maxTries attempts have failed.
func connectWithBackoff[T any](ctx context.Context, logger *zap.Logger, name string, maxTries int, connect func(context.Context) (T, error)) (T, error) {
	if maxTries < 1 {
		maxTries = 1
	}
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := connect(ctx)
		if err != nil {
			logger.Warn("connection attempt failed",
				zap.String("backend", name),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxTries),
				zap.Error(err),
			)
		}
		return v, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(uint(maxTries)))
}

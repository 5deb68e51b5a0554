package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/foxseedlab/vcthread/internal/config"
	"github.com/foxseedlab/vcthread/internal/discord"
	"github.com/foxseedlab/vcthread/internal/telemetry"
)

const (
	platformCommandTimeout = 15 * time.Second
	retryMaxIntervalFactor = 8
)

// retrier bounds every outbound platform command. PermanentError stops the
// loop immediately.
type retrier struct {
	maxAttempts uint
	newBackOff  func() backoff.BackOff
	metrics     *telemetry.Metrics
}

func newRetrier(cfg *config.Config, metrics *telemetry.Metrics) *retrier {
	initial := cfg.PlatformRetryInitialInterval
	return &retrier{
		maxAttempts: uint(cfg.PlatformMaxAttempts),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.MaxInterval = initial * retryMaxIntervalFactor
			return b
		},
		metrics: metrics,
	}
}

func (r *retrier) do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	_, err := retryValue(ctx, r, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func retryValue[T any](ctx context.Context, r *retrier, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempt := func() (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, platformCommandTimeout)
		defer cancel()
		v, err := fn(attemptCtx)
		if err == nil {
			return v, nil
		}
		var permanent *discord.PermanentError
		if errors.As(err, &permanent) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(r.maxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.metrics.PlatformRetries.WithLabelValues(operation).Inc()
			slog.Warn("retrying platform command", "operation", operation, "error", err, "backoff", next)
		}),
	)
}

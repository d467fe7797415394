package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultRateLimitDelay = 60 * time.Second
	defaultMaxRetries     = 3
	defaultInitialDelay   = time.Second
)

// retryPolicy re-runs a single API request according to the error it produced:
// rate limits wait and retry without a ceiling, transient failures back off
// exponentially a bounded number of times, everything else is returned as is.
type retryPolicy struct {
	maxRetries     uint64
	initialDelay   time.Duration
	rateLimitDelay time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	logger         *slog.Logger
}

func newRetryPolicy(logger *slog.Logger) retryPolicy {
	return retryPolicy{
		maxRetries:     defaultMaxRetries,
		initialDelay:   defaultInitialDelay,
		rateLimitDelay: defaultRateLimitDelay,
		sleep:          sleepContext,
		logger:         logger,
	}
}

func (p retryPolicy) schedule() backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.initialDelay
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxInterval = time.Hour
	expo.MaxElapsedTime = 0
	b := backoff.WithMaxRetries(expo, p.maxRetries)
	b.Reset()
	return b
}

func (p retryPolicy) do(ctx context.Context, op func() error) error {
	schedule := p.schedule()
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}

		var rateLimited *RateLimitError
		var transient *TransientError
		switch {
		case errors.As(err, &rateLimited):
			delay := rateLimited.RetryAfter
			if delay <= 0 {
				delay = p.rateLimitDelay
			}
			p.logger.Warn("github rate limit hit, waiting", "delay", delay, "attempt", attempt)
			if err := p.sleep(ctx, delay); err != nil {
				return err
			}
		case errors.As(err, &transient):
			delay := schedule.NextBackOff()
			if delay == backoff.Stop {
				return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
			}
			p.logger.Warn("transient github error, retrying", "error", err, "delay", delay, "attempt", attempt)
			if err := p.sleep(ctx, delay); err != nil {
				return err
			}
		default:
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

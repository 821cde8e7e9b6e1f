package exchange

import (
	"context"
	"errors"
	"time"

	"spot-arbitrage/internal/domain"

	"go.uber.org/zap"
)

const DefaultRetries = 4

// RetryPolicy retries read-path venue calls with a quadratic backoff.
type RetryPolicy struct {
	Retries int
	Logger  *zap.Logger
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryPolicy(retries int, logger *zap.Logger) RetryPolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return RetryPolicy{Retries: retries, Logger: logger}
}

// Delay is the backoff before a retry, where remaining is the number of
// retries still available after it. With four retries this yields 1s, 2s, 5s, 10s.
func (p RetryPolicy) Delay(remaining int) time.Duration {
	n := p.Retries - (remaining + 1)
	return time.Duration(n*n+1) * time.Second
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !domain.IsKind(err, domain.CapabilityError) && !domain.IsKind(err, domain.ConfigurationError)
}

// Retry calls fn once and then up to p.Retries more times while it fails with a
// retryable error. The last error is returned once retries are exhausted.
func Retry[T any](ctx context.Context, p RetryPolicy, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	remaining := p.Retries
	for {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if remaining <= 0 || !retryable(err) {
			return result, err
		}
		remaining--

		delay := p.Delay(remaining)
		logger.Warn("Retrying "+name,
			zap.Int("attempt", p.Retries-remaining),
			zap.Int("retries", p.Retries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
			return result, err
		}
	}
}

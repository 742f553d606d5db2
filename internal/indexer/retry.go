package indexer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// retryPolicy repeats failing RPC calls with doubling delays.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

func newRetryPolicy(maxRetries int, baseDelay time.Duration, logger *zap.Logger) retryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return retryPolicy{maxRetries: maxRetries, baseDelay: baseDelay, logger: logger}
}

// do runs fn until it succeeds, the retries are spent, or ctx ends. Errors
// caused by ctx are returned at once. fields describe the call in logs.
func (p retryPolicy) do(ctx context.Context, op string, fn func(context.Context) error, fields ...zap.Field) error {
	delay := p.baseDelay
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		logFields := append([]zap.Field{
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.maxRetries+1),
			zap.Error(err),
		}, fields...)
		if attempt > p.maxRetries {
			p.logger.Error("rpc call failed, giving up", logFields...)
			return err
		}
		p.logger.Warn("rpc call failed, retrying", append(logFields, zap.Duration("backoff", delay))...)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}

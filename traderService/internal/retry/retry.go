package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"

	exchangeErrors "github.com/nastyazhadan/perp-trader/shared/errors/exchange"
	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
)

type Policy struct {
	Attempts   int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxElapsed time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		MaxElapsed: 30 * time.Second,
	}
}

// Backoff returns BaseDelay * 2^attempt, capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		return p.BaseDelay
	}
	if attempt > 30 {
		return p.MaxDelay
	}

	delay := p.BaseDelay * time.Duration(1<<attempt)
	if delay > p.MaxDelay || delay <= 0 {
		return p.MaxDelay
	}
	return delay
}

// IsTransient reports errors worth another attempt: marked exchange
// failures, network timeouts and request deadlines.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exchangeErrors.ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Do calls fn until it succeeds, returns a non-transient error, or the
// policy is exhausted. The last error is returned.
func Do[T any](ctx context.Context, policy Policy, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	deadline := time.Now().Add(policy.MaxElapsed)
	attempts := max(policy.Attempts, 1)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsTransient(err) || attempt == attempts-1 {
			break
		}

		delay := policy.Backoff(attempt)
		if policy.MaxElapsed > 0 && time.Now().Add(delay).After(deadline) {
			break
		}

		zapLogger.Warn(ctx, "transient failure, retrying",
			zap.String("call", name),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, lastErr
}

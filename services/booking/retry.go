package booking

import (
	"context"
	"errors"
	"time"

	"calbook/services/calendar"

	"go.uber.org/zap"
)

// retrier runs a calendar call with a per-attempt timeout and retries
// retryable failures with linear backoff.
type retrier struct {
	timeout  time.Duration
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func newRetrier(s Settings, logger *zap.Logger) retrier {
	attempts := s.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return retrier{timeout: s.CallTimeout, attempts: attempts, backoff: s.RetryBackoff, logger: logger, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r retrier) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err = r.once(ctx, fn)
		if err == nil {
			return nil
		}
		if !retryable(ctx, err) || attempt == r.attempts {
			break
		}
		r.logger.Warn("calendar call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", r.attempts),
			zap.Error(err))
		if serr := r.sleep(ctx, time.Duration(attempt)*r.backoff); serr != nil {
			break
		}
	}
	return err
}

// retryable treats per-attempt timeouts like transport failures, as long as
// the caller's own context is still alive.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return calendar.Retryable(err) || errors.Is(err, context.DeadlineExceeded)
}

func (r retrier) once(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return fn(callCtx)
}

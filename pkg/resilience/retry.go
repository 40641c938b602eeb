package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Policy describes a bounded exponential backoff. The zero value makes a
// single attempt and never retries.
type Policy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries    int
	BaseDelay     time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration

	// Retryable classifies errors. Nil retries nothing.
	Retryable func(error) bool

	// OnRetry observes each retry before the sleep. Panics are recovered.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Sleep waits between attempts. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	Logger *slog.Logger
}

// Delay returns the wait before retry k (1-based):
// min(BaseDelay * BackoffFactor^(k-1), MaxDelay).
func (p Policy) Delay(k int) time.Duration {
	if k < 1 || p.BaseDelay <= 0 {
		return 0
	}
	factor := p.BackoffFactor
	if factor <= 0 {
		factor = 1
	}
	d := float64(p.BaseDelay) * math.Pow(factor, float64(k-1))
	if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// DefaultPolicy returns three retries with a 1s base delay doubling up to 60s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:    3,
		BaseDelay:     time.Second,
		BackoffFactor: 2,
		MaxDelay:      60 * time.Second,
	}
}

// WithRetryable returns a copy of p using the given classifier.
func (p Policy) WithRetryable(fn func(error) bool) Policy {
	p.Retryable = fn
	return p
}

// Retry runs op until it succeeds, returns a non-retryable error, or the
// retry budget is spent. Total invocations never exceed MaxRetries+1.
func Retry[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 1 && p.Logger != nil {
				p.Logger.Info("operation succeeded after retry", "attempt", attempt, "max_attempts", attempts)
			}
			return result, nil
		}
		lastErr = err

		if p.Retryable == nil || !p.Retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		delay := p.Delay(attempt)
		if p.Logger != nil {
			p.Logger.Warn("attempt failed, retrying",
				"attempt", attempt, "max_attempts", attempts, "delay", delay, "error", err)
		}
		p.notify(attempt, err, delay)

		if err := p.sleep(ctx, delay); err != nil {
			return zero, errors.Join(fmt.Errorf("retry interrupted after %d attempts: %w", attempt, err), lastErr)
		}
	}

	if p.Logger != nil {
		p.Logger.Error("operation failed after all attempts", "attempts", attempts, "error", lastErr)
	}
	return zero, &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// RetryErr is Retry for operations without a result value.
func RetryErr(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Retry(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func (p Policy) notify(attempt int, err error, delay time.Duration) {
	if p.OnRetry == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil && p.Logger != nil {
			p.Logger.Error("retry callback failed", "panic", r)
		}
	}()
	p.OnRetry(attempt, err, delay)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepWithContext(ctx, d)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

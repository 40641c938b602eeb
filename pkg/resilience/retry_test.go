package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		if delays != nil {
			*delays = append(*delays, d)
		}
		return nil
	}
}

func always(error) bool { return true }

func TestRetryInvokesExactlyMaxRetriesPlusOne(t *testing.T) {
	for _, n := range []int{0, 1, 3, 5} {
		calls := 0
		p := Policy{MaxRetries: n, BaseDelay: time.Millisecond, BackoffFactor: 2, Retryable: always, Sleep: noSleep(nil)}

		err := RetryErr(context.Background(), p, func(context.Context) error {
			calls++
			return errTransient
		})

		require.Error(t, err)
		require.Equal(t, n+1, calls, "max retries %d", n)

		var exhausted *ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		require.Equal(t, n+1, exhausted.Attempts)
		require.ErrorIs(t, err, errTransient)
	}
}

func TestRetryDelaySequence(t *testing.T) {
	p := Policy{BaseDelay: time.Second, BackoffFactor: 2, MaxDelay: 10 * time.Second}

	want := []time.Duration{1, 2, 4, 8, 10, 10}
	for i, w := range want {
		require.Equal(t, w*time.Second, p.Delay(i+1), "retry %d", i+1)
	}
}

func TestRetryObservedDelaysMatchSchedule(t *testing.T) {
	var slept []time.Duration
	p := Policy{
		MaxRetries:    4,
		BaseDelay:     time.Second,
		BackoffFactor: 2,
		MaxDelay:      10 * time.Second,
		Retryable:     always,
		Sleep:         noSleep(&slept),
	}

	_ = RetryErr(context.Background(), p, func(context.Context) error { return errTransient })

	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, slept)
}

func TestRetryNonRetryablePropagatesImmediately(t *testing.T) {
	permanent := errors.New("not found")
	calls := 0
	p := Policy{
		MaxRetries: 3,
		Retryable:  func(err error) bool { return errors.Is(err, errTransient) },
		Sleep:      noSleep(nil),
	}

	err := RetryErr(context.Background(), p, func(context.Context) error {
		calls++
		return permanent
	})

	require.Equal(t, 1, calls)
	require.Equal(t, permanent, err, "non-retryable errors are returned unannotated")
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	p := Policy{MaxRetries: 3, Retryable: always, Sleep: noSleep(nil)}

	got, err := Retry(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "ok", nil
	})

	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.Equal(t, 3, calls)
}

func TestRetryCallbackPanicDoesNotAbort(t *testing.T) {
	var attempts []int
	calls := 0
	p := Policy{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		Retryable:  always,
		Sleep:      noSleep(nil),
		OnRetry: func(attempt int, err error, delay time.Duration) {
			attempts = append(attempts, attempt)
			panic("observer broke")
		},
	}

	err := RetryErr(context.Background(), p, func(context.Context) error {
		calls++
		return errTransient
	})

	require.Error(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, []int{1, 2}, attempts)
}

func TestRetryCallbackSeesDelay(t *testing.T) {
	var delays []time.Duration
	p := Policy{
		MaxRetries:    2,
		BaseDelay:     100 * time.Millisecond,
		BackoffFactor: 3,
		Retryable:     always,
		Sleep:         noSleep(nil),
		OnRetry: func(_ int, _ error, d time.Duration) {
			delays = append(delays, d)
		},
	}

	_ = RetryErr(context.Background(), p, func(context.Context) error { return errTransient })

	require.Equal(t, []time.Duration{100 * time.Millisecond, 300 * time.Millisecond}, delays)
}

func TestRetryStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := Policy{
		MaxRetries: 5,
		BaseDelay:  time.Hour,
		Retryable:  always,
	}

	err := RetryErr(ctx, p, func(context.Context) error {
		calls++
		cancel()
		return errTransient
	})

	require.Equal(t, 1, calls)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, err, errTransient)
}

func TestRetryZeroPolicyMakesOneAttempt(t *testing.T) {
	calls := 0
	err := RetryErr(context.Background(), Policy{}, func(context.Context) error {
		calls++
		return errTransient
	})
	require.Equal(t, 1, calls)
	require.Equal(t, errTransient, err)
}

package resilience

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// BreakerState is the position of a breaker's state machine.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON and YAML output.
func (s BreakerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Settings configures a Breaker.
type Settings struct {
	FailureThreshold int
	Cooldown         time.Duration

	// IsFailure selects the errors that count toward tripping. Nil counts
	// every non-nil error.
	IsFailure func(error) bool

	// Clock returns the current time. Nil uses time.Now.
	Clock func() time.Time

	Logger *slog.Logger
}

// DefaultSettings trips after five counted failures and tries again after
// one minute.
func DefaultSettings() Settings {
	return Settings{FailureThreshold: 5, Cooldown: time.Minute}
}

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	Name             string        `json:"name"`
	State            BreakerState  `json:"state"`
	FailureCount     int           `json:"failure_count"`
	FailureThreshold int           `json:"failure_threshold"`
	LastFailure      time.Time     `json:"last_failure,omitempty"`
	Cooldown         time.Duration `json:"cooldown"`
}

// Breaker guards one named dependency. It is safe for concurrent use and is
// meant to be shared by every run that talks to that dependency.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	isFailure func(error) bool
	now       func() time.Time
	logger    *slog.Logger

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	trial       bool
	generation  uint64
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, s Settings) *Breaker {
	if s.FailureThreshold < 1 {
		s.FailureThreshold = 1
	}
	if s.IsFailure == nil {
		s.IsFailure = func(err error) bool { return err != nil }
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
	b := &Breaker{
		name:      name,
		threshold: s.FailureThreshold,
		cooldown:  s.Cooldown,
		isFailure: s.IsFailure,
		now:       s.Clock,
		logger:    s.Logger,
	}
	b.logInfo("breaker initialized", "threshold", b.threshold, "cooldown", b.cooldown)
	return b
}

// Name returns the dependency name.
func (b *Breaker) Name() string {
	return b.name
}

// Call runs op if the breaker admits it.
func (b *Breaker) Call(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Execute(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Execute runs op through b and returns its result.
func Execute[T any](ctx context.Context, b *Breaker, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	ticket, err := b.admit()
	if err != nil {
		return zero, err
	}

	var result T
	func() {
		defer func() {
			if r := recover(); r != nil {
				b.record(ticket, panicError{r})
				panic(r)
			}
		}()
		result, err = op(ctx)
	}()
	b.record(ticket, err)
	if err != nil {
		return zero, err
	}
	return result, nil
}

type ticket struct {
	generation uint64
	trial      bool
}

func (b *Breaker) admit() (ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		elapsed := b.now().Sub(b.lastFailure)
		if elapsed <= b.cooldown {
			retryAfter := b.cooldown - elapsed
			b.logWarn("circuit open, rejecting call", "retry_after", retryAfter)
			return ticket{}, &OpenError{Name: b.name, State: StateOpen, RetryAfter: retryAfter}
		}
		b.state = StateHalfOpen
		b.logInfo("attempting recovery", "state", b.state)
		b.trial = true
		return ticket{generation: b.generation, trial: true}, nil
	case StateHalfOpen:
		if b.trial {
			return ticket{}, &OpenError{Name: b.name, State: StateHalfOpen}
		}
		b.trial = true
		return ticket{generation: b.generation, trial: true}, nil
	default:
		return ticket{generation: b.generation}, nil
	}
}

func (b *Breaker) record(t ticket, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Outcomes of calls admitted before the last trip or reset are stale.
	if t.generation != b.generation {
		return
	}
	if t.trial {
		b.trial = false
	}

	switch {
	case err == nil:
		if b.state == StateHalfOpen {
			b.logInfo("recovery successful, closing circuit")
		}
		b.failures = 0
		b.state = StateClosed
	case b.isFailure(err):
		b.failures++
		b.lastFailure = b.now()
		if t.trial {
			b.trip("recovery trial failed")
			return
		}
		b.logWarn("failure recorded", "failures", b.failures, "threshold", b.threshold, "error", err)
		if b.failures >= b.threshold {
			b.trip("threshold reached")
		}
	}
}

// trip moves to OPEN. Callers hold b.mu.
func (b *Breaker) trip(reason string) {
	b.state = StateOpen
	b.generation++
	b.logError("opening circuit", "reason", reason, "failures", b.failures)
}

// Reset forces the breaker closed with a zero failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.lastFailure = time.Time{}
	b.trial = false
	b.generation++
	b.logInfo("manual reset")
}

// State returns the current state. An OPEN breaker whose cooldown elapsed
// still reports OPEN until the next call moves it to HALF_OPEN.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns the breaker's current counters.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:             b.name,
		State:            b.state,
		FailureCount:     b.failures,
		FailureThreshold: b.threshold,
		LastFailure:      b.lastFailure,
		Cooldown:         b.cooldown,
	}
}

func (b *Breaker) logInfo(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Info(msg, append([]any{"breaker", b.name}, args...)...)
	}
}

func (b *Breaker) logWarn(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, append([]any{"breaker", b.name}, args...)...)
	}
}

func (b *Breaker) logError(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Error(msg, append([]any{"breaker", b.name}, args...)...)
	}
}

type panicError struct {
	value any
}

func (p panicError) Error() string {
	return "panic in guarded call"
}

package resilience

import (
	"errors"
	"fmt"
	"time"
)

// ErrCircuitOpen is matched by every rejection a breaker issues. Callers use
// it to tell a refused call apart from a genuine dependency failure.
var ErrCircuitOpen = errors.New("circuit open")

// OpenError is returned when a breaker refuses a call.
type OpenError struct {
	Name       string
	State      BreakerState
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	if e.State == StateHalfOpen {
		return fmt.Sprintf("dependency %s unavailable: recovery trial already in flight", e.Name)
	}
	return fmt.Sprintf("dependency %s unavailable: circuit open, retry after %s", e.Name, e.RetryAfter.Round(time.Second))
}

// Is reports true for ErrCircuitOpen.
func (e *OpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// ExhaustedError wraps the last error seen after every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// IsCircuitOpen reports whether err is a breaker rejection.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

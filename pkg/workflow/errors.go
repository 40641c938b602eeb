package workflow

import (
	"errors"
	"fmt"
)

// ErrFrozen is returned when merging into a state that reached a terminal
// status.
var ErrFrozen = errors.New("workflow: state is frozen")

// ValidationError rejects an input before a run starts.
type ValidationError struct {
	Input Input
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input %q: %v", e.Input.RepoURL, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// UndeclaredWriteError reports a stage update touching a field the stage did
// not declare.
type UndeclaredWriteError struct {
	Stage string
	Field Field
}

func (e *UndeclaredWriteError) Error() string {
	return fmt.Sprintf("stage %s wrote undeclared field %s", e.Stage, e.Field)
}

// PanicError wraps a value recovered from a stage or synthesizer.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

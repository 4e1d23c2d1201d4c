package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed indicates use of a simulation after Close.
	ErrClosed = errors.New("engine: simulation closed")

	// ErrNoPositions indicates stepping or minimizing before SetPositions.
	ErrNoPositions = errors.New("engine: positions not set")

	// ErrDimensionMismatch indicates a particle count that does not match the system.
	ErrDimensionMismatch = errors.New("engine: particle count mismatch")

	// ErrNoBox indicates a periodic method without a periodic box.
	ErrNoBox = errors.New("engine: periodic nonbonded method requires a box")

	// ErrUnstable indicates non-finite coordinates after a step.
	ErrUnstable = errors.New("engine: simulation unstable (NaN or Inf detected)")
)

// StepError wraps an error with the step it occurred at.
type StepError struct {
	Step    int
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d: %v", e.Step, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}

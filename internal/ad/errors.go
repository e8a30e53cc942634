package ad

import (
	"errors"
	"fmt"
)

var (
	// ErrShape indicates an argument whose dimensions do not match a port.
	ErrShape = errors.New("ad: shape mismatch")

	// ErrInput indicates function inputs that are not distinct symbols.
	ErrInput = errors.New("ad: function inputs must be distinct symbols")

	// ErrFreeSymbol indicates an output depending on a symbol that is not an input.
	ErrFreeSymbol = errors.New("ad: free symbol in function graph")

	// ErrUnknownPort indicates a named argument with no matching input.
	ErrUnknownPort = errors.New("ad: unknown port")

	// ErrNoConvergence indicates the root finder exhausted its iterations.
	ErrNoConvergence = errors.New("ad: root finder did not converge")

	// ErrSingular indicates a singular jacobian during a Newton step.
	ErrSingular = errors.New("ad: singular jacobian in root finder")

	// ErrUnknownBackend indicates a backend name ParseBackend does not know.
	ErrUnknownBackend = errors.New("ad: unknown backend")
)

// SolveError wraps a root finding failure with the state of the iteration.
type SolveError struct {
	Name       string
	Iterations int
	Residual   float64
	Wrapped    error
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("%s: %v after %d iterations (|r|=%.3e)", e.Name, e.Wrapped, e.Iterations, e.Residual)
}

func (e *SolveError) Unwrap() error {
	return e.Wrapped
}

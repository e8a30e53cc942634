package integrator

import (
	"errors"
	"fmt"
)

// Construction errors. None of these are returned once an Integrator exists.
var (
	// ErrConfiguration indicates options that no integrator can be built from.
	ErrConfiguration = errors.New("integrator: invalid configuration")

	// ErrUnsupportedControl indicates a control type with no interpolation rule.
	ErrUnsupportedControl = errors.New("integrator: unsupported control type")

	// ErrNotImplemented indicates a valid combination that is not available yet.
	ErrNotImplemented = errors.New("integrator: not implemented")

	// ErrUnknownMethod indicates an unrecognised integration method.
	ErrUnknownMethod = errors.New("integrator: unknown method")

	// ErrDimensionMismatch indicates a dynamics result that does not match the state.
	ErrDimensionMismatch = errors.New("integrator: dimension mismatch between state and dynamics")
)

// ConfigError wraps a construction error with the option that caused it.
type ConfigError struct {
	Method  Method
	Field   string
	Detail  string
	Wrapped error
}

func (e *ConfigError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v (%s, %s)", e.Wrapped, e.Method, e.Field)
	}
	return fmt.Sprintf("%v (%s, %s): %s", e.Wrapped, e.Method, e.Field, e.Detail)
}

func (e *ConfigError) Unwrap() error {
	return e.Wrapped
}

func configErr(m Method, field string, wrapped error, format string, args ...any) error {
	return &ConfigError{Method: m, Field: field, Detail: fmt.Sprintf(format, args...), Wrapped: wrapped}
}

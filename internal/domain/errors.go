package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Compare with errors.Is.
var (
	ErrInvalidDistribution = errors.New("invalid distribution")
	ErrInvalidWeights      = errors.New("invalid weights")
	ErrMissingParameter    = errors.New("missing parameter")
	ErrIndexMismatch       = errors.New("index mismatch")
	ErrInvalidExpression   = errors.New("invalid expression")
	ErrInvalidDesign       = errors.New("invalid design")
	ErrInvalidSampleCount  = errors.New("invalid sample count")
	ErrInvalidInvestment   = errors.New("invalid investment")
	ErrInfeasible          = errors.New("infeasible")
	ErrIterationLimit      = errors.New("iteration limit")
	ErrNumericalFailure    = errors.New("numerical failure")
)

// Error reports a failure with enough context to fix the offending input
type Error struct {
	Kind       error
	Operation  string
	Technology string
	Parameter  string
	Message    string
	Cause      error
}

// NewError creates an error of the given kind
func NewError(kind error, operation, format string, args ...any) *Error {
	return &Error{
		Kind:      kind,
		Operation: operation,
		Message:   fmt.Sprintf(format, args...),
	}
}

// For attaches the technology and parameter the error refers to
func (e *Error) For(technology, parameter string) *Error {
	e.Technology = technology
	e.Parameter = parameter
	return e
}

// Wrap attaches an underlying cause
func (e *Error) Wrap(cause error) *Error {
	e.Cause = cause
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Operation != "" {
		b.WriteString(e.Operation)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Technology != "" {
		fmt.Fprintf(&b, " (technology %q", e.Technology)
		if e.Parameter != "" {
			fmt.Fprintf(&b, ", parameter %q", e.Parameter)
		}
		b.WriteString(")")
	} else if e.Parameter != "" {
		fmt.Fprintf(&b, " (parameter %q)", e.Parameter)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the error kind
func (e *Error) Is(target error) bool {
	return e.Kind != nil && e.Kind == target
}

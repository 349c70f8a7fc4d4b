package domain

import (
	"fmt"
	"sort"
	"time"
)

// ExitCode is the outcome of an optimizer run
type ExitCode string

const (
	ExitSuccess          ExitCode = "success"
	ExitInfeasible       ExitCode = "infeasible"
	ExitIterationLimit   ExitCode = "iteration-limit"
	ExitCancelled        ExitCode = "cancelled"
	ExitNumericalFailure ExitCode = "numerical-failure"
)

// Err maps the exit code onto the error taxonomy; success maps to nil
func (c ExitCode) Err() error {
	switch c {
	case ExitInfeasible:
		return ErrInfeasible
	case ExitIterationLimit:
		return ErrIterationLimit
	case ExitNumericalFailure:
		return ErrNumericalFailure
	case ExitCancelled:
		return fmt.Errorf("optimization cancelled")
	default:
		return nil
	}
}

// Optimum is the immutable result of one optimizer run
type Optimum struct {
	ExitCode    ExitCode           `json:"exit_code"`
	Message     string             `json:"message"`
	Strategy    string             `json:"strategy"`
	Target      string             `json:"target"`
	Objective   float64            `json:"objective"`
	Amounts     Investment         `json:"amount"`
	Metrics     map[string]float64 `json:"metrics"`
	Iterations  int                `json:"iterations"`
	Evaluations int                `json:"evaluations"`
	Elapsed     time.Duration      `json:"elapsed"`
}

// Succeeded reports whether the run converged to a feasible point
func (o *Optimum) Succeeded() bool {
	return o.ExitCode == ExitSuccess
}

// Categories returns the invested categories in name order
func (o *Optimum) Categories() []string {
	out := make([]string, 0, len(o.Amounts))
	for c := range o.Amounts {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

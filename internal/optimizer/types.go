package optimizer

import (
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/evaluation"
)

// StrategyKind names a search strategy
type StrategyKind string

const (
	GlobalStochastic    StrategyKind = "global-stochastic"    // differential evolution
	GlobalDeterministic StrategyKind = "global-deterministic" // DIRECT box partitioning
	LocalGradient       StrategyKind = "local-gradient"       // augmented Lagrangian with BFGS
)

// StrategyKinds lists the available strategies
func StrategyKinds() []StrategyKind {
	return []StrategyKind{GlobalStochastic, GlobalDeterministic, LocalGradient}
}

// ParseStrategy validates a strategy name
func ParseStrategy(s string) (StrategyKind, error) {
	for _, k := range StrategyKinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown strategy %q (want one of %v)", s, StrategyKinds())
}

// BoundSense is the direction of a metric constraint
type BoundSense string

const (
	Upper BoundSense = "upper" // metric <= limit
	Lower BoundSense = "lower" // metric >= limit
)

// MetricBound constrains the statistic of one metric
type MetricBound struct {
	Limit float64    `json:"limit" yaml:"limit"`
	Sense BoundSense `json:"sense,omitempty" yaml:"sense,omitempty"`
}

// Request defines one epsilon-constraint optimization
type Request struct {
	// Target is the metric to optimize
	Target string
	// Sense defaults to the target metric's declared sense
	Sense domain.Sense

	MetricBounds map[string]MetricBound
	// InvestmentBounds caps each category; categories not named are capped by the cost
	// of all their tranches
	InvestmentBounds domain.Investment
	// TotalBudget caps the summed investment when set
	TotalBudget *float64

	Strategy StrategyKind
	// Polish runs the local-gradient strategy from the global result
	Polish    bool
	Statistic evaluation.Statistic
	// Scenario defaults to the first scenario of the design
	Scenario string
	Initial  domain.Investment

	SampleCount   int
	MaxIterations int
	Tolerance     float64
}

// Observer receives a record of every completed optimization
type Observer interface {
	ObserveOptimization(strategy string, exit domain.ExitCode, elapsed time.Duration, evaluations int)
}

// Options configures the optimizer defaults
type Options struct {
	Strategy      StrategyKind
	SampleCount   int
	MaxIterations int
	Tolerance     float64
	Seed          uint64
	Parallelism   int
	Logger        domain.Logger
	Observer      Observer
}

// DefaultOptions returns default optimizer configuration
func DefaultOptions() Options {
	return Options{
		Strategy:      GlobalStochastic,
		SampleCount:   100,
		MaxIterations: 50,
		Tolerance:     1e-3,
		Seed:          1,
		Parallelism:   runtime.GOMAXPROCS(0),
		Logger:        domain.NopLogger{},
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// validate checks the request against the design metrics and categories
func (r *Request) validate(metrics map[string]domain.Sense, categories map[string]bool) error {
	if _, ok := metrics[r.Target]; !ok {
		return domain.NewError(domain.ErrMissingParameter, "optimize", "unknown target metric %q", r.Target)
	}
	switch r.Sense {
	case "", domain.SenseMax, domain.SenseMin:
	default:
		return domain.NewError(domain.ErrInvalidInvestment, "optimize", "unknown sense %q", r.Sense)
	}
	for name, b := range r.MetricBounds {
		if _, ok := metrics[name]; !ok {
			return domain.NewError(domain.ErrMissingParameter, "optimize", "bound on unknown metric %q", name)
		}
		if !finite(b.Limit) {
			return domain.NewError(domain.ErrInvalidInvestment, "optimize", "bound on %q must be finite, got %g", name, b.Limit)
		}
		switch b.Sense {
		case "", Upper, Lower:
		default:
			return domain.NewError(domain.ErrInvalidInvestment, "optimize", "bound on %q has unknown sense %q", name, b.Sense)
		}
	}
	for name, inv := range map[string]domain.Investment{"investment bound": r.InvestmentBounds, "initial investment": r.Initial} {
		for c, v := range inv {
			if !categories[c] {
				return domain.NewError(domain.ErrInvalidInvestment, "optimize", "%s for unknown category %q", name, c)
			}
			if v < 0 || !finite(v) {
				return domain.NewError(domain.ErrInvalidInvestment, "optimize", "%s for %q must be finite and non-negative, got %g", name, c, v)
			}
		}
	}
	if r.TotalBudget != nil && (*r.TotalBudget < 0 || !finite(*r.TotalBudget)) {
		return domain.NewError(domain.ErrInvalidInvestment, "optimize", "total budget must be finite and non-negative, got %g", *r.TotalBudget)
	}
	if r.SampleCount < 1 {
		return domain.NewError(domain.ErrInvalidSampleCount, "optimize", "sample count must be at least 1, got %d", r.SampleCount)
	}
	if r.MaxIterations < 1 {
		return fmt.Errorf("optimize: max iterations must be at least 1, got %d", r.MaxIterations)
	}
	if r.Tolerance <= 0 || !finite(r.Tolerance) {
		return fmt.Errorf("optimize: tolerance must be positive, got %g", r.Tolerance)
	}
	return nil
}

package optimizer

import (
	"context"
	"math"
	"sync"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/rgehrsitz/tyche/internal/domain"
)

const (
	// initialPenalty and penaltyGrowth drive the augmented Lagrangian penalty
	initialPenalty  = 10.0
	penaltyGrowth   = 4.0
	maxPenalty      = 1e8
	innerIterations = 100
	gradientStep    = 1e-4
)

// Local is a sequential quadratic style local search: an augmented Lagrangian outer loop
// over BFGS inner solves with central finite-difference gradients. Variables are scaled to
// the unit cube; the box is enforced by clamping plus a quadratic penalty outside it.
type Local struct {
	settings Settings
}

// Name returns the strategy kind
func (l *Local) Name() StrategyKind { return LocalGradient }

// Search refines from start, or from a tenth of the upper bounds when start is nil
func (l *Local) Search(ctx context.Context, oracle Oracle, bounds Bounds, start []float64) (Candidate, error) {
	dim := bounds.Dim()
	if start == nil {
		start = make([]float64, dim)
		for i := range start {
			start[i] = bounds.Lower[i] + (bounds.Upper[i]-bounds.Lower[i])/10
		}
	}
	u := bounds.toUnit(bounds.Repair(bounds.Clip(append([]float64(nil), start...))))

	current, err := oracle.Evaluate(ctx, bounds.fromUnit(u))
	if err != nil {
		if cancelled(err) {
			return Candidate{Status: domain.ExitCancelled}, nil
		}
		return Candidate{}, err
	}
	if current.Failed {
		return Candidate{Point: current, Status: domain.ExitNumericalFailure}, nil
	}

	scale := math.Max(1, math.Abs(current.Objective))
	lambda := make([]float64, len(current.Slack))
	rho := initialPenalty

	var (
		mu       sync.Mutex
		firstErr error
	)
	// evaluate returns the point for a unit vector, recording the first oracle error
	evaluate := func(v []float64) (Point, []float64, bool) {
		inside := append([]float64(nil), v...)
		for i := range inside {
			inside[i] = math.Min(1, math.Max(0, inside[i]))
		}
		p, err := oracle.Evaluate(ctx, bounds.fromUnit(inside))
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			return p, inside, false
		}
		return p, inside, !p.Failed
	}

	for iter := 1; iter <= l.settings.MaxIterations; iter++ {
		if ctx.Err() != nil {
			return Candidate{Point: current, Iterations: iter - 1, Status: domain.ExitCancelled}, nil
		}

		multipliers := append([]float64(nil), lambda...)
		penalty := rho
		lagrangian := func(v []float64) float64 {
			p, inside, ok := evaluate(v)
			if !ok {
				return math.Inf(1)
			}
			value := p.Objective / scale
			for i, c := range p.Slack {
				value += augmented(c, multipliers[i], penalty)
			}
			for i := range v {
				out := v[i] - inside[i]
				value += penalty * out * out
			}
			return value
		}

		problem := optimize.Problem{
			Func: lagrangian,
			Grad: func(grad, v []float64) {
				fd.Gradient(grad, lagrangian, v, &fd.Settings{
					Formula:    fd.Central,
					Step:       gradientStep,
					Concurrent: l.settings.Parallelism > 1,
				})
			},
		}
		settings := &optimize.Settings{
			MajorIterations: innerIterations,
			Converger: &optimize.FunctionConverge{
				Absolute:   l.settings.Tolerance * 1e-3,
				Iterations: 5,
			},
		}
		result, err := optimize.Minimize(problem, u, settings, &optimize.BFGS{})

		mu.Lock()
		oracleErr := firstErr
		mu.Unlock()
		if oracleErr != nil {
			if cancelled(oracleErr) {
				return Candidate{Point: current, Iterations: iter - 1, Status: domain.ExitCancelled}, nil
			}
			return Candidate{}, oracleErr
		}
		if err != nil && (result == nil || floats.HasNaN(result.X)) {
			return Candidate{Point: current, Iterations: iter, Status: domain.ExitNumericalFailure}, nil
		}

		next, inside, ok := evaluate(result.X)
		if !ok {
			return Candidate{Point: current, Iterations: iter, Status: domain.ExitNumericalFailure}, nil
		}
		u = inside

		change := math.Abs(next.Objective-current.Objective) / scale
		current = next
		for i, c := range next.Slack {
			lambda[i] = math.Max(0, lambda[i]-rho*c)
		}
		if next.Violation > l.settings.Tolerance {
			rho = math.Min(rho*penaltyGrowth, maxPenalty)
		}
		if next.Violation <= l.settings.Tolerance && change <= l.settings.Tolerance && iter > 1 {
			return Candidate{Point: current, Iterations: iter, Status: domain.ExitSuccess}, nil
		}
	}
	return Candidate{Point: current, Iterations: l.settings.MaxIterations, Status: domain.ExitIterationLimit}, nil
}

// augmented is the augmented Lagrangian term of an inequality constraint c >= 0
func augmented(c, lambda, rho float64) float64 {
	if c-lambda/rho <= 0 {
		return -lambda*c + rho/2*c*c
	}
	return -lambda * lambda / (2 * rho)
}

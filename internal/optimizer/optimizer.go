// Package optimizer searches per-category investment amounts that optimize one metric
// while bounding the others and the total budget (the epsilon-constraint method).
//
// Every strategy talks to the evaluator through the same Oracle, which maps an investment
// vector to its objective and constraint slack. Samples are drawn once per run so every
// candidate is compared on common random numbers. The best point of a run is chosen by
// feasibility first, then objective, across every evaluation any strategy made.
package optimizer

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/evaluation"
)

// Optimizer runs epsilon-constraint optimizations over an evaluator
type Optimizer struct {
	evaluator *evaluation.Evaluator
	options   Options
}

// New creates a new Optimizer
func New(evaluator *evaluation.Evaluator, options Options) *Optimizer {
	defaults := DefaultOptions()
	if options.Strategy == "" {
		options.Strategy = defaults.Strategy
	}
	if options.SampleCount == 0 {
		options.SampleCount = defaults.SampleCount
	}
	if options.MaxIterations == 0 {
		options.MaxIterations = defaults.MaxIterations
	}
	if options.Tolerance == 0 {
		options.Tolerance = defaults.Tolerance
	}
	if options.Parallelism <= 0 {
		options.Parallelism = defaults.Parallelism
	}
	if options.Logger == nil {
		options.Logger = domain.NopLogger{}
	}
	return &Optimizer{evaluator: evaluator, options: options}
}

// Options returns the optimizer defaults
func (o *Optimizer) Options() Options { return o.options }

// withDefaults fills unset request fields from the optimizer options
func (o *Optimizer) withDefaults(req Request) Request {
	if req.Strategy == "" {
		req.Strategy = o.options.Strategy
	}
	if req.SampleCount == 0 {
		req.SampleCount = o.options.SampleCount
	}
	if req.MaxIterations == 0 {
		req.MaxIterations = o.options.MaxIterations
	}
	if req.Tolerance == 0 {
		req.Tolerance = o.options.Tolerance
	}
	return req
}

// Optimize maximizes (or minimizes) the target statistic subject to the request bounds.
// Search outcomes are reported through the exit code of the Optimum; an error means the
// request itself was invalid or evaluation failed outright.
func (o *Optimizer) Optimize(ctx context.Context, req Request) (*domain.Optimum, error) {
	start := time.Now()
	req = o.withDefaults(req)

	compiled := o.evaluator.Design()
	metrics := make(map[string]domain.Sense)
	for _, m := range compiled.Metrics() {
		metrics[m.Name] = m.Sense
	}
	categories := compiled.Categories()
	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c] = true
	}
	if err := req.validate(metrics, known); err != nil {
		return nil, err
	}
	strategy, err := NewStrategy(req.Strategy, o.settings(req))
	if err != nil {
		return nil, err
	}
	scenario, err := o.scenario(req.Scenario)
	if err != nil {
		return nil, err
	}
	sense := req.Sense
	if sense == "" {
		sense = metrics[req.Target]
	}

	draws, err := o.evaluator.Draw(ctx, req.SampleCount)
	if err != nil {
		if cancelled(err) {
			return o.cancelledOptimum(req, categories, start), nil
		}
		return nil, err
	}

	bounds := o.bounds(req, categories)
	oracle := &evaluatorOracle{
		evaluator:  o.evaluator,
		draws:      draws,
		scenario:   scenario,
		categories: categories,
		target:     req.Target,
		maximize:   sense == domain.SenseMax,
		statistic:  req.Statistic,
		budget:     bounds.Budget,
	}
	for _, name := range slices.Sorted(maps.Keys(req.MetricBounds)) {
		b := req.MetricBounds[name]
		if b.Sense == "" {
			b.Sense = Upper
		}
		oracle.bounds = append(oracle.bounds, constraint{
			metric: name, limit: b.Limit, sense: b.Sense, scale: math.Max(1, math.Abs(b.Limit)),
		})
	}
	track := newTracker(oracle)

	baseline, err := track.Evaluate(ctx, make([]float64, len(categories)))
	if err != nil {
		if cancelled(err) {
			return o.cancelledOptimum(req, categories, start), nil
		}
		return nil, err
	}

	candidate := Candidate{Point: baseline, Status: domain.ExitSuccess}
	if floats.Sum(bounds.Upper) > 0 {
		var initial []float64
		if req.Initial != nil {
			initial = make([]float64, len(categories))
			for i, c := range categories {
				initial[i] = req.Initial[c]
			}
		}
		candidate, err = strategy.Search(ctx, track, bounds, initial)
		if err != nil {
			return nil, err
		}
		if req.Polish && req.Strategy != LocalGradient && candidate.Status != domain.ExitCancelled {
			if from, ok := track.Best(); ok && from.Feasible {
				local := &Local{settings: o.settings(req)}
				polished, err := local.Search(ctx, track, bounds, from.X)
				if err != nil {
					return nil, err
				}
				candidate.Iterations += polished.Iterations
				if polished.Status == domain.ExitCancelled {
					candidate.Status = domain.ExitCancelled
				}
			}
		}
	}

	best, _ := track.Best()
	optimum := &domain.Optimum{
		Strategy:    string(req.Strategy),
		Target:      req.Target,
		Iterations:  candidate.Iterations,
		Evaluations: track.Evaluations(),
	}
	// an infeasible run that still reduced the violation below the baseline's was
	// cut short rather than blocked
	progressed := best.Violation < baseline.Violation*(1-o.settings(req).Tolerance)
	switch {
	case candidate.Status == domain.ExitCancelled:
		optimum.ExitCode = domain.ExitCancelled
		optimum.Message = "cancelled; returning the best feasible point found"
		if !best.Feasible {
			optimum.Message = fmt.Sprintf("cancelled before a feasible point was found; smallest constraint violation %.4g", best.Violation)
		}
	case best.Failed:
		optimum.ExitCode = domain.ExitNumericalFailure
		optimum.Message = "every evaluated point produced non-finite statistics"
		best = baseline
	case !best.Feasible && candidate.Status == domain.ExitIterationLimit && progressed:
		optimum.ExitCode = domain.ExitIterationLimit
		optimum.Message = fmt.Sprintf("iteration limit %d reached before a feasible point was found; smallest constraint violation %.4g",
			req.MaxIterations, best.Violation)
	case !best.Feasible:
		optimum.ExitCode = domain.ExitInfeasible
		optimum.Message = fmt.Sprintf("no feasible point found; smallest constraint violation %.4g", best.Violation)
		best = baseline
	case candidate.Status == domain.ExitIterationLimit:
		optimum.ExitCode = domain.ExitIterationLimit
		optimum.Message = fmt.Sprintf("iteration limit %d reached before convergence", req.MaxIterations)
	case candidate.Status == domain.ExitNumericalFailure:
		optimum.ExitCode = domain.ExitNumericalFailure
		optimum.Message = "search stopped on a non-finite objective"
	default:
		optimum.ExitCode = domain.ExitSuccess
		optimum.Message = "optimization converged"
		if floats.Sum(bounds.Upper) == 0 {
			optimum.Message = "investment bounds are zero; returning the baseline"
		}
	}

	optimum.Amounts = make(domain.Investment, len(categories))
	for i, c := range categories {
		optimum.Amounts[c] = best.X[i]
	}
	optimum.Metrics = best.Metrics
	optimum.Objective = best.Metrics[req.Target]
	optimum.Elapsed = time.Since(start)

	o.options.Logger.Infof("optimize %s (%s %s): %s after %d iterations, %d evaluations",
		req.Target, sense, req.Strategy, optimum.ExitCode, optimum.Iterations, optimum.Evaluations)
	if o.options.Observer != nil {
		o.options.Observer.ObserveOptimization(string(req.Strategy), optimum.ExitCode, optimum.Elapsed, optimum.Evaluations)
	}
	return optimum, nil
}

// cancelledOptimum reports a run stopped before the baseline was evaluated
func (o *Optimizer) cancelledOptimum(req Request, categories []string, start time.Time) *domain.Optimum {
	optimum := &domain.Optimum{
		ExitCode: domain.ExitCancelled,
		Message:  "cancelled before the baseline was evaluated",
		Strategy: string(req.Strategy),
		Target:   req.Target,
		Amounts:  make(domain.Investment, len(categories)),
		Elapsed:  time.Since(start),
	}
	for _, c := range categories {
		optimum.Amounts[c] = 0
	}
	if o.options.Observer != nil {
		o.options.Observer.ObserveOptimization(optimum.Strategy, optimum.ExitCode, optimum.Elapsed, 0)
	}
	return optimum
}

func (o *Optimizer) settings(req Request) Settings {
	return Settings{
		MaxIterations: req.MaxIterations,
		Tolerance:     req.Tolerance,
		Seed:          o.options.Seed,
		Parallelism:   o.options.Parallelism,
	}
}

// scenario resolves the named scenario, defaulting to the first declared one
func (o *Optimizer) scenario(name string) (domain.Scenario, error) {
	declared := o.evaluator.Design().Scenarios()
	if name == "" {
		if len(declared) > 0 {
			return declared[0], nil
		}
		return domain.BaselineScenario, nil
	}
	for _, sc := range declared {
		if sc.Name == name {
			return sc, nil
		}
	}
	if name == domain.BaselineScenario.Name {
		return domain.BaselineScenario, nil
	}
	return domain.Scenario{}, fmt.Errorf("optimize: unknown scenario %q", name)
}

// bounds clamps every category bound to the total budget
func (o *Optimizer) bounds(req Request, categories []string) Bounds {
	b := Bounds{
		Lower:  make([]float64, len(categories)),
		Upper:  make([]float64, len(categories)),
		Budget: math.Inf(1),
	}
	if req.TotalBudget != nil {
		b.Budget = *req.TotalBudget
	}
	for i, c := range categories {
		upper, ok := req.InvestmentBounds[c]
		if !ok {
			upper = o.evaluator.Allocator().MaxAmount(c)
		}
		b.Upper[i] = math.Min(upper, b.Budget)
	}
	return b
}

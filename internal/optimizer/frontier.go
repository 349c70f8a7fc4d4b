package optimizer

import (
	"context"
	"fmt"
	"maps"
	"math"

	"github.com/rgehrsitz/tyche/internal/domain"
)

// MetricRange is the outcome of optimizing one metric on its own
type MetricRange struct {
	Metric   string          `json:"metric"`
	Sense    domain.Sense    `json:"sense"`
	Baseline float64         `json:"baseline"`
	Best     float64         `json:"best"`
	Optimum  *domain.Optimum `json:"optimum"`
}

// MetricRanges optimizes every metric alone in its declared sense, keeping the request's
// investment bounds and budget but none of its metric bounds
func (o *Optimizer) MetricRanges(ctx context.Context, req Request) ([]MetricRange, error) {
	var out []MetricRange
	for _, m := range o.evaluator.Design().Metrics() {
		r := req
		r.Target = m.Name
		r.Sense = m.Sense
		r.MetricBounds = nil
		optimum, err := o.Optimize(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("metric range of %s: %w", m.Name, err)
		}
		baseline, err := o.baseline(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, MetricRange{
			Metric:   m.Name,
			Sense:    m.Sense,
			Baseline: baseline[m.Name],
			Best:     optimum.Objective,
			Optimum:  optimum,
		})
		if optimum.ExitCode == domain.ExitCancelled {
			break
		}
	}
	return out, nil
}

// baseline returns the metric statistics of the zero investment on the request's draws
func (o *Optimizer) baseline(ctx context.Context, req Request) (map[string]float64, error) {
	req = o.withDefaults(req)
	scenario, err := o.scenario(req.Scenario)
	if err != nil {
		return nil, err
	}
	draws, err := o.evaluator.Draw(ctx, req.SampleCount)
	if err != nil {
		return nil, err
	}
	oracle := &evaluatorOracle{
		evaluator:  o.evaluator,
		draws:      draws,
		scenario:   scenario,
		categories: o.evaluator.Design().Categories(),
		target:     req.Target,
		statistic:  req.Statistic,
		budget:     math.Inf(1),
	}
	p, err := oracle.Evaluate(ctx, make([]float64, len(oracle.categories)))
	if err != nil {
		return nil, err
	}
	return p.Metrics, nil
}

// FrontierPoint is one optimum of an epsilon sweep
type FrontierPoint struct {
	Limit   float64         `json:"limit"`
	Optimum *domain.Optimum `json:"optimum"`
}

// Frontier sweeps a bound on one metric from its baseline value to its best achievable
// value in steps, optimizing the target at each limit. Only feasible, mutually
// non-dominated optima are returned, in sweep order.
func (o *Optimizer) Frontier(ctx context.Context, req Request, sweep string, steps int) ([]FrontierPoint, error) {
	req = o.withDefaults(req)
	info, ok := o.evaluator.Design().Metric(sweep)
	if !ok {
		return nil, domain.NewError(domain.ErrMissingParameter, "frontier", "unknown sweep metric %q", sweep)
	}
	target, ok := o.evaluator.Design().Metric(req.Target)
	if !ok {
		return nil, domain.NewError(domain.ErrMissingParameter, "frontier", "unknown target metric %q", req.Target)
	}
	if sweep == req.Target {
		return nil, fmt.Errorf("frontier: sweep metric must differ from the target")
	}
	if steps < 2 {
		return nil, fmt.Errorf("frontier: at least 2 steps required, got %d", steps)
	}
	targetSense := req.Sense
	if targetSense == "" {
		targetSense = target.Sense
	}

	alone := req
	alone.Target = sweep
	alone.Sense = info.Sense
	alone.MetricBounds = maps.Clone(req.MetricBounds)
	delete(alone.MetricBounds, sweep)
	extreme, err := o.Optimize(ctx, alone)
	if err != nil {
		return nil, err
	}
	base, err := o.baseline(ctx, alone)
	if err != nil {
		return nil, err
	}
	from, to := base[sweep], extreme.Objective

	boundSense := Upper
	if info.Sense == domain.SenseMax {
		boundSense = Lower
	}

	var points []FrontierPoint
	for k := 0; k < steps; k++ {
		if ctx.Err() != nil {
			break
		}
		limit := from + (to-from)*float64(k)/float64(steps-1)
		r := req
		r.MetricBounds = maps.Clone(req.MetricBounds)
		if r.MetricBounds == nil {
			r.MetricBounds = make(map[string]MetricBound)
		}
		r.MetricBounds[sweep] = MetricBound{Limit: limit, Sense: boundSense}
		optimum, err := o.Optimize(ctx, r)
		if err != nil {
			return nil, err
		}
		switch optimum.ExitCode {
		case domain.ExitSuccess, domain.ExitIterationLimit:
			points = append(points, FrontierPoint{Limit: limit, Optimum: optimum})
		}
	}
	return pareto(points, req.Target, targetSense, sweep, info.Sense), nil
}

// pareto drops every point dominated by another on the two swept metrics
func pareto(points []FrontierPoint, a string, senseA domain.Sense, b string, senseB domain.Sense) []FrontierPoint {
	better := func(x, y float64, sense domain.Sense) bool {
		if sense == domain.SenseMin {
			return x < y
		}
		return x > y
	}
	dominates := func(p, q *domain.Optimum) bool {
		pa, qa := p.Metrics[a], q.Metrics[a]
		pb, qb := p.Metrics[b], q.Metrics[b]
		noWorse := !better(qa, pa, senseA) && !better(qb, pb, senseB)
		return noWorse && (better(pa, qa, senseA) || better(pb, qb, senseB))
	}

	var out []FrontierPoint
	for i, p := range points {
		dominated := false
		for j, q := range points {
			if i != j && dominates(q.Optimum, p.Optimum) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, p)
		}
	}
	return out
}

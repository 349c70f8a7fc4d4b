package optimizer

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/evaluation"
)

// Point is one evaluated investment vector
type Point struct {
	X []float64
	// Objective is minimized: the negated target statistic when maximizing
	Objective float64
	// Slack holds one normalized value per constraint, non-negative when satisfied
	Slack     []float64
	Violation float64
	Feasible  bool
	// Failed marks a point whose statistics were not finite
	Failed  bool
	Metrics map[string]float64
}

// Better ranks points by feasibility first, then by violation when both are
// infeasible, then by objective
func (p Point) Better(q Point) bool {
	if p.Failed != q.Failed {
		return !p.Failed
	}
	if p.Feasible != q.Feasible {
		return p.Feasible
	}
	if !p.Feasible {
		return p.Violation < q.Violation
	}
	return p.Objective < q.Objective
}

// penalized folds the violation into the objective for strategies that need one scalar
func (p Point) penalized(weight float64) float64 {
	if p.Failed {
		return math.Inf(1)
	}
	return p.Objective + weight*p.Violation
}

// Oracle maps an investment vector to its objective and constraint slack.
// Implementations are safe for concurrent use.
type Oracle interface {
	Evaluate(ctx context.Context, x []float64) (Point, error)
}

type constraint struct {
	metric string
	limit  float64
	sense  BoundSense
	scale  float64
}

// evaluatorOracle evaluates candidates on a fixed set of draws under one scenario
type evaluatorOracle struct {
	evaluator  *evaluation.Evaluator
	draws      *evaluation.Draws
	scenario   domain.Scenario
	categories []string
	target     string
	maximize   bool
	statistic  evaluation.Statistic
	bounds     []constraint
	budget     float64
}

func (o *evaluatorOracle) investment(x []float64) domain.Investment {
	inv := make(domain.Investment, len(o.categories))
	for i, c := range o.categories {
		inv[c] = math.Max(0, x[i])
	}
	return inv
}

func (o *evaluatorOracle) Evaluate(ctx context.Context, x []float64) (Point, error) {
	p := Point{X: append([]float64(nil), x...)}
	ev, err := o.evaluator.EvaluateDraws(ctx, o.draws, o.investment(x), []domain.Scenario{o.scenario})
	if err != nil {
		return p, err
	}

	p.Metrics = make(map[string]float64, len(ev.Metrics))
	for _, name := range ev.Metrics {
		total, ok := ev.PortfolioMetric(domain.PortfolioTotal, o.scenario.Name, name)
		if !ok {
			continue
		}
		v := o.statistic.Of(total.Stats)
		if !finite(v) {
			p.Failed = true
		}
		p.Metrics[name] = v
	}

	target := p.Metrics[o.target]
	p.Objective = target
	if o.maximize {
		p.Objective = -target
	}

	for _, c := range o.bounds {
		v := p.Metrics[c.metric]
		s := c.limit - v
		if c.sense == Lower {
			s = v - c.limit
		}
		p.Slack = append(p.Slack, s/c.scale)
	}
	if !math.IsInf(o.budget, 1) {
		spent := 0.0
		for _, v := range x {
			spent += v
		}
		p.Slack = append(p.Slack, (o.budget-spent)/math.Max(1, o.budget))
	}

	for _, s := range p.Slack {
		if s < 0 {
			p.Violation -= s
		}
	}
	if p.Failed {
		p.Objective = math.Inf(1)
		p.Violation = math.Inf(1)
	}
	p.Feasible = !p.Failed && p.Violation <= feasibilityTolerance
	return p, nil
}

// feasibilityTolerance absorbs rounding in normalized constraint slack
const feasibilityTolerance = 1e-9

// tracker records the best point seen across every evaluation of a run
type tracker struct {
	inner       Oracle
	evaluations atomic.Int64

	mu   sync.Mutex
	best Point
	has  bool
}

func newTracker(inner Oracle) *tracker {
	return &tracker{inner: inner}
}

func (t *tracker) Evaluate(ctx context.Context, x []float64) (Point, error) {
	p, err := t.inner.Evaluate(ctx, x)
	if err != nil {
		return p, err
	}
	t.evaluations.Add(1)

	t.mu.Lock()
	defer t.mu.Unlock()
	// ties resolve to the lexicographically smaller vector so concurrent
	// evaluation order never changes the result
	if !t.has || p.Better(t.best) || (!t.best.Better(p) && lexLess(p.X, t.best.X)) {
		t.best = p
		t.has = true
	}
	return p, nil
}

func (t *tracker) Best() (Point, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.best, t.has
}

func (t *tracker) Evaluations() int {
	return int(t.evaluations.Load())
}

func lexLess(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

package optimizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgehrsitz/tyche/internal/design"
	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/domain/domaintest"
	"github.com/rgehrsitz/tyche/internal/evaluation"
	"github.com/rgehrsitz/tyche/internal/investment"
)

const testSamples = 20

func newOptimizer(t *testing.T) (*Optimizer, *evaluation.Evaluator) {
	t.Helper()
	c, err := design.Compile(domaintest.PortfolioDesign())
	require.NoError(t, err)
	a, err := investment.NewAllocator(c, c.Tranches())
	require.NoError(t, err)
	e := evaluation.New(c, a, evaluation.DefaultConfig())
	options := DefaultOptions()
	options.SampleCount = testSamples
	options.MaxIterations = 25
	return New(e, options), e
}

// baselineEnergy is the mean portfolio energy without investment on the same draws
func baselineEnergy(t *testing.T, e *evaluation.Evaluator) float64 {
	t.Helper()
	ev, err := e.Evaluate(context.Background(), nil, testSamples, []domain.Scenario{domain.BaselineScenario})
	require.NoError(t, err)
	total, ok := ev.PortfolioMetric(domain.PortfolioTotal, "", "Energy")
	require.True(t, ok)
	return total.Stats.Mean
}

func budget(v float64) *float64 { return &v }

func TestZeroInvestmentBoundsReturnBaseline(t *testing.T) {
	o, e := newOptimizer(t)
	base := baselineEnergy(t, e)

	for _, kind := range StrategyKinds() {
		t.Run(string(kind), func(t *testing.T) {
			got, err := o.Optimize(context.Background(), Request{
				Target:           "Energy",
				Strategy:         kind,
				InvestmentBounds: domain.Investment{"Solar": 0, "Wind": 0},
			})
			require.NoError(t, err)
			assert.Equal(t, domain.ExitSuccess, got.ExitCode)
			assert.Equal(t, domain.Investment{"Solar": 0, "Wind": 0}, got.Amounts)
			assert.InDelta(t, base, got.Objective, 1e-9)
		})
	}
}

func TestZeroBudgetInvariantAcrossStrategies(t *testing.T) {
	o, e := newOptimizer(t)
	base := baselineEnergy(t, e)

	var objectives []float64
	for _, kind := range StrategyKinds() {
		got, err := o.Optimize(context.Background(), Request{
			Target:      "Energy",
			Strategy:    kind,
			TotalBudget: budget(0),
		})
		require.NoError(t, err, kind)
		assert.Equal(t, domain.ExitSuccess, got.ExitCode, kind)
		objectives = append(objectives, got.Objective)
	}
	for _, v := range objectives {
		assert.InDelta(t, base, v, 1e-9)
	}
}

func TestInfeasibleMetricBound(t *testing.T) {
	o, _ := newOptimizer(t)

	for _, kind := range StrategyKinds() {
		t.Run(string(kind), func(t *testing.T) {
			got, err := o.Optimize(context.Background(), Request{
				Target:        "Energy",
				Strategy:      kind,
				TotalBudget:   budget(2e6),
				MaxIterations: 5,
				MetricBounds:  map[string]MetricBound{"Emissions": {Limit: -1}},
			})
			require.NoError(t, err)
			assert.Equal(t, domain.ExitInfeasible, got.ExitCode)
			assert.Equal(t, domain.Investment{"Solar": 0, "Wind": 0}, got.Amounts)
			assert.ErrorIs(t, got.ExitCode.Err(), domain.ErrInfeasible)
		})
	}
}

func TestGlobalStrategiesFindBetterPortfolios(t *testing.T) {
	o, e := newOptimizer(t)
	base := baselineEnergy(t, e)

	for _, kind := range []StrategyKind{GlobalStochastic, GlobalDeterministic} {
		t.Run(string(kind), func(t *testing.T) {
			got, err := o.Optimize(context.Background(), Request{
				Target:      "Energy",
				Strategy:    kind,
				TotalBudget: budget(2e6),
			})
			require.NoError(t, err)
			assert.Contains(t, []domain.ExitCode{domain.ExitSuccess, domain.ExitIterationLimit}, got.ExitCode)
			// wind returns about twice the energy per dollar of solar
			assert.GreaterOrEqual(t, got.Objective, base+100)
			assert.LessOrEqual(t, got.Amounts.Total(), 2e6+1e-6)
			assert.Greater(t, got.Evaluations, 1)
		})
	}
}

func TestLocalGradientImprovesOnBaseline(t *testing.T) {
	o, e := newOptimizer(t)
	base := baselineEnergy(t, e)

	got, err := o.Optimize(context.Background(), Request{
		Target:        "Energy",
		Strategy:      LocalGradient,
		TotalBudget:   budget(2e6),
		MaxIterations: 10,
	})
	require.NoError(t, err)
	assert.Contains(t, []domain.ExitCode{domain.ExitSuccess, domain.ExitIterationLimit, domain.ExitNumericalFailure}, got.ExitCode)
	assert.Greater(t, got.Objective, base)
	assert.LessOrEqual(t, got.Amounts.Total(), 2e6*(1+1e-6))
}

func TestPolishKeepsTheBestPoint(t *testing.T) {
	o, e := newOptimizer(t)
	base := baselineEnergy(t, e)

	got, err := o.Optimize(context.Background(), Request{
		Target:        "Energy",
		Strategy:      GlobalStochastic,
		Polish:        true,
		TotalBudget:   budget(2e6),
		MaxIterations: 10,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.Objective, base+100)
}

func TestMinimizingSenseKeepsBaseline(t *testing.T) {
	o, _ := newOptimizer(t)

	// every investment raises energy and with it emissions
	got, err := o.Optimize(context.Background(), Request{
		Target:        "Emissions",
		TotalBudget:   budget(2e6),
		MaxIterations: 5,
	})
	require.NoError(t, err)
	assert.NotEqual(t, domain.ExitInfeasible, got.ExitCode)
	assert.Equal(t, 0.0, got.Amounts.Total())
}

func TestLowerMetricBound(t *testing.T) {
	o, e := newOptimizer(t)
	base := baselineEnergy(t, e)

	got, err := o.Optimize(context.Background(), Request{
		Target:       "Emissions",
		TotalBudget:  budget(2e6),
		MetricBounds: map[string]MetricBound{"Energy": {Limit: base + 50, Sense: Lower}},
	})
	require.NoError(t, err)
	require.NotEqual(t, domain.ExitInfeasible, got.ExitCode)
	assert.GreaterOrEqual(t, got.Metrics["Energy"], (base+50)*(1-1e-6))
	assert.Greater(t, got.Amounts["Wind"], 0.0)
}

func TestOptimizeIsDeterministic(t *testing.T) {
	o, _ := newOptimizer(t)
	req := Request{Target: "Energy", TotalBudget: budget(2e6), MaxIterations: 8}

	a, err := o.Optimize(context.Background(), req)
	require.NoError(t, err)
	b, err := o.Optimize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a.Amounts, b.Amounts)
	assert.Equal(t, a.Objective, b.Objective)
	assert.Equal(t, a.Evaluations, b.Evaluations)
}

func TestCancelledBeforeStart(t *testing.T) {
	o, _ := newOptimizer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := o.Optimize(ctx, Request{Target: "Energy", TotalBudget: budget(2e6)})
	require.NoError(t, err)
	assert.Equal(t, domain.ExitCancelled, got.ExitCode)
	assert.Equal(t, 0.0, got.Amounts.Total())
}

// cancelAfterFirst cancels the run once the first evaluation completes
type cancelAfterFirst struct {
	cancel context.CancelFunc
}

func (c cancelAfterFirst) ObserveEvaluation(time.Duration, int, int) { c.cancel() }

func TestCancelledDuringSearch(t *testing.T) {
	o, e := newOptimizer(t)
	base := baselineEnergy(t, e)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := evaluation.DefaultConfig()
	config.Observer = cancelAfterFirst{cancel: cancel}
	cancelling := New(evaluation.New(e.Design(), e.Allocator(), config), o.Options())

	req := Request{
		Target:       "Emissions",
		MetricBounds: map[string]MetricBound{"Energy": {Limit: 1.05 * base, Sense: Lower}},
	}
	got, err := cancelling.Optimize(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.ExitCancelled, got.ExitCode)
	assert.Contains(t, got.Message, "before a feasible point")
	assert.Equal(t, 1, got.Evaluations)
	assert.Equal(t, 0.0, got.Amounts.Total())

	// the same request reaches a feasible point when left to run
	full, err := o.Optimize(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, domain.ExitInfeasible, full.ExitCode)
	assert.NotEqual(t, domain.ExitCancelled, full.ExitCode)
}

func TestIterationLimitBeforeFeasibility(t *testing.T) {
	o, e := newOptimizer(t)
	ev, err := e.Evaluate(context.Background(), domain.Investment{"Solar": 2e6, "Wind": 4e6}, testSamples,
		[]domain.Scenario{domain.BaselineScenario})
	require.NoError(t, err)
	top, ok := ev.PortfolioMetric(domain.PortfolioTotal, "", "Energy")
	require.True(t, ok)

	// only the fully funded corner meets the bound, and one DIRECT iteration never samples it
	got, err := o.Optimize(context.Background(), Request{
		Target:        "Emissions",
		Strategy:      GlobalDeterministic,
		MaxIterations: 1,
		MetricBounds:  map[string]MetricBound{"Energy": {Limit: top.Stats.Mean, Sense: Lower}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ExitIterationLimit, got.ExitCode)
	assert.Contains(t, got.Message, "before a feasible point")
	assert.Greater(t, got.Amounts.Total(), 0.0, "the least violating point is returned")
}

func TestInvalidRequests(t *testing.T) {
	o, _ := newOptimizer(t)

	tests := []struct {
		name string
		req  Request
		kind error
	}{
		{name: "unknown target", req: Request{Target: "Jobs"}, kind: domain.ErrMissingParameter},
		{name: "bound on unknown metric", req: Request{Target: "Energy", MetricBounds: map[string]MetricBound{"Jobs": {Limit: 1}}}, kind: domain.ErrMissingParameter},
		{name: "negative investment bound", req: Request{Target: "Energy", InvestmentBounds: domain.Investment{"Wind": -1}}, kind: domain.ErrInvalidInvestment},
		{name: "unknown category", req: Request{Target: "Energy", InvestmentBounds: domain.Investment{"Hydro": 1}}, kind: domain.ErrInvalidInvestment},
		{name: "negative budget", req: Request{Target: "Energy", TotalBudget: budget(-5)}, kind: domain.ErrInvalidInvestment},
		{name: "negative sample count", req: Request{Target: "Energy", SampleCount: -1}, kind: domain.ErrInvalidSampleCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Optimize(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.kind)
		})
	}

	_, err := o.Optimize(context.Background(), Request{Target: "Energy", Strategy: "simulated-annealing"})
	assert.Error(t, err)
	_, err = o.Optimize(context.Background(), Request{Target: "Energy", Scenario: "drought"})
	assert.Error(t, err)
}

func TestMetricRanges(t *testing.T) {
	o, _ := newOptimizer(t)

	ranges, err := o.MetricRanges(context.Background(), Request{TotalBudget: budget(2e6), MaxIterations: 5})
	require.NoError(t, err)
	require.Len(t, ranges, 3)

	byName := map[string]MetricRange{}
	for _, r := range ranges {
		byName[r.Metric] = r
	}
	assert.GreaterOrEqual(t, byName["Energy"].Best, byName["Energy"].Baseline)
	assert.LessOrEqual(t, byName["Emissions"].Best, byName["Emissions"].Baseline+1e-9)
	assert.LessOrEqual(t, byName["Cost"].Best, byName["Cost"].Baseline+1e-9)
	assert.Equal(t, domain.SenseMin, byName["Cost"].Sense)
}

func TestFrontier(t *testing.T) {
	o, _ := newOptimizer(t)

	points, err := o.Frontier(context.Background(), Request{
		Target:        "Emissions",
		TotalBudget:   budget(2e6),
		MaxIterations: 8,
	}, "Energy", 3)
	require.NoError(t, err)
	require.NotEmpty(t, points)
	for _, p := range points {
		assert.NotEqual(t, domain.ExitInfeasible, p.Optimum.ExitCode)
		assert.GreaterOrEqual(t, p.Optimum.Metrics["Energy"], p.Limit*(1-1e-6))
	}

	_, err = o.Frontier(context.Background(), Request{Target: "Energy"}, "Energy", 3)
	assert.Error(t, err)
	_, err = o.Frontier(context.Background(), Request{Target: "Energy"}, "Emissions", 1)
	assert.Error(t, err)
}

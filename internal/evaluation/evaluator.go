// Package evaluation runs Monte Carlo evaluations of a compiled design.
//
// Parameters are drawn once per technology from an independent PCG stream derived from the
// seed and the technology position, so results are reproducible for a fixed seed and do
// not depend on scheduling. Investment deltas are added to the draws, scenario factors
// multiply them, and every technology is then evaluated over the whole batch.
package evaluation

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rgehrsitz/tyche/internal/design"
	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/investment"
)

// Observer receives a record of every completed evaluation
type Observer interface {
	ObserveEvaluation(elapsed time.Duration, samples, excluded int)
}

// Config holds configuration for evaluations
type Config struct {
	Seed        uint64
	Percentiles []float64
	// Parallelism bounds the technologies evaluated at once; zero means GOMAXPROCS
	Parallelism int
	Logger      domain.Logger
	Observer    Observer
}

// DefaultConfig returns the configuration used when none is supplied
func DefaultConfig() Config {
	return Config{
		Seed:        1,
		Percentiles: DefaultPercentiles,
		Parallelism: runtime.GOMAXPROCS(0),
		Logger:      domain.NopLogger{},
	}
}

// Evaluator evaluates investments over a compiled design
type Evaluator struct {
	design    *design.Compiled
	allocator *investment.Allocator
	config    Config
}

// New creates a new Evaluator
func New(compiled *design.Compiled, allocator *investment.Allocator, config Config) *Evaluator {
	if config.Percentiles == nil {
		config.Percentiles = DefaultPercentiles
	}
	if config.Parallelism <= 0 {
		config.Parallelism = runtime.GOMAXPROCS(0)
	}
	if config.Logger == nil {
		config.Logger = domain.NopLogger{}
	}
	return &Evaluator{design: compiled, allocator: allocator, config: config}
}

// Design returns the compiled design
func (e *Evaluator) Design() *design.Compiled { return e.design }

// Allocator returns the investment allocator
func (e *Evaluator) Allocator() *investment.Allocator { return e.allocator }

// Config returns the evaluator configuration
func (e *Evaluator) Config() Config { return e.config }

// Draws is an immutable set of parameter samples, one vector per parameter element of
// every technology. Sharing one Draws across evaluations gives them common random numbers.
type Draws struct {
	n      int
	seed   uint64
	values [][][]float64
}

// SampleCount returns the number of samples per parameter
func (d *Draws) SampleCount() int { return d.n }

// Seed returns the seed the samples were drawn from
func (d *Draws) Seed() uint64 { return d.seed }

// Draw samples every parameter of every technology
func (e *Evaluator) Draw(ctx context.Context, sampleCount int) (*Draws, error) {
	if sampleCount < 1 {
		return nil, domain.NewError(domain.ErrInvalidSampleCount, "evaluate",
			"sample count must be at least 1, got %d", sampleCount)
	}

	techs := e.design.Technologies()
	d := &Draws{n: sampleCount, seed: e.config.Seed, values: make([][][]float64, len(techs))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Parallelism)
	for i, tech := range techs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(e.config.Seed, uint64(i)))
			params := tech.Parameters()
			vectors := make([][]float64, len(params))
			for k, p := range params {
				vectors[k] = p.Sampler.Draw(rng, sampleCount)
			}
			d.values[i] = vectors
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// Evaluate draws sampleCount samples and evaluates the investments under each scenario.
// Without scenarios the design's scenarios are used, or the baseline when it declares none.
func (e *Evaluator) Evaluate(ctx context.Context, investments domain.Investment, sampleCount int, scenarios []domain.Scenario) (*domain.Evaluation, error) {
	draws, err := e.Draw(ctx, sampleCount)
	if err != nil {
		return nil, err
	}
	return e.EvaluateDraws(ctx, draws, investments, scenarios)
}

// EvaluateDraws evaluates the investments over previously drawn samples
func (e *Evaluator) EvaluateDraws(ctx context.Context, draws *Draws, investments domain.Investment, scenarios []domain.Scenario) (*domain.Evaluation, error) {
	start := time.Now()
	if draws == nil || draws.n < 1 {
		return nil, domain.NewError(domain.ErrInvalidSampleCount, "evaluate", "no samples drawn")
	}
	scenarios, err := e.resolveScenarios(scenarios)
	if err != nil {
		return nil, err
	}
	changes, applied, err := e.allocator.Deltas(investments)
	if err != nil {
		return nil, err
	}

	techs := e.design.Technologies()
	outcomes := make([][]*design.Outcome, len(techs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Parallelism)
	for i, tech := range techs {
		g.Go(func() error {
			outcomes[i] = make([]*design.Outcome, len(scenarios))
			for s, scenario := range scenarios {
				if err := gctx.Err(); err != nil {
					return err
				}
				out, err := tech.Evaluate(adjust(tech, draws.values[i], changes, scenario))
				if err != nil {
					return err
				}
				outcomes[i][s] = out
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := e.assemble(draws, investments, applied, scenarios, outcomes)
	e.config.Logger.Debugf("evaluated %d technologies x %d scenarios x %d samples in %s (%d excluded)",
		len(techs), len(scenarios), draws.n, time.Since(start), result.Excluded)
	if e.config.Observer != nil {
		e.config.Observer.ObserveEvaluation(time.Since(start), draws.n, result.Excluded)
	}
	return result, nil
}

func (e *Evaluator) resolveScenarios(scenarios []domain.Scenario) ([]domain.Scenario, error) {
	if len(scenarios) == 0 {
		scenarios = e.design.Scenarios()
	}
	if len(scenarios) == 0 {
		return []domain.Scenario{domain.BaselineScenario}, nil
	}
	seen := make(map[string]bool, len(scenarios))
	for _, sc := range scenarios {
		if sc.Name == "" || seen[sc.Name] {
			return nil, domain.NewError(domain.ErrInvalidDesign, "evaluate",
				"scenario names must be unique and non-empty, got %q", sc.Name)
		}
		seen[sc.Name] = true
		for name, f := range sc.Factors {
			if !e.design.HasParameterName(name) {
				return nil, domain.NewError(domain.ErrMissingParameter, "evaluate",
					"scenario %q scales an undeclared parameter", sc.Name).For("", name)
			}
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, domain.NewError(domain.ErrInvalidDesign, "evaluate",
					"scenario %q factor must be finite, got %g", sc.Name, f).For("", name)
			}
		}
	}
	return scenarios, nil
}

// adjust returns the parameter vectors of one technology with deltas added and scenario
// factors applied. Vectors left unchanged are shared with the draws, which are never written.
func adjust(tech *design.Technology, base [][]float64, changes map[domain.ParameterKey]float64, scenario domain.Scenario) [][]float64 {
	params := tech.Parameters()
	out := make([][]float64, len(base))
	for k, p := range params {
		delta := changes[domain.ParameterKey{Technology: tech.Name, Parameter: p.Name, Offset: p.Offset}]
		factor, scaled := scenario.Factors[p.Name]
		if delta == 0 && (!scaled || factor == 1) {
			out[k] = base[k]
			continue
		}
		if !scaled {
			factor = 1
		}
		v := make([]float64, len(base[k]))
		for s, x := range base[k] {
			v[s] = (x + delta) * factor
		}
		out[k] = v
	}
	return out
}

func (e *Evaluator) assemble(draws *Draws, investments domain.Investment, applied map[string][]domain.AppliedTranche, scenarios []domain.Scenario, outcomes [][]*design.Outcome) *domain.Evaluation {
	techs := e.design.Technologies()
	pct := e.config.Percentiles

	result := &domain.Evaluation{
		SampleCount: draws.n,
		Seed:        draws.seed,
		Investments: investments.Clone(),
		Applied:     applied,
	}
	for _, sc := range scenarios {
		result.Scenarios = append(result.Scenarios, sc.Name)
	}
	for _, m := range e.design.Metrics() {
		result.Metrics = append(result.Metrics, m.Name)
	}

	for i, tech := range techs {
		for s, sc := range scenarios {
			out := outcomes[i][s]
			tr := domain.TechnologyResult{
				Technology: tech.Name,
				Category:   tech.Category,
				Scenario:   sc.Name,
				Cost:       Summarize(out.Cost, pct),
				Outputs:    make(map[string]domain.Statistics, len(tech.Outputs)),
			}
			for j, label := range tech.Outputs {
				tr.Outputs[label] = Summarize(out.Output[j], pct)
			}
			for m, info := range tech.Metrics {
				samples := out.Metrics[m]
				for k, v := range samples {
					if math.IsNaN(v) || math.IsInf(v, 0) {
						result.Failures = append(result.Failures, domain.Failure{
							Technology: tech.Name, Scenario: sc.Name, Metric: info.Name, Sample: k,
						})
					}
				}
				tr.Metrics = append(tr.Metrics, domain.MetricResult{
					Metric: info.Name,
					Units:  info.Units,
					Stats:  Summarize(samples, pct),
				})
			}
			result.Technologies = append(result.Technologies, tr)
		}
	}
	result.Excluded = len(result.Failures)
	if result.Excluded > 0 {
		e.config.Logger.Warnf("%d non-finite metric samples excluded from statistics", result.Excluded)
	}

	groups := append(e.design.Categories(), domain.PortfolioTotal)
	for s, sc := range scenarios {
		for _, info := range e.design.Metrics() {
			for _, group := range groups {
				samples, ok := portfolio(techs, outcomes, s, info, group, draws.n)
				if !ok {
					continue
				}
				result.Portfolio = append(result.Portfolio, domain.PortfolioResult{
					Category:  group,
					Scenario:  sc.Name,
					Metric:    info.Name,
					Aggregate: info.Aggregate,
					Stats:     Summarize(samples, pct),
				})
			}
		}
	}
	return result
}

// portfolio aggregates a metric per sample over the technologies of a category, or over
// every technology for the total. It reports false when no technology in the group has
// the metric.
func portfolio(techs []*design.Technology, outcomes [][]*design.Outcome, scenario int, info design.MetricInfo, group string, n int) ([]float64, bool) {
	samples := make([]float64, n)
	members := 0
	for i, tech := range techs {
		if group != domain.PortfolioTotal && tech.Category != group {
			continue
		}
		m := tech.MetricIndex(info.Name)
		if m < 0 {
			continue
		}
		members++
		for k, v := range outcomes[i][scenario].Metrics[m] {
			samples[k] += v
		}
	}
	if members == 0 {
		return nil, false
	}
	if info.Aggregate == domain.AggregateMean {
		for k := range samples {
			samples[k] /= float64(members)
		}
	}
	return samples, true
}

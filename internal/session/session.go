// Package session holds the state of one interactive exploration: a compiled design, its
// evaluator and optimizer, and the current investment vector with its evaluation.
//
// A Session answers the questions a front end asks while a user moves investment sliders:
// what is a metric worth now, what do its samples look like, what happens when an amount
// changes, and what the optimizer recommends. Every method is safe for concurrent use.
package session

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/rgehrsitz/tyche/internal/design"
	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/evaluation"
	"github.com/rgehrsitz/tyche/internal/investment"
	"github.com/rgehrsitz/tyche/internal/optimizer"
)

// Options configures a new session
type Options struct {
	SampleCount int
	Evaluation  evaluation.Config
	Optimizer   optimizer.Options
	// Initial is the starting investment; nil starts every category at half its maximum
	Initial domain.Investment
	Logger  domain.Logger
}

// DefaultOptions returns default session configuration
func DefaultOptions() Options {
	return Options{
		SampleCount: 100,
		Evaluation:  evaluation.DefaultConfig(),
		Optimizer:   optimizer.DefaultOptions(),
		Logger:      domain.NopLogger{},
	}
}

// Session is one exploration of a compiled design
type Session struct {
	id          string
	compiled    *design.Compiled
	allocator   *investment.Allocator
	evaluator   *evaluation.Evaluator
	optimizer   *optimizer.Optimizer
	scenario    domain.Scenario
	sampleCount int
	logger      domain.Logger

	mu         sync.Mutex
	investment domain.Investment
	current    *domain.Evaluation
	ranges     map[string]Range
}

// New compiles the design and creates a session over it
func New(d *domain.Design, opts Options) (*Session, error) {
	compiled, err := design.Compile(d)
	if err != nil {
		return nil, fmt.Errorf("failed to compile design: %w", err)
	}
	return NewFromCompiled(compiled, opts)
}

// NewFromCompiled creates a session over an already compiled design
func NewFromCompiled(compiled *design.Compiled, opts Options) (*Session, error) {
	defaults := DefaultOptions()
	if opts.SampleCount == 0 {
		opts.SampleCount = defaults.SampleCount
	}
	if opts.SampleCount < 1 {
		return nil, domain.NewError(domain.ErrInvalidSampleCount, "session", "sample count must be at least 1, got %d", opts.SampleCount)
	}
	if opts.Logger == nil {
		opts.Logger = domain.NopLogger{}
	}
	if opts.Evaluation.Logger == nil {
		opts.Evaluation.Logger = opts.Logger
	}
	if opts.Optimizer.Logger == nil {
		opts.Optimizer.Logger = opts.Logger
	}

	allocator, err := investment.NewAllocator(compiled, compiled.Tranches())
	if err != nil {
		return nil, fmt.Errorf("failed to validate tranches: %w", err)
	}
	evaluator := evaluation.New(compiled, allocator, opts.Evaluation)

	s := &Session{
		id:          uuid.New().String(),
		compiled:    compiled,
		allocator:   allocator,
		evaluator:   evaluator,
		optimizer:   optimizer.New(evaluator, opts.Optimizer),
		scenario:    domain.BaselineScenario,
		sampleCount: opts.SampleCount,
		logger:      opts.Logger,
		investment:  make(domain.Investment),
	}
	if scenarios := compiled.Scenarios(); len(scenarios) > 0 {
		s.scenario = scenarios[0]
	}

	for _, c := range compiled.Categories() {
		s.investment[c] = allocator.MaxAmount(c) / 2
	}
	for c, v := range opts.Initial {
		if _, err := allocator.Allocate(c, v); err != nil {
			return nil, fmt.Errorf("invalid initial investment: %w", err)
		}
		s.investment[c] = v
	}
	return s, nil
}

// ID returns the unique session identifier
func (s *Session) ID() string { return s.id }

// Design returns the compiled design
func (s *Session) Design() *design.Compiled { return s.compiled }

// Optimizer returns the session optimizer
func (s *Session) Optimizer() *optimizer.Optimizer { return s.optimizer }

// SampleCount returns the number of samples per evaluation
func (s *Session) SampleCount() int { return s.sampleCount }

// Scenario returns the name of the scenario the session evaluates
func (s *Session) Scenario() string { return s.scenario.Name }

// Investment returns a copy of the current investment vector
func (s *Session) Investment() domain.Investment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.investment.Clone()
}

// CategoryInfo describes one investment category
type CategoryInfo struct {
	Name      string  `json:"name"`
	Amount    float64 `json:"amount"`
	MaxAmount float64 `json:"max_amount"`
}

// Categories lists the categories with their current and maximum amounts
func (s *Session) Categories() []CategoryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CategoryInfo
	for _, c := range s.compiled.Categories() {
		out = append(out, CategoryInfo{Name: c, Amount: s.investment[c], MaxAmount: s.allocator.MaxAmount(c)})
	}
	return out
}

// MetricInfo describes one metric
type MetricInfo struct {
	Name      string           `json:"name"`
	Units     string           `json:"units,omitempty"`
	Aggregate domain.Aggregate `json:"aggregate"`
	Sense     domain.Sense     `json:"sense"`
}

// Metrics lists the metrics of the design
func (s *Session) Metrics() []MetricInfo {
	var out []MetricInfo
	for _, m := range s.compiled.Metrics() {
		out = append(out, MetricInfo{Name: m.Name, Units: m.Units, Aggregate: m.Aggregate, Sense: m.Sense})
	}
	return out
}

// Evaluation returns the evaluation of the current investment, computing it when stale
func (s *Session) Evaluation(ctx context.Context) (*domain.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evaluationLocked(ctx)
}

func (s *Session) evaluationLocked(ctx context.Context) (*domain.Evaluation, error) {
	if s.current != nil {
		return s.current, nil
	}
	ev, err := s.evaluator.Evaluate(ctx, s.investment, s.sampleCount, []domain.Scenario{s.scenario})
	if err != nil {
		return nil, err
	}
	s.current = ev
	return ev, nil
}

// Metric returns the mean of the per-sample portfolio total of a metric under the
// current investment
func (s *Session) Metric(ctx context.Context, name string) (float64, error) {
	ev, err := s.Evaluation(ctx)
	if err != nil {
		return 0, err
	}
	total, ok := ev.PortfolioMetric(domain.PortfolioTotal, s.scenario.Name, name)
	if !ok {
		return 0, domain.NewError(domain.ErrMissingParameter, "metric", "unknown metric %q", name)
	}
	return total.Stats.Mean, nil
}

// ApplyInvestment sets the amount of one category and re-evaluates. Amounts above the
// category maximum buy every tranche. The investment is left unchanged when the amount
// is rejected.
func (s *Session) ApplyInvestment(ctx context.Context, category string, amount float64) error {
	if _, err := s.allocator.Allocate(category, amount); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	previous, stale := s.investment[category], s.current
	s.investment[category] = amount
	s.current = nil
	if _, err := s.evaluationLocked(ctx); err != nil {
		s.investment[category] = previous
		s.current = stale
		return fmt.Errorf("failed to evaluate investment: %w", err)
	}
	s.logger.Debugf("session %s: %s set to %g", s.id, category, amount)
	return nil
}

// SetInvestment replaces the whole investment vector and re-evaluates
func (s *Session) SetInvestment(ctx context.Context, inv domain.Investment) error {
	for c, v := range inv {
		if _, err := s.allocator.Allocate(c, v); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	previous, stale := s.investment, s.current
	s.investment = make(domain.Investment, len(s.compiled.Categories()))
	for _, c := range s.compiled.Categories() {
		s.investment[c] = inv[c]
	}
	s.current = nil
	if _, err := s.evaluationLocked(ctx); err != nil {
		s.investment, s.current = previous, stale
		return fmt.Errorf("failed to evaluate investment: %w", err)
	}
	return nil
}

// OptimizeRequest is the front-end form of an optimization. Metric bounds use the
// design's metric names; unset investment bounds default to each category maximum.
type OptimizeRequest struct {
	Target           string                           `json:"target"`
	Sense            domain.Sense                     `json:"sense,omitempty"`
	MetricBounds     map[string]optimizer.MetricBound `json:"metric_bounds,omitempty"`
	InvestmentBounds domain.Investment                `json:"investment_bounds,omitempty"`
	TotalBudget      *float64                         `json:"total_budget,omitempty"`
	Strategy         optimizer.StrategyKind           `json:"strategy,omitempty"`
	Polish           bool                             `json:"polish,omitempty"`
	Statistic        string                           `json:"statistic,omitempty"`
	MaxIterations    int                              `json:"max_iterations,omitempty"`
}

// Response reports an optimization back to the front end
type Response struct {
	Amount    domain.Investment  `json:"amount"`
	Message   string             `json:"message"`
	ExitCode  domain.ExitCode    `json:"exit_code"`
	Objective float64            `json:"objective"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Optimize runs the optimizer on the session draws. Unless cancelled, the amounts found
// become the current investment.
func (s *Session) Optimize(ctx context.Context, req OptimizeRequest) (Response, error) {
	statistic, err := evaluation.ParseStatistic(req.Statistic)
	if err != nil {
		return Response{}, err
	}
	optimum, err := s.optimizer.Optimize(ctx, optimizer.Request{
		Target:           req.Target,
		Sense:            req.Sense,
		MetricBounds:     req.MetricBounds,
		InvestmentBounds: req.InvestmentBounds,
		TotalBudget:      req.TotalBudget,
		Strategy:         req.Strategy,
		Polish:           req.Polish,
		Statistic:        statistic,
		Scenario:         s.scenario.Name,
		SampleCount:      s.sampleCount,
		MaxIterations:    req.MaxIterations,
	})
	if err != nil {
		return Response{}, err
	}

	resp := Response{
		Amount:    optimum.Amounts,
		Message:   optimum.Message,
		ExitCode:  optimum.ExitCode,
		Objective: optimum.Objective,
		Metrics:   optimum.Metrics,
	}
	if optimum.ExitCode == domain.ExitCancelled {
		return resp, nil
	}
	if err := s.SetInvestment(ctx, optimum.Amounts); err != nil {
		return resp, err
	}
	s.logger.Infof("session %s: optimized %s, %s", s.id, req.Target, optimum.ExitCode)
	return resp, nil
}

// Range is the span of a metric between no investment and full investment
type Range struct {
	Metric string  `json:"metric"`
	Units  string  `json:"units,omitempty"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Ranges returns the minimum and maximum of every metric over the zero and the full
// investment vectors, for slider and axis scaling. The result is cached.
func (s *Session) Ranges(ctx context.Context) ([]Range, error) {
	s.mu.Lock()
	cached := s.ranges
	s.mu.Unlock()
	if cached == nil {
		full := make(domain.Investment)
		for _, c := range s.compiled.Categories() {
			full[c] = s.allocator.MaxAmount(c)
		}
		scenarios := []domain.Scenario{s.scenario}
		low, err := s.evaluator.Evaluate(ctx, nil, s.sampleCount, scenarios)
		if err != nil {
			return nil, err
		}
		high, err := s.evaluator.Evaluate(ctx, full, s.sampleCount, scenarios)
		if err != nil {
			return nil, err
		}
		cached = make(map[string]Range)
		for _, m := range s.compiled.Metrics() {
			a, _ := low.PortfolioMetric(domain.PortfolioTotal, s.scenario.Name, m.Name)
			b, _ := high.PortfolioMetric(domain.PortfolioTotal, s.scenario.Name, m.Name)
			cached[m.Name] = Range{
				Metric: m.Name,
				Units:  m.Units,
				Min:    math.Min(a.Stats.Mean, b.Stats.Mean),
				Max:    math.Max(a.Stats.Mean, b.Stats.Mean),
			}
		}
		s.mu.Lock()
		s.ranges = cached
		s.mu.Unlock()
	}

	out := make([]Range, 0, len(cached))
	for _, m := range s.compiled.Metrics() {
		out = append(out, cached[m.Name])
	}
	return out, nil
}

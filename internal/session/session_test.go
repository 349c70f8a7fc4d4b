package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/domain/domaintest"
	"github.com/rgehrsitz/tyche/internal/optimizer"
)

func newTrancheSession(t *testing.T) *Session {
	t.Helper()
	opts := DefaultOptions()
	opts.SampleCount = 10
	opts.Optimizer.MaxIterations = 10
	s, err := New(domaintest.TrancheDesign(), opts)
	require.NoError(t, err)
	return s
}

func TestNewStartsAtHalfInvestment(t *testing.T) {
	s := newTrancheSession(t)

	assert.NotEmpty(t, s.ID())
	assert.Equal(t, domain.Investment{"Widgets": 2500}, s.Investment())
	assert.Equal(t, []CategoryInfo{{Name: "Widgets", Amount: 2500, MaxAmount: 5000}}, s.Categories())

	// 1000 buys the first tranche, 1500 buys three quarters of the second
	output, err := s.Metric(context.Background(), "Output")
	require.NoError(t, err)
	assert.InDelta(t, 187.5, output, 1e-9)
}

func TestNewRejectsInvalidInitialInvestment(t *testing.T) {
	opts := DefaultOptions()
	opts.Initial = domain.Investment{"Widgets": -1}
	_, err := New(domaintest.TrancheDesign(), opts)
	assert.ErrorIs(t, err, domain.ErrInvalidInvestment)

	opts = DefaultOptions()
	opts.SampleCount = -3
	_, err = New(domaintest.TrancheDesign(), opts)
	assert.ErrorIs(t, err, domain.ErrInvalidSampleCount)
}

func TestApplyInvestment(t *testing.T) {
	s := newTrancheSession(t)
	ctx := context.Background()

	require.NoError(t, s.ApplyInvestment(ctx, "Widgets", 3000))
	output, err := s.Metric(ctx, "Output")
	require.NoError(t, err)
	assert.InDelta(t, 200, output, 1e-9)
	capital, err := s.Metric(ctx, "Capital")
	require.NoError(t, err)
	assert.InDelta(t, 800, capital, 1e-9)

	err = s.ApplyInvestment(ctx, "Widgets", -5)
	assert.ErrorIs(t, err, domain.ErrInvalidInvestment)
	err = s.ApplyInvestment(ctx, "Gadgets", 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInvestment)
	assert.Equal(t, 3000.0, s.Investment()["Widgets"])

	// amounts past the category maximum buy every tranche and nothing more
	require.NoError(t, s.ApplyInvestment(ctx, "Widgets", 9000))
	output, err = s.Metric(ctx, "Output")
	require.NoError(t, err)
	assert.InDelta(t, 250, output, 1e-9)
	assert.Equal(t, 9000.0, s.Investment()["Widgets"])
}

func TestMetricUnknown(t *testing.T) {
	s := newTrancheSession(t)
	_, err := s.Metric(context.Background(), "Jobs")
	assert.ErrorIs(t, err, domain.ErrMissingParameter)
}

func TestRanges(t *testing.T) {
	s := newTrancheSession(t)

	ranges, err := s.Ranges(context.Background())
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	assert.Equal(t, "Capital", ranges[0].Metric)
	assert.InDelta(t, 700, ranges[0].Min, 1e-9)
	assert.InDelta(t, 1000, ranges[0].Max, 1e-9)
	assert.Equal(t, "Output", ranges[1].Metric)
	assert.InDelta(t, 100, ranges[1].Min, 1e-9)
	assert.InDelta(t, 250, ranges[1].Max, 1e-9)
}

func TestSeries(t *testing.T) {
	s := newTrancheSession(t)

	series, err := s.Series(context.Background(), "Output", "")
	require.NoError(t, err)
	assert.Equal(t, domain.PortfolioTotal, series.Category)
	assert.Equal(t, "unit", series.Units)
	require.Len(t, series.Samples, 10)
	for _, v := range series.Samples {
		assert.InDelta(t, 187.5, v, 1e-9)
	}
	// zero to the full-investment maximum, padded by a tenth
	assert.InDelta(t, -25, series.Axis.Min, 1e-9)
	assert.InDelta(t, 275, series.Axis.Max, 1e-9)

	byCategory, err := s.Series(context.Background(), "Output", "Widgets")
	require.NoError(t, err)
	assert.Equal(t, series.Samples, byCategory.Samples)

	_, err = s.Series(context.Background(), "Jobs", "")
	assert.ErrorIs(t, err, domain.ErrMissingParameter)
	_, err = s.Series(context.Background(), "Output", "Gadgets")
	assert.ErrorIs(t, err, domain.ErrInvalidInvestment)
}

func TestPlot(t *testing.T) {
	s := newTrancheSession(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		row, col   string
		wantMetric string
		wantCats   []string
	}{
		{name: "by name", row: "Output", col: "", wantMetric: "Output", wantCats: []string{domain.PortfolioTotal}},
		{name: "by position", row: "0", col: "0", wantMetric: "Capital", wantCats: []string{"Widgets"}},
		{name: "all categories", row: "1", col: "all", wantMetric: "Output", wantCats: []string{"Widgets"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := s.Plot(ctx, tt.row, tt.col, 400, 300)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMetric, data.Row)
			assert.Equal(t, 400, data.Width)
			assert.Equal(t, 300, data.Height)
			var cats []string
			for _, series := range data.Series {
				cats = append(cats, series.Category)
			}
			assert.Equal(t, tt.wantCats, cats)
		})
	}

	_, err := s.Plot(ctx, "Output", "", 0, 300)
	assert.Error(t, err)
	_, err = s.Plot(ctx, "7", "", 400, 300)
	assert.ErrorIs(t, err, domain.ErrMissingParameter)
}

func TestOptimizeAppliesAmounts(t *testing.T) {
	s := newTrancheSession(t)
	ctx := context.Background()
	budget := 3000.0

	resp, err := s.Optimize(ctx, OptimizeRequest{Target: "Output", TotalBudget: &budget})
	require.NoError(t, err)
	assert.NotEqual(t, domain.ExitInfeasible, resp.ExitCode)
	assert.NotEmpty(t, resp.Message)
	assert.LessOrEqual(t, resp.Amount["Widgets"], budget+1e-6)
	assert.Greater(t, resp.Objective, 150.0)

	// the optimum becomes the session investment and is evaluated on the same draws
	assert.Equal(t, resp.Amount, s.Investment())
	output, err := s.Metric(ctx, "Output")
	require.NoError(t, err)
	assert.InDelta(t, resp.Metrics["Output"], output, 1e-9)
}

func TestOptimizeErrors(t *testing.T) {
	s := newTrancheSession(t)
	ctx := context.Background()

	_, err := s.Optimize(ctx, OptimizeRequest{Target: "Output", Statistic: "typical"})
	assert.Error(t, err)
	_, err = s.Optimize(ctx, OptimizeRequest{Target: "Jobs"})
	assert.ErrorIs(t, err, domain.ErrMissingParameter)
	_, err = s.Optimize(ctx, OptimizeRequest{Target: "Output", Strategy: optimizer.StrategyKind("hill-climb")})
	assert.Error(t, err)
	assert.Equal(t, domain.Investment{"Widgets": 2500}, s.Investment())
}

func TestConcurrentUse(t *testing.T) {
	s := newTrancheSession(t)
	ctx := context.Background()

	amounts := []float64{0, 1000, 3000, 5000}
	var wg sync.WaitGroup
	for _, amount := range amounts {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.ApplyInvestment(ctx, "Widgets", amount))
		}()
		go func() {
			defer wg.Done()
			_, err := s.Metric(ctx, "Output")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Contains(t, amounts, s.Investment()["Widgets"])
}

func TestStore(t *testing.T) {
	store := NewStore(func() (*Session, error) {
		return New(domaintest.TrancheDesign(), Options{SampleCount: 5})
	})

	def, err := store.Get("")
	require.NoError(t, err)
	again, err := store.Default()
	require.NoError(t, err)
	assert.Same(t, def, again)

	created, err := store.Create()
	require.NoError(t, err)
	assert.NotEqual(t, def.ID(), created.ID())
	got, err := store.Get(created.ID())
	require.NoError(t, err)
	assert.Same(t, created, got)
	assert.Len(t, store.IDs(), 2)

	assert.True(t, store.Delete(def.ID()))
	assert.False(t, store.Delete(def.ID()))
	_, err = store.Get(def.ID())
	assert.Error(t, err)
	replacement, err := store.Default()
	require.NoError(t, err)
	assert.NotEqual(t, def.ID(), replacement.ID())
}

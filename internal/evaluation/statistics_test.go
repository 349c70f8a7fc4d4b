package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeConstantEnsembleIsExact(t *testing.T) {
	samples := []float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}
	s := Summarize(samples, DefaultPercentiles)

	assert.Equal(t, 7, s.Count)
	assert.Equal(t, 0.1, s.Mean)
	assert.Equal(t, 0.0, s.StdDev)
	for _, p := range s.Percentiles {
		assert.Equal(t, 0.1, p.Value, "p%g", p.P)
	}
}

func TestSummarizeSingleSample(t *testing.T) {
	s := Summarize([]float64{42}, DefaultPercentiles)
	assert.Equal(t, 42.0, s.Mean)
	assert.Equal(t, 0.0, s.StdDev)
	assert.Equal(t, 42.0, s.Min)
	assert.Equal(t, 42.0, s.Max)
}

func TestSummarizeOrderIndependent(t *testing.T) {
	a := Summarize([]float64{3, 1, 4, 1, 5, 9, 2, 6}, DefaultPercentiles)
	b := Summarize([]float64{9, 6, 5, 4, 3, 2, 1, 1}, DefaultPercentiles)

	assert.Equal(t, a.Mean, b.Mean)
	assert.Equal(t, a.StdDev, b.StdDev)
	assert.Equal(t, a.Percentiles, b.Percentiles)
	assert.Equal(t, 1.0, a.Min)
	assert.Equal(t, 9.0, a.Max)
	assert.InDelta(t, 31.0/8, a.Mean, 1e-12)

	p10, _ := a.Percentile(10)
	p50, _ := a.Percentile(50)
	p90, _ := a.Percentile(90)
	assert.LessOrEqual(t, a.Min, p10)
	assert.LessOrEqual(t, p10, p50)
	assert.LessOrEqual(t, p50, p90)
	assert.LessOrEqual(t, p90, a.Max)
}

func TestSummarizePercentileValues(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		want    []float64 // p10, p50, p90
	}{
		{"odd count", []float64{3, 1, 2}, []float64{1.2, 2, 2.8}},
		{"even count", []float64{4, 1, 3, 2}, []float64{1.3, 2.5, 3.7}},
		{"two samples", []float64{10, 0}, []float64{1, 5, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize(tt.samples, DefaultPercentiles)
			require.Len(t, s.Percentiles, 3)
			for i, p := range s.Percentiles {
				assert.InDelta(t, tt.want[i], p.Value, 1e-12, "p%g", p.P)
			}
		})
	}

	s := Summarize([]float64{1, 2, 3, 4}, nil)
	assert.InDelta(t, 2.5, Median().Of(s), 1e-12)
	assert.InDelta(t, 1.75, Percentile(25).Of(s), 1e-12)
	assert.Equal(t, 1.0, Percentile(0).Of(s))
	assert.Equal(t, 4.0, Percentile(100).Of(s))
}

func TestSummarizeExcludesNonFinite(t *testing.T) {
	s := Summarize([]float64{1, math.NaN(), 3, math.Inf(1)}, nil)
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 2, s.Excluded)
	assert.Equal(t, 2.0, s.Mean)
	require.Len(t, s.Samples, 4)
	assert.True(t, math.IsNaN(s.Samples[1]))

	empty := Summarize([]float64{math.NaN()}, DefaultPercentiles)
	assert.Zero(t, empty.Count)
	assert.True(t, math.IsNaN(Mean().Of(empty)))
}

func TestStatisticOf(t *testing.T) {
	s := Summarize([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, []float64{50})

	assert.Equal(t, s.Mean, Mean().Of(s))
	median, _ := s.Percentile(50)
	assert.Equal(t, median, Median().Of(s))

	p75 := Percentile(75).Of(s)
	assert.Greater(t, p75, median)
	assert.LessOrEqual(t, p75, 10.0)
}

func TestParseStatistic(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{in: "", want: "mean"},
		{in: "Mean", want: "mean"},
		{in: "median", want: "median"},
		{in: "p50", want: "median"},
		{in: " p90 ", want: "p90"},
		{in: "p101", err: true},
		{in: "mode", err: true},
	}
	for _, tt := range tests {
		st, err := ParseStatistic(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, st.String())
	}
}

package evaluation

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/rgehrsitz/tyche/internal/domain"
)

// DefaultPercentiles are reported when the configuration names none
var DefaultPercentiles = []float64{10, 50, 90}

// Summarize computes statistics over the finite values of samples.
// Statistics are computed on a sorted copy, so they do not depend on sample order.
// A constant ensemble reports its value exactly with zero deviation.
func Summarize(samples []float64, percentiles []float64) domain.Statistics {
	finite := make([]float64, 0, len(samples))
	for _, v := range samples {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	sort.Float64s(finite)

	s := domain.Statistics{
		Count:       len(finite),
		Excluded:    len(samples) - len(finite),
		Percentiles: make([]domain.Percentile, len(percentiles)),
		Samples:     append([]float64(nil), samples...),
	}
	for i, p := range percentiles {
		s.Percentiles[i].P = p
	}
	if len(finite) == 0 {
		return s
	}

	s.Min = finite[0]
	s.Max = finite[len(finite)-1]
	if s.Min == s.Max {
		s.Mean = s.Min
		for i := range s.Percentiles {
			s.Percentiles[i].Value = s.Min
		}
		return s
	}

	s.Mean = stat.Mean(finite, nil)
	if len(finite) > 1 {
		s.StdDev = stat.StdDev(finite, nil)
	}
	for i, p := range percentiles {
		s.Percentiles[i].Value = quantile(p, finite)
	}
	return s
}

// quantile interpolates linearly between the order statistics of sorted data at
// rank (n-1)*p/100, so the median of an even count is the midpoint of the middle pair
func quantile(p float64, sorted []float64) float64 {
	n := len(sorted)
	h := float64(n-1) * math.Min(100, math.Max(0, p)) / 100
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// Statistic reduces a sample ensemble to the scalar the optimizer works with.
// The zero value selects the mean.
type Statistic struct {
	percentile bool
	p          float64
}

// Mean selects the ensemble mean
func Mean() Statistic { return Statistic{} }

// Median selects the 50th percentile
func Median() Statistic { return Percentile(50) }

// Percentile selects the p-th percentile, p in [0, 100]
func Percentile(p float64) Statistic { return Statistic{percentile: true, p: p} }

// ParseStatistic accepts "mean", "median" or "pNN" such as "p90"
func ParseStatistic(s string) (Statistic, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "", "mean":
		return Mean(), nil
	case "median":
		return Median(), nil
	}
	v, err := strconv.ParseFloat(strings.TrimPrefix(name, "p"), 64)
	if err != nil || v < 0 || v > 100 {
		return Statistic{}, fmt.Errorf("statistic must be mean, median or p0..p100, got %q", s)
	}
	return Percentile(v), nil
}

// IsMean reports whether the statistic is the mean
func (st Statistic) IsMean() bool { return !st.percentile }

func (st Statistic) String() string {
	switch {
	case st.IsMean():
		return "mean"
	case st.p == 50:
		return "median"
	}
	return "p" + strconv.FormatFloat(st.p, 'g', -1, 64)
}

// Of evaluates the statistic. Percentiles not precomputed are taken from the samples.
// An ensemble without finite samples yields NaN.
func (st Statistic) Of(s domain.Statistics) float64 {
	if s.Count == 0 {
		return math.NaN()
	}
	if st.IsMean() {
		return s.Mean
	}
	if v, ok := s.Percentile(st.p); ok {
		return v
	}
	if s.Min == s.Max {
		return s.Min
	}
	finite := make([]float64, 0, s.Count)
	for _, v := range s.Samples {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	sort.Float64s(finite)
	return quantile(st.p, finite)
}

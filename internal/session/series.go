package session

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rgehrsitz/tyche/internal/domain"
)

// AllCategories selects one series per category in Plot
const AllCategories = "all"

// Series is the sample ensemble of one metric, ready for an external plot
type Series struct {
	Metric   string            `json:"metric"`
	Category string            `json:"category"`
	Units    string            `json:"units,omitempty"`
	Samples  []float64         `json:"samples"`
	Stats    domain.Statistics `json:"stats"`
	Axis     Range             `json:"axis"`
}

// Series returns the per-sample values of a metric for a category, or for the portfolio
// total when category is empty. The axis spans the metric range, zero and a tenth of
// padding on either side.
func (s *Session) Series(ctx context.Context, metric, category string) (Series, error) {
	if category == "" {
		category = domain.PortfolioTotal
	}
	info, ok := s.compiled.Metric(metric)
	if !ok {
		return Series{}, domain.NewError(domain.ErrMissingParameter, "series", "unknown metric %q", metric)
	}
	if category != domain.PortfolioTotal && !s.compiled.HasCategory(category) {
		return Series{}, domain.NewError(domain.ErrInvalidInvestment, "series", "unknown category %q", category)
	}
	ev, err := s.Evaluation(ctx)
	if err != nil {
		return Series{}, err
	}
	ranges, err := s.Ranges(ctx)
	if err != nil {
		return Series{}, err
	}

	result, ok := ev.PortfolioMetric(category, s.scenario.Name, metric)
	if !ok {
		return Series{}, fmt.Errorf("series: no technology of %q reports %q", category, metric)
	}
	var span Range
	for _, r := range ranges {
		if r.Metric == metric {
			span = r
		}
	}
	return Series{
		Metric:   metric,
		Category: category,
		Units:    info.Units,
		Samples:  append([]float64(nil), result.Stats.Samples...),
		Stats:    result.Stats,
		Axis:     axis(metric, info.Units, span, result.Stats),
	}, nil
}

// axis widens the metric range to include zero and the observed samples, then pads it
func axis(metric, units string, span Range, stats domain.Statistics) Range {
	lo, hi := math.Min(0, span.Min), math.Max(0, span.Max)
	if stats.Count > 0 {
		lo, hi = math.Min(lo, stats.Min), math.Max(hi, stats.Max)
	}
	pad := (hi - lo) / 10
	if pad == 0 {
		pad = 1
	}
	return Range{Metric: metric, Units: units, Min: lo - pad, Max: hi + pad}
}

// PlotData carries the series behind one cell of a plot grid and the requested geometry.
// Rendering is left to the caller.
type PlotData struct {
	Row    string   `json:"row"`
	Column string   `json:"column"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Series []Series `json:"series"`
}

// Plot resolves a grid cell to its series. The row selects a metric and the column a
// category, each by name or by zero-based position; column "all" returns one series per
// category and an empty or "total" column the portfolio total.
func (s *Session) Plot(ctx context.Context, row, col string, width, height int) (PlotData, error) {
	if width <= 0 || height <= 0 {
		return PlotData{}, fmt.Errorf("plot: width and height must be positive, got %dx%d", width, height)
	}
	metric, err := pick(row, metricNames(s))
	if err != nil {
		return PlotData{}, fmt.Errorf("plot row: %w", err)
	}

	var categories []string
	switch strings.ToLower(col) {
	case AllCategories:
		categories = s.compiled.Categories()
	case "", domain.PortfolioTotal:
		categories = []string{domain.PortfolioTotal}
	default:
		c, err := pick(col, s.compiled.Categories())
		if err != nil {
			return PlotData{}, fmt.Errorf("plot column: %w", err)
		}
		categories = []string{c}
	}

	data := PlotData{Row: metric, Column: col, Width: width, Height: height}
	for _, c := range categories {
		series, err := s.Series(ctx, metric, c)
		if err != nil {
			return PlotData{}, err
		}
		data.Series = append(data.Series, series)
	}
	return data, nil
}

func metricNames(s *Session) []string {
	var names []string
	for _, m := range s.compiled.Metrics() {
		names = append(names, m.Name)
	}
	return names
}

// pick resolves a selector given by name or by position
func pick(selector string, names []string) (string, error) {
	for _, n := range names {
		if n == selector {
			return n, nil
		}
	}
	if i, err := strconv.Atoi(selector); err == nil && i >= 0 && i < len(names) {
		return names[i], nil
	}
	return "", domain.NewError(domain.ErrMissingParameter, "plot", "no entry %q among %v", selector, names)
}

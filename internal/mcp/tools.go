package mcp

import (
	"context"
	"math"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/optimizer"
	"github.com/rgehrsitz/tyche/internal/session"
)

// SessionArg selects the session a tool acts on; empty means the shared default
type SessionArg struct {
	Session string `json:"session,omitempty" jsonschema:"session id returned by new_session, omit for the shared session"`
}

type NewSessionOutput struct {
	SessionID  string                 `json:"session_id"`
	Scenario   string                 `json:"scenario"`
	Categories []session.CategoryInfo `json:"categories"`
}

type CloseSessionInput struct {
	Session string `json:"session" jsonschema:"session id to close"`
}

type CloseSessionOutput struct {
	Closed bool `json:"closed"`
}

type ListMetricsOutput struct {
	SessionID  string                 `json:"session_id"`
	Scenario   string                 `json:"scenario"`
	Metrics    []session.MetricInfo   `json:"metrics"`
	Categories []session.CategoryInfo `json:"categories"`
}

type GetMetricInput struct {
	Session string `json:"session,omitempty" jsonschema:"session id, omit for the shared session"`
	Metric  string `json:"metric" jsonschema:"metric name as listed by list_metrics"`
}

// GetMetricOutput reports a metric mean; Defined is false when every sample was excluded
type GetMetricOutput struct {
	Metric  string  `json:"metric"`
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
}

type GetSeriesInput struct {
	Session  string `json:"session,omitempty" jsonschema:"session id, omit for the shared session"`
	Metric   string `json:"metric" jsonschema:"metric name"`
	Category string `json:"category,omitempty" jsonschema:"investment category, omit for the portfolio total"`
}

// SeriesOutput is a series with excluded samples dropped
type SeriesOutput struct {
	Metric   string         `json:"metric"`
	Category string         `json:"category"`
	Units    string         `json:"units,omitempty"`
	Samples  []float64      `json:"samples"`
	Excluded int            `json:"excluded"`
	Mean     float64        `json:"mean"`
	StdDev   float64        `json:"std_dev"`
	Min      float64        `json:"min"`
	Max      float64        `json:"max"`
	Axis     session.Range  `json:"axis"`
	Quantile []QuantileInfo `json:"percentiles"`
}

type QuantileInfo struct {
	P     float64 `json:"p"`
	Value float64 `json:"value"`
}

type PlotInput struct {
	Session string `json:"session,omitempty" jsonschema:"session id, omit for the shared session"`
	Row     string `json:"row" jsonschema:"metric name or zero-based metric index"`
	Column  string `json:"column,omitempty" jsonschema:"category name or index, 'all' for every category, omit for the total"`
	Width   int    `json:"width" jsonschema:"plot width in pixels"`
	Height  int    `json:"height" jsonschema:"plot height in pixels"`
}

type PlotOutput struct {
	Row    string         `json:"row"`
	Column string         `json:"column"`
	Width  int            `json:"width"`
	Height int            `json:"height"`
	Series []SeriesOutput `json:"series"`
}

type ApplyInvestmentInput struct {
	Session  string  `json:"session,omitempty" jsonschema:"session id, omit for the shared session"`
	Category string  `json:"category" jsonschema:"investment category"`
	Amount   float64 `json:"amount" jsonschema:"non-negative amount to invest; amounts above the category maximum buy every tranche"`
}

type ApplyInvestmentOutput struct {
	Investment domain.Investment  `json:"investment"`
	Metrics    map[string]float64 `json:"metrics"`
}

type OptimizeInput struct {
	Session          string                           `json:"session,omitempty" jsonschema:"session id, omit for the shared session"`
	Target           string                           `json:"target" jsonschema:"metric to optimize"`
	Sense            string                           `json:"sense,omitempty" jsonschema:"max or min, defaults to the metric's declared sense"`
	MetricBounds     map[string]optimizer.MetricBound `json:"metric_bounds,omitempty" jsonschema:"limits on other metrics keyed by metric name"`
	InvestmentBounds map[string]float64               `json:"investment_bounds,omitempty" jsonschema:"maximum amount per category"`
	TotalBudget      *float64                         `json:"total_budget,omitempty" jsonschema:"cap on the summed investment"`
	Strategy         string                           `json:"strategy,omitempty" jsonschema:"global-stochastic, global-deterministic or local-gradient"`
	Polish           bool                             `json:"polish,omitempty" jsonschema:"refine the global result with the local-gradient strategy"`
	Statistic        string                           `json:"statistic,omitempty" jsonschema:"mean, or a percentile such as p90"`
	MaxIterations    int                              `json:"max_iterations,omitempty" jsonschema:"iteration limit"`
}

type OptimizeOutput struct {
	Amount    map[string]float64 `json:"amount"`
	Message   string             `json:"message"`
	ExitCode  string             `json:"exit_code"`
	Objective float64            `json:"objective"`
	Metrics   map[string]float64 `json:"metrics"`
}

type MetricRangesOutput struct {
	Ranges []session.Range `json:"ranges"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "new_session",
		Description: "Start an independent exploration session with its own investment vector. Returns the session id to pass to the other tools.",
	}, s.newSession)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "close_session",
		Description: "Close a session started with new_session.",
	}, s.closeSession)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_metrics",
		Description: "List the metrics and investment categories of the design with the current amounts and category maxima.",
	}, s.listMetrics)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_metric",
		Description: "Mean of the portfolio total of a metric under the current investment.",
	}, s.getMetric)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_series",
		Description: "Per-sample values, statistics and axis range of a metric for one category or the portfolio total.",
	}, s.getSeries)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "plot",
		Description: "Resolve a plot grid cell (metric row, category column) to the series to draw.",
	}, s.plot)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "apply_investment",
		Description: "Set the investment in one category and re-evaluate the portfolio.",
	}, s.applyInvestment)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "optimize",
		Description: "Optimize one metric subject to limits on the others, the category maxima and an optional total budget. The amounts found become the session investment.",
	}, s.optimize)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "metric_ranges",
		Description: "Minimum and maximum of every metric between no investment and full investment.",
	}, s.metricRanges)
}

func (s *Server) newSession(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, NewSessionOutput, error) {
	sess, err := s.store.Create()
	if err != nil {
		return nil, NewSessionOutput{}, err
	}
	s.logger.Infof("mcp: created session %s", sess.ID())
	return nil, NewSessionOutput{SessionID: sess.ID(), Scenario: sess.Scenario(), Categories: sess.Categories()}, nil
}

func (s *Server) closeSession(ctx context.Context, _ *mcp.CallToolRequest, in CloseSessionInput) (*mcp.CallToolResult, CloseSessionOutput, error) {
	return nil, CloseSessionOutput{Closed: s.store.Delete(in.Session)}, nil
}

func (s *Server) listMetrics(ctx context.Context, _ *mcp.CallToolRequest, in SessionArg) (*mcp.CallToolResult, ListMetricsOutput, error) {
	sess, err := s.session(in.Session)
	if err != nil {
		return nil, ListMetricsOutput{}, err
	}
	return nil, ListMetricsOutput{
		SessionID:  sess.ID(),
		Scenario:   sess.Scenario(),
		Metrics:    sess.Metrics(),
		Categories: sess.Categories(),
	}, nil
}

func (s *Server) getMetric(ctx context.Context, _ *mcp.CallToolRequest, in GetMetricInput) (*mcp.CallToolResult, GetMetricOutput, error) {
	sess, err := s.session(in.Session)
	if err != nil {
		return nil, GetMetricOutput{}, err
	}
	v, err := sess.Metric(ctx, in.Metric)
	if err != nil {
		return nil, GetMetricOutput{}, err
	}
	return nil, GetMetricOutput{Metric: in.Metric, Value: finite(v), Defined: !math.IsNaN(v)}, nil
}

func (s *Server) getSeries(ctx context.Context, _ *mcp.CallToolRequest, in GetSeriesInput) (*mcp.CallToolResult, SeriesOutput, error) {
	sess, err := s.session(in.Session)
	if err != nil {
		return nil, SeriesOutput{}, err
	}
	series, err := sess.Series(ctx, in.Metric, in.Category)
	if err != nil {
		return nil, SeriesOutput{}, err
	}
	return nil, seriesOutput(series), nil
}

func (s *Server) plot(ctx context.Context, _ *mcp.CallToolRequest, in PlotInput) (*mcp.CallToolResult, PlotOutput, error) {
	sess, err := s.session(in.Session)
	if err != nil {
		return nil, PlotOutput{}, err
	}
	data, err := sess.Plot(ctx, in.Row, in.Column, in.Width, in.Height)
	if err != nil {
		return nil, PlotOutput{}, err
	}
	out := PlotOutput{Row: data.Row, Column: data.Column, Width: data.Width, Height: data.Height}
	for _, series := range data.Series {
		out.Series = append(out.Series, seriesOutput(series))
	}
	return nil, out, nil
}

func (s *Server) applyInvestment(ctx context.Context, _ *mcp.CallToolRequest, in ApplyInvestmentInput) (*mcp.CallToolResult, ApplyInvestmentOutput, error) {
	sess, err := s.session(in.Session)
	if err != nil {
		return nil, ApplyInvestmentOutput{}, err
	}
	if err := sess.ApplyInvestment(ctx, in.Category, in.Amount); err != nil {
		return nil, ApplyInvestmentOutput{}, err
	}
	out := ApplyInvestmentOutput{Investment: sess.Investment(), Metrics: make(map[string]float64)}
	for _, m := range sess.Metrics() {
		v, err := sess.Metric(ctx, m.Name)
		if err != nil {
			return nil, ApplyInvestmentOutput{}, err
		}
		out.Metrics[m.Name] = finite(v)
	}
	return nil, out, nil
}

func (s *Server) optimize(ctx context.Context, _ *mcp.CallToolRequest, in OptimizeInput) (*mcp.CallToolResult, OptimizeOutput, error) {
	sess, err := s.session(in.Session)
	if err != nil {
		return nil, OptimizeOutput{}, err
	}
	resp, err := sess.Optimize(ctx, session.OptimizeRequest{
		Target:           in.Target,
		Sense:            domain.Sense(in.Sense),
		MetricBounds:     in.MetricBounds,
		InvestmentBounds: in.InvestmentBounds,
		TotalBudget:      in.TotalBudget,
		Strategy:         optimizer.StrategyKind(in.Strategy),
		Polish:           in.Polish,
		Statistic:        in.Statistic,
		MaxIterations:    in.MaxIterations,
	})
	if err != nil {
		return nil, OptimizeOutput{}, err
	}
	s.logger.Infof("mcp: session %s optimize %s: %s", sess.ID(), in.Target, resp.ExitCode)
	return nil, OptimizeOutput{
		Amount:    resp.Amount,
		Message:   resp.Message,
		ExitCode:  string(resp.ExitCode),
		Objective: finite(resp.Objective),
		Metrics:   finiteMap(resp.Metrics),
	}, nil
}

func (s *Server) metricRanges(ctx context.Context, _ *mcp.CallToolRequest, in SessionArg) (*mcp.CallToolResult, MetricRangesOutput, error) {
	sess, err := s.session(in.Session)
	if err != nil {
		return nil, MetricRangesOutput{}, err
	}
	ranges, err := sess.Ranges(ctx)
	if err != nil {
		return nil, MetricRangesOutput{}, err
	}
	for i := range ranges {
		ranges[i].Min, ranges[i].Max = finite(ranges[i].Min), finite(ranges[i].Max)
	}
	return nil, MetricRangesOutput{Ranges: ranges}, nil
}

func seriesOutput(series session.Series) SeriesOutput {
	out := SeriesOutput{
		Metric:   series.Metric,
		Category: series.Category,
		Units:    series.Units,
		Samples:  make([]float64, 0, len(series.Samples)),
		Excluded: series.Stats.Excluded,
		Mean:     finite(series.Stats.Mean),
		StdDev:   finite(series.Stats.StdDev),
		Min:      finite(series.Stats.Min),
		Max:      finite(series.Stats.Max),
		Axis:     series.Axis,
	}
	for _, v := range series.Samples {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out.Samples = append(out.Samples, v)
		}
	}
	for _, q := range series.Stats.Percentiles {
		out.Quantile = append(out.Quantile, QuantileInfo{P: q.P, Value: finite(q.Value)})
	}
	return out
}

// finite maps values JSON cannot carry to zero
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func finiteMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = finite(v)
	}
	return out
}

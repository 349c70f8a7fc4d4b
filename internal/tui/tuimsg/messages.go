// Package tuimsg holds the messages exchanged between the explorer and its scenes.
package tuimsg

import (
	"github.com/rgehrsitz/tyche/internal/session"
)

// SessionReadyMsg carries what the scenes need once the session has evaluated its
// starting investment
type SessionReadyMsg struct {
	Categories []session.CategoryInfo
	Metrics    []session.MetricInfo
	Ranges     []session.Range
	Values     map[string]float64
}

// ErrorMsg displays an error to the user
type ErrorMsg struct {
	Err error
}

// InvestmentChangedMsg asks for a category amount to be applied
type InvestmentChangedMsg struct {
	Category string
	Amount   float64
}

// EvaluationCompleteMsg reports the metric means after an investment change
type EvaluationCompleteMsg struct {
	Categories []session.CategoryInfo
	Values     map[string]float64
	Err        error
}

// SeriesRequestedMsg asks for the sample series of a metric
type SeriesRequestedMsg struct {
	Metric string
}

// SeriesLoadedMsg carries the per-category series of a metric
type SeriesLoadedMsg struct {
	Metric string
	Plot   session.PlotData
	Err    error
}

// OptimizationStartedMsg asks for an optimization to run
type OptimizationStartedMsg struct {
	Request session.OptimizeRequest
}

// OptimizationCompleteMsg reports an optimization; the session investment has moved
// to the amounts found unless it was cancelled
type OptimizationCompleteMsg struct {
	Target   string
	Response session.Response
	Err      error
}

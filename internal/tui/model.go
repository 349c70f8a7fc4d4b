// Package tui is the terminal explorer: investment sliders, outcome distributions and
// the optimizer over one session.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rgehrsitz/tyche/internal/session"
	"github.com/rgehrsitz/tyche/internal/tui/components"
	"github.com/rgehrsitz/tyche/internal/tui/scenes"
	"github.com/rgehrsitz/tyche/internal/tui/tuimsg"
)

// Model represents the entire application state
type Model struct {
	// Navigation
	currentScene  Scene
	previousScene Scene

	// Terminal dimensions
	width  int
	height int

	ctx     context.Context
	session *session.Session
	ready   bool

	// cancel stops the running optimization, nil when none runs
	cancel context.CancelFunc
	busy   *components.Busy

	homeModel         *scenes.HomeModel
	investModel       *scenes.InvestModel
	distributionModel *scenes.DistributionModel
	optimizeModel     *scenes.OptimizeModel

	// Error state
	err error
}

// NewModel creates a new explorer over the session
func NewModel(ctx context.Context, s *session.Session) Model {
	home := scenes.NewHomeModel(s.Design().Name(), s.Scenario())
	return Model{
		currentScene:      SceneHome,
		ctx:               ctx,
		session:           s,
		busy:              components.NewBusy(),
		homeModel:         home,
		investModel:       scenes.NewInvestModel(home),
		distributionModel: scenes.NewDistributionModel(),
		optimizeModel:     scenes.NewOptimizeModel(),
		width:             80,
		height:            24,
	}
}

// Init evaluates the starting investment (required by tea.Model interface)
func (m Model) Init() tea.Cmd {
	return loadSessionCmd(m.ctx, m.session)
}

// loadSessionCmd evaluates the session and its metric ranges
func loadSessionCmd(ctx context.Context, s *session.Session) tea.Cmd {
	return func() tea.Msg {
		ranges, err := s.Ranges(ctx)
		if err != nil {
			return tuimsg.ErrorMsg{Err: err}
		}
		values, err := metricValues(ctx, s)
		if err != nil {
			return tuimsg.ErrorMsg{Err: err}
		}
		return tuimsg.SessionReadyMsg{
			Categories: s.Categories(),
			Metrics:    s.Metrics(),
			Ranges:     ranges,
			Values:     values,
		}
	}
}

// applyInvestmentCmd applies one category amount and re-evaluates
func applyInvestmentCmd(ctx context.Context, s *session.Session, category string, amount float64) tea.Cmd {
	return func() tea.Msg {
		err := s.ApplyInvestment(ctx, category, amount)
		values, evalErr := metricValues(ctx, s)
		if err == nil {
			err = evalErr
		}
		return tuimsg.EvaluationCompleteMsg{Categories: s.Categories(), Values: values, Err: err}
	}
}

// loadSeriesCmd fetches one series per category for a metric
func loadSeriesCmd(ctx context.Context, s *session.Session, metric string, bins, height int) tea.Cmd {
	return func() tea.Msg {
		plot, err := s.Plot(ctx, metric, session.AllCategories, bins, height)
		return tuimsg.SeriesLoadedMsg{Metric: metric, Plot: plot, Err: err}
	}
}

// optimizeCmd runs the optimizer; the returned cancel func stops it
func optimizeCmd(ctx context.Context, s *session.Session, req session.OptimizeRequest) (tea.Cmd, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	return func() tea.Msg {
		defer cancel()
		resp, err := s.Optimize(ctx, req)
		return tuimsg.OptimizationCompleteMsg{Target: req.Target, Response: resp, Err: err}
	}, cancel
}

func metricValues(ctx context.Context, s *session.Session) (map[string]float64, error) {
	values := make(map[string]float64)
	for _, info := range s.Metrics() {
		v, err := s.Metric(ctx, info.Name)
		if err != nil {
			return nil, err
		}
		values[info.Name] = v
	}
	return values, nil
}

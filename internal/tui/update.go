package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rgehrsitz/tyche/internal/tui/scenes"
	"github.com/rgehrsitz/tyche/internal/tui/tuimsg"
)

// Update handles all messages and updates the model state
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.homeModel.SetSize(msg.Width, msg.Height)
		m.investModel.SetSize(msg.Width, msg.Height)
		m.distributionModel.SetSize(msg.Width, msg.Height)
		m.optimizeModel.SetSize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		return m, m.busy.Update(msg)

	case NavigateMsg:
		m.previousScene = m.currentScene
		m.currentScene = msg.Scene
		if msg.Scene == SceneDistribution {
			return m, m.distributionModel.Refresh()
		}
		return m, nil

	case tuimsg.ErrorMsg:
		m.err = msg.Err
		return m, nil

	case tuimsg.SessionReadyMsg:
		m.ready = true
		m.homeModel.SetMetrics(msg.Metrics, msg.Ranges)
		m.homeModel.SetState(msg.Categories, msg.Values)
		m.investModel.SetCategories(msg.Categories)
		m.distributionModel.SetMetrics(msg.Metrics)
		m.optimizeModel.SetMetrics(msg.Metrics)
		return m, nil

	case tuimsg.InvestmentChangedMsg:
		return m, applyInvestmentCmd(m.ctx, m.session, msg.Category, msg.Amount)

	case tuimsg.EvaluationCompleteMsg:
		if msg.Err != nil {
			m.err = msg.Err
		}
		if msg.Values != nil {
			m.homeModel.SetState(msg.Categories, msg.Values)
		}
		m.investModel.SetCategories(msg.Categories)
		m.distributionModel.Invalidate()
		return m, nil

	case tuimsg.SeriesRequestedMsg:
		bins, height := m.distributionModel.PlotSize()
		return m, loadSeriesCmd(m.ctx, m.session, msg.Metric, bins, height)

	case tuimsg.SeriesLoadedMsg:
		m.distributionModel.SetPlot(msg)
		return m, nil

	case tuimsg.OptimizationStartedMsg:
		if m.cancel != nil {
			return m, nil
		}
		cmd, cancel := optimizeCmd(m.ctx, m.session, msg.Request)
		m.cancel = cancel
		return m, tea.Batch(cmd, m.busy.Start("Optimizing "+msg.Request.Target))

	case tuimsg.OptimizationCompleteMsg:
		m.cancel = nil
		m.busy.Stop()
		m.optimizeModel.SetResult(msg)
		m.distributionModel.Invalidate()
		return m, loadSessionCmd(m.ctx, m.session)
	}

	return m.updateCurrentScene(msg)
}

// handleKeyPress processes keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.err != nil {
		// any key dismisses the error
		m.err = nil
		return m, nil
	}

	// the budget field takes every key while it is edited
	if m.currentScene == SceneOptimize && m.optimizeModel.Mode() == scenes.ModeSetBudget {
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		return m.updateCurrentScene(msg)
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m.quit()

	case "x":
		if m.cancel != nil {
			m.cancel()
			return m, nil
		}

	case "?":
		return m, navigate(SceneHelp)

	case "esc":
		if m.currentScene != SceneHome {
			target := SceneHome
			if m.previousScene != m.currentScene {
				target = m.previousScene
			}
			return m, navigate(target)
		}

	case "h":
		if m.currentScene != SceneHome {
			return m, navigate(SceneHome)
		}

	case "i":
		if m.currentScene != SceneInvest {
			return m, navigate(SceneInvest)
		}

	case "d":
		if m.currentScene != SceneDistribution {
			return m, navigate(SceneDistribution)
		}

	case "o":
		if m.currentScene != SceneOptimize {
			return m, navigate(SceneOptimize)
		}
	}

	return m.updateCurrentScene(msg)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
	}
	return m, tea.Quit
}

func navigate(scene Scene) tea.Cmd {
	return func() tea.Msg { return NavigateMsg{Scene: scene} }
}

// updateCurrentScene delegates updates to the current scene's model
func (m Model) updateCurrentScene(msg tea.Msg) (tea.Model, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	switch m.currentScene {
	case SceneHome:
		m.homeModel, cmd = m.homeModel.Update(msg)
	case SceneInvest:
		m.investModel, cmd = m.investModel.Update(msg)
	case SceneDistribution:
		m.distributionModel, cmd = m.distributionModel.Update(msg)
	case SceneOptimize:
		if m.cancel != nil {
			return m, nil
		}
		m.optimizeModel, cmd = m.optimizeModel.Update(msg)
	}
	return m, cmd
}

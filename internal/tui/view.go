package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rgehrsitz/tyche/internal/tui/tuistyles"
)

// View renders the current state of the application
func (m Model) View() string {
	if m.err != nil {
		return m.renderApp(m.renderError())
	}

	var content string
	switch m.currentScene {
	case SceneHome:
		content = m.homeModel.View()
	case SceneInvest:
		content = m.investModel.View()
	case SceneDistribution:
		content = m.distributionModel.View()
	case SceneOptimize:
		content = m.optimizeModel.View()
	case SceneHelp:
		content = renderHelp()
	default:
		content = "Unknown scene"
	}

	if busy := m.busy.Render(); busy != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, content, busy)
	}
	return m.renderApp(content)
}

// renderApp wraps content with title bar and status bar
func (m Model) renderApp(content string) string {
	contentHeight := max(1, m.height-4)
	container := lipgloss.NewStyle().Height(contentHeight).Render(content)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderTitleBar(),
		container,
		m.renderStatusBar(),
	)
}

func (m Model) renderTitleBar() string {
	title := tuistyles.TitleStyle.Render("Tyche - Technology Portfolio Explorer")
	breadcrumb := tuistyles.SubtitleStyle.Render(fmt.Sprintf("%s / %s", m.session.Design().Name(), m.currentScene))
	return lipgloss.JoinVertical(lipgloss.Left, title, breadcrumb)
}

func (m Model) renderStatusBar() string {
	shortcuts := []string{
		formatShortcut("h", "home"),
		formatShortcut("i", "invest"),
		formatShortcut("d", "distributions"),
		formatShortcut("o", "optimize"),
		formatShortcut("?", "help"),
		formatShortcut("q", "quit"),
	}
	statusText := strings.Join(shortcuts, " • ")

	invested := tuistyles.SubtitleStyle.Render("invested " + tuistyles.FormatAmount(m.homeModel.Invested()))
	spacer := strings.Repeat(" ", max(0, m.width-lipgloss.Width(statusText)-lipgloss.Width(invested)-4))

	return tuistyles.StatusBarStyle.Width(m.width).Render(statusText + spacer + invested)
}

func formatShortcut(key, desc string) string {
	return tuistyles.StatusKeyStyle.Render(key) + " " + desc
}

func (m Model) renderError() string {
	return tuistyles.ErrorStyle.Render(fmt.Sprintf("Error: %s\n\nPress any key to continue...", m.err))
}

func renderHelp() string {
	helpText := `
TYCHE - Technology Portfolio Explorer

KEYBOARD SHORTCUTS:
  h        Dashboard of metric values
  i        Investment sliders
  d        Outcome distributions per category
  o        Optimizer
  ?        Show this help
  ESC      Go back
  x        Cancel a running optimization
  q/Ctrl+C Quit

INVEST:
  ↑/↓      Select category
  ←/→      Move the investment by one step
  0 / f    No investment / full investment

OPTIMIZE:
  ↑/↓      Select target metric
  s        Toggle maximize / minimize
  t        Cycle strategy
  p        Toggle local polish
  b        Set a total budget
  Enter    Run; the result becomes the current investment
`
	return tuistyles.BorderStyle.Render(helpText)
}

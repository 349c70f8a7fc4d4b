package scenes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/optimizer"
	"github.com/rgehrsitz/tyche/internal/session"
	"github.com/rgehrsitz/tyche/internal/tui/tuimsg"
	"github.com/rgehrsitz/tyche/internal/tui/tuistyles"
)

// OptimizeMode represents the step of the optimize scene
type OptimizeMode int

const (
	ModeSetup OptimizeMode = iota
	ModeSetBudget
	ModeRunning
	ModeShowResults
)

var strategies = []optimizer.StrategyKind{
	optimizer.GlobalStochastic,
	optimizer.GlobalDeterministic,
	optimizer.LocalGradient,
}

// OptimizeModel represents the optimization scene: pick a target metric, its sense,
// a strategy and an optional total budget
type OptimizeModel struct {
	metrics     []session.MetricInfo
	target      int
	sense       map[string]domain.Sense
	strategy    int
	polish      bool
	budget      *float64
	budgetInput textinput.Model
	mode        OptimizeMode
	result      *tuimsg.OptimizationCompleteMsg
	width       int
	height      int
}

// NewOptimizeModel creates a new optimize scene model
func NewOptimizeModel() *OptimizeModel {
	ti := textinput.New()
	ti.Placeholder = "e.g. 250000, empty for none"
	ti.CharLimit = 16
	ti.Width = 24

	return &OptimizeModel{
		sense:       make(map[string]domain.Sense),
		budgetInput: ti,
		mode:        ModeSetup,
	}
}

// SetMetrics sets the metrics that can be targeted
func (m *OptimizeModel) SetMetrics(metrics []session.MetricInfo) {
	m.metrics = metrics
	m.target = 0
	for _, info := range metrics {
		m.sense[info.Name] = info.Sense
	}
}

// SetSize updates the model dimensions
func (m *OptimizeModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Mode returns the current step
func (m *OptimizeModel) Mode() OptimizeMode {
	return m.mode
}

// Request builds the optimization request from the current choices
func (m *OptimizeModel) Request() session.OptimizeRequest {
	req := session.OptimizeRequest{
		Strategy: strategies[m.strategy],
		Polish:   m.polish,
	}
	if m.budget != nil {
		b := *m.budget
		req.TotalBudget = &b
	}
	if m.target < len(m.metrics) {
		req.Target = m.metrics[m.target].Name
		req.Sense = m.sense[req.Target]
	}
	return req
}

// SetResult shows a finished optimization
func (m *OptimizeModel) SetResult(msg tuimsg.OptimizationCompleteMsg) {
	m.result = &msg
	m.mode = ModeShowResults
}

// Update handles messages for the optimize scene
func (m *OptimizeModel) Update(msg tea.Msg) (*OptimizeModel, tea.Cmd) {
	switch m.mode {
	case ModeSetup:
		return m.updateSetup(msg)
	case ModeSetBudget:
		return m.updateBudget(msg)
	case ModeShowResults:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && (key.Matches(keyMsg, keyNew) || key.Matches(keyMsg, keyEnter)) {
			m.mode = ModeSetup
			m.result = nil
		}
	}
	return m, nil
}

func (m *OptimizeModel) updateSetup(msg tea.Msg) (*OptimizeModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || len(m.metrics) == 0 {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, keyUp):
		m.target = max(0, m.target-1)
	case key.Matches(keyMsg, keyDown):
		m.target = min(len(m.metrics)-1, m.target+1)
	case key.Matches(keyMsg, keySense):
		name := m.metrics[m.target].Name
		if m.sense[name] == domain.SenseMin {
			m.sense[name] = domain.SenseMax
		} else {
			m.sense[name] = domain.SenseMin
		}
	case key.Matches(keyMsg, keyStrategy):
		m.strategy = (m.strategy + 1) % len(strategies)
	case key.Matches(keyMsg, keyPolish):
		m.polish = !m.polish
	case key.Matches(keyMsg, keyBudget):
		m.mode = ModeSetBudget
		return m, m.budgetInput.Focus()
	case key.Matches(keyMsg, keyEnter):
		m.mode = ModeRunning
		req := m.Request()
		return m, func() tea.Msg { return tuimsg.OptimizationStartedMsg{Request: req} }
	}
	return m, nil
}

func (m *OptimizeModel) updateBudget(msg tea.Msg) (*OptimizeModel, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.Type {
		case tea.KeyEnter:
			text := strings.TrimSpace(strings.TrimPrefix(m.budgetInput.Value(), "$"))
			if text == "" {
				m.budget = nil
			} else if v, err := strconv.ParseFloat(text, 64); err == nil && v >= 0 {
				m.budget = &v
			} else {
				return m, nil
			}
			m.budgetInput.Blur()
			m.mode = ModeSetup
			return m, nil
		case tea.KeyEsc:
			m.budgetInput.Blur()
			m.mode = ModeSetup
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.budgetInput, cmd = m.budgetInput.Update(msg)
	return m, cmd
}

// View renders the optimize scene
func (m *OptimizeModel) View() string {
	switch m.mode {
	case ModeRunning:
		return m.renderRunning()
	case ModeShowResults:
		return m.renderResults()
	default:
		return m.renderSetup()
	}
}

func (m *OptimizeModel) renderSetup() string {
	var content strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(tuistyles.ColorPrimary)
	content.WriteString(titleStyle.Render("Portfolio Optimizer"))
	content.WriteString("\n\n")

	if len(m.metrics) == 0 {
		content.WriteString(tuistyles.ErrorStyle.Render("No metrics available"))
		return tuistyles.BorderStyle.Render(content.String())
	}

	content.WriteString(tuistyles.MutedStyle.Render("Target metric"))
	content.WriteString("\n")
	for i, info := range m.metrics {
		cursor, name := "  ", info.Name
		if i == m.target {
			cursor = lipgloss.NewStyle().Foreground(tuistyles.ColorPrimary).Render("❯ ")
			name = tuistyles.SelectedItemStyle.Render(name)
		}
		content.WriteString(fmt.Sprintf("%s%s %s\n", cursor, name, tuistyles.MutedStyle.Render(string(m.sense[info.Name]))))
	}
	content.WriteString("\n")

	req := m.Request()
	budget := "none"
	if req.TotalBudget != nil {
		budget = tuistyles.FormatAmount(*req.TotalBudget)
	}
	label := tuistyles.MetricLabelStyle
	content.WriteString(label.Render("Strategy: ") + string(req.Strategy))
	if req.Polish {
		content.WriteString(" + polish")
	}
	content.WriteString("\n")
	content.WriteString(label.Render("Budget:   "))
	if m.mode == ModeSetBudget {
		content.WriteString(m.budgetInput.View())
	} else {
		content.WriteString(budget)
	}
	content.WriteString("\n\n")

	content.WriteString(tuistyles.InfoStyle.Render("↑/↓ target • s sense • t strategy • p polish • b budget • Enter run"))
	return tuistyles.BorderStyle.Render(content.String())
}

func (m *OptimizeModel) renderRunning() string {
	var content strings.Builder
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(tuistyles.ColorPrimary)
	content.WriteString(titleStyle.Render("Optimizing " + m.Request().Target))
	content.WriteString("\n\n")
	content.WriteString(tuistyles.MutedStyle.Render("x to cancel"))
	return tuistyles.BorderStyle.Render(content.String())
}

func (m *OptimizeModel) renderResults() string {
	var content strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(tuistyles.ColorPrimary)
	content.WriteString(titleStyle.Render("Optimization Results"))
	content.WriteString("\n\n")

	if m.result == nil {
		content.WriteString(tuistyles.MutedStyle.Render("No results available"))
		return tuistyles.BorderStyle.Render(content.String())
	}
	if m.result.Err != nil {
		content.WriteString(tuistyles.ErrorStyle.Render(m.result.Err.Error()))
		content.WriteString("\n\n")
		content.WriteString(tuistyles.MutedStyle.Render("n for new optimization"))
		return tuistyles.BorderStyle.Render(content.String())
	}

	resp := m.result.Response
	label := tuistyles.MetricLabelStyle
	content.WriteString(label.Render("Status:    "))
	content.WriteString(tuistyles.ExitStyle(string(resp.ExitCode)).Render(string(resp.ExitCode)))
	content.WriteString("\n")
	content.WriteString(label.Render("Message:   ") + resp.Message + "\n")
	content.WriteString(label.Render("Objective: "))
	content.WriteString(tuistyles.MetricValueStyle.Render(fmt.Sprintf("%s = %s", m.result.Target, tuistyles.FormatValue(resp.Objective))))
	content.WriteString("\n\n")

	content.WriteString(titleStyle.Render("Investment"))
	content.WriteString("\n")
	for _, category := range sortedKeys(resp.Amount) {
		content.WriteString(fmt.Sprintf("  %-20s %12s\n", category, tuistyles.FormatAmount(resp.Amount[category])))
	}
	content.WriteString("\n")

	content.WriteString(titleStyle.Render("Metrics"))
	content.WriteString("\n")
	for _, name := range sortedKeys(resp.Metrics) {
		content.WriteString(fmt.Sprintf("  %-20s %12s\n", name, tuistyles.FormatValue(resp.Metrics[name])))
	}
	content.WriteString("\n")
	content.WriteString(tuistyles.MutedStyle.Render("n for new optimization"))

	return tuistyles.BorderStyle.Render(content.String())
}

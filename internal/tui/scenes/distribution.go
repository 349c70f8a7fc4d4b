package scenes

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rgehrsitz/tyche/internal/session"
	"github.com/rgehrsitz/tyche/internal/tui/components"
	"github.com/rgehrsitz/tyche/internal/tui/tuimsg"
	"github.com/rgehrsitz/tyche/internal/tui/tuistyles"
)

// DistributionModel shows the sample distribution of one metric per category
type DistributionModel struct {
	metrics  []session.MetricInfo
	selected int
	plot     *session.PlotData
	err      error
	width    int
	height   int
}

// NewDistributionModel creates a new distribution scene model
func NewDistributionModel() *DistributionModel {
	return &DistributionModel{}
}

// SetMetrics sets the metrics that can be browsed
func (m *DistributionModel) SetMetrics(metrics []session.MetricInfo) {
	m.metrics = metrics
	m.selected = 0
}

// Selected returns the name of the metric on display
func (m *DistributionModel) Selected() string {
	if m.selected >= len(m.metrics) {
		return ""
	}
	return m.metrics[m.selected].Name
}

// SetPlot stores a loaded plot; plots of other metrics than the selected one are ignored
func (m *DistributionModel) SetPlot(msg tuimsg.SeriesLoadedMsg) {
	if msg.Metric != m.Selected() {
		return
	}
	m.err = msg.Err
	if msg.Err != nil {
		m.plot = nil
		return
	}
	plot := msg.Plot
	m.plot = &plot
}

// Invalidate drops the plot after the investment changed
func (m *DistributionModel) Invalidate() {
	m.plot = nil
}

// Refresh requests the series of the selected metric
func (m *DistributionModel) Refresh() tea.Cmd {
	metric := m.Selected()
	if metric == "" {
		return nil
	}
	return func() tea.Msg { return tuimsg.SeriesRequestedMsg{Metric: metric} }
}

// SetSize updates the scene dimensions
func (m *DistributionModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// PlotSize returns the histogram bins and rows that fit the scene
func (m *DistributionModel) PlotSize() (int, int) {
	if m.width == 0 || m.height == 0 {
		return 40, 6
	}
	rows := 1
	if m.plot != nil {
		rows = max(1, len(m.plot.Series))
	}
	return max(10, m.width-10), max(3, (m.height-12)/rows-3)
}

// Update handles messages for the distribution scene
func (m *DistributionModel) Update(msg tea.Msg) (*DistributionModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || len(m.metrics) == 0 {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, keyLeft), key.Matches(keyMsg, keyUp):
		m.selected = (m.selected + len(m.metrics) - 1) % len(m.metrics)
	case key.Matches(keyMsg, keyRight), key.Matches(keyMsg, keyDown):
		m.selected = (m.selected + 1) % len(m.metrics)
	default:
		return m, nil
	}
	m.plot = nil
	return m, m.Refresh()
}

// View renders one histogram per category on a shared axis
func (m *DistributionModel) View() string {
	var content strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(tuistyles.ColorPrimary)
	content.WriteString(titleStyle.Render("Outcome Distributions"))
	content.WriteString("\n")

	var tabs []string
	for i, info := range m.metrics {
		if i == m.selected {
			tabs = append(tabs, tuistyles.SelectedItemStyle.Render("["+info.Name+"]"))
		} else {
			tabs = append(tabs, tuistyles.MutedStyle.Render(" "+info.Name+" "))
		}
	}
	content.WriteString(strings.Join(tabs, " "))
	content.WriteString("\n\n")

	switch {
	case m.err != nil:
		content.WriteString(tuistyles.ErrorStyle.Render(m.err.Error()))
	case m.plot == nil:
		content.WriteString(tuistyles.MutedStyle.Render("Sampling..."))
	default:
		bins, height := m.PlotSize()
		for i, series := range m.plot.Series {
			title := fmt.Sprintf("%s • mean %s", series.Category, tuistyles.FormatValue(series.Stats.Mean))
			if series.Units != "" {
				title += " " + series.Units
			}
			content.WriteString(components.NewHistogram(title, series.Samples, series.Axis.Min, series.Axis.Max).
				WithSize(bins, height).
				WithColor(tuistyles.SeriesColor(i)).
				Render())
			content.WriteString("\n\n")
		}
	}
	content.WriteString(tuistyles.InfoStyle.Render("←/→ metric"))

	return tuistyles.BorderStyle.Render(content.String())
}

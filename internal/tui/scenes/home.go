package scenes

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/session"
	"github.com/rgehrsitz/tyche/internal/tui/components"
	"github.com/rgehrsitz/tyche/internal/tui/tuistyles"
)

// HomeModel represents the home dashboard scene
type HomeModel struct {
	design     string
	scenario   string
	categories []session.CategoryInfo
	metrics    []session.MetricInfo
	ranges     map[string]session.Range
	values     map[string]float64
	width      int
	height     int
}

// NewHomeModel creates a new home scene model
func NewHomeModel(design, scenario string) *HomeModel {
	return &HomeModel{
		design:   design,
		scenario: scenario,
		ranges:   make(map[string]session.Range),
		values:   make(map[string]float64),
	}
}

// SetMetrics sets the metric descriptions and their ranges
func (m *HomeModel) SetMetrics(metrics []session.MetricInfo, ranges []session.Range) {
	m.metrics = metrics
	for _, r := range ranges {
		m.ranges[r.Metric] = r
	}
}

// SetState updates the categories and the metric values shown
func (m *HomeModel) SetState(categories []session.CategoryInfo, values map[string]float64) {
	m.categories = categories
	m.values = values
}

// SetSize updates the model dimensions
func (m *HomeModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Update handles messages for the home scene
func (m *HomeModel) Update(msg tea.Msg) (*HomeModel, tea.Cmd) {
	return m, nil
}

// Invested returns the summed investment last reported
func (m *HomeModel) Invested() float64 {
	total := 0.0
	for _, c := range m.categories {
		total += c.Amount
	}
	return total
}

// Cards builds one card per metric
func (m *HomeModel) Cards() []*components.MetricCard {
	var cards []*components.MetricCard
	for _, info := range m.metrics {
		r := m.ranges[info.Name]
		cards = append(cards, components.NewMetricCard(info.Name, m.values[info.Name]).
			WithUnits(info.Units).
			WithRange(r.Min, r.Max).
			WithMinimize(info.Sense == domain.SenseMin))
	}
	return cards
}

// View renders the home dashboard
func (m *HomeModel) View() string {
	if m.metrics == nil {
		return tuistyles.BorderStyle.Render(tuistyles.MutedStyle.Render("Evaluating starting portfolio..."))
	}

	var content strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(tuistyles.ColorPrimary)
	content.WriteString(titleStyle.Render(m.design))
	content.WriteString("\n")
	content.WriteString(tuistyles.MutedStyle.Render(fmt.Sprintf("Scenario %s • %d categories • %d metrics",
		m.scenario, len(m.categories), len(m.metrics))))
	content.WriteString("\n\n")

	limit := 0.0
	for _, c := range m.categories {
		limit += c.MaxAmount
	}
	content.WriteString(tuistyles.MetricLabelStyle.Render("Invested: "))
	content.WriteString(tuistyles.MetricValueStyle.Render(tuistyles.FormatAmount(m.Invested())))
	content.WriteString(tuistyles.MutedStyle.Render(" of " + tuistyles.FormatAmount(limit)))
	content.WriteString("\n\n")

	columns := 3
	if m.width > 0 {
		columns = max(1, m.width/30)
	}
	content.WriteString(components.MetricGrid(m.Cards(), columns))
	content.WriteString("\n\n")
	content.WriteString(tuistyles.InfoStyle.Render("i invest • d distributions • o optimize"))

	return tuistyles.BorderStyle.Render(content.String())
}

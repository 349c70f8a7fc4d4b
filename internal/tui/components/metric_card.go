package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rgehrsitz/tyche/internal/tui/tuistyles"
)

// MetricCard displays the current value of a metric and where it sits between the
// metric's minimum and maximum
type MetricCard struct {
	Name  string
	Units string
	Value float64
	Min   float64
	Max   float64
	// Minimize marks metrics where lower is better
	Minimize bool
	Width    int
}

// NewMetricCard creates a new metric card
func NewMetricCard(name string, value float64) *MetricCard {
	return &MetricCard{Name: name, Value: value, Width: 28}
}

// WithRange sets the span drawn by the gauge
func (m *MetricCard) WithRange(lo, hi float64) *MetricCard {
	m.Min, m.Max = lo, hi
	return m
}

// WithUnits sets the units shown after the value
func (m *MetricCard) WithUnits(units string) *MetricCard {
	m.Units = units
	return m
}

// WithMinimize marks the metric as one to minimize
func (m *MetricCard) WithMinimize(minimize bool) *MetricCard {
	m.Minimize = minimize
	return m
}

// WithWidth sets the card width
func (m *MetricCard) WithWidth(width int) *MetricCard {
	m.Width = width
	return m
}

// Position returns the value's place in [Min, Max] as a fraction, 0 when the span is empty
func (m *MetricCard) Position() float64 {
	if m.Max <= m.Min || math.IsNaN(m.Value) {
		return 0
	}
	return math.Max(0, math.Min(1, (m.Value-m.Min)/(m.Max-m.Min)))
}

// Render returns the styled metric card
func (m *MetricCard) Render() string {
	label := tuistyles.MetricLabelStyle.Render(m.Name)

	value := tuistyles.FormatValue(m.Value)
	if m.Units != "" {
		value += " " + m.Units
	}

	gaugeWidth := max(4, m.Width-6)
	filled := int(math.Round(m.Position() * float64(gaugeWidth)))
	good := m.Position()
	if m.Minimize {
		good = 1 - good
	}
	gaugeStyle := lipgloss.NewStyle().Foreground(tuistyles.ColorDanger)
	switch {
	case good >= 0.66:
		gaugeStyle = lipgloss.NewStyle().Foreground(tuistyles.ColorSuccess)
	case good >= 0.33:
		gaugeStyle = lipgloss.NewStyle().Foreground(tuistyles.ColorAccent)
	}
	gauge := gaugeStyle.Render(strings.Repeat("█", filled)) +
		tuistyles.SliderTrackStyle.Render(strings.Repeat("░", gaugeWidth-filled))

	span := tuistyles.MutedStyle.Render(fmt.Sprintf("%s … %s", tuistyles.FormatValue(m.Min), tuistyles.FormatValue(m.Max)))

	content := label + "\n" + tuistyles.MetricValueStyle.Render(value) + "\n" + gauge + "\n" + span

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(tuistyles.ColorBorder).
		Padding(0, 1).
		Width(m.Width)

	return cardStyle.Render(content)
}

// MetricGrid renders multiple metric cards in a grid layout
func MetricGrid(cards []*MetricCard, columns int) string {
	if len(cards) == 0 {
		return ""
	}
	columns = max(1, columns)

	var rows, current []string
	for i, card := range cards {
		current = append(current, card.Render())
		if (i+1)%columns == 0 || i == len(cards)-1 {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, current...))
			current = nil
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

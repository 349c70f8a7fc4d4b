// Package tuistyles holds the colors and lipgloss styles shared by the explorer scenes
// and components.
package tuistyles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/rgehrsitz/tyche/internal/output"
)

// Colors
var (
	ColorPrimary   = lipgloss.Color("#7D56F4")
	ColorSecondary = lipgloss.Color("#3C91E6")
	ColorAccent    = lipgloss.Color("#F2A541")
	ColorSuccess   = lipgloss.Color("#43AA8B")
	ColorDanger    = lipgloss.Color("#E4572E")
	ColorInfo      = lipgloss.Color("#4ECDC4")

	ColorForeground = lipgloss.Color("#E8E8E8")
	ColorMuted      = lipgloss.Color("#8A8A8A")
	ColorBorder     = lipgloss.Color("#5A5A5A")

	// ColorSeries cycles through plot colors by category position
	ColorSeries = []lipgloss.Color{"#7D56F4", "#F2A541", "#43AA8B", "#3C91E6", "#E4572E"}
)

// Base styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Padding(0, 1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Padding(0, 1)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(ColorForeground).
			Background(lipgloss.Color("#2A2A2A")).
			Padding(0, 1)

	StatusKeyStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(1, 2)

	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(ColorPrimary).
				Bold(true)

	MutedStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	MetricLabelStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	MetricValueStyle = lipgloss.NewStyle().Foreground(ColorForeground).Bold(true)

	SliderLabelStyle = lipgloss.NewStyle().Foreground(ColorForeground).Bold(true)
	SliderValueStyle = lipgloss.NewStyle().Foreground(ColorSecondary)
	SliderTrackStyle = lipgloss.NewStyle().Foreground(ColorBorder)
	SliderThumbStyle = lipgloss.NewStyle().Foreground(ColorPrimary)

	HelpKeyStyle  = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	HelpDescStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorDanger).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	InfoStyle    = lipgloss.NewStyle().Foreground(ColorInfo).Italic(true)
)

// SeriesColor returns the plot color for the i-th series
func SeriesColor(i int) lipgloss.Color {
	return ColorSeries[i%len(ColorSeries)]
}

// ExitStyle colors an optimizer exit code: green on success, red when infeasible
// or failed, amber otherwise
func ExitStyle(code string) lipgloss.Style {
	switch code {
	case "success":
		return SuccessStyle
	case "infeasible", "numerical-failure":
		return ErrorStyle
	default:
		return lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	}
}

// FormatAmount formats an investment amount compactly
func FormatAmount(amount float64) string {
	return output.FormatAmount(amount)
}

// FormatValue formats a metric value
func FormatValue(v float64) string {
	return output.FormatValue(v)
}

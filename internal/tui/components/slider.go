package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rgehrsitz/tyche/internal/tui/tuistyles"
)

// DefaultSteps is the number of slider steps between zero and the category maximum
const DefaultSteps = 20

// InvestmentSlider displays the investment in one category on a track from zero to the
// category maximum
type InvestmentSlider struct {
	Category  string
	Amount    float64
	Max       float64
	Step      float64
	Width     int
	IsFocused bool
}

// NewInvestmentSlider creates a new slider with DefaultSteps steps
func NewInvestmentSlider(category string, amount, max float64) *InvestmentSlider {
	s := &InvestmentSlider{
		Category: category,
		Max:      max,
		Step:     max / DefaultSteps,
		Width:    30,
	}
	s.SetAmount(amount)
	return s
}

// WithWidth sets the track width
func (s *InvestmentSlider) WithWidth(width int) *InvestmentSlider {
	s.Width = width
	return s
}

// SetFocused sets the focus state
func (s *InvestmentSlider) SetFocused(focused bool) *InvestmentSlider {
	s.IsFocused = focused
	return s
}

// Increment raises the amount by one step, stopping at the maximum
func (s *InvestmentSlider) Increment() {
	s.SetAmount(s.Amount + s.Step)
}

// Decrement lowers the amount by one step, stopping at zero
func (s *InvestmentSlider) Decrement() {
	s.SetAmount(s.Amount - s.Step)
}

// SetAmount sets the amount, clamped to [0, Max]
func (s *InvestmentSlider) SetAmount(amount float64) {
	s.Amount = math.Max(0, math.Min(s.Max, amount))
}

// Fraction returns the amount as a fraction of the maximum
func (s *InvestmentSlider) Fraction() float64 {
	if s.Max <= 0 {
		return 0
	}
	return s.Amount / s.Max
}

// Render returns the label, amount and track on one line
func (s *InvestmentSlider) Render() string {
	labelStyle := tuistyles.SliderLabelStyle
	valueStyle := tuistyles.SliderValueStyle
	cursor := "  "
	if s.IsFocused {
		labelStyle = labelStyle.Foreground(tuistyles.ColorPrimary)
		valueStyle = valueStyle.Foreground(tuistyles.ColorAccent)
		cursor = lipgloss.NewStyle().Foreground(tuistyles.ColorPrimary).Render("❯ ")
	}

	label := labelStyle.Width(18).Render(truncate(s.Category, 18))
	value := valueStyle.Width(10).Align(lipgloss.Right).Render(tuistyles.FormatAmount(s.Amount))
	limit := tuistyles.MutedStyle.Render(fmt.Sprintf("of %s", tuistyles.FormatAmount(s.Max)))
	return fmt.Sprintf("%s%s %s %s %s", cursor, label, value, s.renderTrack(), limit)
}

func (s *InvestmentSlider) renderTrack() string {
	filled := int(math.Round(float64(s.Width) * s.Fraction()))
	filled = max(0, min(s.Width, filled))

	thumbStyle := tuistyles.SliderThumbStyle
	if s.IsFocused {
		thumbStyle = thumbStyle.Foreground(tuistyles.ColorAccent)
	}

	var bar strings.Builder
	bar.WriteString("[")
	if filled > 1 {
		bar.WriteString(thumbStyle.Render(strings.Repeat("━", filled-1)))
	}
	bar.WriteString(thumbStyle.Render("●"))
	if rest := s.Width - max(filled, 1); rest > 0 {
		bar.WriteString(tuistyles.SliderTrackStyle.Render(strings.Repeat("─", rest)))
	}
	bar.WriteString("]")
	return bar.String()
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

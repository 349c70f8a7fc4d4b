package scenes

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rgehrsitz/tyche/internal/session"
	"github.com/rgehrsitz/tyche/internal/tui/components"
	"github.com/rgehrsitz/tyche/internal/tui/tuimsg"
	"github.com/rgehrsitz/tyche/internal/tui/tuistyles"
)

var (
	keyUp       = key.NewBinding(key.WithKeys("up", "k"))
	keyDown     = key.NewBinding(key.WithKeys("down", "j"))
	keyLeft     = key.NewBinding(key.WithKeys("left", "-"))
	keyRight    = key.NewBinding(key.WithKeys("right", "+", "="))
	keyZero     = key.NewBinding(key.WithKeys("0"))
	keyFull     = key.NewBinding(key.WithKeys("f"))
	keyEnter    = key.NewBinding(key.WithKeys("enter"))
	keySense    = key.NewBinding(key.WithKeys("s"))
	keyStrategy = key.NewBinding(key.WithKeys("t"))
	keyPolish   = key.NewBinding(key.WithKeys("p"))
	keyBudget   = key.NewBinding(key.WithKeys("b"))
	keyNew      = key.NewBinding(key.WithKeys("n"))
)

// InvestModel represents the investment scene: one slider per category above the
// metric cards. Every slider move is applied to the session.
type InvestModel struct {
	sliders []*components.InvestmentSlider
	focused int
	home    *HomeModel
	width   int
	height  int
}

// NewInvestModel creates a new invest scene model that shares the dashboard's metrics
func NewInvestModel(home *HomeModel) *InvestModel {
	return &InvestModel{home: home}
}

// SetCategories rebuilds the sliders from the session categories, keeping focus
func (m *InvestModel) SetCategories(categories []session.CategoryInfo) {
	m.sliders = m.sliders[:0]
	for _, c := range categories {
		m.sliders = append(m.sliders, components.NewInvestmentSlider(c.Name, c.Amount, c.MaxAmount).WithWidth(m.trackWidth()))
	}
	m.focused = max(0, min(m.focused, len(m.sliders)-1))
	if len(m.sliders) > 0 {
		m.sliders[m.focused].SetFocused(true)
	}
}

// Focused returns the focused slider, or nil when there are none
func (m *InvestModel) Focused() *components.InvestmentSlider {
	if m.focused < 0 || m.focused >= len(m.sliders) {
		return nil
	}
	return m.sliders[m.focused]
}

// SetSize updates the scene dimensions
func (m *InvestModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	for _, s := range m.sliders {
		s.WithWidth(m.trackWidth())
	}
}

func (m *InvestModel) trackWidth() int {
	if m.width == 0 {
		return 30
	}
	return max(10, m.width-50)
}

// Update handles messages for the invest scene
func (m *InvestModel) Update(msg tea.Msg) (*InvestModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || len(m.sliders) == 0 {
		return m, nil
	}
	slider := m.sliders[m.focused]
	before := slider.Amount

	switch {
	case key.Matches(keyMsg, keyUp):
		m.focus(m.focused - 1)
		return m, nil
	case key.Matches(keyMsg, keyDown):
		m.focus(m.focused + 1)
		return m, nil
	case key.Matches(keyMsg, keyLeft):
		slider.Decrement()
	case key.Matches(keyMsg, keyRight):
		slider.Increment()
	case key.Matches(keyMsg, keyZero):
		slider.SetAmount(0)
	case key.Matches(keyMsg, keyFull):
		slider.SetAmount(slider.Max)
	default:
		return m, nil
	}

	if slider.Amount == before {
		return m, nil
	}
	category, amount := slider.Category, slider.Amount
	return m, func() tea.Msg {
		return tuimsg.InvestmentChangedMsg{Category: category, Amount: amount}
	}
}

func (m *InvestModel) focus(i int) {
	if i < 0 || i >= len(m.sliders) {
		return
	}
	m.sliders[m.focused].SetFocused(false)
	m.focused = i
	m.sliders[i].SetFocused(true)
}

// View renders the sliders and the metric cards
func (m *InvestModel) View() string {
	var content strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(tuistyles.ColorPrimary)
	content.WriteString(titleStyle.Render("Investment by Category"))
	content.WriteString("\n\n")

	if len(m.sliders) == 0 {
		content.WriteString(tuistyles.ErrorStyle.Render("The design has no investment categories"))
		return tuistyles.BorderStyle.Render(content.String())
	}
	for _, s := range m.sliders {
		content.WriteString(s.Render())
		content.WriteString("\n")
	}
	content.WriteString("\n")

	columns := 3
	if m.width > 0 {
		columns = max(1, m.width/30)
	}
	content.WriteString(components.MetricGrid(m.home.Cards(), columns))
	content.WriteString("\n\n")
	content.WriteString(tuistyles.InfoStyle.Render("↑/↓ category • ←/→ adjust • 0 none • f full"))

	return tuistyles.BorderStyle.Render(content.String())
}

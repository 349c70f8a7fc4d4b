package components

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rgehrsitz/tyche/internal/tui/tuistyles"
)

// Busy shows a spinner with a label and the elapsed time while work runs in the
// background
type Busy struct {
	Label   string
	Active  bool
	started time.Time
	spinner spinner.Model
}

// NewBusy creates an idle indicator
func NewBusy() *Busy {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = tuistyles.SliderThumbStyle
	return &Busy{spinner: s}
}

// Start activates the indicator and returns the command that animates it
func (b *Busy) Start(label string) tea.Cmd {
	b.Label = label
	b.Active = true
	b.started = time.Now()
	return b.spinner.Tick
}

// Stop deactivates the indicator
func (b *Busy) Stop() {
	b.Active = false
}

// Update advances the animation while active
func (b *Busy) Update(msg tea.Msg) tea.Cmd {
	if !b.Active {
		return nil
	}
	if _, ok := msg.(spinner.TickMsg); !ok {
		return nil
	}
	var cmd tea.Cmd
	b.spinner, cmd = b.spinner.Update(msg)
	return cmd
}

// Render returns the spinner line, or an empty string when idle
func (b *Busy) Render() string {
	if !b.Active {
		return ""
	}
	elapsed := time.Since(b.started).Round(100 * time.Millisecond)
	return b.spinner.View() + " " + b.Label + " " + tuistyles.MutedStyle.Render(elapsed.String())
}

package tui

import (
	"context"
	"errors"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgehrsitz/tyche/internal/domain/domaintest"
	"github.com/rgehrsitz/tyche/internal/session"
	"github.com/rgehrsitz/tyche/internal/tui/scenes"
	"github.com/rgehrsitz/tyche/internal/tui/tuimsg"
	"github.com/rgehrsitz/tyche/internal/tui/tuistyles"
)

func newModel(t *testing.T) (Model, *session.Session) {
	t.Helper()
	opts := session.DefaultOptions()
	opts.SampleCount = 10
	opts.Optimizer.MaxIterations = 10
	s, err := session.New(domaintest.TrancheDesign(), opts)
	require.NoError(t, err)

	m := NewModel(context.Background(), s)
	return run(t, m, m.Init()), s
}

// run executes cmd and every command it leads to, feeding the messages back into the
// model. Spinner ticks are dropped so animations do not loop.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 100, "command loop did not settle")
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case nil, spinner.TickMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			updated, follow := m.Update(msg)
			m = updated.(Model)
			queue = append(queue, follow)
		}
	}
	return m
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		updated, cmd := m.Update(k)
		m = run(t, updated.(Model), cmd)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestInitLoadsDashboard(t *testing.T) {
	m, _ := newModel(t)

	assert.True(t, m.ready)
	view := m.View()
	assert.Contains(t, view, "tranches / Home")
	assert.Contains(t, view, "Output")
	assert.Contains(t, view, "187.5")
	assert.Contains(t, view, "$2.5K")
}

func TestNavigation(t *testing.T) {
	m, _ := newModel(t)

	m = press(t, m, runes("i"))
	assert.Equal(t, SceneInvest, m.currentScene)
	m = press(t, m, runes("o"))
	assert.Equal(t, SceneOptimize, m.currentScene)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, SceneInvest, m.currentScene)
	m = press(t, m, runes("?"))
	assert.Contains(t, m.View(), "KEYBOARD SHORTCUTS")
	m = press(t, m, runes("h"))
	assert.Equal(t, SceneHome, m.currentScene)
}

func TestSliderAppliesInvestment(t *testing.T) {
	m, s := newModel(t)

	m = press(t, m, runes("i"), tea.KeyMsg{Type: tea.KeyRight}, tea.KeyMsg{Type: tea.KeyRight})
	assert.InDelta(t, 3000, s.Investment()["Widgets"], 1e-9)
	assert.Contains(t, m.View(), "200", "Output after buying two tranches")

	m = press(t, m, runes("0"))
	assert.InDelta(t, 0, s.Investment()["Widgets"], 1e-9)
	m = press(t, m, runes("f"))
	assert.InDelta(t, 5000, s.Investment()["Widgets"], 1e-9)
	assert.Contains(t, m.View(), "250")
}

func TestDistributionLoadsSeries(t *testing.T) {
	m, _ := newModel(t)

	m = press(t, m, runes("d"))
	require.Equal(t, SceneDistribution, m.currentScene)
	view := m.View()
	assert.Contains(t, view, "Widgets • mean 825 USD", "first metric is Capital")
	assert.Contains(t, view, "10 samples")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	assert.Contains(t, m.View(), "Widgets • mean 187.5")
}

func TestOptimizeAppliesResult(t *testing.T) {
	m, s := newModel(t)

	m = press(t, m, runes("o"), tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, scenes.ModeShowResults, m.optimizeModel.Mode())
	assert.Nil(t, m.cancel)

	view := m.View()
	assert.Contains(t, view, "Optimization Results")
	assert.Contains(t, view, "Output =")
	output, err := s.Metric(context.Background(), "Output")
	require.NoError(t, err)
	assert.Greater(t, output, 150.0)
	assert.Contains(t, m.homeModel.View(), tuistyles.FormatValue(output), "the dashboard reloads after the optimum is applied")

	m = press(t, m, runes("n"))
	assert.Equal(t, scenes.ModeSetup, m.optimizeModel.Mode())
}

func TestErrorIsDismissedByAnyKey(t *testing.T) {
	m, _ := newModel(t)

	updated, _ := m.Update(tuimsg.ErrorMsg{Err: errors.New("boom")})
	m = updated.(Model)
	assert.Contains(t, m.View(), "Error: boom")

	m = press(t, m, runes("i"))
	assert.Nil(t, m.err)
	assert.Equal(t, SceneHome, m.currentScene, "the dismissing key is not acted on")
}

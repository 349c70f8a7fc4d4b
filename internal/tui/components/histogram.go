package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rgehrsitz/tyche/internal/tui/tuistyles"
)

var blocks = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// Histogram draws the distribution of a sample ensemble over a fixed axis
type Histogram struct {
	Title   string
	Samples []float64
	Min     float64
	Max     float64
	Bins    int
	Height  int
	Color   lipgloss.Color
}

// NewHistogram creates a histogram over [lo, hi]
func NewHistogram(title string, samples []float64, lo, hi float64) *Histogram {
	return &Histogram{
		Title:   title,
		Samples: samples,
		Min:     lo,
		Max:     hi,
		Bins:    40,
		Height:  8,
		Color:   tuistyles.ColorPrimary,
	}
}

// WithSize sets the number of bins and the bar height in rows
func (h *Histogram) WithSize(bins, height int) *Histogram {
	h.Bins = max(1, bins)
	h.Height = max(1, height)
	return h
}

// WithColor sets the bar color
func (h *Histogram) WithColor(c lipgloss.Color) *Histogram {
	h.Color = c
	return h
}

// Counts bins the finite samples. Samples outside the axis fall in the edge bins.
func (h *Histogram) Counts() []int {
	counts := make([]int, max(1, h.Bins))
	span := h.Max - h.Min
	for _, v := range h.Samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		i := 0
		if span > 0 {
			i = int((v - h.Min) / span * float64(len(counts)))
		}
		counts[max(0, min(len(counts)-1, i))]++
	}
	return counts
}

// Render returns the styled histogram
func (h *Histogram) Render() string {
	counts := h.Counts()
	peak := 0
	for _, c := range counts {
		peak = max(peak, c)
	}

	var content strings.Builder
	if h.Title != "" {
		content.WriteString(lipgloss.NewStyle().Bold(true).Foreground(tuistyles.ColorPrimary).Render(h.Title))
		content.WriteString("\n")
	}
	if peak == 0 {
		content.WriteString(tuistyles.InfoStyle.Render("No samples to display"))
		return content.String()
	}

	bar := lipgloss.NewStyle().Foreground(h.Color)
	levels := len(blocks) - 1
	for row := h.Height - 1; row >= 0; row-- {
		var line strings.Builder
		for _, c := range counts {
			// eighths of a row filled by this bin
			fill := int(math.Round(float64(c) / float64(peak) * float64(h.Height*levels)))
			line.WriteString(blocks[max(0, min(levels, fill-row*levels))])
		}
		content.WriteString(bar.Render(line.String()))
		content.WriteString("\n")
	}

	lo, hi := tuistyles.FormatValue(h.Min), tuistyles.FormatValue(h.Max)
	gap := max(1, len(counts)-len(lo)-len(hi))
	content.WriteString(tuistyles.MutedStyle.Render(lo + strings.Repeat(" ", gap) + hi))
	content.WriteString("\n")
	content.WriteString(tuistyles.MutedStyle.Render(fmt.Sprintf("%d samples, peak bin %d", sum(counts), peak)))
	return content.String()
}

func sum(counts []int) int {
	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}

package components

import (
	"math"
	"strings"
	"testing"
)

func TestInvestmentSlider_StepsAndClamping(t *testing.T) {
	s := NewInvestmentSlider("Widgets", 2500, 5000)

	if s.Step != 250 {
		t.Fatalf("Expected step 250, got %v", s.Step)
	}
	s.Increment()
	if s.Amount != 2750 {
		t.Errorf("Expected 2750 after increment, got %v", s.Amount)
	}

	s.SetAmount(9000)
	s.Increment()
	if s.Amount != 5000 {
		t.Errorf("Expected amount clamped to 5000, got %v", s.Amount)
	}
	if s.Fraction() != 1 {
		t.Errorf("Expected fraction 1, got %v", s.Fraction())
	}

	s.SetAmount(100)
	s.Decrement()
	if s.Amount != 0 {
		t.Errorf("Expected amount clamped to 0, got %v", s.Amount)
	}
}

func TestInvestmentSlider_Render(t *testing.T) {
	s := NewInvestmentSlider("Widgets", 2500, 5000).WithWidth(20).SetFocused(true)
	out := s.Render()

	for _, want := range []string{"Widgets", "$2.5K", "of $5.0K", "●"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in %q", want, out)
		}
	}

	empty := NewInvestmentSlider("None", 0, 0)
	if empty.Fraction() != 0 {
		t.Errorf("Expected zero fraction for an empty category, got %v", empty.Fraction())
	}
}

func TestMetricCard_Position(t *testing.T) {
	tests := []struct {
		name string
		card *MetricCard
		want float64
	}{
		{"inside", NewMetricCard("Output", 175).WithRange(100, 250), 0.5},
		{"below", NewMetricCard("Output", 50).WithRange(100, 250), 0},
		{"above", NewMetricCard("Output", 300).WithRange(100, 250), 1},
		{"empty span", NewMetricCard("Output", 100).WithRange(100, 100), 0},
		{"undefined", NewMetricCard("Output", math.NaN()).WithRange(100, 250), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.card.Position(); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Position() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetricGrid(t *testing.T) {
	cards := []*MetricCard{
		NewMetricCard("Capital", 850).WithUnits("USD").WithRange(700, 1000).WithMinimize(true),
		NewMetricCard("Output", 187.5).WithRange(100, 250),
	}
	out := MetricGrid(cards, 1)
	for _, want := range []string{"Capital", "850 USD", "Output", "187.5"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in grid", want)
		}
	}
	if MetricGrid(nil, 3) != "" {
		t.Error("Expected empty grid without cards")
	}
}

func TestHistogram_Counts(t *testing.T) {
	h := NewHistogram("Output", []float64{0, 0.5, 1, 9.99, 10, 11, -3, math.NaN()}, 0, 10).WithSize(10, 4)

	counts := h.Counts()
	want := []int{3, 1, 0, 0, 0, 0, 0, 0, 0, 3}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("Counts() = %v, want %v", counts, want)
		}
	}
}

func TestHistogram_Render(t *testing.T) {
	out := NewHistogram("Output", []float64{1, 2, 2, 3}, 0, 4).WithSize(8, 3).Render()
	if !strings.Contains(out, "4 samples, peak bin 2") {
		t.Errorf("Expected sample summary in %q", out)
	}
	if !strings.Contains(out, "█") {
		t.Error("Expected a full block for the peak bin")
	}

	empty := NewHistogram("Output", []float64{math.NaN()}, 0, 4).Render()
	if !strings.Contains(empty, "No samples") {
		t.Errorf("Expected empty message, got %q", empty)
	}
}

func TestBusy(t *testing.T) {
	b := NewBusy()
	if b.Render() != "" {
		t.Error("Expected idle indicator to render nothing")
	}
	if cmd := b.Start("Optimizing Output"); cmd == nil {
		t.Error("Expected a tick command")
	}
	if !strings.Contains(b.Render(), "Optimizing Output") {
		t.Errorf("Expected label in %q", b.Render())
	}
	b.Stop()
	if b.Render() != "" {
		t.Error("Expected stopped indicator to render nothing")
	}
}

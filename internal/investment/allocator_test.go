package investment

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgehrsitz/tyche/internal/design"
	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/domain/domaintest"
)

func newAllocator(t *testing.T, d *domain.Design) *Allocator {
	t.Helper()
	c, err := design.Compile(d)
	require.NoError(t, err)
	a, err := NewAllocator(c, c.Tranches())
	require.NoError(t, err)
	return a
}

func names(applied []domain.AppliedTranche) []string {
	out := make([]string, len(applied))
	for i, a := range applied {
		out[i] = a.Name
	}
	return out
}

func TestAllocateWholeTranches(t *testing.T) {
	a := newAllocator(t, domaintest.TrancheDesign())

	applied, err := a.Allocate("Widgets", 3000)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if got := names(applied); len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("Expected first and second tranches, got %v", got)
	}
	for _, tr := range applied {
		if tr.Partial() {
			t.Errorf("Expected tranche %s to be bought in full, fraction %g", tr.Name, tr.Fraction)
		}
	}
	if !Spent(applied).Equal(decimal.NewFromInt(3000)) {
		t.Errorf("Expected 3000 spent, got %s", Spent(applied))
	}

	changes, _, err := a.Deltas(domain.Investment{"Widgets": 3000})
	require.NoError(t, err)
	assert.Equal(t, map[domain.ParameterKey]float64{
		{Technology: "Widget", Parameter: "tranche_level"}: 2,
	}, changes)
}

func TestAllocatePartialTranche(t *testing.T) {
	a := newAllocator(t, domaintest.TrancheDesign())

	applied, err := a.Allocate("Widgets", 3500)
	require.NoError(t, err)
	require.Len(t, applied, 3)

	last := applied[2]
	assert.Equal(t, "third", last.Name)
	assert.True(t, last.Partial())
	assert.InDelta(t, 0.25, last.Fraction, 1e-12)
	assert.InDelta(t, 0.25, last.Deltas[0].Amount, 1e-12)
	assert.True(t, last.Cost.Equal(decimal.NewFromInt(500)))
	assert.True(t, Spent(applied).Equal(decimal.NewFromInt(3500)))
}

func TestAllocateZeroAndSaturation(t *testing.T) {
	a := newAllocator(t, domaintest.TrancheDesign())

	applied, err := a.Allocate("Widgets", 0)
	require.NoError(t, err)
	assert.Empty(t, applied)

	applied, err = a.Allocate("Widgets", 1e9)
	require.NoError(t, err)
	assert.Len(t, applied, 3)
	assert.Equal(t, 5000.0, a.MaxAmount("Widgets"))
	assert.True(t, Spent(applied).Equal(decimal.NewFromInt(5000)), "never spends past the last tranche")
}

func TestAllocateNeverOverspendsAndIsMonotone(t *testing.T) {
	a := newAllocator(t, domaintest.TrancheDesign())

	previous := decimal.Zero
	for _, amount := range []float64{0, 1, 999.99, 1000, 1500, 2999, 3000, 4321.5, 5000, 7000} {
		applied, err := a.Allocate("Widgets", amount)
		require.NoError(t, err)
		spent := Spent(applied)
		assert.True(t, spent.LessThanOrEqual(decimal.NewFromFloat(amount)), "amount %g spent %s", amount, spent)
		assert.True(t, spent.GreaterThanOrEqual(previous), "amount %g", amount)
		previous = spent

		again, err := a.Allocate("Widgets", amount)
		require.NoError(t, err)
		assert.Equal(t, applied, again, "allocation is deterministic")
	}
}

func TestAllocateStableTieBreak(t *testing.T) {
	d := domaintest.TrancheDesign()
	d.Tranches = []domain.Tranche{d.Tranches[2], d.Tranches[1], d.Tranches[0]}
	a := newAllocator(t, d)

	applied, err := a.Allocate("Widgets", 5000)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "third", "second"}, names(applied))
}

func TestAllocateInvalidAmounts(t *testing.T) {
	a := newAllocator(t, domaintest.TrancheDesign())

	for _, amount := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := a.Allocate("Widgets", amount)
		if !errors.Is(err, domain.ErrInvalidInvestment) {
			t.Errorf("amount %g: expected ErrInvalidInvestment, got %v", amount, err)
		}
	}
	_, err := a.Allocate("Gadgets", 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInvestment)

	_, _, err = a.Deltas(domain.Investment{"Widgets": 100, "Gadgets": 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInvestment)
}

func TestCategoryWithoutTranches(t *testing.T) {
	d := domaintest.TrancheDesign()
	d.Tranches = nil
	a := newAllocator(t, d)

	applied, err := a.Allocate("Widgets", 1000)
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Zero(t, a.MaxAmount("Widgets"))
}

func TestDeltasResolveCategoryWide(t *testing.T) {
	a := newAllocator(t, domaintest.PortfolioDesign())

	changes, applied, err := a.Deltas(domain.Investment{"Solar": 1.5e6, "Wind": 2e6})
	require.NoError(t, err)
	assert.Equal(t, []string{"cells", "inverters"}, names(applied["Solar"]))
	assert.Equal(t, []string{"blades"}, names(applied["Wind"]))
	assert.InDelta(t, 1.5, changes[domain.ParameterKey{Technology: "PV", Parameter: "progress"}], 1e-12)
	assert.InDelta(t, 1.0, changes[domain.ParameterKey{Technology: "Turbine", Parameter: "progress"}], 1e-12)
}

func TestNewAllocatorValidation(t *testing.T) {
	c, err := design.Compile(domaintest.TrancheDesign())
	require.NoError(t, err)

	tests := []struct {
		name    string
		tranche domain.Tranche
		kind    error
	}{
		{
			name:    "zero cost",
			tranche: domain.Tranche{Category: "Widgets", Name: "free", Cost: decimal.Zero},
			kind:    domain.ErrInvalidInvestment,
		},
		{
			name:    "unknown category",
			tranche: domain.Tranche{Category: "Gadgets", Name: "g", Cost: decimal.NewFromInt(1)},
			kind:    domain.ErrInvalidDesign,
		},
		{
			name: "unknown parameter",
			tranche: domain.Tranche{Category: "Widgets", Name: "w", Cost: decimal.NewFromInt(1),
				Deltas: []domain.Delta{{Parameter: "polish", Amount: 1}}},
			kind: domain.ErrMissingParameter,
		},
		{
			name: "unknown technology",
			tranche: domain.Tranche{Category: "Widgets", Name: "w", Cost: decimal.NewFromInt(1),
				Deltas: []domain.Delta{{Technology: "Gizmo", Parameter: "tranche_level", Amount: 1}}},
			kind: domain.ErrInvalidDesign,
		},
		{
			name: "negative delta",
			tranche: domain.Tranche{Category: "Widgets", Name: "w", Cost: decimal.NewFromInt(1),
				Deltas: []domain.Delta{{Parameter: "tranche_level", Amount: -1}}},
			kind: domain.ErrInvalidInvestment,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAllocator(c, []domain.Tranche{tt.tranche})
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

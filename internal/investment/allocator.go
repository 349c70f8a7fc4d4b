// Package investment converts monetary investments into purchased technology improvements.
//
// Each category owns an ordered list of tranches. An amount buys tranches greedily in
// ascending cost order (declaration order breaks ties). The first tranche the remaining
// money cannot fully pay for is bought at the fraction the money covers, and its deltas
// are scaled linearly by that fraction. Allocation never spends more than the amount.
package investment

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/tyche/internal/design"
	"github.com/rgehrsitz/tyche/internal/domain"
)

// Allocator maps category investments onto tranche deltas
type Allocator struct {
	design     *design.Compiled
	byCategory map[string][]domain.Tranche
}

// NewAllocator validates tranches against the compiled design
func NewAllocator(compiled *design.Compiled, tranches []domain.Tranche) (*Allocator, error) {
	a := &Allocator{
		design:     compiled,
		byCategory: make(map[string][]domain.Tranche),
	}

	for _, tr := range tranches {
		if !compiled.HasCategory(tr.Category) {
			return nil, domain.NewError(domain.ErrInvalidDesign, "allocate",
				"tranche %q refers to unknown category %q", tr.Name, tr.Category)
		}
		if !tr.Cost.IsPositive() {
			return nil, domain.NewError(domain.ErrInvalidInvestment, "allocate",
				"tranche %q must cost more than zero, got %s", tr.Name, tr.Cost)
		}
		for _, d := range tr.Deltas {
			if err := a.validateDelta(tr, d); err != nil {
				return nil, err
			}
		}
		a.byCategory[tr.Category] = append(a.byCategory[tr.Category], tr)
	}

	for _, list := range a.byCategory {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Cost.LessThan(list[j].Cost) })
	}
	return a, nil
}

func (a *Allocator) validateDelta(tr domain.Tranche, d domain.Delta) error {
	if d.Amount < 0 || math.IsNaN(d.Amount) || math.IsInf(d.Amount, 0) {
		return domain.NewError(domain.ErrInvalidInvestment, "allocate",
			"tranche %q delta must be a finite non-negative improvement, got %g", tr.Name, d.Amount).
			For(d.Technology, d.Parameter)
	}
	if d.Technology != "" {
		tech, ok := a.design.Technology(d.Technology)
		if !ok || tech.Category != tr.Category {
			return domain.NewError(domain.ErrInvalidDesign, "allocate",
				"tranche %q targets a technology outside category %q", tr.Name, tr.Category).
				For(d.Technology, d.Parameter)
		}
		if _, ok := tech.ParameterIndex(d.Parameter, d.Offset); !ok {
			return domain.NewError(domain.ErrMissingParameter, "allocate",
				"tranche %q changes %s[%d]", tr.Name, d.Parameter, d.Offset).For(d.Technology, d.Parameter)
		}
		return nil
	}
	for _, tech := range a.design.TechnologiesIn(tr.Category) {
		if _, ok := tech.ParameterIndex(d.Parameter, d.Offset); ok {
			return nil
		}
	}
	return domain.NewError(domain.ErrMissingParameter, "allocate",
		"tranche %q changes %s[%d] but no technology in %q declares it", tr.Name, d.Parameter, d.Offset, tr.Category).
		For("", d.Parameter)
}

// Allocate returns the tranches bought by amount in purchase order.
// Allocating zero, or to a category without tranches, buys nothing.
func (a *Allocator) Allocate(category string, amount float64) ([]domain.AppliedTranche, error) {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, domain.NewError(domain.ErrInvalidInvestment, "allocate",
			"amount for %q must be a finite non-negative number, got %g", category, amount)
	}
	if !a.design.HasCategory(category) {
		return nil, domain.NewError(domain.ErrInvalidInvestment, "allocate", "unknown category %q", category)
	}

	budget := decimal.NewFromFloat(amount)
	spent := decimal.Zero
	var applied []domain.AppliedTranche
	for _, tr := range a.byCategory[category] {
		remaining := budget.Sub(spent)
		if !remaining.IsPositive() {
			break
		}
		if tr.Cost.LessThanOrEqual(remaining) {
			applied = append(applied, apply(tr, tr.Cost, 1))
			spent = spent.Add(tr.Cost)
			continue
		}
		fraction, _ := remaining.Div(tr.Cost).Float64()
		if fraction > 0 {
			applied = append(applied, apply(tr, remaining, fraction))
		}
		break
	}
	return applied, nil
}

func apply(tr domain.Tranche, cost decimal.Decimal, fraction float64) domain.AppliedTranche {
	deltas := make([]domain.Delta, len(tr.Deltas))
	for i, d := range tr.Deltas {
		d.Amount *= fraction
		deltas[i] = d
	}
	return domain.AppliedTranche{
		Category: tr.Category,
		Name:     tr.Name,
		Cost:     cost,
		Fraction: fraction,
		Deltas:   deltas,
	}
}

// Deltas allocates every category of inv and folds the purchased deltas into additive
// changes per parameter element
func (a *Allocator) Deltas(inv domain.Investment) (map[domain.ParameterKey]float64, map[string][]domain.AppliedTranche, error) {
	changes := make(map[domain.ParameterKey]float64)
	applied := make(map[string][]domain.AppliedTranche, len(inv))

	categories := make([]string, 0, len(inv))
	for c := range inv {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for _, category := range categories {
		bought, err := a.Allocate(category, inv[category])
		if err != nil {
			return nil, nil, err
		}
		if len(bought) == 0 {
			continue
		}
		applied[category] = bought
		for _, tr := range bought {
			for _, d := range tr.Deltas {
				for _, tech := range a.targets(category, d) {
					changes[domain.ParameterKey{Technology: tech, Parameter: d.Parameter, Offset: d.Offset}] += d.Amount
				}
			}
		}
	}
	return changes, applied, nil
}

func (a *Allocator) targets(category string, d domain.Delta) []string {
	if d.Technology != "" {
		return []string{d.Technology}
	}
	var out []string
	for _, tech := range a.design.TechnologiesIn(category) {
		if _, ok := tech.ParameterIndex(d.Parameter, d.Offset); ok {
			out = append(out, tech.Name)
		}
	}
	return out
}

// MaxAmount is the cost of every tranche of a category
func (a *Allocator) MaxAmount(category string) float64 {
	total := decimal.Zero
	for _, tr := range a.byCategory[category] {
		total = total.Add(tr.Cost)
	}
	f, _ := total.Float64()
	return f
}

// Tranches returns the tranches of a category in purchase order
func (a *Allocator) Tranches(category string) []domain.Tranche {
	out := make([]domain.Tranche, len(a.byCategory[category]))
	copy(out, a.byCategory[category])
	return out
}

// Spent sums the cost of applied tranches
func Spent(applied []domain.AppliedTranche) decimal.Decimal {
	total := decimal.Zero
	for _, a := range applied {
		total = total.Add(a.Cost)
	}
	return total
}

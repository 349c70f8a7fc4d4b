package transform

import (
	"fmt"
	"math"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/tyche/internal/domain"
)

// SetParameter replaces the distribution of one parameter element
type SetParameter struct {
	Technology string
	Parameter  string
	Offset     int
	Value      domain.DistributionSpec
}

func (t *SetParameter) Name() string { return "set_parameter" }

func (t *SetParameter) Description() string {
	return fmt.Sprintf("Set %s.%s[%d] to %s", t.Technology, t.Parameter, t.Offset, t.Value)
}

func (t *SetParameter) index(d *domain.Design) int {
	return slices.IndexFunc(d.Parameters, func(p domain.Parameter) bool {
		return p.Technology == t.Technology && p.Name == t.Parameter && p.Offset == t.Offset
	})
}

func (t *SetParameter) Validate(base *domain.Design) error {
	if t.index(base) < 0 {
		return NewTransformError(t.Name(), "validate",
			fmt.Sprintf("technology %q declares no parameter %s[%d]", t.Technology, t.Parameter, t.Offset),
			domain.ErrMissingParameter)
	}
	return nil
}

func (t *SetParameter) Apply(base *domain.Design) (*domain.Design, error) {
	i := t.index(base)
	if i < 0 {
		return nil, t.Validate(base)
	}
	out := Copy(base)
	out.Parameters[i].Value = t.Value
	return out, nil
}

// AddScenario appends a scenario of parameter scale factors
type AddScenario struct {
	Scenario domain.Scenario
}

func (t *AddScenario) Name() string { return "add_scenario" }

func (t *AddScenario) Description() string {
	return fmt.Sprintf("Add scenario %s scaling %d parameters", t.Scenario.Name, len(t.Scenario.Factors))
}

func (t *AddScenario) Validate(base *domain.Design) error {
	if t.Scenario.Name == "" {
		return NewTransformError(t.Name(), "validate", "scenario name cannot be empty", domain.ErrInvalidDesign)
	}
	for _, sc := range base.Scenarios {
		if sc.Name == t.Scenario.Name {
			return NewTransformError(t.Name(), "validate",
				fmt.Sprintf("scenario %s already exists", sc.Name), domain.ErrInvalidDesign)
		}
	}
	for name, f := range t.Scenario.Factors {
		declared := slices.ContainsFunc(base.Parameters, func(p domain.Parameter) bool { return p.Name == name })
		if !declared {
			return NewTransformError(t.Name(), "validate",
				fmt.Sprintf("no technology declares parameter %s", name), domain.ErrMissingParameter)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return NewTransformError(t.Name(), "validate",
				fmt.Sprintf("factor for %s must be finite", name), domain.ErrInvalidDesign)
		}
	}
	return nil
}

// Apply appends the scenario. A design without scenarios first gains an explicit
// baseline so the unscaled evaluation stays in the results.
func (t *AddScenario) Apply(base *domain.Design) (*domain.Design, error) {
	out := Copy(base)
	if len(out.Scenarios) == 0 && t.Scenario.Name != domain.BaselineScenario.Name {
		out.Scenarios = append(out.Scenarios, domain.BaselineScenario)
	}
	sc := t.Scenario
	sc.Factors = make(map[string]float64, len(t.Scenario.Factors))
	for k, v := range t.Scenario.Factors {
		sc.Factors[k] = v
	}
	out.Scenarios = append(out.Scenarios, sc)
	return out, nil
}

// ScaleTrancheCosts multiplies tranche costs, of one category or of all when Category is empty
type ScaleTrancheCosts struct {
	Category string
	Factor   decimal.Decimal
}

func (t *ScaleTrancheCosts) Name() string { return "scale_tranche_costs" }

func (t *ScaleTrancheCosts) Description() string {
	target := "all categories"
	if t.Category != "" {
		target = t.Category
	}
	return fmt.Sprintf("Scale tranche costs of %s by %s", target, t.Factor)
}

func (t *ScaleTrancheCosts) Validate(base *domain.Design) error {
	if !t.Factor.IsPositive() {
		return NewTransformError(t.Name(), "validate",
			fmt.Sprintf("factor must be positive, got %s", t.Factor), domain.ErrInvalidInvestment)
	}
	if t.Category != "" && !slices.ContainsFunc(base.Tranches, func(tr domain.Tranche) bool { return tr.Category == t.Category }) {
		return NewTransformError(t.Name(), "validate",
			fmt.Sprintf("category %s has no tranches", t.Category), domain.ErrInvalidInvestment)
	}
	return nil
}

func (t *ScaleTrancheCosts) Apply(base *domain.Design) (*domain.Design, error) {
	out := Copy(base)
	for i := range out.Tranches {
		if t.Category == "" || out.Tranches[i].Category == t.Category {
			out.Tranches[i].Cost = out.Tranches[i].Cost.Mul(t.Factor)
		}
	}
	return out, nil
}

// DropTechnology removes a technology with its indices and parameters. Deltas naming
// it are removed, and so are tranches left without deltas or without a technology in
// their category.
type DropTechnology struct {
	Technology string
}

func (t *DropTechnology) Name() string { return "drop_technology" }

func (t *DropTechnology) Description() string {
	return fmt.Sprintf("Drop technology %s", t.Technology)
}

func (t *DropTechnology) Validate(base *domain.Design) error {
	if !slices.ContainsFunc(base.Technologies, func(tech domain.Technology) bool { return tech.Name == t.Technology }) {
		return NewTransformError(t.Name(), "validate",
			fmt.Sprintf("unknown technology %s", t.Technology), domain.ErrInvalidDesign)
	}
	if len(base.Technologies) == 1 {
		return NewTransformError(t.Name(), "validate", "cannot drop the only technology", domain.ErrInvalidDesign)
	}
	return nil
}

func (t *DropTechnology) Apply(base *domain.Design) (*domain.Design, error) {
	out := Copy(base)
	out.Technologies = slices.DeleteFunc(out.Technologies, func(tech domain.Technology) bool { return tech.Name == t.Technology })
	out.Indices = slices.DeleteFunc(out.Indices, func(idx domain.Index) bool { return idx.Technology == t.Technology })
	out.Parameters = slices.DeleteFunc(out.Parameters, func(p domain.Parameter) bool { return p.Technology == t.Technology })

	categories := make(map[string]bool)
	for _, tech := range out.Technologies {
		categories[tech.Category] = true
	}
	var tranches []domain.Tranche
	for _, tr := range out.Tranches {
		tr.Deltas = slices.DeleteFunc(tr.Deltas, func(d domain.Delta) bool { return d.Technology == t.Technology })
		if len(tr.Deltas) > 0 && categories[tr.Category] {
			tranches = append(tranches, tr)
		}
	}
	out.Tranches = tranches
	return out, nil
}

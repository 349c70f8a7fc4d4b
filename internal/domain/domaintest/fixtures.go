// Package domaintest provides small designs shared by the package tests.
package domaintest

import (
	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/tyche/internal/domain"
)

func constant(tech, name string, offset int, v float64) domain.Parameter {
	return domain.Parameter{Technology: tech, Name: name, Offset: offset, Value: domain.Constant(v)}
}

func uncertain(tech, name, text string) domain.Parameter {
	return domain.Parameter{Technology: tech, Name: name, Value: domain.DistributionSpec{Text: text}}
}

func tranche(category, name string, cost int64, param string, amount float64) domain.Tranche {
	return domain.Tranche{
		Category: category,
		Name:     name,
		Cost:     decimal.NewFromInt(cost),
		Deltas:   []domain.Delta{{Parameter: param, Amount: amount}},
	}
}

// TrancheDesign has one fully deterministic technology whose capital cost is
// 1000 * (1 - 0.1*tranche_level). Three tranches costing 1000, 2000 and 2000 each raise
// tranche_level by one.
func TrancheDesign() *domain.Design {
	const tech = "Widget"
	return &domain.Design{
		Name: "tranches",
		Technologies: []domain.Technology{{
			Name:       tech,
			Category:   "Widgets",
			Style:      domain.StyleGeneric,
			Capital:    []string{"1000 * (1 - 0.1 * tranche_level)"},
			Production: []string{"base_output * (1 + 0.5 * tranche_level)"},
			Metrics:    []string{"capital[0]", "output[0]"},
		}},
		Indices: []domain.Index{
			{Technology: tech, Role: domain.RoleCapital, Name: "plant"},
			{Technology: tech, Role: domain.RoleOutput, Name: "widgets"},
			{Technology: tech, Role: domain.RoleMetric, Name: "Capital", Offset: 0, Units: "USD", Sense: domain.SenseMin},
			{Technology: tech, Role: domain.RoleMetric, Name: "Output", Offset: 1, Units: "unit"},
		},
		Parameters: []domain.Parameter{
			constant(tech, domain.VarScale, 0, 1),
			constant(tech, domain.VarLifetime, 0, 1),
			constant(tech, domain.VarOutputEfficiency, 0, 1),
			constant(tech, domain.VarOutputPrice, 0, 0),
			constant(tech, "tranche_level", 0, 0),
			constant(tech, "base_output", 0, 100),
		},
		Tranches: []domain.Tranche{
			tranche("Widgets", "first", 1000, "tranche_level", 1),
			tranche("Widgets", "second", 2000, "tranche_level", 1),
			tranche("Widgets", "third", 2000, "tranche_level", 1),
		},
	}
}

// PortfolioDesign has two uncertain power technologies in separate categories.
// Wind returns more energy per dollar invested than Solar.
func PortfolioDesign() *domain.Design {
	d := &domain.Design{Name: "power"}
	add := func(tech, category, capital, production, capacity string, emissions float64) {
		d.Technologies = append(d.Technologies, domain.Technology{
			Name:       tech,
			Category:   category,
			Style:      domain.StyleGeneric,
			Capital:    []string{capital},
			Production: []string{production},
			Metrics:    []string{"output[0]", "emission_rate * output[0]", "cost"},
		})
		d.Indices = append(d.Indices,
			domain.Index{Technology: tech, Role: domain.RoleCapital, Name: "plant"},
			domain.Index{Technology: tech, Role: domain.RoleOutput, Name: "electricity"},
			domain.Index{Technology: tech, Role: domain.RoleMetric, Name: "Energy", Offset: 0, Units: "MWh"},
			domain.Index{Technology: tech, Role: domain.RoleMetric, Name: "Emissions", Offset: 1, Units: "tCO2e", Sense: domain.SenseMin},
			domain.Index{Technology: tech, Role: domain.RoleMetric, Name: "Cost", Offset: 2, Units: "USD/yr", Sense: domain.SenseMin},
		)
		d.Parameters = append(d.Parameters,
			constant(tech, domain.VarScale, 0, 1),
			constant(tech, domain.VarLifetime, 0, 20),
			constant(tech, domain.VarOutputEfficiency, 0, 1),
			constant(tech, domain.VarOutputPrice, 0, 0),
			constant(tech, "progress", 0, 0),
			constant(tech, "emission_rate", 0, emissions),
			uncertain(tech, "capacity_factor", capacity),
		)
	}
	add("PV", "Solar", "2000 * (1 - 0.1 * progress)", "1000 * capacity_factor * (1 + 0.2 * progress)", "triangular(0.18, 0.2, 0.22)", 0.05)
	add("Turbine", "Wind", "3000 * (1 - 0.1 * progress)", "1500 * capacity_factor * (1 + 0.3 * progress)", "uniform(0.3, 0.4)", 0.02)

	d.Tranches = []domain.Tranche{
		tranche("Solar", "cells", 1000000, "progress", 1),
		tranche("Solar", "inverters", 1000000, "progress", 1),
		tranche("Wind", "blades", 2000000, "progress", 1),
		tranche("Wind", "towers", 2000000, "progress", 1),
	}
	d.Scenarios = []domain.Scenario{
		{Name: "baseline"},
		{Name: "low-wind", Factors: map[string]float64{"capacity_factor": 0.8}},
	}
	return d
}

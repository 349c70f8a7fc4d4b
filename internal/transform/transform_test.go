package transform

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/tyche/internal/design"
	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/domain/domaintest"
)

func TestApplyTransforms_NilDesign(t *testing.T) {
	transforms := []DesignTransform{
		&DropTechnology{Technology: "PV"},
	}

	_, err := ApplyTransforms(nil, transforms)
	if err == nil {
		t.Error("Expected error for nil design, got nil")
	}
}

func TestApplyTransforms_EmptyTransforms(t *testing.T) {
	base := domaintest.PortfolioDesign()

	result, err := ApplyTransforms(base, nil)
	if err != nil {
		t.Fatalf("Expected no error for empty transforms, got: %v", err)
	}
	if result == base {
		t.Error("Expected a copy, not the base design")
	}
	if len(result.Technologies) != len(base.Technologies) {
		t.Errorf("Expected %d technologies, got %d", len(base.Technologies), len(result.Technologies))
	}
}

func TestApplyTransforms_NilTransform(t *testing.T) {
	_, err := ApplyTransforms(domaintest.PortfolioDesign(), []DesignTransform{nil})
	if err == nil {
		t.Error("Expected error for nil transform, got nil")
	}
}

func TestApplyTransforms_Sequence(t *testing.T) {
	base := domaintest.PortfolioDesign()
	transforms := []DesignTransform{
		&SetParameter{Technology: "PV", Parameter: "emission_rate", Value: domain.Constant(0)},
		&ScaleTrancheCosts{Category: "Wind", Factor: decimal.NewFromFloat(0.5)},
		&AddScenario{Scenario: domain.Scenario{Name: "calm", Factors: map[string]float64{"capacity_factor": 0.5}}},
	}

	result, err := ApplyTransforms(base, transforms)
	if err != nil {
		t.Fatalf("ApplyTransforms failed: %v", err)
	}

	for _, p := range result.Parameters {
		if p.Technology == "PV" && p.Name == "emission_rate" {
			if v, _ := p.Value.Param("value"); v != 0 {
				t.Errorf("Expected PV emission_rate 0, got %v", v)
			}
		}
	}
	for _, tr := range result.Tranches {
		if tr.Category == "Wind" && !tr.Cost.Equal(decimal.NewFromInt(1000000)) {
			t.Errorf("Expected %s cost halved to 1000000, got %s", tr.Name, tr.Cost)
		}
	}
	if len(result.Scenarios) != 3 || result.Scenarios[2].Name != "calm" {
		t.Errorf("Expected calm appended to the scenarios, got %v", result.Scenarios)
	}

	// the base design is untouched
	for _, p := range base.Parameters {
		if p.Technology == "PV" && p.Name == "emission_rate" {
			if v, _ := p.Value.Param("value"); v != 0.05 {
				t.Errorf("Base design modified: emission_rate %v", v)
			}
		}
	}
	if !base.Tranches[2].Cost.Equal(decimal.NewFromInt(2000000)) {
		t.Errorf("Base tranche cost modified: %s", base.Tranches[2].Cost)
	}
	if len(base.Scenarios) != 2 {
		t.Errorf("Base scenarios modified: %v", base.Scenarios)
	}

	if _, err := design.Compile(result); err != nil {
		t.Errorf("Transformed design does not compile: %v", err)
	}
}

func TestApplyTransforms_ValidationFailure(t *testing.T) {
	transforms := []DesignTransform{
		&SetParameter{Technology: "PV", Parameter: "albedo", Value: domain.Constant(1)},
	}

	_, err := ApplyTransforms(domaintest.PortfolioDesign(), transforms)
	if err == nil {
		t.Fatal("Expected validation error, got nil")
	}
	if !errors.Is(err, domain.ErrMissingParameter) {
		t.Errorf("Expected ErrMissingParameter, got %v", err)
	}
	var te *TransformError
	if !errors.As(err, &te) || te.TransformName != "set_parameter" {
		t.Errorf("Expected a set_parameter TransformError, got %v", err)
	}
}

func TestAddScenario(t *testing.T) {
	base := domaintest.TrancheDesign()

	tests := []struct {
		name     string
		scenario domain.Scenario
		wantErr  bool
	}{
		{"valid", domain.Scenario{Name: "boost", Factors: map[string]float64{"base_output": 1.2}}, false},
		{"empty name", domain.Scenario{Factors: map[string]float64{"base_output": 1.2}}, true},
		{"unknown parameter", domain.Scenario{Name: "boost", Factors: map[string]float64{"albedo": 2}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&AddScenario{Scenario: tt.scenario}).Validate(base)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	result, err := (&AddScenario{Scenario: tests[0].scenario}).Apply(base)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(result.Scenarios) != 2 || result.Scenarios[0].Name != domain.BaselineScenario.Name {
		t.Errorf("Expected baseline then boost, got %v", result.Scenarios)
	}

	if err := (&AddScenario{Scenario: domain.Scenario{Name: "boost"}}).Validate(result); err == nil {
		t.Error("Expected duplicate scenario error")
	}
}

func TestScaleTrancheCosts(t *testing.T) {
	base := domaintest.TrancheDesign()

	all := &ScaleTrancheCosts{Factor: decimal.NewFromInt(2)}
	result, err := ApplyTransforms(base, []DesignTransform{all})
	if err != nil {
		t.Fatalf("ApplyTransforms failed: %v", err)
	}
	total := decimal.Zero
	for _, tr := range result.Tranches {
		total = total.Add(tr.Cost)
	}
	if !total.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("Expected total tranche cost 10000, got %s", total)
	}

	if err := (&ScaleTrancheCosts{Factor: decimal.Zero}).Validate(base); err == nil {
		t.Error("Expected error for zero factor")
	}
	if err := (&ScaleTrancheCosts{Category: "Gadgets", Factor: decimal.NewFromInt(1)}).Validate(base); err == nil {
		t.Error("Expected error for category without tranches")
	}
}

func TestDropTechnology(t *testing.T) {
	base := domaintest.PortfolioDesign()

	result, err := ApplyTransforms(base, []DesignTransform{&DropTechnology{Technology: "Turbine"}})
	if err != nil {
		t.Fatalf("ApplyTransforms failed: %v", err)
	}
	if len(result.Technologies) != 1 || result.Technologies[0].Name != "PV" {
		t.Errorf("Expected only PV, got %v", result.Technologies)
	}
	for _, idx := range result.Indices {
		if idx.Technology == "Turbine" {
			t.Errorf("Index of dropped technology kept: %v", idx)
		}
	}
	for _, tr := range result.Tranches {
		if tr.Category == "Wind" {
			t.Errorf("Tranche of emptied category kept: %s", tr.Name)
		}
	}
	if len(result.Tranches) != 2 {
		t.Errorf("Expected the 2 Solar tranches, got %d", len(result.Tranches))
	}

	compiled, err := design.Compile(result)
	if err != nil {
		t.Fatalf("Transformed design does not compile: %v", err)
	}
	if got := compiled.Categories(); len(got) != 1 || got[0] != "Solar" {
		t.Errorf("Expected only the Solar category, got %v", got)
	}

	if err := (&DropTechnology{Technology: "PV"}).Validate(result); err == nil {
		t.Error("Expected error when dropping the only technology")
	}
	if err := (&DropTechnology{Technology: "Hydro"}).Validate(base); err == nil {
		t.Error("Expected error for unknown technology")
	}
}

func TestDescriptions(t *testing.T) {
	transforms := []DesignTransform{
		&SetParameter{Technology: "PV", Parameter: "capacity_factor", Value: domain.DistributionSpec{Text: "uniform(0.2, 0.3)"}},
		&AddScenario{Scenario: domain.Scenario{Name: "calm"}},
		&ScaleTrancheCosts{Factor: decimal.NewFromInt(2)},
		&DropTechnology{Technology: "PV"},
	}
	want := []string{
		"Set PV.capacity_factor[0] to uniform(0.2, 0.3)",
		"Add scenario calm scaling 0 parameters",
		"Scale tranche costs of all categories by 2",
		"Drop technology PV",
	}
	for i, tr := range transforms {
		if got := tr.Description(); got != want[i] {
			t.Errorf("%s: Description() = %q, want %q", tr.Name(), got, want[i])
		}
	}
}

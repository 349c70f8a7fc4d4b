package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rgehrsitz/tyche/internal/design"
	"github.com/rgehrsitz/tyche/internal/domain"
)

// InputParser handles parsing of design table files
type InputParser struct{}

// NewInputParser creates a new input parser
func NewInputParser() *InputParser {
	return &InputParser{}
}

// LoadFromFile loads a design from a YAML or JSON file
func (ip *InputParser) LoadFromFile(filename string) (*domain.Design, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	d, err := ip.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return d, nil
}

// Parse decodes and validates a design document
func (ip *InputParser) Parse(data []byte) (*domain.Design, error) {
	var d domain.Design
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := ip.ValidateDesign(&d); err != nil {
		return nil, fmt.Errorf("design validation failed: %w", err)
	}
	return &d, nil
}

// LoadAndCompile loads a design file and compiles it
func (ip *InputParser) LoadAndCompile(filename string) (*domain.Design, *design.Compiled, error) {
	d, err := ip.LoadFromFile(filename)
	if err != nil {
		return nil, nil, err
	}
	compiled, err := design.Compile(d)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compile %s: %w", filename, err)
	}
	return d, compiled, nil
}

// ValidateDesign checks the table structure: names, references between tables, roles,
// styles and tranche costs. Expressions and distributions are checked by the compiler.
func (ip *InputParser) ValidateDesign(d *domain.Design) error {
	if len(d.Technologies) == 0 {
		return fmt.Errorf("no technologies provided")
	}

	categories := make(map[string]bool)
	technologies := make(map[string]bool)
	for i, tech := range d.Technologies {
		if err := ip.validateTechnology(&tech); err != nil {
			return fmt.Errorf("technology %d (%s) validation failed: %w", i, tech.Name, err)
		}
		if technologies[tech.Name] {
			return fmt.Errorf("duplicate technology %q", tech.Name)
		}
		technologies[tech.Name] = true
		categories[tech.Category] = true
	}

	for i, idx := range d.Indices {
		if err := ip.validateIndex(&idx, technologies); err != nil {
			return fmt.Errorf("index %d (%s) validation failed: %w", i, idx.Name, err)
		}
	}

	for i, p := range d.Parameters {
		if !technologies[p.Technology] {
			return fmt.Errorf("parameter %d (%s) references unknown technology %q", i, p.Name, p.Technology)
		}
		if p.Name == "" {
			return fmt.Errorf("parameter %d of %s: name is required", i, p.Technology)
		}
		if p.Offset < 0 {
			return fmt.Errorf("parameter %d (%s): offset cannot be negative", i, p.Name)
		}
	}

	for i, tr := range d.Tranches {
		if err := ip.validateTranche(&tr, categories, technologies); err != nil {
			return fmt.Errorf("tranche %d (%s) validation failed: %w", i, tr.Name, err)
		}
	}

	seen := make(map[string]bool)
	for i, sc := range d.Scenarios {
		if sc.Name == "" {
			return fmt.Errorf("scenario %d: name is required", i)
		}
		if seen[sc.Name] {
			return fmt.Errorf("duplicate scenario %q", sc.Name)
		}
		seen[sc.Name] = true
	}
	return nil
}

// validateTechnology validates a single technology row
func (ip *InputParser) validateTechnology(tech *domain.Technology) error {
	if tech.Name == "" {
		return fmt.Errorf("name is required")
	}
	if tech.Category == "" {
		return fmt.Errorf("category is required")
	}
	switch tech.Style {
	case domain.StyleLeontief, domain.StyleLinear:
		if len(tech.Production) > 0 {
			return fmt.Errorf("%s style does not take production expressions", tech.Style)
		}
	case domain.StyleGeneric:
	default:
		return fmt.Errorf("unknown production style %q (want leontief, linear or generic)", tech.Style)
	}
	if len(tech.Metrics) == 0 {
		return fmt.Errorf("at least one metric expression is required")
	}
	return nil
}

// validateIndex validates a single index row
func (ip *InputParser) validateIndex(idx *domain.Index, technologies map[string]bool) error {
	if !technologies[idx.Technology] {
		return fmt.Errorf("unknown technology %q", idx.Technology)
	}
	if idx.Name == "" {
		return fmt.Errorf("name is required")
	}
	if idx.Offset < 0 {
		return fmt.Errorf("offset cannot be negative")
	}
	switch idx.Role {
	case domain.RoleCapital, domain.RoleFixed, domain.RoleInput, domain.RoleOutput:
		if idx.Aggregate != "" || idx.Sense != "" {
			return fmt.Errorf("aggregate and sense apply to metric indices only")
		}
	case domain.RoleMetric:
		switch idx.Aggregate {
		case "", domain.AggregateSum, domain.AggregateMean:
		default:
			return fmt.Errorf("unknown aggregate %q (want sum or mean)", idx.Aggregate)
		}
		switch idx.Sense {
		case "", domain.SenseMax, domain.SenseMin:
		default:
			return fmt.Errorf("unknown sense %q (want max or min)", idx.Sense)
		}
	default:
		return fmt.Errorf("unknown role %q", idx.Role)
	}
	return nil
}

// validateTranche validates a single tranche row
func (ip *InputParser) validateTranche(tr *domain.Tranche, categories, technologies map[string]bool) error {
	if tr.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !categories[tr.Category] {
		return fmt.Errorf("unknown category %q", tr.Category)
	}
	if tr.Cost.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("cost must be positive, got %s", tr.Cost)
	}
	for _, delta := range tr.Deltas {
		if delta.Technology != "" && !technologies[delta.Technology] {
			return fmt.Errorf("delta references unknown technology %q", delta.Technology)
		}
		if delta.Parameter == "" {
			return fmt.Errorf("delta parameter is required")
		}
		if delta.Amount < 0 {
			return fmt.Errorf("delta on %s cannot be negative", delta.Parameter)
		}
	}
	return nil
}

// WriteFile writes a design back out as YAML
func (ip *InputParser) WriteFile(filename string, d *domain.Design) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode design: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", filename, err)
	}
	return nil
}

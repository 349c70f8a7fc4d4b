package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DistributionSpec is the declarative form of a probability distribution.
//
// In YAML a spec may be written three ways:
//
//	value: 42                                   # constant
//	value: "triangular(0.6, 0.65, 0.7)"         # text form
//	value: {kind: uniform, min: 1, max: 2}      # mapping form
//
// The text form is resolved by the distribution package.
type DistributionSpec struct {
	Kind       string             `json:"kind,omitempty"`
	Params     map[string]float64 `json:"params,omitempty"`
	Values     []float64          `json:"values,omitempty"`
	Weights    []float64          `json:"weights,omitempty"`
	Components []DistributionSpec `json:"components,omitempty"`
	Text       string             `json:"text,omitempty"`
}

// Constant returns a spec for a degenerate distribution at v
func Constant(v float64) DistributionSpec {
	return DistributionSpec{Kind: "constant", Params: map[string]float64{"value": v}}
}

// Param returns a named parameter and whether it was set
func (s DistributionSpec) Param(name string) (float64, bool) {
	v, ok := s.Params[name]
	return v, ok
}

// String renders the spec in text form
func (s DistributionSpec) String() string {
	if s.Text != "" {
		return s.Text
	}
	if s.Kind == "constant" {
		return strconv.FormatFloat(s.Params["value"], 'g', -1, 64)
	}
	var parts []string
	for _, k := range sortedKeys(s.Params) {
		parts = append(parts, fmt.Sprintf("%s=%g", k, s.Params[k]))
	}
	if len(s.Values) > 0 {
		parts = append(parts, fmt.Sprintf("values=%v", s.Values))
	}
	if len(s.Weights) > 0 {
		parts = append(parts, fmt.Sprintf("weights=%v", s.Weights))
	}
	for _, c := range s.Components {
		parts = append(parts, c.String())
	}
	return fmt.Sprintf("%s(%s)", s.Kind, strings.Join(parts, ", "))
}

type distributionFields struct {
	Kind       string             `yaml:"kind"`
	Values     []float64          `yaml:"values,omitempty"`
	Weights    []float64          `yaml:"weights,omitempty"`
	Components []DistributionSpec `yaml:"components,omitempty"`
	Params     map[string]float64 `yaml:",inline"`
}

// UnmarshalYAML accepts a number, a text form string or a mapping
func (s *DistributionSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if v, err := strconv.ParseFloat(strings.TrimSpace(node.Value), 64); err == nil {
			*s = Constant(v)
			return nil
		}
		*s = DistributionSpec{Text: strings.TrimSpace(node.Value)}
		return nil
	case yaml.MappingNode:
		var f distributionFields
		if err := node.Decode(&f); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*s = DistributionSpec{
			Kind:       strings.ToLower(f.Kind),
			Params:     f.Params,
			Values:     f.Values,
			Weights:    f.Weights,
			Components: f.Components,
		}
		return nil
	default:
		return fmt.Errorf("line %d: distribution must be a number, a string or a mapping", node.Line)
	}
}

// MarshalYAML writes constants as plain numbers and everything else in mapping form
func (s DistributionSpec) MarshalYAML() (interface{}, error) {
	if s.Text != "" {
		return s.Text, nil
	}
	if s.Kind == "constant" && len(s.Params) == 1 {
		return s.Params["value"], nil
	}
	return distributionFields{
		Kind:       s.Kind,
		Values:     s.Values,
		Weights:    s.Weights,
		Components: s.Components,
		Params:     s.Params,
	}, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

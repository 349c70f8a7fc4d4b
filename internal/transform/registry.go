package transform

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/tyche/internal/domain"
)

// TransformRegistry provides a central registry for all available transforms.
// It enables creation of transforms from string parameters, useful for CLI commands.
type TransformRegistry struct {
	factories map[string]TransformFactory
}

// TransformFactory is a function that creates a transform from parameters.
type TransformFactory func(params map[string]string) (DesignTransform, error)

// NewTransformRegistry creates a new registry with all built-in transforms registered.
func NewTransformRegistry() *TransformRegistry {
	registry := &TransformRegistry{
		factories: make(map[string]TransformFactory),
	}

	registry.Register("set_parameter", createSetParameter)
	registry.Register("add_scenario", createAddScenario)
	registry.Register("scale_tranche_costs", createScaleTrancheCosts)
	registry.Register("drop_technology", createDropTechnology)

	return registry
}

// Register adds a transform factory to the registry.
func (r *TransformRegistry) Register(name string, factory TransformFactory) {
	r.factories[name] = factory
}

// Create creates a transform by name with the given parameters.
func (r *TransformRegistry) Create(name string, params map[string]string) (DesignTransform, error) {
	factory, exists := r.factories[name]
	if !exists {
		return nil, fmt.Errorf("unknown transform: %s", name)
	}

	return factory(params)
}

// List returns the names of all registered transforms in order.
func (r *TransformRegistry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseTransformSpec parses a transform specification string.
// Format: "transform_name:param1=value1,param2=value2"
// Example: "set_parameter:technology=PV,parameter=capacity_factor,value=0.25"
//
// Distribution values contain commas, so a value may be wrapped in single quotes:
// "set_parameter:technology=PV,parameter=capacity_factor,value='uniform(0.2, 0.3)'"
func (r *TransformRegistry) ParseTransformSpec(spec string) (DesignTransform, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid transform spec format, expected 'name:params', got: %s", spec)
	}

	name := strings.TrimSpace(parts[0])
	paramsStr := strings.TrimSpace(parts[1])

	params := make(map[string]string)
	if paramsStr != "" {
		pairs, err := splitParams(paramsStr)
		if err != nil {
			return nil, err
		}
		for _, paramPair := range pairs {
			kv := strings.SplitN(paramPair, "=", 2)
			if len(kv) != 2 {
				return nil, fmt.Errorf("invalid parameter format, expected 'key=value', got: %s", paramPair)
			}
			params[strings.TrimSpace(kv[0])] = strings.Trim(strings.TrimSpace(kv[1]), "'")
		}
	}

	return r.Create(name, params)
}

// ParseAll parses every spec in order
func (r *TransformRegistry) ParseAll(specs []string) ([]DesignTransform, error) {
	out := make([]DesignTransform, 0, len(specs))
	for _, spec := range specs {
		t, err := r.ParseTransformSpec(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// splitParams splits on commas outside single quotes
func splitParams(s string) ([]string, error) {
	var parts []string
	quoted := false
	start := 0
	for i, c := range s {
		switch {
		case c == '\'':
			quoted = !quoted
		case c == ',' && !quoted:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote in transform parameters: %s", s)
	}
	return append(parts, s[start:]), nil
}

// Factory functions for each transform

func createSetParameter(params map[string]string) (DesignTransform, error) {
	technology, ok := params["technology"]
	if !ok {
		return nil, fmt.Errorf("set_parameter requires 'technology' parameter")
	}

	parameter, ok := params["parameter"]
	if !ok {
		return nil, fmt.Errorf("set_parameter requires 'parameter' parameter")
	}

	valueStr, ok := params["value"]
	if !ok || valueStr == "" {
		return nil, fmt.Errorf("set_parameter requires 'value' parameter")
	}

	offset := 0
	if offsetStr, ok := params["offset"]; ok {
		v, err := strconv.Atoi(offsetStr)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("invalid offset value: %s", offsetStr)
		}
		offset = v
	}

	value := domain.DistributionSpec{Text: valueStr}
	if v, err := strconv.ParseFloat(valueStr, 64); err == nil {
		value = domain.Constant(v)
	}

	return &SetParameter{
		Technology: technology,
		Parameter:  parameter,
		Offset:     offset,
		Value:      value,
	}, nil
}

func createAddScenario(params map[string]string) (DesignTransform, error) {
	name, ok := params["name"]
	if !ok {
		return nil, fmt.Errorf("add_scenario requires 'name' parameter")
	}

	factors := make(map[string]float64)
	for key, valueStr := range params {
		if key == "name" {
			continue
		}
		v, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid factor for %s: %w", key, err)
		}
		factors[key] = v
	}
	if len(factors) == 0 {
		return nil, fmt.Errorf("add_scenario requires at least one parameter factor")
	}

	return &AddScenario{Scenario: domain.Scenario{Name: name, Factors: factors}}, nil
}

func createScaleTrancheCosts(params map[string]string) (DesignTransform, error) {
	factorStr, ok := params["factor"]
	if !ok {
		return nil, fmt.Errorf("scale_tranche_costs requires 'factor' parameter")
	}

	factor, err := decimal.NewFromString(factorStr)
	if err != nil {
		return nil, fmt.Errorf("invalid factor value: %w", err)
	}

	return &ScaleTrancheCosts{
		Category: params["category"],
		Factor:   factor,
	}, nil
}

func createDropTechnology(params map[string]string) (DesignTransform, error) {
	technology, ok := params["technology"]
	if !ok {
		return nil, fmt.Errorf("drop_technology requires 'technology' parameter")
	}

	return &DropTechnology{Technology: technology}, nil
}

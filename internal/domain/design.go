package domain

import (
	"github.com/shopspring/decimal"
)

// ProductionStyle selects how a technology turns inputs into outputs
type ProductionStyle string

const (
	// StyleLeontief is fixed-proportions production: the scarcest input limits every output
	StyleLeontief ProductionStyle = "leontief"
	// StyleLinear treats inputs as perfect substitutes
	StyleLinear ProductionStyle = "linear"
	// StyleGeneric evaluates one declared expression per output
	StyleGeneric ProductionStyle = "generic"
)

// Role is the semantic role of an indexed quantity
type Role string

const (
	RoleCapital Role = "capital"
	RoleFixed   Role = "fixed"
	RoleInput   Role = "input"
	RoleOutput  Role = "output"
	RoleMetric  Role = "metric"
)

// Aggregate says how a metric combines across the technologies of a portfolio
type Aggregate string

const (
	AggregateSum  Aggregate = "sum"
	AggregateMean Aggregate = "mean"
)

// Sense is the preferred direction of a metric
type Sense string

const (
	SenseMax Sense = "max"
	SenseMin Sense = "min"
)

// Reserved design variable names. They are declared in the parameter table like any
// other parameter and bound to the role indices of their technology.
const (
	VarScale            = "scale"
	VarLifetime         = "lifetime"
	VarInput            = "input"
	VarInputEfficiency  = "input_efficiency"
	VarInputPrice       = "input_price"
	VarOutputEfficiency = "output_efficiency"
	VarOutputPrice      = "output_price"
	VarRequirement      = "requirement"
	VarYield            = "yield"
)

// Design is the complete tabular input of one analysis
type Design struct {
	Name         string       `yaml:"name" json:"name"`
	Description  string       `yaml:"description,omitempty" json:"description,omitempty"`
	Technologies []Technology `yaml:"technologies" json:"technologies"`
	Indices      []Index      `yaml:"indices" json:"indices"`
	Parameters   []Parameter  `yaml:"parameters" json:"parameters"`
	Tranches     []Tranche    `yaml:"tranches,omitempty" json:"tranches,omitempty"`
	Scenarios    []Scenario   `yaml:"scenarios,omitempty" json:"scenarios,omitempty"`
}

// Technology declares one production pathway and its function expressions by role
type Technology struct {
	Name       string          `yaml:"name" json:"name"`
	Category   string          `yaml:"category" json:"category"`
	Style      ProductionStyle `yaml:"style" json:"style"`
	Capital    []string        `yaml:"capital" json:"capital"`
	Fixed      []string        `yaml:"fixed" json:"fixed"`
	Production []string        `yaml:"production,omitempty" json:"production,omitempty"`
	Metrics    []string        `yaml:"metrics" json:"metrics"`
}

// Index assigns a named, ordered slot of a role to a technology
type Index struct {
	Technology string    `yaml:"technology" json:"technology"`
	Role       Role      `yaml:"role" json:"role"`
	Name       string    `yaml:"name" json:"name"`
	Offset     int       `yaml:"offset" json:"offset"`
	Units      string    `yaml:"units,omitempty" json:"units,omitempty"`
	Aggregate  Aggregate `yaml:"aggregate,omitempty" json:"aggregate,omitempty"`
	Sense      Sense     `yaml:"sense,omitempty" json:"sense,omitempty"`
}

// Parameter binds one element of a named quantity to a distribution
type Parameter struct {
	Technology string           `yaml:"technology" json:"technology"`
	Name       string           `yaml:"name" json:"name"`
	Offset     int              `yaml:"offset" json:"offset"`
	Value      DistributionSpec `yaml:"value" json:"value"`
	Units      string           `yaml:"units,omitempty" json:"units,omitempty"`
}

// Scenario is a named set of scale factors applied to every technology during one pass.
// Factors are keyed by parameter name.
type Scenario struct {
	Name    string             `yaml:"name" json:"name"`
	Factors map[string]float64 `yaml:"factors,omitempty" json:"factors,omitempty"`
}

// BaselineScenario is used when an evaluation is requested without scenarios
var BaselineScenario = Scenario{Name: "baseline"}

// Tranche is one purchasable increment of improvement for a category
type Tranche struct {
	Category string          `yaml:"category" json:"category"`
	Name     string          `yaml:"name" json:"name"`
	Cost     decimal.Decimal `yaml:"cost" json:"cost"`
	Deltas   []Delta         `yaml:"deltas" json:"deltas"`
}

// Delta is an additive, non-negative change to one parameter element.
// An empty Technology applies the change to every technology of the tranche's category
// that declares the parameter.
type Delta struct {
	Technology string  `yaml:"technology,omitempty" json:"technology,omitempty"`
	Parameter  string  `yaml:"parameter" json:"parameter"`
	Offset     int     `yaml:"offset,omitempty" json:"offset,omitempty"`
	Amount     float64 `yaml:"amount" json:"amount"`
}

// Investment maps category to a non-negative monetary amount
type Investment map[string]float64

// Total returns the summed investment across categories
func (inv Investment) Total() float64 {
	total := 0.0
	for _, amount := range inv {
		total += amount
	}
	return total
}

// Clone returns an independent copy
func (inv Investment) Clone() Investment {
	out := make(Investment, len(inv))
	for k, v := range inv {
		out[k] = v
	}
	return out
}

// ParameterKey addresses one element of a technology parameter
type ParameterKey struct {
	Technology string
	Parameter  string
	Offset     int
}

// AppliedTranche is a tranche as actually purchased by an allocation
type AppliedTranche struct {
	Category string          `json:"category"`
	Name     string          `json:"name"`
	Cost     decimal.Decimal `json:"cost"`
	Fraction float64         `json:"fraction"`
	Deltas   []Delta         `json:"deltas"`
}

// Partial reports whether the tranche was bought at less than its full cost
func (a AppliedTranche) Partial() bool {
	return a.Fraction < 1
}

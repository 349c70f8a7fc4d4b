package design

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/rgehrsitz/tyche/internal/domain"
)

// production is the closed set of production rules. Adding a style means adding a case here.
type production struct {
	style domain.ProductionStyle
	exprs []vectorFunc
}

// evaluate returns the raw output vectors, one per output index
func (p production) evaluate(t *Technology, f *Frame) [][]float64 {
	out := make([][]float64, len(t.Outputs))
	switch p.style {
	case domain.StyleGeneric:
		for j, fn := range p.exprs {
			out[j] = fn(f)
		}
	case domain.StyleLeontief, domain.StyleLinear:
		activity := make([]float64, f.N)
		for s := range activity {
			a := 0.0
			if p.style == domain.StyleLeontief {
				a = math.Inf(1)
			}
			for i := range t.input {
				r := f.Vars[t.input[i]][s] / f.Vars[t.requirement[i]][s]
				if p.style == domain.StyleLeontief {
					a = math.Min(a, r)
				} else {
					a += r
				}
			}
			activity[s] = a
		}
		for j := range out {
			out[j] = multiply(f.Vars[t.yield[j]], activity)
		}
	}
	return out
}

// Outcome holds every evaluated quantity of a technology for one batch of samples
type Outcome struct {
	N         int
	Capital   [][]float64
	Fixed     [][]float64
	InputRaw  [][]float64
	Input     [][]float64
	OutputRaw [][]float64
	Output    [][]float64
	Cost      []float64
	// Metrics follow the order of Technology.Metrics
	Metrics [][]float64
}

// Evaluate runs the capital, fixed, production, cost and metric functions.
// values holds one vector per element of Parameters(), all of equal length, already
// adjusted for investments and scenario factors. The vectors are not modified.
func (t *Technology) Evaluate(values [][]float64) (*Outcome, error) {
	if len(values) != len(t.params) {
		return nil, fmt.Errorf("technology %s: %d parameter vectors for %d parameters", t.Name, len(values), len(t.params))
	}
	n := len(values[0])
	f := &Frame{N: n, Vars: make([][]float64, t.slotCount)}
	for i, p := range t.params {
		if len(values[i]) != n {
			return nil, fmt.Errorf("technology %s: parameter %s[%d] has %d samples, expected %d",
				t.Name, p.Name, p.Offset, len(values[i]), n)
		}
		f.Vars[p.slot] = values[i]
	}

	for i := range t.input {
		f.Vars[t.input[i]] = multiply(f.Vars[t.inputEff[i]], f.Vars[t.inputRaw[i]])
	}
	for k, fn := range t.capitalFns {
		f.Vars[t.capital[k]] = fn(f)
	}
	for k, fn := range t.fixedFns {
		f.Vars[t.fixed[k]] = fn(f)
	}
	raw := t.production.evaluate(t, f)
	for j := range raw {
		f.Vars[t.outputRaw[j]] = raw[j]
		f.Vars[t.output[j]] = multiply(f.Vars[t.outputEff[j]], raw[j])
	}
	f.Vars[t.cost] = t.costOf(f)

	metrics := make([][]float64, len(t.metricFns))
	for m, fn := range t.metricFns {
		metrics[m] = fn(f)
	}

	return &Outcome{
		N:         n,
		Capital:   gather(f, t.capital),
		Fixed:     gather(f, t.fixed),
		InputRaw:  gather(f, t.inputRaw),
		Input:     gather(f, t.input),
		OutputRaw: gather(f, t.outputRaw),
		Output:    gather(f, t.output),
		Cost:      f.Vars[t.cost],
		Metrics:   metrics,
	}, nil
}

// costOf is the levelized cost per unit of scale:
// annualized capital and fixed costs over scale, plus inputs bought, less outputs sold
func (t *Technology) costOf(f *Frame) []float64 {
	scale := f.Vars[t.scale]
	cost := make([]float64, f.N)
	for s := range cost {
		c := 0.0
		for k := range t.capital {
			c += f.Vars[t.capital[k]][s] / f.Vars[t.lifetime[k]][s]
		}
		for k := range t.fixed {
			c += f.Vars[t.fixed[k]][s]
		}
		c /= scale[s]
		for i := range t.input {
			c += f.Vars[t.inputPrice[i]][s] * f.Vars[t.input[i]][s]
		}
		for j := range t.output {
			c -= f.Vars[t.outputPrice[j]][s] * f.Vars[t.output[j]][s]
		}
		cost[s] = c
	}
	return cost
}

func multiply(a, b []float64) []float64 {
	return floats.MulTo(make([]float64, len(a)), a, b)
}

func gather(f *Frame, slots []int) [][]float64 {
	out := make([][]float64, len(slots))
	for i, s := range slots {
		out[i] = f.Vars[s]
	}
	return out
}

package distribution

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler draws values of one uncertain quantity.
//
// Degenerate samplers never read from rng, so constant parameters can be broadcast
// without disturbing the pseudo-random stream of the other parameters.
type Sampler interface {
	// Draw returns n independent values
	Draw(rng *rand.Rand, n int) []float64
	// IsDegenerate reports whether every draw is the same value
	IsDegenerate() bool
	// Value is the value of a degenerate sampler and the mean otherwise
	Value() float64
	String() string
}

type constant struct {
	value float64
}

func (c constant) Draw(_ *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = c.value
	}
	return out
}

func (c constant) IsDegenerate() bool { return true }
func (c constant) Value() float64     { return c.value }
func (c constant) String() string     { return strconv.FormatFloat(c.value, 'g', -1, 64) }

// rander is satisfied by every gonum univariate distribution
type rander interface {
	Rand() float64
}

// continuous adapts a gonum distribution built around the caller's source
type continuous struct {
	label  string
	mean   float64
	build  func(src rand.Source) rander
	affine func(float64) float64
}

func (c continuous) Draw(rng *rand.Rand, n int) []float64 {
	d := c.build(rng)
	out := make([]float64, n)
	for i := range out {
		v := d.Rand()
		if c.affine != nil {
			v = c.affine(v)
		}
		out[i] = v
	}
	return out
}

func (c continuous) IsDegenerate() bool { return false }
func (c continuous) Value() float64     { return c.mean }
func (c continuous) String() string     { return c.label }

// discrete chooses among a finite set of values with normalized weights
type discrete struct {
	values  []float64
	weights []float64
}

func (d discrete) Draw(rng *rand.Rand, n int) []float64 {
	if d.IsDegenerate() {
		return constant{value: d.Value()}.Draw(rng, n)
	}
	cat := distuv.NewCategorical(d.weights, rng)
	out := make([]float64, n)
	for i := range out {
		out[i] = d.values[int(cat.Rand())]
	}
	return out
}

func (d discrete) IsDegenerate() bool {
	first := true
	var seen float64
	for i, w := range d.weights {
		if w == 0 {
			continue
		}
		if first {
			seen, first = d.values[i], false
			continue
		}
		if d.values[i] != seen {
			return false
		}
	}
	return true
}

func (d discrete) Value() float64 {
	if d.IsDegenerate() {
		for i, w := range d.weights {
			if w > 0 {
				return d.values[i]
			}
		}
	}
	mean := 0.0
	for i, w := range d.weights {
		mean += w * d.values[i]
	}
	return mean
}

func (d discrete) String() string {
	return fmt.Sprintf("discrete(%v, %v)", d.values, d.weights)
}

// mixture draws each value from a component chosen by weight
type mixture struct {
	weights    []float64
	components []Sampler
}

func (m mixture) Draw(rng *rand.Rand, n int) []float64 {
	if m.IsDegenerate() {
		return constant{value: m.Value()}.Draw(rng, n)
	}
	cat := distuv.NewCategorical(m.weights, rng)
	out := make([]float64, n)
	for i := range out {
		out[i] = m.components[int(cat.Rand())].Draw(rng, 1)[0]
	}
	return out
}

func (m mixture) IsDegenerate() bool {
	first := true
	var seen float64
	for i, w := range m.weights {
		if w == 0 {
			continue
		}
		c := m.components[i]
		if !c.IsDegenerate() {
			return false
		}
		if first {
			seen, first = c.Value(), false
			continue
		}
		if c.Value() != seen {
			return false
		}
	}
	return true
}

func (m mixture) Value() float64 {
	if m.IsDegenerate() {
		for i, w := range m.weights {
			if w > 0 {
				return m.components[i].Value()
			}
		}
	}
	mean := 0.0
	for i, w := range m.weights {
		mean += w * m.components[i].Value()
	}
	return mean
}

func (m mixture) String() string {
	return fmt.Sprintf("mixture(%v, %v)", m.weights, m.components)
}

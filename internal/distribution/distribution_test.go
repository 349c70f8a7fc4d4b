package distribution

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgehrsitz/tyche/internal/domain"
)

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(42, 7))
}

func TestConstantDoesNotConsumeRandomness(t *testing.T) {
	s, err := Parse(domain.Constant(3.5))
	require.NoError(t, err)
	assert.True(t, s.IsDegenerate())

	rng := newRand()
	values := s.Draw(rng, 5)
	assert.Equal(t, []float64{3.5, 3.5, 3.5, 3.5, 3.5}, values)

	// the stream must be untouched
	assert.Equal(t, newRand().Uint64(), rng.Uint64())
}

func TestDegenerateShortcuts(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"plain number", "7", 7},
		{"negative number", "-2.5", -2.5},
		{"uniform with zero width", "uniform(2, 2)", 2},
		{"triangular with zero width", "triangular(4, 4, 4)", 4},
		{"normal with zero sd", "normal(10, 0)", 10},
		{"discrete single value", "discrete([5, 5], [0.3, 0.7])", 5},
		{"mixture of equal constants", "mixture([1, 3], [constant(1.5), 1.5])", 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ParseText(tt.text)
			require.NoError(t, err)
			s, err := Parse(spec)
			require.NoError(t, err)
			assert.True(t, s.IsDegenerate())
			assert.Equal(t, tt.want, s.Value())
			for _, v := range s.Draw(newRand(), 10) {
				assert.Equal(t, tt.want, v)
			}
		})
	}
}

func TestDrawsStayInSupport(t *testing.T) {
	tests := []struct {
		text   string
		lo, hi float64
	}{
		{"uniform(1, 3)", 1, 3},
		{"triangular(0.6, 0.65, 0.7)", 0.6, 0.7},
		{"beta(2, 5, 10, 20)", 10, 20},
		{"discrete([1, 2, 3], [0.2, 0.5, 0.3])", 1, 3},
		{"mixture([0.5, 0.5], [uniform(0, 1), uniform(5, 6)])", 0, 6},
		{"exponential(2)", 0, math.Inf(1)},
		{"lognormal(0, 0.5)", 0, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			spec, err := ParseText(tt.text)
			require.NoError(t, err)
			s, err := Parse(spec)
			require.NoError(t, err)
			assert.False(t, s.IsDegenerate())

			values := s.Draw(newRand(), 2000)
			require.Len(t, values, 2000)
			for _, v := range values {
				assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "draw %v not finite", v)
				assert.GreaterOrEqual(t, v, tt.lo)
				assert.LessOrEqual(t, v, tt.hi)
			}
		})
	}
}

func TestDrawIsReproducible(t *testing.T) {
	s, err := Parse(domain.DistributionSpec{Kind: "normal", Params: map[string]float64{"mean": 5, "sd": 2}})
	require.NoError(t, err)

	a := s.Draw(newRand(), 100)
	b := s.Draw(newRand(), 100)
	assert.Equal(t, a, b)

	mean := 0.0
	for _, v := range a {
		mean += v
	}
	mean /= float64(len(a))
	assert.InDelta(t, 5, mean, 0.8)
}

func TestDiscreteOnlyProducesDeclaredValues(t *testing.T) {
	s, err := Parse(domain.DistributionSpec{Kind: "discrete", Values: []float64{10, 20}, Weights: []float64{0, 4}})
	require.NoError(t, err)
	assert.True(t, s.IsDegenerate(), "zero-weight choices are never drawn")
	assert.Equal(t, 20.0, s.Value())

	s, err = Parse(domain.DistributionSpec{Kind: "discrete", Values: []float64{10, 20}})
	require.NoError(t, err)
	for _, v := range s.Draw(newRand(), 200) {
		assert.Contains(t, []float64{10, 20}, v)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		spec domain.DistributionSpec
		kind error
	}{
		{"unknown kind", domain.DistributionSpec{Kind: "cauchy"}, domain.ErrInvalidDistribution},
		{"missing parameter", domain.DistributionSpec{Kind: "uniform", Params: map[string]float64{"min": 1}}, domain.ErrInvalidDistribution},
		{"inverted uniform", domain.DistributionSpec{Kind: "uniform", Params: map[string]float64{"min": 3, "max": 1}}, domain.ErrInvalidDistribution},
		{"mode outside range", domain.DistributionSpec{Kind: "triangular", Params: map[string]float64{"min": 0, "mode": 5, "max": 1}}, domain.ErrInvalidDistribution},
		{"negative sd", domain.DistributionSpec{Kind: "normal", Params: map[string]float64{"mean": 0, "sd": -1}}, domain.ErrInvalidDistribution},
		{"non-finite parameter", domain.DistributionSpec{Kind: "constant", Params: map[string]float64{"value": math.NaN()}}, domain.ErrInvalidDistribution},
		{"zero weights", domain.DistributionSpec{Kind: "mixture", Weights: []float64{0, 0}, Components: []domain.DistributionSpec{domain.Constant(1), domain.Constant(2)}}, domain.ErrInvalidWeights},
		{"negative weight", domain.DistributionSpec{Kind: "discrete", Values: []float64{1, 2}, Weights: []float64{-1, 2}}, domain.ErrInvalidWeights},
		{"weight count", domain.DistributionSpec{Kind: "mixture", Weights: []float64{1}, Components: []domain.DistributionSpec{domain.Constant(1), domain.Constant(2)}}, domain.ErrInvalidWeights},
		{"bad component", domain.DistributionSpec{Kind: "mixture", Weights: []float64{1}, Components: []domain.DistributionSpec{{Kind: "bogus"}}}, domain.ErrInvalidDistribution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.spec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestParseText(t *testing.T) {
	spec, err := ParseText("mixture([1, 3], [uniform(0, 1), triangular(1, 2, 3)])")
	require.NoError(t, err)
	assert.Equal(t, "mixture", spec.Kind)
	assert.Equal(t, []float64{1, 3}, spec.Weights)
	require.Len(t, spec.Components, 2)
	assert.Equal(t, map[string]float64{"min": 0, "max": 1}, spec.Components[0].Params)
	assert.Equal(t, map[string]float64{"min": 1, "mode": 2, "max": 3}, spec.Components[1].Params)

	s, err := Parse(spec)
	require.NoError(t, err)
	assert.InDelta(t, 0.25*0.5+0.75*2, s.Value(), 1e-12)

	spec, err = ParseText("constant(1e6 * 0.5)")
	require.NoError(t, err)
	assert.Equal(t, 500000.0, spec.Params["value"])

	for _, bad := range []string{"uniform(", "uniform(a, b)", "uniform(1, 2, 3)", "weibull(1, 2)", "[1, 2]"} {
		_, err := ParseText(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidDistribution, bad)
	}
}

func TestRegistryExtension(t *testing.T) {
	r := NewRegistry()
	r.Register("fixed_pi", nil, func(domain.DistributionSpec, *Registry) (Sampler, error) {
		return constant{value: math.Pi}, nil
	})
	assert.Contains(t, r.List(), "fixed_pi")
	assert.NotContains(t, Kinds(), "fixed_pi")

	s, err := r.Create(domain.DistributionSpec{Text: "fixed_pi()"})
	require.NoError(t, err)
	assert.Equal(t, math.Pi, s.Value())
}

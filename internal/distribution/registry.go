package distribution

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rgehrsitz/tyche/internal/domain"
)

// Factory builds a sampler from a spec whose kind it was registered for.
// The registry is passed in so composite kinds can build their components.
type Factory func(spec domain.DistributionSpec, r *Registry) (Sampler, error)

type entry struct {
	factory Factory
	args    []string
}

// Registry maps distribution kinds to factories.
// Positional argument names let the text form `kind(a, b, c)` fill named parameters.
type Registry struct {
	entries map[string]entry
}

// NewRegistry creates a registry with all built-in kinds registered
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]entry)}

	r.Register("constant", []string{"value"}, createConstant)
	r.Register("uniform", []string{"min", "max"}, createUniform)
	r.Register("triangular", []string{"min", "mode", "max"}, createTriangular)
	r.Register("normal", []string{"mean", "sd"}, createNormal)
	r.Register("lognormal", []string{"mu", "sigma"}, createLogNormal)
	r.Register("beta", []string{"alpha", "beta", "min", "max"}, createBeta)
	r.Register("exponential", []string{"rate"}, createExponential)
	r.Register("discrete", nil, createDiscrete)
	r.Register("mixture", nil, createMixture)

	return r
}

// Register adds a factory for kind
func (r *Registry) Register(kind string, args []string, factory Factory) {
	r.entries[strings.ToLower(kind)] = entry{factory: factory, args: args}
}

// List returns the registered kinds in name order
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds the sampler for spec, resolving the text form first
func (r *Registry) Create(spec domain.DistributionSpec) (Sampler, error) {
	if spec.Kind == "" && spec.Text != "" {
		parsed, err := r.ParseText(spec.Text)
		if err != nil {
			return nil, err
		}
		spec = parsed
	}
	e, ok := r.entries[strings.ToLower(spec.Kind)]
	if !ok {
		return nil, domain.NewError(domain.ErrInvalidDistribution, "parse distribution",
			"unknown kind %q", spec.Kind)
	}
	for name, v := range spec.Params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, domain.NewError(domain.ErrInvalidDistribution, "parse distribution",
				"%s: parameter %s is not finite", spec.Kind, name)
		}
	}
	return e.factory(spec, r)
}

var builtin = NewRegistry()

// Parse builds a sampler with the built-in kinds
func Parse(spec domain.DistributionSpec) (Sampler, error) {
	return builtin.Create(spec)
}

// Kinds lists the built-in kinds
func Kinds() []string {
	return builtin.List()
}

func invalid(kind, format string, args ...any) error {
	return domain.NewError(domain.ErrInvalidDistribution, "parse distribution",
		kind+": "+format, args...)
}

func params(spec domain.DistributionSpec, names ...string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		v, ok := spec.Param(name)
		if !ok {
			return nil, invalid(spec.Kind, "missing parameter %q", name)
		}
		out[i] = v
	}
	return out, nil
}

func createConstant(spec domain.DistributionSpec, _ *Registry) (Sampler, error) {
	p, err := params(spec, "value")
	if err != nil {
		return nil, err
	}
	return constant{value: p[0]}, nil
}

func createUniform(spec domain.DistributionSpec, _ *Registry) (Sampler, error) {
	p, err := params(spec, "min", "max")
	if err != nil {
		return nil, err
	}
	lo, hi := p[0], p[1]
	switch {
	case lo > hi:
		return nil, invalid(spec.Kind, "min %g exceeds max %g", lo, hi)
	case lo == hi:
		return constant{value: lo}, nil
	}
	return continuous{
		label: fmt.Sprintf("uniform(%g, %g)", lo, hi),
		mean:  (lo + hi) / 2,
		build: func(src rand.Source) rander { return distuv.Uniform{Min: lo, Max: hi, Src: src} },
	}, nil
}

func createTriangular(spec domain.DistributionSpec, _ *Registry) (Sampler, error) {
	p, err := params(spec, "min", "mode", "max")
	if err != nil {
		return nil, err
	}
	lo, mode, hi := p[0], p[1], p[2]
	switch {
	case lo > mode || mode > hi:
		return nil, invalid(spec.Kind, "requires min <= mode <= max, got (%g, %g, %g)", lo, mode, hi)
	case lo == hi:
		return constant{value: lo}, nil
	}
	return continuous{
		label: fmt.Sprintf("triangular(%g, %g, %g)", lo, mode, hi),
		mean:  (lo + mode + hi) / 3,
		build: func(src rand.Source) rander { return distuv.NewTriangle(lo, hi, mode, src) },
	}, nil
}

func createNormal(spec domain.DistributionSpec, _ *Registry) (Sampler, error) {
	p, err := params(spec, "mean", "sd")
	if err != nil {
		return nil, err
	}
	mu, sd := p[0], p[1]
	switch {
	case sd < 0:
		return nil, invalid(spec.Kind, "negative standard deviation %g", sd)
	case sd == 0:
		return constant{value: mu}, nil
	}
	return continuous{
		label: fmt.Sprintf("normal(%g, %g)", mu, sd),
		mean:  mu,
		build: func(src rand.Source) rander { return distuv.Normal{Mu: mu, Sigma: sd, Src: src} },
	}, nil
}

func createLogNormal(spec domain.DistributionSpec, _ *Registry) (Sampler, error) {
	p, err := params(spec, "mu", "sigma")
	if err != nil {
		return nil, err
	}
	mu, sigma := p[0], p[1]
	switch {
	case sigma < 0:
		return nil, invalid(spec.Kind, "negative sigma %g", sigma)
	case sigma == 0:
		return constant{value: math.Exp(mu)}, nil
	}
	return continuous{
		label: fmt.Sprintf("lognormal(%g, %g)", mu, sigma),
		mean:  math.Exp(mu + sigma*sigma/2),
		build: func(src rand.Source) rander { return distuv.LogNormal{Mu: mu, Sigma: sigma, Src: src} },
	}, nil
}

func createBeta(spec domain.DistributionSpec, _ *Registry) (Sampler, error) {
	p, err := params(spec, "alpha", "beta")
	if err != nil {
		return nil, err
	}
	a, b := p[0], p[1]
	if a <= 0 || b <= 0 {
		return nil, invalid(spec.Kind, "shape parameters must be positive, got (%g, %g)", a, b)
	}
	lo, hasLo := spec.Param("min")
	hi, hasHi := spec.Param("max")
	if !hasLo {
		lo = 0
	}
	if !hasHi {
		hi = 1
	}
	switch {
	case lo > hi:
		return nil, invalid(spec.Kind, "min %g exceeds max %g", lo, hi)
	case lo == hi:
		return constant{value: lo}, nil
	}
	return continuous{
		label:  fmt.Sprintf("beta(%g, %g, %g, %g)", a, b, lo, hi),
		mean:   lo + (hi-lo)*a/(a+b),
		build:  func(src rand.Source) rander { return distuv.Beta{Alpha: a, Beta: b, Src: src} },
		affine: func(x float64) float64 { return lo + (hi-lo)*x },
	}, nil
}

func createExponential(spec domain.DistributionSpec, _ *Registry) (Sampler, error) {
	p, err := params(spec, "rate")
	if err != nil {
		return nil, err
	}
	rate := p[0]
	if rate <= 0 {
		return nil, invalid(spec.Kind, "rate must be positive, got %g", rate)
	}
	return continuous{
		label: fmt.Sprintf("exponential(%g)", rate),
		mean:  1 / rate,
		build: func(src rand.Source) rander { return distuv.Exponential{Rate: rate, Src: src} },
	}, nil
}

// normalizeWeights scales weights to unit L1 norm
func normalizeWeights(kind string, weights []float64, n int) ([]float64, error) {
	if weights == nil {
		weights = make([]float64, n)
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != n {
		return nil, domain.NewError(domain.ErrInvalidWeights, "parse distribution",
			"%s: %d weights for %d choices", kind, len(weights), n)
	}
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, domain.NewError(domain.ErrInvalidWeights, "parse distribution",
				"%s: weight %g is not a finite non-negative number", kind, w)
		}
	}
	sum := floats.Sum(weights)
	if sum <= 0 {
		return nil, domain.NewError(domain.ErrInvalidWeights, "parse distribution",
			"%s: weights must sum to a positive number", kind)
	}
	out := make([]float64, n)
	copy(out, weights)
	floats.Scale(1/sum, out)
	return out, nil
}

func createDiscrete(spec domain.DistributionSpec, _ *Registry) (Sampler, error) {
	if len(spec.Values) == 0 {
		return nil, invalid(spec.Kind, "no values")
	}
	for _, v := range spec.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, invalid(spec.Kind, "value %g is not finite", v)
		}
	}
	w, err := normalizeWeights(spec.Kind, spec.Weights, len(spec.Values))
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(spec.Values))
	copy(values, spec.Values)
	return discrete{values: values, weights: w}, nil
}

func createMixture(spec domain.DistributionSpec, r *Registry) (Sampler, error) {
	if len(spec.Components) == 0 {
		return nil, invalid(spec.Kind, "no components")
	}
	if spec.Weights == nil {
		return nil, domain.NewError(domain.ErrInvalidWeights, "parse distribution", "mixture: weights are required")
	}
	w, err := normalizeWeights(spec.Kind, spec.Weights, len(spec.Components))
	if err != nil {
		return nil, err
	}
	components := make([]Sampler, len(spec.Components))
	for i, c := range spec.Components {
		s, err := r.Create(c)
		if err != nil {
			return nil, fmt.Errorf("mixture component %d: %w", i, err)
		}
		components[i] = s
	}
	return mixture{weights: w, components: components}, nil
}

package distribution

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/rgehrsitz/tyche/internal/domain"
)

// ParseText parses the text form with the built-in kinds.
//
//	42
//	triangular(0.6, 0.65, 0.7)
//	discrete([1, 2, 3], [0.2, 0.5, 0.3])
//	mixture([0.3, 0.7], [uniform(0, 1), constant(2)])
func ParseText(text string) (domain.DistributionSpec, error) {
	return builtin.ParseText(text)
}

// ParseText parses the text form of a distribution into a spec
func (r *Registry) ParseText(text string) (domain.DistributionSpec, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(text), "distribution", hcl.InitialPos)
	if diags.HasErrors() {
		return domain.DistributionSpec{}, domain.NewError(domain.ErrInvalidDistribution, "parse distribution",
			"%q", text).Wrap(diags)
	}
	spec, err := r.specFromExpr(expr)
	if err != nil {
		return domain.DistributionSpec{}, err
	}
	spec.Text = strings.TrimSpace(text)
	return spec, nil
}

func (r *Registry) specFromExpr(expr hclsyntax.Expression) (domain.DistributionSpec, error) {
	if v, ok := number(expr); ok {
		return domain.Constant(v), nil
	}
	call, ok := expr.(*hclsyntax.FunctionCallExpr)
	if !ok {
		return domain.DistributionSpec{}, textError("expected a number or kind(arguments...)", expr)
	}
	kind := strings.ToLower(call.Name)
	e, known := r.entries[kind]
	if !known {
		return domain.DistributionSpec{}, domain.NewError(domain.ErrInvalidDistribution, "parse distribution",
			"unknown kind %q", call.Name)
	}

	spec := domain.DistributionSpec{Kind: kind}
	switch kind {
	case "discrete":
		if len(call.Args) < 1 || len(call.Args) > 2 {
			return spec, textError("discrete takes (values) or (values, weights)", expr)
		}
		values, err := numbers(call.Args[0])
		if err != nil {
			return spec, err
		}
		spec.Values = values
		if len(call.Args) == 2 {
			if spec.Weights, err = numbers(call.Args[1]); err != nil {
				return spec, err
			}
		}
		return spec, nil
	case "mixture":
		if len(call.Args) != 2 {
			return spec, textError("mixture takes (weights, components)", expr)
		}
		weights, err := numbers(call.Args[0])
		if err != nil {
			return spec, err
		}
		tuple, ok := call.Args[1].(*hclsyntax.TupleConsExpr)
		if !ok {
			return spec, textError("mixture components must be a list", call.Args[1])
		}
		spec.Weights = weights
		for _, c := range tuple.Exprs {
			component, err := r.specFromExpr(c)
			if err != nil {
				return spec, err
			}
			spec.Components = append(spec.Components, component)
		}
		return spec, nil
	}

	if len(call.Args) > len(e.args) {
		return spec, textError("too many arguments for "+kind, expr)
	}
	spec.Params = make(map[string]float64, len(call.Args))
	for i, arg := range call.Args {
		v, ok := number(arg)
		if !ok {
			return spec, textError("argument must be a number", arg)
		}
		spec.Params[e.args[i]] = v
	}
	return spec, nil
}

// number evaluates a constant numeric expression such as 1e6 or -0.5*2
func number(expr hclsyntax.Expression) (float64, bool) {
	v, diags := expr.Value(nil)
	if diags.HasErrors() || v.IsNull() || !v.IsKnown() || v.Type() != cty.Number {
		return 0, false
	}
	f, _ := v.AsBigFloat().Float64()
	return f, true
}

func numbers(expr hclsyntax.Expression) ([]float64, error) {
	tuple, ok := expr.(*hclsyntax.TupleConsExpr)
	if !ok {
		return nil, textError("expected a list of numbers", expr)
	}
	out := make([]float64, len(tuple.Exprs))
	for i, e := range tuple.Exprs {
		v, ok := number(e)
		if !ok {
			return nil, textError("expected a number", e)
		}
		out[i] = v
	}
	return out, nil
}

func textError(msg string, expr hclsyntax.Expression) error {
	rng := expr.Range()
	return domain.NewError(domain.ErrInvalidDistribution, "parse distribution",
		"%s at column %d", msg, rng.Start.Column)
}

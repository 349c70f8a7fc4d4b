package design

import (
	"fmt"
	"math"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/rgehrsitz/tyche/internal/domain"
)

// Frame holds the per-sample vectors of one technology evaluation, addressed by slot.
// Vectors stored in a frame are never modified after they are stored.
type Frame struct {
	N    int
	Vars [][]float64
}

// vectorFunc evaluates an expression for every sample of a frame
type vectorFunc func(f *Frame) []float64

type stage int

const (
	stageCapital stage = iota
	stageProduction
	stageMetric
)

func (s stage) String() string {
	switch s {
	case stageCapital:
		return "capital/fixed"
	case stageProduction:
		return "production"
	default:
		return "metric"
	}
}

// symbol is a named, possibly indexed, quantity visible to expressions
type symbol struct {
	slots []int
	names map[string]int
	stage stage
}

// scope resolves names for the expressions of one technology
type scope struct {
	technology string
	symbols    map[string]*symbol
	stage      stage
}

func (s *scope) define(name string, st stage, slots []int, names []string) {
	sym := &symbol{slots: slots, stage: st}
	if len(names) > 0 {
		sym.names = make(map[string]int, len(names))
		for i, n := range names {
			sym.names[n] = i
		}
	}
	s.symbols[name] = sym
}

// compile parses src and builds its vectorized evaluator at the current stage
func (s *scope) compile(src, where string) (vectorFunc, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), where, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, domain.NewError(domain.ErrInvalidExpression, "compile", "%s: %q", where, src).
			For(s.technology, "").Wrap(diags)
	}
	fn, err := s.node(expr)
	if err != nil {
		if de, ok := err.(*domain.Error); ok && de.Message != "" {
			de.Message = where + ": " + de.Message
		}
		return nil, err
	}
	return fn, nil
}

func (s *scope) node(expr hclsyntax.Expression) (vectorFunc, error) {
	switch e := expr.(type) {
	case *hclsyntax.LiteralValueExpr:
		v, err := literal(e.Val)
		if err != nil {
			return nil, s.invalid("%v", err)
		}
		return constVector(v), nil

	case *hclsyntax.ParenthesesExpr:
		return s.node(e.Expression)

	case *hclsyntax.ScopeTraversalExpr:
		slot, err := s.resolve(e.Traversal)
		if err != nil {
			return nil, err
		}
		return func(f *Frame) []float64 { return f.Vars[slot] }, nil

	case *hclsyntax.UnaryOpExpr:
		val, err := s.node(e.Val)
		if err != nil {
			return nil, err
		}
		op, ok := unaryOps[e.Op]
		if !ok {
			return nil, s.invalid("unsupported unary operator")
		}
		return func(f *Frame) []float64 {
			x := val(f)
			out := make([]float64, f.N)
			for i := range out {
				out[i] = op(x[i])
			}
			return out
		}, nil

	case *hclsyntax.BinaryOpExpr:
		lhs, err := s.node(e.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := s.node(e.RHS)
		if err != nil {
			return nil, err
		}
		op, ok := binaryOps[e.Op]
		if !ok {
			return nil, s.invalid("unsupported binary operator")
		}
		return func(f *Frame) []float64 {
			a, b := lhs(f), rhs(f)
			out := make([]float64, f.N)
			for i := range out {
				out[i] = op(a[i], b[i])
			}
			return out
		}, nil

	case *hclsyntax.ConditionalExpr:
		cond, err := s.node(e.Condition)
		if err != nil {
			return nil, err
		}
		yes, err := s.node(e.TrueResult)
		if err != nil {
			return nil, err
		}
		no, err := s.node(e.FalseResult)
		if err != nil {
			return nil, err
		}
		return func(f *Frame) []float64 {
			c, a, b := cond(f), yes(f), no(f)
			out := make([]float64, f.N)
			for i := range out {
				if c[i] != 0 {
					out[i] = a[i]
				} else {
					out[i] = b[i]
				}
			}
			return out
		}, nil

	case *hclsyntax.FunctionCallExpr:
		return s.call(e)
	}
	return nil, s.invalid("unsupported expression %T", expr)
}

func (s *scope) call(e *hclsyntax.FunctionCallExpr) (vectorFunc, error) {
	fn, ok := functions[e.Name]
	if !ok {
		return nil, s.invalid("unknown function %q", e.Name)
	}
	if len(e.Args) < fn.minArgs || (fn.maxArgs >= 0 && len(e.Args) > fn.maxArgs) {
		return nil, s.invalid("wrong number of arguments to %s", e.Name)
	}
	args := make([]vectorFunc, len(e.Args))
	for i, a := range e.Args {
		v, err := s.node(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return func(f *Frame) []float64 {
		cols := make([][]float64, len(args))
		for i, a := range args {
			cols[i] = a(f)
		}
		buf := make([]float64, len(args))
		out := make([]float64, f.N)
		for i := range out {
			for j := range cols {
				buf[j] = cols[j][i]
			}
			out[i] = fn.apply(buf)
		}
		return out
	}, nil
}

// resolve maps `name`, `name[k]` or `name.label` onto a frame slot
func (s *scope) resolve(tr hcl.Traversal) (int, error) {
	root := tr.RootName()
	sym, ok := s.symbols[root]
	if !ok {
		return 0, domain.NewError(domain.ErrMissingParameter, "compile", "undeclared name").For(s.technology, root)
	}
	if sym.stage > s.stage {
		return 0, domain.NewError(domain.ErrMissingParameter, "compile",
			"%s is not available in %s functions", root, s.stage).For(s.technology, root)
	}

	offset := 0
	switch len(tr) {
	case 1:
		if len(sym.slots) != 1 {
			return 0, domain.NewError(domain.ErrIndexMismatch, "compile",
				"%s has %d elements and needs an index", root, len(sym.slots)).For(s.technology, root)
		}
	case 2:
		switch t := tr[1].(type) {
		case hcl.TraverseIndex:
			if t.Key.Type() != cty.Number {
				return 0, s.invalid("index of %s must be a number", root)
			}
			i, acc := t.Key.AsBigFloat().Int64()
			if acc != big.Exact {
				return 0, s.invalid("index of %s must be an integer", root)
			}
			offset = int(i)
		case hcl.TraverseAttr:
			i, found := sym.names[t.Name]
			if !found {
				return 0, domain.NewError(domain.ErrMissingParameter, "compile",
					"%s has no element named %q", root, t.Name).For(s.technology, root)
			}
			offset = i
		default:
			return 0, s.invalid("unsupported reference to %s", root)
		}
	default:
		return 0, s.invalid("unsupported reference to %s", root)
	}

	if offset < 0 || offset >= len(sym.slots) || sym.slots[offset] < 0 {
		return 0, domain.NewError(domain.ErrMissingParameter, "compile",
			"%s[%d] is not declared", root, offset).For(s.technology, root)
	}
	return sym.slots[offset], nil
}

func (s *scope) invalid(format string, args ...any) error {
	return domain.NewError(domain.ErrInvalidExpression, "compile", format, args...).For(s.technology, "")
}

func literal(v cty.Value) (float64, error) {
	if v.IsNull() || !v.IsKnown() {
		return 0, fmt.Errorf("null literal")
	}
	switch v.Type() {
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f, nil
	case cty.Bool:
		return boolean(v.True()), nil
	}
	return 0, fmt.Errorf("literal of type %s", v.Type().FriendlyName())
}

func constVector(v float64) vectorFunc {
	return func(f *Frame) []float64 {
		out := make([]float64, f.N)
		for i := range out {
			out[i] = v
		}
		return out
	}
}

func boolean(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var unaryOps = map[*hclsyntax.Operation]func(float64) float64{
	hclsyntax.OpNegate:     func(a float64) float64 { return -a },
	hclsyntax.OpLogicalNot: func(a float64) float64 { return boolean(a == 0) },
}

var binaryOps = map[*hclsyntax.Operation]func(a, b float64) float64{
	hclsyntax.OpAdd:                func(a, b float64) float64 { return a + b },
	hclsyntax.OpSubtract:           func(a, b float64) float64 { return a - b },
	hclsyntax.OpMultiply:           func(a, b float64) float64 { return a * b },
	hclsyntax.OpDivide:             func(a, b float64) float64 { return a / b },
	hclsyntax.OpModulo:             math.Mod,
	hclsyntax.OpEqual:              func(a, b float64) float64 { return boolean(a == b) },
	hclsyntax.OpNotEqual:           func(a, b float64) float64 { return boolean(a != b) },
	hclsyntax.OpGreaterThan:        func(a, b float64) float64 { return boolean(a > b) },
	hclsyntax.OpGreaterThanOrEqual: func(a, b float64) float64 { return boolean(a >= b) },
	hclsyntax.OpLessThan:           func(a, b float64) float64 { return boolean(a < b) },
	hclsyntax.OpLessThanOrEqual:    func(a, b float64) float64 { return boolean(a <= b) },
	hclsyntax.OpLogicalAnd:         func(a, b float64) float64 { return boolean(a != 0 && b != 0) },
	hclsyntax.OpLogicalOr:          func(a, b float64) float64 { return boolean(a != 0 || b != 0) },
}

type function struct {
	minArgs int
	maxArgs int // -1 for variadic
	apply   func(args []float64) float64
}

func unary(f func(float64) float64) function {
	return function{minArgs: 1, maxArgs: 1, apply: func(a []float64) float64 { return f(a[0]) }}
}

var functions = map[string]function{
	"min": {minArgs: 1, maxArgs: -1, apply: func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m
	}},
	"max": {minArgs: 1, maxArgs: -1, apply: func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m
	}},
	"pow":   {minArgs: 2, maxArgs: 2, apply: func(a []float64) float64 { return math.Pow(a[0], a[1]) }},
	"abs":   unary(math.Abs),
	"sqrt":  unary(math.Sqrt),
	"exp":   unary(math.Exp),
	"log":   unary(math.Log),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
}

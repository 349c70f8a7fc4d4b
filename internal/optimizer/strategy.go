package optimizer

import (
	"context"
	"errors"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/rgehrsitz/tyche/internal/domain"
)

// Bounds is the search box plus the budget on the summed investment
type Bounds struct {
	Lower  []float64
	Upper  []float64
	Budget float64 // +Inf when unconstrained
}

// Dim returns the number of decision variables
func (b Bounds) Dim() int { return len(b.Lower) }

// Clip moves x into the box in place
func (b Bounds) Clip(x []float64) []float64 {
	for i := range x {
		x[i] = math.Min(math.Max(x[i], b.Lower[i]), b.Upper[i])
	}
	return x
}

// Repair scales the investment above the lower bounds down so the budget holds
func (b Bounds) Repair(x []float64) []float64 {
	if math.IsInf(b.Budget, 1) {
		return x
	}
	floor, spent := 0.0, 0.0
	for i := range x {
		floor += b.Lower[i]
		spent += x[i]
	}
	if spent <= b.Budget || spent <= floor {
		return x
	}
	scale := math.Max(0, b.Budget-floor) / (spent - floor)
	for i := range x {
		x[i] = b.Lower[i] + (x[i]-b.Lower[i])*scale
	}
	return x
}

// fromUnit maps a point of the unit cube into the box
func (b Bounds) fromUnit(u []float64) []float64 {
	x := make([]float64, len(u))
	for i := range u {
		x[i] = b.Lower[i] + u[i]*(b.Upper[i]-b.Lower[i])
	}
	return x
}

// toUnit maps a point of the box into the unit cube
func (b Bounds) toUnit(x []float64) []float64 {
	u := make([]float64, len(x))
	for i := range x {
		if w := b.Upper[i] - b.Lower[i]; w > 0 {
			u[i] = math.Min(1, math.Max(0, (x[i]-b.Lower[i])/w))
		}
	}
	return u
}

// Candidate is the result of one strategy search
type Candidate struct {
	Point      Point
	Iterations int
	// Status is success, iteration-limit or cancelled
	Status domain.ExitCode
}

// Strategy searches the box for the best point under the oracle.
// Search returns an error only for failures of the oracle itself; cancellation
// is reported through the candidate status.
type Strategy interface {
	Name() StrategyKind
	Search(ctx context.Context, oracle Oracle, bounds Bounds, start []float64) (Candidate, error)
}

// Settings tunes a strategy
type Settings struct {
	MaxIterations int
	Tolerance     float64
	Seed          uint64
	Parallelism   int
}

// NewStrategy creates the strategy of the given kind
func NewStrategy(kind StrategyKind, s Settings) (Strategy, error) {
	switch kind {
	case GlobalStochastic:
		return &Evolution{settings: s}, nil
	case GlobalDeterministic:
		return &Direct{settings: s}, nil
	case LocalGradient:
		return &Local{settings: s}, nil
	}
	_, err := ParseStrategy(string(kind))
	return nil, err
}

// evaluateBatch evaluates xs concurrently and waits for all of them
func evaluateBatch(ctx context.Context, oracle Oracle, xs [][]float64, parallelism int) ([]Point, error) {
	points := make([]Point, len(xs))
	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, x := range xs {
		g.Go(func() error {
			p, err := oracle.Evaluate(gctx, x)
			points[i] = p
			return err
		})
	}
	return points, g.Wait()
}

func cancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// best returns the best of points by Better, preferring the earliest on ties
func best(points []Point) int {
	b := 0
	for i := 1; i < len(points); i++ {
		if points[i].Better(points[b]) {
			b = i
		}
	}
	return b
}

package optimizer

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"github.com/rgehrsitz/tyche/internal/domain"
)

const (
	populationFactor = 15
	minPopulation    = 5
	crossoverRate    = 0.7
	// streamEvolution separates the evolution stream from the evaluator's
	// per-technology streams
	streamEvolution = 1 << 32
)

// Evolution is differential evolution (best/1/bin with a dithered mutation factor).
// The population always contains the baseline and the starting point. Each generation
// is evaluated as one concurrent batch; selection waits for the whole batch.
type Evolution struct {
	settings Settings
}

// Name returns the strategy kind
func (e *Evolution) Name() StrategyKind { return GlobalStochastic }

// Search runs generations until the population objective spread falls within tolerance
func (e *Evolution) Search(ctx context.Context, oracle Oracle, bounds Bounds, start []float64) (Candidate, error) {
	dim := bounds.Dim()
	rng := rand.New(rand.NewPCG(e.settings.Seed, streamEvolution))
	size := max(populationFactor*dim, minPopulation)

	pop := make([][]float64, size)
	pop[0] = append([]float64(nil), bounds.Lower...)
	for i := 1; i < size; i++ {
		x := make([]float64, dim)
		for j := range x {
			x[j] = bounds.Lower[j] + rng.Float64()*(bounds.Upper[j]-bounds.Lower[j])
		}
		pop[i] = bounds.Repair(x)
	}
	if start != nil {
		pop[1] = bounds.Repair(bounds.Clip(append([]float64(nil), start...)))
	}

	points, err := evaluateBatch(ctx, oracle, pop, e.settings.Parallelism)
	if err != nil {
		if cancelled(err) {
			return Candidate{Status: domain.ExitCancelled}, nil
		}
		return Candidate{}, err
	}

	for gen := 1; gen <= e.settings.MaxIterations; gen++ {
		if ctx.Err() != nil {
			return Candidate{Point: points[best(points)], Iterations: gen - 1, Status: domain.ExitCancelled}, nil
		}

		b := best(points)
		f := 0.5 + 0.5*rng.Float64()
		trials := make([][]float64, size)
		for i := range pop {
			r1, r2 := distinct(rng, size, i)
			jr := rng.IntN(dim)
			trial := append([]float64(nil), pop[i]...)
			for j := range trial {
				if j == jr || rng.Float64() < crossoverRate {
					trial[j] = pop[b][j] + f*(pop[r1][j]-pop[r2][j])
				}
			}
			trials[i] = bounds.Repair(bounds.Clip(trial))
		}

		scored, err := evaluateBatch(ctx, oracle, trials, e.settings.Parallelism)
		if err != nil {
			if cancelled(err) {
				return Candidate{Point: points[best(points)], Iterations: gen - 1, Status: domain.ExitCancelled}, nil
			}
			return Candidate{}, err
		}
		for i := range pop {
			if !points[i].Better(scored[i]) {
				pop[i], points[i] = trials[i], scored[i]
			}
		}

		if converged(points, e.settings.Tolerance) {
			return Candidate{Point: points[best(points)], Iterations: gen, Status: domain.ExitSuccess}, nil
		}
	}
	return Candidate{Point: points[best(points)], Iterations: e.settings.MaxIterations, Status: domain.ExitIterationLimit}, nil
}

// distinct draws two population members different from i and from each other
func distinct(rng *rand.Rand, size, i int) (int, int) {
	r1 := rng.IntN(size)
	for r1 == i {
		r1 = rng.IntN(size)
	}
	r2 := rng.IntN(size)
	for r2 == i || r2 == r1 {
		r2 = rng.IntN(size)
	}
	return r1, r2
}

// converged reports whether every member is feasible and the objective spread is
// within tol relative to the mean objective
func converged(points []Point, tol float64) bool {
	objectives := make([]float64, len(points))
	for i, p := range points {
		if !p.Feasible {
			return false
		}
		objectives[i] = p.Objective
	}
	mean, std := stat.MeanStdDev(objectives, nil)
	return std <= tol*math.Abs(mean)+1e-12
}

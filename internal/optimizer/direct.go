package optimizer

import (
	"context"
	"math"
	"sort"

	"github.com/rgehrsitz/tyche/internal/domain"
)

const (
	// directEpsilon is the minimum relative improvement a rectangle must promise
	directEpsilon = 1e-4
	// directPatience is the number of iterations without improvement before stopping
	directPatience = 20
	// penaltyWeight scales constraint violation against the objective
	penaltyWeight = 1e3
)

// Direct is DIRECT-style box partitioning on the unit cube. Each iteration selects the
// potentially optimal rectangles from the lower convex hull of (size, value) and trisects
// them along their longest sides. The result is deterministic for identical inputs.
type Direct struct {
	settings Settings
}

type rectangle struct {
	center []float64 // unit coordinates
	level  []int     // trisections per dimension; side = 3^-level
	point  Point
	value  float64
}

func (r *rectangle) diameter() float64 {
	d := 0.0
	for _, l := range r.level {
		s := math.Pow(3, -float64(l))
		d += s * s
	}
	return 0.5 * math.Sqrt(d)
}

// Name returns the strategy kind
func (d *Direct) Name() StrategyKind { return GlobalDeterministic }

// Search partitions the box until the best value stalls
func (d *Direct) Search(ctx context.Context, oracle Oracle, bounds Bounds, _ []float64) (Candidate, error) {
	dim := bounds.Dim()
	center := make([]float64, dim)
	for i := range center {
		center[i] = 0.5
	}
	first, err := oracle.Evaluate(ctx, bounds.fromUnit(center))
	if err != nil {
		if cancelled(err) {
			return Candidate{Status: domain.ExitCancelled}, nil
		}
		return Candidate{}, err
	}

	weight := penaltyWeight * math.Max(1, math.Abs(first.Objective))
	if first.Failed {
		weight = penaltyWeight
	}
	score := func(p Point) float64 { return p.penalized(weight) }

	rects := []*rectangle{{center: center, level: make([]int, dim), point: first, value: score(first)}}
	incumbent := rects[0]
	stall := 0

	for iter := 1; iter <= d.settings.MaxIterations; iter++ {
		if ctx.Err() != nil {
			return Candidate{Point: incumbent.point, Iterations: iter - 1, Status: domain.ExitCancelled}, nil
		}

		selected := potentiallyOptimal(rects, incumbent.value)

		// sample c ± δe_i along the longest sides of every selected rectangle
		type probe struct {
			rect int
			dims []int
		}
		var probes []probe
		var xs [][]float64
		for _, ri := range selected {
			r := rects[ri]
			dims := longestSides(r.level)
			probes = append(probes, probe{rect: ri, dims: dims})
			delta := math.Pow(3, -float64(r.level[dims[0]]+1))
			for _, j := range dims {
				for _, sign := range []float64{1, -1} {
					c := append([]float64(nil), r.center...)
					c[j] += sign * delta
					xs = append(xs, c)
				}
			}
		}
		unitXs := xs
		boxXs := make([][]float64, len(xs))
		for i, u := range unitXs {
			boxXs[i] = bounds.fromUnit(u)
		}
		points, err := evaluateBatch(ctx, oracle, boxXs, d.settings.Parallelism)
		if err != nil {
			if cancelled(err) {
				return Candidate{Point: incumbent.point, Iterations: iter - 1, Status: domain.ExitCancelled}, nil
			}
			return Candidate{}, err
		}

		previous := incumbent.value
		k := 0
		for _, pr := range probes {
			parent := rects[pr.rect]
			type split struct {
				dim      int
				w        float64
				children [2]*rectangle
			}
			splits := make([]split, len(pr.dims))
			for s, j := range pr.dims {
				sp := split{dim: j}
				for c := 0; c < 2; c++ {
					p := points[k]
					sp.children[c] = &rectangle{center: unitXs[k], point: p, value: score(p)}
					k++
				}
				sp.w = math.Min(sp.children[0].value, sp.children[1].value)
				splits[s] = sp
			}
			sort.SliceStable(splits, func(a, b int) bool { return splits[a].w < splits[b].w })

			// dimensions with the best samples are divided first and keep the largest children
			for s, sp := range splits {
				for _, child := range sp.children {
					child.level = append([]int(nil), parent.level...)
					for _, done := range splits[:s+1] {
						child.level[done.dim]++
					}
					rects = append(rects, child)
					if better(child, incumbent) {
						incumbent = child
					}
				}
			}
			for _, sp := range splits {
				parent.level[sp.dim]++
			}
		}

		if previous-incumbent.value > d.settings.Tolerance*(1+math.Abs(previous)) {
			stall = 0
		} else {
			stall++
		}
		if stall >= directPatience {
			return Candidate{Point: incumbent.point, Iterations: iter, Status: domain.ExitSuccess}, nil
		}
	}
	return Candidate{Point: incumbent.point, Iterations: d.settings.MaxIterations, Status: domain.ExitIterationLimit}, nil
}

func better(a, b *rectangle) bool {
	if a.value != b.value {
		return a.value < b.value
	}
	return a.point.Better(b.point)
}

// longestSides returns the dimensions with the fewest trisections
func longestSides(level []int) []int {
	lowest := level[0]
	for _, l := range level {
		lowest = min(lowest, l)
	}
	var dims []int
	for j, l := range level {
		if l == lowest {
			dims = append(dims, j)
		}
	}
	return dims
}

// potentiallyOptimal returns the indices of rectangles on the lower-right convex hull of
// (diameter, value) that promise at least directEpsilon relative improvement on best
func potentiallyOptimal(rects []*rectangle, best float64) []int {
	// the lowest value per distinct diameter, earliest rectangle on ties
	bySize := make(map[float64]int)
	for i, r := range rects {
		key := r.diameter()
		j, ok := bySize[key]
		if !ok || r.value < rects[j].value {
			bySize[key] = i
		}
	}
	sizes := make([]float64, 0, len(bySize))
	for s := range bySize {
		sizes = append(sizes, s)
	}
	sort.Float64s(sizes)

	// start from the group holding the overall minimum, preferring the largest size
	start := 0
	for i, s := range sizes {
		if rects[bySize[s]].value <= rects[bySize[sizes[start]]].value {
			start = i
		}
	}

	// lower convex hull from the minimum to the largest rectangle
	var hull []int
	for _, s := range sizes[start:] {
		i := bySize[s]
		for len(hull) >= 2 {
			a, b := rects[hull[len(hull)-2]], rects[hull[len(hull)-1]]
			c := rects[i]
			cross := (b.diameter()-a.diameter())*(c.value-a.value) - (b.value-a.value)*(c.diameter()-a.diameter())
			if cross > 0 {
				break
			}
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, i)
	}

	threshold := best - directEpsilon*math.Abs(best)
	var selected []int
	for h, i := range hull {
		if h == len(hull)-1 {
			selected = append(selected, i)
			break
		}
		r, next := rects[i], rects[hull[h+1]]
		slope := (next.value - r.value) / (next.diameter() - r.diameter())
		if r.value-slope*r.diameter() <= threshold {
			selected = append(selected, i)
		}
	}
	sort.Ints(selected)
	return selected
}

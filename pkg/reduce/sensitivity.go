package reduce

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/edp1096/toy-mor/pkg/analysis"
	"github.com/edp1096/toy-mor/pkg/matrix"
	"github.com/edp1096/toy-mor/pkg/symbolic"
)

// ScoreOptions configures Score.
type ScoreOptions struct {
	Sorting SortPolicy
	Workers int // <= 0 uses GOMAXPROCS
	Solver  matrix.Factorizer
}

// Score computes for every term the error its sole removal from A causes at
// omegas, reduces it with the sorting policy and returns the terms sorted
// ascending by (Score, Order). Terms scoring NaN are dropped. The result
// does not depend on the number of workers.
func Score(ctx context.Context, terms []Term, a [][]symbolic.Expr, z []symbolic.Expr, values symbolic.Values, omegas []float64, in, out int, opts ScoreOptions) ([]Term, error) {
	ev, err := analysis.NewEvaluator(a, z, values, omegas, in, out, analysis.WithSolver(opts.Solver))
	if err != nil {
		return nil, err
	}
	ev.Prepare()
	href, err := ev.Transfer()
	if err != nil {
		return nil, fmt.Errorf("reference transfer function: %w", err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	scored := make([]Term, len(terms))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range terms {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			t := terms[i]
			h, err := ev.Perturbed(t.Pos.Row, t.Pos.Col, t.Expr)
			switch {
			case errors.Is(err, analysis.ErrNonInvertible):
				t.Errors = infErrors(len(omegas))
			case err != nil:
				return fmt.Errorf("scoring %s: %w", t, err)
			default:
				t.Errors = relativeErrors(href, h)
			}
			t.Score = opts.Sorting.Reduce(t.Errors)
			scored[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sortTerms(scored), nil
}

// relativeErrors returns ||href| - |h|| / |href| per point.
func relativeErrors(href, h []complex128) []float64 {
	errs := make([]float64, len(href))
	for k := range href {
		ref := cmplx.Abs(href[k])
		errs[k] = math.Abs(ref-cmplx.Abs(h[k])) / ref
	}
	return errs
}

func infErrors(n int) []float64 {
	errs := make([]float64, n)
	for k := range errs {
		errs[k] = math.Inf(1)
	}
	return errs
}

// phaseJump reports whether the unwrapped phase difference between h and
// href moves by more than π between two adjacent points.
func phaseJump(href, h []complex128) bool {
	ref, trial := unwrap(href), unwrap(h)
	for k := 1; k < len(ref); k++ {
		d0 := trial[k-1] - ref[k-1]
		d1 := trial[k] - ref[k]
		if math.Abs(d1-d0) > math.Pi {
			return true
		}
	}
	return false
}

// unwrap returns the phases of h with 2π steps removed between neighbours.
func unwrap(h []complex128) []float64 {
	out := make([]float64, len(h))
	var correction float64
	for k, v := range h {
		p := cmplx.Phase(v)
		if k > 0 {
			raw := cmplx.Phase(h[k-1])
			delta := p - raw
			wrapped := math.Mod(delta+math.Pi, 2*math.Pi)
			if wrapped < 0 {
				wrapped += 2 * math.Pi
			}
			wrapped -= math.Pi
			if wrapped == -math.Pi && delta > 0 {
				wrapped = math.Pi
			}
			if math.Abs(delta) >= math.Pi {
				correction += wrapped - delta
			}
		}
		out[k] = p + correction
	}
	return out
}

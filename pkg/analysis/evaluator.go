package analysis

import (
	"errors"
	"fmt"
	"sync"

	"github.com/edp1096/toy-mor/pkg/matrix"
	"github.com/edp1096/toy-mor/pkg/symbolic"
)

// ErrNonInvertible marks a system that cannot be solved at some frequency.
var ErrNonInvertible = errors.New("analysis: system is not invertible")

type Option func(*Evaluator)

// WithSolver selects the LU strategy. DenseLU is the default.
func WithSolver(f matrix.Factorizer) Option {
	return func(e *Evaluator) {
		if f != nil {
			e.solver = f
		}
	}
}

type point struct {
	a   *matrix.Dense
	z   []complex128
	lu  matrix.Factorization
	h   complex128
	err error
}

// Evaluator evaluates H(jω) = x[out]/x[in] of a symbolic system at a fixed
// set of angular frequencies. The bound matrices, their factorizations and
// the reference response are cached per frequency index.
type Evaluator struct {
	omegas  []float64
	in, out int
	values  symbolic.Values
	solver  matrix.Factorizer

	n int
	a []symbolic.Bound // row-major
	z []symbolic.Bound

	mu    sync.Mutex
	cache map[int]*point
}

func NewEvaluator(a [][]symbolic.Expr, z []symbolic.Expr, values symbolic.Values, omegas []float64, in, out int, opts ...Option) (*Evaluator, error) {
	n := len(a)
	if len(z) != n {
		return nil, fmt.Errorf("analysis: z has %d rows, A has %d", len(z), n)
	}
	if in < 0 || in >= n || out < 0 || out >= n {
		return nil, fmt.Errorf("analysis: unknown index out of range (in=%d, out=%d, n=%d)", in, out, n)
	}

	e := &Evaluator{
		omegas: omegas,
		in:     in,
		out:    out,
		values: values,
		solver: matrix.DenseLU{},
		n:      n,
		a:      make([]symbolic.Bound, n*n),
		z:      make([]symbolic.Bound, n),
		cache:  make(map[int]*point, len(omegas)),
	}
	for _, opt := range opts {
		opt(e)
	}

	var err error
	for i, row := range a {
		if len(row) != n {
			return nil, fmt.Errorf("analysis: row %d has %d columns, want %d", i, len(row), n)
		}
		for j, entry := range row {
			if e.a[i*n+j], err = entry.Bind(values); err != nil {
				return nil, err
			}
		}
		if e.z[i], err = z[i].Bind(values); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Evaluator) Omegas() []float64 { return e.omegas }

// At returns the bound matrix and right-hand side at frequency index k. Both
// belong to the cache and must not be modified.
func (e *Evaluator) At(k int) (*matrix.Dense, []complex128) {
	p := e.point(k)
	return p.a, p.z
}

// Prepare fills the cache for every frequency. Afterwards the evaluator is
// only read.
func (e *Evaluator) Prepare() {
	for k := range e.omegas {
		e.point(k)
	}
}

func (e *Evaluator) point(k int) *point {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.cache[k]; ok {
		return p
	}

	s := complex(0, e.omegas[k])
	p := &point{a: matrix.NewDense(e.n), z: make([]complex128, e.n)}
	for i := 0; i < e.n; i++ {
		for j := 0; j < e.n; j++ {
			p.a.Set(i, j, e.a[i*e.n+j].At(s))
		}
		p.z[i] = e.z[i].At(s)
	}
	p.lu, p.err = e.solver.Factor(p.a)
	if p.err == nil {
		p.h, p.err = solveRatio(p.lu, p.z, e.in, e.out)
	}
	if p.err != nil {
		p.err = fmt.Errorf("%w at ω=%g: %w", ErrNonInvertible, e.omegas[k], p.err)
	}
	e.cache[k] = p
	return p
}

// Transfer returns the reference response at every frequency.
func (e *Evaluator) Transfer() ([]complex128, error) {
	h := make([]complex128, len(e.omegas))
	for k := range e.omegas {
		p := e.point(k)
		if p.err != nil {
			return nil, p.err
		}
		h[k] = p.h
	}
	return h, nil
}

// Perturbed returns the response with term subtracted from entry (row, col).
func (e *Evaluator) Perturbed(row, col int, term symbolic.Expr) ([]complex128, error) {
	t, err := term.Bind(e.values)
	if err != nil {
		return nil, err
	}
	h := make([]complex128, len(e.omegas))
	for k, w := range e.omegas {
		p := e.point(k)
		a := p.a.Clone()
		a.AddAt(row, col, -t.At(complex(0, w)))
		lu, err := e.solver.Factor(a)
		if err == nil {
			h[k], err = solveRatio(lu, p.z, e.in, e.out)
		}
		if err != nil {
			return nil, fmt.Errorf("%w at ω=%g: %w", ErrNonInvertible, w, err)
		}
	}
	return h, nil
}

// Solve returns the full solution vector at frequency index k.
func (e *Evaluator) Solve(k int) ([]complex128, error) {
	p := e.point(k)
	if p.lu == nil {
		return nil, p.err
	}
	return p.lu.Solve(p.z)
}

func solveRatio(lu matrix.Factorization, z []complex128, in, out int) (complex128, error) {
	x, err := lu.Solve(z)
	if err != nil {
		return 0, err
	}
	if in == out {
		return 1, nil
	}
	if x[in] == 0 {
		return 0, fmt.Errorf("%w: input unknown is zero", matrix.ErrSingular)
	}
	h := x[out] / x[in]
	if !symbolic.IsFinite(h) {
		return 0, fmt.Errorf("%w: non-finite transfer", matrix.ErrSingular)
	}
	return h, nil
}

package matrix

import (
	"errors"
	"fmt"
	"math/cmplx"

	"github.com/edp1096/toy-mor/internal/consts"
	"github.com/edp1096/toy-mor/pkg/symbolic"
)

var ErrSingular = errors.New("matrix: singular matrix")

// Factorization solves A·x = b for a factorized A. Implementations are safe
// for concurrent Solve calls.
type Factorization interface {
	Solve(b []complex128) ([]complex128, error)
}

// Factorizer is the numeric LU strategy used by the evaluation layer.
type Factorizer interface {
	Factor(a *Dense) (Factorization, error)
}

// DenseLU is Gaussian elimination with partial pivoting. A pivot smaller
// than Tolerance times the largest matrix entry is treated as zero.
type DenseLU struct {
	Tolerance float64
}

type denseFactors struct {
	n    int
	lu   []complex128
	perm []int
}

func (f DenseLU) Factor(a *Dense) (Factorization, error) {
	tol := f.Tolerance
	if tol <= 0 {
		tol = consts.DefaultSingularTol
	}
	n := a.Size()
	scale := a.MaxAbs()
	if n > 0 && scale == 0 {
		return nil, fmt.Errorf("%w: zero matrix", ErrSingular)
	}

	lu := make([]complex128, len(a.data))
	copy(lu, a.data)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	for k := 0; k < n; k++ {
		p, best := k, cmplx.Abs(lu[k*n+k])
		for i := k + 1; i < n; i++ {
			if v := cmplx.Abs(lu[i*n+k]); v > best {
				p, best = i, v
			}
		}
		if best <= tol*scale {
			return nil, fmt.Errorf("%w: zero pivot at step %d", ErrSingular, k+1)
		}
		if p != k {
			for j := 0; j < n; j++ {
				lu[k*n+j], lu[p*n+j] = lu[p*n+j], lu[k*n+j]
			}
			perm[k], perm[p] = perm[p], perm[k]
		}

		pivot := lu[k*n+k]
		for i := k + 1; i < n; i++ {
			l := lu[i*n+k] / pivot
			if l == 0 {
				continue
			}
			lu[i*n+k] = l
			for j := k + 1; j < n; j++ {
				lu[i*n+j] -= l * lu[k*n+j]
			}
		}
	}
	return &denseFactors{n: n, lu: lu, perm: perm}, nil
}

func (f *denseFactors) Solve(b []complex128) ([]complex128, error) {
	n := f.n
	if len(b) != n {
		return nil, fmt.Errorf("matrix: rhs has %d entries, want %d", len(b), n)
	}
	x := make([]complex128, n)
	for i := 0; i < n; i++ {
		x[i] = b[f.perm[i]]
	}
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			x[i] -= f.lu[i*n+j] * x[j]
		}
	}
	for i := n - 1; i >= 0; i-- {
		for j := i + 1; j < n; j++ {
			x[i] -= f.lu[i*n+j] * x[j]
		}
		x[i] /= f.lu[i*n+i]
	}
	return x, checkFinite(x)
}

func checkFinite(x []complex128) error {
	for i, v := range x {
		if !symbolic.IsFinite(v) {
			return fmt.Errorf("%w: non-finite solution at row %d", ErrSingular, i+1)
		}
	}
	return nil
}

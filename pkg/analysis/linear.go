package analysis

import (
	"fmt"

	"github.com/edp1096/toy-mor/pkg/matrix"
)

// Linear is a bound system split as A(s) = A0 + s·A1, z(s) = z0 + s·z1.
type Linear struct {
	A0, A1 *matrix.Dense
	Z0, Z1 []complex128
}

// At evaluates the split system at s.
func (l Linear) At(s complex128) (*matrix.Dense, []complex128) {
	z := make([]complex128, len(l.Z0))
	for i := range z {
		z[i] = l.Z0[i] + s*l.Z1[i]
	}
	return matrix.Combine(l.A0, l.A1, s), z
}

// Clone returns a copy whose matrices can be modified independently.
func (l Linear) Clone() Linear {
	return Linear{A0: l.A0.Clone(), A1: l.A1.Clone(), Z0: l.Z0, Z1: l.Z1}
}

// TransferLinear forms A0 + jω·A1 directly for each frequency and returns
// x[out]/x[in]. It is the hot path of the reduction loop.
func TransferLinear(l Linear, omegas []float64, in, out int, solver matrix.Factorizer) ([]complex128, error) {
	if solver == nil {
		solver = matrix.DenseLU{}
	}
	h := make([]complex128, len(omegas))
	for k, w := range omegas {
		a, z := l.At(complex(0, w))
		lu, err := solver.Factor(a)
		if err == nil {
			h[k], err = solveRatio(lu, z, in, out)
		}
		if err != nil {
			return nil, fmt.Errorf("%w at ω=%g: %w", ErrNonInvertible, w, err)
		}
	}
	return h, nil
}

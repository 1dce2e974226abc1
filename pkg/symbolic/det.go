package symbolic

import (
	"errors"
	"fmt"
	"math/bits"
)

// MaxDetSize bounds the dimension accepted by Det.
const MaxDetSize = 24

var (
	ErrTooLarge       = errors.New("symbolic: matrix too large for symbolic determinant")
	ErrNotSquare      = errors.New("symbolic: matrix is not square")
	ErrSingularSystem = errors.New("symbolic: system is singular")
)

// Det computes the determinant of a square matrix of expressions by Laplace
// expansion along the rows. Minors are memoised on the set of remaining
// columns, so the cost is O(n·2^n) products in the worst case and much less
// for the sparse matrices MNA produces.
func Det(m [][]Expr) (Expr, error) {
	n := len(m)
	if n == 0 {
		return Num(1), nil
	}
	if n > MaxDetSize {
		return Expr{}, fmt.Errorf("%w: %d > %d", ErrTooLarge, n, MaxDetSize)
	}
	for i, row := range m {
		if len(row) != n {
			return Expr{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrNotSquare, i, len(row), n)
		}
	}

	memo := make(map[uint32]Expr)
	var minor func(mask uint32) Expr
	minor = func(mask uint32) Expr {
		row := n - bits.OnesCount32(mask)
		if row == n {
			return Num(1)
		}
		if v, ok := memo[mask]; ok {
			return v
		}
		var parts []Expr
		pos := 0
		for j := 0; j < n; j++ {
			if mask&(1<<j) == 0 {
				continue
			}
			if a := m[row][j]; !a.IsZero() {
				sub := minor(mask &^ (1 << j))
				if !sub.IsZero() {
					p := Mul(a, sub)
					if pos%2 == 1 {
						p = Neg(p)
					}
					parts = append(parts, p)
				}
			}
			pos++
		}
		v := Add(parts...)
		memo[mask] = v
		return v
	}

	return minor(uint32(1)<<n - 1), nil
}

// EstimateTerms returns det(m) with every symbol and s set to 1. For the
// sign patterns MNA produces it approximates the number of monomials of the
// expanded determinant without expanding it.
func EstimateTerms(m [][]Expr) (float64, error) {
	ones := make([][]Expr, len(m))
	for i, row := range m {
		ones[i] = make([]Expr, len(row))
		for j, e := range row {
			var c float64
			for _, t := range e.terms {
				c += t.coeff
			}
			ones[i][j] = Num(c)
		}
	}
	d, err := Det(ones)
	if err != nil {
		return 0, err
	}
	v, err := d.Eval(nil, 1)
	if err != nil {
		return 0, err
	}
	return real(v), nil
}

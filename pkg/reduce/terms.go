// Package reduce simplifies an MNA system by greedily removing the additive
// terms of A(s) that contribute least to a transfer function.
package reduce

import (
	"errors"
	"fmt"

	"github.com/edp1096/toy-mor/pkg/analysis"
	"github.com/edp1096/toy-mor/pkg/matrix"
	"github.com/edp1096/toy-mor/pkg/mna"
	"github.com/edp1096/toy-mor/pkg/symbolic"
)

var ErrNonLinearTerm = errors.New("reduce: term is not linear in s")

// Position is a 0-based matrix entry.
type Position struct {
	Row, Col int
}

// Term is one additive summand of a matrix entry. Order is its index in the
// row-major decomposition and breaks ties between equal scores.
type Term struct {
	Pos   Position
	Expr  symbolic.Expr
	Order int

	// Errors holds the relative magnitude error per reference point caused
	// by removing the term alone; Score is their reduction by the sorting
	// policy, +Inf when the perturbed system could not be solved.
	Errors []float64
	Score  float64
}

func (t Term) String() string {
	return fmt.Sprintf("(%d,%d) %s", t.Pos.Row, t.Pos.Col, t.Expr)
}

// Decompose flattens A into its terms in row-major order, one per monomial
// of every entry.
func Decompose(a [][]symbolic.Expr) ([]Term, error) {
	return decompose(a, func(i, j int) []symbolic.Expr {
		if a[i][j].IsZero() {
			return nil
		}
		return []symbolic.Expr{a[i][j]}
	})
}

// DecomposeSystem flattens sys.A like Decompose but splits every entry along
// its stamps first, so two elements contributing the same monomial to an
// entry give two terms.
func DecomposeSystem(sys *mna.System) ([]Term, error) {
	return decompose(sys.A, sys.Parts)
}

func decompose(a [][]symbolic.Expr, parts func(i, j int) []symbolic.Expr) ([]Term, error) {
	var terms []Term
	for i, row := range a {
		for j, entry := range row {
			if err := checkLinear(entry); err != nil {
				return nil, fmt.Errorf("entry (%d,%d): %w", i, j, err)
			}
			for _, part := range parts(i, j) {
				if err := checkLinear(part); err != nil {
					return nil, fmt.Errorf("entry (%d,%d): %w", i, j, err)
				}
				for _, t := range part.Terms() {
					terms = append(terms, Term{Pos: Position{i, j}, Expr: t, Order: len(terms)})
				}
			}
		}
	}
	return terms, nil
}

func checkLinear(e symbolic.Expr) error {
	if lo, hi := e.Degree(symbolic.Var); lo < 0 || hi > 1 {
		return fmt.Errorf("%w: %s has s-degree in [%d, %d]", ErrNonLinearTerm, e, lo, hi)
	}
	return nil
}

// SplitLinear returns c0, c1 with e = c0 + s·c1.
func SplitLinear(e symbolic.Expr) (c0, c1 symbolic.Expr, err error) {
	if err := checkLinear(e); err != nil {
		return symbolic.Expr{}, symbolic.Expr{}, err
	}
	c0, err = e.Zero(symbolic.Var)
	if err != nil {
		return symbolic.Expr{}, symbolic.Expr{}, fmt.Errorf("%w: %w", ErrNonLinearTerm, err)
	}
	return c0, e.Diff(symbolic.Var), nil
}

// bindSplit evaluates the two parts of e numerically.
func bindSplit(e symbolic.Expr, values symbolic.Values) (v0, v1 complex128, err error) {
	c0, c1, err := SplitLinear(e)
	if err != nil {
		return 0, 0, err
	}
	if v0, err = c0.Eval(values, 0); err != nil {
		return 0, 0, err
	}
	if v1, err = c1.Eval(values, 0); err != nil {
		return 0, 0, err
	}
	return v0, v1, nil
}

// SplitMatrix binds the system and splits it as A0 + s·A1, z0 + s·z1.
func SplitMatrix(a [][]symbolic.Expr, z []symbolic.Expr, values symbolic.Values) (analysis.Linear, error) {
	n := len(a)
	l := analysis.Linear{
		A0: matrix.NewDense(n),
		A1: matrix.NewDense(n),
		Z0: make([]complex128, n),
		Z1: make([]complex128, n),
	}
	for i, row := range a {
		for j, entry := range row {
			v0, v1, err := bindSplit(entry, values)
			if err != nil {
				return analysis.Linear{}, fmt.Errorf("entry (%d,%d): %w", i, j, err)
			}
			l.A0.Set(i, j, v0)
			l.A1.Set(i, j, v1)
		}
	}
	for i, entry := range z {
		v0, v1, err := bindSplit(entry, values)
		if err != nil {
			return analysis.Linear{}, fmt.Errorf("z[%d]: %w", i, err)
		}
		l.Z0[i], l.Z1[i] = v0, v1
	}
	return l, nil
}

// Subtract returns a copy of A with the terms removed.
func Subtract(a [][]symbolic.Expr, terms []Term) [][]symbolic.Expr {
	out := make([][]symbolic.Expr, len(a))
	for i, row := range a {
		out[i] = append([]symbolic.Expr(nil), row...)
	}
	for _, t := range terms {
		out[t.Pos.Row][t.Pos.Col] = symbolic.Sub(out[t.Pos.Row][t.Pos.Col], t.Expr)
	}
	return out
}

package symbolic

import (
	"fmt"
	"sort"
)

// Rational is a ratio of two expressions.
type Rational struct {
	Num Expr
	Den Expr
}

// TransferFunction solves A·x = z symbolically for x[out]/x[in] with Cramer's
// rule: det(A with column out replaced by z) / det(A with column in replaced
// by z). The common monomial content of numerator and denominator (source
// symbols, 1/R factors) is cancelled.
func TransferFunction(a [][]Expr, z []Expr, in, out int) (Rational, error) {
	n := len(a)
	if len(z) != n {
		return Rational{}, fmt.Errorf("%w: z has %d rows, A has %d", ErrNotSquare, len(z), n)
	}
	if in < 0 || in >= n || out < 0 || out >= n {
		return Rational{}, fmt.Errorf("symbolic: unknown index out of range (in=%d, out=%d, n=%d)", in, out, n)
	}
	if in == out {
		return Rational{Num: Num(1), Den: Num(1)}, nil
	}

	num, err := Det(replaceColumn(a, out, z))
	if err != nil {
		return Rational{}, err
	}
	den, err := Det(replaceColumn(a, in, z))
	if err != nil {
		return Rational{}, err
	}
	if den.IsZero() {
		return Rational{}, fmt.Errorf("%w: input unknown is identically zero", ErrSingularSystem)
	}
	return Rational{Num: num, Den: den}.Cancel(), nil
}

func replaceColumn(a [][]Expr, col int, z []Expr) [][]Expr {
	out := make([][]Expr, len(a))
	for i, row := range a {
		out[i] = make([]Expr, len(row))
		copy(out[i], row)
		out[i][col] = z[i]
	}
	return out
}

// Cancel divides numerator and denominator by their common monomial content
// and makes the leading denominator coefficient positive.
func (r Rational) Cancel() Rational {
	lowest := map[string]int{}
	var all []monomial
	all = append(all, r.Num.terms...)
	all = append(all, r.Den.terms...)
	names := map[string]struct{}{}
	for _, m := range all {
		for _, f := range m.factors {
			names[f.name] = struct{}{}
		}
	}
	for name := range names {
		for i, m := range all {
			if x := m.exp(name); i == 0 || x < lowest[name] {
				lowest[name] = x
			}
		}
	}

	keys := make([]string, 0, len(lowest))
	for name, x := range lowest {
		if x != 0 {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	content := Num(1)
	for _, name := range keys {
		content = Mul(content, Pow(name, -lowest[name]))
	}

	out := Rational{Num: Mul(r.Num, content), Den: Mul(r.Den, content)}
	if len(out.Den.terms) > 0 && out.Den.terms[0].coeff < 0 {
		out.Num = Neg(out.Num)
		out.Den = Neg(out.Den)
	}
	return out
}

// Eval evaluates the ratio at s.
func (r Rational) Eval(values Values, s complex128) (complex128, error) {
	n, err := r.Num.Eval(values, s)
	if err != nil {
		return 0, err
	}
	d, err := r.Den.Eval(values, s)
	if err != nil {
		return 0, err
	}
	return n / d, nil
}

func (r Rational) String() string {
	return "(" + r.Num.String() + ") / (" + r.Den.String() + ")"
}

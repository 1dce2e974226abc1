// Package symbolic implements the small expression algebra MNA needs:
// sums of monomials c·Πsym^e whose exponents may be negative (1/R, 1/(s·L)).
//
// Only what the formulator and the reduction engine use is provided:
// construction, addition, multiplication, evaluation at a complex point,
// substitution of s=0 and the first derivative in one variable.
package symbolic

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"
	"strconv"
	"strings"
)

// Var is the name of the complex frequency variable.
const Var = "s"

var (
	ErrUnboundSymbol = errors.New("symbolic: unbound symbol")
	ErrPole          = errors.New("symbolic: expression has a pole at the substitution point")
)

// Values maps symbol names to their numeric substitution.
type Values map[string]complex128

type factor struct {
	name string
	exp  int
}

type monomial struct {
	coeff   float64
	factors []factor // sorted by name, exp != 0
}

// Expr is a canonical sum of monomials. The zero value is the number 0.
type Expr struct {
	terms []monomial // sorted by key, unique keys, nonzero coefficients
}

// Num returns a constant expression.
func Num(c float64) Expr {
	if c == 0 {
		return Expr{}
	}
	return Expr{terms: []monomial{{coeff: c}}}
}

// Sym returns the expression consisting of a single symbol.
func Sym(name string) Expr {
	return Pow(name, 1)
}

// Pow returns name^exp.
func Pow(name string, exp int) Expr {
	if exp == 0 {
		return Num(1)
	}
	return Expr{terms: []monomial{{coeff: 1, factors: []factor{{name: name, exp: exp}}}}}
}

// S returns the complex frequency variable.
func S() Expr {
	return Sym(Var)
}

// Add returns the sum of all arguments.
func Add(exprs ...Expr) Expr {
	var n int
	for _, e := range exprs {
		n += len(e.terms)
	}
	terms := make([]monomial, 0, n)
	for _, e := range exprs {
		terms = append(terms, e.terms...)
	}
	return normalize(terms)
}

// Sub returns a - b.
func Sub(a, b Expr) Expr {
	return Add(a, Neg(b))
}

// Neg returns -a.
func Neg(a Expr) Expr {
	return Scale(a, -1)
}

// Scale returns c·a.
func Scale(a Expr, c float64) Expr {
	if c == 0 {
		return Expr{}
	}
	terms := make([]monomial, len(a.terms))
	for i, m := range a.terms {
		terms[i] = monomial{coeff: m.coeff * c, factors: m.factors}
	}
	return normalize(terms)
}

// Mul returns the product of all arguments.
func Mul(exprs ...Expr) Expr {
	if len(exprs) == 0 {
		return Num(1)
	}
	acc := exprs[0]
	for _, e := range exprs[1:] {
		acc = mul2(acc, e)
	}
	return acc
}

func mul2(a, b Expr) Expr {
	if a.IsZero() || b.IsZero() {
		return Expr{}
	}
	terms := make([]monomial, 0, len(a.terms)*len(b.terms))
	for _, x := range a.terms {
		for _, y := range b.terms {
			terms = append(terms, monomial{
				coeff:   x.coeff * y.coeff,
				factors: mergeFactors(x.factors, y.factors),
			})
		}
	}
	return normalize(terms)
}

func mergeFactors(a, b []factor) []factor {
	out := make([]factor, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j == len(b) || (i < len(a) && a[i].name < b[j].name):
			out = append(out, a[i])
			i++
		case i == len(a) || b[j].name < a[i].name:
			out = append(out, b[j])
			j++
		default:
			if e := a[i].exp + b[j].exp; e != 0 {
				out = append(out, factor{name: a[i].name, exp: e})
			}
			i++
			j++
		}
	}
	return out
}

func (m monomial) key() string {
	var sb strings.Builder
	for i, f := range m.factors {
		if i > 0 {
			sb.WriteByte('*')
		}
		sb.WriteString(f.name)
		sb.WriteByte('^')
		sb.WriteString(strconv.Itoa(f.exp))
	}
	return sb.String()
}

func (m monomial) exp(name string) int {
	for _, f := range m.factors {
		if f.name == name {
			return f.exp
		}
	}
	return 0
}

func normalize(terms []monomial) Expr {
	if len(terms) == 0 {
		return Expr{}
	}
	keys := make([]string, len(terms))
	for i := range terms {
		keys[i] = terms[i].key()
	}
	idx := make([]int, len(terms))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })

	out := make([]monomial, 0, len(terms))
	lastKey := ""
	for n, i := range idx {
		if n > 0 && keys[i] == lastKey {
			out[len(out)-1].coeff += terms[i].coeff
			continue
		}
		out = append(out, terms[i])
		lastKey = keys[i]
	}

	kept := out[:0]
	for _, m := range out {
		if m.coeff != 0 {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		return Expr{}
	}
	return Expr{terms: kept}
}

// IsZero reports whether e is identically zero.
func (e Expr) IsZero() bool {
	return len(e.terms) == 0
}

// Len returns the number of monomials in e.
func (e Expr) Len() int {
	return len(e.terms)
}

// Terms splits e into its additive monomials.
func (e Expr) Terms() []Expr {
	out := make([]Expr, len(e.terms))
	for i, m := range e.terms {
		out[i] = Expr{terms: []monomial{m}}
	}
	return out
}

// Degree returns the smallest and largest exponent of name over all monomials.
func (e Expr) Degree(name string) (lo, hi int) {
	for i, m := range e.terms {
		x := m.exp(name)
		if i == 0 || x < lo {
			lo = x
		}
		if i == 0 || x > hi {
			hi = x
		}
	}
	return lo, hi
}

// Diff returns the derivative of e with respect to name.
func (e Expr) Diff(name string) Expr {
	terms := make([]monomial, 0, len(e.terms))
	for _, m := range e.terms {
		x := m.exp(name)
		if x == 0 {
			continue
		}
		factors := make([]factor, 0, len(m.factors))
		for _, f := range m.factors {
			if f.name != name {
				factors = append(factors, f)
			} else if f.exp != 1 {
				factors = append(factors, factor{name: f.name, exp: f.exp - 1})
			}
		}
		terms = append(terms, monomial{coeff: m.coeff * float64(x), factors: factors})
	}
	return normalize(terms)
}

// Zero substitutes name = 0.
func (e Expr) Zero(name string) (Expr, error) {
	terms := make([]monomial, 0, len(e.terms))
	for _, m := range e.terms {
		switch x := m.exp(name); {
		case x < 0:
			return Expr{}, fmt.Errorf("%w: %s at %s=0", ErrPole, Expr{terms: []monomial{m}}, name)
		case x == 0:
			terms = append(terms, m)
		}
	}
	return normalize(terms), nil
}

// Eval evaluates e with the given symbol values; Var takes the value s.
func (e Expr) Eval(values Values, s complex128) (complex128, error) {
	var sum complex128
	for _, m := range e.terms {
		v := complex(m.coeff, 0)
		for _, f := range m.factors {
			x, ok := values[f.name]
			if f.name == Var {
				x, ok = s, true
			}
			if !ok {
				return 0, fmt.Errorf("%w: %s", ErrUnboundSymbol, f.name)
			}
			v *= ipow(x, f.exp)
		}
		sum += v
	}
	return sum, nil
}

// Symbols returns the sorted symbol names used by e, Var excluded.
func (e Expr) Symbols() []string {
	seen := map[string]struct{}{}
	for _, m := range e.terms {
		for _, f := range m.factors {
			if f.name != Var {
				seen[f.name] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether a and b are the same canonical expression.
func (e Expr) Equal(other Expr) bool {
	if len(e.terms) != len(other.terms) {
		return false
	}
	for i := range e.terms {
		if e.terms[i].coeff != other.terms[i].coeff || e.terms[i].key() != other.terms[i].key() {
			return false
		}
	}
	return true
}

func (e Expr) String() string {
	if e.IsZero() {
		return "0"
	}
	var sb strings.Builder
	for i, m := range e.terms {
		s := m.String()
		if i > 0 {
			if strings.HasPrefix(s, "-") {
				sb.WriteString(" - ")
				s = s[1:]
			} else {
				sb.WriteString(" + ")
			}
		}
		sb.WriteString(s)
	}
	return sb.String()
}

func (m monomial) String() string {
	var num, den []string
	for _, f := range m.factors {
		part := f.name
		x := f.exp
		if x < 0 {
			x = -x
		}
		if x != 1 {
			part += "^" + strconv.Itoa(x)
		}
		if f.exp > 0 {
			num = append(num, part)
		} else {
			den = append(den, part)
		}
	}

	c := m.coeff
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	var head string
	switch {
	case len(num) == 0:
		head = strconv.FormatFloat(c, 'g', -1, 64)
	case c == 1:
		head = strings.Join(num, "*")
	default:
		head = strconv.FormatFloat(c, 'g', -1, 64) + "*" + strings.Join(num, "*")
	}
	switch len(den) {
	case 0:
		return sign + head
	case 1:
		return sign + head + "/" + den[0]
	default:
		return sign + head + "/(" + strings.Join(den, "*") + ")"
	}
}

func ipow(x complex128, e int) complex128 {
	if e < 0 {
		return 1 / ipow(x, -e)
	}
	r := complex(1, 0)
	for ; e > 0; e-- {
		r *= x
	}
	return r
}

// Bound is an expression with every symbol except Var replaced by its value,
// kept as coefficients per power of s.
type Bound struct {
	coeffs []complex128
	exps   []int
}

// Bind substitutes values into e once so that it can be evaluated cheaply
// at many frequencies.
func (e Expr) Bind(values Values) (Bound, error) {
	byExp := map[int]complex128{}
	for _, m := range e.terms {
		v := complex(m.coeff, 0)
		x := 0
		for _, f := range m.factors {
			if f.name == Var {
				x = f.exp
				continue
			}
			val, ok := values[f.name]
			if !ok {
				return Bound{}, fmt.Errorf("%w: %s", ErrUnboundSymbol, f.name)
			}
			v *= ipow(val, f.exp)
		}
		byExp[x] += v
	}
	exps := make([]int, 0, len(byExp))
	for x := range byExp {
		exps = append(exps, x)
	}
	sort.Ints(exps)
	b := Bound{exps: exps, coeffs: make([]complex128, len(exps))}
	for i, x := range exps {
		b.coeffs[i] = byExp[x]
	}
	return b, nil
}

// At evaluates the bound expression at s.
func (b Bound) At(s complex128) complex128 {
	var sum complex128
	for i, x := range b.exps {
		sum += b.coeffs[i] * ipow(s, x)
	}
	return sum
}

// IsFinite reports whether both parts of v are finite.
func IsFinite(v complex128) bool {
	return !cmplx.IsNaN(v) && !math.IsInf(real(v), 0) && !math.IsInf(imag(v), 0)
}

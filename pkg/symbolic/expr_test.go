package symbolic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExprCanonicalForm(t *testing.T) {
	g := Pow("R1", -1)
	sum := Add(g, Sym("C1"), Neg(g), Scale(g, 2))

	assert.Equal(t, 2, sum.Len())
	assert.True(t, sum.Equal(Add(Sym("C1"), Scale(Pow("R1", -1), 2))))
	assert.True(t, Sub(sum, sum).IsZero())
	assert.Equal(t, "0", Expr{}.String())
}

func TestExprString(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"conductance", Pow("R1", -1), "1/R1"},
		{"capacitor", Mul(S(), Sym("C1")), "C1*s"},
		{"inductor", Neg(Mul(Pow(Var, -1), Pow("L1", -1))), "-1/(L1*s)"},
		{"constant", Num(-1), "-1"},
		{"sum", Add(Pow("R1", -1), Pow("R2", -1)), "1/R1 + 1/R2"},
		{"difference", Sub(Sym("gm"), Num(2)), "-2 + gm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.expr.String())
		})
	}
}

func TestExprEvalDiffZero(t *testing.T) {
	// 1/R + s*C
	y := Add(Pow("R", -1), Mul(S(), Sym("C")))
	values := Values{"R": 1000, "C": 1e-6}

	v, err := y.Eval(values, complex(0, 1000))
	require.NoError(t, err)
	assert.InDelta(t, 1e-3, real(v), 1e-15)
	assert.InDelta(t, 1e-3, imag(v), 1e-15)

	c0, err := y.Zero(Var)
	require.NoError(t, err)
	assert.True(t, c0.Equal(Pow("R", -1)))
	assert.True(t, y.Diff(Var).Equal(Sym("C")))

	lo, hi := y.Degree(Var)
	assert.Equal(t, 0, lo)
	assert.Equal(t, 1, hi)

	_, err = y.Eval(Values{"R": 1}, 1)
	assert.ErrorIs(t, err, ErrUnboundSymbol)
}

func TestExprZeroRejectsPole(t *testing.T) {
	yl := Mul(Pow(Var, -1), Pow("L", -1))
	_, err := yl.Zero(Var)
	assert.ErrorIs(t, err, ErrPole)
}

func TestBindMatchesEval(t *testing.T) {
	e := Add(Mul(Num(3), Sym("a"), S()), Pow("b", -1), Mul(Pow(Var, -1), Sym("a")))
	values := Values{"a": complex(2, 1), "b": 4}
	b, err := e.Bind(values)
	require.NoError(t, err)

	for _, s := range []complex128{complex(0, 1), complex(1, -3), complex(-2, 0.5)} {
		want, err := e.Eval(values, s)
		require.NoError(t, err)
		got := b.At(s)
		assert.InDelta(t, real(want), real(got), 1e-12)
		assert.InDelta(t, imag(want), imag(got), 1e-12)
	}
}

func TestSymbols(t *testing.T) {
	e := Add(Mul(S(), Sym("C1")), Pow("R2", -1), Sym("A"))
	assert.Equal(t, []string{"A", "C1", "R2"}, e.Symbols())
}

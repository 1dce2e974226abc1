package analysis

import (
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/toy-mor/pkg/matrix"
	"github.com/edp1096/toy-mor/pkg/symbolic"
)

// lowpass returns V1 -> R -> out, C from out to ground.
// Unknowns: V_in, V_out, I_V1.
func lowpass() ([][]symbolic.Expr, []symbolic.Expr, symbolic.Values) {
	g := symbolic.Pow("R", -1)
	sc := symbolic.Mul(symbolic.S(), symbolic.Sym("C"))
	a := [][]symbolic.Expr{
		{g, symbolic.Neg(g), symbolic.Num(1)},
		{symbolic.Neg(g), symbolic.Add(g, sc), {}},
		{symbolic.Num(1), {}, {}},
	}
	z := []symbolic.Expr{{}, {}, symbolic.Sym("V1")}
	values := symbolic.Values{"R": 1e3, "C": 1e-6, "V1": 1}
	return a, z, values
}

func TestEvaluatorLowpass(t *testing.T) {
	a, z, values := lowpass()
	omegas := []float64{10, 1e3, 1e6}

	for name, solver := range map[string]matrix.Factorizer{"dense": matrix.DenseLU{}, "sparse": matrix.SparseLU{}} {
		t.Run(name, func(t *testing.T) {
			ev, err := NewEvaluator(a, z, values, omegas, 0, 1, WithSolver(solver))
			require.NoError(t, err)
			ev.Prepare()

			h, err := ev.Transfer()
			require.NoError(t, err)
			for k, w := range omegas {
				want := 1 / complex(1, w*1e-3)
				assert.Less(t, cmplx.Abs(h[k]-want), 1e-9, "ω=%g", w)
			}
		})
	}
}

func TestEvaluatorSolve(t *testing.T) {
	a, z, values := lowpass()
	ev, err := NewEvaluator(a, z, values, []float64{1e3}, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1e3}, ev.Omegas())

	m, rhs := ev.At(0)
	assert.Less(t, cmplx.Abs(m.At(1, 1)-complex(1e-3, 1e-3)), 1e-15)
	assert.Equal(t, complex(1, 0), rhs[2])

	x, err := ev.Solve(0)
	require.NoError(t, err)
	require.Len(t, x, 3)
	assert.Equal(t, complex(1, 0), x[0])
	assert.Less(t, cmplx.Abs(x[1]-complex(0.5, -0.5)), 1e-12)
	// I_V1 is the current from in through the source to ground.
	assert.Less(t, cmplx.Abs(x[2]+(1-x[1])*1e-3), 1e-12)
}

func TestEvaluatorPerturbed(t *testing.T) {
	a, z, values := lowpass()
	omegas := []float64{10, 1e6}
	ev, err := NewEvaluator(a, z, values, omegas, 0, 1)
	require.NoError(t, err)

	// Without the capacitor the divider is flat at 1.
	h, err := ev.Perturbed(1, 1, symbolic.Mul(symbolic.S(), symbolic.Sym("C")))
	require.NoError(t, err)
	for _, v := range h {
		assert.InDelta(t, 1, real(v), 1e-12)
		assert.InDelta(t, 0, imag(v), 1e-12)
	}

	// Removing the source coupling makes the system singular.
	_, err = ev.Perturbed(2, 0, symbolic.Num(1))
	assert.ErrorIs(t, err, ErrNonInvertible)

	// The cached reference is untouched.
	ref, err := ev.Transfer()
	require.NoError(t, err)
	assert.Less(t, cmplx.Abs(ref[1]-1/complex(1, 1e3)), 1e-12)
}

func TestEvaluatorErrors(t *testing.T) {
	a, z, _ := lowpass()
	_, err := NewEvaluator(a, z, symbolic.Values{"R": 1}, []float64{1}, 0, 1)
	assert.ErrorIs(t, err, symbolic.ErrUnboundSymbol)

	_, err = NewEvaluator(a, z, symbolic.Values{}, []float64{1}, 0, 7)
	assert.Error(t, err)

	// No excitation: the input unknown is zero.
	a, _, values := lowpass()
	ev, err := NewEvaluator(a, make([]symbolic.Expr, 3), values, []float64{1}, 0, 1)
	require.NoError(t, err)
	_, err = ev.Transfer()
	assert.ErrorIs(t, err, ErrNonInvertible)
}

func TestTransferLinearMatchesEvaluator(t *testing.T) {
	a, z, values := lowpass()
	omegas := []float64{1, 100, 1e4}

	l := Linear{A0: matrix.NewDense(3), A1: matrix.NewDense(3), Z0: []complex128{0, 0, 1}, Z1: make([]complex128, 3)}
	l.A0.Set(0, 0, 1e-3)
	l.A0.Set(0, 1, -1e-3)
	l.A0.Set(0, 2, 1)
	l.A0.Set(1, 0, -1e-3)
	l.A0.Set(1, 1, 1e-3)
	l.A0.Set(2, 0, 1)
	l.A1.Set(1, 1, 1e-6)

	fast, err := TransferLinear(l, omegas, 0, 1, nil)
	require.NoError(t, err)
	ref, err := Sweep(a, z, values, omegas, 0, 1)
	require.NoError(t, err)

	resp := NewResponse("fast", omegas, fast)
	for k := range omegas {
		assert.InDelta(t, ref.Magnitude[k], resp.Magnitude[k], 1e-12)
		assert.InDelta(t, ref.Phase[k], resp.Phase[k], 1e-9)
	}
}

func TestEvaluateNumeric(t *testing.T) {
	a, z, values := lowpass()
	tf, err := symbolic.TransferFunction(a, z, 0, 1)
	require.NoError(t, err)

	r, err := EvaluateNumeric(tf, values, []float64{1e3})
	require.NoError(t, err)
	assert.InDelta(t, 1/math.Sqrt2, r.Magnitude[0], 1e-12)
	assert.InDelta(t, -45, r.Phase[0], 1e-9)
	assert.InDelta(t, -3.0103, r.MagnitudeDB()[0], 1e-4)
}

func TestFrequencies(t *testing.T) {
	f, err := Frequencies(1, 1000, 4, "DEC")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 10, 100, 1000}, f, 1e-9)

	f, err = Frequencies(0, 30, 4, "lin")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 10, 20, 30}, f)

	_, err = Frequencies(0, 10, 3, "DEC")
	assert.Error(t, err)
	_, err = Frequencies(1, 10, 3, "LOG")
	assert.Error(t, err)

	w := HzToRad([]float64{1})
	assert.InDelta(t, 2*math.Pi, w[0], 1e-12)
}

func TestSaveBode(t *testing.T) {
	a, z, values := lowpass()
	omegas, err := Frequencies(1, 1e6, 25, "DEC")
	require.NoError(t, err)
	r, err := Sweep(a, z, values, omegas, 0, 1)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "bode.png")
	require.NoError(t, SaveBode(path, "lowpass", r))
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, st.Size())
}

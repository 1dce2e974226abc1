package sta

import (
	"context"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/toy-mor/pkg/analysis"
	"github.com/edp1096/toy-mor/pkg/circuit"
	"github.com/edp1096/toy-mor/pkg/mna"
	"github.com/edp1096/toy-mor/pkg/reduce"
	"github.com/edp1096/toy-mor/pkg/symbolic"
)

func build(t *testing.T, elems ...circuit.Element) *circuit.Circuit {
	t.Helper()
	ckt := circuit.New(t.Name())
	ckt.Add(elems...)
	return ckt
}

func TestTableauDivider(t *testing.T) {
	ckt := build(t,
		circuit.NewVoltageSource("V1", "in", "0", 1),
		circuit.NewResistor("R1", "in", "out", 1e3),
		circuit.NewResistor("R2", "out", "0", 1e3),
	)
	sys, err := Formulate(ckt)
	require.NoError(t, err)

	assert.Equal(t, []string{"V_in", "V_out", "I_V1", "I_R1", "I_R2", "U_V1", "U_R1", "U_R2"}, sys.X)
	require.Len(t, sys.A, 8)
	require.Len(t, sys.Z, 8)
	assert.True(t, sys.Z[5].Equal(symbolic.Sym("V1")))

	// R1 row: R1·I_R1 - U_R1 = 0
	assert.True(t, sys.A[6][3].Equal(symbolic.Sym("R1")))
	assert.True(t, sys.A[6][6].Equal(symbolic.Num(-1)))
	// KVL of R1: V_in - V_out - U_R1 = 0
	assert.True(t, sys.A[3][0].Equal(symbolic.Num(1)))
	assert.True(t, sys.A[3][1].Equal(symbolic.Num(-1)))

	tf, err := symbolic.TransferFunction(sys.A, sys.Z, 0, 1)
	require.NoError(t, err)
	h, err := tf.Eval(sys.Values, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, real(h), 1e-12)
	assert.InDelta(t, 0, imag(h), 1e-12)
}

func TestTableauMatchesNodalAnalysis(t *testing.T) {
	nodeControlled := circuit.Element{
		Kind:   circuit.CCCS,
		Name:   "F2",
		Nodes:  []string{"0", "g", "m", "0"},
		Params: map[string]circuit.Param{circuit.ValueKey: circuit.Symbolic("F2", 2)},
	}
	ckt := build(t,
		circuit.NewVoltageSource("V1", "in", "0", 1),
		circuit.NewResistor("R1", "in", "a", 1e3),
		circuit.NewResistor("R2", "a", "m", 2e3),
		nodeControlled,
		circuit.NewResistor("R7", "g", "0", 1e3),
		circuit.NewVCVS("E1", "b", "0", "a", "0", 3),
		circuit.NewResistor("R3", "b", "c", 1e3),
		circuit.NewCapacitor("C1", "c", "0", 1e-6),
		circuit.NewVCCS("G1", "0", "e", "c", "0", 1e-3),
		circuit.NewResistor("R5", "e", "0", 1e3),
		circuit.NewInductor("L1", "e", "h", 1e-3),
		circuit.NewResistor("R8", "h", "0", 100),
		circuit.NewCCCS("F1", "0", "d", "V1", 0.5),
		circuit.NewResistor("R4", "d", "0", 500),
		circuit.NewCCVS("H1", "f", "0", "R4", 100),
		circuit.NewResistor("R6", "f", "0", 1e3),
	)
	nodal, err := mna.Formulate(ckt)
	require.NoError(t, err)
	tableau, err := Formulate(ckt)
	require.NoError(t, err)
	assert.Contains(t, tableau.X, "U_F2.ctrl")

	omegas := []float64{10, 1e3, 1e5}
	for _, node := range []string{"a", "g", "b", "c", "e", "h", "d", "f"} {
		t.Run(node, func(t *testing.T) {
			want := transfer(t, nodal, omegas, node)
			got := transfer(t, tableau, omegas, node)
			for k := range omegas {
				assert.LessOrEqual(t, cmplx.Abs(want[k]-got[k]), 1e-9*cmplx.Abs(want[k]), "ω=%g: %v vs %v", omegas[k], want[k], got[k])
				assert.NotZero(t, want[k])
			}
		})
	}
}

func transfer(t *testing.T, sys *mna.System, omegas []float64, node string) []complex128 {
	t.Helper()
	in, err := sys.Unknown("in")
	require.NoError(t, err)
	out, err := sys.Unknown(node)
	require.NoError(t, err)
	ev, err := analysis.NewEvaluator(sys.A, sys.Z, sys.Values, omegas, in, out)
	require.NoError(t, err)
	h, err := ev.Transfer()
	require.NoError(t, err)
	return h
}

func TestTableauReduces(t *testing.T) {
	ckt := build(t,
		circuit.NewVoltageSource("V1", "in", "0", 1),
		circuit.NewResistor("R1", "in", "out", 1e3),
		circuit.NewCapacitor("C1", "out", "0", 1e-6),
		circuit.NewInductor("L1", "out", "0", 1),
	)
	sys, err := Formulate(ckt)
	require.NoError(t, err)
	for i, row := range sys.A {
		for j, e := range row {
			lo, hi := e.Degree(symbolic.Var)
			assert.True(t, lo >= 0 && hi <= 1, "A[%d][%d] = %s", i, j, e)
		}
	}

	points := []reduce.ReferencePoint{{Omega: 10, AllowedError: 0.05}, {Omega: 100, AllowedError: 0.05}}
	res, err := reduce.Reduce(context.Background(), sys, reduce.Request{
		Input: "in", Output: "out",
		Points:           points,
		EliminationParam: 0.01,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, res.TrueError, res.Budget)

	omegas := []float64{10, 100}
	ref, err := analysis.Sweep(sys.A, sys.Z, sys.Values, omegas, 0, 1)
	require.NoError(t, err)
	reduced, err := analysis.Sweep(reduce.Subtract(sys.A, res.Removed), sys.Z, sys.Values, omegas, 0, 1)
	require.NoError(t, err)
	for k := range omegas {
		rel := math.Abs(ref.Magnitude[k]-reduced.Magnitude[k]) / ref.Magnitude[k]
		assert.LessOrEqual(t, rel, res.Budget)
	}
}

func TestTableauErrors(t *testing.T) {
	index, err := circuit.NewNodeIndex([]string{"a"})
	require.NoError(t, err)

	_, err = Build([]circuit.Element{circuit.NewResistor("R1", "a", "b", 1)}, index)
	assert.ErrorIs(t, err, circuit.ErrUnknownNode)

	_, err = Build([]circuit.Element{circuit.NewCCCS("F1", "a", "0", "Vx", 1)}, index)
	assert.ErrorIs(t, err, circuit.ErrUnknownControl)

	_, err = Build([]circuit.Element{{Kind: circuit.Resistor, Name: "R1", Nodes: []string{"a", "0"}}}, index)
	assert.ErrorIs(t, err, circuit.ErrMalformedElement)
}

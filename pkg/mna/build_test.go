package mna

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/toy-mor/pkg/circuit"
	"github.com/edp1096/toy-mor/pkg/symbolic"
)

func g(name string) symbolic.Expr { return symbolic.Pow(name, -1) }

func TestStampingResistorNetwork(t *testing.T) {
	ckt := circuit.New("ladder")
	ckt.Add(
		circuit.NewResistor("R1", "1", "0", 1e3),
		circuit.NewResistor("R2", "1", "2", 2e3),
		circuit.NewResistor("R3", "2", "0", 3e3),
	)
	sys, err := Formulate(ckt)
	require.NoError(t, err)

	want := [][]symbolic.Expr{
		{symbolic.Add(g("R1"), g("R2")), symbolic.Neg(g("R2"))},
		{symbolic.Neg(g("R2")), symbolic.Add(g("R2"), g("R3"))},
	}
	require.Equal(t, 2, sys.Size())
	for i := range want {
		for j := range want[i] {
			assert.True(t, want[i][j].Equal(sys.A[i][j]), "A[%d][%d] = %s, want %s", i, j, sys.A[i][j], want[i][j])
		}
	}
	assert.Equal(t, []string{"V_1", "V_2"}, sys.X)
	assert.Equal(t, symbolic.Values{"R1": 1e3, "R2": 2e3, "R3": 3e3}, sys.Values)
}

func TestGrowthPerVoltageDefiningElement(t *testing.T) {
	index, err := circuit.NewNodeIndex([]string{"a", "b", "c"})
	require.NoError(t, err)

	elements := []circuit.Element{
		circuit.NewResistor("R1", "a", "b", 1),
		circuit.NewResistor("R2", "b", "c", 1),
		circuit.NewResistor("R3", "c", "0", 1),
	}
	base, err := Build(elements, index)
	require.NoError(t, err)
	require.Equal(t, 3, base.Size())

	sources := []circuit.Element{
		circuit.NewVoltageSource("V1", "a", "0", 5),
		circuit.NewVoltageSource("V2", "b", "c", 0),
		circuit.NewVCVS("E1", "c", "0", "a", "b", 2),
		circuit.NewCCVS("H1", "b", "0", "V1", 10),
	}
	for k := range sources {
		sys, err := Build(append(append([]circuit.Element(nil), elements...), sources[:k+1]...), index)
		require.NoError(t, err)

		n := base.Size() + k + 1
		assert.Equal(t, n, sys.Size())
		assert.Len(t, sys.A, n)
		for _, row := range sys.A {
			assert.Len(t, row, n)
		}
		assert.Len(t, sys.Z, n)
		assert.Equal(t, "I_"+sources[k].Name, sys.X[n-1])
	}

	sys, err := Build(append(elements, sources...), index)
	require.NoError(t, err)
	assert.True(t, sys.Z[3].Equal(symbolic.Sym("V1")))
	assert.True(t, sys.Z[4].IsZero(), "zero-valued source stays out of z")
	assert.True(t, sys.Z[5].IsZero())
	assert.True(t, sys.Z[6].IsZero())
}

func TestStampingSources(t *testing.T) {
	ckt := circuit.New("sources")
	ckt.Add(
		circuit.NewCurrentSource("I1", "a", "b", 2),
		circuit.NewResistor("R1", "a", "0", 1),
		circuit.NewResistor("R2", "b", "0", 1),
		circuit.NewVCCS("G1", "b", "0", "a", "0", 0.5),
		circuit.NewVCVS("E1", "c", "0", "a", "b", 3),
	)
	sys, err := Formulate(ckt)
	require.NoError(t, err)

	a, _ := sys.Unknown("a")
	b, _ := sys.Unknown("b")
	c, _ := sys.Unknown("c")
	e, err := sys.Unknown("I_E1")
	require.NoError(t, err)

	assert.True(t, sys.Z[a].Equal(symbolic.Neg(symbolic.Sym("I1"))))
	assert.True(t, sys.Z[b].Equal(symbolic.Sym("I1")))

	assert.True(t, sys.A[b][a].Equal(symbolic.Sym("G1")))

	assert.True(t, sys.A[e][c].Equal(symbolic.Num(1)))
	assert.True(t, sys.A[c][e].Equal(symbolic.Num(1)))
	assert.True(t, sys.A[e][a].Equal(symbolic.Neg(symbolic.Sym("E1"))))
	assert.True(t, sys.A[e][b].Equal(symbolic.Sym("E1")))
}

func TestCurrentControlReusesBranch(t *testing.T) {
	ckt := circuit.New("cccs")
	ckt.Add(
		circuit.NewVoltageSource("V1", "in", "0", 1),
		circuit.NewResistor("R1", "in", "0", 1e3),
		circuit.NewCCCS("F1", "out", "0", "V1", 10),
		circuit.NewCCCS("F2", "out", "0", "R1", 2),
		circuit.NewCCVS("H1", "x", "0", "R1", 5),
		circuit.NewResistor("R2", "out", "0", 1e3),
		circuit.NewResistor("R3", "x", "0", 1e3),
	)
	sys, err := Formulate(ckt)
	require.NoError(t, err)

	// in, out, x, I_V1, I_R1 (exposed once for F2 and H1), I_H1
	assert.Equal(t, []string{"V_in", "V_out", "V_x", "I_V1", "I_R1", "I_H1"}, sys.X)

	out, _ := sys.Unknown("out")
	v1, _ := sys.Unknown("I_V1")
	r1, _ := sys.Unknown("I_R1")
	h1, _ := sys.Unknown("I_H1")
	in, _ := sys.Unknown("in")

	assert.True(t, sys.A[out][v1].Equal(symbolic.Sym("F1")))
	assert.True(t, sys.A[out][r1].Equal(symbolic.Sym("F2")))
	assert.True(t, sys.A[h1][r1].Equal(symbolic.Neg(symbolic.Sym("H1"))))

	assert.True(t, sys.A[r1][in].Equal(g("R1")))
	assert.True(t, sys.A[r1][r1].Equal(symbolic.Num(-1)))
}

func TestCurrentControlByNodes(t *testing.T) {
	ckt := circuit.New("ammeter")
	ckt.Add(
		circuit.NewVoltageSource("V1", "in", "0", 1),
		circuit.NewResistor("R1", "in", "mid", 1e3),
		circuit.Element{
			Kind:   circuit.CCCS,
			Name:   "F1",
			Nodes:  []string{"out", "0", "mid", "0"},
			Params: map[string]circuit.Param{circuit.ValueKey: circuit.Symbolic("F1", 100)},
		},
		circuit.NewResistor("R2", "out", "0", 1e3),
	)
	sys, err := Formulate(ckt)
	require.NoError(t, err)

	amm, err := sys.Unknown("I_F1.ctrl")
	require.NoError(t, err)
	mid, _ := sys.Unknown("mid")
	out, _ := sys.Unknown("out")

	assert.True(t, sys.A[mid][amm].Equal(symbolic.Num(1)))
	assert.True(t, sys.A[amm][mid].Equal(symbolic.Num(1)))
	assert.True(t, sys.A[out][amm].Equal(symbolic.Sym("F1")))
}

func TestInductorForms(t *testing.T) {
	ckt := circuit.New("rl")
	ckt.Add(
		circuit.NewInductor("L1", "a", "0", 1e-3),
	)

	sys, err := Formulate(ckt)
	require.NoError(t, err)
	assert.Equal(t, "1/(L1*s)", sys.A[0][0].String())

	sys, err = Formulate(ckt, WithInductorBranches())
	require.NoError(t, err)
	assert.Equal(t, []string{"V_a", "I_L1"}, sys.X)
	assert.Equal(t, "-L1*s", sys.A[1][1].String())
	lo, hi := sys.A[1][1].Degree(symbolic.Var)
	assert.Equal(t, 1, lo)
	assert.Equal(t, 1, hi)
}

func TestLiteralValues(t *testing.T) {
	index, err := circuit.NewNodeIndex([]string{"a"})
	require.NoError(t, err)
	literal := func(name string, r float64) circuit.Element {
		return circuit.Element{
			Kind:   circuit.Resistor,
			Name:   name,
			Nodes:  []string{"a", "0"},
			Params: map[string]circuit.Param{circuit.ValueKey: circuit.Literal(r)},
		}
	}
	sys, err := Build([]circuit.Element{literal("R1", 4), literal("R2", 4)}, index)
	require.NoError(t, err)
	assert.True(t, sys.A[0][0].Equal(symbolic.Num(0.5)))
	assert.Empty(t, sys.Values)

	parts := sys.Parts(0, 0)
	require.Len(t, parts, 2)
	assert.True(t, parts[0].Equal(symbolic.Num(0.25)))
	assert.True(t, parts[1].Equal(symbolic.Num(0.25)))

	c := sys.Clone()
	assert.Len(t, c.Parts(0, 0), 2)
}

func TestPartsOfUnstampedEntry(t *testing.T) {
	sys := &System{A: [][]symbolic.Expr{{symbolic.Num(2), {}}, {{}, {}}}}
	assert.Len(t, sys.Parts(0, 0), 1)
	assert.Empty(t, sys.Parts(0, 1))
}

func TestPreconditionErrors(t *testing.T) {
	index, err := circuit.NewNodeIndex([]string{"a"})
	require.NoError(t, err)

	_, err = Build([]circuit.Element{circuit.NewResistor("R1", "a", "b", 1)}, index)
	assert.ErrorIs(t, err, circuit.ErrUnknownNode)

	_, err = Build([]circuit.Element{circuit.NewCCCS("F1", "a", "0", "Vx", 1)}, index)
	assert.ErrorIs(t, err, circuit.ErrUnknownControl)

	_, err = Build([]circuit.Element{{Kind: circuit.Resistor, Name: "R1", Nodes: []string{"a", "0"}}}, index)
	assert.ErrorIs(t, err, circuit.ErrMalformedElement)
}

func TestUnknownAndPrint(t *testing.T) {
	ckt := circuit.New("divider")
	ckt.Add(
		circuit.NewVoltageSource("V1", "in", "0", 1),
		circuit.NewResistor("R1", "in", "out", 1e3),
		circuit.NewResistor("R2", "out", "0", 1e3),
	)
	sys, err := Formulate(ckt)
	require.NoError(t, err)

	i, err := sys.Unknown("V_out")
	require.NoError(t, err)
	assert.Equal(t, 1, i)
	_, err = sys.Unknown("nowhere")
	assert.ErrorIs(t, err, ErrUnknownUnknown)

	var sb strings.Builder
	sys.Print(&sb)
	assert.Contains(t, sb.String(), "[V_in, V_out] = -1/R1")
	assert.Contains(t, sb.String(), "[I_V1] = V1")

	c := sys.Clone()
	c.A[0][0] = symbolic.Num(7)
	assert.False(t, sys.A[0][0].Equal(c.A[0][0]))

	h, err := symbolic.TransferFunction(sys.A, sys.Z, 0, 1)
	require.NoError(t, err)
	v, err := h.Eval(sys.Values, 0)
	require.NoError(t, err)
	assert.Equal(t, complex(0.5, 0), v)
}

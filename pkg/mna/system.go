// Package mna formulates the modified nodal analysis system A(s)·x = z(s)
// of a linear circuit with symbolic entries.
package mna

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/edp1096/toy-mor/pkg/circuit"
	"github.com/edp1096/toy-mor/pkg/matrix"
	"github.com/edp1096/toy-mor/pkg/symbolic"
)

var ErrUnknownUnknown = errors.New("mna: unknown not in system")

// System is the formulated equation system. X lists the node voltages V_<node>
// followed by branch currents I_<element> in creation order; A, Z and X
// always have the same length.
type System struct {
	A      [][]symbolic.Expr
	Z      []symbolic.Expr
	X      []string
	Values symbolic.Values

	parts map[[2]int][]symbolic.Expr // stamps per 0-based entry
}

var _ matrix.DeviceMatrix = (*System)(nil)

// NewSystem returns the empty system over the nodes of index.
func NewSystem(index *circuit.NodeIndex) *System {
	s := &System{Values: symbolic.Values{}}
	for _, name := range index.Names() {
		s.Expand(NodeUnknown(name))
	}
	return s
}

// NodeUnknown is the unknown name of a node voltage.
func NodeUnknown(node string) string { return "V_" + node }

func (s *System) Size() int { return len(s.X) }

func (s *System) AddElement(i, j int, value symbolic.Expr) {
	if i <= 0 || j <= 0 || value.IsZero() {
		return
	}
	s.A[i-1][j-1] = symbolic.Add(s.A[i-1][j-1], value)
	if s.parts == nil {
		s.parts = make(map[[2]int][]symbolic.Expr)
	}
	k := [2]int{i - 1, j - 1}
	s.parts[k] = append(s.parts[k], value)
}

// Parts returns what was stamped at the 0-based entry (i, j), one expression
// per stamp in stamping order, so that equal contributions of two elements
// stay apart. An entry that was not built by stamping is its own only part.
func (s *System) Parts(i, j int) []symbolic.Expr {
	if p, ok := s.parts[[2]int{i, j}]; ok {
		return p
	}
	if s.A[i][j].IsZero() {
		return nil
	}
	return []symbolic.Expr{s.A[i][j]}
}

func (s *System) AddRHS(i int, value symbolic.Expr) {
	if i <= 0 || value.IsZero() {
		return
	}
	s.Z[i-1] = symbolic.Add(s.Z[i-1], value)
}

func (s *System) Expand(unknown string) int {
	for i := range s.A {
		s.A[i] = append(s.A[i], symbolic.Expr{})
	}
	s.X = append(s.X, unknown)
	s.A = append(s.A, make([]symbolic.Expr, len(s.X)))
	s.Z = append(s.Z, symbolic.Expr{})
	return len(s.X)
}

func (s *System) Bind(symbol string, value complex128) {
	s.Values[symbol] = value
}

// Unknown returns the 0-based position of an unknown. A bare node name is
// accepted for its voltage.
func (s *System) Unknown(name string) (int, error) {
	for i, x := range s.X {
		if x == name || x == NodeUnknown(name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownUnknown, name)
}

// Clone returns a deep copy of the matrix and vectors.
func (s *System) Clone() *System {
	c := &System{
		A:      make([][]symbolic.Expr, len(s.A)),
		Z:      append([]symbolic.Expr(nil), s.Z...),
		X:      append([]string(nil), s.X...),
		Values: make(symbolic.Values, len(s.Values)),
	}
	for i, row := range s.A {
		c.A[i] = append([]symbolic.Expr(nil), row...)
	}
	for k, v := range s.Values {
		c.Values[k] = v
	}
	if s.parts != nil {
		c.parts = make(map[[2]int][]symbolic.Expr, len(s.parts))
		for k, p := range s.parts {
			c.parts[k] = append([]symbolic.Expr(nil), p...)
		}
	}
	return c
}

// Print writes the unknowns, the nonzero entries of A and z.
func (s *System) Print(w io.Writer) {
	fmt.Fprintf(w, "Unknowns (%d): %s\n", len(s.X), strings.Join(s.X, ", "))
	fmt.Fprintln(w, "A:")
	for i, row := range s.A {
		for j, e := range row {
			if !e.IsZero() {
				fmt.Fprintf(w, "  [%s, %s] = %s\n", s.X[i], s.X[j], e)
			}
		}
	}
	fmt.Fprintln(w, "z:")
	for i, e := range s.Z {
		if !e.IsZero() {
			fmt.Fprintf(w, "  [%s] = %s\n", s.X[i], e)
		}
	}
}

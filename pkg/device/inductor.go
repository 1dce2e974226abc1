package device

import (
	"github.com/edp1096/toy-mor/pkg/matrix"
	"github.com/edp1096/toy-mor/pkg/symbolic"
)

// Inductor stamps 1/(s·L) between its nodes, or with Branch set a branch
// row V(n1) - V(n2) - s·L·I_L = 0 that keeps every entry linear in s.
type Inductor struct {
	BaseDevice
	Branch bool
}

var _ CurrentExposer = (*Inductor)(nil)

func (l *Inductor) GetType() string { return "L" }

func (l *Inductor) admittance(m matrix.DeviceMatrix) symbolic.Expr {
	return symbolic.Mul(symbolic.Pow(symbolic.Var, -1), l.reciprocal(m))
}

func (l *Inductor) Stamp(m matrix.DeviceMatrix) error {
	n1, n2 := l.Nodes[0], l.Nodes[1]
	if !l.Branch {
		stampAdmittance(m, n1, n2, l.admittance(m))
		return nil
	}

	br := l.ensureBranch(m)
	stampBranch(m, n1, n2, br)
	m.AddElement(br, br, symbolic.Neg(symbolic.Mul(symbolic.S(), l.param(m))))
	return nil
}

func (l *Inductor) ExposeCurrent(m matrix.DeviceMatrix) int {
	if l.Branch {
		return l.ensureBranch(m)
	}
	return l.exposeAdmittance(m, l.admittance(m))
}

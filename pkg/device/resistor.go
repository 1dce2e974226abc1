package device

import (
	"github.com/edp1096/toy-mor/pkg/matrix"
	"github.com/edp1096/toy-mor/pkg/symbolic"
)

type Resistor struct {
	BaseDevice
}

var _ CurrentExposer = (*Resistor)(nil)

func (r *Resistor) GetType() string { return "R" }

func (r *Resistor) admittance(m matrix.DeviceMatrix) symbolic.Expr {
	return r.reciprocal(m)
}

func (r *Resistor) Stamp(m matrix.DeviceMatrix) error {
	stampAdmittance(m, r.Nodes[0], r.Nodes[1], r.admittance(m))
	return nil
}

func (r *Resistor) ExposeCurrent(m matrix.DeviceMatrix) int {
	return r.exposeAdmittance(m, r.admittance(m))
}

// exposeAdmittance adds the row Y·(V(n1) - V(n2)) - I = 0 for an admittance
// element so that its current becomes an unknown.
func (d *BaseDevice) exposeAdmittance(m matrix.DeviceMatrix, y symbolic.Expr) int {
	if d.branchIdx != 0 {
		return d.branchIdx
	}
	br := d.ensureBranch(m)
	n1, n2 := d.Nodes[0], d.Nodes[1]
	m.AddElement(br, n1, y)
	m.AddElement(br, n2, symbolic.Neg(y))
	m.AddElement(br, br, symbolic.Num(-1))
	return br
}

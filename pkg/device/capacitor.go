package device

import (
	"github.com/edp1096/toy-mor/pkg/matrix"
	"github.com/edp1096/toy-mor/pkg/symbolic"
)

type Capacitor struct {
	BaseDevice
}

var _ CurrentExposer = (*Capacitor)(nil)

func (c *Capacitor) GetType() string { return "C" }

// s·C
func (c *Capacitor) admittance(m matrix.DeviceMatrix) symbolic.Expr {
	return symbolic.Mul(symbolic.S(), c.param(m))
}

func (c *Capacitor) Stamp(m matrix.DeviceMatrix) error {
	stampAdmittance(m, c.Nodes[0], c.Nodes[1], c.admittance(m))
	return nil
}

func (c *Capacitor) ExposeCurrent(m matrix.DeviceMatrix) int {
	return c.exposeAdmittance(m, c.admittance(m))
}

package device

import (
	"fmt"

	"github.com/edp1096/toy-mor/pkg/circuit"
	"github.com/edp1096/toy-mor/pkg/matrix"
	"github.com/edp1096/toy-mor/pkg/symbolic"
)

// VCVS holds V(op) - V(on) = gain·(V(cp) - V(cn)).
type VCVS struct {
	BaseDevice
}

var _ CurrentExposer = (*VCVS)(nil)

func (e *VCVS) GetType() string { return "E" }

func (e *VCVS) Stamp(m matrix.DeviceMatrix) error {
	op, on, cp, cn := e.Nodes[0], e.Nodes[1], e.Nodes[2], e.Nodes[3]
	br := e.ensureBranch(m)
	stampBranch(m, op, on, br)

	gain := e.param(m)
	m.AddElement(br, cp, symbolic.Neg(gain))
	m.AddElement(br, cn, gain)
	return nil
}

func (e *VCVS) ExposeCurrent(m matrix.DeviceMatrix) int {
	return e.ensureBranch(m)
}

// VCCS drives gm·(V(cp) - V(cn)) from op through the source into on.
type VCCS struct {
	BaseDevice
}

func (g *VCCS) GetType() string { return "G" }

func (g *VCCS) Stamp(m matrix.DeviceMatrix) error {
	op, on, cp, cn := g.Nodes[0], g.Nodes[1], g.Nodes[2], g.Nodes[3]
	gm := g.param(m)
	m.AddElement(op, cp, gm)
	m.AddElement(op, cn, symbolic.Neg(gm))
	m.AddElement(on, cp, symbolic.Neg(gm))
	m.AddElement(on, cn, gm)
	return nil
}

// currentControl resolves the controlling current of a CCCS or CCVS, either
// from a named control device or from a zero-volt ammeter between the two
// control nodes.
type currentControl struct {
	BaseDevice
	control string
	ctrl    CurrentExposer
	ammeter int
}

func (c *currentControl) ControlName() string { return c.control }

func (c *currentControl) SetControl(ctrl CurrentExposer) { c.ctrl = ctrl }

func (c *currentControl) controlIndex(m matrix.DeviceMatrix) (int, error) {
	if c.control != "" {
		if c.ctrl == nil {
			return 0, fmt.Errorf("%w: %s references %s", circuit.ErrUnknownControl, c.Name, c.control)
		}
		return c.ctrl.ExposeCurrent(m), nil
	}
	if c.ammeter == 0 {
		c.ammeter = m.Expand(BranchName(c.Name) + ".ctrl")
		stampBranch(m, c.Nodes[2], c.Nodes[3], c.ammeter)
	}
	return c.ammeter, nil
}

// CCCS drives gain·I(ctrl) from op through the source into on.
type CCCS struct {
	currentControl
}

var _ Controlled = (*CCCS)(nil)

func (f *CCCS) GetType() string { return "F" }

func (f *CCCS) Stamp(m matrix.DeviceMatrix) error {
	ctrl, err := f.controlIndex(m)
	if err != nil {
		return err
	}
	gain := f.param(m)
	m.AddElement(f.Nodes[0], ctrl, gain)
	m.AddElement(f.Nodes[1], ctrl, symbolic.Neg(gain))
	return nil
}

// CCVS holds V(op) - V(on) = r·I(ctrl).
type CCVS struct {
	currentControl
}

var (
	_ Controlled     = (*CCVS)(nil)
	_ CurrentExposer = (*CCVS)(nil)
)

func (h *CCVS) GetType() string { return "H" }

func (h *CCVS) Stamp(m matrix.DeviceMatrix) error {
	br := h.ensureBranch(m)
	stampBranch(m, h.Nodes[0], h.Nodes[1], br)

	ctrl, err := h.controlIndex(m)
	if err != nil {
		return err
	}
	m.AddElement(br, ctrl, symbolic.Neg(h.param(m)))
	return nil
}

func (h *CCVS) ExposeCurrent(m matrix.DeviceMatrix) int {
	return h.ensureBranch(m)
}

package device

import (
	"github.com/edp1096/toy-mor/pkg/matrix"
	"github.com/edp1096/toy-mor/pkg/symbolic"
)

// CurrentSource drives its value from n1 through the source into n2.
type CurrentSource struct {
	BaseDevice
}

var _ CurrentExposer = (*CurrentSource)(nil)

func (i *CurrentSource) GetType() string { return "I" }

func (i *CurrentSource) Stamp(m matrix.DeviceMatrix) error {
	value := i.param(m)
	if i.Value.Value == 0 {
		return nil
	}
	m.AddRHS(i.Nodes[0], symbolic.Neg(value))
	m.AddRHS(i.Nodes[1], value)
	return nil
}

// ExposeCurrent adds the row I_aux = I.
func (i *CurrentSource) ExposeCurrent(m matrix.DeviceMatrix) int {
	if i.branchIdx != 0 {
		return i.branchIdx
	}
	br := i.ensureBranch(m)
	m.AddElement(br, br, symbolic.Num(1))
	if i.Value.Value != 0 {
		m.AddRHS(br, i.param(m))
	}
	return br
}

package device

import (
	"github.com/edp1096/toy-mor/pkg/matrix"
)

// VoltageSource holds V(n1) - V(n2) = V. Its branch current flows from n1
// through the source to n2.
type VoltageSource struct {
	BaseDevice
}

var _ CurrentExposer = (*VoltageSource)(nil)

func (v *VoltageSource) GetType() string { return "V" }

func (v *VoltageSource) Stamp(m matrix.DeviceMatrix) error {
	br := v.ensureBranch(m)
	stampBranch(m, v.Nodes[0], v.Nodes[1], br)

	value := v.param(m)
	if v.Value.Value != 0 {
		m.AddRHS(br, value)
	}
	return nil
}

func (v *VoltageSource) ExposeCurrent(m matrix.DeviceMatrix) int {
	return v.ensureBranch(m)
}

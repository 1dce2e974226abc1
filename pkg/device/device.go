// Package device holds one stamping type per circuit element kind.
package device

import (
	"fmt"

	"github.com/edp1096/toy-mor/pkg/circuit"
	"github.com/edp1096/toy-mor/pkg/matrix"
	"github.com/edp1096/toy-mor/pkg/symbolic"
)

type Device interface {
	GetName() string
	GetType() string
	GetNodes() []int
	Stamp(m matrix.DeviceMatrix) error
}

// CurrentExposer is a device able to provide an unknown that carries the
// current flowing from its first terminal through it to the second. The
// unknown is created at most once and shared by every caller.
type CurrentExposer interface {
	Device
	ExposeCurrent(m matrix.DeviceMatrix) int
}

// Controlled is a current-controlled source waiting for its control device.
type Controlled interface {
	Device
	ControlName() string
	SetControl(ctrl CurrentExposer)
}

// BaseDevice carries what every element has: resolved node indices, the
// main parameter and, once created, the index of its branch unknown.
type BaseDevice struct {
	Name  string
	Nodes []int
	Value circuit.Param

	branchIdx int
}

func (d *BaseDevice) GetName() string { return d.Name }

func (d *BaseDevice) GetNodes() []int { return d.Nodes }

// BranchName is the name of the device's branch-current unknown.
func BranchName(name string) string { return "I_" + name }

func (d *BaseDevice) ensureBranch(m matrix.DeviceMatrix) int {
	if d.branchIdx == 0 {
		d.branchIdx = m.Expand(BranchName(d.Name))
	}
	return d.branchIdx
}

// param records the value substitution and returns the stamped expression.
func (d *BaseDevice) param(m matrix.DeviceMatrix) symbolic.Expr {
	if d.Value.IsSymbolic() {
		m.Bind(d.Value.Symbol, d.Value.Value)
	}
	return d.Value.Expr()
}

// reciprocal returns 1/value.
func (d *BaseDevice) reciprocal(m matrix.DeviceMatrix) symbolic.Expr {
	if d.Value.IsSymbolic() {
		m.Bind(d.Value.Symbol, d.Value.Value)
		return symbolic.Pow(d.Value.Symbol, -1)
	}
	return symbolic.Num(1 / real(d.Value.Value))
}

// stampAdmittance adds y between the two terminals.
func stampAdmittance(m matrix.DeviceMatrix, n1, n2 int, y symbolic.Expr) {
	m.AddElement(n1, n1, y)
	m.AddElement(n1, n2, symbolic.Neg(y))
	m.AddElement(n2, n1, symbolic.Neg(y))
	m.AddElement(n2, n2, y)
}

// stampBranch couples a branch current into the node rows and writes the
// voltage constraint V(n1) - V(n2) into the branch row.
func stampBranch(m matrix.DeviceMatrix, n1, n2, br int) {
	one := symbolic.Num(1)
	m.AddElement(n1, br, one)
	m.AddElement(n2, br, symbolic.Neg(one))
	m.AddElement(br, n1, one)
	m.AddElement(br, n2, symbolic.Neg(one))
}

// Options changes how some kinds are stamped.
type Options struct {
	// InductorBranches stamps inductors as V(n1) - V(n2) - s·L·I_L = 0
	// instead of the admittance 1/(s·L).
	InductorBranches bool
}

// New creates the device for an element with its nodes resolved.
func New(e circuit.Element, index *circuit.NodeIndex, opts Options) (Device, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	nodes := make([]int, len(e.Nodes))
	for i, name := range e.Nodes {
		idx, err := index.Index(name)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", e.Name, err)
		}
		nodes[i] = idx
	}
	base := BaseDevice{
		Name:  e.Name,
		Nodes: nodes,
		Value: e.Value(),
	}

	switch e.Kind {
	case circuit.Resistor:
		return &Resistor{BaseDevice: base}, nil
	case circuit.Capacitor:
		return &Capacitor{BaseDevice: base}, nil
	case circuit.Inductor:
		return &Inductor{BaseDevice: base, Branch: opts.InductorBranches}, nil
	case circuit.VoltageSource:
		return &VoltageSource{BaseDevice: base}, nil
	case circuit.CurrentSource:
		return &CurrentSource{BaseDevice: base}, nil
	case circuit.VCVS:
		return &VCVS{BaseDevice: base}, nil
	case circuit.VCCS:
		return &VCCS{BaseDevice: base}, nil
	case circuit.CCCS:
		return &CCCS{currentControl: currentControl{BaseDevice: base, control: e.Control}}, nil
	case circuit.CCVS:
		return &CCVS{currentControl: currentControl{BaseDevice: base, control: e.Control}}, nil
	}
	return nil, fmt.Errorf("%w: %s: unsupported kind %s", circuit.ErrMalformedElement, e.Name, e.Kind)
}

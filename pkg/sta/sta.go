// Package sta formulates the sparse tableau of a linear circuit. Node
// voltages, branch currents and branch voltages are all unknowns; the rows
// are KCL per node, KVL per branch and one branch equation per branch:
//
//	| 0    Ai   0  | | e |   | 0 |
//	| Aiᵀ  0   -1  | | i | = | 0 |
//	| Ge   Gi   Gu | | u |   | w |
//
// Every entry is at most linear in s (a capacitor holds s·C·u - i = 0), so
// the result can be reduced like an MNA system.
package sta

import (
	"fmt"

	"github.com/edp1096/toy-mor/pkg/circuit"
	"github.com/edp1096/toy-mor/pkg/device"
	"github.com/edp1096/toy-mor/pkg/mna"
	"github.com/edp1096/toy-mor/pkg/symbolic"
)

// VoltageName is the unknown name of a branch voltage.
func VoltageName(name string) string { return "U_" + name }

type branch struct {
	elem   circuit.Element
	name   string
	n1, n2 int // 1-based, 0 is ground

	// ctrl is the branch whose current drives a CCCS or CCVS, -1 otherwise.
	ctrl int
	// ammeter marks the zero-volt branch exposing a control current given
	// by two nodes.
	ammeter bool
}

// Formulate validates the circuit and builds its tableau.
func Formulate(ckt *circuit.Circuit) (*mna.System, error) {
	if err := ckt.Validate(); err != nil {
		return nil, err
	}
	index, err := ckt.Index()
	if err != nil {
		return nil, err
	}
	return Build(ckt.Elements, index)
}

// Build lays out one branch per element, plus one ammeter branch per
// node-controlled CCCS/CCVS, and stamps the tableau. The unknowns are the
// node voltages, then I_<branch> for every branch, then U_<branch>.
func Build(elements []circuit.Element, index *circuit.NodeIndex) (*mna.System, error) {
	branches, err := layout(elements, index)
	if err != nil {
		return nil, err
	}

	sys := mna.NewSystem(index)
	cur := make([]int, len(branches))
	volt := make([]int, len(branches))
	for k, b := range branches {
		cur[k] = sys.Expand(device.BranchName(b.name))
	}
	for k, b := range branches {
		volt[k] = sys.Expand(VoltageName(b.name))
	}

	one, minus := symbolic.Num(1), symbolic.Num(-1)
	for k, b := range branches {
		i, u := cur[k], volt[k]

		sys.AddElement(b.n1, i, one)
		sys.AddElement(b.n2, i, minus)

		sys.AddElement(i, b.n1, one)
		sys.AddElement(i, b.n2, minus)
		sys.AddElement(i, u, minus)

		if b.ammeter {
			sys.AddElement(u, u, one)
			continue
		}
		var ctrl int
		if b.ctrl >= 0 {
			ctrl = cur[b.ctrl]
		}
		if err := stamp(sys, b, index, i, u, ctrl); err != nil {
			return nil, fmt.Errorf("stamping branch %s: %w", b.name, err)
		}
	}
	return sys, nil
}

func layout(elements []circuit.Element, index *circuit.NodeIndex) ([]branch, error) {
	branches := make([]branch, 0, len(elements))
	byName := make(map[string]int, len(elements))
	for _, e := range elements {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("creating branch %s: %w", e.Name, err)
		}
		n1, n2, err := nodePair(index, e.Name, e.Nodes[0], e.Nodes[1])
		if err != nil {
			return nil, err
		}
		byName[e.Name] = len(branches)
		branches = append(branches, branch{elem: e, name: e.Name, n1: n1, n2: n2, ctrl: -1})
	}

	for k := range len(elements) {
		e := branches[k].elem
		if !e.Kind.CurrentControlled() {
			continue
		}
		if e.Control != "" {
			c, ok := byName[e.Control]
			if !ok {
				return nil, fmt.Errorf("%w: %s references %s", circuit.ErrUnknownControl, e.Name, e.Control)
			}
			branches[k].ctrl = c
			continue
		}
		cp, cn, _ := e.ControlNodes()
		n1, n2, err := nodePair(index, e.Name, cp, cn)
		if err != nil {
			return nil, err
		}
		branches[k].ctrl = len(branches)
		branches = append(branches, branch{name: e.Name + ".ctrl", n1: n1, n2: n2, ctrl: -1, ammeter: true})
	}
	return branches, nil
}

func nodePair(index *circuit.NodeIndex, elem, a, b string) (int, int, error) {
	n1, err := index.Index(a)
	if err != nil {
		return 0, 0, fmt.Errorf("element %s: %w", elem, err)
	}
	n2, err := index.Index(b)
	if err != nil {
		return 0, 0, fmt.Errorf("element %s: %w", elem, err)
	}
	return n1, n2, nil
}

// stamp writes the branch equation of b into row u.
func stamp(sys *mna.System, b branch, index *circuit.NodeIndex, i, u, ctrl int) error {
	p := b.elem.Value()
	if p.IsSymbolic() {
		sys.Bind(p.Symbol, p.Value)
	}
	v := p.Expr()
	one, minus := symbolic.Num(1), symbolic.Num(-1)

	switch b.elem.Kind {
	case circuit.Resistor: // R·i - u = 0
		sys.AddElement(u, i, v)
		sys.AddElement(u, u, minus)
	case circuit.Inductor: // s·L·i - u = 0
		sys.AddElement(u, i, symbolic.Mul(symbolic.S(), v))
		sys.AddElement(u, u, minus)
	case circuit.Capacitor: // s·C·u - i = 0
		sys.AddElement(u, u, symbolic.Mul(symbolic.S(), v))
		sys.AddElement(u, i, minus)
	case circuit.VoltageSource:
		sys.AddElement(u, u, one)
		if p.Value != 0 {
			sys.AddRHS(u, v)
		}
	case circuit.CurrentSource:
		sys.AddElement(u, i, one)
		if p.Value != 0 {
			sys.AddRHS(u, v)
		}
	case circuit.VCVS, circuit.VCCS: // u or i = gain·(e(cp) - e(cn))
		cpName, cnName, _ := b.elem.ControlNodes()
		cp, cn, err := nodePair(index, b.name, cpName, cnName)
		if err != nil {
			return err
		}
		if b.elem.Kind == circuit.VCVS {
			sys.AddElement(u, u, one)
		} else {
			sys.AddElement(u, i, one)
		}
		sys.AddElement(u, cp, symbolic.Neg(v))
		sys.AddElement(u, cn, v)
	case circuit.CCCS: // i - gain·i(ctrl) = 0
		sys.AddElement(u, i, one)
		sys.AddElement(u, ctrl, symbolic.Neg(v))
	case circuit.CCVS: // u - r·i(ctrl) = 0
		sys.AddElement(u, u, one)
		sys.AddElement(u, ctrl, symbolic.Neg(v))
	default:
		return fmt.Errorf("%w: unsupported kind %s", circuit.ErrMalformedElement, b.elem.Kind)
	}
	return nil
}

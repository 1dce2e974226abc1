package circuit

import (
	"fmt"
	"math/cmplx"
	"strings"

	"github.com/edp1096/toy-mor/pkg/symbolic"
)

// Kind is the closed set of element types the formulator knows how to stamp.
type Kind int

const (
	Resistor Kind = iota
	Inductor
	Capacitor
	VoltageSource
	CurrentSource
	VCVS
	VCCS
	CCCS
	CCVS
)

var kindLetters = [...]string{"R", "L", "C", "V", "I", "E", "G", "F", "H"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindLetters) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindLetters[k]
}

// ParseKind maps a SPICE element letter to its kind.
func ParseKind(s string) (Kind, error) {
	letter := strings.ToUpper(s)
	for i, l := range kindLetters {
		if l == letter {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown element type %q", ErrMalformedElement, s)
}

// Terminals is the number of output terminals. Controlled sources add their
// control terminals on top (see ControlTerminals).
func (k Kind) Terminals() int {
	return 2
}

// ControlTerminals is the number of control nodes the kind takes when the
// control is given by nodes. Current-controlled kinds may name a control
// element instead, in which case they take none.
func (k Kind) ControlTerminals() int {
	switch k {
	case VCVS, VCCS, CCCS, CCVS:
		return 2
	}
	return 0
}

// VoltageDefining reports whether the kind always adds a branch-current
// unknown to the system.
func (k Kind) VoltageDefining() bool {
	return k == VoltageSource || k == VCVS || k == CCVS
}

// Controlled reports whether the kind is a dependent source.
func (k Kind) Controlled() bool {
	return k == VCVS || k == VCCS || k == CCCS || k == CCVS
}

// CurrentControlled reports whether the kind needs a controlling branch current.
func (k Kind) CurrentControlled() bool {
	return k == CCCS || k == CCVS
}

// ValueKey is the parameter holding an element's main value
// (resistance, capacitance, source value, gain).
const ValueKey = "value"

// Param is an element parameter: a symbolic placeholder and its numeric
// substitution. A Param without a symbol is a numeric literal and is stamped
// as a plain coefficient.
type Param struct {
	Symbol string
	Value  complex128
}

// Literal returns a numeric parameter.
func Literal(v float64) Param {
	return Param{Value: complex(v, 0)}
}

// Symbolic returns a parameter bound to the symbol name.
func Symbolic(name string, v complex128) Param {
	return Param{Symbol: name, Value: v}
}

// Expr is the expression that gets stamped for the parameter.
func (p Param) Expr() symbolic.Expr {
	if p.Symbol != "" {
		return symbolic.Sym(p.Symbol)
	}
	return symbolic.Num(real(p.Value))
}

// IsSymbolic reports whether p carries a symbol.
func (p Param) IsSymbolic() bool {
	return p.Symbol != ""
}

// Element is one entry of the flattened circuit description.
type Element struct {
	Kind   Kind
	Name   string
	Nodes  []string
	Params map[string]Param

	// Control names the element whose branch current drives a CCCS or CCVS.
	// Empty when the control is given by two extra nodes instead.
	Control string
}

// Value returns the main parameter.
func (e Element) Value() Param {
	return e.Params[ValueKey]
}

// ControlNodes returns the control node pair of a VCVS, VCCS or a
// node-controlled CCCS/CCVS.
func (e Element) ControlNodes() (string, string, bool) {
	if len(e.Nodes) < 4 {
		return "", "", false
	}
	return e.Nodes[2], e.Nodes[3], true
}

// Validate checks the element in isolation: terminal count, presence and
// shape of the main parameter.
func (e Element) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: element without name", ErrMalformedElement)
	}
	if e.Kind < Resistor || e.Kind > CCVS {
		return fmt.Errorf("%w: %s: unknown kind %d", ErrMalformedElement, e.Name, int(e.Kind))
	}

	want := e.Kind.Terminals() + e.Kind.ControlTerminals()
	if e.Kind.CurrentControlled() && e.Control != "" {
		want = e.Kind.Terminals()
	}
	if len(e.Nodes) != want {
		return fmt.Errorf("%w: %s: %s takes %d nodes, got %d", ErrMalformedElement, e.Name, e.Kind, want, len(e.Nodes))
	}
	if e.Control != "" && !e.Kind.CurrentControlled() {
		return fmt.Errorf("%w: %s: %s cannot name a control element", ErrMalformedElement, e.Name, e.Kind)
	}

	p, ok := e.Params[ValueKey]
	if !ok {
		return fmt.Errorf("%w: %s: missing %q parameter", ErrMalformedElement, e.Name, ValueKey)
	}
	if cmplx.IsNaN(p.Value) || cmplx.IsInf(p.Value) {
		return fmt.Errorf("%w: %s: value %v is not finite", ErrMalformedElement, e.Name, p.Value)
	}
	if !p.IsSymbolic() && imag(p.Value) != 0 {
		return fmt.Errorf("%w: %s: complex literal %v needs a symbol", ErrMalformedElement, e.Name, p.Value)
	}
	if (e.Kind == Resistor || e.Kind == Inductor) && p.Value == 0 {
		return fmt.Errorf("%w: %s: zero %s value", ErrMalformedElement, e.Name, e.Kind)
	}
	return nil
}

func newElement(kind Kind, name string, value complex128, nodes ...string) Element {
	return Element{
		Kind:   kind,
		Name:   name,
		Nodes:  nodes,
		Params: map[string]Param{ValueKey: Symbolic(name, value)},
	}
}

// NewResistor returns a resistor whose value is bound to the symbol name.
func NewResistor(name, n1, n2 string, r float64) Element {
	return newElement(Resistor, name, complex(r, 0), n1, n2)
}

func NewCapacitor(name, n1, n2 string, c float64) Element {
	return newElement(Capacitor, name, complex(c, 0), n1, n2)
}

func NewInductor(name, n1, n2 string, l float64) Element {
	return newElement(Inductor, name, complex(l, 0), n1, n2)
}

// NewVoltageSource returns a source driving n1 positive with respect to n2.
func NewVoltageSource(name, n1, n2 string, v complex128) Element {
	return newElement(VoltageSource, name, v, n1, n2)
}

// NewCurrentSource returns a source pushing current from n1 through the
// element into n2.
func NewCurrentSource(name, n1, n2 string, i complex128) Element {
	return newElement(CurrentSource, name, i, n1, n2)
}

func NewVCVS(name, op, on, cp, cn string, gain float64) Element {
	return newElement(VCVS, name, complex(gain, 0), op, on, cp, cn)
}

func NewVCCS(name, op, on, cp, cn string, gm float64) Element {
	return newElement(VCCS, name, complex(gm, 0), op, on, cp, cn)
}

// NewCCCS returns a current source of gain times the current through control.
func NewCCCS(name, op, on, control string, gain float64) Element {
	e := newElement(CCCS, name, complex(gain, 0), op, on)
	e.Control = control
	return e
}

// NewCCVS returns a voltage source of r times the current through control.
func NewCCVS(name, op, on, control string, r float64) Element {
	e := newElement(CCVS, name, complex(r, 0), op, on)
	e.Control = control
	return e
}

package matrix

import "github.com/edp1096/toy-mor/pkg/symbolic"

// DeviceMatrix is the stamping target of the devices. Indices are 1-based;
// index 0 is ground and every stamp touching it is dropped.
type DeviceMatrix interface {
	AddElement(i, j int, value symbolic.Expr)
	AddRHS(i int, value symbolic.Expr)

	// Expand appends a branch-current unknown, growing the matrix by one row
	// and column and the right-hand side by one zero entry. It returns the
	// index of the new unknown.
	Expand(unknown string) int

	// Bind records the numeric substitution of a symbol.
	Bind(symbol string, value complex128)
}

package matrix

import (
	"fmt"
	"sync"

	"github.com/edp1096/sparse"
)

// CircuitMatrix is a complex sparse matrix backed by the Markowitz LU of
// github.com/edp1096/sparse. Indices are 1-based like the sparse package.
type CircuitMatrix struct {
	Size   int
	matrix *sparse.Matrix
	config *sparse.Configuration

	mu sync.Mutex // SolveComplex reuses the matrix's intermediate vector
}

func NewMatrix(size int) (*CircuitMatrix, error) {
	config := &sparse.Configuration{
		Real:                    true,
		Complex:                 true,
		SeparatedComplexVectors: true,
		Expandable:              true,
		Translate:               false,
		ModifiedNodal:           true,
		TiesMultiplier:          5,
		PrinterWidth:            140,
		Annotate:                0,
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("creating sparse matrix: %w", err)
	}
	return &CircuitMatrix{Size: size, matrix: mat, config: config}, nil
}

// SetupElements creates every element up front so that the structure does
// not change between loads.
func (m *CircuitMatrix) SetupElements() {
	for i := 1; i <= m.Size; i++ {
		for j := 1; j <= m.Size; j++ {
			m.matrix.GetElement(int64(i), int64(j))
		}
	}
}

func (m *CircuitMatrix) AddComplexElement(i, j int, real, imag float64) error {
	if i <= 0 || j <= 0 || i > m.Size || j > m.Size {
		return fmt.Errorf("matrix index out of bounds (i=%d, j=%d, size=%d)", i, j, m.Size)
	}
	element := m.matrix.GetElement(int64(i), int64(j))
	element.Real += real
	element.Imag += imag
	return nil
}

// Load copies a dense matrix into the sparse structure.
func (m *CircuitMatrix) Load(a *Dense) error {
	m.matrix.Clear()
	for i := 0; i < a.Size(); i++ {
		for j := 0; j < a.Size(); j++ {
			if v := a.At(i, j); v != 0 {
				if err := m.AddComplexElement(i+1, j+1, real(v), imag(v)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (m *CircuitMatrix) Factor() error {
	if err := m.matrix.Factor(); err != nil {
		return fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return nil
}

// Solve takes a 0-based right-hand side and returns the 0-based solution.
func (m *CircuitMatrix) Solve(b []complex128) ([]complex128, error) {
	if len(b) != m.Size {
		return nil, fmt.Errorf("matrix: rhs has %d entries, want %d", len(b), m.Size)
	}
	rhs := make([]float64, m.Size+1) // 1-based indexing
	rhsImag := make([]float64, m.Size+1)
	for i, v := range b {
		rhs[i+1] = real(v)
		rhsImag[i+1] = imag(v)
	}

	m.mu.Lock()
	solution, solutionImag, err := m.matrix.SolveComplex(rhs, rhsImag)
	m.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("matrix solve failed: %w", err)
	}

	x := make([]complex128, m.Size)
	for i := range x {
		x[i] = complex(solution[i+1], solutionImag[i+1])
	}
	return x, checkFinite(x)
}

// SparseLU factorizes through a fresh CircuitMatrix per call.
type SparseLU struct{}

func (SparseLU) Factor(a *Dense) (Factorization, error) {
	if a.Size() == 0 {
		return nil, fmt.Errorf("%w: empty matrix", ErrSingular)
	}
	m, err := NewMatrix(a.Size())
	if err != nil {
		return nil, err
	}
	m.SetupElements()
	if err := m.Load(a); err != nil {
		return nil, err
	}
	if err := m.Factor(); err != nil {
		return nil, err
	}
	return m, nil
}

package matrix

import (
	"fmt"
	"io"
	"math/cmplx"
)

// Dense is a square complex matrix stored row-major. Indices are 0-based.
type Dense struct {
	n    int
	data []complex128
}

func NewDense(n int) *Dense {
	return &Dense{n: n, data: make([]complex128, n*n)}
}

func (d *Dense) Size() int { return d.n }

func (d *Dense) At(i, j int) complex128 { return d.data[i*d.n+j] }

func (d *Dense) Set(i, j int, v complex128) { d.data[i*d.n+j] = v }

func (d *Dense) AddAt(i, j int, v complex128) { d.data[i*d.n+j] += v }

func (d *Dense) Clone() *Dense {
	c := &Dense{n: d.n, data: make([]complex128, len(d.data))}
	copy(c.data, d.data)
	return c
}

// Combine returns a0 + s·a1.
func Combine(a0, a1 *Dense, s complex128) *Dense {
	out := a0.Clone()
	for k, v := range a1.data {
		out.data[k] += s * v
	}
	return out
}

// MulVec returns d·x.
func (d *Dense) MulVec(x []complex128) []complex128 {
	out := make([]complex128, d.n)
	for i := 0; i < d.n; i++ {
		var sum complex128
		for j := 0; j < d.n; j++ {
			sum += d.data[i*d.n+j] * x[j]
		}
		out[i] = sum
	}
	return out
}

// MaxAbs is the largest entry magnitude.
func (d *Dense) MaxAbs() float64 {
	var m float64
	for _, v := range d.data {
		if a := cmplx.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// PrintSystem writes the equations d·x = rhs, skipping empty rows.
func (d *Dense) PrintSystem(w io.Writer, unknowns []string, rhs []complex128) {
	fmt.Fprintf(w, "Circuit Equations (%dx%d):\n", d.n, d.n)
	for i := 0; i < d.n; i++ {
		rowHasElements := false
		for j := 0; j < d.n; j++ {
			v := d.At(i, j)
			if v == 0 {
				continue
			}
			if !rowHasElements {
				fmt.Fprintf(w, "Equation %d:", i+1)
				rowHasElements = true
			}
			if imag(v) == 0 {
				fmt.Fprintf(w, "  %+g*%s", real(v), unknowns[j])
			} else {
				fmt.Fprintf(w, "  (%g%+gj)*%s", real(v), imag(v), unknowns[j])
			}
		}
		if rowHasElements {
			fmt.Fprintf(w, " = %g%+gj\n", real(rhs[i]), imag(rhs[i]))
		}
	}
}

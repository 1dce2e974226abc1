// Package analysis evaluates symbolic MNA systems numerically over a set of
// angular frequencies.
package analysis

import (
	"fmt"
	"io"
	"math"
	"math/cmplx"

	"github.com/edp1096/toy-mor/pkg/symbolic"
	"github.com/edp1096/toy-mor/pkg/util"
)

// Response is a transfer function sampled at angular frequencies. Magnitude
// is linear, Phase in degrees.
type Response struct {
	Name      string
	Omega     []float64
	Magnitude []float64
	Phase     []float64
}

// NewResponse converts complex samples into magnitude and phase.
func NewResponse(name string, omegas []float64, h []complex128) Response {
	r := Response{
		Name:      name,
		Omega:     omegas,
		Magnitude: make([]float64, len(h)),
		Phase:     make([]float64, len(h)),
	}
	for k, v := range h {
		r.Magnitude[k] = cmplx.Abs(v)
		r.Phase[k] = cmplx.Phase(v) * 180.0 / math.Pi
	}
	return r
}

// MagnitudeDB returns 20·log10 of the magnitude.
func (r Response) MagnitudeDB() []float64 {
	db := make([]float64, len(r.Magnitude))
	for k, m := range r.Magnitude {
		db[k] = 20 * math.Log10(m)
	}
	return db
}

// EvaluateNumeric samples a symbolic transfer function.
func EvaluateNumeric(tf symbolic.Rational, values symbolic.Values, omegas []float64) (Response, error) {
	h := make([]complex128, len(omegas))
	for k, w := range omegas {
		v, err := tf.Eval(values, complex(0, w))
		if err != nil {
			return Response{}, err
		}
		h[k] = v
	}
	return NewResponse(tf.String(), omegas, h), nil
}

// Sweep evaluates x[out]/x[in] of a symbolic system by numeric solves.
func Sweep(a [][]symbolic.Expr, z []symbolic.Expr, values symbolic.Values, omegas []float64, in, out int, opts ...Option) (Response, error) {
	ev, err := NewEvaluator(a, z, values, omegas, in, out, opts...)
	if err != nil {
		return Response{}, err
	}
	h, err := ev.Transfer()
	if err != nil {
		return Response{}, err
	}
	return NewResponse("H", omegas, h), nil
}

// WriteTable prints one line per frequency (in Hz) for every response.
func WriteTable(w io.Writer, responses ...Response) {
	if len(responses) == 0 {
		return
	}
	for k, omega := range responses[0].Omega {
		fmt.Fprintf(w, "%s", util.FormatFrequency(omega/(2*math.Pi)))
		for _, r := range responses {
			fmt.Fprintf(w, "  %s", util.FormatMagnitudePhase(r.Name, r.Magnitude[k], r.Phase[k]))
		}
		fmt.Fprintln(w)
	}
}

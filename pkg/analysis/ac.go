package analysis

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Frequencies builds an .ac style grid of nPoints values between start and
// stop. DEC and OCT are logarithmic, LIN is linear.
func Frequencies(start, stop float64, nPoints int, pType string) ([]float64, error) {
	if nPoints < 1 {
		return nil, fmt.Errorf("analysis: need at least one point, got %d", nPoints)
	}
	if nPoints == 1 {
		return []float64{start}, nil
	}
	if stop < start {
		return nil, fmt.Errorf("analysis: stop %g below start %g", stop, start)
	}

	frequencies := make([]float64, nPoints)
	switch strings.ToUpper(pType) {
	case "DEC", "OCT": // Decade, Octave
		if start <= 0 {
			return nil, fmt.Errorf("analysis: logarithmic sweep needs a positive start, got %g", start)
		}
		floats.LogSpan(frequencies, start, stop)
	case "LIN": // Linear
		floats.Span(frequencies, start, stop)
	default:
		return nil, fmt.Errorf("analysis: unknown sweep type %q", pType)
	}
	return frequencies, nil
}

// HzToRad converts frequencies in Hz to angular frequencies.
func HzToRad(freqs []float64) []float64 {
	out := make([]float64, len(freqs))
	copy(out, freqs)
	floats.Scale(2*math.Pi, out)
	return out
}

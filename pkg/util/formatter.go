package util

import (
	"fmt"
	"math"
	"math/cmplx"
)

var factors = []struct {
	scale  float64
	prefix string
}{
	{1e12, "T"}, {1e9, "G"}, {1e6, "meg"}, {1e3, "k"}, {1, ""},
	{1e-3, "m"}, {1e-6, "u"}, {1e-9, "n"}, {1e-12, "p"}, {1e-15, "f"},
}

// FormatValueFactor prints value with the SPICE suffix that keeps the
// mantissa in [1, 1000).
func FormatValueFactor(value float64, unit string) string {
	absValue := math.Abs(value)
	if absValue == 0 {
		return fmt.Sprintf("0 %s", unit)
	}
	for _, f := range factors {
		if absValue >= f.scale {
			return fmt.Sprintf("%.3f %s%s", value/f.scale, f.prefix, unit)
		}
	}
	return fmt.Sprintf("%.3e %s", value, unit)
}

// FormatComplexValue prints a parameter value; purely real values use
// FormatValueFactor.
func FormatComplexValue(value complex128, unit string) string {
	if imag(value) == 0 {
		return FormatValueFactor(real(value), unit)
	}
	return fmt.Sprintf("%s<%.1fdeg", FormatValueFactor(cmplx.Abs(value), unit), cmplx.Phase(value)*180/math.Pi)
}

func FormatFrequency(freq float64) string {
	switch {
	case freq >= 1e9:
		return fmt.Sprintf("%7.3f GHz", freq/1e9)
	case freq >= 1e6:
		return fmt.Sprintf("%7.3f MHz", freq/1e6)
	case freq >= 1e3:
		return fmt.Sprintf("%7.3f kHz", freq/1e3)
	default:
		return fmt.Sprintf("%7.3f Hz ", freq)
	}
}

func FormatMagnitudePhase(name string, value, phase float64) string {
	var magStr string
	if value >= 1000 || (value < 0.001 && value != 0) {
		magStr = fmt.Sprintf("%8.2e", value) // "1.00e+03" or "5.43e-05"
	} else {
		magStr = fmt.Sprintf("%8.3g", value) // "  732.5 "
	}
	phaseStr := fmt.Sprintf("%6.1f", phase) // "  90.0"
	return fmt.Sprintf("%s=%s<%sdeg", name, magStr, phaseStr)
}

// FormatError prints a relative error in percent; +Inf marks an
// unevaluable term.
func FormatError(rel float64) string {
	if math.IsInf(rel, 1) {
		return "     inf"
	}
	return fmt.Sprintf("%7.3g%%", rel*100)
}

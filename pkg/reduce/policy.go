package reduce

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Policy selects how terms are eliminated.
type Policy string

const (
	TermByTerm Policy = "tbt"
	Block      Policy = "block"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(s)); p {
	case TermByTerm, Block:
		return p, nil
	case "":
		return TermByTerm, nil
	}
	return "", fmt.Errorf("reduce: unknown elimination policy %q", s)
}

// Sorting reduces a per-point error vector to one score.
type Sorting string

const (
	SortMax    Sorting = "max"
	SortAvg    Sorting = "avg"
	SortColumn Sorting = "column"
)

// SortPolicy is a Sorting plus the reference point index used by SortColumn.
type SortPolicy struct {
	Sorting Sorting
	Column  int
}

func ParseSorting(s string, column int) (SortPolicy, error) {
	switch p := Sorting(strings.ToLower(s)); p {
	case SortMax, SortAvg, SortColumn:
		return SortPolicy{Sorting: p, Column: column}, nil
	case "":
		return SortPolicy{Sorting: SortMax}, nil
	}
	return SortPolicy{}, fmt.Errorf("reduce: unknown sorting policy %q", s)
}

// Reduce maps per-point errors to a score. A NaN anywhere yields NaN.
func (p SortPolicy) Reduce(errs []float64) float64 {
	if len(errs) == 0 || floats.HasNaN(errs) {
		return math.NaN()
	}
	switch p.Sorting {
	case SortAvg:
		return stat.Mean(errs, nil)
	case SortColumn:
		if p.Column < 0 || p.Column >= len(errs) {
			return math.NaN()
		}
		return errs[p.Column]
	default:
		return floats.Max(errs)
	}
}

// sortTerms drops NaN scores and orders by (Score, Order).
func sortTerms(terms []Term) []Term {
	kept := make([]Term, 0, len(terms))
	for _, t := range terms {
		if !math.IsNaN(t.Score) {
			kept = append(kept, t)
		}
	}
	slices.SortStableFunc(kept, func(a, b Term) int {
		if c := cmp.Compare(a.Score, b.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Order, b.Order)
	})
	return kept
}

// blockSize returns the length of the leading run of terms whose scores stay
// within decades of each other. A step from exactly zero to a positive score
// also ends the run. Without any jump the whole list is one block.
func blockSize(terms []Term, decades float64) int {
	for k := 1; k < len(terms); k++ {
		prev, next := terms[k-1].Score, terms[k].Score
		if prev == 0 {
			if next > 0 {
				return k
			}
			continue
		}
		if math.Log10(next)-math.Log10(prev) > decades {
			return k
		}
	}
	return len(terms)
}

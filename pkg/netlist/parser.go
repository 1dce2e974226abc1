// Package netlist reads a SPICE-like description of a linear circuit.
package netlist

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/cmplx"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/edp1096/toy-mor/pkg/circuit"
)

// ACParam holds a .ac card.
type ACParam struct {
	Sweep  string  // DEC, OCT, LIN
	Points int     // total points
	FStart float64 // Hz
	FStop  float64 // Hz
}

type Netlist struct {
	Title   string
	Circuit *circuit.Circuit
	AC      *ACParam // nil without a .ac card
}

var unitMap = map[string]float64{
	"T":   1e12,  // tera
	"G":   1e9,   // giga
	"meg": 1e6,   // mega
	"K":   1e3,   // kilo
	"M":   1e-3,  // milli
	"k":   1e3,   // kilo
	"m":   1e-3,  // milli
	"u":   1e-6,  // micro
	"n":   1e-9,  // nano
	"p":   1e-12, // pico
	"f":   1e-15, // femto
}

var (
	valueRe = regexp.MustCompile(`^([-+]?\d*\.?\d+(?:[eE][-+]?\d+)?)((?i:meg)|[TGMKkmunpf])?[a-zA-Z]*$`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// ParseFile reads a netlist from path.
func ParseFile(path string) (*Netlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func Parse(input string) (*Netlist, error) {
	return Read(strings.NewReader(input))
}

// Read parses a netlist. The first line is the title. Lines starting with
// '*' are comments, lines starting with '+' continue the previous card and
// .end stops reading.
func Read(r io.Reader) (*Netlist, error) {
	scanner := bufio.NewScanner(r)
	nl := &Netlist{}

	if scanner.Scan() {
		nl.Title = strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "*"))
	}
	nl.Circuit = circuit.New(nl.Title)

	var card string
	lineNo := 1
	cardLine := 0
	flush := func() error {
		if card == "" {
			return nil
		}
		defer func() { card = "" }()
		if err := nl.parseLine(card); err != nil {
			return fmt.Errorf("line %d: %w", cardLine, err)
		}
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if idx := strings.IndexAny(line, "*;"); idx > 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" || strings.HasPrefix(line, "*") {
			continue
		}

		if strings.HasPrefix(line, "+") {
			if card == "" {
				return nil, fmt.Errorf("line %d: %w: continuation without a card", lineNo, circuit.ErrMalformedElement)
			}
			card += " " + strings.TrimSpace(line[1:])
			continue
		}

		if err := flush(); err != nil {
			return nil, err
		}
		if strings.EqualFold(line, ".end") {
			return nl, nil
		}
		card, cardLine = line, lineNo
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return nl, nil
}

func (nl *Netlist) parseLine(line string) error {
	line = spaceRe.ReplaceAllString(line, " ")
	if strings.HasPrefix(line, ".") {
		return nl.parseDotOperator(line)
	}

	elem, err := parseElement(line)
	if err != nil {
		return err
	}
	nl.Circuit.Add(elem)
	return nil
}

func (nl *Netlist) parseDotOperator(line string) error {
	fields := strings.Fields(line)

	switch strings.ToLower(fields[0]) {
	case ".ac":
		if len(fields) < 5 {
			return fmt.Errorf("insufficient AC parameters, need sweep type, points, fstart, and fstop")
		}
		ac := &ACParam{Sweep: strings.ToUpper(fields[1])}
		if ac.Sweep != "DEC" && ac.Sweep != "OCT" && ac.Sweep != "LIN" {
			return fmt.Errorf("invalid sweep type: %s", fields[1])
		}
		var err error
		if ac.Points, err = strconv.Atoi(fields[2]); err != nil {
			return fmt.Errorf("invalid points number: %w", err)
		}
		if ac.FStart, err = ParseValue(fields[3]); err != nil {
			return fmt.Errorf("invalid fstart: %w", err)
		}
		if ac.FStop, err = ParseValue(fields[4]); err != nil {
			return fmt.Errorf("invalid fstop: %w", err)
		}
		nl.AC = ac

	default:
		slog.Debug("netlist: ignoring control card", "card", fields[0])
	}
	return nil
}

func parseElement(line string) (circuit.Element, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return circuit.Element{}, fmt.Errorf("%w: %s", circuit.ErrMalformedElement, line)
	}
	kind, err := circuit.ParseKind(fields[0][:1])
	if err != nil {
		return circuit.Element{}, err
	}

	name := fields[0]
	elem := circuit.Element{Kind: kind, Name: name}
	var value complex128

	switch kind {
	case circuit.VoltageSource, circuit.CurrentSource:
		elem.Nodes = fields[1:3]
		if value, err = parseSourceValue(fields[3:]); err != nil {
			return circuit.Element{}, fmt.Errorf("%s: %w", name, err)
		}

	case circuit.VCVS, circuit.VCCS:
		if len(fields) != 6 {
			return circuit.Element{}, fmt.Errorf("%w: %s needs out+ out- in+ in- value", circuit.ErrMalformedElement, name)
		}
		elem.Nodes = fields[1:5]
		value, err = parseReal(fields[5])

	case circuit.CCCS, circuit.CCVS:
		switch len(fields) {
		case 5: // out+ out- Vctrl value
			elem.Nodes = fields[1:3]
			elem.Control = fields[3]
		case 6: // out+ out- c+ c- value
			elem.Nodes = fields[1:5]
		default:
			return circuit.Element{}, fmt.Errorf("%w: %s needs a control element or a control node pair", circuit.ErrMalformedElement, name)
		}
		value, err = parseReal(fields[len(fields)-1])

	default:
		if len(fields) != 4 {
			return circuit.Element{}, fmt.Errorf("%w: %s needs two nodes and a value", circuit.ErrMalformedElement, name)
		}
		elem.Nodes = fields[1:3]
		value, err = parseReal(fields[3])
	}
	if err != nil {
		return circuit.Element{}, fmt.Errorf("%s: %w", name, err)
	}

	elem.Params = map[string]circuit.Param{circuit.ValueKey: circuit.Symbolic(name, value)}
	return elem, elem.Validate()
}

// parseSourceValue accepts "<v>", "DC <v>" and "AC <mag> [phase]".
func parseSourceValue(words []string) (complex128, error) {
	switch strings.ToUpper(words[0]) {
	case "DC":
		if len(words) < 2 {
			return 0, fmt.Errorf("missing DC value")
		}
		return parseReal(words[1])

	case "AC":
		if len(words) < 2 {
			return 0, fmt.Errorf("missing AC magnitude")
		}
		mag, err := ParseValue(words[1])
		if err != nil {
			return 0, fmt.Errorf("invalid AC magnitude: %w", err)
		}
		var phase float64
		if len(words) > 2 {
			if phase, err = ParseValue(words[2]); err != nil {
				return 0, fmt.Errorf("invalid AC phase: %w", err)
			}
		}
		return cmplx.Rect(mag, phase*math.Pi/180), nil

	default:
		if len(words) != 1 {
			return 0, fmt.Errorf("unsupported source type: %s", words[0])
		}
		return parseReal(words[0])
	}
}

func parseReal(s string) (complex128, error) {
	v, err := ParseValue(s)
	return complex(v, 0), err
}

// ParseValue - Parse value and factor. 1k -> 1000
func ParseValue(val string) (float64, error) {
	matches := valueRe.FindStringSubmatch(strings.TrimSpace(val))
	if matches == nil {
		return 0, fmt.Errorf("invalid value format: %s", val)
	}

	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, err
	}
	factor := matches[2]
	if strings.EqualFold(factor, "meg") {
		factor = "meg"
	}
	if multiplier, ok := unitMap[factor]; ok {
		num *= multiplier
	}
	return num, nil
}
